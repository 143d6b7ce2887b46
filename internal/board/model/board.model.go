package model

import (
	"encoding/json"
	"time"
)

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Point is one sample of a freehand or pen stroke, in logical canvas pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	TypeText     = "text"
	TypeSticky   = "sticky"
	TypeShape    = "shape"
	TypeLine     = "line"
	TypeArrow    = "arrow"
	TypePen      = "pen"
	TypeFreehand = "freehand"
)

// Element is one drawing object on a board. Rectangular types use X/Y/Width/
// Height, line and arrow additionally carry the X2/Y2 endpoint, pen and
// freehand carry the point list. IsEditing and IsLocked are session-local
// flags that ride along on the wire but are never authoritative.
type Element struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	X2     float64 `json:"x2,omitempty"`
	Y2     float64 `json:"y2,omitempty"`
	Points []Point `json:"points,omitempty"`

	StrokeColor     string  `json:"stroke_color,omitempty"`
	StrokeWidth     float64 `json:"stroke_width,omitempty"`
	BackgroundColor string  `json:"background_color,omitempty"`
	BorderColor     string  `json:"border_color,omitempty"`
	TextColor       string  `json:"text_color,omitempty"`

	Text   string `json:"text,omitempty"`
	ZIndex int    `json:"z_index"`

	CreatedBy      string    `json:"created_by,omitempty"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`

	IsEditing bool `json:"is_editing,omitempty"`
	IsLocked  bool `json:"is_locked,omitempty"`
}

// Merge copies the incoming element's set fields onto e, leaving identity and
// creation stamps alone. Geometry is taken wholesale so a drag to x=0 is not
// mistaken for an unset field; the remaining fields merge only when non-zero.
func (e *Element) Merge(in Element) {
	e.X = in.X
	e.Y = in.Y
	e.Width = in.Width
	e.Height = in.Height
	e.X2 = in.X2
	e.Y2 = in.Y2
	if in.Points != nil {
		e.Points = in.Points
	}
	if in.StrokeColor != "" {
		e.StrokeColor = in.StrokeColor
	}
	if in.StrokeWidth != 0 {
		e.StrokeWidth = in.StrokeWidth
	}
	if in.BackgroundColor != "" {
		e.BackgroundColor = in.BackgroundColor
	}
	if in.BorderColor != "" {
		e.BorderColor = in.BorderColor
	}
	if in.TextColor != "" {
		e.TextColor = in.TextColor
	}
	if in.Text != "" {
		e.Text = in.Text
	}
	if in.ZIndex != 0 {
		e.ZIndex = in.ZIndex
	}
	e.IsEditing = in.IsEditing
	e.IsLocked = in.IsLocked
}

// Board is the durable row backing one canvas. Version is a coarse counter
// bumped on every successful mutation, not a per-element clock.
type Board struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	OwnerID        string    `json:"owner_id"`
	Elements       []Element `json:"elements"`
	Version        int64     `json:"version"`
	LastModified   time.Time `json:"last_modified"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateBoardRequest struct {
	Title string `json:"title"`
}

type CreateBoardResponse struct {
	BoardID string `json:"board_id"`
}

type UpdateBoardRequest struct {
	Title string `json:"title"`
}

type BoardMetadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"last_modified"`
	IsOwner      bool      `json:"is_owner"`
}

type InviteRequest struct {
	BoardID string `json:"board_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

type SaveBoardRequest struct {
	BoardID  string          `json:"board_id"`
	Elements json.RawMessage `json:"elements"`
}

type MemberResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}
