package socket

import (
	"encoding/json"
	"time"

	"satupapan/internal/board/model"
)

// EventType tags every envelope on the wire. Inbound and outbound types share
// the namespace; the hub switches on them exhaustively and rejects anything it
// does not know rather than silently dropping it.
type EventType string

const (
	// Client -> server
	EventJoinBoard     EventType = "join-board"
	EventLeaveBoard    EventType = "leave-board"
	EventCursorMove    EventType = "cursor-move"
	EventToolChange    EventType = "tool-change"
	EventDrawingStart  EventType = "drawing-start"
	EventDrawingEnd    EventType = "drawing-end"
	EventCanvasUpdate  EventType = "canvas-update"
	EventElementCreate EventType = "element-create"
	EventElementUpdate EventType = "element-update"
	EventElementDelete EventType = "element-delete"
	EventBoardSave     EventType = "board-save"

	// Server -> client
	EventBoardJoined      EventType = "board-joined"
	EventUserJoined       EventType = "user-joined"
	EventUserLeft         EventType = "user-left"
	EventActiveUsers      EventType = "active-users-updated"
	EventCursorMoved      EventType = "cursor-moved"
	EventUserToolChanged  EventType = "user-tool-changed"
	EventUserDrawingStart EventType = "user-drawing-start"
	EventUserDrawingEnd   EventType = "user-drawing-end"
	EventCanvasUpdated    EventType = "canvas-updated"
	EventElementCreated   EventType = "element-created"
	EventElementUpdated   EventType = "element-updated"
	EventElementDeleted   EventType = "element-deleted"
	EventBoardSaved       EventType = "board-saved"
	EventError            EventType = "error"
)

// Mutation actions carried by canvas-update.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionBatch  = "batch"
)

// WSMessage is the envelope for every frame in both directions. UserID and
// BoardID are stamped server-authoritatively on inbound frames; the payload is
// decoded per Type.
type WSMessage struct {
	Type    EventType       `json:"type"`
	BoardID string          `json:"board_id,omitempty"`
	UserID  string          `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newMessage(t EventType, boardID, userID string, payload interface{}) WSMessage {
	raw, _ := json.Marshal(payload)
	return WSMessage{Type: t, BoardID: boardID, UserID: userID, Payload: raw}
}

type JoinBoardPayload struct {
	BoardID string `json:"board_id"`
}

type CursorPayload struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type ToolPayload struct {
	Tool string `json:"tool"`
}

type DrawingPayload struct {
	Tool       string       `json:"tool,omitempty"`
	StartPoint *model.Point `json:"start_point,omitempty"`
}

// CanvasUpdatePayload carries one mutation: a single element for add/update/
// delete, the whole list for batch.
type CanvasUpdatePayload struct {
	Action   string          `json:"action"`
	Element  *model.Element  `json:"element,omitempty"`
	Elements []model.Element `json:"elements,omitempty"`
}

type BoardJoinedPayload struct {
	BoardID     string          `json:"board_id"`
	Role        string          `json:"role"`
	ActiveUsers []ActiveUser    `json:"active_users"`
	Elements    []model.Element `json:"elements"`
	Version     int64           `json:"version"`
}

// ActiveUser is the presence view of one member handed to clients.
type ActiveUser struct {
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	CurrentTool string    `json:"current_tool,omitempty"`
}

type UserJoinedPayload struct {
	User     string    `json:"user"`
	UserName string    `json:"user_name,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type UserLeftPayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
}

type CursorMovedPayload struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

type CanvasUpdatedPayload struct {
	Elements     []model.Element `json:"elements,omitempty"`
	Action       string          `json:"action"`
	UpdatedBy    string          `json:"updated_by"`
	Timestamp    time.Time       `json:"timestamp"`
	BoardVersion int64           `json:"board_version"`
}

type ElementPayload struct {
	Element model.Element `json:"element"`
}

type ElementDeletedPayload struct {
	ElementID string `json:"element_id"`
}

type BoardSavedPayload struct {
	SavedBy      string    `json:"saved_by"`
	ElementCount int       `json:"element_count"`
	Timestamp    time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
