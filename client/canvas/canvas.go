package canvas

import (
	"time"

	"github.com/google/uuid"

	"satupapan/client/history"
	"satupapan/internal/board/model"
)

// Tool is the active drawing tool.
type Tool string

const (
	ToolSelect   Tool = "select"
	ToolText     Tool = "text"
	ToolSticky   Tool = "sticky"
	ToolShape    Tool = "shape"
	ToolLine     Tool = "line"
	ToolArrow    Tool = "arrow"
	ToolPen      Tool = "pen"
	ToolFreehand Tool = "freehand"
	ToolEraser   Tool = "eraser"
)

// State is the interaction machine's current mode.
type State string

const (
	StateIdle        State = "idle"
	StateDragging    State = "dragging"
	StateResizing    State = "resizing"
	StateDrawing     State = "drawing"
	StateEditingText State = "editing-text"
)

// Mutation actions emitted on committed transitions.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionBatch  = "batch"
)

const doubleClickWindow = 300 * time.Millisecond

// Mutation is one committed canvas change handed to the committer. BoardID
// and actor are the bridge's business.
type Mutation struct {
	Action    string
	Element   *model.Element
	Elements  []model.Element
	Timestamp time.Time
}

// Committer receives committed mutations, normally the sync bridge. Sends are
// fire and forget; the local store has already applied the change.
type Committer interface {
	Commit(m Mutation)
}

// Canvas turns raw pointer and tool input into element mutations against the
// local store. It is single-threaded cooperative: callers feed it one event
// at a time.
type Canvas struct {
	store     *Store
	history   *history.Manager
	committer Committer

	tool  Tool
	state State
	scale float64

	selectedID string

	// dragging
	dragLast model.Point

	// resizing
	resizeCorner Corner

	// drawing
	drawingID string

	// editing-text
	editingID string

	lastClickAt time.Time
	lastClickID string

	nextZ int
}

func New(store *Store, hist *history.Manager, committer Committer) *Canvas {
	// The pre-edit state is the undo floor; without it the first mutation
	// could never be undone.
	hist.Record(store.Elements())
	return &Canvas{
		store:     store,
		history:   hist,
		committer: committer,
		tool:      ToolSelect,
		state:     StateIdle,
		scale:     1.0,
	}
}

func (c *Canvas) State() State       { return c.state }
func (c *Canvas) Tool() Tool         { return c.tool }
func (c *Canvas) SelectedID() string { return c.selectedID }
func (c *Canvas) EditingID() string  { return c.editingID }
func (c *Canvas) DrawingID() string  { return c.drawingID }

func (c *Canvas) SetScale(scale float64) {
	if scale > 0 {
		c.scale = scale
	}
}

// SetTool switches tools. Leaving mid-draw abandons the in-flight element in
// the local store without rollback.
func (c *Canvas) SetTool(tool Tool) {
	c.tool = tool
	if c.state == StateDrawing {
		c.state = StateIdle
		c.drawingID = ""
	}
}

func (c *Canvas) PointerDown(x, y float64) {
	switch c.tool {
	case ToolSelect:
		c.selectDown(x, y)
	case ToolLine, ToolArrow:
		c.beginLine(x, y)
	case ToolPen, ToolFreehand:
		c.beginStroke(x, y)
	case ToolText, ToolSticky, ToolShape:
		c.placeElement(x, y)
	case ToolEraser:
		c.erase(x, y)
	}
}

func (c *Canvas) selectDown(x, y float64) {
	now := time.Now()
	elements := c.store.Elements()

	// A handle on the current selection wins over body hits.
	if c.selectedID != "" {
		if sel, ok := c.store.Get(c.selectedID); ok && !isLineType(sel.Type) && !isStrokeType(sel.Type) {
			if corner, ok := handleAt(sel, x, y, c.scale); ok {
				c.state = StateResizing
				c.resizeCorner = corner
				return
			}
		}
	}

	hit, ok := hitTest(elements, x, y, c.scale)
	if !ok {
		c.selectedID = ""
		c.lastClickID = ""
		return
	}

	doubleClick := now.Sub(c.lastClickAt) < doubleClickWindow && c.lastClickID == hit.ID
	c.lastClickAt = now
	c.lastClickID = hit.ID

	if doubleClick && (hit.Type == model.TypeText || hit.Type == model.TypeSticky) {
		c.state = StateEditingText
		c.editingID = hit.ID
		c.selectedID = hit.ID
		hit.IsEditing = true
		c.store.Replace(hit)
		return
	}

	c.selectedID = hit.ID
	c.state = StateDragging
	c.dragLast = model.Point{X: x, Y: y}
}

func (c *Canvas) beginLine(x, y float64) {
	elType := model.TypeLine
	if c.tool == ToolArrow {
		elType = model.TypeArrow
	}
	el := model.Element{
		ID:          uuid.NewString(),
		Type:        elType,
		X:           x,
		Y:           y,
		X2:          x,
		Y2:          y,
		StrokeColor: "#1e1e1e",
		StrokeWidth: 2,
		ZIndex:      c.takeZ(),
	}
	c.store.Add(el)
	c.drawingID = el.ID
	c.state = StateDrawing
}

func (c *Canvas) beginStroke(x, y float64) {
	elType := model.TypeFreehand
	if c.tool == ToolPen {
		elType = model.TypePen
	}
	el := model.Element{
		ID:          uuid.NewString(),
		Type:        elType,
		X:           x,
		Y:           y,
		Points:      []model.Point{{X: x, Y: y}},
		StrokeColor: "#1e1e1e",
		StrokeWidth: 2,
		ZIndex:      c.takeZ(),
	}
	c.store.Add(el)
	c.drawingID = el.ID
	c.state = StateDrawing
}

// placeElement materializes a fully-formed element near the pointer on a
// single click. Text and sticky notes drop straight into text editing.
func (c *Canvas) placeElement(x, y float64) {
	el := model.Element{
		ID:     uuid.NewString(),
		ZIndex: c.takeZ(),
	}
	switch c.tool {
	case ToolText:
		el.Type = model.TypeText
		el.X, el.Y = x, y
		el.Width, el.Height = 160, 40
		el.TextColor = "#1e1e1e"
	case ToolSticky:
		el.Type = model.TypeSticky
		el.X, el.Y = x, y
		el.Width, el.Height = 180, 180
		el.BackgroundColor = "#fff9b1"
		el.TextColor = "#1e1e1e"
	case ToolShape:
		el.Type = model.TypeShape
		el.X, el.Y = x, y
		el.Width, el.Height = 120, 80
		el.BackgroundColor = "#ffffff"
		el.BorderColor = "#1e1e1e"
		el.StrokeWidth = 2
	}

	c.store.Add(el)
	c.selectedID = el.ID
	c.commit(Mutation{Action: ActionAdd, Element: &el})

	if el.Type == model.TypeText || el.Type == model.TypeSticky {
		c.state = StateEditingText
		c.editingID = el.ID
		el.IsEditing = true
		c.store.Replace(el)
	}
}

func (c *Canvas) erase(x, y float64) {
	hit, ok := hitTest(c.store.Elements(), x, y, c.scale)
	if !ok {
		return
	}
	c.store.Remove(hit.ID)
	if c.selectedID == hit.ID {
		c.selectedID = ""
	}
	c.commit(Mutation{Action: ActionDelete, Element: &model.Element{ID: hit.ID}})
}

func (c *Canvas) PointerMove(x, y float64) {
	switch c.state {
	case StateDragging:
		el, ok := c.store.Get(c.selectedID)
		if !ok {
			c.state = StateIdle
			return
		}
		dx, dy := x-c.dragLast.X, y-c.dragLast.Y
		c.dragLast = model.Point{X: x, Y: y}
		c.store.Replace(translateElement(el, dx, dy))

	case StateResizing:
		el, ok := c.store.Get(c.selectedID)
		if !ok {
			c.state = StateIdle
			return
		}
		c.store.Replace(resizeBounds(el, c.resizeCorner, x, y))

	case StateDrawing:
		el, ok := c.store.Get(c.drawingID)
		if !ok {
			c.state = StateIdle
			c.drawingID = ""
			return
		}
		if isLineType(el.Type) {
			el.X2, el.Y2 = x, y
			c.store.Replace(el)
			return
		}
		last := el.Points[len(el.Points)-1]
		if distance(last.X, last.Y, x, y) <= freehandMinDistance {
			return
		}
		el.Points = append(el.Points, model.Point{X: x, Y: y})
		el.X, el.Y, el.Width, el.Height = boundsOfPoints(el.Points)
		c.store.Replace(el)
	}
}

func (c *Canvas) PointerUp() {
	switch c.state {
	case StateDragging, StateResizing:
		c.state = StateIdle
		if el, ok := c.store.Get(c.selectedID); ok {
			c.commit(Mutation{Action: ActionUpdate, Element: &el})
		}
	case StateDrawing:
		c.state = StateIdle
		id := c.drawingID
		c.drawingID = ""
		if el, ok := c.store.Get(id); ok {
			c.commit(Mutation{Action: ActionAdd, Element: &el})
		}
	}
}

// SetEditingText replaces the text of the element being edited without
// leaving the editing state.
func (c *Canvas) SetEditingText(text string) {
	if c.state != StateEditingText {
		return
	}
	if el, ok := c.store.Get(c.editingID); ok {
		el.Text = text
		c.store.Replace(el)
	}
}

// Blur commits a text edit: the element leaves editing mode and the change is
// recorded and sent.
func (c *Canvas) Blur() {
	if c.state != StateEditingText {
		return
	}
	c.state = StateIdle
	id := c.editingID
	c.editingID = ""
	el, ok := c.store.Get(id)
	if !ok {
		return
	}
	el.IsEditing = false
	c.store.Replace(el)
	c.commit(Mutation{Action: ActionUpdate, Element: &el})
}

// Undo restores the previous history snapshot into the store. Local only:
// nothing is re-broadcast, so peers can diverge until the next committed
// mutation (known, accepted behavior).
func (c *Canvas) Undo() bool {
	snapshot, ok := c.history.Undo()
	if !ok {
		return false
	}
	c.store.ReplaceAll(snapshot)
	return true
}

// Redo is Undo's counterpart, with the same local-only caveat.
func (c *Canvas) Redo() bool {
	snapshot, ok := c.history.Redo()
	if !ok {
		return false
	}
	c.store.ReplaceAll(snapshot)
	return true
}

// commit records a history snapshot and forwards the mutation. Every
// committed transition funnels through here.
func (c *Canvas) commit(m Mutation) {
	c.history.Record(c.store.Elements())
	if c.committer != nil {
		m.Timestamp = time.Now()
		c.committer.Commit(m)
	}
}

func (c *Canvas) takeZ() int {
	c.nextZ++
	return c.nextZ
}
