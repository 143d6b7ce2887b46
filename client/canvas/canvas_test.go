package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satupapan/client/history"
	"satupapan/internal/board/model"
)

// recorder captures committed mutations in order.
type recorder struct {
	mutations []Mutation
}

func (r *recorder) Commit(m Mutation) { r.mutations = append(r.mutations, m) }

func (r *recorder) last(t *testing.T) Mutation {
	t.Helper()
	require.NotEmpty(t, r.mutations)
	return r.mutations[len(r.mutations)-1]
}

func newTestCanvas() (*Canvas, *Store, *history.Manager, *recorder) {
	store := NewStore()
	hist := history.NewManager()
	rec := &recorder{}
	return New(store, hist, rec), store, hist, rec
}

func TestPlaceStickyEntersTextEditing(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolSticky)
	c.PointerDown(100, 100)

	assert.Equal(t, StateEditingText, c.State())
	require.Equal(t, 1, store.Len())

	m := rec.last(t)
	assert.Equal(t, ActionAdd, m.Action)
	assert.Equal(t, model.TypeSticky, m.Element.Type)
	assert.Equal(t, 100.0, m.Element.X)

	el, ok := store.Get(c.EditingID())
	require.True(t, ok)
	assert.True(t, el.IsEditing)

	c.SetEditingText("hello")
	c.Blur()
	assert.Equal(t, StateIdle, c.State())

	m = rec.last(t)
	assert.Equal(t, ActionUpdate, m.Action)
	assert.Equal(t, "hello", m.Element.Text)
	assert.False(t, m.Element.IsEditing)
}

func TestShapeClickCommitsImmediately(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolShape)
	c.PointerDown(40, 40)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, ActionAdd, rec.last(t).Action)
	assert.GreaterOrEqual(t, rec.last(t).Element.Width, MinElementSize)
}

func TestDragCommitsOnPointerUp(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolShape)
	c.PointerDown(40, 40)
	id := rec.last(t).Element.ID

	c.SetTool(ToolSelect)
	c.PointerDown(50, 50) // inside the shape body
	assert.Equal(t, StateDragging, c.State())

	c.PointerMove(80, 90)
	c.PointerMove(110, 120)
	assert.Empty(t, rec.mutations[1:], "no commit while still dragging")

	c.PointerUp()
	assert.Equal(t, StateIdle, c.State())

	m := rec.last(t)
	assert.Equal(t, ActionUpdate, m.Action)
	assert.Equal(t, id, m.Element.ID)
	assert.Equal(t, 100.0, m.Element.X) // origin plus the net pointer delta
	assert.Equal(t, 110.0, m.Element.Y)

	el, _ := store.Get(id)
	assert.Equal(t, 100.0, el.X)
}

func TestResizeFromHandle(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolShape)
	c.PointerDown(100, 100) // 120x80 at (100,100)
	id := rec.last(t).Element.ID

	c.SetTool(ToolSelect)
	c.PointerDown(150, 140) // body: select + drag
	c.PointerUp()

	// Grab the south-east handle.
	c.PointerDown(220, 180)
	assert.Equal(t, StateResizing, c.State())

	c.PointerMove(300, 260)
	c.PointerUp()

	el, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, 200.0, el.Width)
	assert.Equal(t, 160.0, el.Height)
	assert.Equal(t, ActionUpdate, rec.last(t).Action)
}

func TestLineDrawingUpdatesEndpoint(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolLine)
	c.PointerDown(10, 10)
	assert.Equal(t, StateDrawing, c.State())

	id := c.DrawingID()
	el, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, el.X, el.X2, "starts zero-length")

	c.PointerMove(200, 150)
	el, _ = store.Get(id)
	assert.Equal(t, 200.0, el.X2)
	assert.Equal(t, 150.0, el.Y2)

	c.PointerUp()
	assert.Equal(t, StateIdle, c.State())
	m := rec.last(t)
	assert.Equal(t, ActionAdd, m.Action)
	assert.Equal(t, id, m.Element.ID)
}

// A freehand stroke drops samples closer than the displacement threshold and
// keeps a bounding box that exactly encloses the retained points.
func TestFreehandThresholdAndBounds(t *testing.T) {
	c, store, _, _ := newTestCanvas()

	c.SetTool(ToolFreehand)
	c.PointerDown(0, 0)

	// 50 raw samples, consecutive ones ~1.4px apart: below the threshold most
	// of the time, so far fewer than 50 survive.
	for i := 1; i < 50; i++ {
		c.PointerMove(float64(i), float64(i))
	}
	c.PointerUp()

	elements := store.Elements()
	require.Len(t, elements, 1)
	el := elements[0]
	assert.Less(t, len(el.Points), 50)
	assert.Greater(t, len(el.Points), 1)

	x, y, w, h := boundsOfPoints(el.Points)
	assert.Equal(t, x, el.X)
	assert.Equal(t, y, el.Y)
	assert.Equal(t, w, el.Width)
	assert.Equal(t, h, el.Height)
}

func TestEraserDeletesTopmostHit(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolShape)
	c.PointerDown(40, 40)
	id := rec.last(t).Element.ID

	c.SetTool(ToolEraser)
	c.PointerDown(60, 60)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, store.Len())
	m := rec.last(t)
	assert.Equal(t, ActionDelete, m.Action)
	assert.Equal(t, id, m.Element.ID)

	// Erasing empty space commits nothing.
	before := len(rec.mutations)
	c.PointerDown(500, 500)
	assert.Len(t, rec.mutations, before)
}

func TestDoubleClickEntersTextEditing(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolText)
	c.PointerDown(10, 10)
	c.Blur()
	id := rec.last(t).Element.ID

	c.SetTool(ToolSelect)
	c.PointerDown(20, 20)
	c.PointerUp()
	c.PointerDown(20, 20) // second click within the window
	assert.Equal(t, StateEditingText, c.State())
	assert.Equal(t, id, c.EditingID())

	el, _ := store.Get(id)
	assert.True(t, el.IsEditing)
}

func TestDoubleClickIgnoredOnShape(t *testing.T) {
	c, _, _, _ := newTestCanvas()

	c.SetTool(ToolShape)
	c.PointerDown(10, 10)

	c.SetTool(ToolSelect)
	c.PointerDown(20, 20)
	c.PointerUp()
	c.PointerDown(20, 20)
	assert.Equal(t, StateDragging, c.State(), "shapes drag, never edit text")
	c.PointerUp()
}

// The constructor records the pre-edit state, so n committed mutations leave
// exactly n undos back to the initial board.
func TestUndoRedoRestoreStore(t *testing.T) {
	c, store, _, _ := newTestCanvas()

	c.SetTool(ToolShape)
	const n = 4
	for i := 0; i < n; i++ {
		c.PointerDown(float64(100*i), 50)
	}
	require.Equal(t, n, store.Len())

	for i := 0; i < n; i++ {
		require.True(t, c.Undo(), "undo %d", i)
	}
	assert.Equal(t, 0, store.Len(), "back to the initial empty board")
	assert.False(t, c.Undo(), "no-op at the boundary")

	for i := 0; i < n; i++ {
		require.True(t, c.Redo(), "redo %d", i)
	}
	assert.Equal(t, n, store.Len())
	assert.False(t, c.Redo())
}

func TestToolSwitchAbandonsInFlightDrawing(t *testing.T) {
	c, store, _, rec := newTestCanvas()

	c.SetTool(ToolPen)
	c.PointerDown(0, 0)
	c.PointerMove(30, 30)
	require.Equal(t, StateDrawing, c.State())

	// Switching mid-draw leaves the partial stroke in the local store with no
	// rollback and no commit.
	c.SetTool(ToolSelect)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, rec.mutations)
}

func TestHistorySnapshotPerCommit(t *testing.T) {
	c, _, hist, _ := newTestCanvas()

	c.SetTool(ToolShape)
	for i := 0; i < 3; i++ {
		c.PointerDown(float64(i)*200, 0)
	}
	// initial + one per committed mutation
	assert.Equal(t, 4, hist.Depth())
}

func TestSelectEmptySpaceDeselects(t *testing.T) {
	c, _, _, rec := newTestCanvas()

	c.SetTool(ToolShape)
	c.PointerDown(40, 40)
	id := rec.last(t).Element.ID

	c.SetTool(ToolSelect)
	c.PointerDown(60, 60)
	c.PointerUp()
	assert.Equal(t, id, c.SelectedID())

	c.PointerDown(900, 900)
	assert.Empty(t, c.SelectedID())
	assert.Equal(t, StateIdle, c.State())
}
