package sync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satupapan/client/canvas"
	"satupapan/client/history"
	"satupapan/internal/board/model"
	"satupapan/pkg/logger"
	"satupapan/socket"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

func mustRaw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newOfflineBridge() (*Bridge, *canvas.Store) {
	store := canvas.NewStore()
	return NewBridge("ws://unused", store), store
}

func TestHandleBoardJoined(t *testing.T) {
	b, store := newOfflineBridge()

	elements := []model.Element{
		{ID: "el-1", Type: model.TypeSticky},
		{ID: "el-2", Type: model.TypeShape},
	}
	b.handle(socket.WSMessage{
		Type: socket.EventBoardJoined,
		Payload: mustRaw(t, socket.BoardJoinedPayload{
			BoardID:     "board-1",
			Role:        model.RoleEditor,
			ActiveUsers: []socket.ActiveUser{{UserID: "u1", Role: model.RoleOwner}},
			Elements:    elements,
			Version:     12,
		}),
	})

	assert.True(t, b.Online())
	assert.Equal(t, model.RoleEditor, b.Role())
	assert.Equal(t, int64(12), b.Version())
	assert.Equal(t, 2, store.Len())
	require.Len(t, b.ActiveUsers(), 1)
	assert.Equal(t, "u1", b.ActiveUsers()[0].UserID)
}

// Joining a board resets the attached undo history to the joined snapshot;
// edits from the previous board must not be undoable into the new one.
func TestBoardJoinedResetsHistory(t *testing.T) {
	b, store := newOfflineBridge()
	hist := history.NewManager()
	hist.Record([]model.Element{{ID: "stale-1"}})
	hist.Record([]model.Element{{ID: "stale-1"}, {ID: "stale-2"}})
	b.AttachHistory(hist)

	b.handle(socket.WSMessage{
		Type: socket.EventBoardJoined,
		Payload: mustRaw(t, socket.BoardJoinedPayload{
			BoardID:  "board-1",
			Role:     model.RoleEditor,
			Elements: []model.Element{{ID: "el-1", Type: model.TypeShape}},
		}),
	})

	assert.Equal(t, 1, hist.Depth())
	assert.False(t, hist.CanUndo())
	assert.False(t, hist.CanRedo())
	assert.Equal(t, 1, store.Len())
}

// The echo of our own optimistic add must not clobber the local copy, and a
// replayed create must not duplicate the element.
func TestElementCreatedIsIdempotent(t *testing.T) {
	b, store := newOfflineBridge()

	local := model.Element{ID: "el-1", Type: model.TypeText, Text: "local edit"}
	store.Add(local)

	echo := socket.WSMessage{
		Type: socket.EventElementCreated,
		Payload: mustRaw(t, socket.ElementPayload{
			Element: model.Element{ID: "el-1", Type: model.TypeText, Text: "stale echo"},
		}),
	}
	b.handle(echo)
	b.handle(echo)

	assert.Equal(t, 1, store.Len())
	el, ok := store.Get("el-1")
	require.True(t, ok)
	assert.Equal(t, "local edit", el.Text)
}

func TestElementUpdatedMergesByID(t *testing.T) {
	b, store := newOfflineBridge()
	store.Add(model.Element{ID: "el-1", Type: model.TypeSticky, X: 10, Text: "old", LastModifiedBy: "alice"})

	b.handle(socket.WSMessage{
		Type: socket.EventElementUpdated,
		Payload: mustRaw(t, socket.ElementPayload{
			Element: model.Element{ID: "el-1", X: 50, Text: "new"},
		}),
	})

	el, ok := store.Get("el-1")
	require.True(t, ok)
	assert.Equal(t, 50.0, el.X)
	assert.Equal(t, "new", el.Text)
	assert.Equal(t, model.TypeSticky, el.Type, "zero-value fields leave the original alone")
	assert.Equal(t, "alice", el.LastModifiedBy, "an empty stamp does not blank the stored one")

	b.handle(socket.WSMessage{
		Type: socket.EventElementUpdated,
		Payload: mustRaw(t, socket.ElementPayload{
			Element: model.Element{ID: "el-1", X: 60, LastModifiedBy: "bob"},
		}),
	})
	el, _ = store.Get("el-1")
	assert.Equal(t, "bob", el.LastModifiedBy)

	// Updates for elements we never saw are dropped, not materialized.
	b.handle(socket.WSMessage{
		Type: socket.EventElementUpdated,
		Payload: mustRaw(t, socket.ElementPayload{
			Element: model.Element{ID: "ghost", X: 1},
		}),
	})
	assert.Equal(t, 1, store.Len())
}

func TestElementDeletedIsIdempotent(t *testing.T) {
	b, store := newOfflineBridge()
	store.Add(model.Element{ID: "el-1", Type: model.TypeShape})

	del := socket.WSMessage{
		Type:    socket.EventElementDeleted,
		Payload: mustRaw(t, socket.ElementDeletedPayload{ElementID: "el-1"}),
	}
	b.handle(del)
	b.handle(del)

	assert.Equal(t, 0, store.Len())
}

func TestCanvasUpdatedReplacesSnapshot(t *testing.T) {
	b, store := newOfflineBridge()
	store.Add(model.Element{ID: "stale", Type: model.TypeShape})

	b.handle(socket.WSMessage{
		Type: socket.EventCanvasUpdated,
		Payload: mustRaw(t, socket.CanvasUpdatedPayload{
			Elements:     []model.Element{{ID: "fresh", Type: model.TypeSticky}},
			Action:       socket.ActionBatch,
			BoardVersion: 9,
		}),
	})

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, int64(9), b.Version())
}

func TestPresenceEventsFeedOverlay(t *testing.T) {
	b, _ := newOfflineBridge()

	b.handle(socket.WSMessage{
		Type: socket.EventCursorMoved,
		Payload: mustRaw(t, socket.CursorMovedPayload{
			UserID: "u2", UserName: "Bob", X: 30, Y: 40,
		}),
	})
	b.handle(socket.WSMessage{
		Type:    socket.EventUserToolChanged,
		UserID:  "u2",
		Payload: mustRaw(t, socket.ToolPayload{Tool: "pen"}),
	})
	b.handle(socket.WSMessage{Type: socket.EventUserDrawingStart, UserID: "u2"})

	peers := b.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "Bob", peers[0].UserName)
	assert.Equal(t, 30.0, peers[0].X)
	assert.Equal(t, "pen", peers[0].Tool)
	assert.True(t, peers[0].Drawing)

	b.handle(socket.WSMessage{
		Type:    socket.EventUserLeft,
		Payload: mustRaw(t, socket.UserLeftPayload{UserID: "u2"}),
	})
	assert.Empty(t, b.Peers())
}

func TestCursorSendsAreThrottled(t *testing.T) {
	b, _ := newOfflineBridge()

	b.SendCursor(1, 1)
	first := b.lastCursorSend
	require.False(t, first.IsZero())

	// A burst inside the interval is dropped, not queued.
	b.SendCursor(2, 2)
	b.SendCursor(3, 3)
	assert.Equal(t, first, b.lastCursorSend)

	b.mu.Lock()
	b.lastCursorSend = first.Add(-2 * cursorSendInterval)
	b.mu.Unlock()
	b.SendCursor(4, 4)
	assert.NotEqual(t, first, b.lastCursorSend)
}

func TestOfflineSendsAreSilent(t *testing.T) {
	b, store := newOfflineBridge()

	// No connection: commits and presence sends are no-ops, the local store
	// stays as the user left it.
	store.Add(model.Element{ID: "el-1", Type: model.TypeShape})
	b.Commit(canvas.Mutation{Action: canvas.ActionAdd, Element: &model.Element{ID: "el-1"}})
	b.SendToolChange("pen")
	b.SendDrawingStart("pen", model.Point{X: 1, Y: 1})
	b.SendDrawingEnd()
	b.LeaveBoard()

	assert.Equal(t, 1, store.Len())
	assert.False(t, b.Online())
}

func TestJoinBoardWaitsForAck(t *testing.T) {
	b, _ := newOfflineBridge()

	b.handle(socket.WSMessage{
		Type:    socket.EventBoardJoined,
		Payload: mustRaw(t, socket.BoardJoinedPayload{BoardID: "b1", Role: model.RoleOwner}),
	})
	require.True(t, b.Online())

	// Joining another board drops back offline until the next ack.
	b.JoinBoard("b2")
	assert.False(t, b.Online())
}

// Round-trip against a real server: Connect dials, JoinBoard goes out on the
// wire, and the ack flips the bridge online.
func TestConnectAndJoinRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg socket.WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, socket.EventJoinBoard, msg.Type)
		require.Equal(t, "board-1", msg.BoardID)

		ack := socket.BoardJoinedPayload{
			BoardID:  "board-1",
			Role:     model.RoleOwner,
			Elements: []model.Element{{ID: "el-1", Type: model.TypeSticky}},
			Version:  3,
		}
		raw, _ := json.Marshal(ack)
		require.NoError(t, conn.WriteJSON(socket.WSMessage{Type: socket.EventBoardJoined, Payload: raw}))

		// Hold the connection open until the client hangs up.
		conn.ReadMessage()
	}))
	defer srv.Close()

	store := canvas.NewStore()
	b := NewBridge("ws"+strings.TrimPrefix(srv.URL, "http"), store)
	require.NoError(t, b.Connect())
	defer b.Close()

	b.JoinBoard("board-1")

	require.Eventually(t, b.Online, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.RoleOwner, b.Role())
	assert.Equal(t, int64(3), b.Version())
	assert.Equal(t, 1, store.Len())
}

func TestConnectFailureSetsError(t *testing.T) {
	b, _ := newOfflineBridge()
	b.url = "ws://127.0.0.1:1/nope"

	require.Error(t, b.Connect())
	assert.NotEmpty(t, b.Err())
	assert.False(t, b.Online())
}
