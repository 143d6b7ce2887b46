package sync

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"satupapan/client/canvas"
	"satupapan/client/history"
	"satupapan/internal/board/model"
	"satupapan/pkg/logger"
	"satupapan/socket"
)

// cursorSendInterval caps cursor broadcasts at ~10/s by dropping intermediate
// samples. Samples are never queued.
const cursorSendInterval = 100 * time.Millisecond

// Bridge connects the local element store to the room router. Local mutations
// are applied optimistically before they are sent; inbound remote events are
// merged idempotently. While disconnected or waiting for the join ack the
// bridge is in offline mode: edits stay local with no delivery guarantee.
type Bridge struct {
	url     string
	store   *canvas.Store
	history *history.Manager
	overlay *Overlay

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu          sync.Mutex
	boardID     string
	joined      bool
	role        string
	version     int64
	activeUsers []socket.ActiveUser
	lastErr     string

	lastCursorSend time.Time
	done           chan struct{}
}

func NewBridge(url string, store *canvas.Store) *Bridge {
	return &Bridge{
		url:     url,
		store:   store,
		overlay: NewOverlay(),
	}
}

// AttachHistory ties the interaction machine's undo history to the board
// lifecycle: joining a board resets it to the joined snapshot, so edits from
// the previous board cannot be undone into the new one.
func (b *Bridge) AttachHistory(m *history.Manager) {
	b.history = m
}

// Connect dials the server and, if a board was joined before, re-joins it.
// Dial failure flips the error flag and leaves the bridge in offline mode
// rather than blocking the caller.
func (b *Bridge) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(b.url, nil)
	if err != nil {
		b.setError("connect failed: " + err.Error())
		return err
	}

	b.writeMu.Lock()
	b.conn = conn
	b.writeMu.Unlock()

	b.mu.Lock()
	b.lastErr = ""
	rejoin := b.boardID
	if b.done == nil {
		b.done = make(chan struct{})
		go b.sweepLoop()
	}
	b.mu.Unlock()

	go b.readLoop(conn)

	if rejoin != "" {
		b.JoinBoard(rejoin)
	}
	return nil
}

// JoinBoard requests membership. The bridge stays offline until board-joined
// comes back.
func (b *Bridge) JoinBoard(boardID string) {
	b.mu.Lock()
	b.boardID = boardID
	b.joined = false
	b.mu.Unlock()
	b.overlay.Clear()

	b.send(newEnvelope(socket.EventJoinBoard, boardID, socket.JoinBoardPayload{BoardID: boardID}))
}

func (b *Bridge) LeaveBoard() {
	b.mu.Lock()
	boardID := b.boardID
	b.boardID = ""
	b.joined = false
	b.mu.Unlock()
	b.overlay.Clear()

	b.send(newEnvelope(socket.EventLeaveBoard, boardID, struct{}{}))
}

// Commit implements canvas.Committer. The store already holds the change;
// this only forwards it, fire and forget.
func (b *Bridge) Commit(m canvas.Mutation) {
	b.mu.Lock()
	boardID := b.boardID
	b.mu.Unlock()

	b.send(newEnvelope(socket.EventCanvasUpdate, boardID, socket.CanvasUpdatePayload{
		Action:   m.Action,
		Element:  m.Element,
		Elements: m.Elements,
	}))
}

// SendCursor forwards the local cursor position, dropping samples that arrive
// faster than the send interval.
func (b *Bridge) SendCursor(x, y float64) {
	b.mu.Lock()
	now := time.Now()
	if now.Sub(b.lastCursorSend) < cursorSendInterval {
		b.mu.Unlock()
		return
	}
	b.lastCursorSend = now
	boardID := b.boardID
	b.mu.Unlock()

	b.send(newEnvelope(socket.EventCursorMove, boardID, socket.CursorPayload{X: x, Y: y}))
}

func (b *Bridge) SendToolChange(tool string) {
	b.mu.Lock()
	boardID := b.boardID
	b.mu.Unlock()
	b.send(newEnvelope(socket.EventToolChange, boardID, socket.ToolPayload{Tool: tool}))
}

func (b *Bridge) SendDrawingStart(tool string, start model.Point) {
	b.mu.Lock()
	boardID := b.boardID
	b.mu.Unlock()
	b.send(newEnvelope(socket.EventDrawingStart, boardID, socket.DrawingPayload{Tool: tool, StartPoint: &start}))
}

func (b *Bridge) SendDrawingEnd() {
	b.mu.Lock()
	boardID := b.boardID
	b.mu.Unlock()
	b.send(newEnvelope(socket.EventDrawingEnd, boardID, struct{}{}))
}

// Online reports whether the last join-board was acknowledged.
func (b *Bridge) Online() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joined
}

func (b *Bridge) Role() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.role
}

func (b *Bridge) Version() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

func (b *Bridge) ActiveUsers() []socket.ActiveUser {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]socket.ActiveUser, len(b.activeUsers))
	copy(out, b.activeUsers)
	return out
}

// Err returns the sticky connection error message, empty when healthy.
func (b *Bridge) Err() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Bridge) Peers() []Peer { return b.overlay.Peers() }

func (b *Bridge) Close() {
	b.mu.Lock()
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
	b.joined = false
	b.mu.Unlock()

	b.writeMu.Lock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.writeMu.Unlock()
}

func (b *Bridge) send(msg socket.WSMessage) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		return // offline: the optimistic local state is all there is
	}
	if err := b.conn.WriteJSON(msg); err != nil {
		logger.Sugar.Warnf("send failed: %v", err)
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	for {
		var msg socket.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			b.setError("connection lost: " + err.Error())
			b.mu.Lock()
			b.joined = false
			b.mu.Unlock()
			return
		}
		b.handle(msg)
	}
}

// handle merges one server event. Element events are idempotent so echoes of
// our own optimistic mutations and replays cannot corrupt the cache.
func (b *Bridge) handle(msg socket.WSMessage) {
	now := time.Now()
	switch msg.Type {
	case socket.EventBoardJoined:
		var p socket.BoardJoinedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.store.ReplaceAll(p.Elements)
		if b.history != nil {
			b.history.Reset(p.Elements)
		}
		b.mu.Lock()
		b.joined = true
		b.role = p.Role
		b.version = p.Version
		b.activeUsers = p.ActiveUsers
		b.mu.Unlock()

	case socket.EventElementCreated:
		var p socket.ElementPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.store.Add(p.Element)

	case socket.EventElementUpdated:
		var p socket.ElementPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.store.Update(p.Element)

	case socket.EventElementDeleted:
		var p socket.ElementDeletedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.store.Remove(p.ElementID)

	case socket.EventCanvasUpdated:
		var p socket.CanvasUpdatedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.store.ReplaceAll(p.Elements)
		b.mu.Lock()
		b.version = p.BoardVersion
		b.mu.Unlock()

	case socket.EventCursorMoved:
		var p socket.CursorMovedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.overlay.Cursor(p.UserID, p.UserName, p.X, p.Y, now)

	case socket.EventUserToolChanged:
		var p socket.ToolPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.overlay.Tool(msg.UserID, p.Tool, now)

	case socket.EventUserDrawingStart:
		b.overlay.Drawing(msg.UserID, true, now)

	case socket.EventUserDrawingEnd:
		b.overlay.Drawing(msg.UserID, false, now)

	case socket.EventActiveUsers:
		var users []socket.ActiveUser
		if err := json.Unmarshal(msg.Payload, &users); err != nil {
			return
		}
		b.mu.Lock()
		b.activeUsers = users
		b.mu.Unlock()

	case socket.EventUserLeft:
		var p socket.UserLeftPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		b.overlay.Remove(p.UserID)

	case socket.EventError:
		var p socket.ErrorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		logger.Sugar.Warnf("server error: %s", p.Message)

	case socket.EventUserJoined, socket.EventBoardSaved:
		// Informational; the active-users broadcast carries the roster.
	}
}

func (b *Bridge) sweepLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	for {
		select {
		case <-ticker.C:
			b.overlay.Sweep(time.Now())
		case <-done:
			return
		}
	}
}

func (b *Bridge) setError(message string) {
	b.mu.Lock()
	b.lastErr = message
	b.mu.Unlock()
	logger.Sugar.Warn(message)
}

func newEnvelope(t socket.EventType, boardID string, payload interface{}) socket.WSMessage {
	raw, _ := json.Marshal(payload)
	return socket.WSMessage{Type: t, BoardID: boardID, Payload: raw}
}
