package socket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"satupapan/internal/board/model"
	"satupapan/internal/board/repository"
	"satupapan/pkg/logger"
)

// Store is the slice of the persistence layer the hub consumes. The board
// repository satisfies it; tests swap in whatever they need.
type Store interface {
	HasAccess(boardID, userID string) (bool, string, error)
	LoadElements(boardID string) ([]model.Element, int64, error)
	SaveElements(boardID string, elements []model.Element, modifiedBy string) (int64, error)
}

// Session is the presence entry for one connection. Created when join-board
// succeeds, destroyed on leave or disconnect, never persisted.
type Session struct {
	Client      *Client
	UserID      string
	UserName    string
	BoardID     string
	Role        string
	JoinedAt    time.Time
	LastCursor  *model.Point
	CurrentTool string
}

// boardState is the in-memory copy of a board's elements, loaded when the
// first member joins and dropped when the room empties.
type boardState struct {
	Elements []model.Element
	Version  int64
}

type inbound struct {
	client *Client // nil for trusted internal senders (REST save)
	msg    WSMessage
}

// Hub owns all room, presence and cached-board state. Every inbound event is
// handled to completion on the Run goroutine, so per-sender ordering is
// arrival order; the mutex covers access from the REST side.
type Hub struct {
	store Store

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan inbound

	rooms    map[string]map[*Client]bool
	sessions map[*Client]*Session
	boards   map[string]*boardState
	mu       sync.Mutex
}

func NewHub(store Store) *Hub {
	return &Hub{
		store:      store,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan inbound, 64),
		rooms:      make(map[string]map[*Client]bool),
		sessions:   make(map[*Client]*Session),
		boards:     make(map[string]*boardState),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// Connections register before joining any room; membership only
			// exists once a join-board succeeds.
			logger.Sugar.Infof("Connection registered for user %s", client.UserID)

		case client := <-h.Unregister:
			h.mu.Lock()
			h.leaveRoomLocked(client, true)
			h.mu.Unlock()
			close(client.Send)

		case in := <-h.Inbound:
			h.dispatch(in.client, in.msg)
		}
	}
}

// dispatch routes one inbound frame. The switch is exhaustive over the
// client-to-server event types; anything else is rejected to the sender.
func (h *Hub) dispatch(c *Client, msg WSMessage) {
	switch msg.Type {
	case EventJoinBoard:
		h.handleJoin(c, msg)
	case EventLeaveBoard:
		h.mu.Lock()
		h.leaveRoomLocked(c, true)
		h.mu.Unlock()
	case EventCursorMove, EventToolChange, EventDrawingStart, EventDrawingEnd:
		h.handlePresenceEvent(c, msg)
	case EventCanvasUpdate, EventElementCreate, EventElementUpdate, EventElementDelete, EventBoardSave:
		h.handleMutation(c, msg)
	default:
		h.sendError(c, "Unknown event type: "+string(msg.Type))
	}
}

func (h *Hub) handleJoin(c *Client, msg WSMessage) {
	var p JoinBoardPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.BoardID == "" {
		h.sendError(c, "Invalid join-board payload")
		return
	}

	ok, role, err := h.store.HasAccess(p.BoardID, c.UserID)
	if err == repository.ErrBoardNotFound {
		h.sendError(c, "Board not found")
		return
	}
	if err != nil || !ok {
		h.sendError(c, "Access denied")
		return
	}

	h.mu.Lock()
	// One active room per connection: a join silently moves the connection out
	// of wherever it was.
	h.leaveRoomLocked(c, true)

	if h.rooms[p.BoardID] == nil {
		h.rooms[p.BoardID] = make(map[*Client]bool)

		elements, version, err := h.store.LoadElements(p.BoardID)
		if err != nil {
			logger.Sugar.Errorf("Failed to load board %s: %v", p.BoardID, err)
			elements, version = []model.Element{}, 0
		}
		h.boards[p.BoardID] = &boardState{Elements: elements, Version: version}
	}
	h.rooms[p.BoardID][c] = true

	session := &Session{
		Client:   c,
		UserID:   c.UserID,
		UserName: c.UserName,
		BoardID:  p.BoardID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	h.sessions[c] = session

	state := h.boards[p.BoardID]
	joined := BoardJoinedPayload{
		BoardID:     p.BoardID,
		Role:        role,
		ActiveUsers: h.activeUsersLocked(p.BoardID),
		Elements:    state.Elements,
		Version:     state.Version,
	}
	h.mu.Unlock()

	h.sendTo(c, newMessage(EventBoardJoined, p.BoardID, c.UserID, joined))
	h.broadcast(p.BoardID, newMessage(EventUserJoined, p.BoardID, c.UserID, UserJoinedPayload{
		User:     c.UserID,
		UserName: c.UserName,
		Role:     role,
		JoinedAt: session.JoinedAt,
	}), c)
	h.broadcastActiveUsers(p.BoardID)

	logger.Sugar.Infof("User %s joined board %s as %s", c.UserID, p.BoardID, role)
}

// leaveRoomLocked removes the client's membership. The caller holds the mutex.
// An emptied room is dropped along with its cached board.
func (h *Hub) leaveRoomLocked(c *Client, notify bool) {
	session, ok := h.sessions[c]
	if !ok {
		return
	}
	boardID := session.BoardID
	delete(h.sessions, c)
	delete(h.rooms[boardID], c)

	if len(h.rooms[boardID]) == 0 {
		delete(h.rooms, boardID)
		delete(h.boards, boardID)
		logger.Sugar.Infof("Closed empty room %s", boardID)
		return
	}

	if notify {
		left := newMessage(EventUserLeft, boardID, session.UserID, UserLeftPayload{
			UserID:   session.UserID,
			UserName: session.UserName,
		})
		users := h.activeUsersLocked(boardID)
		for client := range h.rooms[boardID] {
			h.sendTo(client, left)
			h.sendTo(client, newMessage(EventActiveUsers, boardID, "", users))
		}
	}
}

func (h *Hub) handlePresenceEvent(c *Client, msg WSMessage) {
	h.mu.Lock()
	session, ok := h.sessions[c]
	if !ok || (msg.BoardID != "" && msg.BoardID != session.BoardID) {
		h.mu.Unlock()
		h.sendError(c, "Not in board")
		return
	}
	boardID := session.BoardID

	now := time.Now()
	var out WSMessage
	switch msg.Type {
	case EventCursorMove:
		var p CursorPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.mu.Unlock()
			h.sendError(c, "Invalid cursor payload")
			return
		}
		session.LastCursor = &model.Point{X: p.X, Y: p.Y}
		out = newMessage(EventCursorMoved, boardID, c.UserID, CursorMovedPayload{
			UserID:    c.UserID,
			UserName:  c.UserName,
			X:         p.X,
			Y:         p.Y,
			Timestamp: now,
		})
	case EventToolChange:
		var p ToolPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.mu.Unlock()
			h.sendError(c, "Invalid tool payload")
			return
		}
		session.CurrentTool = p.Tool
		out = newMessage(EventUserToolChanged, boardID, c.UserID, p)
	case EventDrawingStart:
		var p DrawingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.mu.Unlock()
			h.sendError(c, "Invalid drawing payload")
			return
		}
		out = newMessage(EventUserDrawingStart, boardID, c.UserID, p)
	case EventDrawingEnd:
		out = newMessage(EventUserDrawingEnd, boardID, c.UserID, struct{}{})
	}
	h.mu.Unlock()

	// Ephemeral: broadcast only, never persisted. Throttling is the client's
	// job.
	h.broadcast(boardID, out, c)
}

func (h *Hub) handleMutation(c *Client, msg WSMessage) {
	var p CanvasUpdatePayload
	var boardID, actorID string

	if c != nil {
		h.mu.Lock()
		session, ok := h.sessions[c]
		if !ok || (msg.BoardID != "" && msg.BoardID != session.BoardID) {
			h.mu.Unlock()
			h.sendError(c, "Not in board")
			return
		}
		if session.Role == model.RoleViewer {
			h.mu.Unlock()
			h.sendError(c, "No edit permission")
			return
		}
		boardID, actorID = session.BoardID, session.UserID
		h.mu.Unlock()
	} else {
		// Trusted internal sender (REST save path); authorized over there.
		boardID, actorID = msg.BoardID, msg.UserID
	}

	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		h.sendError(c, "Invalid canvas payload")
		return
	}

	// The element-* and board-save aliases pin the action regardless of what
	// the payload claims.
	switch msg.Type {
	case EventElementCreate:
		p.Action = ActionAdd
	case EventElementUpdate:
		p.Action = ActionUpdate
	case EventElementDelete:
		p.Action = ActionDelete
	case EventBoardSave:
		p.Action = ActionBatch
	}

	switch p.Action {
	case ActionAdd:
		h.applyAdd(c, boardID, actorID, p.Element)
	case ActionUpdate:
		h.applyUpdate(c, boardID, actorID, p.Element)
	case ActionDelete:
		h.applyDelete(c, boardID, actorID, p.Element)
	case ActionBatch:
		h.applyBatch(c, boardID, actorID, p.Elements, msg.Type == EventBoardSave)
	default:
		h.sendError(c, "Unknown canvas action: "+p.Action)
	}
}

func (h *Hub) applyAdd(c *Client, boardID, actorID string, el *model.Element) {
	if el == nil {
		h.sendError(c, "Missing element")
		return
	}

	now := time.Now()
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	el.CreatedBy = actorID
	el.LastModifiedBy = actorID
	el.CreatedAt = now
	el.UpdatedAt = now

	h.mu.Lock()
	state, ok := h.boards[boardID]
	if !ok {
		h.mu.Unlock()
		h.sendError(c, "Board not found")
		return
	}
	state.Elements = append(state.Elements, *el)
	h.persistLocked(c, boardID, state, actorID)
	h.mu.Unlock()

	h.broadcast(boardID, newMessage(EventElementCreated, boardID, actorID, ElementPayload{Element: *el}), c)
}

func (h *Hub) applyUpdate(c *Client, boardID, actorID string, el *model.Element) {
	if el == nil || el.ID == "" {
		h.sendError(c, "Missing element")
		return
	}

	h.mu.Lock()
	state, ok := h.boards[boardID]
	if !ok {
		h.mu.Unlock()
		h.sendError(c, "Board not found")
		return
	}

	idx := -1
	for i := range state.Elements {
		if state.Elements[i].ID == el.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		h.sendError(c, "Element not found")
		return
	}

	// Last-writer-wins per element: whichever update lands last overwrites the
	// contested fields, no merging beyond that.
	state.Elements[idx].Merge(*el)
	state.Elements[idx].LastModifiedBy = actorID
	state.Elements[idx].UpdatedAt = time.Now()
	updated := state.Elements[idx]
	h.persistLocked(c, boardID, state, actorID)
	h.mu.Unlock()

	h.broadcast(boardID, newMessage(EventElementUpdated, boardID, actorID, ElementPayload{Element: updated}), c)
}

func (h *Hub) applyDelete(c *Client, boardID, actorID string, el *model.Element) {
	if el == nil || el.ID == "" {
		h.sendError(c, "Missing element")
		return
	}

	h.mu.Lock()
	state, ok := h.boards[boardID]
	if !ok {
		h.mu.Unlock()
		h.sendError(c, "Board not found")
		return
	}

	idx := -1
	for i := range state.Elements {
		if state.Elements[i].ID == el.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Unknown id: deliberate silent no-op, no broadcast and no error.
		h.mu.Unlock()
		return
	}
	state.Elements = append(state.Elements[:idx], state.Elements[idx+1:]...)
	h.persistLocked(c, boardID, state, actorID)
	h.mu.Unlock()

	h.broadcast(boardID, newMessage(EventElementDeleted, boardID, actorID, ElementDeletedPayload{ElementID: el.ID}), c)
}

func (h *Hub) applyBatch(c *Client, boardID, actorID string, elements []model.Element, isSave bool) {
	if elements == nil {
		elements = []model.Element{}
	}
	now := time.Now()
	for i := range elements {
		if elements[i].LastModifiedBy == "" {
			elements[i].LastModifiedBy = actorID
		}
	}

	h.mu.Lock()
	state, ok := h.boards[boardID]
	if !ok {
		h.mu.Unlock()
		if c == nil {
			// Nobody is connected, so there is no cache to converge; the save
			// still has to reach the durable store.
			if _, err := h.store.SaveElements(boardID, elements, actorID); err != nil {
				logger.Sugar.Errorf("Failed to persist board %s: %v", boardID, err)
			}
			return
		}
		h.sendError(c, "Board not found")
		return
	}
	state.Elements = elements
	h.persistLocked(c, boardID, state, actorID)
	version := state.Version
	h.mu.Unlock()

	h.broadcast(boardID, newMessage(EventCanvasUpdated, boardID, actorID, CanvasUpdatedPayload{
		Elements:     elements,
		Action:       ActionBatch,
		UpdatedBy:    actorID,
		Timestamp:    now,
		BoardVersion: version,
	}), c)

	if isSave {
		h.broadcast(boardID, newMessage(EventBoardSaved, boardID, actorID, BoardSavedPayload{
			SavedBy:      actorID,
			ElementCount: len(elements),
			Timestamp:    now,
		}), nil)
	}
}

// persistLocked writes the cached elements through to the durable store. A
// failed write is reported to the sender and not retried; the in-memory state
// keeps the mutation either way, so the version counter always advances.
func (h *Hub) persistLocked(c *Client, boardID string, state *boardState, actorID string) {
	version, err := h.store.SaveElements(boardID, state.Elements, actorID)
	if err != nil {
		logger.Sugar.Errorf("Failed to persist board %s: %v", boardID, err)
		state.Version++
		h.sendError(c, "Failed to save board")
		return
	}
	state.Version = version
}

// SaveFromAPI lets the REST layer push a full-canvas save through the hub so
// connected peers converge on the saved state.
func (h *Hub) SaveFromAPI(boardID, actorID string, elements []model.Element) {
	raw, _ := json.Marshal(CanvasUpdatePayload{Action: ActionBatch, Elements: elements})
	h.Inbound <- inbound{client: nil, msg: WSMessage{
		Type:    EventBoardSave,
		BoardID: boardID,
		UserID:  actorID,
		Payload: raw,
	}}
}

// RemoveBoard forcefully drops a board from memory and disconnects its room.
// Called when a board is deleted via the API.
func (h *Hub) RemoveBoard(boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.boards, boardID)
	if clients, ok := h.rooms[boardID]; ok {
		for client := range clients {
			delete(h.sessions, client)
			client.Conn.Close() // readPump exits and unregisters
		}
		delete(h.rooms, boardID)
	}
}

// ActiveUsers reports the current presence list for a board. The hub is the
// only writer, so this is the authoritative membership view.
func (h *Hub) ActiveUsers(boardID string) []ActiveUser {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeUsersLocked(boardID)
}

func (h *Hub) activeUsersLocked(boardID string) []ActiveUser {
	users := make([]ActiveUser, 0, len(h.rooms[boardID]))
	for client := range h.rooms[boardID] {
		if s, ok := h.sessions[client]; ok {
			users = append(users, ActiveUser{
				UserID:      s.UserID,
				UserName:    s.UserName,
				Role:        s.Role,
				JoinedAt:    s.JoinedAt,
				CurrentTool: s.CurrentTool,
			})
		}
	}
	return users
}

func (h *Hub) broadcastActiveUsers(boardID string) {
	h.mu.Lock()
	users := h.activeUsersLocked(boardID)
	clients := make([]*Client, 0, len(h.rooms[boardID]))
	for client := range h.rooms[boardID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	msg := newMessage(EventActiveUsers, boardID, "", users)
	for _, client := range clients {
		h.sendTo(client, msg)
	}
}

// broadcast fans a message out to every room member except exclude. Lagging
// clients just drop the frame; the pumps reap dead connections.
func (h *Hub) broadcast(boardID string, msg WSMessage, exclude *Client) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.rooms[boardID]))
	for client := range h.rooms[boardID] {
		if client != exclude {
			clients = append(clients, client)
		}
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.sendTo(client, msg)
	}
}

func (h *Hub) sendTo(c *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling message: %v", err)
		return
	}
	select {
	case c.Send <- payload:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full, dropping frame", c.UserID)
	}
}

// sendError surfaces a failure to the originating connection only. Errors are
// never broadcast to peers.
func (h *Hub) sendError(c *Client, message string) {
	if c == nil {
		logger.Sugar.Warnf("Internal mutation failed: %s", message)
		return
	}
	h.sendTo(c, newMessage(EventError, "", "", ErrorPayload{Message: message}))
}
