package sync

import (
	"sync"
	"time"
)

// peerTimeout is how long a peer entry survives without activity before the
// sweep clears it.
const peerTimeout = 5 * time.Second

// Peer is the transient overlay state for one remote user: where their cursor
// is, what tool they hold, whether they are mid-stroke.
type Peer struct {
	UserID     string
	UserName   string
	X, Y       float64
	Tool       string
	Drawing    bool
	LastActive time.Time
}

// Overlay tracks remote peers' cursors and tools. Entries are ephemeral and
// swept after peerTimeout of silence.
type Overlay struct {
	mu    sync.Mutex
	peers map[string]*Peer
}

func NewOverlay() *Overlay {
	return &Overlay{peers: make(map[string]*Peer)}
}

func (o *Overlay) touch(userID, userName string, at time.Time) *Peer {
	p, ok := o.peers[userID]
	if !ok {
		p = &Peer{UserID: userID}
		o.peers[userID] = p
	}
	if userName != "" {
		p.UserName = userName
	}
	p.LastActive = at
	return p
}

func (o *Overlay) Cursor(userID, userName string, x, y float64, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.touch(userID, userName, at)
	p.X, p.Y = x, y
}

func (o *Overlay) Tool(userID, tool string, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.touch(userID, "", at).Tool = tool
}

func (o *Overlay) Drawing(userID string, drawing bool, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.touch(userID, "", at).Drawing = drawing
}

func (o *Overlay) Remove(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.peers, userID)
}

// Peers returns a copy of the live overlay.
func (o *Overlay) Peers() []Peer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Peer, 0, len(o.peers))
	for _, p := range o.peers {
		out = append(out, *p)
	}
	return out
}

// Sweep drops entries idle longer than peerTimeout as of now.
func (o *Overlay) Sweep(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, p := range o.peers {
		if now.Sub(p.LastActive) > peerTimeout {
			delete(o.peers, id)
		}
	}
}

// Clear empties the overlay, used when joining a new board.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.peers = make(map[string]*Peer)
}
