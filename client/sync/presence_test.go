package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayTracksPerPeerState(t *testing.T) {
	o := NewOverlay()
	now := time.Now()

	o.Cursor("u1", "Alice", 10, 20, now)
	o.Tool("u1", "pen", now)
	o.Drawing("u1", true, now)
	o.Cursor("u2", "Bob", 5, 5, now)

	peers := o.Peers()
	require.Len(t, peers, 2)

	byID := map[string]Peer{}
	for _, p := range peers {
		byID[p.UserID] = p
	}
	assert.Equal(t, "Alice", byID["u1"].UserName)
	assert.Equal(t, 10.0, byID["u1"].X)
	assert.Equal(t, "pen", byID["u1"].Tool)
	assert.True(t, byID["u1"].Drawing)
	assert.False(t, byID["u2"].Drawing)
}

func TestSweepDropsIdlePeers(t *testing.T) {
	o := NewOverlay()
	start := time.Now()

	o.Cursor("stale", "", 0, 0, start)
	o.Cursor("fresh", "", 0, 0, start.Add(4*time.Second))

	o.Sweep(start.Add(peerTimeout + time.Second))

	peers := o.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, "fresh", peers[0].UserID)
}

func TestSweepKeepsActivePeers(t *testing.T) {
	o := NewOverlay()
	now := time.Now()

	o.Cursor("u1", "", 0, 0, now)
	o.Sweep(now.Add(peerTimeout)) // exactly at the boundary still counts

	assert.Len(t, o.Peers(), 1)
}

func TestRemoveAndClear(t *testing.T) {
	o := NewOverlay()
	now := time.Now()

	o.Cursor("u1", "", 0, 0, now)
	o.Cursor("u2", "", 0, 0, now)

	o.Remove("u1")
	assert.Len(t, o.Peers(), 1)
	o.Remove("u1") // idempotent

	o.Clear()
	assert.Empty(t, o.Peers())
}
