package history

import "satupapan/internal/board/model"

// MaxDepth bounds snapshot memory: only the most recent snapshots are kept.
const MaxDepth = 50

// Manager is a linear undo/redo history over full element-array snapshots.
// Undo and redo are full-state restores, not inverse operations, and they are
// strictly local: nothing here talks to the network.
type Manager struct {
	snapshots [][]model.Element
	index     int
}

func NewManager() *Manager {
	return &Manager{index: -1}
}

// Record discards any redo entries past the current position, appends a deep
// copy of the array and advances. The oldest snapshot falls off once the
// depth bound is hit.
func (m *Manager) Record(elements []model.Element) {
	m.snapshots = m.snapshots[:m.index+1]
	m.snapshots = append(m.snapshots, clone(elements))
	if len(m.snapshots) > MaxDepth {
		m.snapshots = m.snapshots[len(m.snapshots)-MaxDepth:]
	}
	m.index = len(m.snapshots) - 1
}

// Undo steps back one snapshot and returns a deep copy of it. Returns false
// at the boundary.
func (m *Manager) Undo() ([]model.Element, bool) {
	if m.index <= 0 {
		return nil, false
	}
	m.index--
	return clone(m.snapshots[m.index]), true
}

// Redo steps forward one snapshot and returns a deep copy of it. Returns
// false at the boundary.
func (m *Manager) Redo() ([]model.Element, bool) {
	if m.index >= len(m.snapshots)-1 {
		return nil, false
	}
	m.index++
	return clone(m.snapshots[m.index]), true
}

// Reset drops the whole history and seeds it with the given snapshot as the
// new floor. Used when a board is (re)joined: edits from a previous board must
// not be undoable into the new one.
func (m *Manager) Reset(elements []model.Element) {
	m.snapshots = [][]model.Element{clone(elements)}
	m.index = 0
}

func (m *Manager) CanUndo() bool { return m.index > 0 }
func (m *Manager) CanRedo() bool { return m.index < len(m.snapshots)-1 }
func (m *Manager) Depth() int    { return len(m.snapshots) }

func clone(elements []model.Element) []model.Element {
	out := make([]model.Element, len(elements))
	for i, el := range elements {
		out[i] = el
		if el.Points != nil {
			out[i].Points = make([]model.Point, len(el.Points))
			copy(out[i].Points, el.Points)
		}
	}
	return out
}
