// Package history keeps an undo/redo trail of breakpoint-set snapshots.
// A saved-state marker travels with the trail so stepping back to the last
// saved snapshot restores the project's clean status.
package history

import "sync"

type History struct {
	mu      sync.Mutex
	states  [][]int64
	current int
	saved   int // index of the snapshot matching the file on disk, -1 if none
}

// New starts a trail with the freshly loaded state, which is by definition
// the saved one.
func New(initial []int64) *History {
	return &History{
		states:  [][]int64{snapshot(initial)},
		current: 0,
		saved:   0,
	}
}

// Push records the state after a mutation. Any redo tail beyond the current
// position is discarded; if the saved snapshot lived in that tail it is no
// longer reachable.
func (h *History) Push(breakpoints []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.states = h.states[:h.current+1]
	if h.saved > h.current {
		h.saved = -1
	}
	h.states = append(h.states, snapshot(breakpoints))
	h.current = len(h.states) - 1
}

// Undo steps back one snapshot. It reports the restored breakpoints,
// whether that snapshot is the saved one, and whether a step was possible.
func (h *History) Undo() ([]int64, bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == 0 {
		return nil, false, false
	}
	h.current--
	return snapshot(h.states[h.current]), h.current == h.saved, true
}

// Redo steps forward one snapshot.
func (h *History) Redo() ([]int64, bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current >= len(h.states)-1 {
		return nil, false, false
	}
	h.current++
	return snapshot(h.states[h.current]), h.current == h.saved, true
}

// MarkSaved pins the current snapshot as the one matching the file on disk.
func (h *History) MarkSaved() {
	h.mu.Lock()
	h.saved = h.current
	h.mu.Unlock()
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current < len(h.states)-1
}

func snapshot(breakpoints []int64) []int64 {
	return append([]int64(nil), breakpoints...)
}
