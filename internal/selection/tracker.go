// Package selection tracks which visible rows the user has marked.
package selection

import (
	"sync"

	"triageterm/internal/model"
)

// Tracker holds a set of selected ids, always a subset of the visible ones.
type Tracker struct {
	mu       sync.Mutex
	visible  map[int64]struct{}
	selected map[int64]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		visible:  make(map[int64]struct{}),
		selected: make(map[int64]struct{}),
	}
}

// Replace installs a new set of visible ids and clears the selection.
func (t *Tracker) Replace(visibleIDs []int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = make(map[int64]struct{}, len(visibleIDs))
	for _, id := range visibleIDs {
		t.visible[id] = struct{}{}
	}
	t.selected = make(map[int64]struct{})
}

// Toggle flips id and reports whether it is now selected. Ids that are not
// visible are ignored.
func (t *Tracker) Toggle(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.visible[id]; !ok {
		return false
	}
	if _, ok := t.selected[id]; ok {
		delete(t.selected, id)
		return false
	}
	t.selected[id] = struct{}{}
	return true
}

// SetAll selects every visible id in ids.
func (t *Tracker) SetAll(ids []int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if _, ok := t.visible[id]; ok {
			t.selected[id] = struct{}{}
		}
	}
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	t.selected = make(map[int64]struct{})
	t.mu.Unlock()
}

func (t *Tracker) IsSelected(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.selected[id]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.selected)
}

// Snapshot returns the selected ids in ascending order.
func (t *Tracker) Snapshot() []int64 {
	t.mu.Lock()
	ids := make([]int64, 0, len(t.selected))
	for id := range t.selected {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	return model.SortIDs(ids)
}

// AllSelected reports whether every visible row is selected.
func (t *Tracker) AllSelected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visible) > 0 && len(t.selected) == len(t.visible)
}
