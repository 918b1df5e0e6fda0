package service

import (
	"sync"

	"github.com/google/uuid"
)

// TouchedSet collects belief IDs whose incident edges changed since the last
// analytics pass. The coordinator writes it, the analytics loop drains it.
type TouchedSet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func NewTouchedSet() *TouchedSet {
	return &TouchedSet{ids: make(map[uuid.UUID]struct{})}
}

func (t *TouchedSet) Add(ids ...uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if id != uuid.Nil {
			t.ids[id] = struct{}{}
		}
	}
}

func (t *TouchedSet) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// Drain returns and clears the accumulated set.
func (t *TouchedSet) Drain() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ids) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(t.ids))
	for id := range t.ids {
		out = append(out, id)
	}
	t.ids = make(map[uuid.UUID]struct{})
	return out
}
