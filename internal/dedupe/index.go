package dedupe

import "sync"

// Index is the set of item ids already admitted to the feed.
// It is built from the prior snapshot at run start and passed explicitly
// through the run; MarkSeen is safe for concurrent writers.
type Index struct {
	mu    sync.Mutex
	items map[string]struct{}
}

// NewIndex creates an index preloaded with the given ids.
func NewIndex(ids ...string) *Index {
	idx := &Index{items: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		idx.items[id] = struct{}{}
	}
	return idx
}

// IsSeen returns true when the id is already present.
// It does not record the id; use MarkSeen() for that.
func (i *Index) IsSeen(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, ok := i.items[id]
	return ok
}

// MarkSeen records the id and reports whether it was newly added.
// A false return means another caller admitted the same id first.
func (i *Index) MarkSeen(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.items[id]; ok {
		return false
	}
	i.items[id] = struct{}{}
	return true
}

// Len returns the number of ids in the index.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
