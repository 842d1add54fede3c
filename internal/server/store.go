package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/colorboost/internal/preview"
)

// ErrNotFound is returned for unknown image ids.
var ErrNotFound = errors.New("image not found")

// Store keeps uploaded images as preview sessions, evicting the oldest
// upload once capacity is reached.
type Store struct {
	mu       sync.Mutex
	images   map[string]*preview.Session
	order    []string
	capacity int
}

// NewStore creates a store holding at most capacity images.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		images:   make(map[string]*preview.Session),
		capacity: capacity,
	}
}

// Add stores s under a fresh id and returns the id together with the id of
// an evicted image, if any.
func (st *Store) Add(s *preview.Session) (id string, evicted string) {
	id = uuid.NewString()

	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.order) >= st.capacity {
		evicted = st.order[0]
		st.order = st.order[1:]
		delete(st.images, evicted)
	}

	st.images[id] = s
	st.order = append(st.order, id)
	return id, evicted
}

// Get returns the session stored under id.
func (st *Store) Get(id string) (*preview.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.images[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes id from the store.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.images[id]; !ok {
		return ErrNotFound
	}
	delete(st.images, id)
	for i, v := range st.order {
		if v == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored images.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.images)
}
