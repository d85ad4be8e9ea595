// Package memory provides an in-process implementation of host.Storage.
// It also implements host.Watcher so callers can react to writes instead of polling.
package memory

import (
	"context"
	"sync"

	"github.com/h0rv/sumup/internal/host"
)

// watchBuffer is the per-subscriber channel capacity. A subscriber that falls
// further behind misses changes rather than blocking writers.
const watchBuffer = 16

type entryKey struct {
	scope host.Scope
	vis   host.Visibility
	key   string
}

// Store is a map-backed host.Storage. Values are stored encoded so callers
// never share mutable state with the store.
type Store struct {
	mu     sync.RWMutex
	data   map[entryKey][]byte
	subs   map[int]chan host.Change
	nextID int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[entryKey][]byte),
		subs: make(map[int]chan host.Change),
	}
}

// Get decodes the value stored under key into dest.
func (s *Store) Get(ctx context.Context, scope host.Scope, vis host.Visibility, key string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	data, ok := s.data[entryKey{scope, vis, key}]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := host.Decode(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key and notifies watchers.
func (s *Store) Set(ctx context.Context, scope host.Scope, vis host.Visibility, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := host.Encode(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[entryKey{scope, vis, key}] = data
	s.notifyLocked(host.Change{Scope: scope, Visibility: vis, Key: key})
	s.mu.Unlock()
	return nil
}

// Remove deletes the value stored under key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, scope host.Scope, vis host.Visibility, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	ek := entryKey{scope, vis, key}
	if _, ok := s.data[ek]; ok {
		delete(s.data, ek)
		s.notifyLocked(host.Change{Scope: scope, Visibility: vis, Key: key})
	}
	s.mu.Unlock()
	return nil
}

// Watch subscribes to changes until ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan host.Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan host.Change, watchBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

func (s *Store) notifyLocked(change host.Change) {
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
