package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process content store for development and tests
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   int
	failErr error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Publish stores obj under its computed CID
func (s *MemoryStore) Publish(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failErr != nil {
		return "", s.failErr
	}
	id, err := ComputeCID(obj.Data)
	if err != nil {
		return "", err
	}
	s.objects[id] = append([]byte(nil), obj.Data...)
	return id, nil
}

// Get returns the payload stored under cid
func (s *MemoryStore) Get(cid string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[cid]
	if !ok {
		return nil, fmt.Errorf("cid %s not found", cid)
	}
	return append([]byte(nil), data...), nil
}

// Calls returns how many times Publish was invoked
func (s *MemoryStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// FailWith makes every subsequent Publish return err; nil restores normal behaviour
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
