package household

import (
	"context"
	"sync"
)

// Store keeps annotations per explorer session, keyed by record ID.
type Store interface {
	SaveAnnotation(ctx context.Context, sessionID, recordID string, a Annotation) error
	Annotations(ctx context.Context, sessionID string) (map[string]Annotation, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Annotation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[string]Annotation)}
}

func (s *MemoryStore) SaveAnnotation(_ context.Context, sessionID, recordID string, a Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes, ok := s.sessions[sessionID]
	if !ok {
		notes = make(map[string]Annotation)
		s.sessions[sessionID] = notes
	}
	notes[recordID] = a.clone()
	return nil
}

func (s *MemoryStore) Annotations(_ context.Context, sessionID string) (map[string]Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Annotation, len(s.sessions[sessionID]))
	for id, a := range s.sessions[sessionID] {
		out[id] = a.clone()
	}
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Evict drops the annotations of an idle session. Nothing outlives the
// process here, so an evicted session could not be resumed anyway.
func (s *MemoryStore) Evict(ctx context.Context, sessionID string) error {
	return s.DeleteSession(ctx, sessionID)
}
