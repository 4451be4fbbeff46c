package household

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanHill92/canvass/internal/apperr"
)

// Session is one operator's working list. Edits are last-write-wins.
type Session struct {
	ID string

	mu         sync.Mutex
	households []Household
	totalCount string
	searching  bool
	seeded     bool
	lastUsed   time.Time
}

// BeginSearch marks a search in flight. It fails with ErrConflict when one
// is already running for this session.
func (s *Session) BeginSearch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searching {
		return apperr.New(apperr.ErrConflict, http.StatusConflict, "a search is already running for this session")
	}
	s.searching = true
	return nil
}

// EndSearch clears the in-flight mark set by BeginSearch.
func (s *Session) EndSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searching = false
}

// Households returns a copy of the current list.
func (s *Session) Households() []Household {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Household, 0, len(s.households))
	for _, h := range s.households {
		out = append(out, h.clone())
	}
	return out
}

// TotalCount is the vendor's total record count from the last listing.
func (s *Session) TotalCount() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalCount == "" {
		return "0"
	}
	return s.totalCount
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// idle reports whether the session has gone unused since cutoff. A session
// with a search in flight is never idle.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.searching && s.lastUsed.Before(cutoff)
}

// evicter is implemented by stores whose annotations should go away with an
// idle session. Durable stores keep them so the session can be reopened.
type evicter interface {
	Evict(ctx context.Context, sessionID string) error
}

// Explorer tracks explorer sessions and persists their annotations through
// a Store. Sessions unused for longer than the idle TTL are dropped the
// next time a session is opened.
type Explorer struct {
	store    Store
	idleTTL  time.Duration
	now      func() time.Time
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewExplorer returns an Explorer saving annotations to store. An idleTTL of
// zero keeps sessions until they are discarded.
func NewExplorer(store Store, idleTTL time.Duration) *Explorer {
	return &Explorer{
		store:    store,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
		logger:   slog.Default().With("component", "explorer"),
	}
}

// Open returns the session with the given ID, creating it when missing. An
// empty ID starts a new session. A session created here that is never seeded
// should be given back with Abandon.
func (e *Explorer) Open(id string) *Session {
	now := e.now()
	evicted := e.sweep(now)
	for _, gone := range evicted {
		e.evict(gone)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	s, ok := e.sessions[id]
	if !ok {
		s = &Session{ID: id}
		e.sessions[id] = s
		e.logger.Debug("session opened", "session_id", id)
	}
	s.touch(now)
	return s
}

// Abandon unregisters s when no list was ever seeded into it, so a failed
// search does not leave an empty session behind.
func (e *Explorer) Abandon(s *Session) {
	s.mu.Lock()
	seeded := s.seeded
	s.mu.Unlock()
	if seeded {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions[s.ID] == s {
		delete(e.sessions, s.ID)
		e.logger.Debug("empty session abandoned", "session_id", s.ID)
	}
}

// Session returns an existing session.
func (e *Explorer) Session(id string) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, apperr.Newf(apperr.ErrNotFound, http.StatusNotFound, "no session %q", id)
	}
	s.touch(e.now())
	return s, nil
}

// Seed replaces the session list, reapplying any annotations the store holds
// for the same record IDs.
func (e *Explorer) Seed(ctx context.Context, s *Session, households []Household, totalCount string) error {
	saved, err := e.store.Annotations(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("loading annotations for session %s: %w", s.ID, err)
	}

	list := make([]Household, 0, len(households))
	for _, h := range households {
		if a, ok := saved[h.ID]; ok {
			h.Annotation = a.clone()
		} else {
			h.Annotation = h.Annotation.clone()
		}
		list = append(list, h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.households = list
	s.totalCount = totalCount
	s.seeded = true
	s.lastUsed = e.now()
	return nil
}

// Save copies a onto every household in the session whose ID or display
// address equals key, and records it in the store.
func (e *Explorer) Save(ctx context.Context, s *Session, key string, a Annotation) (Household, error) {
	if err := a.Validate(); err != nil {
		return Household{}, err
	}
	if a.ProductsNeeded == nil {
		a.ProductsNeeded = []Product{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = e.now()

	var matched []int
	for i, h := range s.households {
		if h.matches(key) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		return Household{}, apperr.Newf(apperr.ErrNotFound, http.StatusNotFound, "no household %q in session", key)
	}

	stored := make(map[string]bool, len(matched))
	for _, i := range matched {
		id := s.households[i].ID
		if stored[id] {
			continue
		}
		if err := e.store.SaveAnnotation(ctx, s.ID, id, a); err != nil {
			return Household{}, fmt.Errorf("saving annotation for %s: %w", id, err)
		}
		stored[id] = true
	}
	for _, i := range matched {
		s.households[i].Annotation = a.clone()
	}
	return s.households[matched[0]].clone(), nil
}

// Discard forgets a session and its annotations. A session with a search in
// flight cannot be discarded.
func (e *Explorer) Discard(ctx context.Context, id string) error {
	e.mu.Lock()
	s, ok := e.sessions[id]
	if !ok {
		e.mu.Unlock()
		return apperr.Newf(apperr.ErrNotFound, http.StatusNotFound, "no session %q", id)
	}
	s.mu.Lock()
	busy := s.searching
	s.mu.Unlock()
	if busy {
		e.mu.Unlock()
		return apperr.New(apperr.ErrConflict, http.StatusConflict, "a search is running for this session")
	}
	delete(e.sessions, id)
	e.mu.Unlock()

	if err := e.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("deleting annotations for session %s: %w", id, err)
	}
	e.logger.Debug("session discarded", "session_id", id)
	return nil
}

// Len is the number of live sessions.
func (e *Explorer) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// sweep unregisters idle sessions and returns their IDs.
func (e *Explorer) sweep(now time.Time) []string {
	if e.idleTTL <= 0 {
		return nil
	}
	cutoff := now.Add(-e.idleTTL)

	e.mu.Lock()
	defer e.mu.Unlock()
	var evicted []string
	for id, s := range e.sessions {
		if s.idle(cutoff) {
			delete(e.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (e *Explorer) evict(id string) {
	e.logger.Debug("idle session evicted", "session_id", id)
	ev, ok := e.store.(evicter)
	if !ok {
		return
	}
	if err := ev.Evict(context.Background(), id); err != nil {
		e.logger.Warn("failed to evict session annotations", "session_id", id, "error", err)
	}
}
