// Package store is the explicit state container for a triage session. All
// mutations go through named Command values applied with Store.Apply, which
// returns a ChangeSet notification; derived data comes from pure selector
// functions over a read snapshot. There are no implicit cross-component
// subscriptions: interested parties register a listener and react to the
// ChangeSet.
package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

// Session is the mutable state of one triage session. It is owned by a
// Store and must only be touched through commands.
type Session struct {
	ID       uuid.UUID
	Features map[int]model.Feature
	Points   []model.Point
	Stage    model.Stage
	// Histories holds one ledger per stage, created lazily on first entry.
	Histories map[model.Stage]*labeling.History
	Grid      *spatial.Grid
	Selection []int // sorted feature IDs
}

// ChangeSet says which parts of the session a command touched. Zero value
// means "nothing changed".
type ChangeSet struct {
	Stage     bool
	Grid      bool
	Labels    bool
	Selection bool
	History   bool
}

// Any reports whether anything changed.
func (c ChangeSet) Any() bool {
	return c.Stage || c.Grid || c.Labels || c.Selection || c.History
}

func (c ChangeSet) merge(o ChangeSet) ChangeSet {
	return ChangeSet{
		Stage:     c.Stage || o.Stage,
		Grid:      c.Grid || o.Grid,
		Labels:    c.Labels || o.Labels,
		Selection: c.Selection || o.Selection,
		History:   c.History || o.History,
	}
}

// Command is a named state mutation. Implementations live in commands.go;
// apply runs with the store lock held.
type Command interface {
	Name() string
	apply(*Session) (ChangeSet, error)
}

// Listener receives change notifications after a command applies.
type Listener func(ChangeSet)

// Store owns a Session. All access is serialized: the UI loop drives it
// directly, and the HTTP server shares it across request goroutines, so a
// mutex guards the boundary.
type Store struct {
	mu        sync.Mutex
	session   *Session
	listeners map[int]Listener
	nextSub   int
}

// New creates a store around a fresh session for the given features.
// The session starts in the split stage with an empty grid.
func New(features []model.Feature) *Store {
	byID := make(map[int]model.Feature, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}
	return &Store{
		session: &Session{
			ID:        uuid.New(),
			Features:  byID,
			Stage:     model.StageSplit,
			Histories: make(map[model.Stage]*labeling.History),
			Grid:      spatial.Build(nil, 1),
		},
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns its removal function.
// Listeners run synchronously on the applying goroutine, after the lock is
// released.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Apply runs a command against the session and notifies listeners of the
// resulting ChangeSet. On error the session is left as the command left it;
// commands are responsible for failing before mutating.
func (s *Store) Apply(cmd Command) (ChangeSet, error) {
	s.mu.Lock()
	cs, err := cmd.apply(s.session)
	var ls []Listener
	if cs.Any() {
		ls = make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			ls = append(ls, l)
		}
	}
	s.mu.Unlock()

	debug.Log("store: %s -> %+v err=%v", cmd.Name(), cs, err)
	for _, l := range ls {
		l(cs)
	}
	return cs, err
}

// View runs fn with read access to the session. The session must not be
// retained or mutated; selectors copy what they return.
func (s *Store) View(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.session)
}

// history returns the ledger for the session's active stage, creating it
// (with its implicit initial commit) on first entry.
func (sess *Session) history() *labeling.History {
	h, ok := sess.Histories[sess.Stage]
	if !ok {
		ids := make([]int, 0, len(sess.Features))
		for id := range sess.Features {
			ids = append(ids, id)
		}
		h = labeling.NewHistory(labeling.NewState(sess.Stage, ids))
		sess.Histories[sess.Stage] = h
	}
	return h
}

// AttachHistory installs a previously persisted ledger for its stage,
// replacing any in-memory one. It rejects ledgers for unknown stages.
func (s *Store) AttachHistory(h *labeling.History) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stage := h.State().Stage()
	if !stage.Valid() {
		return fmt.Errorf("ledger has invalid stage %q", stage)
	}
	s.session.Histories[stage] = h
	return nil
}
