package conversation

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Mutator is the mutation capability handed to action providers, custom
// messages and widgets.
type Mutator interface {
	Mutate(fn Updater) error
	Read() State
}

// Store owns the conversation state. All writes go through Mutate; readers get
// snapshot copies.
type Store struct {
	mu    sync.Mutex
	state State

	subsMu sync.RWMutex
	nextID int
	subs   map[int]func(State)
}

var _ Mutator = &Store{}

func NewStore(initial State) (*Store, error) {
	initial = initial.Clone()
	if err := initial.validate(); err != nil {
		return nil, err
	}
	return &Store{
		state: initial,
		subs:  map[int]func(State){},
	}, nil
}

// Mutate applies fn to a copy of the current state. Results that break id
// uniqueness are rejected and the state is left as it was. Subscribers are
// notified after the write, outside the store lock.
func (s *Store) Mutate(fn Updater) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	next := fn(s.state.Clone())
	if err := next.validate(); err != nil {
		s.mu.Unlock()
		log.Warn().Err(err).Str("component", "conversation").Msg("rejected conversation mutation")
		return err
	}
	s.state = next
	snapshot := next.Clone()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

func (s *Store) Read() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for change notifications and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *Store) notify(state State) {
	s.subsMu.RLock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn(state.Clone())
	}
}
