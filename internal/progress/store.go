// Package progress keeps a player's local progress in step with the remote
// document store. All reads and writes of local state run on a single owner
// goroutine; network calls run elsewhere and hand their results back to it.
package progress

import (
	"log/slog"
	"sync"

	"github.com/mcoot/wordsync/internal/dependencies/clock"
	"github.com/mcoot/wordsync/internal/model"
)

const eventBuffer = 64

// TransitionFunc computes the next local state from a private copy of the
// current one, which is nil when nothing is loaded. Returning an empty event
// type leaves the store untouched.
type TransitionFunc func(current *model.Progress) (*model.Progress, model.EventType, error)

// Store is the single authoritative in-memory copy of a player's progress
type Store struct {
	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once
	clock     clock.Clock
	logger    *slog.Logger

	// owned by the run goroutine
	current     *model.Progress
	subscribers map[int]chan model.Event
	nextSubID   int
}

// NewStore starts the owner goroutine; call Close to stop it
func NewStore(clk clock.Clock, logger *slog.Logger) *Store {
	s := &Store{
		ops:         make(chan func()),
		done:        make(chan struct{}),
		clock:       clk,
		logger:      logger.With(slog.String("component", "progress-store")),
		subscribers: make(map[int]chan model.Event),
	}
	go s.run()
	return s
}

func (s *Store) run() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			for id, ch := range s.subscribers {
				close(ch)
				delete(s.subscribers, id)
			}
			return
		}
	}
}

// do runs fn on the owner goroutine and waits for it to finish
func (s *Store) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.ops <- func() { fn(); close(finished) }:
	case <-s.done:
		return model.ErrStoreClosed
	}
	<-finished
	return nil
}

// Transition applies fn on the owner goroutine. On success it stores the
// result, notifies subscribers and returns a copy of the new state.
func (s *Store) Transition(fn TransitionFunc) (*model.Progress, error) {
	var (
		result *model.Progress
		err    error
	)
	doErr := s.do(func() {
		next, eventType, fnErr := fn(s.current.Clone())
		if fnErr != nil {
			err = fnErr
			return
		}
		if eventType == "" {
			result = s.current.Clone()
			return
		}
		playerID := playerIDOf(next)
		if eventType == model.EventProgressCleared {
			playerID = playerIDOf(s.current)
			next = nil
		}
		s.current = next
		s.emit(eventType, playerID)
		result = s.current.Clone()
	})
	if doErr != nil {
		return nil, doErr
	}
	return result, err
}

// Update applies a local mutation to loaded progress. fn reports whether it
// changed anything; unchanged updates emit nothing.
func (s *Store) Update(fn func(p *model.Progress) (bool, error)) (*model.Progress, bool, error) {
	var changed bool
	p, err := s.Transition(func(current *model.Progress) (*model.Progress, model.EventType, error) {
		if current == nil {
			return nil, "", model.ErrProgressNotLoaded
		}
		ok, err := fn(current)
		if err != nil || !ok {
			return nil, "", err
		}
		changed = true
		return current, model.EventProgressMutated, nil
	})
	return p, changed, err
}

// Snapshot returns a copy of the current progress
func (s *Store) Snapshot() (*model.Progress, error) {
	p, err := s.Transition(func(*model.Progress) (*model.Progress, model.EventType, error) {
		return nil, "", nil
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, model.ErrProgressNotLoaded
	}
	return p, nil
}

// Clear drops the loaded progress, emitting progress_cleared if there was any
func (s *Store) Clear() error {
	_, err := s.Transition(func(current *model.Progress) (*model.Progress, model.EventType, error) {
		if current == nil {
			return nil, "", nil
		}
		return nil, model.EventProgressCleared, nil
	})
	return err
}

// Subscribe returns a buffered stream of store events and a function that
// ends the subscription. Events are dropped for subscribers that fall behind.
func (s *Store) Subscribe() (<-chan model.Event, func()) {
	ch := make(chan model.Event, eventBuffer)
	var id int
	if err := s.do(func() {
		id = s.nextSubID
		s.nextSubID++
		s.subscribers[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			_ = s.do(func() {
				if _, ok := s.subscribers[id]; ok {
					delete(s.subscribers, id)
					close(ch)
				}
			})
		})
	}
}

// Close stops the owner goroutine and closes every subscriber stream
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// emit runs on the owner goroutine
func (s *Store) emit(eventType model.EventType, playerID model.PlayerID) {
	event := model.Event{
		Type:      eventType,
		Timestamp: s.clock.Now(),
		PlayerID:  playerID,
	}

	for id, ch := range s.subscribers {
		e := event
		e.Progress = s.current.Clone()
		select {
		case ch <- e:
		default:
			s.logger.Warn("event dropped - subscriber buffer full",
				slog.Int("subscriber", id),
				slog.String("event", string(eventType)))
		}
	}
}

func playerIDOf(p *model.Progress) model.PlayerID {
	if p == nil {
		return ""
	}
	return p.PlayerID
}
