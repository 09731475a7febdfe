package memory

import (
	"context"
	"sync"

	"github.com/mcoot/wordsync/internal/dependencies/clock"
	"github.com/mcoot/wordsync/internal/dependencies/ids"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/storage"
)

// Operation names accepted by FailNext
const (
	OpRead      = "read"
	OpCreate    = "create"
	OpScalar    = "scalar"
	OpBatch     = "batch"
	OpSubscribe = "subscribe"
)

const subscriberBuffer = 64

// Storage is an in-memory implementation of the gateway interface
type Storage struct {
	mu sync.Mutex

	clock clock.Clock
	ids   ids.Generator

	documents   map[model.PlayerID]*model.Document
	subscribers map[model.PlayerID]map[*subscriber]struct{}
	failures    map[string][]error

	// EchoPendingWrites makes every write first notify subscribers with an
	// optimistic echo before the confirmed change
	EchoPendingWrites bool

	writes int
}

type subscriber struct {
	ch chan model.Change
}

// New creates a new in-memory storage instance
func New(clk clock.Clock, gen ids.Generator) *Storage {
	return &Storage{
		clock:       clk,
		ids:         gen,
		documents:   make(map[model.PlayerID]*model.Document),
		subscribers: make(map[model.PlayerID]map[*subscriber]struct{}),
		failures:    make(map[string][]error),
	}
}

// Ensure Storage implements the interface
var _ storage.Gateway = (*Storage)(nil)

// FailNext makes the next call of the named operation return err, leaving
// the store untouched. Calls queue up in order.
func (s *Storage) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Writes returns how many writes have been committed
func (s *Storage) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Delete removes a document without notifying subscribers, simulating a
// remote deletion
func (s *Storage) Delete(ctx context.Context, id model.PlayerID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}

// Put stores a document as-is and notifies subscribers, simulating a write
// from another session or a server job
func (s *Storage) Put(doc *model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := doc.Clone()
	s.documents[doc.PlayerID] = stored
	s.commitLocked(doc.PlayerID, stored)
}

func (s *Storage) Read(ctx context.Context, id model.PlayerID) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(OpRead); err != nil {
		return nil, err
	}
	doc, ok := s.documents[id]
	if !ok {
		return nil, model.ErrDocumentNotFound
	}
	return doc.Clone(), nil
}

func (s *Storage) Create(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(OpCreate); err != nil {
		return err
	}
	if _, ok := s.documents[doc.PlayerID]; ok {
		return model.ErrDocumentExists
	}
	stored := doc.Clone()
	stored.LastSeen = s.clock.Now()
	s.documents[doc.PlayerID] = stored
	s.commitLocked(doc.PlayerID, stored)
	return nil
}

func (s *Storage) Subscribe(ctx context.Context, id model.PlayerID) (<-chan model.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(OpSubscribe); err != nil {
		return nil, err
	}

	sub := &subscriber{ch: make(chan model.Change, subscriberBuffer)}
	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[*subscriber]struct{})
	}
	s.subscribers[id][sub] = struct{}{}

	if doc, ok := s.documents[id]; ok {
		sub.ch <- model.Change{Document: doc.Clone()}
	}

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers[id], sub)
		close(sub.ch)
	}()

	return sub.ch, nil
}

func (s *Storage) ApplyScalarUpdates(ctx context.Context, id model.PlayerID, fields map[model.Field]int64) error {
	if err := storage.ValidateScalarFields(fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(OpScalar); err != nil {
		return err
	}
	doc, ok := s.documents[id]
	if !ok {
		return model.ErrDocumentNotFound
	}

	ops := make([]model.Operation, 0, len(fields))
	for f, v := range fields {
		ops = append(ops, model.Operation{Kind: model.OpSet, Field: f, Value: v})
	}
	return s.applyLocked(id, doc, ops)
}

func (s *Storage) ApplyAtomicBatch(ctx context.Context, id model.PlayerID, ops []model.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injectedLocked(OpBatch); err != nil {
		return err
	}
	doc, ok := s.documents[id]
	if !ok {
		return model.ErrDocumentNotFound
	}
	return s.applyLocked(id, doc, ops)
}

// applyLocked commits ops against doc; nothing is stored if any op fails
func (s *Storage) applyLocked(id model.PlayerID, doc *model.Document, ops []model.Operation) error {
	next, err := doc.Apply(ops)
	if err != nil {
		return err
	}
	next.LastSeen = s.clock.Now()

	writeID := s.ids.NewID()
	if s.EchoPendingWrites {
		s.notifyLocked(id, model.Change{
			Document: next.Clone(),
			Metadata: model.Metadata{PendingWrite: true, WriteID: writeID},
		})
	}

	s.documents[id] = next
	s.writes++
	s.notifyLocked(id, model.Change{
		Document: next.Clone(),
		Metadata: model.Metadata{WriteID: writeID},
	})
	return nil
}

func (s *Storage) commitLocked(id model.PlayerID, doc *model.Document) {
	s.writes++
	s.notifyLocked(id, model.Change{
		Document: doc.Clone(),
		Metadata: model.Metadata{WriteID: s.ids.NewID()},
	})
}

// notifyLocked never blocks; a subscriber that fell a full buffer behind
// misses the change
func (s *Storage) notifyLocked(id model.PlayerID, change model.Change) {
	for sub := range s.subscribers[id] {
		select {
		case sub.ch <- change:
		default:
		}
	}
}

func (s *Storage) injectedLocked(op string) error {
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.failures[op] = queue[1:]
	return err
}
