package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/storage"
)

// Pending is the outcome of a batch running in the background
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// completed returns a Pending that is already resolved
func completed(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Done is closed once the batch has finished
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the batch finishes or ctx ends
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the batch error, or nil while it is still running
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// BatchError reports a batch the remote store did not accept
type BatchError struct {
	Op      string
	Err     error
	Retried bool
}

func (e *BatchError) Error() string {
	if e.Retried {
		return fmt.Sprintf("%s failed after recreating document: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Batcher issues atomic batches off the caller's goroutine. A batch hitting
// a missing document recreates it with defaults and is retried exactly once.
type Batcher struct {
	gateway  storage.Gateway
	defaults func(id model.PlayerID) *model.Document
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	inflight int
	idle     chan struct{} // closed while inflight is zero
}

// NewBatcher creates a Batcher. defaults builds the document used when a
// batch finds none.
func NewBatcher(gateway storage.Gateway, defaults func(id model.PlayerID) *model.Document, timeout time.Duration, logger *slog.Logger) *Batcher {
	idle := make(chan struct{})
	close(idle)
	return &Batcher{
		gateway:  gateway,
		defaults: defaults,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "batcher")),
		idle:     idle,
	}
}

// Submit starts the batch and returns immediately
func (b *Batcher) Submit(id model.PlayerID, op string, ops []model.Operation) *Pending {
	p := newPending()
	b.begin()
	go func() {
		defer b.end()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		p.resolve(b.run(ctx, id, op, ops))
	}()
	return p
}

// Wait blocks until no batch is in flight or ctx ends. Batches submitted
// while waiting are waited for too.
func (b *Batcher) Wait(ctx context.Context) error {
	b.mu.Lock()
	idle := b.idle
	b.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns how many batches are running
func (b *Batcher) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight
}

func (b *Batcher) begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inflight == 0 {
		b.idle = make(chan struct{})
	}
	b.inflight++
}

func (b *Batcher) end() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight--
	if b.inflight == 0 {
		close(b.idle)
	}
}

func (b *Batcher) run(ctx context.Context, id model.PlayerID, op string, ops []model.Operation) error {
	logger := b.logger.With(slog.String("player_id", string(id)), slog.String("op", op))

	err := b.gateway.ApplyAtomicBatch(ctx, id, ops)
	if err == nil {
		logger.Debug("batch committed", slog.Int("operations", len(ops)))
		return nil
	}
	if !errors.Is(err, model.ErrDocumentNotFound) {
		logger.Error("batch dropped", slog.String("error", err.Error()))
		return &BatchError{Op: op, Err: err}
	}

	logger.Warn("document missing, recreating with defaults")
	if err := b.gateway.Create(ctx, b.defaults(id)); err != nil && !errors.Is(err, model.ErrDocumentExists) {
		logger.Error("failed to recreate document", slog.String("error", err.Error()))
		return &BatchError{Op: op, Err: err}
	}

	if err := b.gateway.ApplyAtomicBatch(ctx, id, ops); err != nil {
		logger.Error("batch dropped after retry", slog.String("error", err.Error()))
		return &BatchError{Op: op, Err: err, Retried: true}
	}
	logger.Info("batch committed after recreating document")
	return nil
}
