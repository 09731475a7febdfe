package progress

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/mcoot/wordsync/internal/dependencies/clock"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/storage"
)

// Coalescer batches scalar field writes for one player into a single
// ApplyScalarUpdates call once a quiet period passes with no new writes
type Coalescer struct {
	gateway storage.Gateway
	id      model.PlayerID
	window  time.Duration
	timeout time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	// beforeWrite runs ahead of every remote write
	beforeWrite func(target model.PlayerID)

	mu         sync.Mutex
	pending    map[model.Field]int64
	timer      clock.Timer
	generation uint64
	closed     bool
	inflight   sync.WaitGroup
}

// NewCoalescer creates a coalescer writing to id's document
func NewCoalescer(
	gateway storage.Gateway,
	id model.PlayerID,
	window time.Duration,
	timeout time.Duration,
	clk clock.Clock,
	logger *slog.Logger,
) *Coalescer {
	return &Coalescer{
		gateway:     gateway,
		id:          id,
		window:      window,
		timeout:     timeout,
		clock:       clk,
		logger:      logger.With(slog.String("component", "coalescer"), slog.String("player_id", string(id))),
		beforeWrite: func(model.PlayerID) {},
		pending:     make(map[model.Field]int64),
	}
}

// QueueUpdate records value for field, replacing any queued value, and
// restarts the quiet-period timer
func (c *Coalescer) QueueUpdate(field model.Field, value int64) error {
	if !field.IsScalar() {
		return &storage.FieldError{Field: field}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return model.ErrStoreClosed
	}

	c.pending[field] = value
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.generation
	c.timer = c.clock.AfterFunc(c.window, func() { c.fire(gen) })
	return nil
}

// Flush writes everything queued now, cancelling the timer
func (c *Coalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	batch := c.takeLocked()
	c.mu.Unlock()

	if batch == nil {
		return nil
	}
	return c.write(ctx, batch)
}

// Pending returns a copy of the queued fields
func (c *Coalescer) Pending() map[model.Field]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.pending)
}

// Close stops the timer and waits for in-flight writes. Anything still
// queued is discarded; Flush first to keep it.
func (c *Coalescer) Close() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.inflight.Wait()
}

// fire runs when the quiet-period timer expires. A timer reset after it
// started running carries an old generation and does nothing.
func (c *Coalescer) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	batch := c.takeLocked()
	c.mu.Unlock()

	if batch == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.write(ctx, batch)
}

// takeLocked hands the queued fields to a writer, registering the write
// as in flight
func (c *Coalescer) takeLocked() map[model.Field]int64 {
	if len(c.pending) == 0 {
		return nil
	}
	batch := c.pending
	c.pending = make(map[model.Field]int64)
	c.inflight.Add(1)
	return batch
}

func (c *Coalescer) write(ctx context.Context, batch map[model.Field]int64) error {
	defer c.inflight.Done()

	c.beforeWrite(c.id)
	err := c.gateway.ApplyScalarUpdates(ctx, c.id, batch)
	if err == nil {
		c.logger.Debug("scalar updates flushed", slog.Int("fields", len(batch)))
		return nil
	}

	// Put the fields back for the next cycle unless newer values arrived
	c.mu.Lock()
	for field, v := range batch {
		if _, newer := c.pending[field]; !newer {
			c.pending[field] = v
		}
	}
	c.mu.Unlock()

	c.logger.Warn("scalar flush failed, fields re-queued",
		slog.Int("fields", len(batch)),
		slog.String("error", err.Error()))
	return err
}
