package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mcoot/wordsync/internal/canon"
	"github.com/mcoot/wordsync/internal/dependencies/clock"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/progression"
	"github.com/mcoot/wordsync/internal/storage"
)

// session is one signed-in identity with its subscription
type session struct {
	id        model.PlayerID
	gate      *Gate // touched only inside store transitions
	coalescer *Coalescer
	cancel    context.CancelFunc
	pumpDone  chan struct{}
	loaded    chan struct{}
	loadOnce  sync.Once
}

func (s *session) markLoaded() {
	s.loadOnce.Do(func() { close(s.loaded) })
}

// Engine is the entry point for gameplay code. It owns the local store, the
// remote subscription for the signed-in player and every write path.
type Engine struct {
	cfg        Config
	gateway    storage.Gateway
	order      *progression.Order
	store      *Store
	reconciler *Reconciler
	batcher    *Batcher
	clock      clock.Clock
	logger     *slog.Logger

	// mu serializes identity changes against gameplay operations
	mu      sync.RWMutex
	current atomic.Pointer[session]
}

// NewEngine creates an engine with no identity
func NewEngine(
	cfg Config,
	gateway storage.Gateway,
	order *progression.Order,
	clk clock.Clock,
	logger *slog.Logger,
) *Engine {
	e := &Engine{
		cfg:        cfg,
		gateway:    gateway,
		order:      order,
		store:      NewStore(clk, logger),
		reconciler: NewReconciler(logger),
		clock:      clk,
		logger:     logger.With(slog.String("component", "progress-engine")),
	}
	e.batcher = NewBatcher(gateway, e.defaultDocument, cfg.WriteTimeout, logger)
	e.logger.Debug("engine created", slog.Bool("write_assertions", assertionsEnabled))
	return e
}

func (e *Engine) defaultDocument(id model.PlayerID) *model.Document {
	return model.DefaultDocument(id, e.order.First(), e.cfg.SignupBonus)
}

// Identity returns the signed-in player, or "" when signed out
func (e *Engine) Identity() model.PlayerID {
	if sess := e.current.Load(); sess != nil {
		return sess.id
	}
	return ""
}

// SetIdentity signs id in. Writes queued for the previous player are flushed
// and its subscription ends; the new subscription starts from scratch.
func (e *Engine) SetIdentity(ctx context.Context, id model.PlayerID) error {
	if id == "" {
		return model.ErrNoIdentity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.current.Load(); prev != nil {
		if prev.id == id {
			return nil
		}
		e.endSession(ctx, prev)
	}

	if _, err := e.gateway.Read(ctx, id); err != nil {
		if !errors.Is(err, model.ErrDocumentNotFound) {
			return fmt.Errorf("read progress: %w", err)
		}
		err = e.gateway.Create(ctx, e.defaultDocument(id))
		if err != nil && !errors.Is(err, model.ErrDocumentExists) {
			return fmt.Errorf("create progress: %w", err)
		}
		e.logger.Info("progress document created", slog.String("player_id", string(id)))
	}

	subCtx, cancel := context.WithCancel(context.Background())
	changes, err := e.gateway.Subscribe(subCtx, id)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe: %w", err)
	}

	sess := &session{
		id:        id,
		gate:      NewGate(),
		coalescer: NewCoalescer(e.gateway, id, e.cfg.DebounceWindow, e.cfg.WriteTimeout, e.clock, e.logger),
		cancel:    cancel,
		pumpDone:  make(chan struct{}),
		loaded:    make(chan struct{}),
	}
	sess.coalescer.beforeWrite = e.checkTarget
	e.current.Store(sess)
	go e.pump(sess, changes)

	e.logger.Info("identity set", slog.String("player_id", string(id)))
	return nil
}

// SignOut flushes queued writes, ends the subscription and clears local state
func (e *Engine) SignOut(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.current.Load()
	if sess == nil {
		return nil
	}
	e.endSession(ctx, sess)
	e.logger.Info("signed out", slog.String("player_id", string(sess.id)))
	return nil
}

// endSession must be called with mu held
func (e *Engine) endSession(ctx context.Context, sess *session) {
	if err := sess.coalescer.Flush(ctx); err != nil {
		e.logger.Warn("flush before identity change failed",
			slog.String("player_id", string(sess.id)),
			slog.String("error", err.Error()))
	}
	sess.coalescer.Close()

	e.current.Store(nil)
	sess.cancel()
	<-sess.pumpDone

	if err := e.store.Clear(); err != nil && !errors.Is(err, model.ErrStoreClosed) {
		e.logger.Warn("failed to clear progress", slog.String("error", err.Error()))
	}
}

// AwaitLoaded blocks until the signed-in player's first snapshot is in the
// local store
func (e *Engine) AwaitLoaded(ctx context.Context) error {
	sess := e.current.Load()
	if sess == nil {
		return model.ErrNoIdentity
	}
	select {
	case <-sess.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump hands every notification of a subscription to the store's owner
func (e *Engine) pump(sess *session, changes <-chan model.Change) {
	defer close(sess.pumpDone)

	for change := range changes {
		_, err := e.store.Transition(func(local *model.Progress) (*model.Progress, model.EventType, error) {
			if e.current.Load() != sess {
				return nil, "", nil
			}
			next, eventType := e.reconciler.Reconcile(sess.gate, sess.id, local, change, sess.coalescer.Pending())
			if eventType == model.EventProgressLoaded {
				sess.markLoaded()
			}
			return next, eventType, nil
		})
		if errors.Is(err, model.ErrStoreClosed) {
			return
		}
	}
}

// Snapshot returns a copy of the local progress
func (e *Engine) Snapshot() (*model.Progress, error) {
	if e.current.Load() == nil {
		return nil, model.ErrNoIdentity
	}
	return e.store.Snapshot()
}

// Subscribe streams local store events; call the returned function to stop
func (e *Engine) Subscribe() (<-chan model.Event, func()) {
	return e.store.Subscribe()
}

// FindWord records word as found in unit and grants the word reward.
// An empty unit means the current progression marker. A word already found
// changes nothing and issues no write.
func (e *Engine) FindWord(unit, word string) (*Pending, error) {
	token := canon.Token(word)
	if token == "" {
		return nil, model.ErrInvalidToken
	}
	unit = canon.Unit(unit)

	return e.mutate("find_word", func(sess *session, p *model.Progress) ([]model.Operation, error) {
		if unit == "" {
			unit = canon.UnitKey(p.ProgressionMarker)
		}
		if !p.AddWord(unit, token) {
			return nil, nil
		}
		p.Counters[model.CounterWordsFound]++
		p.Currency += e.cfg.WordReward

		return []model.Operation{
			model.UnionWords(unit, token),
			model.Increment(model.CounterField(model.CounterWordsFound), 1),
			model.Increment(model.FieldCurrency, e.cfg.WordReward),
		}, nil
	})
}

// FindBonusWord records a bonus token and grants the bonus reward
func (e *Engine) FindBonusWord(word string) (*Pending, error) {
	token := canon.Token(word)
	if token == "" {
		return nil, model.ErrInvalidToken
	}

	return e.mutate("find_bonus_word", func(sess *session, p *model.Progress) ([]model.Operation, error) {
		if !p.BonusTokens.Add(token) {
			return nil, nil
		}
		p.Counters[model.CounterBonusWordsFound]++
		p.Currency += e.cfg.BonusReward

		return []model.Operation{
			model.UnionBonus(token),
			model.Increment(model.CounterField(model.CounterBonusWordsFound), 1),
			model.Increment(model.FieldCurrency, e.cfg.BonusReward),
		}, nil
	})
}

// CompleteLevel moves the marker to the next unit of the progression and
// grants the level reward. It emits progression_advanced locally; the remote
// confirmation then merges without navigating again.
func (e *Engine) CompleteLevel() (*Pending, error) {
	return e.mutateEvent("complete_level", model.EventProgressionAdvanced, func(sess *session, p *model.Progress) ([]model.Operation, error) {
		next, err := e.order.Next(p.ProgressionMarker)
		if err != nil {
			return nil, err
		}
		p.ProgressionMarker = next
		p.Counters[model.CounterLevelsCompleted]++
		p.Counters[model.CounterCurrentStreak]++
		p.Currency += e.cfg.LevelReward
		sess.gate.Advance(next)

		return []model.Operation{
			model.SetMarker(next),
			model.Increment(model.CounterField(model.CounterLevelsCompleted), 1),
			model.Increment(model.CounterField(model.CounterCurrentStreak), 1),
			model.Increment(model.FieldCurrency, e.cfg.LevelReward),
		}, nil
	})
}

// Spend deducts amount and bumps counter, if set. It fails with
// ErrInsufficientCurrency, touching nothing, when the balance is too low.
func (e *Engine) Spend(amount int64, counter string) (*Pending, error) {
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}

	return e.mutate("spend", func(sess *session, p *model.Progress) ([]model.Operation, error) {
		if p.Currency < amount {
			return nil, model.ErrInsufficientCurrency
		}
		p.Currency -= amount
		ops := []model.Operation{model.Increment(model.FieldCurrency, -amount)}
		if counter != "" {
			p.Counters[counter]++
			ops = append(ops, model.Increment(model.CounterField(counter), 1))
		}
		return ops, nil
	})
}

// UseHint spends the hint cost
func (e *Engine) UseHint() (*Pending, error) {
	return e.Spend(e.cfg.HintCost, model.CounterHintsUsed)
}

// UseReveal spends the reveal cost
func (e *Engine) UseReveal() (*Pending, error) {
	return e.Spend(e.cfg.RevealCost, model.CounterRevealsUsed)
}

// ResetUnit clears every token found in unit
func (e *Engine) ResetUnit(unit string) (*Pending, error) {
	unit = canon.Unit(unit)
	if unit == "" {
		return nil, model.ErrInvalidUnit
	}

	return e.mutate("reset_unit", func(sess *session, p *model.Progress) ([]model.Operation, error) {
		delete(p.FoundWords, unit)
		return []model.Operation{model.ClearUnit(unit)}, nil
	})
}

// SetCounter sets a counter locally and queues it for the next debounced flush
func (e *Engine) SetCounter(name string, value int64) error {
	if value < 0 {
		return model.ErrInvalidAmount
	}
	return e.setCounter(name, func(int64) int64 { return value })
}

// RecordFailure bumps the consecutive failure counter
func (e *Engine) RecordFailure() error {
	return e.setCounter(model.CounterConsecutiveFailures, func(v int64) int64 { return v + 1 })
}

// ResetFailures zeroes the consecutive failure counter
func (e *Engine) ResetFailures() error {
	return e.setCounter(model.CounterConsecutiveFailures, func(int64) int64 { return 0 })
}

func (e *Engine) setCounter(name string, next func(current int64) int64) error {
	field := model.CounterField(name)
	if !field.IsScalar() {
		return &storage.FieldError{Field: field}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	sess := e.current.Load()
	if sess == nil {
		return model.ErrNoIdentity
	}

	_, _, err := e.store.Update(func(p *model.Progress) (bool, error) {
		value := next(p.Counter(name))
		if err := sess.coalescer.QueueUpdate(field, value); err != nil {
			return false, err
		}
		p.Counters[name] = value
		return true, nil
	})
	return err
}

// Flush writes queued scalar updates now, for suspend and teardown paths
func (e *Engine) Flush(ctx context.Context) error {
	sess := e.current.Load()
	if sess == nil {
		return nil
	}
	return sess.coalescer.Flush(ctx)
}

// Drain waits for every in-flight batch
func (e *Engine) Drain(ctx context.Context) error {
	return e.batcher.Wait(ctx)
}

// Close signs out, waits for in-flight batches and stops the store
func (e *Engine) Close(ctx context.Context) error {
	_ = e.SignOut(ctx)
	err := e.batcher.Wait(ctx)
	e.store.Close()
	return err
}

// mutation changes p in place and returns the operations that persist the
// change, or none when nothing changed
type mutation func(sess *session, p *model.Progress) ([]model.Operation, error)

func (e *Engine) mutate(op string, fn mutation) (*Pending, error) {
	return e.mutateEvent(op, model.EventProgressMutated, fn)
}

// mutateEvent applies fn to local progress on the store's owner and submits
// the resulting operations as one atomic batch
func (e *Engine) mutateEvent(op string, eventType model.EventType, fn mutation) (*Pending, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sess := e.current.Load()
	if sess == nil {
		return nil, model.ErrNoIdentity
	}

	var ops []model.Operation
	_, err := e.store.Transition(func(current *model.Progress) (*model.Progress, model.EventType, error) {
		if current == nil {
			return nil, "", model.ErrProgressNotLoaded
		}
		var err error
		ops, err = fn(sess, current)
		if err != nil || len(ops) == 0 {
			return nil, "", err
		}
		return current, eventType, nil
	})
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return completed(nil), nil
	}

	e.checkTarget(sess.id)
	return e.batcher.Submit(sess.id, op, ops), nil
}

// checkTarget is the debug-build guard against writing another player's document
func (e *Engine) checkTarget(target model.PlayerID) {
	assertTarget(target, e.Identity())
}
