package factory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/wordsync/internal/canon"
	"github.com/mcoot/wordsync/internal/dependencies/mocks"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/progress"
	redisstorage "github.com/mcoot/wordsync/internal/storage/redis"
	"github.com/mcoot/wordsync/internal/testutil"
)

const waitFor = 2 * time.Second

// deleter removes a document without notifying subscribers, as a remote
// admin wipe would
type deleter interface {
	Delete(ctx context.Context, id model.PlayerID) error
}

type IntegrationSuite struct {
	suite.Suite
	backend string
	app     *TestApp
	events  <-chan model.Event
	stop    func()
	ctx     context.Context
}

func TestIntegrationMemory(t *testing.T) {
	suite.Run(t, &IntegrationSuite{backend: StorageTypeMemory})
}

func TestIntegrationRedis(t *testing.T) {
	suite.Run(t, &IntegrationSuite{backend: StorageTypeRedis})
}

func (s *IntegrationSuite) SetupTest() {
	s.ctx = context.Background()

	switch s.backend {
	case StorageTypeRedis:
		mini := miniredis.RunT(s.T())
		client := redis.NewClient(&redis.Options{Addr: mini.Addr(), MaxRetries: -1})
		cfg := redisstorage.DefaultConfig()
		cfg.MaxTxRetries = 100
		mockIDs := mocks.NewMockIDs()
		gateway := redisstorage.NewWithClient(client, cfg, mockIDs, testutil.NopLogger())
		s.T().Cleanup(func() { _ = gateway.Close() })
		clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		s.app = NewTestAppWithGateway(gateway, clk, mockIDs)
	default:
		s.app = NewTestApp()
	}

	s.events, s.stop = s.app.Engine.Subscribe()
}

func (s *IntegrationSuite) TearDownTest() {
	s.stop()
	s.NoError(s.app.Close(s.ctx))
}

func (s *IntegrationSuite) seed(id model.PlayerID, marker int, currency int64) {
	s.Require().NoError(s.app.Gateway.Create(s.ctx, model.DefaultDocument(id, marker, currency)))
}

func (s *IntegrationSuite) signIn(id model.PlayerID) {
	s.Require().NoError(s.app.Engine.SetIdentity(s.ctx, id))
	ctx, cancel := context.WithTimeout(s.ctx, waitFor)
	defer cancel()
	s.Require().NoError(s.app.Engine.AwaitLoaded(ctx))
}

func (s *IntegrationSuite) wait(p *progress.Pending, err error) {
	s.Require().NoError(err)
	ctx, cancel := context.WithTimeout(s.ctx, waitFor)
	defer cancel()
	s.Require().NoError(p.Wait(ctx))
}

func (s *IntegrationSuite) remote(id model.PlayerID) *model.Document {
	doc, err := s.app.Gateway.Read(s.ctx, id)
	s.Require().NoError(err)
	return doc
}

func (s *IntegrationSuite) snapshot() *model.Progress {
	p, err := s.app.Engine.Snapshot()
	s.Require().NoError(err)
	return p
}

// collectEvents gathers events until the stream is quiet
func (s *IntegrationSuite) collectEvents() []model.Event {
	var events []model.Event
	for {
		select {
		case e := <-s.events:
			events = append(events, e)
		case <-time.After(100 * time.Millisecond):
			return events
		}
	}
}

// drainEvents collects event types until the stream is quiet
func (s *IntegrationSuite) drainEvents() []model.EventType {
	var types []model.EventType
	for _, e := range s.collectEvents() {
		types = append(types, e.Type)
	}
	return types
}

func (s *IntegrationSuite) TestNewPlayerStartsAtFirstUnit() {
	s.signIn("alice")

	s.Equal(s.app.Order.First(), s.snapshot().ProgressionMarker)
	s.Equal(s.app.Order.First(), s.remote("alice").ProgressionMarker)
	s.Equal([]model.EventType{model.EventProgressLoaded}, s.drainEvents())
}

// Scenario: remote tokens for the current unit merge into local ones
func (s *IntegrationSuite) TestRemoteTokensUnionWithLocal() {
	s.seed("alice", 2, 0)
	s.signIn("alice")
	s.wait(s.app.Engine.FindWord("2", "cat"))
	s.wait(s.app.Engine.FindWord("2", "dog"))

	err := s.app.Gateway.ApplyAtomicBatch(s.ctx, "alice", []model.Operation{
		model.UnionWords("2", canon.Token("DOG"), canon.Token("RAT")),
	})
	s.Require().NoError(err)

	want := model.NewTokenSet(canon.Token("cat"), canon.Token("dog"), canon.Token("rat"))
	s.Eventually(func() bool {
		return len(s.snapshot().FoundWords["2"]) == len(want)
	}, waitFor, 10*time.Millisecond)
	s.Equal(want, s.snapshot().FoundWords["2"])
	s.Equal(2, s.snapshot().ProgressionMarker)
}

// Scenario: a level completion against a deleted document recreates it
func (s *IntegrationSuite) TestCompleteLevelRecreatesDeletedDocument() {
	s.seed("alice", 4, 0)
	s.signIn("alice")

	del, ok := s.app.Gateway.(deleter)
	s.Require().True(ok)
	s.Require().NoError(del.Delete(s.ctx, "alice"))

	s.wait(s.app.Engine.CompleteLevel())

	doc := s.remote("alice")
	s.Equal(5, doc.ProgressionMarker)
	s.Equal(int64(50), doc.Currency)
	s.Equal(int64(1), doc.Counters[model.CounterLevelsCompleted])

	// One navigation, and the recreated defaults never pull the marker back
	var advanced []int
	for _, e := range s.collectEvents() {
		s.Equal(5, e.Progress.ProgressionMarker, "event %s", e.Type)
		if e.Type == model.EventProgressionAdvanced {
			advanced = append(advanced, e.Progress.ProgressionMarker)
		}
	}
	s.Equal([]int{5}, advanced)
	s.Equal(5, s.snapshot().ProgressionMarker)
	s.Equal(int64(50), s.snapshot().Currency)
}

// Scenario: ten scalar updates in one window become one write after the quiet period
func (s *IntegrationSuite) TestScalarUpdatesCoalesce() {
	s.signIn("alice")
	window := progress.DefaultConfig().DebounceWindow

	var writesBefore int
	if s.app.Memory != nil {
		writesBefore = s.app.Memory.Writes()
	}

	for i := range 10 {
		s.Require().NoError(s.app.Engine.SetCounter(fmt.Sprintf("stat%d", i), int64(i+1)))
	}

	s.app.MockClock.Advance(window - time.Millisecond)
	s.Empty(s.remote("alice").Counters)

	s.app.MockClock.Advance(time.Millisecond)
	s.Eventually(func() bool {
		return len(s.remote("alice").Counters) == 10
	}, waitFor, 10*time.Millisecond)
	s.Equal(int64(10), s.remote("alice").Counters["stat9"])

	if s.app.Memory != nil {
		s.Equal(writesBefore+1, s.app.Memory.Writes())
	}
}

// Scenario: the first notification sets the baseline without navigating
func (s *IntegrationSuite) TestFirstNotificationSetsBaseline() {
	s.seed("alice", 7, 0)
	s.signIn("alice")

	s.Equal([]model.EventType{model.EventProgressLoaded}, s.drainEvents())
	s.Equal(7, s.snapshot().ProgressionMarker)

	// A later marker change from another device does navigate
	s.Require().NoError(s.app.Gateway.ApplyAtomicBatch(s.ctx, "alice", []model.Operation{model.SetMarker(8)}))
	s.Contains(s.drainEvents(), model.EventProgressionAdvanced)
}

// Scenario: an overdraw is rejected before anything changes
func (s *IntegrationSuite) TestOverdrawRejected() {
	s.seed("alice", 1, 10)
	s.signIn("alice")
	before := s.snapshot()

	_, err := s.app.Engine.Spend(25, model.CounterHintsUsed)

	s.ErrorIs(err, model.ErrInsufficientCurrency)
	s.Equal(before, s.snapshot())
	s.Equal(int64(10), s.remote("alice").Currency)
}

func (s *IntegrationSuite) TestSecondDeviceSeesChanges() {
	s.signIn("alice")

	other := progress.NewEngine(progress.DefaultConfig(), s.app.Gateway, s.app.Order, s.app.MockClock, testutil.NopLogger())
	defer func() { s.NoError(other.Close(s.ctx)) }()
	s.Require().NoError(other.SetIdentity(s.ctx, "alice"))
	ctx, cancel := context.WithTimeout(s.ctx, waitFor)
	defer cancel()
	s.Require().NoError(other.AwaitLoaded(ctx))

	s.wait(s.app.Engine.FindBonusWord("zebra"))

	s.Eventually(func() bool {
		p, err := other.Snapshot()
		return err == nil && p.BonusTokens.Contains(canon.Token("zebra"))
	}, waitFor, 10*time.Millisecond)
}

func (s *IntegrationSuite) TestSignOutFlushesQueuedCounters() {
	s.signIn("alice")
	s.Require().NoError(s.app.Engine.RecordFailure())
	s.Require().NoError(s.app.Engine.RecordFailure())

	s.Require().NoError(s.app.Engine.SignOut(s.ctx))

	s.Equal(int64(2), s.remote("alice").Counters[model.CounterConsecutiveFailures])
	s.Empty(s.app.Engine.Identity())
}

func (s *IntegrationSuite) TestNewUsesMemoryByDefault() {
	app, err := New(Config{})
	s.Require().NoError(err)
	defer func() { s.NoError(app.Close(s.ctx)) }()

	s.Equal(DefaultUnits, app.Order.Len())
	s.Require().NoError(app.Engine.SetIdentity(s.ctx, "bob"))
	ctx, cancel := context.WithTimeout(s.ctx, waitFor)
	defer cancel()
	s.NoError(app.Engine.AwaitLoaded(ctx))
}

func (s *IntegrationSuite) TestNewRejectsBadConfig() {
	_, err := New(Config{StorageType: "sqlite"})
	s.Error(err)

	_, err = New(Config{StorageType: StorageTypeRedis})
	s.Error(err)

	_, err = New(Config{ProgressionPath: "does-not-exist.yaml"})
	s.Error(err)
}
