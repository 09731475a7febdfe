package factory

import (
	"time"

	"github.com/mcoot/wordsync/internal/dependencies/mocks"
	"github.com/mcoot/wordsync/internal/progress"
	"github.com/mcoot/wordsync/internal/progression"
	"github.com/mcoot/wordsync/internal/storage"
	"github.com/mcoot/wordsync/internal/storage/memory"
	"github.com/mcoot/wordsync/internal/testutil"
)

// TestUnits is the progression length used by test apps
const TestUnits = 10

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Memory is the in-process gateway, nil when another gateway was supplied
	Memory *memory.Storage

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDs
}

// NewTestApp creates an App on the in-memory gateway with mocked dependencies
func NewTestApp() *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDs := mocks.NewMockIDs()
	gateway := memory.New(mockClock, mockIDs)

	app := NewTestAppWithGateway(gateway, mockClock, mockIDs)
	app.Memory = gateway
	return app
}

// NewTestAppWithGateway creates a test App on an existing gateway
func NewTestAppWithGateway(gateway storage.Gateway, mockClock *mocks.MockClock, mockIDs *mocks.MockIDs) *TestApp {
	app := newWithDependencies(
		gateway,
		mockClock,
		mockIDs,
		progression.Sequential(TestUnits),
		progress.DefaultConfig(),
		testutil.NopLogger(),
	)

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDs:   mockIDs,
	}
}
