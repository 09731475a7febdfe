package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/wordsync/internal/api"
	"github.com/mcoot/wordsync/internal/factory"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/progress"
	redisstorage "github.com/mcoot/wordsync/internal/storage/redis"
	"github.com/mcoot/wordsync/internal/testutil"
)

const testDebounce = 100 * time.Millisecond

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	playerFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "wordsync-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/wordsync")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		playerFile: filepath.Join(t.TempDir(), "player"),
	}
}

func (r *cliRunner) args(args []string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--player-file", r.playerFile,
		"--output", "json",
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	cmd := exec.Command(r.binaryPath, r.args(args)...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// stream starts a long-running command and returns its stdout lines
func (r *cliRunner) stream(t *testing.T, args ...string) <-chan string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, r.binaryPath, r.args(args)...)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = cmd.Wait()
	})
	return lines
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer runs the daemon stack on a loopback listener
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

// startTestServer wires the redis gateway to mr. Several servers may share
// one miniredis to play the part of separate devices.
func startTestServer(t *testing.T, mr *miniredis.Miniredis) *testServer {
	t.Helper()

	progressionPath := filepath.Join(t.TempDir(), "progression.yaml")
	require.NoError(t, os.WriteFile(progressionPath, []byte("units: [1, 3, 7]\n"), 0o644))

	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = "redis://" + mr.Addr()

	progressCfg := progress.DefaultConfig()
	progressCfg.DebounceWindow = testDebounce

	logger := testutil.NopLogger()
	app, err := factory.New(factory.Config{
		ProgressionPath: progressionPath,
		Progress:        progressCfg,
		Logger:          logger,
		StorageType:     factory.StorageTypeRedis,
		RedisConfig:     &redisCfg,
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Engine:     app.Engine,
		HubManager: app.HubManager,
	})
	server := api.NewServer(router, api.DefaultServerConfig(), logger)
	server.OnShutdown(app.HubManager.Close)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + listener.Addr().String()
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close(ctx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type progressResponse struct {
	PlayerID          string              `json:"player_id"`
	ProgressionMarker int                 `json:"progression_marker"`
	Currency          int64               `json:"currency"`
	FoundWords        map[string][]string `json:"found_words"`
	BonusWords        []string            `json:"bonus_words"`
	Counters          map[string]int64    `json:"counters"`
}

type sessionResponse struct {
	PlayerID string            `json:"player_id"`
	Progress *progressResponse `json:"progress"`
}

type operationResponse struct {
	Progress  progressResponse `json:"progress"`
	Synced    bool             `json:"synced"`
	SyncError string           `json:"sync_error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	PlayerID string `json:"player_id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type eventLine struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

func readRemote(t *testing.T, ts *testServer, id string) *model.Document {
	t.Helper()
	doc, err := ts.app.Gateway.Read(context.Background(), model.PlayerID(id))
	require.NoError(t, err)
	return doc
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t, miniredis.RunT(t))
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	resp := decode[healthResponse](t, output)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.PlayerID)
}

func TestCLI_SessionCommands(t *testing.T) {
	ts := startTestServer(t, miniredis.RunT(t))
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)

	session := decode[sessionResponse](t, output)
	assert.Equal(t, "alice", session.PlayerID)
	require.NotNil(t, session.Progress)
	assert.Equal(t, 1, session.Progress.ProgressionMarker)
	assert.Zero(t, session.Progress.Currency)

	// The player file remembers who is signed in
	output, err = cli.run("session", "show")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "alice", decode[sessionResponse](t, output).PlayerID)

	output, err = cli.run("session", "end")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "Signed out", decode[messageResponse](t, output).Message)

	output, err = cli.run("health")
	require.NoError(t, err, "output: %s", output)
	assert.Empty(t, decode[healthResponse](t, output).PlayerID)
}

func TestCLI_GameplayFlow(t *testing.T) {
	ts := startTestServer(t, miniredis.RunT(t))
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)

	// Words are canonicalized and written through before returning
	output, err = cli.run("word", "  cat ", "--sync")
	require.NoError(t, err, "output: %s", output)

	op := decode[operationResponse](t, output)
	assert.True(t, op.Synced)
	assert.Equal(t, []string{"CAT"}, op.Progress.FoundWords["1"])
	assert.Equal(t, int64(10), op.Progress.Currency)

	output, err = cli.run("bonus", "Café", "--sync")
	require.NoError(t, err, "output: %s", output)
	op = decode[operationResponse](t, output)
	assert.Equal(t, []string{"CAFE"}, op.Progress.BonusWords)

	// Completion follows the sparse progression file
	output, err = cli.run("complete", "--sync")
	require.NoError(t, err, "output: %s", output)
	op = decode[operationResponse](t, output)
	assert.True(t, op.Synced)
	assert.Equal(t, 3, op.Progress.ProgressionMarker)

	doc := readRemote(t, ts, "alice")
	assert.Equal(t, 3, doc.ProgressionMarker)
	assert.Equal(t, int64(65), doc.Currency)
	assert.Equal(t, []string{"CAT"}, doc.PerLevelFoundWords["1"])
	assert.Equal(t, []string{"CAFE"}, doc.FoundBonusTokens)

	output, err = cli.run("spend", "25", "--counter", model.CounterHintsUsed, "--sync")
	require.NoError(t, err, "output: %s", output)
	op = decode[operationResponse](t, output)
	assert.Equal(t, int64(40), op.Progress.Currency)

	output, err = cli.run("show")
	require.NoError(t, err, "output: %s", output)
	shown := decode[progressResponse](t, output)
	assert.Equal(t, "alice", shown.PlayerID)
	assert.Equal(t, 3, shown.ProgressionMarker)
	assert.Equal(t, int64(40), shown.Currency)
}

func TestCLI_CounterDebounce(t *testing.T) {
	ts := startTestServer(t, miniredis.RunT(t))
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)

	for _, v := range []string{"1", "2", "3", "5"} {
		output, err = cli.run("counter", model.CounterCurrentStreak, v)
		require.NoError(t, err, "output: %s", output)
	}

	// The local store answers at once; the remote store catches up after
	// the quiet period
	output, err = cli.run("show")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, int64(5), decode[progressResponse](t, output).Counters[model.CounterCurrentStreak])

	require.Eventually(t, func() bool {
		doc, err := ts.app.Gateway.Read(context.Background(), "alice")
		return err == nil && doc.Counters[model.CounterCurrentStreak] == 5
	}, 5*time.Second, 20*time.Millisecond)

	// Ending the session flushes anything still queued
	output, err = cli.run("failure")
	require.NoError(t, err, "output: %s", output)
	output, err = cli.run("session", "end")
	require.NoError(t, err, "output: %s", output)

	assert.Equal(t, int64(1), readRemote(t, ts, "alice").Counters[model.CounterConsecutiveFailures])
}

func TestCLI_ProgressSurvivesRestart(t *testing.T) {
	mr := miniredis.RunT(t)

	first := startTestServer(t, mr)
	cli := newCLIRunner(t, first.addr)

	output, err := cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)
	output, err = cli.run("word", "dog", "--sync")
	require.NoError(t, err, "output: %s", output)
	output, err = cli.run("complete", "--sync")
	require.NoError(t, err, "output: %s", output)
	first.shutdown()

	second := startTestServer(t, mr)
	defer second.shutdown()
	cli.serverURL = second.addr

	output, err = cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)

	session := decode[sessionResponse](t, output)
	require.NotNil(t, session.Progress)
	assert.Equal(t, 3, session.Progress.ProgressionMarker)
	assert.Equal(t, []string{"DOG"}, session.Progress.FoundWords["1"])
	assert.Equal(t, int64(60), session.Progress.Currency)
}

func TestCLI_Events(t *testing.T) {
	ts := startTestServer(t, miniredis.RunT(t))
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)

	lines := cli.stream(t, "events", "--json")

	next := func() eventLine {
		t.Helper()
		select {
		case line, ok := <-lines:
			require.True(t, ok, "event stream closed")
			return decode[eventLine](t, line)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return eventLine{}
		}
	}

	assert.Equal(t, "connected", next().Event)

	snapshot := next()
	assert.Equal(t, "progress_snapshot", snapshot.Event)
	assert.Contains(t, snapshot.Data, `"player_id":"alice"`)

	output, err = cli.run("word", "owl")
	require.NoError(t, err, "output: %s", output)

	for {
		evt := next()
		if evt.Event == string(model.EventProgressMutated) {
			assert.Contains(t, evt.Data, "OWL")
			break
		}
	}

	// Signing out clears the store and ends the stream
	output, err = cli.run("session", "end")
	require.NoError(t, err, "output: %s", output)

	for {
		evt := next()
		if evt.Event == string(model.EventProgressCleared) {
			break
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event stream did not close")
		}
	}
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t, miniredis.RunT(t))
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Nobody signed in
	output, err := cli.run("show")
	assert.Error(t, err)
	assert.Contains(t, output, "NO_IDENTITY")

	output, err = cli.run("session", "start", "alice")
	require.NoError(t, err, "output: %s", output)

	// Another player's identity is refused
	output, err = cli.run("--player", "bob", "show")
	assert.Error(t, err)
	assert.Contains(t, output, "IDENTITY_MISMATCH")

	output, err = cli.run("hint", "--sync")
	assert.Error(t, err)
	assert.Contains(t, output, "INSUFFICIENT_CURRENCY")

	output, err = cli.run("spend", "0")
	assert.Error(t, err)
	assert.Contains(t, output, "INVALID_AMOUNT")

	output, err = cli.run("spend", "lots")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "invalid amount")
}
