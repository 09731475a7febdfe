package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream progress events for the signed-in player",
		Long: `Connect to the daemon's SSE endpoint and stream progress events.

Events include:
  - progress_snapshot: Current progress when the stream opens
  - progress_loaded: First remote snapshot after sign-in
  - progress_refreshed: Remote change merged into local progress
  - progression_advanced: The current level changed
  - progress_mutated: Local gameplay change
  - progress_cleared: Player signed out; the stream ends

Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return streamEvents(ctx, cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(ctx context.Context, w io.Writer, jsonOutput bool) error {
	url := strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.PlayerID != "" {
		req.Header.Set(playerHeader, cfg.PlayerID)
	}

	// No timeout: the stream stays open until the server or user ends it
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Code != "" {
			errResp.Error.Status = resp.StatusCode
			return &errResp.Error
		}
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintf(w, "Streaming events for %s\n", cfg.PlayerID)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				printEvent(w, currentEvent, strings.Join(dataLines, "\n"), jsonOutput)
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		_, _ = fmt.Fprintln(w, "Disconnected")
	}
	return nil
}

func printEvent(w io.Writer, event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		line, _ := json.Marshal(SSEEvent{Time: now, Event: event, Data: data})
		_, _ = fmt.Fprintln(w, string(line))
		return
	}

	display := strings.ReplaceAll(data, "\n", " ")
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", now.Format("2006-01-02 15:04:05"), event, display)
}
