package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show local progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Progress
			if err := client.Get("/api/v1/progress", &result); err != nil {
				return err
			}
			output(cmd).Print(result)
			return nil
		},
	}
}

// runOperation posts a gameplay operation and prints the result
func runOperation(cmd *cobra.Command, method, path string, body any) error {
	var result Operation
	if err := client.Do(method, operationPath(path), body, &result); err != nil {
		return err
	}
	output(cmd).Print(result)
	return nil
}

func newWordCmd() *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:   "word <word>",
		Short: "Record a found word",
		Long:  "Record a found word in a level. Without --unit the current level is used.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"unit": unit, "word": args[0]}
			return runOperation(cmd, http.MethodPost, "/api/v1/progress/words", req)
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "", "Level the word belongs to (default: current level)")
	return cmd
}

func newBonusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bonus <word>",
		Short: "Record a found bonus word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, http.MethodPost, "/api/v1/progress/bonus", map[string]string{"word": args[0]})
		},
	}
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Complete the current level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, http.MethodPost, "/api/v1/progress/levels/complete", nil)
		},
	}
}

func newHintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hint",
		Short: "Buy a hint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, http.MethodPost, "/api/v1/progress/hints", nil)
		},
	}
}

func newRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal",
		Short: "Buy a word reveal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, http.MethodPost, "/api/v1/progress/reveals", nil)
		},
	}
}

func newSpendCmd() *cobra.Command {
	var counter string

	cmd := &cobra.Command{
		Use:   "spend <amount>",
		Short: "Spend currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			req := map[string]any{"amount": amount, "counter": counter}
			return runOperation(cmd, http.MethodPost, "/api/v1/progress/spend", req)
		},
	}

	cmd.Flags().StringVar(&counter, "counter", "", "Counter to increment with the purchase")
	return cmd
}

func newCounterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counter <name> <value>",
		Short: "Set a counter; the write is debounced",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			path := "/api/v1/progress/counters/" + url.PathEscape(args[0])
			return runOperation(cmd, http.MethodPut, path, map[string]int64{"value": value})
		},
	}
}

func newFailureCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "failure",
		Short: "Record a failed attempt, or reset the failure streak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method := http.MethodPost
			if reset {
				method = http.MethodDelete
			}
			return runOperation(cmd, method, "/api/v1/progress/failures", nil)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Reset consecutive failures to zero")
	return cmd
}

func newResetUnitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-unit <unit>",
		Short: "Forget every word found in a level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, http.MethodDelete, "/api/v1/progress/units/"+url.PathEscape(args[0]), nil)
		},
	}
}

func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Write queued counters now and wait for pending writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post("/api/v1/progress/flush", nil, nil); err != nil {
				return err
			}
			output(cmd).PrintMessage("Flushed")
			return nil
		},
	}
}
