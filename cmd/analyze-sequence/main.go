package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aieou/sceneqc/internal/app"
	"github.com/aieou/sceneqc/internal/config"
	"github.com/aieou/sceneqc/internal/logging"
	"github.com/aieou/sceneqc/internal/processing"
)

// errIncomplete signals a run that finished without classifying every frame.
var errIncomplete = errors.New("analysis did not complete")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errIncomplete) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:           "analyze-sequence <sequence-id>",
		Short:         "Classify scene attributes for every frame of a sequence",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, _, _, err := config.Load(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Orchestrator.Analyze(ctx, args[0])
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), summary, jsonOutput)
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")
	return cmd
}

func report(out io.Writer, summary *processing.Summary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, renderSummary(summary, isTerminal(out)))
	}
	if summary.State != processing.StateCompleted {
		return fmt.Errorf("%w: %s", errIncomplete, summary.State)
	}
	return nil
}
