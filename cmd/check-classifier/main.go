package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/config"
	"github.com/aieou/sceneqc/internal/logging"
	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/processing"
	"github.com/aieou/sceneqc/internal/storage"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var imageFlag string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:           "check-classifier",
		Short:         "Show the classifier configuration and optionally classify one image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			out := cmd.OutOrStdout()
			source := path
			if !exists {
				source = "(defaults and environment)"
			}
			printConfig(out, cfg.ClassifierConfig(), source)

			classifier, err := ai.NewClassifier(cfg.ClassifierConfig(), logger)
			if err != nil {
				return err
			}
			if imageFlag == "" {
				fmt.Fprintln(out, "Pass --image to run a sample classification.")
				return nil
			}

			frame, store, err := sampleFrame(imageFlag)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := processing.NewFrameClassifier(classifier, nil, store).Classify(ctx, frame)
			if err != nil {
				return fmt.Errorf("classify %s: %w", imageFlag, err)
			}
			printResult(out, result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&imageFlag, "image", "", "Image URL or local file to classify")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Time limit for the sample classification")
	return cmd
}

// sampleFrame wraps a URL or a local file as a frame. Local files are served
// from a storage rooted at their directory.
func sampleFrame(ref string) (*models.Frame, storage.Storage, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return &models.Frame{ImageURL: ref}, nil, nil
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, nil, fmt.Errorf("image not accessible: %w", err)
	}
	store, err := storage.NewLocalStorage(filepath.Dir(abs))
	if err != nil {
		return nil, nil, err
	}
	return &models.Frame{ImageURL: filepath.Base(abs)}, store, nil
}

func printConfig(out io.Writer, cfg *ai.Config, source string) {
	token := "not set"
	if cfg.APIToken != "" {
		token = "set"
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Classifier")
	tw.AppendRows([]table.Row{
		{"Config", source},
		{"Backend", cfg.Backend},
		{"Transport", cfg.Transport},
		{"Base URL", cfg.BaseURL},
		{"Model", cfg.Model},
		{"API token", token},
		{"Timeout", fmt.Sprintf("%ds", cfg.TimeoutSeconds)},
		{"Max attempts", cfg.MaxAttempts},
		{"Inline remote images", cfg.InlineRemoteImages},
	})
	fmt.Fprintln(out, tw.Render())
	if cfg.Backend == ai.BackendStub {
		fmt.Fprintln(out, "Scores from the stub backend are synthetic and are stored with classifier \"stub\".")
	}
}

func printResult(out io.Writer, r models.ClassificationResult) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Dimension", "Value", "Label", "Score", "Fallback"})
	for _, row := range []struct {
		name  string
		score models.AttributeScore
	}{
		{"weather", r.Weather},
		{"time_of_day", r.TimeOfDay},
		{"road_type", r.RoadType},
		{"lanes", r.Lanes},
	} {
		tw.AppendRow(table.Row{row.name, row.score.Value, row.score.Label, fmt.Sprintf("%.4f", row.score.Score), row.score.Fallback})
	}
	tw.AppendFooter(table.Row{"confidence", fmt.Sprintf("%.4f", r.Confidence), "", "", r.Backend})
	fmt.Fprintln(out, tw.Render())
}
