package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"trendsight/internal/config"
	"trendsight/internal/db"
	"trendsight/internal/insight"
	claudeinsight "trendsight/internal/insight/claude"
	geminiinsight "trendsight/internal/insight/gemini"
	"trendsight/internal/service"
	"trendsight/internal/store"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultClaudeModel = "claude-sonnet-4-5"
)

// preferredModels is tried in order when no model is configured; the first
// identifier the availability listing reports servable wins.
var preferredModels = map[string][]string{
	"gemini": {"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash", "gemini-1.5-pro", "gemini-1.5-flash"},
	"claude": {"claude-sonnet-4-5", "claude-3-7-sonnet-latest", "claude-3-5-sonnet-latest", "claude-3-5-haiku-latest"},
}

// backendExtractor is what every model backend provides the CLI.
type backendExtractor interface {
	insight.Extractor
	insight.ModelLister
	Model() string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config, logger *slog.Logger) *cli.App {
	return &cli.App{
		Name:    "trendsight",
		Usage:   "Extract trend insights from Creator Search Insights screenshots",
		Version: Version,
		Commands: []*cli.Command{
			extractCmd(cfg, logger),
			modelsCmd(cfg, logger),
			historyCmd(cfg),
		},
	}
}

func extractCmd(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Analyze a directory of screenshots and write a trend report",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Screenshot directory"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Report destination (.md or .html)"},
			&cli.StringFlag{Name: "backend", Usage: "Model backend: gemini|claude"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model identifier (default: first servable preferred model)"},
			&cli.StringFlag{Name: "context", Aliases: []string{"c"}, Usage: "Extra context appended to the prompt"},
			&cli.IntFlag{Name: "chunk-size", Usage: "Max screenshots per model request"},
			&cli.DurationFlag{Name: "timeout", Usage: "Per-request timeout (e.g. 90s)"},
			&cli.IntFlag{Name: "retries", Usage: "Max attempts per request on transient failures"},
			&cli.BoolFlag{Name: "no-history", Usage: "Skip recording the run in the history database"},
		},
		Action: func(c *cli.Context) error {
			applyFlags(cfg, c)

			extractor, err := buildExtractor(c.Context, cfg, logger)
			if err != nil {
				return err
			}

			var runs *store.RunStore
			var trends *store.TrendStore
			if !c.Bool("no-history") {
				database, err := db.Open(cfg.DBPath)
				if err != nil {
					// History is a convenience; the run proceeds without it.
					logger.Error("failed to open history database", "path", cfg.DBPath, "error", err)
				} else {
					defer func() {
						if err := database.Close(); err != nil {
							logger.Error("failed to close database", "error", err)
						}
					}()
					runs = store.NewRunStore(database)
					trends = store.NewTrendStore(database)
				}
			}

			client := insight.NewClient(extractor, insight.ClientConfig{
				MaxAttempts:       cfg.MaxAttempts,
				RequestTimeout:    cfg.RequestTimeout,
				ChunkSize:         cfg.ChunkSize,
				RequestsPerMinute: cfg.RequestsPerMinute,
			}, logger)

			svc := service.NewPipelineService(client, cfg.Backend, runs, trends, logger)
			summary, err := svc.Extract(c.Context, service.ExtractParams{
				InputDir:      cfg.InputDir,
				OutputPath:    cfg.OutputPath,
				Context:       c.String("context"),
				MaxImageBytes: cfg.MaxImageBytes,
			})
			if err != nil {
				return extractionError(err)
			}

			fmt.Printf("Run %s complete\n", summary.RunID)
			fmt.Printf("  Screenshots: %d analyzed, %d skipped\n", summary.Screenshots, summary.Skipped)
			fmt.Printf("  Trends: %d (%d opportunities, %d blocks dropped)\n",
				summary.Trends, summary.Opportunities, summary.Dropped)
			for _, w := range summary.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			fmt.Printf("  Report: %s\n", summary.ReportPath)
			return nil
		},
	}
}

func modelsCmd(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "List model identifiers the configured backend can serve",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "backend", Usage: "Model backend: gemini|claude"},
		},
		Action: func(c *cli.Context) error {
			if b := c.String("backend"); b != "" {
				cfg.Backend = b
			}
			extractor, err := newExtractor(cfg, "")
			if err != nil {
				return err
			}
			logger.Debug("listing models", "backend", cfg.Backend)

			models, err := extractor.ListModels(c.Context)
			if err != nil {
				return err
			}
			for _, m := range models {
				if m.InputTokenLimit > 0 {
					fmt.Printf("%s\t%s\t(input limit %d tokens)\n", m.ID, m.DisplayName, m.InputTokenLimit)
				} else {
					fmt.Printf("%s\t%s\n", m.ID, m.DisplayName)
				}
			}
			return nil
		},
	}
}

func historyCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent extraction runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Number of runs to show"},
		},
		Action: func(c *cli.Context) error {
			database, err := db.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open history database: %w", err)
			}
			defer database.Close()

			runs, err := store.NewRunStore(database).ListRecent(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, run := range runs {
				fmt.Printf("%s  %s  %s/%s  %d screenshots  %d trends  %s\n",
					run.ID, run.CreatedAt.Format("2006-01-02 15:04"),
					run.Backend, run.Model, run.Screenshots, run.Trends, run.ReportPath)
			}
			return nil
		},
	}
}

func applyFlags(cfg *config.Config, c *cli.Context) {
	if v := c.String("input"); v != "" {
		cfg.InputDir = v
	}
	if v := c.String("output"); v != "" {
		cfg.OutputPath = v
	}
	if v := c.String("backend"); v != "" {
		cfg.Backend = v
	}
	if v := c.String("model"); v != "" {
		cfg.Model = v
	}
	if v := c.Int("chunk-size"); v > 0 {
		cfg.ChunkSize = v
	}
	if v := c.Duration("timeout"); v > 0 {
		cfg.RequestTimeout = v
	}
	if v := c.Int("retries"); v > 0 {
		cfg.MaxAttempts = v
	}
}

// buildExtractor constructs the configured backend, resolving the model
// identifier through the availability listing when none is configured.
func buildExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backendExtractor, error) {
	probe, err := newExtractor(cfg, "")
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = pickModel(ctx, probe, cfg.Backend, logger)
	}
	logger.Info("using model backend", "backend", cfg.Backend, "model", model)
	return newExtractor(cfg, model)
}

func newExtractor(cfg *config.Config, model string) (backendExtractor, error) {
	switch cfg.Backend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, fmt.Errorf("CLAUDE_API_KEY is required when backend=claude")
		}
		if model == "" {
			model = defaultClaudeModel
		}
		return claudeinsight.NewClaudeExtractor(cfg.ClaudeAPIKey, model), nil
	case "gemini", "":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when backend=gemini")
		}
		if model == "" {
			model = defaultGeminiModel
		}
		return geminiinsight.NewGeminiExtractor(cfg.GeminiAPIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected gemini or claude)", cfg.Backend)
	}
}

// pickModel returns the first preferred model the backend reports servable,
// falling back to the backend default when the listing fails or none match.
func pickModel(ctx context.Context, lister insight.ModelLister, backend string, logger *slog.Logger) string {
	fallback := defaultGeminiModel
	if backend == "claude" {
		fallback = defaultClaudeModel
	}

	available, err := lister.ListModels(ctx)
	if err != nil {
		logger.Warn("model listing failed, using default", "backend", backend, "model", fallback, "error", err)
		return fallback
	}

	servable := make(map[string]bool, len(available))
	for _, m := range available {
		servable[m.ID] = true
	}
	for _, id := range preferredModels[backend] {
		if servable[id] {
			return id
		}
	}
	if len(available) > 0 {
		return available[0].ID
	}
	return fallback
}

// extractionError attaches operator guidance to the taxonomy errors that
// have an obvious next step.
func extractionError(err error) error {
	switch {
	case errors.Is(err, insight.ErrQuotaExceeded):
		return fmt.Errorf("%w (quota is exhausted for this credential; retry after the quota window resets)", err)
	case errors.Is(err, insight.ErrModelUnavailable):
		return fmt.Errorf("%w (run 'trendsight models' to list servable identifiers and pass one with --model)", err)
	default:
		return err
	}
}
