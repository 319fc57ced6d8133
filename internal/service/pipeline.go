package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"trendsight/internal/domain"
	"trendsight/internal/insight"
	"trendsight/internal/report"
	"trendsight/internal/screenshots"
)

// runRepository is the subset of store.RunStore the pipeline requires.
type runRepository interface {
	Create(ctx context.Context, run *domain.Run) error
}

// trendRepository is the subset of store.TrendStore the pipeline requires.
type trendRepository interface {
	CreateForRun(ctx context.Context, runID string, t *domain.TrendRecord) (int64, error)
}

// extractClient is what the pipeline needs from insight.Client.
type extractClient interface {
	Extract(ctx context.Context, prompt string, shots []domain.Screenshot) (*insight.RawResponse, error)
}

type PipelineService struct {
	client  extractClient
	backend string
	runs    runRepository
	trends  trendRepository
	logger  *slog.Logger
}

// NewPipelineService wires the extraction pipeline. runs and trends may both
// be nil, in which case no history is recorded.
func NewPipelineService(client extractClient, backend string, runs runRepository, trends trendRepository, logger *slog.Logger) *PipelineService {
	return &PipelineService{
		client:  client,
		backend: backend,
		runs:    runs,
		trends:  trends,
		logger:  logger,
	}
}

type ExtractParams struct {
	InputDir      string
	OutputPath    string
	Context       string
	MaxImageBytes int64
}

type ExtractSummary struct {
	RunID         string
	ReportPath    string
	Screenshots   int
	Skipped       int
	Trends        int
	Opportunities int
	Dropped       int
	Warnings      []string
}

// Extract runs the full pipeline: load screenshots, build the prompt, call
// the model, parse the response, record history, write the report. Strictly
// sequential; nothing is written until extraction and parsing succeed, and a
// failed report write leaves the parsed results intact in the returned
// error path for a retried write.
func (s *PipelineService) Extract(ctx context.Context, p ExtractParams) (*ExtractSummary, error) {
	shots, skipped, err := screenshots.Load(p.InputDir, p.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("screenshots loaded", "dir", p.InputDir, "count", len(shots), "skipped", skipped)

	prompt := insight.BuildPrompt(p.Context)

	raw, err := s.client.Extract(ctx, prompt, shots)
	if err != nil {
		return nil, err
	}
	s.logger.Info("model response received", "model", raw.Model, "chars", len(raw.Text))

	parsed := insight.ParseResponse(raw.Text)
	s.logger.Info("response parsed",
		"trends", len(parsed.Trends), "dropped", parsed.Dropped, "warnings", len(parsed.Warnings))

	rep := &domain.Report{
		GeneratedAt: time.Now(),
		Model:       raw.Model,
		Screenshots: len(shots),
		Skipped:     skipped,
		Dropped:     parsed.Dropped,
		Warnings:    parsed.Warnings,
		Trends:      parsed.Trends,
	}

	runID := ulid.Make().String()
	s.recordHistory(ctx, runID, rep, p.OutputPath)

	if err := report.Write(p.OutputPath, rep); err != nil {
		return nil, err
	}
	s.logger.Info("report written", "run_id", runID, "path", p.OutputPath)

	return &ExtractSummary{
		RunID:         runID,
		ReportPath:    p.OutputPath,
		Screenshots:   len(shots),
		Skipped:       skipped,
		Trends:        len(rep.Trends),
		Opportunities: rep.Opportunities(),
		Dropped:       parsed.Dropped,
		Warnings:      parsed.Warnings,
	}, nil
}

// recordHistory persists the run and its trends. History is best effort:
// failures are logged and never abort the run.
func (s *PipelineService) recordHistory(ctx context.Context, runID string, rep *domain.Report, outputPath string) {
	if s.runs == nil || s.trends == nil {
		return
	}

	run := &domain.Run{
		ID:          runID,
		Backend:     s.backend,
		Model:       rep.Model,
		Screenshots: rep.Screenshots,
		Skipped:     rep.Skipped,
		Trends:      len(rep.Trends),
		Dropped:     rep.Dropped,
		ReportPath:  outputPath,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.logger.Error("failed to record run history", "run_id", runID, "error", err)
		return
	}

	for i := range rep.Trends {
		if _, err := s.trends.CreateForRun(ctx, runID, &rep.Trends[i]); err != nil {
			s.logger.Error("failed to record trend", "run_id", runID, "trend", rep.Trends[i].Name, "error", err)
		}
	}
}
