// Package pipeline runs the report generation flow: fetch transcript, detect
// decision points, mask PII, generate alternatives, assemble, persist.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timemachine-ai/retrospect/internal/alternatives"
	"github.com/timemachine-ai/retrospect/internal/bus"
	"github.com/timemachine-ai/retrospect/internal/pii"
	"github.com/timemachine-ai/retrospect/internal/report"
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	ListChatMessages(ctx context.Context, sessionID string) ([]report.ChatMessage, error)
	MarkReportFinished(ctx context.Context, reportID uuid.UUID, markdown, reportJSON string) error
	MarkReportFailed(ctx context.Context, reportID uuid.UUID, reason string) error
	DeleteReport(ctx context.Context, reportID uuid.UUID) error
}

// Publisher emits report lifecycle events. May be nil.
type Publisher interface {
	Publish(subject string, data any) error
}

// Pipeline executes one report run end to end. A single run is sequential;
// concurrent runs for different reports are fine. The in-flight set prevents
// two workers in this process from running the same report id.
type Pipeline struct {
	store     Store
	detector  *report.Detector
	generator alternatives.Generator
	fallback  alternatives.Fallback
	strict    bool
	events    Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func New(s Store, detector *report.Detector, gen alternatives.Generator, strict bool, events Publisher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     s,
		detector:  detector,
		generator: gen,
		strict:    strict,
		events:    events,
		logger:    logger,
		inflight:  make(map[uuid.UUID]struct{}),
	}
}

// Run generates the report for one pending row. Transitions it exactly once
// to finished or failed — except when the session has no transcript at all,
// in which case the pending row is rolled back (deleted) and
// report.ErrNoMessages is returned.
func (p *Pipeline) Run(ctx context.Context, reportID uuid.UUID, sessionID string) error {
	messages, err := p.store.ListChatMessages(ctx, sessionID)
	if err != nil {
		return p.fail(ctx, reportID, sessionID, fmt.Errorf("fetch transcript: %w", err))
	}

	candidates, err := p.detector.Detect(messages)
	if errors.Is(err, report.ErrNoMessages) {
		p.logger.Warn("no transcript for session, rolling back report",
			"report_id", reportID, "session_id", sessionID)
		if delErr := p.store.DeleteReport(ctx, reportID); delErr != nil {
			p.logger.Error("failed to roll back empty-session report",
				"report_id", reportID, "error", delErr)
		}
		return err
	}
	if err != nil {
		return p.fail(ctx, reportID, sessionID, fmt.Errorf("detect decision points: %w", err))
	}

	snippet := report.Snippet(messages)

	points := make([]report.DecisionPoint, 0, len(candidates))
	llmHits := 0
	for _, cand := range candidates {
		cand.Text = pii.Mask(cand.Text)

		alts, genErr := p.generator.Generate(ctx, snippet, cand.Text)
		if genErr != nil {
			if p.strict {
				return p.fail(ctx, reportID, sessionID, fmt.Errorf("generate alternatives: %w", genErr))
			}
			// Per-point isolation: one point's generation failure never
			// aborts the report.
			p.logger.Warn("alternative generation failed, using fallback",
				"report_id", reportID, "chat_id", cand.ChatID, "error", genErr)
			alts, _ = p.fallback.Generate(ctx, snippet, cand.Text)
		} else if p.generator.Method() != p.fallback.Method() {
			llmHits++
		}

		cand.Alternatives = alts
		recommended := alts[0].Title
		cand.Recommended = &recommended
		points = append(points, cand)
	}

	method := p.fallback.Method()
	if llmHits > 0 || len(points) == 0 {
		method = p.generator.Method()
	}

	doc := report.BuildDocument(sessionID, points, snippet, method, time.Now().UTC())
	var periodStart, periodEnd *time.Time
	if len(messages) > 0 {
		periodStart = &messages[0].Timestamp
		periodEnd = &messages[len(messages)-1].Timestamp
	}
	markdown := report.BuildMarkdown(doc, periodStart, periodEnd)

	raw, err := json.Marshal(doc)
	if err != nil {
		return p.fail(ctx, reportID, sessionID, fmt.Errorf("serialize report: %w", err))
	}

	if err := p.store.MarkReportFinished(ctx, reportID, markdown, string(raw)); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}

	p.publish(bus.SubjectReportFinished, map[string]any{
		"report_id":  reportID.String(),
		"session_id": sessionID,
		"points":     len(points),
	})

	p.logger.Info("report finished",
		"report_id", reportID,
		"session_id", sessionID,
		"points", len(points),
		"method", method,
	)
	return nil
}

// HandleReportRequested is the queue-group handler for deferred report jobs.
func (p *Pipeline) HandleReportRequested(subject string, data []byte) {
	ctx := context.Background()

	var job bus.ReportJob
	if err := json.Unmarshal(data, &job); err != nil {
		p.logger.Error("failed to parse report job", "error", err)
		return
	}

	reportID, err := uuid.Parse(job.ReportID)
	if err != nil {
		p.logger.Error("invalid report id in job", "report_id", job.ReportID, "error", err)
		return
	}

	if !p.acquire(reportID) {
		p.logger.Warn("report already in flight, skipping duplicate job", "report_id", reportID)
		return
	}
	defer p.release(reportID)

	p.logger.Info("processing report job", "report_id", reportID, "session_id", job.SessionID)

	if err := p.Run(ctx, reportID, job.SessionID); err != nil {
		p.logger.Error("report run failed", "report_id", reportID, "error", err)
	}
}

func (p *Pipeline) fail(ctx context.Context, reportID uuid.UUID, sessionID string, cause error) error {
	if err := p.store.MarkReportFailed(ctx, reportID, cause.Error()); err != nil {
		p.logger.Error("failed to record report failure", "report_id", reportID, "error", err)
	}
	p.publish(bus.SubjectReportFailed, map[string]any{
		"report_id":  reportID.String(),
		"session_id": sessionID,
		"reason":     cause.Error(),
	})
	return cause
}

func (p *Pipeline) publish(subject string, payload map[string]any) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(subject, payload); err != nil {
		p.logger.Warn("failed to publish report event", "subject", subject, "error", err)
	}
}

func (p *Pipeline) acquire(reportID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[reportID]; busy {
		return false
	}
	p.inflight[reportID] = struct{}{}
	return true
}

func (p *Pipeline) release(reportID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, reportID)
}
