package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/timemachine-ai/retrospect/internal/report"
)

// CreateReport inserts a pending report row and returns its id.
func (s *Store) CreateReport(ctx context.Context, sessionID string, requestor *string) (uuid.UUID, error) {
	reportID := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (report_id, session_id, requestor, status, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		reportID, sessionID, requestor, report.StatusPending,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert report: %w", err)
	}
	return reportID, nil
}

// MarkReportFinished finalizes a report with its rendered content. Callers
// must not also call MarkReportFailed for the same report.
func (s *Store) MarkReportFinished(ctx context.Context, reportID uuid.UUID, markdown, reportJSON string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reports
		SET status = $1, report_md = $2, report_json = $3, processed_at = now()
		WHERE report_id = $4 AND status = $5`,
		report.StatusFinished, markdown, reportJSON, reportID, report.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark report finished: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w or already finalized", reportID, ErrNotFound)
	}
	return nil
}

// MarkReportFailed finalizes a report as failed with a human-readable reason.
func (s *Store) MarkReportFailed(ctx context.Context, reportID uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reports
		SET status = $1, failure_reason = $2, processed_at = now()
		WHERE report_id = $3 AND status = $4`,
		report.StatusFailed, reason, reportID, report.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w or already finalized", reportID, ErrNotFound)
	}
	return nil
}

// DeleteReport removes a report row. Used to roll back a pending report when
// its session turns out to have no transcript.
func (s *Store) DeleteReport(ctx context.Context, reportID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE report_id = $1`, reportID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// GetReport fetches a report row by id.
func (s *Store) GetReport(ctx context.Context, reportID uuid.UUID) (report.Record, error) {
	var rec report.Record
	err := s.pool.QueryRow(ctx, `
		SELECT report_id, session_id, requestor, status, report_md, report_json,
		       failure_reason, created_at, processed_at
		FROM reports WHERE report_id = $1`,
		reportID,
	).Scan(
		&rec.ReportID, &rec.SessionID, &rec.Requestor, &rec.Status,
		&rec.ReportMD, &rec.ReportJSON, &rec.FailureReason,
		&rec.CreatedAt, &rec.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return report.Record{}, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return report.Record{}, fmt.Errorf("get report: %w", err)
	}
	return rec, nil
}
