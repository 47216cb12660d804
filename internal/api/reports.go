package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/timemachine-ai/retrospect/internal/bus"
	"github.com/timemachine-ai/retrospect/internal/report"
	"github.com/timemachine-ai/retrospect/internal/store"
)

type ingestMessageRequest struct {
	Sender         string     `json:"sender"`
	Message        string     `json:"message"`
	Timestamp      *time.Time `json:"timestamp"`
	SentimentLabel *string    `json:"sentiment_label"`
	SentimentScore *float64   `json:"sentiment_score"`
}

func (s *Server) ingestMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req ingestMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Sender != "user" && req.Sender != "ai" {
		respondError(w, http.StatusBadRequest, "sender must be user or ai")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	chatID, err := s.reports.InsertChatMessage(r.Context(), report.ChatMessage{
		SessionID:      sessionID,
		Sender:         req.Sender,
		Message:        req.Message,
		Timestamp:      ts,
		SentimentLabel: req.SentimentLabel,
		SentimentScore: req.SentimentScore,
	})
	if err != nil {
		s.logger.Error("insert chat message failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"chat_id": chatID})
}

type requestReportRequest struct {
	Requestor *string `json:"requestor"`
}

type reportResponse struct {
	ReportID      string          `json:"report_id"`
	SessionID     string          `json:"session_id"`
	Status        string          `json:"status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	ReportJSON    json.RawMessage `json:"report_json,omitempty"`
	ReportMD      *string         `json:"report_md,omitempty"`
}

func toReportResponse(rec report.Record, includeMD bool) reportResponse {
	resp := reportResponse{
		ReportID:    rec.ReportID.String(),
		SessionID:   rec.SessionID,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt,
		ProcessedAt: rec.ProcessedAt,
	}
	if rec.Status == report.StatusFailed {
		resp.FailureReason = rec.FailureReason
	}
	if rec.Status == report.StatusFinished && rec.ReportJSON != nil {
		resp.ReportJSON = json.RawMessage(*rec.ReportJSON)
	}
	if rec.Status == report.StatusFinished && includeMD {
		resp.ReportMD = rec.ReportMD
	}
	return resp
}

func (s *Server) requestReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	var req requestReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// A session with no transcript is a client error, not a generation
	// failure — checked before any report row exists.
	count, err := s.reports.CountChatMessages(ctx, sessionID)
	if err != nil {
		s.logger.Error("count chat messages failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to check session")
		return
	}
	if count == 0 {
		respondError(w, http.StatusNotFound, "session has no chat messages")
		return
	}

	reportID, err := s.reports.CreateReport(ctx, sessionID, req.Requestor)
	if err != nil {
		s.logger.Error("create report failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create report")
		return
	}

	if s.mode == "sync" {
		s.runSync(w, r, reportID, sessionID)
		return
	}

	job := bus.ReportJob{ReportID: reportID.String(), SessionID: sessionID, Requestor: req.Requestor}
	if err := s.jobs.Publish(bus.SubjectReportRequested, job); err != nil {
		s.logger.Error("publish report job failed", "report_id", reportID, "error", err)
		if delErr := s.reports.DeleteReport(ctx, reportID); delErr != nil {
			s.logger.Error("rollback report failed", "report_id", reportID, "error", delErr)
		}
		respondError(w, http.StatusServiceUnavailable, "failed to enqueue report job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"report_id": reportID.String(),
		"status":    report.StatusPending,
	})
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, reportID uuid.UUID, sessionID string) {
	ctx := r.Context()

	if err := s.runner.Run(ctx, reportID, sessionID); err != nil {
		if errors.Is(err, report.ErrNoMessages) {
			respondError(w, http.StatusNotFound, "session has no chat messages")
			return
		}
		rec, getErr := s.reports.GetReport(ctx, reportID)
		if getErr != nil {
			respondError(w, http.StatusInternalServerError, "Failed to generate report.")
			return
		}
		respondJSON(w, http.StatusInternalServerError, toReportResponse(rec, false))
		return
	}

	rec, err := s.reports.GetReport(ctx, reportID)
	if err != nil {
		s.logger.Error("fetch finished report failed", "report_id", reportID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch report")
		return
	}
	respondJSON(w, http.StatusOK, toReportResponse(rec, true))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid report id")
		return
	}

	rec, err := s.reports.GetReport(r.Context(), reportID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		s.logger.Error("get report failed", "report_id", reportID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch report")
		return
	}

	if r.URL.Query().Get("format") == "md" {
		if rec.Status != report.StatusFinished {
			respondError(w, http.StatusBadRequest, "Report not finished")
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if rec.ReportMD != nil {
			io.WriteString(w, *rec.ReportMD)
		}
		return
	}

	respondJSON(w, http.StatusOK, toReportResponse(rec, false))
}
