package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/timemachine-ai/retrospect/internal/alternatives"
	"github.com/timemachine-ai/retrospect/internal/bus"
	"github.com/timemachine-ai/retrospect/internal/report"
)

var testKeywords = []string{"하기로", "결정", "선택", "정했어요"}

type fakeStore struct {
	mu        sync.Mutex
	messages  map[string][]report.ChatMessage
	listErr   error
	finished  map[uuid.UUID][2]string // markdown, json
	failed    map[uuid.UUID]string
	deleted   map[uuid.UUID]bool
	finishErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[string][]report.ChatMessage),
		finished: make(map[uuid.UUID][2]string),
		failed:   make(map[uuid.UUID]string),
		deleted:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) ListChatMessages(_ context.Context, sessionID string) ([]report.ChatMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages[sessionID], nil
}

func (f *fakeStore) MarkReportFinished(_ context.Context, id uuid.UUID, md, js string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finishErr != nil {
		return f.finishErr
	}
	f.finished[id] = [2]string{md, js}
	return nil
}

func (f *fakeStore) MarkReportFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = reason
	return nil
}

func (f *fakeStore) DeleteReport(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[id] = true
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePublisher) Publish(subject string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, string) ([]report.Alternative, error) {
	return nil, alternatives.ErrGenerationUnavailable
}

func (failingGenerator) Method() string { return "gemini" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transcript(sessionID string) []report.ChatMessage {
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []report.ChatMessage{
		{ID: 1, SessionID: sessionID, Sender: "user", Message: "저는 A로 하기로 했어요", Timestamp: t1},
		{ID: 2, SessionID: sessionID, Sender: "ai", Message: "알겠습니다", Timestamp: t1.Add(time.Minute)},
	}
}

func newPipeline(s Store, gen alternatives.Generator, strict bool, events Publisher) *Pipeline {
	return New(s, report.NewDetector(testKeywords), gen, strict, events, discardLogger())
}

func TestRun_FinishedWithFallback(t *testing.T) {
	fs := newFakeStore()
	fs.messages["s1"] = transcript("s1")
	events := &fakePublisher{}
	p := newPipeline(fs, alternatives.Fallback{}, false, events)
	id := uuid.New()

	if err := p.Run(context.Background(), id, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, ok := fs.finished[id]
	if !ok {
		t.Fatal("report was not marked finished")
	}

	var doc report.Document
	if err := json.Unmarshal([]byte(content[1]), &doc); err != nil {
		t.Fatalf("stored report_json does not parse: %v", err)
	}
	if doc.Summary.Aha != "1개의 의사결정 포인트를 감지했습니다." {
		t.Errorf("unexpected aha %q", doc.Summary.Aha)
	}
	if len(doc.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(doc.Points))
	}
	if len(doc.Points[0].Alternatives) < 1 {
		t.Error("fallback guarantees at least one alternative")
	}
	if doc.Points[0].Recommended == nil || *doc.Points[0].Recommended != doc.Points[0].Alternatives[0].Title {
		t.Error("recommended must equal alternatives[0].title")
	}
	if doc.NextAction == nil || *doc.NextAction != doc.Points[0].Alternatives[0].Script {
		t.Error("next_action must be the first alternative's script")
	}
	if doc.Meta.Method != "fallback" {
		t.Errorf("expected method fallback, got %q", doc.Meta.Method)
	}
	if !strings.Contains(content[0], "# 회고 리포트 — 세션 s1") {
		t.Errorf("markdown missing title: %q", content[0])
	}

	foundFinished := false
	for _, s := range events.subjects {
		if s == bus.SubjectReportFinished {
			foundFinished = true
		}
	}
	if !foundFinished {
		t.Error("finished event not published")
	}
}

func TestRun_EmptyTranscriptRollsBack(t *testing.T) {
	fs := newFakeStore()
	p := newPipeline(fs, alternatives.Fallback{}, false, nil)
	id := uuid.New()

	err := p.Run(context.Background(), id, "empty-session")
	if !errors.Is(err, report.ErrNoMessages) {
		t.Fatalf("expected ErrNoMessages, got %v", err)
	}
	if !fs.deleted[id] {
		t.Error("pending report must be rolled back, not left pending")
	}
	if _, failed := fs.failed[id]; failed {
		t.Error("empty transcript must not be persisted as a failed report")
	}
}

func TestRun_NoMatchingMessages(t *testing.T) {
	fs := newFakeStore()
	fs.messages["s2"] = []report.ChatMessage{
		{ID: 1, SessionID: "s2", Sender: "user", Message: "오늘 날씨 좋네요", Timestamp: time.Now()},
	}
	p := newPipeline(fs, alternatives.Fallback{}, false, nil)
	id := uuid.New()

	if err := p.Run(context.Background(), id, "s2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := fs.finished[id]
	var doc report.Document
	if err := json.Unmarshal([]byte(content[1]), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Points) != 0 {
		t.Errorf("expected no points, got %d", len(doc.Points))
	}
	if doc.Summary.Aha != "뚜렷한 의사결정 포인트가 감지되지 않았습니다." {
		t.Errorf("unexpected aha %q", doc.Summary.Aha)
	}
	if doc.NextAction != nil {
		t.Error("next_action must be null without points")
	}
	if strings.Contains(content[0], "### ") {
		t.Error("markdown must have no decision-point subheadings")
	}
}

func TestRun_GeneratorFailureFallsBack(t *testing.T) {
	fs := newFakeStore()
	fs.messages["s3"] = transcript("s3")
	p := newPipeline(fs, failingGenerator{}, false, nil)
	id := uuid.New()

	if err := p.Run(context.Background(), id, "s3"); err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}

	var doc report.Document
	if err := json.Unmarshal([]byte(fs.finished[id][1]), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Points) != 1 || len(doc.Points[0].Alternatives) < 1 {
		t.Fatal("fallback alternatives expected")
	}
	if doc.Points[0].Alternatives[0].Title != "의도 확인하기" {
		t.Errorf("expected fallback alternative, got %q", doc.Points[0].Alternatives[0].Title)
	}
	if doc.Meta.Method != "fallback" {
		t.Errorf("expected method fallback after failover, got %q", doc.Meta.Method)
	}
}

func TestRun_GeneratorFailureStrictMode(t *testing.T) {
	fs := newFakeStore()
	fs.messages["s4"] = transcript("s4")
	events := &fakePublisher{}
	p := newPipeline(fs, failingGenerator{}, true, events)
	id := uuid.New()

	err := p.Run(context.Background(), id, "s4")
	if err == nil {
		t.Fatal("strict mode must fail the report")
	}
	reason, failed := fs.failed[id]
	if !failed {
		t.Fatal("report must be marked failed in strict mode")
	}
	if !strings.Contains(reason, "generate alternatives") {
		t.Errorf("unexpected failure reason %q", reason)
	}
	if _, finished := fs.finished[id]; finished {
		t.Error("failed report must not also be finished")
	}
}

func TestRun_TranscriptFetchErrorFails(t *testing.T) {
	fs := newFakeStore()
	fs.listErr = errors.New("connection lost")
	p := newPipeline(fs, alternatives.Fallback{}, false, nil)
	id := uuid.New()

	if err := p.Run(context.Background(), id, "s5"); err == nil {
		t.Fatal("expected error")
	}
	if reason := fs.failed[id]; !strings.Contains(reason, "fetch transcript") {
		t.Errorf("unexpected failure reason %q", reason)
	}
}

func TestRun_MaskedTextInPoints(t *testing.T) {
	fs := newFakeStore()
	t1 := time.Now()
	fs.messages["s6"] = []report.ChatMessage{
		{ID: 1, SessionID: "s6", Sender: "user", Message: "a@b.com 으로 보내기로 결정했어요", Timestamp: t1},
	}
	p := newPipeline(fs, alternatives.Fallback{}, false, nil)
	id := uuid.New()

	if err := p.Run(context.Background(), id, "s6"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc report.Document
	if err := json.Unmarshal([]byte(fs.finished[id][1]), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if strings.Contains(doc.Points[0].Text, "a@b.com") {
		t.Errorf("point text not masked: %q", doc.Points[0].Text)
	}
	if strings.Contains(doc.Summary.Snippet, "a@b.com") {
		t.Errorf("snippet not masked: %q", doc.Summary.Snippet)
	}
}

func TestHandleReportRequested(t *testing.T) {
	fs := newFakeStore()
	fs.messages["s7"] = transcript("s7")
	p := newPipeline(fs, alternatives.Fallback{}, false, nil)
	id := uuid.New()

	payload, _ := json.Marshal(bus.ReportJob{ReportID: id.String(), SessionID: "s7"})
	p.HandleReportRequested(bus.SubjectReportRequested, payload)

	if _, ok := fs.finished[id]; !ok {
		t.Error("job handler did not finish the report")
	}
}

func TestHandleReportRequested_BadPayloads(t *testing.T) {
	fs := newFakeStore()
	p := newPipeline(fs, alternatives.Fallback{}, false, nil)

	p.HandleReportRequested(bus.SubjectReportRequested, []byte("not json"))
	p.HandleReportRequested(bus.SubjectReportRequested, []byte(`{"report_id":"not-a-uuid","session_id":"s"}`))

	if len(fs.finished) != 0 || len(fs.failed) != 0 {
		t.Error("malformed jobs must not touch the store")
	}
}

func TestInflightGuard(t *testing.T) {
	p := newPipeline(newFakeStore(), alternatives.Fallback{}, false, nil)
	id := uuid.New()

	if !p.acquire(id) {
		t.Fatal("first acquire must succeed")
	}
	if p.acquire(id) {
		t.Fatal("second acquire of the same report must fail")
	}
	p.release(id)
	if !p.acquire(id) {
		t.Fatal("acquire after release must succeed")
	}
}
