package report

import (
	"errors"
	"testing"
	"time"
)

var testKeywords = []string{
	"할까요", "할게요", "결국", "하기로", "결정", "선택",
	"할래요", "해볼게요", "해볼까요", "정했어요", "결정했어요",
}

func msg(id int64, sender, text string, ts time.Time) ChatMessage {
	return ChatMessage{ID: id, SessionID: "s1", Sender: sender, Message: text, Timestamp: ts}
}

func TestDetect_EmptyTranscript(t *testing.T) {
	d := NewDetector(testKeywords)
	_, err := d.Detect(nil)
	if !errors.Is(err, ErrNoMessages) {
		t.Fatalf("expected ErrNoMessages, got %v", err)
	}
}

func TestDetect_SingleDecisionPoint(t *testing.T) {
	d := NewDetector(testKeywords)
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	points, err := d.Detect([]ChatMessage{
		msg(1, "user", "저는 A로 하기로 했어요", t1),
		msg(2, "ai", "알겠습니다", t2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 decision point, got %d", len(points))
	}
	if points[0].ChatID != 1 {
		t.Errorf("expected chat id 1, got %d", points[0].ChatID)
	}
	if points[0].Text != "저는 A로 하기로 했어요" {
		t.Errorf("unexpected text %q", points[0].Text)
	}
	if !points[0].Timestamp.Equal(t1) {
		t.Errorf("unexpected timestamp %v", points[0].Timestamp)
	}
}

func TestDetect_NoMatches(t *testing.T) {
	d := NewDetector(testKeywords)
	points, err := d.Detect([]ChatMessage{
		msg(1, "user", "오늘 날씨가 좋네요", time.Now()),
		msg(2, "ai", "네, 맑습니다", time.Now()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected no decision points, got %d", len(points))
	}
}

func TestDetect_SkipsNonUserAndEmpty(t *testing.T) {
	d := NewDetector(testKeywords)
	points, err := d.Detect([]ChatMessage{
		msg(1, "ai", "B로 결정했어요", time.Now()),
		msg(2, "user", "", time.Now()),
		msg(3, "user", "그럼 B를 선택할게요", time.Now()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0].ChatID != 3 {
		t.Fatalf("expected only chat 3, got %+v", points)
	}
}

func TestDetect_OrderPreserved(t *testing.T) {
	d := NewDetector(testKeywords)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	points, err := d.Detect([]ChatMessage{
		msg(1, "user", "먼저 A로 할까요", base),
		msg(2, "user", "아니다, B로 정했어요", base.Add(time.Minute)),
		msg(3, "user", "결국 C로 하기로 했어요", base.Add(2*time.Minute)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i, wantID := range []int64{1, 2, 3} {
		if points[i].ChatID != wantID {
			t.Errorf("point %d: got chat id %d, want %d", i, points[i].ChatID, wantID)
		}
	}
}

func TestDetect_SentimentCarried(t *testing.T) {
	d := NewDetector(testKeywords)
	label := "불안"
	score := 0.42
	m := msg(7, "user", "이번엔 혼자 하기로 했어요", time.Now())
	m.SentimentLabel = &label
	m.SentimentScore = &score

	points, err := d.Detect([]ChatMessage{m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].SentimentLabel == nil || *points[0].SentimentLabel != "불안" {
		t.Errorf("sentiment label not carried: %+v", points[0].SentimentLabel)
	}
	if points[0].SentimentScore == nil || *points[0].SentimentScore != 0.42 {
		t.Errorf("sentiment score not carried: %+v", points[0].SentimentScore)
	}
}

func TestDetect_CustomEnglishKeywords(t *testing.T) {
	d := NewDetector([]string{"decided", "let's go with"})
	points, err := d.Detect([]ChatMessage{
		msg(1, "user", "I Decided to ship it", time.Now()),
		msg(2, "user", "maybe later", time.Now()),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0].ChatID != 1 {
		t.Fatalf("case-insensitive match failed: %+v", points)
	}
}
