package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/timemachine-ai/retrospect/internal/pii"
)

const (
	ahaFoundFormat = "%d개의 의사결정 포인트를 감지했습니다."
	ahaNoneFound   = "뚜렷한 의사결정 포인트가 감지되지 않았습니다."

	snippetMessages  = 6
	snippetSeparator = " / "
)

// Snippet builds the masked opening excerpt of a transcript: the first six
// messages (any sender), masked and joined with a fixed separator.
func Snippet(messages []ChatMessage) string {
	n := len(messages)
	if n > snippetMessages {
		n = snippetMessages
	}
	parts := make([]string, 0, n)
	for _, m := range messages[:n] {
		parts = append(parts, pii.Mask(m.Message))
	}
	return strings.Join(parts, snippetSeparator)
}

// BuildDocument composes the structured report. The recommended alternative
// of each point is always alternatives[0]: the generator's ordering encodes
// preference. next_action is the script of the first alternative of the
// first point, or null without points.
func BuildDocument(sessionID string, points []DecisionPoint, snippet, method string, generatedAt time.Time) Document {
	aha := ahaNoneFound
	if len(points) > 0 {
		aha = fmt.Sprintf(ahaFoundFormat, len(points))
	}

	var nextAction *string
	if len(points) > 0 && len(points[0].Alternatives) > 0 {
		script := points[0].Alternatives[0].Script
		nextAction = &script
	}

	if points == nil {
		points = []DecisionPoint{}
	}

	return Document{
		Summary: Summary{
			SessionID: sessionID,
			Aha:       aha,
			Snippet:   snippet,
		},
		Points:     points,
		NextAction: nextAction,
		Meta: Meta{
			GeneratedAt: generatedAt,
			Method:      method,
		},
	}
}

// BuildMarkdown renders the fixed-order markdown projection of a document:
// title, optional period line, headline insight, decision points, and a
// trailing next-action section present iff next_action is set.
func BuildMarkdown(doc Document, periodStart, periodEnd *time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 회고 리포트 — 세션 %s\n", doc.Summary.SessionID)
	if periodStart != nil && periodEnd != nil {
		fmt.Fprintf(&b, "기간: %s ~ %s\n",
			periodStart.Format(time.RFC3339), periodEnd.Format(time.RFC3339))
	}
	b.WriteString("\n## 핵심 아하 포인트\n")
	fmt.Fprintf(&b, "- %s\n", doc.Summary.Aha)

	b.WriteString("\n## 주요 의사결정 포인트\n")
	for _, p := range doc.Points {
		fmt.Fprintf(&b, "\n### [%s] %s\n", p.Timestamp.Format(time.RFC3339), p.Text)
		b.WriteString("- 감정: " + sentimentLine(p) + "\n")
		for _, alt := range p.Alternatives {
			fmt.Fprintf(&b, "  - **%s**: %s\n", alt.Title, alt.Summary)
			fmt.Fprintf(&b, "    - 장점: %s\n", strings.Join(alt.Pros, "; "))
			fmt.Fprintf(&b, "    - 단점: %s\n", strings.Join(alt.Cons, "; "))
			fmt.Fprintf(&b, "    - 스크립트: %q\n", alt.Script)
		}
	}

	if doc.NextAction != nil {
		b.WriteString("\n## 다음 행동\n")
		fmt.Fprintf(&b, "- %s\n", *doc.NextAction)
	}

	return b.String()
}

func sentimentLine(p DecisionPoint) string {
	if p.SentimentLabel == nil {
		return "없음"
	}
	if p.SentimentScore != nil {
		return fmt.Sprintf("%s (%.2f)", *p.SentimentLabel, *p.SentimentScore)
	}
	return *p.SentimentLabel
}
