package report

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoMessages signals that a session has no transcript at all, as opposed
// to a transcript in which nothing matched.
var ErrNoMessages = errors.New("session has no chat messages")

// Detector scans a transcript for user messages that express a reached
// decision or commitment. The phrase fragments are locale-specific and
// injected at construction.
type Detector struct {
	pattern *regexp.Regexp
}

func NewDetector(keywords []string) *Detector {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	pattern := regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
	return &Detector{pattern: pattern}
}

// Detect returns one candidate per matching user message, in transcript
// order, with the raw (unmasked) text. Zero matches on a non-empty
// transcript is a valid outcome; an empty transcript returns ErrNoMessages.
func (d *Detector) Detect(messages []ChatMessage) ([]DecisionPoint, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	var points []DecisionPoint
	for _, m := range messages {
		if m.Sender != "user" || m.Message == "" {
			continue
		}
		if !d.pattern.MatchString(m.Message) {
			continue
		}
		points = append(points, DecisionPoint{
			ChatID:         m.ID,
			Timestamp:      m.Timestamp,
			Text:           m.Message,
			SentimentLabel: m.SentimentLabel,
			SentimentScore: m.SentimentScore,
		})
	}
	return points, nil
}
