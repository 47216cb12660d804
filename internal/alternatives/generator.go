// Package alternatives produces suggested alternative responses for a
// detected decision point.
package alternatives

import (
	"context"
	"errors"

	"github.com/timemachine-ai/retrospect/internal/report"
)

// ErrGenerationUnavailable indicates the LLM backend is unreachable,
// unconfigured or returned unusable content. Callers fall back to the static
// generator unless running in strict mode.
var ErrGenerationUnavailable = errors.New("alternative generation unavailable")

// Generator produces an ordered list of alternatives for a masked decision
// point. The first element is the recommended one. Implementations must
// return at least one alternative on success.
type Generator interface {
	Generate(ctx context.Context, contextSnippet, pointText string) ([]report.Alternative, error)
	Method() string
}

// Fallback is the deterministic, context-independent generator: a fixed pair
// of generic suggestions (clarify scope, split and delegate).
type Fallback struct{}

func (Fallback) Generate(_ context.Context, _, _ string) ([]report.Alternative, error) {
	return []report.Alternative{
		{
			Title:   "의도 확인하기",
			Summary: "핵심 범위를 확인하고 맡기기",
			Pros:    []string{"부담 감소"},
			Cons:    []string{"추가 커뮤니케이션"},
			Script:  "핵심으로 꼭 필요한 항목이 무엇인지 먼저 정할까요?",
		},
		{
			Title:   "분할·위임 제안",
			Summary: "작업을 쪼개 일부 위임/기한 조정",
			Pros:    []string{"품질 유지"},
			Cons:    []string{"조정 시간"},
			Script:  "제가 A 파트를 맡고, B 파트는 누구에게 부탁하면 어떨까요?",
		},
	}, nil
}

func (Fallback) Method() string { return "fallback" }
