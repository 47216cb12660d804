package alternatives

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/timemachine-ai/retrospect/internal/report"
)

// Completer is the text-completion capability the LLM generator depends on.
// Injected at construction so tests can substitute a deterministic stub.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// LLMGenerator formats a prompt around the decision point, invokes the
// completion backend, and parses the response into alternatives. Any failure
// surfaces as ErrGenerationUnavailable so the caller can fall back.
type LLMGenerator struct {
	llm     Completer
	timeout time.Duration
	logger  *slog.Logger
}

func NewLLMGenerator(llm Completer, timeout time.Duration, logger *slog.Logger) *LLMGenerator {
	return &LLMGenerator{llm: llm, timeout: timeout, logger: logger}
}

func (g *LLMGenerator) Method() string { return "gemini" }

type llmResponse struct {
	Alternatives []report.Alternative `json:"alternatives"`
}

func (g *LLMGenerator) Generate(ctx context.Context, contextSnippet, pointText string) ([]report.Alternative, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: no completion backend configured", ErrGenerationUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(generateUserPrompt, contextSnippet, pointText)
	raw, err := g.llm.Complete(ctx, systemPrompt, prompt, 2048)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		g.logger.Warn("unparsable generation response", "error", err, "raw", raw)
		return nil, fmt.Errorf("%w: parse response: %v", ErrGenerationUnavailable, err)
	}
	if len(resp.Alternatives) == 0 {
		return nil, fmt.Errorf("%w: empty alternatives", ErrGenerationUnavailable)
	}

	return resp.Alternatives, nil
}

// stripFences removes a single markdown code fence wrapper, which some models
// add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
