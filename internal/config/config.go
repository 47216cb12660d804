package config

import (
	"os"
	"strconv"
	"strings"
)

// defaultDecisionKeywords are the Korean closing-phrase fragments that mark a
// decision point in a user message. Override with DECISION_KEYWORDS
// (comma-separated) when targeting another locale.
var defaultDecisionKeywords = []string{
	"할까요", "할게요", "결국", "하기로", "결정", "선택",
	"할래요", "해볼게요", "해볼까요", "정했어요", "결정했어요",
}

type Config struct {
	Port              int
	NatsURL           string
	NatsToken         string
	DatabaseURL       string
	LogLevel          string
	GeminiAPIKey      string
	GeminiModel       string
	JWTSecret         string
	JWTExpireMinutes  int
	ReportMode        string // "sync" or "deferred"
	StrictGeneration  bool
	GenerationTimeout int // seconds, per LLM call
	DecisionKeywords  []string
}

func Load() Config {
	return Config{
		Port:              envInt("RETROSPECT_PORT", 8760),
		NatsURL:           envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:         envStr("NATS_TOKEN", ""),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		GeminiAPIKey:      envStr("GEMINI_API_KEY", ""),
		GeminiModel:       envStr("GEMINI_MODEL", "gemini-2.0-flash"),
		JWTSecret:         envStr("JWT_SECRET_KEY", "change-me"),
		JWTExpireMinutes:  envInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60),
		ReportMode:        envStr("REPORT_MODE", "deferred"),
		StrictGeneration:  envBool("REPORT_STRICT_GENERATION", false),
		GenerationTimeout: envInt("GENERATION_TIMEOUT_SECONDS", 30),
		DecisionKeywords:  envList("DECISION_KEYWORDS", defaultDecisionKeywords),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
