package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"oraclebot/internal/config"
)

// Question is what the analyst is asked to forecast.
type Question struct {
	Title       string
	Description string
	Category    string
}

// Opinion is the analyst's probability estimate for a question.
type Opinion struct {
	PYes       float64 `json:"p_yes"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Analyst produces an opinion on a market question.
type Analyst interface {
	Name() string
	Analyze(ctx context.Context, q Question) (Opinion, error)
}

// New builds the configured provider. The API key is read from the
// environment variable named in the config.
func New(cfg config.AnalystConfig) (Analyst, error) {
	key := os.Getenv(cfg.KeyEnv)
	if key == "" {
		return nil, fmt.Errorf("analyst API key env %s is not set", cfg.KeyEnv)
	}

	switch cfg.Provider {
	case "openai":
		return newChatCompletions("openai", "https://api.openai.com/v1/chat/completions", cfg.Model, key, cfg.MaxRationale), nil
	case "groq":
		return newChatCompletions("groq", "https://api.groq.com/openai/v1/chat/completions", cfg.Model, key, cfg.MaxRationale), nil
	case "openrouter":
		return newChatCompletions("openrouter", "https://openrouter.ai/api/v1/chat/completions", cfg.Model, key, cfg.MaxRationale), nil
	case "anthropic":
		return newAnthropic(cfg.Model, key, cfg.MaxRationale), nil
	case "gemini":
		return newGemini(cfg.Model, key, cfg.MaxRationale), nil
	default:
		return nil, fmt.Errorf("unknown analyst provider %q", cfg.Provider)
	}
}

func buildPrompt(q Question) string {
	category := q.Category
	if category == "" {
		category = "General"
	}
	description := q.Description
	if description == "" {
		description = "No additional description provided."
	}

	return fmt.Sprintf(`You are an expert forecaster analyzing prediction markets.

Market Question: %s
Category: %s
Description: %s

Analyze this market and provide your probability estimate. Consider:
1. Base rates for similar events
2. Current evidence and indicators
3. Factors that could influence the outcome
4. Your uncertainty given available information

Respond with JSON only in this exact format (no other text):
{
  "p_yes": <probability between 0.0 and 1.0>,
  "confidence": <your confidence in this estimate, 0.0 to 1.0>,
  "rationale": "<1-2 sentence explanation>"
}`, q.Title, category, description)
}

// parseOpinion extracts the first JSON object from a completion and clamps
// its fields into valid ranges. p_yes is clamped to [0.01, 0.99] so the
// forecast never claims certainty.
func parseOpinion(text string, maxRationale int) (Opinion, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Opinion{}, fmt.Errorf("no JSON object in completion: %q", truncate(text, 120))
	}

	var op Opinion
	if err := json.Unmarshal([]byte(text[start:end+1]), &op); err != nil {
		return Opinion{}, fmt.Errorf("parsing opinion JSON: %w", err)
	}

	op.PYes = clamp(op.PYes, 0.01, 0.99)
	op.Confidence = clamp(op.Confidence, 0, 1)
	if maxRationale > 0 {
		op.Rationale = truncate(op.Rationale, maxRationale)
	}
	return op, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
