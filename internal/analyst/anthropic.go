package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

type anthropicAnalyst struct {
	model        string
	key          string
	maxRationale int
	client       *http.Client
}

func newAnthropic(model, key string, maxRationale int) *anthropicAnalyst {
	return &anthropicAnalyst{
		model:        model,
		key:          key,
		maxRationale: maxRationale,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *anthropicAnalyst) Name() string { return "anthropic" }

func (a *anthropicAnalyst) Analyze(ctx context.Context, q Question) (Opinion, error) {
	payload, err := json.Marshal(map[string]any{
		"model":      a.model,
		"max_tokens": 500,
		"messages": []map[string]string{
			{"role": "user", "content": buildPrompt(q)},
		},
	})
	if err != nil {
		return Opinion{}, fmt.Errorf("encoding messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicURL, bytes.NewReader(payload))
	if err != nil {
		return Opinion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.key)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return Opinion{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Opinion{}, fmt.Errorf("reading completion: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Opinion{}, fmt.Errorf("anthropic returned status %d", resp.StatusCode)
	}

	var mr struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(data, &mr); err != nil {
		return Opinion{}, fmt.Errorf("decoding completion: %w", err)
	}
	if len(mr.Content) == 0 {
		return Opinion{}, fmt.Errorf("anthropic returned no content")
	}

	return parseOpinion(mr.Content[0].Text, a.maxRationale)
}
