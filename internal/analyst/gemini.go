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

type geminiAnalyst struct {
	model        string
	key          string
	maxRationale int
	client       *http.Client
}

func newGemini(model, key string, maxRationale int) *geminiAnalyst {
	return &geminiAnalyst{
		model:        model,
		key:          key,
		maxRationale: maxRationale,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *geminiAnalyst) Name() string { return "gemini" }

func (g *geminiAnalyst) Analyze(ctx context.Context, q Question) (Opinion, error) {
	payload, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": buildPrompt(q)}}},
		},
		"generationConfig": map[string]any{
			"temperature":      0.3,
			"responseMimeType": "application/json",
		},
	})
	if err != nil {
		return Opinion{}, fmt.Errorf("encoding generate request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", g.model, g.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Opinion{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Opinion{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Opinion{}, fmt.Errorf("reading completion: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Opinion{}, fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var gr struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(data, &gr); err != nil {
		return Opinion{}, fmt.Errorf("decoding completion: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return Opinion{}, fmt.Errorf("gemini returned no candidates")
	}

	return parseOpinion(gr.Candidates[0].Content.Parts[0].Text, g.maxRationale)
}
