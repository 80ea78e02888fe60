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

// chatCompletions speaks the OpenAI chat-completions wire format, which
// Groq and OpenRouter also expose.
type chatCompletions struct {
	name         string
	url          string
	model        string
	key          string
	maxRationale int
	client       *http.Client
}

func newChatCompletions(name, url, model, key string, maxRationale int) *chatCompletions {
	return &chatCompletions{
		name:         name,
		url:          url,
		model:        model,
		key:          key,
		maxRationale: maxRationale,
		client: &http.Client{
			Timeout: 60 * time.Second, // Long timeout for LLM generation
		},
	}
}

func (c *chatCompletions) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *chatCompletions) Analyze(ctx context.Context, q Question) (Opinion, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a calibrated forecaster. Always respond with valid JSON only."},
			{Role: "user", Content: buildPrompt(q)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return Opinion{}, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Opinion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return Opinion{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Opinion{}, fmt.Errorf("reading completion: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Opinion{}, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return Opinion{}, fmt.Errorf("decoding completion: %w", err)
	}
	if cr.Error != nil {
		return Opinion{}, fmt.Errorf("%s error: %s", c.name, cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return Opinion{}, fmt.Errorf("%s returned no choices", c.name)
	}

	return parseOpinion(cr.Choices[0].Message.Content, c.maxRationale)
}
