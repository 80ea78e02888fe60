package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"oraclebot/internal/config"
)

// MaxBatchSize is the server-side cap on predictions per batch call.
const MaxBatchSize = 50

// APIError is a non-2xx response from the service, carrying the error
// field from the body when one was present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

// Client talks to the ORACLES.run HTTP API. Mutating calls serialize the
// payload once and sign those exact bytes.
type Client struct {
	baseURL string
	creds   config.Credentials
	http    *http.Client
}

func NewClient(baseURL string, creds config.Credentials) *Client {
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListMarkets fetches open markets. No auth required. limit is capped at
// 200 by the service.
func (c *Client) ListMarkets(ctx context.Context, status string, limit int, category string) ([]Market, error) {
	q := url.Values{}
	q.Set("status", status)
	q.Set("limit", strconv.Itoa(limit))
	if category != "" {
		q.Set("category", category)
	}

	var markets []Market
	if err := c.get(ctx, "/list-markets", q, false, &markets); err != nil {
		return nil, fmt.Errorf("listing markets: %w", err)
	}
	return markets, nil
}

// MyForecasts fetches the agent's forecast history.
func (c *Client) MyForecasts(ctx context.Context, status string, limit, offset int) ([]ForecastRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if status != "" {
		q.Set("status", status)
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var resp struct {
		Forecasts []ForecastRecord `json:"forecasts"`
	}
	if err := c.get(ctx, "/my-forecasts", q, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching forecasts: %w", err)
	}
	return resp.Forecasts, nil
}

// SubmitForecast signs and posts one v1 forecast.
func (c *Client) SubmitForecast(ctx context.Context, req ForecastRequest) (*ForecastResponse, error) {
	var resp ForecastResponse
	if err := c.postSigned(ctx, "/agent-forecast", req, &resp); err != nil {
		return nil, fmt.Errorf("submitting forecast for %s: %w", req.MarketSlug, err)
	}
	return &resp, nil
}

// AgentTasks fetches the current open round and its tasks. Auth headers
// are sent when credentials are present but the endpoint works without.
func (c *Client) AgentTasks(ctx context.Context, pack, customer string) (*TasksResponse, error) {
	q := url.Values{}
	if pack != "" {
		q.Set("pack", pack)
	}
	if customer != "" {
		q.Set("customer", customer)
	}

	var resp TasksResponse
	if err := c.get(ctx, "/agent-tasks", q, c.creds.AgentID != "", &resp); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}
	return &resp, nil
}

// MyPredictions fetches the agent's v2 predictions, optionally scoped to a
// round.
func (c *Client) MyPredictions(ctx context.Context, roundID, status string, limit int) ([]PredictionRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if roundID != "" {
		q.Set("round_id", roundID)
	}
	if status != "" {
		q.Set("status", status)
	}

	var resp struct {
		Predictions []PredictionRecord `json:"predictions"`
	}
	if err := c.get(ctx, "/my-predictions", q, true, &resp); err != nil {
		return nil, fmt.Errorf("fetching predictions: %w", err)
	}
	return resp.Predictions, nil
}

// SubmitPredictions signs and posts one batch of v2 predictions. The
// caller is responsible for keeping the batch within MaxBatchSize.
func (c *Client) SubmitPredictions(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if len(req.Predictions) > MaxBatchSize {
		return nil, fmt.Errorf("batch too large: %d predictions (max %d)", len(req.Predictions), MaxBatchSize)
	}

	var resp BatchResponse
	if err := c.postSigned(ctx, "/agent-predictions-batch", req, &resp); err != nil {
		return nil, fmt.Errorf("submitting batch for round %s: %w", req.RoundID, err)
	}
	return &resp, nil
}

// Register creates a new agent identity. Unauthenticated and unsigned.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding register request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent-register", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp RegisterResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, fmt.Errorf("registering agent: %w", err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, auth bool, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if auth {
		req.Header.Set("X-Agent-Id", c.creds.AgentID)
		req.Header.Set("X-Api-Key", c.creds.APIKey)
	}

	return c.do(req, out)
}

// postSigned marshals payload once, signs the resulting bytes and sends
// that same buffer. Re-encoding after signing would change float
// formatting and break the signature.
func (c *Client) postSigned(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-Id", c.creds.AgentID)
	req.Header.Set("X-Api-Key", c.creds.APIKey)
	req.Header.Set("X-Signature", Sign(c.creds.APIKey, body))

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
