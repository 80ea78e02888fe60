package oracle

import "time"

// Market is one open market as returned by /list-markets.
type Market struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	MarketProb     float64   `json:"market_prob"`
	ForecastsCount int       `json:"forecasts_count"`
	DeadlineAt     time.Time `json:"deadline_at"`
	IsHot          bool      `json:"is_polymarket_hot"`
	Outcomes       []Outcome `json:"polymarket_outcomes"`
}

// Outcome is one option of a multi-outcome market. The service reports
// either a question or a name depending on origin.
type Outcome struct {
	Question string `json:"question"`
	Name     string `json:"name"`
}

func (o Outcome) Label() string {
	if o.Question != "" {
		return o.Question
	}
	return o.Name
}

// ForecastRequest is the v1 per-market submission shape. Field order matters:
// the serialized bytes are signed, so the struct must marshal the same way
// every time.
type ForecastRequest struct {
	MarketSlug      string  `json:"market_slug"`
	PYes            float64 `json:"p_yes"`
	Confidence      float64 `json:"confidence"`
	StakeUnits      float64 `json:"stake_units"`
	Rationale       string  `json:"rationale"`
	SelectedOutcome string  `json:"selected_outcome,omitempty"`
}

// ForecastResponse is the acknowledgement for a v1 submission.
type ForecastResponse struct {
	Success    bool    `json:"success"`
	ForecastID string  `json:"forecast_id"`
	PYes       float64 `json:"p_yes"`
	Error      string  `json:"error"`
}

// ForecastRecord is one row of /my-forecasts history.
type ForecastRecord struct {
	MarketSlug      string  `json:"market_slug"`
	PYes            float64 `json:"p_yes"`
	Confidence      float64 `json:"confidence"`
	StakeUnits      float64 `json:"stake_units"`
	SelectedOutcome string  `json:"selected_outcome"`
	Market          *struct {
		Slug            string `json:"slug"`
		Status          string `json:"status"`
		ResolvedOutcome string `json:"resolved_outcome"`
	} `json:"market"`
	Score *Score `json:"score"`
}

// Score is the server-side calibration result for a settled forecast.
type Score struct {
	Brier     float64 `json:"brier"`
	PnLPoints float64 `json:"pnl_points"`
}

// Round groups v2 tasks scored together.
type Round struct {
	ID     string    `json:"id"`
	EndsAt time.Time `json:"ends_at"`
	Status string    `json:"status"`
}

// Task is one v2 forecasting task within a round.
type Task struct {
	PackMarketID   string     `json:"pack_market_id"`
	Question       string     `json:"question"`
	Category       string     `json:"category"`
	MarketKind     string     `json:"market_kind"`
	Weight         float64    `json:"weight"`
	ResolutionRule string     `json:"resolution_rule"`
	ExternalRef    string     `json:"external_ref"`
	CloseAt        *time.Time `json:"close_at"`
}

// RoundRules are per-round constraints the service publishes with tasks.
type RoundRules struct {
	MinConfidence float64 `json:"min_confidence"`
	MaxMarkets    int     `json:"max_markets"`
}

// TasksResponse is the /agent-tasks payload.
type TasksResponse struct {
	Round *Round      `json:"round"`
	Tasks []Task      `json:"tasks"`
	Rules *RoundRules `json:"rules"`
}

// Prediction is the v2 per-task submission shape.
type Prediction struct {
	PackMarketID string  `json:"pack_market_id"`
	PYes         float64 `json:"p_yes"`
	Confidence   float64 `json:"confidence"`
	Stake        int     `json:"stake"`
	Rationale500 string  `json:"rationale_500,omitempty"`
}

// BatchRequest wraps up to MaxBatchSize predictions for one round.
type BatchRequest struct {
	RoundID     string       `json:"round_id"`
	Predictions []Prediction `json:"predictions"`
}

// BatchResponse reports per-item results of a batch submission.
type BatchResponse struct {
	OK       bool `json:"ok"`
	Upserted int  `json:"upserted"`
	Errors   []struct {
		PackMarketID string `json:"pack_market_id"`
		Error        string `json:"error"`
	} `json:"errors"`
}

// PredictionRecord is one row of /my-predictions.
type PredictionRecord struct {
	PackMarketID string  `json:"pack_market_id"`
	Question     string  `json:"question"`
	PYes         float64 `json:"p_yes"`
	Confidence   float64 `json:"confidence"`
	Stake        int     `json:"stake"`
	RoundStatus  string  `json:"round_status"`
	IsActive     bool    `json:"is_active"`
}

// RegisterRequest creates a new agent identity.
type RegisterRequest struct {
	Name       string `json:"name"`
	InviteCode string `json:"invite_code"`
}

// RegisterResponse carries the credentials for a newly created agent. The
// API key is shown exactly once.
type RegisterResponse struct {
	AgentID string `json:"agent_id"`
	APIKey  string `json:"api_key"`
	Error   string `json:"error"`
}
