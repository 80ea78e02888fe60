package submit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"oraclebot/internal/oracle"
)

// Submitter translates sized opinions into signed API calls and records
// what was sent. Failures are logged and skipped; there are no retries.
type Submitter struct {
	client *oracle.Client
	db     *sql.DB
	failed map[string]int // market key -> consecutive failure count
}

func New(client *oracle.Client, db *sql.DB) *Submitter {
	return &Submitter{
		client: client,
		db:     db,
		failed: make(map[string]int),
	}
}

// Forecast submits one v1 forecast. Markets that keep failing are
// blacklisted so the loop stops wasting calls on them.
func (s *Submitter) Forecast(ctx context.Context, req oracle.ForecastRequest, category string) (*oracle.ForecastResponse, error) {
	if s.failed[req.MarketSlug] >= 3 {
		slog.Info("skipping repeatedly failed market", "market", req.MarketSlug)
		return nil, fmt.Errorf("skipped: failed %d times", s.failed[req.MarketSlug])
	}

	slog.Info("submitting forecast",
		"market", req.MarketSlug,
		"p_yes", req.PYes,
		"confidence", req.Confidence,
		"stake", req.StakeUnits,
	)

	resp, err := s.client.SubmitForecast(ctx, req)
	if err != nil {
		s.recordFailure(req.MarketSlug, err)
		return nil, err
	}
	delete(s.failed, req.MarketSlug) // Reset on success.

	if dbErr := s.recordForecast(req, category, resp.ForecastID); dbErr != nil {
		slog.Error("failed to journal forecast", "error", dbErr)
	}

	slog.Info("forecast submitted",
		"market", req.MarketSlug,
		"forecast_id", resp.ForecastID,
	)
	return resp, nil
}

// Predictions submits v2 predictions for a round, splitting into batches
// the service will accept.
func (s *Submitter) Predictions(ctx context.Context, roundID string, preds []oracle.Prediction, categories map[string]string) (int, error) {
	upserted := 0
	for i := 0; i < len(preds); i += oracle.MaxBatchSize {
		end := i + oracle.MaxBatchSize
		if end > len(preds) {
			end = len(preds)
		}
		batch := preds[i:end]

		resp, err := s.client.SubmitPredictions(ctx, oracle.BatchRequest{
			RoundID:     roundID,
			Predictions: batch,
		})
		if err != nil {
			slog.Error("batch submission failed", "round", roundID, "size", len(batch), "error", err)
			continue
		}

		upserted += resp.Upserted
		for _, e := range resp.Errors {
			slog.Warn("prediction rejected", "pack_market", e.PackMarketID, "error", e.Error)
		}

		for _, p := range batch {
			if dbErr := s.recordPrediction(roundID, p, categories[p.PackMarketID]); dbErr != nil {
				slog.Error("failed to journal prediction", "error", dbErr)
			}
		}
	}

	if upserted == 0 && len(preds) > 0 {
		return 0, fmt.Errorf("no predictions accepted for round %s", roundID)
	}
	return upserted, nil
}

// recordFailure bumps the failure count, permanently blacklisting markets
// the service will never accept again (banned agent, unknown or closed
// market).
func (s *Submitter) recordFailure(slug string, err error) {
	var apiErr *oracle.APIError
	permanent := false
	if errors.As(err, &apiErr) {
		if apiErr.Status == 403 || apiErr.Status == 404 {
			permanent = true
		}
		if strings.Contains(apiErr.Message, "closed") || strings.Contains(apiErr.Message, "banned") {
			permanent = true
		}
	}

	if permanent {
		s.failed[slug] = 100 // Permanent blacklist.
		slog.Warn("market permanently blacklisted", "market", slug, "error", err)
	} else {
		s.failed[slug]++
	}
	slog.Error("forecast failed",
		"market", slug,
		"error", err,
		"consecutive_failures", s.failed[slug],
	)
}

func (s *Submitter) recordForecast(req oracle.ForecastRequest, category, forecastID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO forecasts (forecast_id, market_slug, category, p_yes, confidence, stake_units, selected_outcome, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		forecastID,
		req.MarketSlug,
		category,
		req.PYes,
		req.Confidence,
		req.StakeUnits,
		req.SelectedOutcome,
		req.Rationale,
	)
	if err != nil {
		return fmt.Errorf("inserting forecast: %w", err)
	}
	return nil
}

func (s *Submitter) recordPrediction(roundID string, p oracle.Prediction, category string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO predictions (round_id, pack_market_id, category, p_yes, confidence, stake, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		roundID,
		p.PackMarketID,
		category,
		p.PYes,
		p.Confidence,
		p.Stake,
		p.Rationale500,
	)
	if err != nil {
		return fmt.Errorf("inserting prediction: %w", err)
	}
	return nil
}
