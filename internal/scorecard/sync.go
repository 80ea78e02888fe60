package scorecard

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"oraclebot/internal/oracle"
)

// Syncer pulls settled results from the remote service into the journal so
// reports work offline. It never feeds back into submission decisions.
type Syncer struct {
	client *oracle.Client
	db     *sql.DB
}

func NewSyncer(client *oracle.Client, db *sql.DB) *Syncer {
	return &Syncer{client: client, db: db}
}

// Sync fetches settled forecasts and upserts their scores.
func (s *Syncer) Sync(ctx context.Context) error {
	records, err := s.client.MyForecasts(ctx, "settled", 100, 0)
	if err != nil {
		return fmt.Errorf("fetching settled forecasts: %w", err)
	}

	synced := 0
	for _, rec := range records {
		if rec.Score == nil {
			continue
		}
		if err := s.upsertScore(rec); err != nil {
			slog.Warn("failed to upsert score", "market", rec.MarketSlug, "error", err)
			continue
		}
		synced++
	}

	slog.Info("score sync complete", "settled", len(records), "synced", synced)
	return nil
}

func (s *Syncer) upsertScore(rec oracle.ForecastRecord) error {
	var resolved string
	if rec.Market != nil {
		resolved = rec.Market.ResolvedOutcome
	}

	// The history endpoint doesn't carry the category; recover it from the
	// journal when we submitted this market ourselves.
	var category string
	row := s.db.QueryRow(`SELECT COALESCE(category, '') FROM forecasts WHERE market_slug = ? ORDER BY id DESC LIMIT 1`, rec.MarketSlug)
	if err := row.Scan(&category); err != nil && err != sql.ErrNoRows {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO scores (market_slug, category, p_yes, resolved_outcome, brier, pnl_points)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_slug) DO UPDATE SET
			resolved_outcome = excluded.resolved_outcome,
			brier = excluded.brier,
			pnl_points = excluded.pnl_points,
			settled_at = datetime('now')`,
		rec.MarketSlug, category, rec.PYes, resolved, rec.Score.Brier, rec.Score.PnLPoints,
	)
	return err
}
