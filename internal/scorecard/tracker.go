package scorecard

import (
	"database/sql"
	"fmt"
)

// Tracker computes calibration metrics from the journal.
type Tracker struct {
	db *sql.DB
}

func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Report contains all scorecard metrics.
type Report struct {
	TotalForecasts   int
	TotalPredictions int
	Settled          int
	MeanBrier        float64
	TotalPnLPoints   float64
	CategoryStats    map[string]CategoryStats
}

// CategoryStats contains per-category calibration.
type CategoryStats struct {
	Settled   int
	MeanBrier float64
	PnLPoints float64
}

// Generate computes the full scorecard.
func (t *Tracker) Generate() (*Report, error) {
	r := &Report{
		CategoryStats: make(map[string]CategoryStats),
	}

	if err := t.computeOverall(r); err != nil {
		return nil, fmt.Errorf("computing overall stats: %w", err)
	}
	if err := t.computeCategoryStats(r); err != nil {
		return nil, fmt.Errorf("computing category stats: %w", err)
	}

	return r, nil
}

func (t *Tracker) computeOverall(r *Report) error {
	row := t.db.QueryRow(`SELECT COUNT(*) FROM forecasts`)
	if err := row.Scan(&r.TotalForecasts); err != nil {
		return err
	}

	row = t.db.QueryRow(`SELECT COUNT(*) FROM predictions`)
	if err := row.Scan(&r.TotalPredictions); err != nil {
		return err
	}

	row = t.db.QueryRow(`
		SELECT COUNT(*), COALESCE(AVG(brier), 0), COALESCE(SUM(pnl_points), 0)
		FROM scores`)
	if err := row.Scan(&r.Settled, &r.MeanBrier, &r.TotalPnLPoints); err != nil {
		return err
	}

	return nil
}

func (t *Tracker) computeCategoryStats(r *Report) error {
	rows, err := t.db.Query(`
		SELECT COALESCE(category, ''), COUNT(*), COALESCE(AVG(brier), 0), COALESCE(SUM(pnl_points), 0)
		FROM scores GROUP BY category`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var stats CategoryStats
		if err := rows.Scan(&name, &stats.Settled, &stats.MeanBrier, &stats.PnLPoints); err != nil {
			return err
		}
		if name == "" {
			name = "uncategorized"
		}
		r.CategoryStats[name] = stats
	}
	return rows.Err()
}
