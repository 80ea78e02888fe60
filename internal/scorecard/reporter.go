package scorecard

import (
	"log/slog"
)

// LogReport logs the scorecard as structured JSON.
func LogReport(r *Report) {
	slog.Info("=== SCORECARD ===",
		"forecasts", r.TotalForecasts,
		"predictions", r.TotalPredictions,
		"settled", r.Settled,
		"mean_brier", r.MeanBrier,
		"pnl_points", r.TotalPnLPoints,
	)

	for name, stats := range r.CategoryStats {
		slog.Info("category calibration",
			"category", name,
			"settled", stats.Settled,
			"mean_brier", stats.MeanBrier,
			"pnl_points", stats.PnLPoints,
		)
	}
}
