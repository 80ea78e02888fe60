package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"oraclebot/internal/analyst"
	"oraclebot/internal/config"
	"oraclebot/internal/oracle"
	"oraclebot/internal/revote"
	"oraclebot/internal/sizing"
	"oraclebot/internal/submit"
)

// Runner drives the sequential forecast loops: fetch, filter, analyze,
// size, submit, wait. One item at a time; the remote rate limit is the
// bottleneck, not local throughput.
type Runner struct {
	client    *oracle.Client
	cache     *oracle.Cache
	analyst   analyst.Analyst
	sizer     *sizing.Sizer
	policy    *revote.Policy
	submitter *submit.Submitter
	limiter   *rate.Limiter
	cfg       config.APIConfig
}

func New(
	client *oracle.Client,
	cache *oracle.Cache,
	an analyst.Analyst,
	sizer *sizing.Sizer,
	policy *revote.Policy,
	submitter *submit.Submitter,
	submitDelay time.Duration,
	cfg config.APIConfig,
) *Runner {
	return &Runner{
		client:    client,
		cache:     cache,
		analyst:   an,
		sizer:     sizer,
		policy:    policy,
		submitter: submitter,
		limiter:   rate.NewLimiter(rate.Every(submitDelay), 1),
		cfg:       cfg,
	}
}

// Run executes cycles until the context is cancelled. With loop false a
// single cycle runs and Run returns.
func (r *Runner) Run(ctx context.Context, v2 bool, loop bool, interval time.Duration) error {
	cycle := r.RunMarketCycle
	if v2 {
		cycle = r.RunRoundCycle
	}

	// Run first cycle immediately.
	if err := cycle(ctx); err != nil {
		return err
	}
	if !loop {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("runner shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := cycle(ctx); err != nil {
				slog.Error("cycle failed", "error", err)
			}
		}
	}
}

// RunMarketCycle is the v1 loop over open markets. A failed market list
// fetch aborts the cycle; everything after is per-item.
func (r *Runner) RunMarketCycle(ctx context.Context) error {
	slog.Info("starting forecast cycle")

	markets, err := r.client.ListMarkets(ctx, "open", r.cfg.MarketLimit, r.cfg.Category)
	if err != nil {
		return fmt.Errorf("fetching market list: %w", err)
	}
	r.cache.SetAll(markets)

	voted := make(map[string]bool)
	existing, err := r.client.MyForecasts(ctx, "open", 100, 0)
	if err != nil {
		slog.Warn("failed to fetch existing forecasts, treating all markets as unvoted", "error", err)
	}
	for _, f := range existing {
		if f.MarketSlug != "" {
			voted[f.MarketSlug] = true
		}
	}

	slog.Info("markets fetched", "open", len(markets), "already_voted", len(voted))

	now := time.Now()
	submitted, skipped, failed := 0, 0, 0
	for _, m := range markets {
		if !r.policy.ShouldSubmit(voted[m.Slug], m.DeadlineAt, now) {
			skipped++
			continue
		}

		op, err := r.analyst.Analyze(ctx, analyst.Question{
			Title:       m.Title,
			Description: m.Description,
			Category:    m.Category,
		})
		if err != nil {
			slog.Error("analysis failed", "market", m.Slug, "error", err)
			failed++
			continue
		}

		conf := r.sizer.EffectiveConfidence(op.PYes, op.Confidence)
		stake := r.sizer.Stake(conf)
		if stake == 0 {
			slog.Info("no bet: confidence below threshold",
				"market", m.Slug,
				"p_yes", op.PYes,
				"confidence", conf,
			)
			skipped++
			continue
		}

		_, err = r.submitter.Forecast(ctx, oracle.ForecastRequest{
			MarketSlug: m.Slug,
			PYes:       op.PYes,
			Confidence: op.Confidence,
			StakeUnits: float64(stake),
			Rationale:  op.Rationale,
		}, m.Category)
		if err != nil {
			failed++
		} else {
			submitted++
		}

		// Fixed delay between submissions to respect the remote rate limit.
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	slog.Info("forecast cycle complete", "submitted", submitted, "skipped", skipped, "failed", failed)
	return nil
}

// RunRoundCycle is the v2 loop over the current round's tasks. Nonzero
// stakes are collected and submitted in batches.
func (r *Runner) RunRoundCycle(ctx context.Context) error {
	slog.Info("starting round cycle", "pack", r.cfg.Pack, "customer", r.cfg.Customer)

	tasks, err := r.client.AgentTasks(ctx, r.cfg.Pack, r.cfg.Customer)
	if err != nil {
		return fmt.Errorf("fetching tasks: %w", err)
	}
	if tasks.Round == nil {
		slog.Info("no open round")
		return nil
	}
	if len(tasks.Tasks) == 0 {
		slog.Info("round has no active tasks", "round", tasks.Round.ID)
		return nil
	}

	voted := make(map[string]bool)
	existing, err := r.client.MyPredictions(ctx, tasks.Round.ID, "open", 200)
	if err != nil {
		slog.Warn("failed to fetch existing predictions, treating all tasks as unvoted", "error", err)
	}
	for _, p := range existing {
		if p.PackMarketID != "" {
			voted[p.PackMarketID] = true
		}
	}

	minConfidence := r.sizer.MinConfidenceDefault()
	maxTasks := len(tasks.Tasks)
	if tasks.Rules != nil {
		if tasks.Rules.MinConfidence > 0 {
			minConfidence = tasks.Rules.MinConfidence
		}
		if tasks.Rules.MaxMarkets > 0 && tasks.Rules.MaxMarkets < maxTasks {
			maxTasks = tasks.Rules.MaxMarkets
		}
	}

	slog.Info("round fetched",
		"round", tasks.Round.ID,
		"tasks", len(tasks.Tasks),
		"already_voted", len(voted),
		"min_confidence", minConfidence,
	)

	now := time.Now()
	var preds []oracle.Prediction
	categories := make(map[string]string)
	for _, t := range tasks.Tasks {
		if len(preds) >= maxTasks {
			break
		}

		deadline := tasks.Round.EndsAt
		if t.CloseAt != nil {
			deadline = *t.CloseAt
		}
		if !r.policy.ShouldSubmit(voted[t.PackMarketID], deadline, now) {
			continue
		}

		op, err := r.analyst.Analyze(ctx, analyst.Question{
			Title:       t.Question,
			Description: t.ResolutionRule,
			Category:    t.Category,
		})
		if err != nil {
			slog.Error("analysis failed", "task", t.PackMarketID, "error", err)
			continue
		}

		conf := r.sizer.EffectiveConfidence(op.PYes, op.Confidence)
		stake := r.sizer.StakeWithThreshold(conf, minConfidence)
		if stake == 0 {
			slog.Info("no bet: confidence below threshold",
				"task", t.PackMarketID,
				"confidence", conf,
			)
			continue
		}

		preds = append(preds, oracle.Prediction{
			PackMarketID: t.PackMarketID,
			PYes:         op.PYes,
			Confidence:   op.Confidence,
			Stake:        stake,
			Rationale500: truncate(op.Rationale, 500),
		})
		categories[t.PackMarketID] = t.Category

		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if len(preds) == 0 {
		slog.Info("round cycle complete: nothing to submit")
		return nil
	}

	upserted, err := r.submitter.Predictions(ctx, tasks.Round.ID, preds, categories)
	if err != nil {
		return err
	}
	slog.Info("round cycle complete", "round", tasks.Round.ID, "upserted", upserted)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
