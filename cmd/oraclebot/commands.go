package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"oraclebot/internal/analyst"
	"oraclebot/internal/config"
	"oraclebot/internal/db"
	"oraclebot/internal/oracle"
	"oraclebot/internal/revote"
	"oraclebot/internal/runner"
	"oraclebot/internal/scorecard"
	"oraclebot/internal/sizing"
	"oraclebot/internal/submit"
)

func newClient(cfg *config.Config, creds config.Credentials) *oracle.Client {
	return oracle.NewClient(cfg.API.BaseURL, creds)
}

func openJournal(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.General.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func cmdMarkets(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("markets", flag.ExitOnError)
	category := fs.String("category", cfg.API.Category, "Filter by category")
	limit := fs.Int("limit", cfg.API.MarketLimit, "Max markets to list (<=200)")
	asJSON := fs.Bool("json", false, "Output raw JSON")
	fs.Parse(args)

	client := newClient(cfg, config.Credentials{})
	markets, err := client.ListMarkets(ctx, "open", *limit, *category)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(markets)
	}

	fmt.Printf("\n%d open markets\n\n", len(markets))
	for _, m := range markets {
		fmt.Printf("  %s\n", m.Title)
		fmt.Printf("    slug: %s\n", m.Slug)
		fmt.Printf("    prob: %.0f%% | votes: %d | deadline: %s | cat: %s\n",
			m.MarketProb*100, m.ForecastsCount, m.DeadlineAt.Format("2006-01-02"), m.Category)
		if len(m.Outcomes) > 1 {
			labels := make([]string, len(m.Outcomes))
			for i, o := range m.Outcomes {
				labels[i] = o.Label()
			}
			fmt.Printf("    outcomes: %s\n", strings.Join(labels, ", "))
		}
		fmt.Println()
	}
	return nil
}

func cmdForecast(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	slug := fs.String("slug", "", "Market slug (required)")
	pYes := fs.Float64("p-yes", -1, "Probability of YES, 0.01-0.99 (required)")
	confidence := fs.Float64("confidence", 0.8, "Confidence 0-1")
	stake := fs.Float64("stake", 5, "Stake units 0.1-100")
	rationale := fs.String("rationale", "", "Reasoning text (max 2000 chars)")
	outcome := fs.String("outcome", "", "Selected outcome for multi-outcome markets")
	fs.Parse(args)

	if *slug == "" || *pYes < 0 {
		return fmt.Errorf("forecast requires -slug and -p-yes")
	}
	if *pYes > 1 {
		return fmt.Errorf("p-yes must be in [0, 1], got %f", *pYes)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	client := newClient(cfg, creds)

	cache := oracle.NewCache(cfg.API.CacheTTL.Duration)
	category, err := validateOutcome(ctx, client, cache, cfg, *slug, *outcome)
	if err != nil {
		return err
	}

	database, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	submitter := submit.New(client, database)
	resp, err := submitter.Forecast(ctx, oracle.ForecastRequest{
		MarketSlug:      *slug,
		PYes:            *pYes,
		Confidence:      *confidence,
		StakeUnits:      *stake,
		Rationale:       truncate(*rationale, 2000),
		SelectedOutcome: *outcome,
	}, category)
	if err != nil {
		return err
	}

	fmt.Printf("forecast submitted: id=%s market=%s p_yes=%.2f confidence=%.2f stake=%.1f\n",
		resp.ForecastID, *slug, *pYes, *confidence, *stake)
	return nil
}

// validateOutcome checks a selected outcome against the market's outcome
// list when the market is visible in the open listing. Returns the market
// category for the journal.
func validateOutcome(ctx context.Context, client *oracle.Client, cache *oracle.Cache, cfg *config.Config, slug, outcome string) (string, error) {
	if _, ok := cache.Get(slug); !ok {
		markets, err := client.ListMarkets(ctx, "open", cfg.API.MarketLimit, "")
		if err != nil {
			// Listing failure shouldn't block a submission the server can
			// still validate.
			return "", nil
		}
		cache.SetAll(markets)
	}

	m, ok := cache.Get(slug)
	if !ok {
		return "", nil
	}
	if outcome == "" {
		return m.Category, nil
	}
	for _, o := range m.Outcomes {
		if o.Label() == outcome {
			return m.Category, nil
		}
	}
	return "", fmt.Errorf("outcome %q does not match any outcome of market %s", outcome, slug)
}

func cmdHistory(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	status := fs.String("status", "", "Filter: open or settled")
	limit := fs.Int("limit", 50, "Max results (<=100)")
	offset := fs.Int("offset", 0, "Pagination offset")
	asJSON := fs.Bool("json", false, "Output raw JSON")
	fs.Parse(args)

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	client := newClient(cfg, creds)

	forecasts, err := client.MyForecasts(ctx, *status, *limit, *offset)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(forecasts)
	}

	fmt.Printf("\n%d forecasts\n\n", len(forecasts))
	for _, f := range forecasts {
		line := fmt.Sprintf("  %s: p=%.2f conf=%.2f stake=%.1f", f.MarketSlug, f.PYes, f.Confidence, f.StakeUnits)
		if f.SelectedOutcome != "" {
			line += fmt.Sprintf(" [%s]", f.SelectedOutcome)
		}
		if f.Score != nil {
			line += fmt.Sprintf(" | brier=%.3f pnl=%.1f", f.Score.Brier, f.Score.PnLPoints)
		}
		fmt.Println(line)
	}
	return nil
}

func cmdAuto(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("auto", flag.ExitOnError)
	v2 := fs.Bool("v2", false, "Forecast round tasks instead of open markets")
	loop := fs.Bool("loop", false, "Keep running on the configured cycle interval")
	fs.Parse(args)

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	an, err := analyst.New(cfg.Analyst)
	if err != nil {
		return err
	}

	mode, err := revote.ParseMode(cfg.Revote.Mode)
	if err != nil {
		return err
	}

	database, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	client := newClient(cfg, creds)
	r := runner.New(
		client,
		oracle.NewCache(cfg.API.CacheTTL.Duration),
		an,
		sizing.New(cfg.Sizing),
		revote.NewPolicy(mode, cfg.Revote.DeadlineWindow.Duration),
		submit.New(client, database),
		cfg.Schedule.SubmitDelay.Duration,
		cfg.API,
	)

	return r.Run(ctx, *v2, *loop, cfg.Schedule.CycleInterval.Duration)
}

func cmdTasks(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("tasks", flag.ExitOnError)
	pack := fs.String("pack", cfg.API.Pack, "Pack slug filter")
	customer := fs.String("customer", cfg.API.Customer, "Customer slug filter")
	asJSON := fs.Bool("json", false, "Output raw JSON")
	fs.Parse(args)

	// Tasks work without credentials; send them when available.
	creds, _ := config.LoadCredentials()
	client := newClient(cfg, creds)

	tasks, err := client.AgentTasks(ctx, *pack, *customer)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(tasks)
	}

	if tasks.Round == nil {
		fmt.Println("no open round found")
		return nil
	}

	fmt.Printf("\nround %s ends %s, %d tasks\n", tasks.Round.ID,
		tasks.Round.EndsAt.Format(time.RFC3339), len(tasks.Tasks))
	if tasks.Rules != nil {
		fmt.Printf("rules: min_confidence=%.2f max_markets=%d\n",
			tasks.Rules.MinConfidence, tasks.Rules.MaxMarkets)
	}
	fmt.Println()
	for _, t := range tasks.Tasks {
		fmt.Printf("  %s\n", t.Question)
		fmt.Printf("    id: %s | cat: %s | kind: %s | weight: %.1f\n",
			t.PackMarketID, t.Category, t.MarketKind, t.Weight)
		if t.ResolutionRule != "" {
			fmt.Printf("    rule: %s\n", t.ResolutionRule)
		}
		fmt.Println()
	}
	return nil
}

func cmdPredict(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	round := fs.String("round", "", "Round ID (required)")
	market := fs.String("market", "", "Pack market ID (required)")
	pYes := fs.Float64("p-yes", -1, "Probability of YES, 0-1 (required)")
	confidence := fs.Float64("confidence", 0.8, "Confidence 0-1")
	stake := fs.Int("stake", 5, "Stake 0-100")
	rationale := fs.String("rationale", "", "Reasoning (max 500 chars)")
	fs.Parse(args)

	if *round == "" || *market == "" || *pYes < 0 {
		return fmt.Errorf("predict requires -round, -market and -p-yes")
	}
	if _, err := uuid.Parse(*round); err != nil {
		return fmt.Errorf("round id is not a valid UUID: %w", err)
	}
	if _, err := uuid.Parse(*market); err != nil {
		return fmt.Errorf("pack market id is not a valid UUID: %w", err)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	database, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	client := newClient(cfg, creds)
	submitter := submit.New(client, database)

	upserted, err := submitter.Predictions(ctx, *round, []oracle.Prediction{{
		PackMarketID: *market,
		PYes:         *pYes,
		Confidence:   *confidence,
		Stake:        *stake,
		Rationale500: truncate(*rationale, 500),
	}}, nil)
	if err != nil {
		return err
	}

	fmt.Printf("prediction submitted: round=%s market=%s upserted=%d\n", *round, *market, upserted)
	return nil
}

func cmdBatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	round := fs.String("round", "", "Round ID (required)")
	file := fs.String("file", "", "JSON file of predictions, or - for stdin (required)")
	fs.Parse(args)

	if *round == "" || *file == "" {
		return fmt.Errorf("batch requires -round and -file")
	}

	var raw []byte
	var err error
	if *file == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("reading predictions: %w", err)
	}

	var preds []oracle.Prediction
	if err := json.Unmarshal(raw, &preds); err != nil {
		return fmt.Errorf("predictions file must be a JSON array: %w", err)
	}
	if len(preds) == 0 {
		return fmt.Errorf("no predictions in file")
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}

	database, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	client := newClient(cfg, creds)
	submitter := submit.New(client, database)

	upserted, err := submitter.Predictions(ctx, *round, preds, nil)
	if err != nil {
		return err
	}

	fmt.Printf("batch submitted: %d predictions upserted\n", upserted)
	return nil
}

func cmdStatus(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	round := fs.String("round", "", "Round ID (optional)")
	status := fs.String("status", "open", "Filter: open, closed, scored, all")
	asJSON := fs.Bool("json", false, "Output raw JSON")
	fs.Parse(args)

	creds, err := config.LoadCredentials()
	if err != nil {
		return err
	}
	client := newClient(cfg, creds)

	filter := *status
	if filter == "all" {
		filter = ""
	}
	preds, err := client.MyPredictions(ctx, *round, filter, 100)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(preds)
	}

	fmt.Printf("\n%d predictions\n\n", len(preds))
	for _, p := range preds {
		fmt.Printf("  %s\n", p.Question)
		fmt.Printf("    p=%.2f conf=%.2f stake=%d | round: %s | active: %t\n",
			p.PYes, p.Confidence, p.Stake, p.RoundStatus, p.IsActive)
	}
	return nil
}

func cmdRegister(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Agent name (required)")
	invite := fs.String("invite", "", "Invite code")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("register requires -name")
	}

	client := newClient(cfg, config.Credentials{})
	resp, err := client.Register(ctx, oracle.RegisterRequest{
		Name:       *name,
		InviteCode: *invite,
	})
	if err != nil {
		return err
	}

	fmt.Printf("agent registered\n")
	fmt.Printf("  ORACLE_AGENT_ID=%s\n", resp.AgentID)
	fmt.Printf("  ORACLE_API_KEY=%s\n", resp.APIKey)
	fmt.Println("the API key is shown once; store it now")
	return nil
}

func cmdReport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	sync := fs.Bool("sync", false, "Sync settled scores from the service first")
	fs.Parse(args)

	database, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if *sync {
		creds, err := config.LoadCredentials()
		if err != nil {
			return err
		}
		syncer := scorecard.NewSyncer(newClient(cfg, creds), database)
		if err := syncer.Sync(ctx); err != nil {
			return err
		}
	}

	report, err := scorecard.NewTracker(database).Generate()
	if err != nil {
		return err
	}
	scorecard.LogReport(report)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
