package runner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"oraclebot/internal/analyst"
	"oraclebot/internal/config"
	"oraclebot/internal/oracle"
	"oraclebot/internal/revote"
	"oraclebot/internal/sizing"
	"oraclebot/internal/submit"
)

var testCreds = config.Credentials{
	AgentID: "3fa85f64-5717-4562-b3fc-2c963f66afa6",
	APIKey:  "ap_test_key",
}

type stubAnalyst struct {
	op    analyst.Opinion
	calls int
}

func (s *stubAnalyst) Name() string { return "stub" }

func (s *stubAnalyst) Analyze(_ context.Context, _ analyst.Question) (analyst.Opinion, error) {
	s.calls++
	return s.op, nil
}

// fakeService records signed submissions while serving canned listings.
type fakeService struct {
	mu          sync.Mutex
	forecasts   [][]byte // raw bodies posted to /agent-forecast
	batches     [][]byte // raw bodies posted to /agent-predictions-batch
	signatures  []string
	votedSlugs  []string
	failListing bool
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/list-markets", func(w http.ResponseWriter, r *http.Request) {
		if f.failListing {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		w.Write([]byte(`[
			{"slug":"btc-100k","title":"Will Bitcoin reach $100,000?","category":"Crypto","market_prob":0.62,"deadline_at":"2026-12-31T00:00:00Z"},
			{"slug":"eth-flip","title":"Will ETH flip BTC?","category":"Crypto","market_prob":0.08,"deadline_at":"2026-12-31T00:00:00Z"}
		]`))
	})
	mux.HandleFunc("/my-forecasts", func(w http.ResponseWriter, r *http.Request) {
		type rec struct {
			MarketSlug string `json:"market_slug"`
		}
		f.mu.Lock()
		recs := make([]rec, 0, len(f.votedSlugs))
		for _, s := range f.votedSlugs {
			recs = append(recs, rec{MarketSlug: s})
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"forecasts": recs})
	})
	mux.HandleFunc("/agent-forecast", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.forecasts = append(f.forecasts, body)
		f.signatures = append(f.signatures, r.Header.Get("X-Signature"))
		f.mu.Unlock()
		w.Write([]byte(`{"success":true,"forecast_id":"f-1"}`))
	})
	mux.HandleFunc("/agent-tasks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"round":{"id":"r-1","ends_at":"2026-09-30T00:00:00Z"},
			"tasks":[
				{"pack_market_id":"pm-1","question":"Task one?","category":"Econ"},
				{"pack_market_id":"pm-2","question":"Task two?","category":"Tech"}
			],
			"rules":{"min_confidence":0.6,"max_markets":10}
		}`))
	})
	mux.HandleFunc("/my-predictions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	})
	mux.HandleFunc("/agent-predictions-batch", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req oracle.BatchRequest
		json.Unmarshal(body, &req)
		f.mu.Lock()
		f.batches = append(f.batches, body)
		f.signatures = append(f.signatures, r.Header.Get("X-Signature"))
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "upserted": len(req.Predictions)})
	})
	return mux
}

func newTestRunner(url string, an analyst.Analyst, mode revote.Mode) *Runner {
	client := oracle.NewClient(url, testCreds)
	cfg := config.APIConfig{MarketLimit: 100}
	return New(
		client,
		oracle.NewCache(10*time.Minute),
		an,
		sizing.New(config.SizingConfig{MinConfidence: 0.55, MaxStake: 20, ImplicitNoBets: true}),
		revote.NewPolicy(mode, 24*time.Hour),
		submit.New(client, nil),
		time.Millisecond,
		cfg,
	)
}

func TestMarketCycle_SubmitsSizedSignedForecast(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.70, Confidence: 0.80, Rationale: "momentum"}}
	r := newTestRunner(srv.URL, an, revote.Never)

	if err := r.RunMarketCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(svc.forecasts) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(svc.forecasts))
	}

	var req oracle.ForecastRequest
	if err := json.Unmarshal(svc.forecasts[0], &req); err != nil {
		t.Fatal(err)
	}
	if req.MarketSlug != "btc-100k" {
		t.Errorf("market = %s, want btc-100k", req.MarketSlug)
	}
	// confidence 0.80 with max stake 20: clamp(round(20*0.3*2), 1, 20) = 12.
	if req.StakeUnits != 12 {
		t.Errorf("stake = %f, want 12", req.StakeUnits)
	}
	if req.PYes != 0.70 {
		t.Errorf("p_yes = %f, want 0.70", req.PYes)
	}

	// Signature must match the exact transmitted bytes.
	if want := oracle.Sign(testCreds.APIKey, svc.forecasts[0]); svc.signatures[0] != want {
		t.Errorf("signature %s does not verify against submitted body", svc.signatures[0])
	}
}

func TestMarketCycle_LowConfidenceSkipsSubmission(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	// p_yes above 0.5, so no implicit-NO boost: 0.40 stays below 0.55.
	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.60, Confidence: 0.40}}
	r := newTestRunner(srv.URL, an, revote.Never)

	if err := r.RunMarketCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(svc.forecasts) != 0 {
		t.Errorf("expected no submissions, got %d", len(svc.forecasts))
	}
	if an.calls != 2 {
		t.Errorf("expected both markets analyzed, got %d", an.calls)
	}
}

func TestMarketCycle_RevoteNeverSkipsVotedMarkets(t *testing.T) {
	svc := &fakeService{votedSlugs: []string{"btc-100k"}}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.70, Confidence: 0.80}}
	r := newTestRunner(srv.URL, an, revote.Never)

	if err := r.RunMarketCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(svc.forecasts) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(svc.forecasts))
	}
	var req oracle.ForecastRequest
	json.Unmarshal(svc.forecasts[0], &req)
	if req.MarketSlug != "eth-flip" {
		t.Errorf("submitted %s, want only the unvoted eth-flip", req.MarketSlug)
	}
	if an.calls != 1 {
		t.Errorf("voted market should not be analyzed, got %d calls", an.calls)
	}
}

func TestMarketCycle_RevoteAlwaysResubmits(t *testing.T) {
	svc := &fakeService{votedSlugs: []string{"btc-100k", "eth-flip"}}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.70, Confidence: 0.80}}
	r := newTestRunner(srv.URL, an, revote.Always)

	if err := r.RunMarketCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(svc.forecasts) != 2 {
		t.Errorf("expected every market resubmitted, got %d", len(svc.forecasts))
	}
}

func TestMarketCycle_ListFailureAborts(t *testing.T) {
	svc := &fakeService{failListing: true}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.70, Confidence: 0.80}}
	r := newTestRunner(srv.URL, an, revote.Never)

	if err := r.RunMarketCycle(context.Background()); err == nil {
		t.Error("expected error when the market list fetch fails")
	}
	if an.calls != 0 {
		t.Errorf("nothing should be analyzed after a failed list fetch, got %d calls", an.calls)
	}
}

func TestRoundCycle_BatchesPredictions(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.70, Confidence: 0.80, Rationale: "base rates"}}
	r := newTestRunner(srv.URL, an, revote.Never)

	if err := r.RunRoundCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(svc.batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(svc.batches))
	}

	var req oracle.BatchRequest
	if err := json.Unmarshal(svc.batches[0], &req); err != nil {
		t.Fatal(err)
	}
	if req.RoundID != "r-1" {
		t.Errorf("round = %s, want r-1", req.RoundID)
	}
	if len(req.Predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(req.Predictions))
	}
	if req.Predictions[0].Stake != 12 {
		t.Errorf("stake = %d, want 12", req.Predictions[0].Stake)
	}
}

func TestRoundCycle_RulesOverrideThreshold(t *testing.T) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()

	// 0.58 passes the configured 0.55 threshold but not the round's 0.6.
	an := &stubAnalyst{op: analyst.Opinion{PYes: 0.70, Confidence: 0.58}}
	r := newTestRunner(srv.URL, an, revote.Never)

	if err := r.RunRoundCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(svc.batches) != 0 {
		t.Errorf("expected no batch below the round threshold, got %d", len(svc.batches))
	}
}
