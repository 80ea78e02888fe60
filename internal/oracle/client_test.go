package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"oraclebot/internal/config"
)

var testCreds = config.Credentials{
	AgentID: "3fa85f64-5717-4562-b3fc-2c963f66afa6",
	APIKey:  "ap_test_key",
}

func TestListMarkets_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list-markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "open" || q.Get("limit") != "100" || q.Get("category") != "Crypto" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"slug":"btc-100k","title":"BTC to 100k?","market_prob":0.62}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, config.Credentials{})
	markets, err := c.ListMarkets(context.Background(), "open", 100, "Crypto")
	if err != nil {
		t.Fatal(err)
	}
	if len(markets) != 1 || markets[0].Slug != "btc-100k" {
		t.Errorf("unexpected markets: %+v", markets)
	}
}

func TestSubmitForecast_SignsExactBody(t *testing.T) {
	var gotBody []byte
	var gotSig, gotAgent, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
		gotAgent = r.Header.Get("X-Agent-Id")
		gotKey = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{"success":true,"forecast_id":"f-1","p_yes":0.7}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds)
	resp, err := c.SubmitForecast(context.Background(), ForecastRequest{
		MarketSlug: "btc-100k",
		PYes:       0.7,
		Confidence: 0.8,
		StakeUnits: 12,
		Rationale:  "momentum",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.ForecastID != "f-1" {
		t.Errorf("forecast id = %s, want f-1", resp.ForecastID)
	}

	if gotAgent != testCreds.AgentID || gotKey != testCreds.APIKey {
		t.Errorf("identity headers wrong: %s / %s", gotAgent, gotKey)
	}

	// The signature must verify against the bytes the server received.
	if want := Sign(testCreds.APIKey, gotBody); gotSig != want {
		t.Errorf("signature %s does not match digest of transmitted body %s", gotSig, want)
	}

	// And the body must round-trip to the submitted values.
	var sent ForecastRequest
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatal(err)
	}
	if sent.MarketSlug != "btc-100k" || sent.StakeUnits != 12 {
		t.Errorf("unexpected body: %+v", sent)
	}
}

func TestSubmitPredictions_RejectsOversizedBatch(t *testing.T) {
	c := NewClient("http://unused", testCreds)

	preds := make([]Prediction, MaxBatchSize+1)
	_, err := c.SubmitPredictions(context.Background(), BatchRequest{
		RoundID:     "r-1",
		Predictions: preds,
	})
	if err == nil {
		t.Fatal("expected error for oversized batch")
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"agent banned"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds)
	_, err := c.SubmitForecast(context.Background(), ForecastRequest{MarketSlug: "x", PYes: 0.5})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != 403 || apiErr.Message != "agent banned" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}
