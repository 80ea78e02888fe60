package sizing

import (
	"testing"

	"oraclebot/internal/config"
)

func newTestSizer() *Sizer {
	return New(config.SizingConfig{
		MinConfidence:  0.55,
		MaxStake:       20,
		ImplicitNoBets: true,
	})
}

func TestStake_BelowThresholdIsZero(t *testing.T) {
	s := newTestSizer()
	for _, conf := range []float64{0, 0.1, 0.3, 0.5, 0.54, 0.549} {
		if got := s.Stake(conf); got != 0 {
			t.Errorf("Stake(%.3f) = %d, want 0", conf, got)
		}
	}
}

func TestStake_RangeAndMonotonic(t *testing.T) {
	s := newTestSizer()
	prev := 0
	for conf := 0.55; conf <= 1.0; conf += 0.01 {
		got := s.Stake(conf)
		if got < 1 || got > 20 {
			t.Errorf("Stake(%.2f) = %d, want in [1, 20]", conf, got)
		}
		if got < prev {
			t.Errorf("Stake(%.2f) = %d, decreased from %d", conf, got, prev)
		}
		prev = got
	}
}

func TestStake_Values(t *testing.T) {
	s := newTestSizer()
	cases := []struct {
		confidence float64
		want       int
	}{
		{0.55, 2},  // round(20 * 0.05 * 2) = 2
		{0.60, 4},  // round(20 * 0.10 * 2) = 4
		{0.80, 12}, // round(20 * 0.30 * 2) = 12
		{1.00, 20}, // capped at max
	}
	for _, c := range cases {
		if got := s.Stake(c.confidence); got != c.want {
			t.Errorf("Stake(%.2f) = %d, want %d", c.confidence, got, c.want)
		}
	}
}

func TestStake_FloorOfOne(t *testing.T) {
	// A threshold at 0.5 would compute round(0) = 0; the floor must keep
	// triggered bets at 1 or more.
	s := New(config.SizingConfig{MinConfidence: 0.5, MaxStake: 20})
	if got := s.Stake(0.5); got != 1 {
		t.Errorf("Stake(0.50) = %d, want floor of 1", got)
	}
}

func TestStakeWithThreshold_RoundRuleOverride(t *testing.T) {
	s := newTestSizer()
	// Config threshold is 0.55, but the round demands 0.70.
	if got := s.StakeWithThreshold(0.60, 0.70); got != 0 {
		t.Errorf("StakeWithThreshold(0.60, 0.70) = %d, want 0", got)
	}
	if got := s.StakeWithThreshold(0.75, 0.70); got == 0 {
		t.Error("StakeWithThreshold(0.75, 0.70) = 0, want a bet")
	}
}

func TestEffectiveConfidence_ImplicitNo(t *testing.T) {
	s := newTestSizer()

	// A confident NO: p_yes 0.10 implies 0.90 effective confidence.
	if got := s.EffectiveConfidence(0.10, 0.40); got != 0.90 {
		t.Errorf("EffectiveConfidence(0.10, 0.40) = %.2f, want 0.90", got)
	}

	// Stated confidence wins when stronger.
	if got := s.EffectiveConfidence(0.45, 0.80); got != 0.80 {
		t.Errorf("EffectiveConfidence(0.45, 0.80) = %.2f, want 0.80", got)
	}

	// YES side is untouched.
	if got := s.EffectiveConfidence(0.70, 0.40); got != 0.40 {
		t.Errorf("EffectiveConfidence(0.70, 0.40) = %.2f, want 0.40", got)
	}
}

func TestEffectiveConfidence_Disabled(t *testing.T) {
	s := New(config.SizingConfig{MinConfidence: 0.55, MaxStake: 20, ImplicitNoBets: false})
	if got := s.EffectiveConfidence(0.10, 0.40); got != 0.40 {
		t.Errorf("EffectiveConfidence with implicit NO disabled = %.2f, want 0.40", got)
	}
}
