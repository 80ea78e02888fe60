package sizing

import (
	"math"

	"oraclebot/internal/config"
)

// Sizer maps a confidence score onto an integer stake. Below the
// confidence threshold the stake is zero, meaning "no bet"; above it the
// stake ramps linearly from the 0.5 midpoint up to the configured ceiling,
// with a floor of 1 so a triggered bet is never rounded down to nothing.
type Sizer struct {
	cfg config.SizingConfig
}

func New(cfg config.SizingConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Stake returns the stake for the given confidence, or 0 for "skip".
func (s *Sizer) Stake(confidence float64) int {
	return s.StakeWithThreshold(confidence, s.cfg.MinConfidence)
}

// StakeWithThreshold sizes against an explicit threshold; round rules may
// override the configured minimum confidence.
func (s *Sizer) StakeWithThreshold(confidence, minConfidence float64) int {
	if confidence < minConfidence {
		return 0
	}

	stake := int(math.Round(float64(s.cfg.MaxStake) * (confidence - 0.5) * 2))
	if stake < 1 {
		stake = 1
	}
	if stake > s.cfg.MaxStake {
		stake = s.cfg.MaxStake
	}
	return stake
}

// EffectiveConfidence treats a sub-0.5 p_yes as an implicit NO prediction:
// a confident NO is as actionable as a confident YES, so the stronger of
// the stated confidence and 1-p_yes drives sizing. Disabled by config.
func (s *Sizer) EffectiveConfidence(pYes, confidence float64) float64 {
	if !s.cfg.ImplicitNoBets || pYes >= 0.5 {
		return confidence
	}
	return math.Max(confidence, 1-pYes)
}

// MaxStake exposes the configured ceiling.
func (s *Sizer) MaxStake() int {
	return s.cfg.MaxStake
}

// MinConfidenceDefault exposes the configured threshold, for callers that
// may override it per round.
func (s *Sizer) MinConfidenceDefault() float64 {
	return s.cfg.MinConfidence
}
