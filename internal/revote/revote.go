package revote

import (
	"fmt"
	"time"
)

// Mode controls whether a market the agent has already voted on may be
// voted on again.
type Mode int

const (
	// Never skips any market with an existing forecast.
	Never Mode = iota
	// Always resubmits every open market each cycle.
	Always
	// DeadlineWindow resubmits only when the market deadline is within the
	// configured window.
	DeadlineWindow
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "never":
		return Never, nil
	case "always":
		return Always, nil
	case "deadline-window":
		return DeadlineWindow, nil
	default:
		return Never, fmt.Errorf("unknown revote mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case Never:
		return "never"
	case Always:
		return "always"
	case DeadlineWindow:
		return "deadline-window"
	}
	return "unknown"
}

// Policy decides whether a market should be (re)submitted this cycle.
// Voted state comes from what the remote service reports; nothing here
// persists across runs.
type Policy struct {
	mode   Mode
	window time.Duration
}

func NewPolicy(mode Mode, window time.Duration) *Policy {
	return &Policy{mode: mode, window: window}
}

// ShouldSubmit reports whether to submit a forecast for a market. Unvoted
// markets are always submitted; voted markets depend on the mode.
func (p *Policy) ShouldSubmit(voted bool, deadline, now time.Time) bool {
	if !voted {
		return true
	}
	switch p.mode {
	case Always:
		return true
	case DeadlineWindow:
		return deadline.Sub(now) <= p.window
	default:
		return false
	}
}
