package departures

import (
	"fmt"
	"strings"
	"time"
)

// ConditionalPolicy decides how scans treat conditional orders.
type ConditionalPolicy int

const (
	ConditionalGiveUp ConditionalPolicy = iota
	ConditionalTake
	ConditionalSkip
)

// ParseConditionalPolicy accepts "giveup", "take" and "skip" (or 0, 1, 2).
func ParseConditionalPolicy(s string) (ConditionalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "giveup", "give-up", "give_up":
		return ConditionalGiveUp, nil
	case "1", "take":
		return ConditionalTake, nil
	case "2", "skip":
		return ConditionalSkip, nil
	}
	return ConditionalGiveUp, fmt.Errorf("unknown conditional policy %q", s)
}

// Settings configures one computation. It is read only.
type Settings struct {
	// Horizon is the furthest a record may be scheduled from now.
	Horizon      time.Duration
	MaxResults   int
	Conditionals ConditionalPolicy
	// ShowAllStops ignores no-load and no-unload restrictions.
	ShowAllStops   bool
	MergeIdentical bool
	SmartTerminus  bool
}

// DefaultSettings mirrors the stock board options.
func DefaultSettings() Settings {
	return Settings{
		Horizon:        120 * time.Minute,
		MaxResults:     10,
		Conditionals:   ConditionalGiveUp,
		MergeIdentical: false,
		SmartTerminus:  false,
	}
}
