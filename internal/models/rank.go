package models

import "fmt"

// RankOptions are the caller-supplied policy parameters for a rank call.
type RankOptions struct {
	// Threshold is the minimum relevance score a paper must reach to be kept.
	// Zero is a real threshold (keep anything with non-negative similarity);
	// HasThreshold distinguishes it from "use the process default".
	Threshold    float64 `json:"threshold"`
	HasThreshold bool    `json:"-"`
	// Limit is the maximum number of papers returned.
	Limit int `json:"limit"`
}

// Validate checks the options and applies the given process-level defaults
// for unset values. A threshold is unset when HasThreshold is false; a limit
// is unset when zero. Returns an error for out-of-range values; no defaults
// are applied in that case.
func (o *RankOptions) Validate(defaultThreshold float64, defaultLimit int) error {
	if o.Threshold < -1 || o.Threshold > 1 {
		return fmt.Errorf("threshold must be within [-1, 1], got %v", o.Threshold)
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", o.Limit)
	}
	if !o.HasThreshold {
		o.Threshold = defaultThreshold
		o.HasThreshold = true
	}
	if o.Limit == 0 {
		o.Limit = defaultLimit
	}
	return nil
}
