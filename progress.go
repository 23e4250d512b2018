package tally

import (
	"fmt"
	"math"

	"github.com/agentstation/tally/pkg/constants"
)

// Progress is the record count measured against the target.
type Progress struct {
	Count   int `json:"count" yaml:"count"`
	Target  int `json:"target" yaml:"target"`
	Percent int `json:"percent" yaml:"percent"`
}

// NewProgress computes the rounded percentage, capped at 100. A non-positive
// target falls back to the default.
func NewProgress(count, target int) Progress {
	if target <= 0 {
		target = constants.DefaultTarget
	}
	if count < 0 {
		count = 0
	}
	pct := int(math.Round(float64(count) * 100 / float64(target)))
	return Progress{
		Count:   count,
		Target:  target,
		Percent: min(100, pct),
	}
}

// Ratio returns Percent as a fraction in [0, 1].
func (p Progress) Ratio() float64 {
	return float64(p.Percent) / 100
}

// Complete reports whether the target has been reached.
func (p Progress) Complete() bool {
	return p.Count >= p.Target
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d (%d%%)", p.Count, p.Target, p.Percent)
}
