package services

import (
	"fmt"
	"strings"
)

// Scorecard is the shared penalize-and-clamp scoring accumulator used by the
// heuristic validation layers: start at 1.0, subtract named penalties, clamp
// to [0, 1]. Keeping the arithmetic here makes the scoring auditable apart
// from the heuristics that trigger the penalties.
type Scorecard struct {
	score float64
	notes []string
}

func NewScorecard() *Scorecard {
	return &Scorecard{score: 1.0}
}

// Penalize subtracts amount and records the reason.
func (sc *Scorecard) Penalize(reason string, amount float64) {
	sc.score -= amount
	sc.notes = append(sc.notes, fmt.Sprintf("%s (-%.2f)", reason, amount))
}

// Note records an observation without changing the score.
func (sc *Scorecard) Note(text string) {
	sc.notes = append(sc.notes, text)
}

// Score returns the accumulated score clamped to [0, 1].
func (sc *Scorecard) Score() float64 {
	if sc.score < 0 {
		return 0
	}
	if sc.score > 1 {
		return 1
	}
	return sc.score
}

// Explanation joins the recorded notes, or reports a clean pass.
func (sc *Scorecard) Explanation() string {
	if len(sc.notes) == 0 {
		return "no issues found"
	}
	return strings.Join(sc.notes, "; ")
}
