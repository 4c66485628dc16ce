// Package bws turns best/worst picks into net scores.
package bws

import (
	"github.com/example/tts-survey-eval/pkg/survey"
)

// Decision is a single best or worst pick.
type Decision struct {
	System survey.System
	Best   bool
	// Weight is the signed contribution of the pick; zero means 1.
	Weight int
}

// NetScores maps every known system to best-count minus worst-count.
type NetScores map[survey.System]int

// NewNetScores returns zero scores for all four systems.
func NewNetScores() NetScores {
	ns := make(NetScores, len(survey.Systems))
	for _, s := range survey.Systems {
		ns[s] = 0
	}
	return ns
}

// Add accumulates other into ns.
func (ns NetScores) Add(other NetScores) {
	for s, v := range other {
		ns[s] += v
	}
}

// Ordered returns the scores in system id order.
func (ns NetScores) Ordered() []int {
	out := make([]int, len(survey.Systems))
	for i, s := range survey.Systems {
		out[i] = ns[s]
	}
	return out
}

// Tally counts best and worst picks per system.
type Tally struct {
	Best  map[survey.System]int
	Worst map[survey.System]int
}

// Net returns best minus worst for every known system.
func (t Tally) Net() NetScores {
	ns := NewNetScores()
	for s, n := range t.Best {
		ns[s] += n
	}
	for s, n := range t.Worst {
		ns[s] -= n
	}
	return ns
}

// Aggregate computes net scores over decisions. Systems that were never picked
// score zero. Decisions naming an unknown system are ignored.
func Aggregate(decisions []Decision) NetScores {
	ns := NewNetScores()
	for _, d := range decisions {
		if !d.System.Valid() {
			continue
		}
		w := d.Weight
		if w == 0 {
			w = 1
		}
		if d.Best {
			ns[d.System] += w
		} else {
			ns[d.System] -= w
		}
	}
	return ns
}

// Count tallies picks per system.
func Count(decisions []Decision) Tally {
	t := Tally{Best: make(map[survey.System]int), Worst: make(map[survey.System]int)}
	for _, d := range decisions {
		if d.Best {
			t.Best[d.System]++
		} else {
			t.Worst[d.System]++
		}
	}
	return t
}

// Decisions extracts the picks of responses on the given questions, weighting
// each question by scoring.
func Decisions(responses []survey.Response, questions []string, scoring Scoring) []Decision {
	weights := scoring.weights(questions)
	out := make([]Decision, 0, 2*len(responses)*len(questions))
	for _, r := range responses {
		for i, q := range questions {
			c, ok := r.Choices[q]
			if !ok {
				continue
			}
			out = append(out,
				Decision{System: c.Best, Best: true, Weight: weights[i]},
				Decision{System: c.Worst, Best: false, Weight: weights[i]},
			)
		}
	}
	return out
}

// FromLong converts long-format records into decisions.
func FromLong(recs []survey.LongRecord) []Decision {
	out := make([]Decision, len(recs))
	for i, r := range recs {
		out[i] = Decision{System: r.System, Best: r.IsBest()}
	}
	return out
}
