// Package quality partitions a situation's candidate outcomes into ordered
// quality bands over normValue. The band boundaries are rule-derived from
// the outcomes reachable in that exact situation, not fixed quantiles: the
// qualitative behavior (the 2-outs collapse in particular) is what the UI
// relies on.
package quality

import (
	"sort"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/outcomes"
	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
)

// Band is one of the five ordered quality levels.
type Band string

const (
	VeryBad  Band = "very-bad"
	Bad      Band = "bad"
	Neutral  Band = "neutral"
	Good     Band = "good"
	VeryGood Band = "very-good"
)

// Bands lists the five levels in order.
var Bands = []Band{VeryBad, Bad, Neutral, Good, VeryGood}

// BasePathBands is the three-level subset used for base-running outcomes.
var BasePathBands = []Band{Bad, Neutral, Good}

// Valid reports whether b names a known band.
func (b Band) Valid() bool {
	switch b {
	case VeryBad, Bad, Neutral, Good, VeryGood:
		return true
	}
	return false
}

// Interval is a closed [Min, Max] range over normValue. Adjacent band
// intervals may overlap at their boundaries: each bound is derived by its
// own rule rather than partitioning, and that overlap is accepted.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v falls in the closed interval.
func (i Interval) Contains(v float64) bool {
	return v >= i.Min && v <= i.Max
}

// Thresholds holds the derived boundary values and the band intervals for
// one (bases, outs) situation.
type Thresholds struct {
	MaxOutNoRun     float64 `json:"maxOutNoRun"`
	BadMin          float64 `json:"badMin"`
	MaxOneOutNoRun  float64 `json:"maxOneOutNoRun"`
	MinOneOutNoRun  float64 `json:"minOneOutNoRun"`
	MaxNoOutsNoRuns float64 `json:"maxNoOutsNoRuns"`
	GoodMin         float64 `json:"goodMin"`
	GoodMax         float64 `json:"goodMax"`
	VeryGoodMin     float64 `json:"veryGoodMin"`

	ranges map[Band]Interval
}

// Interval returns the closed normValue interval for a band.
func (t *Thresholds) Interval(b Band) Interval {
	return t.ranges[b]
}

// Ranges returns the interval for every band.
func (t *Thresholds) Ranges() map[Band]Interval {
	out := make(map[Band]Interval, len(t.ranges))
	for b, iv := range t.ranges {
		out[b] = iv
	}
	return out
}

// Compute derives the five band intervals for a batted-ball situation.
// With two outs the bad band collapses onto very-bad: the third out ends
// the inning whichever single-out category it lands in, so the distinction
// carries no information.
func Compute(cands []outcomes.PlayOutcome, start state.BaseState, outs int) *Thresholds {
	return compute(cands, start, outs == 2)
}

// ComputeBasePath derives thresholds for base-running outcomes. The 2-outs
// collapse intentionally does not apply here.
func ComputeBasePath(cands []outcomes.PlayOutcome, start state.BaseState) *Thresholds {
	return compute(cands, start, false)
}

func compute(cands []outcomes.PlayOutcome, start state.BaseState, twoOutCollapse bool) *Thresholds {
	t := &Thresholds{}
	startRunners := start.Runners()

	// Rule 1: upper bound of very-bad is the best run-free out.
	maxOutNoRun := -1.0
	found := false
	for _, o := range cands {
		if o.OutsGained > 0 && o.RunsScored == 0 {
			if !found || o.NormValue > maxOutNoRun {
				maxOutNoRun = o.NormValue
			}
			found = true
		}
	}
	t.MaxOutNoRun = maxOutNoRun

	// Rule 2: bounds of the exactly-one-out, run-free outcomes.
	maxOne, minOne := -1.0, -1.0
	found = false
	for _, o := range cands {
		if o.OutsGained == 1 && o.RunsScored == 0 {
			if !found {
				maxOne, minOne = o.NormValue, o.NormValue
			} else {
				if o.NormValue > maxOne {
					maxOne = o.NormValue
				}
				if o.NormValue < minOne {
					minOne = o.NormValue
				}
			}
			found = true
		}
	}
	t.MaxOneOutNoRun = maxOne
	t.MinOneOutNoRun = minOne

	// Rule 3: best double-play-like outcome, if this situation allows one.
	var maxDP float64
	haveDP := false
	for _, o := range cands {
		if o.OutsGained >= 2 && o.RunsScored == 0 {
			if !haveDP || o.NormValue > maxDP {
				maxDP = o.NormValue
			}
			haveDP = true
		}
	}

	// Rule 4: the double play itself belongs to very-bad territory, so bad
	// starts just above it; without one, bad spans the one-out range.
	if haveDP {
		t.BadMin = maxDP + 0.001
	} else {
		t.BadMin = t.MinOneOutNoRun
	}

	// Rule 5: 2-outs collapse.
	if twoOutCollapse {
		t.BadMin = t.MaxOutNoRun
		t.MaxOneOutNoRun = t.MaxOutNoRun
	}

	// Rule 6: upper bound of neutral, excluding outcomes that are secretly
	// triples.
	t.MaxNoOutsNoRuns = maxNoOutsNoRuns(cands, start)

	// Rule 7: lower bound of good.
	t.GoodMin = goodMin(cands, startRunners)

	// Rule 8: good caps at doubles; triples and home runs belong above.
	t.GoodMax = goodMax(cands, start, startRunners)

	// Rule 9: very-good floor.
	t.VeryGoodMin = veryGoodMin(cands, start, startRunners)

	t.ranges = map[Band]Interval{
		VeryBad:  {Min: -1, Max: t.MaxOutNoRun},
		Bad:      {Min: t.BadMin, Max: t.MaxOneOutNoRun},
		Neutral:  {Min: t.MinOneOutNoRun, Max: t.MaxNoOutsNoRuns},
		Good:     {Min: t.GoodMin, Max: t.GoodMax},
		VeryGood: {Min: t.VeryGoodMin, Max: 1},
	}
	return t
}

// tripleLike flags a no-out, no-run outcome that reached a previously empty
// third base without a runner on second to explain the advancement, or with
// nobody left on first to corroborate that a baserunner (not the batter)
// took third.
func tripleLike(o outcomes.PlayOutcome, start state.BaseState) bool {
	return o.FinalBases.Third && o.OutsGained == 0 && o.RunsScored == 0 &&
		!start.Third && (!start.Second || !o.FinalBases.First)
}

// homeRunLike flags an outcome that cleared the bases while scoring more
// runs than there were starting runners: the batter must have come around.
func homeRunLike(o outcomes.PlayOutcome, startRunners int) bool {
	return o.FinalBases.Runners() == 0 && o.RunsScored > startRunners
}

// cleanTriple flags the batter alone on a previously empty third with every
// starting runner accounted for by the runs scored.
func cleanTriple(o outcomes.PlayOutcome, start state.BaseState, startRunners int) bool {
	return o.FinalBases == (state.BaseState{Third: true}) && !start.Third &&
		(startRunners == 0 || o.RunsScored == startRunners)
}

func maxNoOutsNoRuns(cands []outcomes.PlayOutcome, start state.BaseState) float64 {
	best := 0.0
	found := false
	for _, o := range cands {
		if o.OutsGained == 0 && o.RunsScored == 0 && !tripleLike(o, start) {
			if !found || o.NormValue > best {
				best = o.NormValue
			}
			found = true
		}
	}
	if found {
		return best
	}
	// Fallback: the median of the modest outcomes.
	var vals []float64
	for _, o := range cands {
		if o.OutsGained <= 1 && o.RunsScored <= 1 {
			vals = append(vals, o.NormValue)
		}
	}
	if len(vals) > 0 {
		sort.Float64s(vals)
		return vals[len(vals)/2]
	}
	return 0.0
}

func goodMin(cands []outcomes.PlayOutcome, startRunners int) float64 {
	if startRunners == 0 {
		// Nobody on: a good outcome has to at least put the batter aboard.
		return 0
	}
	best := 0.0
	found := false
	for _, o := range cands {
		if (o.RunsScored >= 1 && o.OutsGained <= 1) || o.OutsGained == 0 {
			if !found || o.NormValue < best {
				best = o.NormValue
			}
			found = true
		}
	}
	if found {
		return best
	}
	for _, o := range cands {
		if o.OutsGained == 0 {
			if !found || o.NormValue < best {
				best = o.NormValue
			}
			found = true
		}
	}
	if found {
		return best
	}
	return -0.5
}

func goodMax(cands []outcomes.PlayOutcome, start state.BaseState, startRunners int) float64 {
	best := 1.0
	found := false
	for _, o := range cands {
		if homeRunLike(o, startRunners) || tripleLike(o, start) {
			continue
		}
		if !found || o.NormValue > best {
			best = o.NormValue
		}
		found = true
	}
	if !found {
		return 1.0
	}
	return best
}

func veryGoodMin(cands []outcomes.PlayOutcome, start state.BaseState, startRunners int) float64 {
	best := 1.0
	found := false
	for _, o := range cands {
		if o.OutsGained != 0 {
			continue
		}
		if o.RunsScored >= 1 || cleanTriple(o, start, startRunners) {
			if !found || o.NormValue < best {
				best = o.NormValue
			}
			found = true
		}
	}
	if !found {
		return 1.0
	}
	return best
}

// Filter keeps the candidates whose normValue falls inside the band's
// closed interval, preserving order.
func (t *Thresholds) Filter(cands []outcomes.PlayOutcome, b Band) []outcomes.PlayOutcome {
	iv := t.ranges[b]
	out := make([]outcomes.PlayOutcome, 0, len(cands))
	for _, o := range cands {
		if iv.Contains(o.NormValue) {
			out = append(out, o)
		}
	}
	return out
}

// FilterBasePath applies the three-band subset for base-running outcomes.
// Neutral accepts everything (band selection orders the list rather than
// narrowing it); bad and good use the interval math.
func (t *Thresholds) FilterBasePath(cands []outcomes.PlayOutcome, b Band) []outcomes.PlayOutcome {
	if b == Neutral {
		out := make([]outcomes.PlayOutcome, len(cands))
		copy(out, cands)
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Probability > out[j].Probability
		})
		return out
	}
	return t.Filter(cands, b)
}
