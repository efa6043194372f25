package outcomes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
)

// floorProbability ranks value-table-only transitions last while keeping
// them selectable.
const floorProbability = 0.001

// PlayOutcome is one candidate (or resolved) result of a plate appearance
// or base-running attempt from a given situation.
type PlayOutcome struct {
	FinalBases  state.BaseState `json:"finalBases"`
	RunsScored  int             `json:"runsScored"`
	OutsGained  int             `json:"outsGained"`
	Probability float64         `json:"probability"`
	NormValue   float64         `json:"normValue"`
	Description string          `json:"description"`
}

// Resolved converts the outcome to the state machine's event payload.
func (o PlayOutcome) Resolved() state.ResolvedOutcome {
	return state.ResolvedOutcome{
		FinalBases: o.FinalBases,
		RunsScored: o.RunsScored,
		OutsGained: o.OutsGained,
	}
}

// fallbackNormValue is the fixed heuristic for transitions absent from the
// value table, monotonic in runs scored and outs gained.
func fallbackNormValue(runs, outs int) float64 {
	switch {
	case runs >= 2 && outs == 0:
		return 0.6
	case runs == 0 && outs == 0:
		return 0.2
	case runs == 0 && outs == 1:
		return -0.1
	case runs == 0 && outs >= 2:
		return -0.8
	default:
		return 0
	}
}

func (t *Tables) normValue(bases state.BaseState, outs int, d Descriptor) float64 {
	if v, ok := t.Transition.Lookup(bases, outs, d); ok {
		return v
	}
	return fallbackNormValue(d.RunsScored, d.OutsGained)
}

// FromFrequencyTable resolves the observed outcomes for a situation from a
// frequency table, attaching empirical probabilities and normValues. The
// result is a fresh slice sorted descending by probability; callers may
// filter or re-sort it freely.
func (t *Tables) FromFrequencyTable(bases state.BaseState, outs int, table *FrequencyTable) []PlayOutcome {
	counts := table.Counts(bases)
	if len(counts) == 0 {
		return nil
	}
	total := float64(table.Total(bases))

	out := make([]PlayOutcome, 0, len(counts))
	for d, count := range counts {
		out = append(out, PlayOutcome{
			FinalBases:  d.FinalBases,
			RunsScored:  d.RunsScored,
			OutsGained:  d.OutsGained,
			Probability: float64(count) / total,
			NormValue:   t.normValue(bases, outs, d),
			Description: describe(d),
		})
	}
	sortOutcomes(out)
	return out
}

// AllKnownOutcomes unions every transition-value-table entry for the
// situation with the in-play frequency when observed. The value table
// covers transitions the frequency table never saw (triples from some base
// states, for one); those get a floor probability so they rank last but
// remain selectable.
func (t *Tables) AllKnownOutcomes(bases state.BaseState, outs int) []PlayOutcome {
	entries := t.Transition.Entries(bases, outs)
	if len(entries) == 0 {
		return nil
	}
	counts := t.InPlay.Counts(bases)
	total := float64(t.InPlay.Total(bases))

	out := make([]PlayOutcome, 0, len(entries))
	for d, v := range entries {
		p := floorProbability
		if count, ok := counts[d]; ok && total > 0 {
			p = float64(count) / total
		}
		out = append(out, PlayOutcome{
			FinalBases:  d.FinalBases,
			RunsScored:  d.RunsScored,
			OutsGained:  d.OutsGained,
			Probability: p,
			NormValue:   v,
			Description: describe(d),
		})
	}
	sortOutcomes(out)
	return out
}

// sortOutcomes orders by probability descending, breaking ties by
// normValue then descriptor so the order is deterministic.
func sortOutcomes(out []PlayOutcome) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		if out[i].NormValue != out[j].NormValue {
			return out[i].NormValue > out[j].NormValue
		}
		di := Descriptor{out[i].FinalBases, out[i].RunsScored, out[i].OutsGained}
		dj := Descriptor{out[j].FinalBases, out[j].RunsScored, out[j].OutsGained}
		return di.String() < dj.String()
	})
}

// describe builds the display-only summary from the base-state delta and
// run/out counts. No business logic reads this field.
func describe(d Descriptor) string {
	parts := make([]string, 0, 3)
	switch d.RunsScored {
	case 0:
	case 1:
		parts = append(parts, "1 run scores")
	default:
		parts = append(parts, fmt.Sprintf("%d runs score", d.RunsScored))
	}
	switch d.OutsGained {
	case 1:
		parts = append(parts, "1 out")
	case 2:
		parts = append(parts, "double play")
	}
	if len(parts) == 0 {
		parts = append(parts, "no outs")
	}
	parts = append(parts, describeBases(d.FinalBases))
	return strings.Join(parts, ", ")
}

func describeBases(b state.BaseState) string {
	switch b.Runners() {
	case 0:
		return "bases empty"
	case 3:
		return "bases loaded"
	}
	occupied := make([]string, 0, 2)
	if b.First {
		occupied = append(occupied, "first")
	}
	if b.Second {
		occupied = append(occupied, "second")
	}
	if b.Third {
		occupied = append(occupied, "third")
	}
	if len(occupied) == 1 {
		return "runner on " + occupied[0]
	}
	return "runners on " + strings.Join(occupied, " and ")
}
