// Package outcomes turns the historical play frequency tables into
// probability-weighted candidate outcomes for a game situation.
package outcomes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
)

// Descriptor identifies a play transition's result: the final base
// configuration plus the runs and outs it produced. Its string form
// "endKey|runs|outs" is the key used by every static table.
type Descriptor struct {
	FinalBases state.BaseState
	RunsScored int
	OutsGained int
}

// String renders the canonical table key for the descriptor.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s|%d|%d", d.FinalBases.Key(), d.RunsScored, d.OutsGained)
}

// ParseDescriptor parses a table key. The tables are versioned build
// assets: a malformed descriptor means a corrupted asset and is an error,
// never a silent default.
func ParseDescriptor(s string) (Descriptor, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return Descriptor{}, fmt.Errorf("outcome descriptor %q: want endKey|runs|outs", s)
	}
	bases, err := state.ParseBaseKey(parts[0])
	if err != nil {
		return Descriptor{}, fmt.Errorf("outcome descriptor %q: %w", s, err)
	}
	runs, err := strconv.Atoi(parts[1])
	if err != nil || runs < 0 {
		return Descriptor{}, fmt.Errorf("outcome descriptor %q: bad runs %q", s, parts[1])
	}
	outs, err := strconv.Atoi(parts[2])
	if err != nil || outs < 0 || outs > 2 {
		return Descriptor{}, fmt.Errorf("outcome descriptor %q: bad outs %q", s, parts[2])
	}
	return Descriptor{FinalBases: bases, RunsScored: runs, OutsGained: outs}, nil
}

// FrequencyTable maps a base-state key to observed counts per descriptor.
type FrequencyTable struct {
	name   string
	counts map[string]map[Descriptor]int
	totals map[string]int
}

// Counts returns the sub-table for a base state. A missing sub-table is a
// valid missing-coverage situation and returns nil.
func (t *FrequencyTable) Counts(bases state.BaseState) map[Descriptor]int {
	return t.counts[bases.Key()]
}

// Total returns the summed counts for a base state.
func (t *FrequencyTable) Total(bases state.BaseState) int {
	return t.totals[bases.Key()]
}

// TransitionTable maps (startBases, startOuts) to the normValue of each
// reachable transition. Its coverage is a strict superset of the frequency
// tables.
type TransitionTable struct {
	values map[string]map[Descriptor]float64
}

func situationKey(bases state.BaseState, outs int) string {
	return fmt.Sprintf("%s|%d", bases.Key(), outs)
}

// Lookup returns the tabulated normValue for a transition, if present.
func (t *TransitionTable) Lookup(bases state.BaseState, outs int, d Descriptor) (float64, bool) {
	v, ok := t.values[situationKey(bases, outs)][d]
	return v, ok
}

// Entries returns every tabulated transition for a situation.
func (t *TransitionTable) Entries(bases state.BaseState, outs int) map[Descriptor]float64 {
	return t.values[situationKey(bases, outs)]
}

func parseFrequencyTable(name string, raw []byte) (*FrequencyTable, error) {
	var decoded map[string]map[string]int
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	t := &FrequencyTable{
		name:   name,
		counts: make(map[string]map[Descriptor]int, len(decoded)),
		totals: make(map[string]int, len(decoded)),
	}
	for baseKey, sub := range decoded {
		bases, err := state.ParseBaseKey(baseKey)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		entries := make(map[Descriptor]int, len(sub))
		total := 0
		for descKey, count := range sub {
			d, err := ParseDescriptor(descKey)
			if err != nil {
				return nil, fmt.Errorf("table %s, state %s: %w", name, baseKey, err)
			}
			if count <= 0 {
				return nil, fmt.Errorf("table %s, state %s: non-positive count for %s", name, baseKey, descKey)
			}
			entries[d] = count
			total += count
		}
		t.counts[bases.Key()] = entries
		t.totals[bases.Key()] = total
	}
	return t, nil
}

func parseTransitionTable(raw []byte) (*TransitionTable, error) {
	var decoded map[string]map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("transition table: %w", err)
	}
	t := &TransitionTable{values: make(map[string]map[Descriptor]float64, len(decoded))}
	for sitKey, sub := range decoded {
		parts := strings.Split(sitKey, "|")
		if len(parts) != 2 {
			return nil, fmt.Errorf("transition table: situation key %q: want baseKey|outs", sitKey)
		}
		bases, err := state.ParseBaseKey(parts[0])
		if err != nil {
			return nil, fmt.Errorf("transition table: %w", err)
		}
		outs, err := strconv.Atoi(parts[1])
		if err != nil || outs < 0 || outs > 2 {
			return nil, fmt.Errorf("transition table: situation key %q: bad outs", sitKey)
		}
		entries := make(map[Descriptor]float64, len(sub))
		for descKey, v := range sub {
			d, err := ParseDescriptor(descKey)
			if err != nil {
				return nil, fmt.Errorf("transition table, situation %s: %w", sitKey, err)
			}
			if v < -1 || v > 1 {
				return nil, fmt.Errorf("transition table, situation %s: normValue %v out of [-1,1] for %s", sitKey, v, descKey)
			}
			entries[d] = v
		}
		t.values[situationKey(bases, outs)] = entries
	}
	return t, nil
}

// Tables bundles the three static lookup tables. They are loaded once and
// never mutated; concurrent readers share them freely.
type Tables struct {
	InPlay     *FrequencyTable
	BasePath   *FrequencyTable
	Transition *TransitionTable
}

// LoadTables parses the three table assets. Any malformed key fails the
// whole load: these are build-time data files, and defaulting would
// silently corrupt probability and normValue computations.
func LoadTables(inPlay, basePath, transitions []byte) (*Tables, error) {
	ip, err := parseFrequencyTable("inplay", inPlay)
	if err != nil {
		return nil, err
	}
	bp, err := parseFrequencyTable("basepath", basePath)
	if err != nil {
		return nil, err
	}
	tr, err := parseTransitionTable(transitions)
	if err != nil {
		return nil, err
	}
	return &Tables{InPlay: ip, BasePath: bp, Transition: tr}, nil
}
