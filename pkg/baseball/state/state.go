// Package state holds the authoritative game state for a tracked baseball
// game and the event machine that advances it.
package state

import (
	"fmt"
	"strings"
)

// BaseState describes which of the three bases are occupied.
type BaseState struct {
	First  bool `json:"first"`
	Second bool `json:"second"`
	Third  bool `json:"third"`
}

// EmptyKey is the canonical key for an empty base state.
const EmptyKey = "empty"

// Key returns the canonical string key for this base state: the occupied
// bases joined in first,second,third order, or "empty".
func (b BaseState) Key() string {
	parts := make([]string, 0, 3)
	if b.First {
		parts = append(parts, "first")
	}
	if b.Second {
		parts = append(parts, "second")
	}
	if b.Third {
		parts = append(parts, "third")
	}
	if len(parts) == 0 {
		return EmptyKey
	}
	return strings.Join(parts, ",")
}

// Runners returns the number of occupied bases.
func (b BaseState) Runners() int {
	n := 0
	if b.First {
		n++
	}
	if b.Second {
		n++
	}
	if b.Third {
		n++
	}
	return n
}

// ParseBaseKey parses a canonical base-state key. The tables are build-time
// assets, so an unrecognized key is a data-integrity error, not user input.
func ParseBaseKey(key string) (BaseState, error) {
	var b BaseState
	if key == EmptyKey {
		return b, nil
	}
	if key == "" {
		return b, fmt.Errorf("empty base-state key")
	}
	for _, part := range strings.Split(key, ",") {
		switch part {
		case "first":
			if b.First {
				return BaseState{}, fmt.Errorf("duplicate base %q in key %q", part, key)
			}
			b.First = true
		case "second":
			if b.Second {
				return BaseState{}, fmt.Errorf("duplicate base %q in key %q", part, key)
			}
			b.Second = true
		case "third":
			if b.Third {
				return BaseState{}, fmt.Errorf("duplicate base %q in key %q", part, key)
			}
			b.Third = true
		default:
			return BaseState{}, fmt.Errorf("unrecognized base %q in key %q", part, key)
		}
	}
	return b, nil
}

// AllBaseStates returns the 8 distinct base states in key order
// (empty, first, second, first,second, third, ...).
func AllBaseStates() []BaseState {
	states := make([]BaseState, 0, 8)
	for mask := 0; mask < 8; mask++ {
		states = append(states, BaseState{
			First:  mask&1 != 0,
			Second: mask&2 != 0,
			Third:  mask&4 != 0,
		})
	}
	return states
}

// GameState is the authoritative record for one tracked game.
type GameState struct {
	HomeScore     int       `json:"homeScore"`
	AwayScore     int       `json:"awayScore"`
	Inning        int       `json:"inning"`
	IsTopOfInning bool      `json:"isTopOfInning"`
	Outs          int       `json:"outs"`
	Strikes       int       `json:"strikes"`
	Balls         int       `json:"balls"`
	Bases         BaseState `json:"bases"`
	HomeTeam      string    `json:"homeTeam"`
	AwayTeam      string    `json:"awayTeam"`
}

// NewGameState returns the all-zero default state with placeholder team names.
func NewGameState() GameState {
	return GameState{
		Inning:        1,
		IsTopOfInning: true,
		HomeTeam:      "Home",
		AwayTeam:      "Away",
	}
}

// BattingTeam returns the display name of the team currently at bat.
func (g GameState) BattingTeam() string {
	if g.IsTopOfInning {
		return g.AwayTeam
	}
	return g.HomeTeam
}
