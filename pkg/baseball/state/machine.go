package state

import (
	"sync"
)

// historyCap bounds the undo history. The oldest snapshot is discarded first.
const historyCap = 10

// EventType names the closed set of events that can advance a game.
type EventType string

const (
	EventStrike          EventType = "STRIKE"
	EventBall            EventType = "BALL"
	EventFoul            EventType = "FOUL"
	EventPlayOutcome     EventType = "APPLY_PLAY_OUTCOME"
	EventBasePathOutcome EventType = "APPLY_BASE_PATH_OUTCOME"
	EventSetState        EventType = "SET_GAME_STATE"
	EventUndo            EventType = "UNDO"
	EventReset           EventType = "RESET_GAME"
)

// ResolvedOutcome is the payload for APPLY_PLAY_OUTCOME and
// APPLY_BASE_PATH_OUTCOME: the final base configuration is authoritative,
// no incremental base-by-base update happens here.
type ResolvedOutcome struct {
	FinalBases BaseState `json:"finalBases"`
	RunsScored int       `json:"runsScored"`
	OutsGained int       `json:"outsGained"`
}

// Machine owns one game's state and its bounded undo history. All
// transitions are atomic: callers never observe a partially applied event.
// One Machine exists per game session; it is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	cur     GameState
	history []GameState

	onChange func(GameState)
}

// NewMachine creates a machine holding the default game state.
func NewMachine() *Machine {
	return &Machine{cur: NewGameState()}
}

// OnChange registers a callback invoked with a snapshot after every
// mutation. Set before the machine is shared.
func (m *Machine) OnChange(fn func(GameState)) {
	m.onChange = fn
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// HistoryLen reports how many undo snapshots are held.
func (m *Machine) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// push records the pre-mutation snapshot, discarding the oldest entry
// once the history is full.
func (m *Machine) push(snap GameState) {
	if len(m.history) == historyCap {
		copy(m.history, m.history[1:])
		m.history = m.history[:historyCap-1]
	}
	m.history = append(m.history, snap)
}

func (m *Machine) notify() {
	if m.onChange != nil {
		m.onChange(m.cur)
	}
}

// endHalfInning flips top/bottom, clears the bases and count, and
// increments the inning when flipping from bottom to top.
func (m *Machine) endHalfInning() {
	if !m.cur.IsTopOfInning {
		m.cur.Inning++
	}
	m.cur.IsTopOfInning = !m.cur.IsTopOfInning
	m.cur.Outs = 0
	m.cur.Strikes = 0
	m.cur.Balls = 0
	m.cur.Bases = BaseState{}
}

func (m *Machine) addRuns(runs int) {
	if m.cur.IsTopOfInning {
		m.cur.AwayScore += runs
	} else {
		m.cur.HomeScore += runs
	}
}

// Strike applies a called or swinging strike. The third strike records an
// out; the third out ends the half-inning.
func (m *Machine) Strike() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(m.cur)

	m.cur.Strikes++
	if m.cur.Strikes >= 3 {
		m.cur.Strikes = 0
		m.cur.Balls = 0
		m.cur.Outs++
		if m.cur.Outs >= 3 {
			m.endHalfInning()
		}
	}
	m.notify()
	return m.cur
}

// Ball applies a ball. The fourth ball walks the batter with force-advance
// logic: only forced runners move, and a bases-loaded walk scores one run.
func (m *Machine) Ball() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(m.cur)

	m.cur.Balls++
	if m.cur.Balls >= 4 {
		m.cur.Balls = 0
		m.cur.Strikes = 0
		b := m.cur.Bases
		switch {
		case b.First && b.Second && b.Third:
			m.addRuns(1)
		case b.First && b.Second:
			m.cur.Bases.Third = true
		case b.First:
			m.cur.Bases.Second = true
		}
		m.cur.Bases.First = true
	}
	m.notify()
	return m.cur
}

// Foul applies a foul ball: a strike unless the batter already has two.
func (m *Machine) Foul() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(m.cur)

	if m.cur.Strikes < 2 {
		m.cur.Strikes++
	}
	m.notify()
	return m.cur
}

// ApplyPlayOutcome applies a resolved plate-appearance outcome.
func (m *Machine) ApplyPlayOutcome(o ResolvedOutcome) GameState {
	return m.applyOutcome(o)
}

// ApplyBasePathOutcome applies a resolved base-running outcome. The count
// reset matches the in-play path: the tables treat the event as ending the
// current pitch sequence.
func (m *Machine) ApplyBasePathOutcome(o ResolvedOutcome) GameState {
	return m.applyOutcome(o)
}

func (m *Machine) applyOutcome(o ResolvedOutcome) GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(m.cur)

	m.cur.Strikes = 0
	m.cur.Balls = 0
	m.addRuns(o.RunsScored)
	m.cur.Outs += o.OutsGained
	if m.cur.Outs >= 3 {
		// The outcome's final bases are discarded: the inning is over.
		m.endHalfInning()
	} else {
		m.cur.Bases = o.FinalBases
	}
	m.notify()
	return m.cur
}

// SetState replaces the state wholesale, as when loading a save or
// selecting a matchup. Manual state edits pass recordHistory=false so the
// edit is a non-undoable reset; automatic flows pass true.
func (m *Machine) SetState(gs GameState, recordHistory bool) GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if recordHistory {
		m.push(m.cur)
	}
	m.cur = gs
	m.notify()
	return m.cur
}

// Undo restores the most recent snapshot. With no history it is a no-op,
// not an error.
func (m *Machine) Undo() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.history); n > 0 {
		m.cur = m.history[n-1]
		m.history = m.history[:n-1]
		m.notify()
	}
	return m.cur
}

// Reset clears the state to defaults and drops the history. The matchup
// survives: team names belong to the session, not to the game in progress.
func (m *Machine) Reset() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	home, away := m.cur.HomeTeam, m.cur.AwayTeam
	m.cur = NewGameState()
	m.cur.HomeTeam = home
	m.cur.AwayTeam = away
	m.history = nil
	m.notify()
	return m.cur
}
