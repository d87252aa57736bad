package main

import (
	"fmt"
	"time"
)

// Phase is a stage of the round lifecycle
type Phase int

const (
	PhaseWaitingForPlayers Phase = iota
	PhaseCountdown
	PhaseInProgress
	PhaseRoundEnd
	PhasePostRoundStats
)

var phaseNames = [...]string{
	PhaseWaitingForPlayers: "WAITING_FOR_PLAYERS",
	PhaseCountdown:         "GAME_COUNTDOWN",
	PhaseInProgress:        "ROUND_IN_PROGRESS",
	PhaseRoundEnd:          "ROUND_END",
	PhasePostRoundStats:    "POST_ROUND_STATS",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, ok := ParsePhase(string(b))
	if !ok {
		return fmt.Errorf("unknown phase %q", b)
	}
	*p = v
	return nil
}

// ParsePhase maps a wire name back to its Phase
func ParsePhase(s string) (Phase, bool) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), true
		}
	}
	return 0, false
}

// Round is the current phase and when it was entered
type Round struct {
	Phase     Phase
	StartedAt time.Time
}

// nextPhase decides the single transition, if any, for a phase that has been
// active for elapsed with the given number of connected players.
func nextPhase(phase Phase, elapsed time.Duration, players int, rc RoundConfig) (Phase, bool) {
	switch phase {
	case PhaseWaitingForPlayers:
		if players >= rc.MinPlayersToStart {
			return PhaseCountdown, true
		}
	case PhaseCountdown:
		if players < rc.MinPlayersToStart {
			return PhaseWaitingForPlayers, true
		}
		if elapsed >= rc.CountdownDuration() {
			return PhaseInProgress, true
		}
	case PhaseInProgress:
		if players < rc.MinPlayersToStart {
			return PhaseWaitingForPlayers, true
		}
		if elapsed >= rc.RoundDuration() {
			return PhaseRoundEnd, true
		}
	case PhaseRoundEnd:
		if elapsed >= rc.EndDisplayDuration() {
			return PhasePostRoundStats, true
		}
	case PhasePostRoundStats:
		if elapsed >= rc.PostRoundStatsDuration() {
			return PhaseWaitingForPlayers, true
		}
	}
	return phase, false
}

// headcountTransition applies only the player-count rules. It runs right
// after a join or leave so phase changes do not wait for the next tick.
func headcountTransition(phase Phase, players int, rc RoundConfig) (Phase, bool) {
	switch phase {
	case PhaseWaitingForPlayers:
		if players >= rc.MinPlayersToStart {
			return PhaseCountdown, true
		}
	case PhaseCountdown, PhaseInProgress:
		if players < rc.MinPlayersToStart {
			return PhaseWaitingForPlayers, true
		}
	}
	return phase, false
}

// PhaseUpdate builds the broadcast describing the round's current phase
func (r Round) PhaseUpdate(rc RoundConfig) PhaseUpdateMsg {
	return PhaseUpdateMsg{
		Phase:                   r.Phase,
		PhaseStartedAt:          r.StartedAt.UnixMilli(),
		CountdownDuration:       rc.Countdown,
		RoundDuration:           rc.Duration,
		RoundEndDisplayDuration: rc.EndDisplay,
		PostRoundStatsDuration:  rc.PostRoundStats,
	}
}
