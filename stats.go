package main

import (
	"sort"
	"time"
)

// RoundStats counts one player's activity within the current round
type RoundStats struct {
	Kills  int `json:"kills"`
	Deaths int `json:"deaths"`
	Shots  int `json:"shots"`
	Hits   int `json:"hits"`
}

// PlayerRoundResult is one line of a round summary
type PlayerRoundResult struct {
	ID string `json:"id"`
	RoundStats
}

// RoundSummary is broadcast when a round reaches its time limit and is
// handed to the persistence and publishing sinks.
type RoundSummary struct {
	RoundID   string              `json:"roundId"`
	ServerID  string              `json:"serverId"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   time.Time           `json:"endedAt"`
	Duration  float64             `json:"duration"`
	WinnerID  string              `json:"winnerId,omitempty"`
	Players   []PlayerRoundResult `json:"players"`
}

// Totals sums shots, hits and kills across all players
func (s RoundSummary) Totals() RoundStats {
	var t RoundStats
	for _, p := range s.Players {
		t.Kills += p.Kills
		t.Deaths += p.Deaths
		t.Shots += p.Shots
		t.Hits += p.Hits
	}
	return t
}

// buildSummary ranks players by kills, then fewest deaths, then join order.
// The winner is the top-ranked player if they scored at least one kill.
func buildSummary(roundID, serverID string, started, ended time.Time, players *Registry) RoundSummary {
	results := make([]PlayerRoundResult, 0, players.Len())
	players.Each(func(p *Player) {
		results = append(results, PlayerRoundResult{ID: p.ID, RoundStats: p.Stats})
	})
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Kills != results[j].Kills {
			return results[i].Kills > results[j].Kills
		}
		return results[i].Deaths < results[j].Deaths
	})

	s := RoundSummary{
		RoundID:   roundID,
		ServerID:  serverID,
		StartedAt: started,
		EndedAt:   ended,
		Duration:  ended.Sub(started).Seconds(),
		Players:   results,
	}
	if len(results) > 0 && results[0].Kills > 0 {
		s.WinnerID = results[0].ID
	}
	return s
}
