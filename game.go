package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

// maxTickDelta bounds a single physics step after a stall
const maxTickDelta = 250 * time.Millisecond

// Audience selects which sessions receive an outbound message
type Audience int

const (
	AudienceAll Audience = iota
	AudienceOne
	AudienceOthers
)

// Outbound is a message the game wants delivered. PlayerID is the recipient
// for AudienceOne and the excluded session for AudienceOthers.
type Outbound struct {
	Audience Audience
	PlayerID string
	Env      Envelope
}

// Effects is everything a game operation produced. The hub performs the
// delivery; the game itself never touches a connection or a database.
type Effects struct {
	Out    []Outbound
	Events []AnalyticsEvent
	Rounds []RoundSummary
}

func (fx *Effects) broadcast(t string, d interface{}) {
	fx.Out = append(fx.Out, Outbound{Audience: AudienceAll, Env: Envelope{T: t, Data: d}})
}

func (fx *Effects) send(to, t string, d interface{}) {
	fx.Out = append(fx.Out, Outbound{Audience: AudienceOne, PlayerID: to, Env: Envelope{T: t, Data: d}})
}

func (fx *Effects) broadcastExcept(except, t string, d interface{}) {
	fx.Out = append(fx.Out, Outbound{Audience: AudienceOthers, PlayerID: except, Env: Envelope{T: t, Data: d}})
}

// Game is the authoritative match: the session registry, the round state
// machine, movement, combat and respawns. All methods must be called from a
// single goroutine.
type Game struct {
	cfg     *Config
	rng     *rand.Rand
	players *Registry
	round   Round
	advance func(p *Player, dt float64, gc GameConfig)

	roundID        string
	roundStartedAt time.Time
	lastTick       time.Time
	tick           uint64
}

// NewGame creates a game waiting for players, with its phase clock started at now
func NewGame(cfg *Config, rng *rand.Rand, now time.Time) *Game {
	return &Game{
		cfg:     cfg,
		rng:     rng,
		players: NewRegistry(),
		round:   Round{Phase: PhaseWaitingForPlayers, StartedAt: now},
		advance: (*Player).Advance,
	}
}

func (g *Game) Phase() Phase             { return g.round.Phase }
func (g *Game) PlayerCount() int         { return g.players.Len() }
func (g *Game) Player(id string) *Player { return g.players.Get(id) }

// Join registers a new session. Joining mid-round, or during the round
// end screens, leaves the player dead until respawn or the next round.
func (g *Game) Join(id string, now time.Time) Effects {
	var fx Effects
	if g.players.Get(id) != nil {
		return fx
	}

	p := NewPlayer(id, g.spawnPoint())
	switch g.round.Phase {
	case PhaseInProgress, PhaseRoundEnd, PhasePostRoundStats:
		p.Eliminate(now)
	}
	g.players.Add(p)
	log.Printf("game: %s joined (%d players, %s)", id, g.players.Len(), g.round.Phase)

	fx.send(id, MsgInitializePlayer, InitializePlayerMsg{ID: id, InitialState: p.ToPrivateState()})
	g.players.Each(func(o *Player) {
		if o.ID != id {
			fx.send(id, MsgPlayerJoined, o.ToState())
		}
	})
	fx.broadcastExcept(id, MsgPlayerJoined, p.ToState())
	g.track(&fx, EvtSessionJoin, id, "", now)

	if !g.evaluateHeadcount(now, &fx) {
		fx.send(id, MsgGamePhaseUpdate, g.round.PhaseUpdate(g.cfg.Round))
	}
	return fx
}

// Leave removes a session and lets the round react to the lower headcount
func (g *Game) Leave(id string, now time.Time) Effects {
	var fx Effects
	if g.players.Remove(id) == nil {
		return fx
	}
	log.Printf("game: %s left (%d players)", id, g.players.Len())
	fx.broadcast(MsgPlayerLeft, PlayerLeftMsg{ID: id})
	g.track(&fx, EvtSessionLeave, id, "", now)
	g.evaluateHeadcount(now, &fx)
	return fx
}

// HandleInput records the held controls and facing angle. Input outside a
// round in progress, or from an unknown session, is ignored.
func (g *Game) HandleInput(id string, in PlayerInput) {
	if g.round.Phase != PhaseInProgress {
		return
	}
	p := g.players.Get(id)
	if p == nil {
		return
	}
	p.Keys = in.Keys
	if in.HasAngle {
		p.FacingAngle = in.FacingAngle
	}
}

// HandleAction performs a discrete action such as firing
func (g *Game) HandleAction(id string, act PlayerAction, now time.Time) Effects {
	var fx Effects
	if g.round.Phase != PhaseInProgress {
		return fx
	}
	switch act.Action {
	case InputFire:
		g.fireMusket(id, act.Direction, now, &fx)
	}
	return fx
}

// Tick runs one simulation step: phase rules, movement, respawns, then the
// state snapshot.
func (g *Game) Tick(now time.Time) Effects {
	var fx Effects
	dt := g.tickDelta(now)
	g.tick++

	if next, ok := nextPhase(g.round.Phase, now.Sub(g.round.StartedAt), g.players.Len(), g.cfg.Round); ok {
		g.setPhase(next, now, &fx)
	}

	if g.round.Phase == PhaseInProgress {
		g.players.Each(func(p *Player) {
			g.isolate(p.ID, func() { g.advance(p, dt, g.cfg.Game) })
		})
		g.runRespawns(now, &fx)
	}

	if g.players.Len() > 0 || g.round.Phase != PhaseWaitingForPlayers {
		fx.broadcast(MsgGameStateUpdate, g.Snapshot())
	}
	return fx
}

// Snapshot is the public state of every session in join order
func (g *Game) Snapshot() []PlayerState {
	states := make([]PlayerState, 0, g.players.Len())
	g.players.Each(func(p *Player) {
		states = append(states, p.ToState())
	})
	return states
}

// Status summarizes the server for the status endpoint and presence record
func (g *Game) Status(now time.Time) ServerStatus {
	return ServerStatus{
		ServerID:       g.cfg.Server.ID,
		Phase:          g.round.Phase,
		PhaseStartedAt: g.round.StartedAt.UnixMilli(),
		RoundID:        g.roundID,
		Players:        g.players.Len(),
		Alive:          g.players.Alive(),
		Tick:           g.tick,
		UpdatedAt:      now.UnixMilli(),
	}
}

func (g *Game) tickDelta(now time.Time) float64 {
	var dt time.Duration
	if g.lastTick.IsZero() {
		dt = g.cfg.Server.TickInterval()
	} else {
		dt = now.Sub(g.lastTick)
	}
	g.lastTick = now
	if dt < 0 {
		dt = 0
	}
	if dt > maxTickDelta {
		dt = maxTickDelta
	}
	return dt.Seconds()
}

func (g *Game) evaluateHeadcount(now time.Time, fx *Effects) bool {
	next, ok := headcountTransition(g.round.Phase, g.players.Len(), g.cfg.Round)
	if ok {
		g.setPhase(next, now, fx)
	}
	return ok
}

func (g *Game) setPhase(next Phase, now time.Time, fx *Effects) {
	prev := g.round.Phase
	g.round = Round{Phase: next, StartedAt: now}

	if prev == PhaseCountdown && next == PhaseInProgress {
		g.startRound(now)
	}

	log.Printf("game: phase %s -> %s (%d players)", prev, next, g.players.Len())
	fx.broadcast(MsgGamePhaseUpdate, g.round.PhaseUpdate(g.cfg.Round))
	g.track(fx, EvtPhaseChange, "", fmt.Sprintf(`{"from":%q,"to":%q}`, prev, next), now)

	if prev == PhaseInProgress && next == PhaseRoundEnd {
		g.endRound(now, fx)
	}
}

// startRound resets every session to a fresh spawn with full health
func (g *Game) startRound(now time.Time) {
	g.roundID = GenerateID()
	g.roundStartedAt = now
	g.players.Each(func(p *Player) {
		p.Respawn(g.spawnPoint())
		p.Stats = RoundStats{}
	})
}

func (g *Game) endRound(now time.Time, fx *Effects) {
	summary := buildSummary(g.roundID, g.cfg.Server.ID, g.roundStartedAt, now, g.players)
	fx.broadcast(MsgRoundSummary, summary)
	fx.Rounds = append(fx.Rounds, summary)
	t := summary.Totals()
	g.track(fx, EvtRoundEnd, summary.WinnerID, fmt.Sprintf(`{"players":%d,"shots":%d,"hits":%d,"kills":%d}`, len(summary.Players), t.Shots, t.Hits, t.Kills), now)
}

// spawnPoint samples a configured zone and keeps the result inside the arena
func (g *Game) spawnPoint() Vec3 {
	pos := PickSpawn(g.cfg.SpawnZones, g.rng)
	limit := g.cfg.Game.MapHalfSize - g.cfg.Game.CollisionRadius
	pos.X = Clamp(pos.X, -limit, limit)
	pos.Z = Clamp(pos.Z, -limit, limit)
	return pos
}

func (g *Game) track(fx *Effects, typ, playerID, data string, now time.Time) {
	fx.Events = append(fx.Events, AnalyticsEvent{
		Type:      typ,
		PlayerID:  playerID,
		RoundID:   g.roundID,
		Data:      data,
		Timestamp: now,
	})
}

// isolate runs fn and logs instead of propagating a panic, so one bad
// session cannot stall the tick for everyone else.
func (g *Game) isolate(playerID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("game: recovered panic for %s: %v", playerID, r)
		}
	}()
	fn()
}
