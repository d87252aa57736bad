package main

import "time"

// runRespawns revives every player that has been dead for at least the
// respawn delay. It only runs while a round is in progress.
func (g *Game) runRespawns(now time.Time, fx *Effects) {
	if g.round.Phase != PhaseInProgress {
		return
	}
	delay := g.cfg.Round.RespawnDelayDuration()
	g.players.Each(func(p *Player) {
		if !p.Dead || now.Sub(p.DeathAt) < delay {
			return
		}
		p.Respawn(g.spawnPoint())
		fx.broadcast(MsgPlayerRespawned, p.ToState())
		g.track(fx, EvtPlayerRespawn, p.ID, "", now)
	})
}
