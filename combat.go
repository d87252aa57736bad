package main

import (
	"fmt"
	"log"
	"math"
	"time"
)

// Shot is the resolved result of one musket discharge
type Shot struct {
	Origin    Vec3
	Direction Vec3
	Target    *Player
	Distance  float64
}

// ResolveShot casts a ray from the shooter's eye along dir and returns the
// nearest living player it intersects. The shooter can never hit itself.
func ResolveShot(shooter *Player, dir Vec3, players *Registry, gc GameConfig) Shot {
	shot := Shot{
		Origin:    shooter.Position.Add(Vec3{Y: gc.EyeHeight}),
		Direction: dir,
	}
	unit, ok := dir.Normalize()
	if !ok {
		return shot
	}
	shot.Direction = unit

	best := math.Inf(1)
	players.Each(func(t *Player) {
		if t.ID == shooter.ID || t.Dead {
			return
		}
		center := t.Position.Add(Vec3{Y: gc.BodyCenterHeight})
		if d, hit := RaySphereIntersection(shot.Origin, unit, center, gc.CollisionRadius); hit && d < best {
			best = d
			shot.Target = t
			shot.Distance = d
		}
	})
	return shot
}

// fireMusket resolves a shot, applies damage and broadcasts the effect.
// The effect goes out whether or not anything was hit.
func (g *Game) fireMusket(shooterID string, dir Vec3, now time.Time, fx *Effects) {
	shooter := g.players.Get(shooterID)
	if shooter == nil || shooter.Dead {
		return
	}
	if !dir.IsFinite() {
		return
	}

	shot := ResolveShot(shooter, dir, g.players, g.cfg.Game)
	shooter.Stats.Shots++
	g.track(fx, EvtMusketFire, shooterID, "", now)

	effect := GameEffectMsg{
		Type:      EffectMusketFire,
		ShooterID: shooterID,
		Origin:    shot.Origin,
		Direction: shot.Direction,
	}
	if target := shot.Target; target != nil {
		shooter.Stats.Hits++
		effect.HitID = target.ID
		effect.Distance = shot.Distance
		died := target.TakeDamage(g.cfg.Game.Damage, now)
		g.track(fx, EvtPlayerHit, target.ID, fmt.Sprintf(`{"shooter":%q,"health":%d}`, shooterID, target.Health), now)
		if died {
			shooter.Stats.Kills++
			target.Stats.Deaths++
			log.Printf("combat: %s eliminated %s", shooterID, target.ID)
			g.track(fx, EvtPlayerDeath, target.ID, fmt.Sprintf(`{"killer":%q}`, shooterID), now)
		}
	}
	fx.broadcast(MsgGameEffect, effect)
}
