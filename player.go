package main

import (
	"math"
	"time"
)

// MaxHealth is the health every player spawns with
const MaxHealth = 100

// InputAction is one recognized player control
type InputAction uint8

const (
	InputForward InputAction = iota
	InputBack
	InputStrafeLeft
	InputStrafeRight
	InputJump
	InputFire
)

// InputSet is the set of held controls, one bit per InputAction
type InputSet uint8

func (s InputSet) Has(a InputAction) bool {
	return s&(1<<a) != 0
}

func (s InputSet) With(a InputAction) InputSet {
	return s | 1<<a
}

// Player is the authoritative state of one connected session
type Player struct {
	ID          string
	Position    Vec3
	FacingAngle float64
	Health      int
	Dead        bool
	DeathAt     time.Time // zero while alive
	VelocityY   float64
	Airborne    bool
	Keys        InputSet
	Stats       RoundStats
}

// NewPlayer creates a living player at pos
func NewPlayer(id string, pos Vec3) *Player {
	return &Player{
		ID:       id,
		Position: pos,
		Health:   MaxHealth,
	}
}

// Advance integrates movement and vertical physics over dt seconds.
// Dead players do not move.
func (p *Player) Advance(dt float64, gc GameConfig) {
	if p.Dead {
		return
	}

	var dz, dx float64
	if p.Keys.Has(InputForward) {
		dz = 1
	}
	if p.Keys.Has(InputBack) {
		dz = -1
	}
	if p.Keys.Has(InputStrafeLeft) {
		dx = -1
	}
	if p.Keys.Has(InputStrafeRight) {
		dx = 1
	}

	// facing angle 0 looks down +Z
	fwdX, fwdZ := math.Sin(p.FacingAngle), math.Cos(p.FacingAngle)
	rightX, rightZ := math.Sin(p.FacingAngle+math.Pi/2), math.Cos(p.FacingAngle+math.Pi/2)
	moveX := fwdX*dz + rightX*dx
	moveZ := fwdZ*dz + rightZ*dx
	if mag := math.Hypot(moveX, moveZ); mag > 0 {
		moveX /= mag
		moveZ /= mag
	}
	p.Position.X += moveX * gc.MoveSpeed * dt
	p.Position.Z += moveZ * gc.MoveSpeed * dt

	if p.Keys.Has(InputJump) && !p.Airborne && p.Position.Y <= 0 {
		p.Airborne = true
		p.VelocityY = gc.JumpSpeed
	}

	switch {
	case p.Airborne:
		p.Position.Y += p.VelocityY * dt
		p.VelocityY += gc.Gravity * dt
		if p.Position.Y < 0 {
			p.land()
		}
	case p.Position.Y > 0:
		p.VelocityY += gc.Gravity * dt
		p.Position.Y += p.VelocityY * dt
		if p.Position.Y < 0 {
			p.land()
		}
	default:
		p.Position.Y = 0
		p.VelocityY = 0
	}

	limit := gc.MapHalfSize - gc.CollisionRadius
	p.Position.X = Clamp(p.Position.X, -limit, limit)
	p.Position.Z = Clamp(p.Position.Z, -limit, limit)
}

func (p *Player) land() {
	p.Position.Y = 0
	p.Airborne = false
	p.VelocityY = 0
}

// TakeDamage subtracts dmg from health and returns true if this hit killed
// the player. Damage to a dead player is ignored.
func (p *Player) TakeDamage(dmg int, now time.Time) bool {
	if p.Dead {
		return false
	}
	p.Health -= dmg
	if p.Health > MaxHealth {
		p.Health = MaxHealth
	}
	if p.Health <= 0 {
		p.Eliminate(now)
		return true
	}
	return false
}

// Eliminate marks the player dead at now with zero health
func (p *Player) Eliminate(now time.Time) {
	p.Health = 0
	p.Dead = true
	p.DeathAt = now
}

// Respawn brings the player back alive at pos with full health and cleared motion
func (p *Player) Respawn(pos Vec3) {
	p.Position = Vec3{X: pos.X, Z: pos.Z}
	p.FacingAngle = 0
	p.Health = MaxHealth
	p.Dead = false
	p.DeathAt = time.Time{}
	p.VelocityY = 0
	p.Airborne = false
	p.Keys = 0
}

// ToState returns the public snapshot of the player
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:          p.ID,
		Position:    p.Position,
		FacingAngle: p.FacingAngle,
		Health:      p.Health,
		IsDead:      p.Dead,
	}
}

// ToPrivateState includes the fields only the owning client receives
func (p *Player) ToPrivateState() PrivatePlayerState {
	return PrivatePlayerState{
		PlayerState: p.ToState(),
		VelocityY:   p.VelocityY,
		Airborne:    p.Airborne,
	}
}
