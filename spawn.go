package main

import (
	"math"
	"math/rand/v2"
)

// SpawnZone is a named disk on the ground plane where players are placed
type SpawnZone struct {
	Name   string  `mapstructure:"name" json:"name"`
	X      float64 `mapstructure:"x" json:"x"`
	Z      float64 `mapstructure:"z" json:"z"`
	Radius float64 `mapstructure:"radius" json:"radius"`
}

// FallbackSpawnZone is used when the zone list is empty
var FallbackSpawnZone = SpawnZone{Name: "center", Radius: 5}

// Sample returns a point uniformly distributed over the zone's disk, at ground level
func (z SpawnZone) Sample(rng *rand.Rand) Vec3 {
	r := z.Radius * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	return Vec3{X: z.X + r*math.Cos(theta), Z: z.Z + r*math.Sin(theta)}
}

// Contains reports whether p lies on the zone's disk (height ignored)
func (z SpawnZone) Contains(p Vec3) bool {
	dx, dz := p.X-z.X, p.Z-z.Z
	return dx*dx+dz*dz <= z.Radius*z.Radius+1e-9
}

// PickSpawn chooses a zone uniformly and samples a point inside it
func PickSpawn(zones []SpawnZone, rng *rand.Rand) Vec3 {
	if len(zones) == 0 {
		return FallbackSpawnZone.Sample(rng)
	}
	return zones[rng.IntN(len(zones))].Sample(rng)
}
