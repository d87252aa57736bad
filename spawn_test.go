package main

import (
	"math/rand/v2"
	"testing"
)

func TestSpawnZoneSampleInsideDisk(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	z := SpawnZone{Name: "test", X: 20, Z: -30, Radius: 4}
	for i := 0; i < 1000; i++ {
		p := z.Sample(rng)
		if !z.Contains(p) {
			t.Fatalf("sample %d outside zone: %+v", i, p)
		}
		if p.Y != 0 {
			t.Fatalf("spawn must be on the ground, got y=%f", p.Y)
		}
	}
}

func TestSpawnZoneSampleCoversDisk(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	z := SpawnZone{Radius: 10}
	outer := 0
	for i := 0; i < 2000; i++ {
		p := z.Sample(rng)
		if p.X*p.X+p.Z*p.Z > 50 {
			outer++
		}
	}
	// half the area lies beyond radius sqrt(50); expect roughly half the samples there
	if outer < 800 || outer > 1200 {
		t.Errorf("samples not uniform over area: %d of 2000 in outer half", outer)
	}
}

func TestPickSpawnEmptyFallsBack(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	p := PickSpawn(nil, rng)
	if !FallbackSpawnZone.Contains(p) {
		t.Errorf("expected fallback zone position, got %+v", p)
	}
}

func TestPickSpawnUsesConfiguredZones(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	zones := []SpawnZone{{X: 50, Z: 50, Radius: 1}, {X: -50, Z: -50, Radius: 1}}
	seen := map[int]bool{}
	for i := 0; i < 100; i++ {
		p := PickSpawn(zones, rng)
		switch {
		case zones[0].Contains(p):
			seen[0] = true
		case zones[1].Contains(p):
			seen[1] = true
		default:
			t.Fatalf("position %+v in no zone", p)
		}
	}
	if !seen[0] || !seen[1] {
		t.Error("expected both zones to be used")
	}
}
