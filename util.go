package main

import (
	"math"

	"github.com/google/uuid"
)

// GenerateID returns a fresh connection or round identifier
func GenerateID() string {
	return uuid.NewString()
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// finite reports whether f is neither NaN nor infinite
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
