package main

import "math"

// Vec3 is a point or direction in world space. Y is up; the ground plane is y = 0.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector along v. It reports false for the zero vector.
func (v Vec3) Normalize() (Vec3, bool) {
	l := v.Length()
	if l == 0 || !finite(l) {
		return Vec3{}, false
	}
	return v.Scale(1 / l), true
}

// IsFinite reports whether every component is a real number
func (v Vec3) IsFinite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// RaySphereIntersection returns the distance along dir from origin to the
// nearest non-negative intersection with the sphere. dir is expected to be a
// unit vector. When the origin is inside the sphere the exit distance is
// returned. A zero-length direction never hits.
func RaySphereIntersection(origin, dir, center Vec3, radius float64) (float64, bool) {
	if dir.Dot(dir) == 0 {
		return 0, false
	}
	oc := center.Sub(origin)
	tca := oc.Dot(dir)
	d2 := oc.Dot(oc) - tca*tca
	r2 := radius * radius
	if d2 > r2 || (tca < 0 && math.Sqrt(d2) > radius) {
		return 0, false
	}
	thc := math.Sqrt(r2 - d2)
	t0 := tca - thc
	t1 := tca + thc
	if t0 < 0 && t1 < 0 {
		return 0, false
	}
	if t0 < 0 {
		return t1, true
	}
	return t0, true
}
