package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// BodyID identifies a dynamic body in the world. Callers own the id space.
type BodyID uint32

// Body is a dynamic axis-aligned box in the world.
// Bodies are created through World.CreateBody and must not be shared
// across worlds.
type Body struct {
	ID              BodyID
	HalfExtents     mgl64.Vec3
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Mass            float64

	// Kinematic bodies are under direct position control and are not
	// integrated or collided against static geometry. The engine does not
	// emit trigger events for them; callers that need trigger detection
	// for kinematic bodies must use the explicit containment sweep.
	Kinematic bool

	Asleep      bool
	restitution float64
	friction    float64
	stillFrames int
}

// AABB returns the world-space bounding box of the body.
// Rotation is ignored for broadphase purposes: all dynamic bodies are
// near-cubic primitives.
func (b *Body) AABB() AABB {
	return AABB{
		Min: b.Position.Sub(b.HalfExtents),
		Max: b.Position.Add(b.HalfExtents),
	}
}

// SpeedSquared returns the squared linear speed of the body.
func (b *Body) SpeedSquared() float64 {
	return b.Velocity.LenSqr()
}

// AngularSpeedSquared returns the squared angular speed of the body.
func (b *Body) AngularSpeedSquared() float64 {
	return b.AngularVelocity.LenSqr()
}

// Wake clears the sleep state of the body.
func (b *Body) Wake() {
	b.Asleep = false
	b.stillFrames = 0
}

// AABB is an axis-aligned box given by its corner points.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Contains reports whether the point lies inside the box.
func (a AABB) Contains(p mgl64.Vec3) bool {
	return p.X() >= a.Min.X() && p.X() <= a.Max.X() &&
		p.Y() >= a.Min.Y() && p.Y() <= a.Max.Y() &&
		p.Z() >= a.Min.Z() && p.Z() <= a.Max.Z()
}

// Overlaps reports whether the two boxes intersect.
func (a AABB) Overlaps(other AABB) bool {
	return a.Min.X() <= other.Max.X() && a.Max.X() >= other.Min.X() &&
		a.Min.Y() <= other.Max.Y() && a.Max.Y() >= other.Min.Y() &&
		a.Min.Z() <= other.Max.Z() && a.Max.Z() >= other.Min.Z()
}

// Center returns the midpoint of the box.
func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}
