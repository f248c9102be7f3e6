package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// StepMin and StepMax clamp the step delta time. Unbounded frame gaps
	// cause tunneling through thin static geometry.
	StepMin = 0.001
	StepMax = 0.066

	// ImpulseBase and ImpulseMax bound the quadratic shot strength curve:
	// impulse = base + t^2 * (max - base) for normalized strength t.
	ImpulseBase = 10.0
	ImpulseMax  = 3000.0

	// BackforceBase and BackforceMax bound the recoil curve applied to the
	// shooter, on the same quadratic mapping.
	BackforceBase = 2.0
	BackforceMax  = 60.0

	// SleepSpeedSquared is the threshold under which a body is considered
	// at rest, for both linear and angular speed.
	SleepSpeedSquared = 0.01

	// sleepFrameCount is how many consecutive at-rest steps are required
	// before a body is marked asleep.
	sleepFrameCount = 10

	linearDamping  = 0.999
	angularDamping = 0.98
)

// StaticBox is an immovable axis-aligned collider.
type StaticBox struct {
	Name        string
	Box         AABB
	Restitution float64
}

// TriggerVolume is a non-colliding axis-aligned volume that reports
// containment of dynamic bodies.
type TriggerVolume struct {
	Name string
	Box  AABB
}

// WorldDef describes the static world: gravity, colliders and triggers.
type WorldDef struct {
	Gravity  mgl64.Vec3
	Statics  []StaticBox
	Triggers []TriggerVolume
}

// World owns all static geometry and dynamic bodies of a session.
//
// World is not safe for concurrent use. All calls, including Step, must be
// serialized by the owning tick loop.
type World struct {
	def      WorldDef
	bodies   map[BodyID]*Body
	order    []BodyID
	inside   map[string]map[BodyID]bool
	disposed bool

	events        []Event
	eventsSpare   []Event
	droppedEvents uint64
}

// NewWorld builds a world from the definition. It returns an error when the
// definition cannot produce a runnable world; callers must treat that as
// fatal, the session cannot run without its physics world.
func NewWorld(def WorldDef) (*World, error) {
	if def.Gravity.LenSqr() == 0 {
		return nil, fmt.Errorf("world definition has zero gravity")
	}
	if len(def.Statics) == 0 {
		return nil, fmt.Errorf("world definition has no static geometry")
	}
	for _, s := range def.Statics {
		if err := validBox(s.Box); err != nil {
			return nil, fmt.Errorf("static %q: %w", s.Name, err)
		}
	}
	inside := make(map[string]map[BodyID]bool, len(def.Triggers))
	for _, t := range def.Triggers {
		if err := validBox(t.Box); err != nil {
			return nil, fmt.Errorf("trigger %q: %w", t.Name, err)
		}
		if _, ok := inside[t.Name]; ok {
			return nil, fmt.Errorf("duplicate trigger name %q", t.Name)
		}
		inside[t.Name] = make(map[BodyID]bool)
	}

	return &World{
		def:         def,
		bodies:      make(map[BodyID]*Body),
		inside:      inside,
		events:      make([]Event, 0, EventQueueSize),
		eventsSpare: make([]Event, 0, EventQueueSize),
	}, nil
}

func validBox(box AABB) error {
	if box.Min.X() >= box.Max.X() || box.Min.Y() >= box.Max.Y() || box.Min.Z() >= box.Max.Z() {
		return fmt.Errorf("inverted box: min %v, max %v", box.Min, box.Max)
	}
	return nil
}

// NewBodyOptions configures a dynamic body at creation.
type NewBodyOptions struct {
	HalfExtents mgl64.Vec3
	Mass        float64
	Restitution float64
	Friction    float64
	Kinematic   bool
}

// CreateBody adds a dynamic body to the world.
func (w *World) CreateBody(id BodyID, position mgl64.Vec3, rotation mgl64.Quat, opts NewBodyOptions) (*Body, error) {
	if w.disposed {
		return nil, fmt.Errorf("world is disposed")
	}
	if _, ok := w.bodies[id]; ok {
		return nil, fmt.Errorf("body %d already exists", id)
	}
	if opts.Mass <= 0 {
		opts.Mass = 1
	}
	if opts.HalfExtents.LenSqr() == 0 {
		opts.HalfExtents = mgl64.Vec3{0.5, 0.5, 0.5}
	}
	body := &Body{
		ID:          id,
		HalfExtents: opts.HalfExtents,
		Position:    position,
		Rotation:    rotation.Normalize(),
		Mass:        opts.Mass,
		Kinematic:   opts.Kinematic,
		restitution: opts.Restitution,
		friction:    opts.Friction,
	}
	w.bodies[id] = body
	w.order = append(w.order, id)
	return body, nil
}

// RemoveBody removes a body and all of its trigger containment state.
func (w *World) RemoveBody(id BodyID) {
	if _, ok := w.bodies[id]; !ok {
		return
	}
	delete(w.bodies, id)
	for i, bid := range w.order {
		if bid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for _, contained := range w.inside {
		delete(contained, id)
	}
}

// Body returns the body with the given id.
func (w *World) Body(id BodyID) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

// BodyCount returns the number of dynamic bodies in the world.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// Teleport moves a body to a new position and rotation by recreating it.
// The body is removed and rebuilt with zeroed velocities; trigger
// containment is reset. Backends that support in-place warps may satisfy
// this contract without recreation, but callers must not assume the *Body
// pointer survives a teleport.
func (w *World) Teleport(id BodyID, position mgl64.Vec3, rotation mgl64.Quat) (*Body, error) {
	old, ok := w.bodies[id]
	if !ok {
		return nil, fmt.Errorf("body %d does not exist", id)
	}
	opts := NewBodyOptions{
		HalfExtents: old.HalfExtents,
		Mass:        old.Mass,
		Restitution: old.restitution,
		Friction:    old.friction,
		Kinematic:   old.Kinematic,
	}
	w.RemoveBody(id)
	return w.CreateBody(id, position, rotation, opts)
}

// SetKinematic switches a body between kinematic and simulated control.
func (w *World) SetKinematic(id BodyID, kinematic bool) error {
	body, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("body %d does not exist", id)
	}
	body.Kinematic = kinematic
	body.Velocity = mgl64.Vec3{}
	body.AngularVelocity = mgl64.Vec3{}
	body.Wake()
	return nil
}

// MoveKinematic sets the pose of a body under direct position control.
func (w *World) MoveKinematic(id BodyID, position mgl64.Vec3, rotation mgl64.Quat) error {
	body, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("body %d does not exist", id)
	}
	if !body.Kinematic {
		return fmt.Errorf("body %d is not kinematic", id)
	}
	body.Position = position
	body.Rotation = rotation.Normalize()
	return nil
}

// ImpulseStrength maps a normalized strength t in [0,1] onto the quadratic
// curve base + t^2*(max-base). High-charge shots are intentionally weighted
// disproportionately stronger than a linear mapping would allow.
func ImpulseStrength(t, base, max float64) float64 {
	t = mgl64.Clamp(t, 0, 1)
	return base + t*t*(max-base)
}

// ApplyImpulse applies a shot impulse along direction with normalized
// strength t in [0,1].
func (w *World) ApplyImpulse(id BodyID, direction mgl64.Vec3, t float64) error {
	return w.applyCurvedImpulse(id, direction, t, ImpulseBase, ImpulseMax)
}

// ApplyBackforce applies a recoil impulse along direction with normalized
// strength t in [0,1].
func (w *World) ApplyBackforce(id BodyID, direction mgl64.Vec3, t float64) error {
	return w.applyCurvedImpulse(id, direction, t, BackforceBase, BackforceMax)
}

func (w *World) applyCurvedImpulse(id BodyID, direction mgl64.Vec3, t, base, max float64) error {
	body, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("body %d does not exist", id)
	}
	if direction.LenSqr() == 0 {
		return fmt.Errorf("impulse direction is zero")
	}
	impulse := ImpulseStrength(t, base, max)
	body.Velocity = body.Velocity.Add(direction.Normalize().Mul(impulse / body.Mass))
	body.Wake()
	return nil
}

// TriggerContains reports whether the AABB of the body overlaps the named
// trigger volume. This is the explicit containment sweep for bodies under
// kinematic control, which do not emit trigger events.
func (w *World) TriggerContains(trigger string, id BodyID) bool {
	body, ok := w.bodies[id]
	if !ok {
		return false
	}
	for _, t := range w.def.Triggers {
		if t.Name != trigger {
			continue
		}
		return t.Box.Contains(body.Position)
	}
	return false
}

// Step advances the simulation by dt seconds in a single integration pass.
// dt is clamped to [StepMin, StepMax]. There is no internal sub-stepping.
func (w *World) Step(dt float64) {
	if w.disposed {
		return
	}
	dt = mgl64.Clamp(dt, StepMin, StepMax)

	for _, id := range w.order {
		body := w.bodies[id]
		if body.Kinematic || body.Asleep {
			continue
		}
		w.integrate(body, dt)
		w.collideStatics(body)
		w.updateSleep(body)
	}

	w.collideDynamics()
	w.updateTriggers()
}

func (w *World) integrate(body *Body, dt float64) {
	body.Velocity = body.Velocity.Add(w.def.Gravity.Mul(dt)).Mul(linearDamping)
	body.Position = body.Position.Add(body.Velocity.Mul(dt))

	if body.AngularVelocity.LenSqr() > 0 {
		omega := mgl64.Quat{W: 0, V: body.AngularVelocity}
		dq := omega.Mul(body.Rotation)
		body.Rotation = body.Rotation.Add(dq.Scale(0.5 * dt)).Normalize()
		body.AngularVelocity = body.AngularVelocity.Mul(angularDamping)
	}
}

func (w *World) collideStatics(body *Body) {
	box := body.AABB()
	for _, s := range w.def.Statics {
		if !box.Overlaps(s.Box) {
			continue
		}
		normal, depth := separationAxis(box, s.Box)
		if depth <= 0 {
			continue
		}
		body.Position = body.Position.Add(normal.Mul(depth))
		vn := body.Velocity.Dot(normal)
		if vn < 0 {
			restitution := math.Max(body.restitution, s.Restitution)
			normalVel := normal.Mul(vn)
			tangentVel := body.Velocity.Sub(normalVel)
			body.Velocity = tangentVel.Mul(1 - body.friction).Sub(normalVel.Mul(restitution))
			// Tangential scrub bleeds into spin so rolling bodies settle.
			body.AngularVelocity = body.AngularVelocity.Mul(angularDamping)
		}
		box = body.AABB()
	}
}

func (w *World) collideDynamics() {
	for i := 0; i < len(w.order); i++ {
		a := w.bodies[w.order[i]]
		for j := i + 1; j < len(w.order); j++ {
			b := w.bodies[w.order[j]]
			if a.Kinematic && b.Kinematic {
				continue
			}
			if a.Asleep && b.Asleep {
				continue
			}
			if !a.AABB().Overlaps(b.AABB()) {
				continue
			}
			relative := a.Velocity.Sub(b.Velocity)
			speed := relative.Len()
			w.pushEvent(Event{
				Type:  EventTypeContact,
				BodyA: a.ID,
				BodyB: b.ID,
				Speed: speed,
			})
			w.separate(a, b)
		}
	}
}

func (w *World) separate(a, b *Body) {
	normal, depth := separationAxis(a.AABB(), b.AABB())
	if depth <= 0 {
		return
	}
	switch {
	case a.Kinematic:
		b.Position = b.Position.Sub(normal.Mul(depth))
		b.Wake()
	case b.Kinematic:
		a.Position = a.Position.Add(normal.Mul(depth))
		a.Wake()
	default:
		half := normal.Mul(depth * 0.5)
		a.Position = a.Position.Add(half)
		b.Position = b.Position.Sub(half)
		// Exchange the normal components of velocity, equal masses assumed
		// close enough for gameplay primitives.
		van := a.Velocity.Dot(normal)
		vbn := b.Velocity.Dot(normal)
		if van-vbn < 0 {
			a.Velocity = a.Velocity.Add(normal.Mul(vbn - van))
			b.Velocity = b.Velocity.Add(normal.Mul(van - vbn))
		}
		a.Wake()
		b.Wake()
	}
}

// separationAxis returns the minimum translation normal pushing box a out
// of box b, and the penetration depth along it.
func separationAxis(a, b AABB) (mgl64.Vec3, float64) {
	overlapX := math.Min(a.Max.X()-b.Min.X(), b.Max.X()-a.Min.X())
	overlapY := math.Min(a.Max.Y()-b.Min.Y(), b.Max.Y()-a.Min.Y())
	overlapZ := math.Min(a.Max.Z()-b.Min.Z(), b.Max.Z()-a.Min.Z())
	if overlapX <= 0 || overlapY <= 0 || overlapZ <= 0 {
		return mgl64.Vec3{}, 0
	}

	centerDelta := a.Center().Sub(b.Center())
	switch {
	case overlapX <= overlapY && overlapX <= overlapZ:
		return mgl64.Vec3{math.Copysign(1, centerDelta.X()), 0, 0}, overlapX
	case overlapY <= overlapZ:
		return mgl64.Vec3{0, math.Copysign(1, centerDelta.Y()), 0}, overlapY
	default:
		return mgl64.Vec3{0, 0, math.Copysign(1, centerDelta.Z())}, overlapZ
	}
}

func (w *World) updateSleep(body *Body) {
	if body.SpeedSquared() < SleepSpeedSquared && body.AngularSpeedSquared() < SleepSpeedSquared {
		body.stillFrames++
		if body.stillFrames >= sleepFrameCount {
			body.Asleep = true
			body.Velocity = mgl64.Vec3{}
			body.AngularVelocity = mgl64.Vec3{}
		}
	} else {
		body.stillFrames = 0
	}
}

func (w *World) updateTriggers() {
	for _, t := range w.def.Triggers {
		contained := w.inside[t.Name]
		for _, id := range w.order {
			body := w.bodies[id]
			if body.Kinematic {
				// Position-controlled bodies do not reliably report
				// trigger overlap; callers use TriggerContains instead.
				delete(contained, id)
				continue
			}
			inside := t.Box.Contains(body.Position)
			if inside && !contained[id] {
				w.pushEvent(Event{
					Type:    EventTypeTriggerEnter,
					Trigger: t.Name,
					Body:    id,
				})
			}
			if inside {
				contained[id] = true
			} else {
				delete(contained, id)
			}
		}
	}
}

// Dispose releases all bodies and geometry. The world cannot be used after
// disposal.
func (w *World) Dispose() {
	w.bodies = map[BodyID]*Body{}
	w.order = nil
	w.inside = map[string]map[BodyID]bool{}
	w.events = nil
	w.eventsSpare = nil
	w.disposed = true
}
