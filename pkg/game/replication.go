package game

import (
	"github.com/frameball/server/pkg/game/constants"
	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/messages"
	"github.com/go-gl/mathgl/mgl64"
)

// replicaTracker remembers the last replicated pose of every entity so
// each tick only republishes what moved beyond the epsilons. Objects that
// were already replicated asleep are skipped entirely, which removes the
// bulk of per-tick work once the floor is covered in resting collectibles.
type replicaTracker struct {
	participants map[uint32]replicaPose
	objects      map[int]replicaPose
	scores       map[string]int
}

type replicaPose struct {
	position mgl64.Vec3
	rotation mgl64.Quat
	velocity mgl64.Vec3
	angular  mgl64.Vec3
	health   int
	dead     bool
	solved   int
	state    gametypes.ObjectState
	owner    uint32
	asleep   bool
	known    bool
}

func newReplicaTracker() *replicaTracker {
	return &replicaTracker{
		participants: make(map[uint32]replicaPose),
		objects:      make(map[int]replicaPose),
		scores:       make(map[string]int),
	}
}

func vec3Ptr(v mgl64.Vec3) *[3]float64 {
	out := [3]float64{v.X(), v.Y(), v.Z()}
	return &out
}

func quatPtr(q mgl64.Quat) *[4]float64 {
	out := [4]float64{q.W, q.V.X(), q.V.Y(), q.V.Z()}
	return &out
}

func beyond(a, b mgl64.Vec3, epsilon float64) bool {
	return a.Sub(b).Len() > epsilon
}

func rotationBeyond(a, b mgl64.Quat) bool {
	d := a.Sub(b)
	return d.W*d.W+d.V.LenSqr() > constants.RotationEpsilon*constants.RotationEpsilon
}

// BuildDelta produces the replication delta for the current state and
// records everything it emitted as the new baseline.
func (t *replicaTracker) BuildDelta(state *gametypes.SessionState) *messages.SessionUpdate {
	update := &messages.SessionUpdate{Timestamp: state.Timestamp}

	for id, p := range state.Participants {
		prev := t.participants[id]
		pu := &messages.ParticipantUpdate{}
		changed := false

		if !prev.known {
			pu.Name = p.Name
			changed = true
		}
		if !prev.known || beyond(p.Position, prev.position, constants.PositionEpsilon) {
			pu.Position = vec3Ptr(p.Position)
			changed = true
		}
		if !prev.known || rotationBeyond(p.Rotation, prev.rotation) {
			pu.Rotation = quatPtr(p.Rotation)
			yaw := p.Yaw
			pu.Yaw = &yaw
			changed = true
		}
		if !prev.known || beyond(p.Velocity, prev.velocity, constants.VelocityEpsilon) {
			pu.Velocity = vec3Ptr(p.Velocity)
			changed = true
		}
		if !prev.known || beyond(p.AngularVelocity, prev.angular, constants.AngularVelocityEpsilon) {
			pu.AngularVelocity = vec3Ptr(p.AngularVelocity)
			changed = true
		}
		if !prev.known || p.Health != prev.health || p.IsDead != prev.dead {
			health := p.Health
			dead := p.IsDead
			pu.Health = &health
			pu.IsDead = &dead
			changed = true
		}
		if !prev.known || p.ObjectsCompleted != prev.solved {
			solved := p.ObjectsCompleted
			pu.Completed = &solved
			changed = true
		}

		if changed {
			if update.Participants == nil {
				update.Participants = make(map[uint32]*messages.ParticipantUpdate)
			}
			update.Participants[id] = pu
			t.participants[id] = replicaPose{
				position: p.Position,
				rotation: p.Rotation,
				velocity: p.Velocity,
				angular:  p.AngularVelocity,
				health:   p.Health,
				dead:     p.IsDead,
				solved:   p.ObjectsCompleted,
				known:    true,
			}
		}
	}
	for id := range t.participants {
		if _, ok := state.Participants[id]; !ok {
			delete(t.participants, id)
		}
	}

	for id, o := range state.Objects {
		prev := t.objects[id]
		if prev.known && prev.asleep && o.Asleep && o.State == prev.state {
			continue
		}

		ou := &messages.ObjectUpdate{}
		changed := false
		if !prev.known || beyond(o.Position, prev.position, constants.PositionEpsilon) {
			ou.Position = vec3Ptr(o.Position)
			changed = true
		}
		if !prev.known || rotationBeyond(o.Rotation, prev.rotation) {
			ou.Rotation = quatPtr(o.Rotation)
			changed = true
		}
		if !prev.known || beyond(o.Velocity, prev.velocity, constants.VelocityEpsilon) {
			ou.Velocity = vec3Ptr(o.Velocity)
			changed = true
		}
		if !prev.known || beyond(o.AngularVelocity, prev.angular, constants.AngularVelocityEpsilon) {
			ou.AngularVelocity = vec3Ptr(o.AngularVelocity)
			changed = true
		}
		if !prev.known || o.State != prev.state || o.OwnerID != prev.owner || o.Asleep != prev.asleep {
			st := uint8(o.State)
			owner := o.OwnerID
			asleep := o.Asleep
			ou.State = &st
			ou.OwnerID = &owner
			ou.Asleep = &asleep
			changed = true
		}

		if changed {
			if update.Objects == nil {
				update.Objects = make(map[int]*messages.ObjectUpdate)
			}
			update.Objects[id] = ou
			t.objects[id] = replicaPose{
				position: o.Position,
				rotation: o.Rotation,
				velocity: o.Velocity,
				angular:  o.AngularVelocity,
				state:    o.State,
				owner:    o.OwnerID,
				asleep:   o.Asleep,
				known:    true,
			}
		}
	}
	for id := range t.objects {
		if _, ok := state.Objects[id]; !ok {
			update.Removed = append(update.Removed, id)
			delete(t.objects, id)
		}
	}

	for side, score := range state.Scores {
		if t.scores[side] != score || len(t.scores) != len(state.Scores) {
			update.Scores = state.Scores
			t.scores = map[string]int{}
			for s, v := range state.Scores {
				t.scores[s] = v
			}
			break
		}
	}

	return update
}

// Empty reports whether a delta carries nothing worth broadcasting.
func updateEmpty(u *messages.SessionUpdate) bool {
	return len(u.Participants) == 0 && len(u.Objects) == 0 && len(u.Removed) == 0 && u.Scores == nil
}

// BuildFull produces a complete snapshot without touching the baseline,
// for welcome messages.
func buildFullSnapshot(state *gametypes.SessionState) *messages.SessionUpdate {
	fresh := newReplicaTracker()
	return fresh.BuildDelta(state)
}
