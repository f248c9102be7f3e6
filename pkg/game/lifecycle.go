package game

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/frameball/server/pkg/challenges"
	"github.com/frameball/server/pkg/game/constants"
	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/physics"
	"github.com/go-gl/mathgl/mgl64"
)

// LifecycleManager drives the collectible state machine:
//
//	OnGround --click--> Locked --submit(correct)--> Consumed (slot advances)
//	OnGround --charge--> Charging --release|timeout--> OnGround (shot away)
//	Locked --submit(incorrect)|cancel--> OnGround (shot away)
//	any --owner disconnects--> OnGround
//
// All mutations run inside the session tick; methods return errors only so
// the orchestrator can trace-log out-of-context requests before silently
// dropping them.
type LifecycleManager struct {
	state    *gametypes.SessionState
	world    *physics.World
	provider challenges.Provider
	spawner  *SpawnScheduler
	rng      *rand.Rand
}

func NewLifecycleManager(state *gametypes.SessionState, world *physics.World, provider challenges.Provider, spawner *SpawnScheduler, rng *rand.Rand) *LifecycleManager {
	return &LifecycleManager{
		state:    state,
		world:    world,
		provider: provider,
		spawner:  spawner,
		rng:      rng,
	}
}

func (m *LifecycleManager) object(id int) (*gametypes.AvailableObject, error) {
	obj, ok := m.state.Objects[id]
	if !ok {
		return nil, fmt.Errorf("object %d is not in the active set", id)
	}
	return obj, nil
}

// Click locks an on-ground object to the participant and returns its
// lazily generated challenge payload.
func (m *LifecycleManager) Click(p *gametypes.ParticipantState, objectID int) (*challenges.Payload, error) {
	obj, err := m.object(objectID)
	if err != nil {
		return nil, err
	}
	if obj.State != gametypes.ObjectOnGround {
		return nil, fmt.Errorf("object %d is %s, not on ground", objectID, obj.State)
	}
	if p.IsDead {
		return nil, fmt.Errorf("participant %d is dead", p.ClientID)
	}
	if p.Activity == gametypes.ParticipantSolvingChallenge {
		return nil, fmt.Errorf("participant %d is already solving", p.ClientID)
	}

	if obj.ChallengeID == 0 {
		obj.ChallengeID = obj.ID + 1
	}
	payload, err := m.provider.GetByID(obj.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge for object %d: %w", objectID, err)
	}

	obj.State = gametypes.ObjectLocked
	obj.OwnerID = p.ClientID
	p.Activity = gametypes.ParticipantSolvingChallenge
	if err := m.world.SetKinematic(objectBodyID(obj.ID), true); err != nil {
		return nil, err
	}
	return payload, nil
}

// ChargeStart transitions an on-ground object to charging under the
// participant's control.
func (m *LifecycleManager) ChargeStart(p *gametypes.ParticipantState, objectID int, now int64) error {
	obj, err := m.object(objectID)
	if err != nil {
		return err
	}
	if obj.State != gametypes.ObjectOnGround {
		return fmt.Errorf("object %d is %s, not on ground", objectID, obj.State)
	}
	if p.IsDead {
		return fmt.Errorf("participant %d is dead", p.ClientID)
	}
	if p.Activity == gametypes.ParticipantSolvingChallenge {
		return fmt.Errorf("participant %d is solving a challenge", p.ClientID)
	}

	obj.State = gametypes.ObjectCharging
	obj.OwnerID = p.ClientID
	obj.ChargeStart = now
	return m.world.SetKinematic(objectBodyID(obj.ID), true)
}

// ChargeStrength maps a server-measured charge duration onto the strength
// scale [ChargeMinStrength, ChargeMaxStrength].
func ChargeStrength(elapsedMillis int64) float64 {
	t := mgl64.Clamp(float64(elapsedMillis)/float64(constants.ChargeMaxDuration.Milliseconds()), 0, 1)
	return constants.ChargeMinStrength + t*(constants.ChargeMaxStrength-constants.ChargeMinStrength)
}

// Shoot releases a charging object. Strength comes exclusively from the
// server-measured charge duration; the client direction hint is honored
// only when its horizontal alignment with the participant-to-object offset
// passes the dot threshold, otherwise the offset-derived direction wins.
func (m *LifecycleManager) Shoot(p *gametypes.ParticipantState, objectID int, hint *[3]float64, now int64) (float64, error) {
	obj, err := m.object(objectID)
	if err != nil {
		return 0, err
	}
	if obj.State != gametypes.ObjectCharging || obj.OwnerID != p.ClientID {
		return 0, fmt.Errorf("object %d is not charging for participant %d", objectID, p.ClientID)
	}

	strength := ChargeStrength(now - obj.ChargeStart)
	direction := m.resolveDirection(p, obj, hint)
	if err := m.release(obj, direction, strength); err != nil {
		return 0, err
	}

	back := direction.Mul(-1)
	if err := m.world.ApplyBackforce(participantBodyID(p.ClientID), back, strength/constants.ChargeMaxStrength); err != nil {
		return 0, err
	}
	return strength, nil
}

// AutoRelease releases every charge that reached the maximum duration, at
// maximum strength, and returns the released object ids with their owners.
func (m *LifecycleManager) AutoRelease(now int64) map[int]uint32 {
	var released map[int]uint32
	maxMillis := constants.ChargeMaxDuration.Milliseconds()
	for _, obj := range m.state.Objects {
		if obj.State != gametypes.ObjectCharging {
			continue
		}
		if now-obj.ChargeStart < maxMillis {
			continue
		}
		owner := m.state.Participants[obj.OwnerID]
		if owner == nil {
			m.shootAway(obj)
			continue
		}
		ownerID := obj.OwnerID
		direction := m.resolveDirection(owner, obj, nil)
		if err := m.release(obj, direction, constants.ChargeMaxStrength); err != nil {
			continue
		}
		if released == nil {
			released = make(map[int]uint32)
		}
		released[obj.ID] = ownerID
	}
	return released
}

// Submit validates a challenge answer for a locked object. A correct
// answer consumes the object and advances its slot; an incorrect answer
// shoots the object away.
type SubmitResult struct {
	Correct  bool
	Slot     int
	Fill     int
	Complete bool
}

func (m *LifecycleManager) Submit(p *gametypes.ParticipantState, objectID int, answerIndex int) (SubmitResult, error) {
	obj, err := m.object(objectID)
	if err != nil {
		return SubmitResult{}, err
	}
	if obj.State != gametypes.ObjectLocked || obj.OwnerID != p.ClientID {
		return SubmitResult{}, fmt.Errorf("object %d is not locked by participant %d", objectID, p.ClientID)
	}

	correct, err := m.provider.ValidateAnswer(obj.ChallengeID, answerIndex)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("failed to validate answer for object %d: %w", objectID, err)
	}

	p.Activity = gametypes.ParticipantIdle
	if !correct {
		m.shootAway(obj)
		return SubmitResult{Correct: false}, nil
	}

	slot := obj.Slot()
	record, ok := m.state.Slots[slot]
	if !ok {
		record = &gametypes.CompletedSlot{Slot: slot}
		m.state.Slots[slot] = record
	}
	if err := record.Advance(p.Name); err != nil {
		return SubmitResult{}, err
	}
	p.ObjectsCompleted++

	obj.State = gametypes.ObjectConsumed
	obj.OwnerID = 0
	obj.ChargeStart = 0
	m.world.RemoveBody(objectBodyID(obj.ID))
	delete(m.state.Objects, obj.ID)

	m.spawner.OnSlotCompleted(slot, obj.Phase())

	return SubmitResult{
		Correct:  true,
		Slot:     slot,
		Fill:     record.Fill,
		Complete: record.Complete(),
	}, nil
}

// Cancel abandons a locked challenge; the object is shot away.
func (m *LifecycleManager) Cancel(p *gametypes.ParticipantState, objectID int) error {
	obj, err := m.object(objectID)
	if err != nil {
		return err
	}
	if obj.State != gametypes.ObjectLocked || obj.OwnerID != p.ClientID {
		return fmt.Errorf("object %d is not locked by participant %d", objectID, p.ClientID)
	}
	p.Activity = gametypes.ParticipantIdle
	m.shootAway(obj)
	return nil
}

// ReleaseOwned frees every object held by a disconnecting participant.
func (m *LifecycleManager) ReleaseOwned(clientID uint32) {
	for _, obj := range m.state.Objects {
		if obj.Held() && obj.OwnerID == clientID {
			m.shootAway(obj)
		}
	}
}

// HoldPose returns the kinematic pose a held object follows: in front of
// its owner at chest height.
func HoldPose(owner *gametypes.ParticipantState) (mgl64.Vec3, mgl64.Quat) {
	forward := owner.Forward()
	position := owner.Position.
		Add(forward.Mul(constants.HoldDistance)).
		Add(mgl64.Vec3{0, 0, constants.HoldHeight})
	return position, owner.Rotation
}

func (m *LifecycleManager) resolveDirection(p *gametypes.ParticipantState, obj *gametypes.AvailableObject, hint *[3]float64) mgl64.Vec3 {
	offset := obj.Position.Sub(p.Position)
	offsetH := mgl64.Vec3{offset.X(), offset.Y(), 0}
	if offsetH.LenSqr() == 0 {
		offsetH = p.Forward()
	}
	offsetH = offsetH.Normalize()

	if hint != nil {
		hintH := mgl64.Vec3{hint[0], hint[1], 0}
		if hintH.LenSqr() > 0 {
			hintH = hintH.Normalize()
			if hintH.Dot(offsetH) > constants.DirectionDotThreshold {
				vertical := mgl64.Clamp(hint[2], -1, 1)
				return mgl64.Vec3{hintH.X(), hintH.Y(), vertical}.Normalize()
			}
		}
	}

	// Offset-derived default with a slight upward arc.
	return mgl64.Vec3{offsetH.X(), offsetH.Y(), 0.35}.Normalize()
}

// release reverts the object to a simulated body and applies the shot
// impulse.
func (m *LifecycleManager) release(obj *gametypes.AvailableObject, direction mgl64.Vec3, strength float64) error {
	obj.State = gametypes.ObjectOnGround
	obj.OwnerID = 0
	obj.ChargeStart = 0
	id := objectBodyID(obj.ID)
	if err := m.world.SetKinematic(id, false); err != nil {
		return err
	}
	return m.world.ApplyImpulse(id, direction, strength/constants.ChargeMaxStrength)
}

// shootAway frees an object with a weak impulse in a random horizontal
// direction.
func (m *LifecycleManager) shootAway(obj *gametypes.AvailableObject) {
	angle := m.rng.Float64() * 2 * math.Pi
	direction := mgl64.Vec3{math.Cos(angle), math.Sin(angle), 0.5}
	if owner := m.state.Participants[obj.OwnerID]; owner != nil {
		owner.Activity = gametypes.ParticipantIdle
	}
	_ = m.release(obj, direction, constants.ChargeMaxStrength*0.1)
}
