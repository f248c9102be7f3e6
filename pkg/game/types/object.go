package types

import (
	"github.com/frameball/server/pkg/game/constants"
	"github.com/go-gl/mathgl/mgl64"
)

// ObjectState is the lifecycle state of a collectible object.
type ObjectState uint8

const (
	ObjectOnGround ObjectState = iota
	ObjectLocked
	ObjectCharging
	ObjectConsumed
)

func (s ObjectState) String() string {
	switch s {
	case ObjectOnGround:
		return "on_ground"
	case ObjectLocked:
		return "locked"
	case ObjectCharging:
		return "charging"
	case ObjectConsumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// AvailableObject is a contested collectible in the active set.
//
// Identifiers are partitioned into two phases per logical slot: ids below
// Phase2IDOffset are phase 1, ids at or above it are phase 2 of slot
// id-Phase2IDOffset. At most one object per identifier is ever live in the
// replicated set; unspawned identifiers sit in the non-replicated pool.
type AvailableObject struct {
	ID int

	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Asleep          bool

	// OwnerID is the holding participant, zero when unowned. Non-zero
	// exactly when State is ObjectLocked or ObjectCharging.
	OwnerID uint32
	State   ObjectState

	// ChallengeID indexes the lazily generated challenge payload, zero
	// until first click.
	ChallengeID int

	// ChargeStart is the unix-milli timestamp charging began, zero when
	// not charging.
	ChargeStart int64
}

func NewAvailableObject(id int, position mgl64.Vec3) *AvailableObject {
	return &AvailableObject{
		ID:       id,
		Position: position,
		Rotation: mgl64.QuatIdent(),
	}
}

// Slot returns the logical frame slot index this object belongs to.
func (o *AvailableObject) Slot() int {
	if o.ID >= constants.Phase2IDOffset {
		return o.ID - constants.Phase2IDOffset
	}
	return o.ID
}

// Phase returns 1 or 2 depending on the identifier range.
func (o *AvailableObject) Phase() int {
	if o.ID >= constants.Phase2IDOffset {
		return 2
	}
	return 1
}

// Held reports whether a participant currently owns the object.
func (o *AvailableObject) Held() bool {
	return o.State == ObjectLocked || o.State == ObjectCharging
}

// Copy returns a value copy safe to hand outside the session loop.
func (o *AvailableObject) Copy() *AvailableObject {
	c := *o
	return &c
}

// SlotIDs returns the phase-1 and phase-2 identifiers for a slot index.
func SlotIDs(slot int) (phase1, phase2 int) {
	return slot, slot + constants.Phase2IDOffset
}
