package types

import (
	"github.com/frameball/server/pkg/game/constants"
	"github.com/go-gl/mathgl/mgl64"
)

// ParticipantActivity is the session-scoped activity of a participant.
type ParticipantActivity uint8

const (
	ParticipantIdle ParticipantActivity = iota
	// ParticipantSolvingChallenge marks a participant as viewing a locked
	// object's challenge. Solving participants are immune to damage.
	ParticipantSolvingChallenge
)

// ParticipantState is the authoritative state of one connected participant.
// It is owned exclusively by the session loop.
type ParticipantState struct {
	ClientID uint32
	Name     string

	Position mgl64.Vec3
	Yaw      float64
	Rotation mgl64.Quat
	Throttle float64
	Steering float64

	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3

	Health           int
	IsDead           bool
	ObjectsCompleted int
	Activity         ParticipantActivity

	// RespawnAt is the unix-milli deadline for automatic respawn while
	// dead; zero otherwise.
	RespawnAt int64
}

func NewParticipantState(clientID uint32, name string, position mgl64.Vec3) *ParticipantState {
	return &ParticipantState{
		ClientID: clientID,
		Name:     name,
		Position: position,
		Rotation: mgl64.QuatIdent(),
		Health:   constants.ParticipantMaxHealth,
	}
}

// Forward returns the horizontal facing direction derived from yaw.
func (p *ParticipantState) Forward() mgl64.Vec3 {
	return mgl64.QuatRotate(p.Yaw, mgl64.Vec3{0, 0, 1}).Rotate(mgl64.Vec3{1, 0, 0})
}

// TakeDamage subtracts health and flips the dead flag at zero. Solving
// participants are immune. It returns true when the hit was applied.
func (p *ParticipantState) TakeDamage(damage int) bool {
	if p.IsDead || p.Activity == ParticipantSolvingChallenge {
		return false
	}
	p.Health -= damage
	if p.Health <= 0 {
		p.Health = 0
		p.IsDead = true
	}
	return true
}

// Copy returns a value copy safe to hand outside the session loop.
func (p *ParticipantState) Copy() *ParticipantState {
	c := *p
	return &c
}
