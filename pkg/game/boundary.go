package game

import (
	"github.com/frameball/server/pkg/game/constants"
	"github.com/frameball/server/pkg/physics"
	"github.com/go-gl/mathgl/mgl64"
)

// BoundaryGuard detects positions that escaped the physics world and
// clamps them back inside an emergency box strictly larger than the arena
// walls. It is a last-resort recovery for tunneling and solver blowups,
// not the primary collision response.
type BoundaryGuard struct {
	box physics.AABB
}

func NewBoundaryGuard() *BoundaryGuard {
	m := constants.EmergencyMargin
	return &BoundaryGuard{
		box: physics.AABB{
			Min: mgl64.Vec3{-constants.ArenaHalfLength - m, -constants.ArenaHalfWidth - m, -m},
			Max: mgl64.Vec3{constants.ArenaHalfLength + m, constants.ArenaHalfWidth + m, constants.ArenaWallHeight + m*3},
		},
	}
}

// Clamp returns the position clamped to the emergency box and whether any
// axis had escaped it.
func (g *BoundaryGuard) Clamp(p mgl64.Vec3) (mgl64.Vec3, bool) {
	clamped := mgl64.Vec3{
		mgl64.Clamp(p.X(), g.box.Min.X(), g.box.Max.X()),
		mgl64.Clamp(p.Y(), g.box.Min.Y(), g.box.Max.Y()),
		mgl64.Clamp(p.Z(), g.box.Min.Z(), g.box.Max.Z()),
	}
	return clamped, clamped != p
}
