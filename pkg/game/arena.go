package game

import (
	"math/rand"

	"github.com/frameball/server/pkg/game/constants"
	"github.com/frameball/server/pkg/physics"
	"github.com/go-gl/mathgl/mgl64"
)

// Body identifier layout: participants use their client id directly,
// collectibles are offset into a disjoint range.
const objectBodyBase = 1 << 16

func participantBodyID(clientID uint32) physics.BodyID {
	return physics.BodyID(clientID)
}

func objectBodyID(objectID int) physics.BodyID {
	return physics.BodyID(objectBodyBase + objectID)
}

func bodyIsObject(id physics.BodyID) (int, bool) {
	if id >= objectBodyBase {
		return int(id - objectBodyBase), true
	}
	return 0, false
}

func bodyIsParticipant(id physics.BodyID) (uint32, bool) {
	if id < objectBodyBase {
		return uint32(id), true
	}
	return 0, false
}

// ArenaDef builds the static world: ground plane, boundary walls, two
// corner ramps, and a goal arch with trigger volume at each end of the x
// axis. The home goal sits at -x, the away goal at +x.
func ArenaDef() physics.WorldDef {
	const (
		hl = constants.ArenaHalfLength
		hw = constants.ArenaHalfWidth
		wh = constants.ArenaWallHeight
		wd = constants.ArenaWallDepth
	)

	statics := []physics.StaticBox{
		{
			Name:        "ground",
			Box:         physics.AABB{Min: mgl64.Vec3{-hl - wd, -hw - wd, -2}, Max: mgl64.Vec3{hl + wd, hw + wd, 0}},
			Restitution: 0.3,
		},
		{
			Name:        "wall_north",
			Box:         physics.AABB{Min: mgl64.Vec3{-hl - wd, hw, 0}, Max: mgl64.Vec3{hl + wd, hw + wd, wh}},
			Restitution: 0.6,
		},
		{
			Name:        "wall_south",
			Box:         physics.AABB{Min: mgl64.Vec3{-hl - wd, -hw - wd, 0}, Max: mgl64.Vec3{hl + wd, -hw, wh}},
			Restitution: 0.6,
		},
		{
			Name:        "wall_west",
			Box:         physics.AABB{Min: mgl64.Vec3{-hl - wd, -hw - wd, 0}, Max: mgl64.Vec3{-hl, hw + wd, wh}},
			Restitution: 0.6,
		},
		{
			Name:        "wall_east",
			Box:         physics.AABB{Min: mgl64.Vec3{hl, -hw - wd, 0}, Max: mgl64.Vec3{hl + wd, hw + wd, wh}},
			Restitution: 0.6,
		},
	}

	statics = append(statics, rampSteps("ramp_ne", mgl64.Vec3{hl * 0.5, hw * 0.5, 0})...)
	statics = append(statics, rampSteps("ramp_sw", mgl64.Vec3{-hl * 0.5, -hw * 0.5, 0})...)
	statics = append(statics, goalArch("goal_home_arch", -hl+constants.GoalDepth)...)
	statics = append(statics, goalArch("goal_away_arch", hl-constants.GoalDepth)...)

	triggers := []physics.TriggerVolume{
		{
			Name: constants.GoalTriggerHome,
			Box: physics.AABB{
				Min: mgl64.Vec3{-hl, -constants.GoalMouthHalfWidth, 0},
				Max: mgl64.Vec3{-hl + constants.GoalDepth, constants.GoalMouthHalfWidth, constants.GoalMouthHeight},
			},
		},
		{
			Name: constants.GoalTriggerAway,
			Box: physics.AABB{
				Min: mgl64.Vec3{hl - constants.GoalDepth, -constants.GoalMouthHalfWidth, 0},
				Max: mgl64.Vec3{hl, constants.GoalMouthHalfWidth, constants.GoalMouthHeight},
			},
		},
	}

	return physics.WorldDef{
		Gravity:  mgl64.Vec3{0, 0, constants.Gravity},
		Statics:  statics,
		Triggers: triggers,
	}
}

// rampSteps approximates an inclined ramp as stacked axis-aligned steps.
func rampSteps(name string, base mgl64.Vec3) []physics.StaticBox {
	const (
		steps = 4
		width = 8.0
		run   = 2.5
		rise  = 0.6
	)
	boxes := make([]physics.StaticBox, 0, steps)
	for i := 0; i < steps; i++ {
		x0 := base.X() + float64(i)*run
		boxes = append(boxes, physics.StaticBox{
			Name: name,
			Box: physics.AABB{
				Min: mgl64.Vec3{x0, base.Y(), 0},
				Max: mgl64.Vec3{base.X() + steps*run, base.Y() + width, float64(i+1) * rise},
			},
			Restitution: 0.2,
		})
	}
	return boxes
}

// goalArch builds two posts and a crossbar around a goal mouth at the
// given x plane.
func goalArch(name string, x float64) []physics.StaticBox {
	const t = constants.GoalPostThickness
	hwm := constants.GoalMouthHalfWidth
	h := constants.GoalMouthHeight
	return []physics.StaticBox{
		{
			Name:        name,
			Box:         physics.AABB{Min: mgl64.Vec3{x - t, -hwm - t, 0}, Max: mgl64.Vec3{x + t, -hwm, h + t}},
			Restitution: 0.5,
		},
		{
			Name:        name,
			Box:         physics.AABB{Min: mgl64.Vec3{x - t, hwm, 0}, Max: mgl64.Vec3{x + t, hwm + t, h + t}},
			Restitution: 0.5,
		},
		{
			Name:        name,
			Box:         physics.AABB{Min: mgl64.Vec3{x - t, -hwm - t, h}, Max: mgl64.Vec3{x + t, hwm + t, h + t}},
			Restitution: 0.5,
		},
	}
}

// goalSideForTrigger maps a trigger volume name onto its scoring side.
func goalSideForTrigger(trigger string) (string, bool) {
	switch trigger {
	case constants.GoalTriggerHome:
		return constants.GoalSideHome, true
	case constants.GoalTriggerAway:
		return constants.GoalSideAway, true
	default:
		return "", false
	}
}

// randomGroundPosition picks a spawn point on the floor away from the
// goal mouths.
func randomGroundPosition(rng *rand.Rand, z float64) mgl64.Vec3 {
	x := (rng.Float64()*2 - 1) * (constants.ArenaHalfLength - constants.GoalDepth*4)
	y := (rng.Float64()*2 - 1) * (constants.ArenaHalfWidth - 4)
	return mgl64.Vec3{x, y, z}
}

// randomSkyPosition picks a high-altitude drop point so a spawned object
// falls visibly into the arena.
func randomSkyPosition(rng *rand.Rand) mgl64.Vec3 {
	p := randomGroundPosition(rng, 0)
	z := constants.SpawnAltitudeMin + rng.Float64()*(constants.SpawnAltitudeMax-constants.SpawnAltitudeMin)
	return mgl64.Vec3{p.X(), p.Y(), z}
}
