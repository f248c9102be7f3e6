package constants

import "time"

// Tick loop.
const (
	TickRate     = 30
	TickInterval = time.Second / TickRate
)

// Arena dimensions. Z is up, the floor sits at z=0.
const (
	ArenaHalfLength = 60.0 // x
	ArenaHalfWidth  = 40.0 // y
	ArenaWallHeight = 12.0
	ArenaWallDepth  = 1.0

	GoalMouthHalfWidth = 6.0
	GoalMouthHeight    = 5.0
	GoalDepth          = 3.0
	GoalPostThickness  = 0.5

	// EmergencyMargin extends the recovery box beyond the arena walls.
	// Entities past it are clamped back; the walls themselves are the
	// primary containment.
	EmergencyMargin = 10.0

	Gravity = -24.0
)

// Participants.
const (
	ParticipantHalfWidth  = 0.5
	ParticipantHalfHeight = 0.9
	ParticipantMass       = 4.0
	ParticipantMaxHealth  = 100
	ParticipantMoveSpeed  = 8.0
	ParticipantTurnRate   = 2.5 // rad/s at full steering

	MeleeRange  = 6.0
	MeleeDamage = 15

	RespawnDelay = 3000 * time.Millisecond
)

// Collectible objects.
const (
	ObjectHalfExtent  = 0.6
	ObjectMass        = 1.0
	ObjectRestitution = 0.55
	ObjectFriction    = 0.08

	// FrameSlotCount is the number of logical slots in the frame. Each
	// slot backs two object identifiers: slot and slot+Phase2IDOffset.
	FrameSlotCount = 50
	Phase2IDOffset = 400

	// InitialGroundObjects is how many phase-1 objects are live at
	// session start; the remainder wait in the unspawned pool.
	InitialGroundObjects = 12

	HoldDistance = 1.6
	HoldHeight   = 1.2
)

// Charging and shooting.
const (
	ChargeMaxDuration = 2000 * time.Millisecond
	ChargeMinStrength = 1.0
	ChargeMaxStrength = 100.0

	// DirectionDotThreshold is the minimum horizontal alignment between a
	// client-supplied shot direction and the participant-to-object offset
	// for the hint to be honored.
	DirectionDotThreshold = 0.25
)

// Combat via thrown objects.
const (
	StrikeCooldown     = 1000 * time.Millisecond
	StrikeMinSpeed     = 20.0
	StrikeMaxSpeed     = 100.0
	StrikeBaseDamage   = 25
	CooldownSweepEvery = 10 * time.Second
)

// Spawn scheduling.
const (
	SpawnDrainPerTick = 2
	SpawnAltitudeMin  = 20.0
	SpawnAltitudeMax  = 28.0
)

// Goal sides.
const (
	GoalSideHome = "home"
	GoalSideAway = "away"

	GoalTriggerHome = "goal_home"
	GoalTriggerAway = "goal_away"
)

// Replication thresholds.
const (
	PositionEpsilon        = 0.01
	RotationEpsilon        = 0.001
	VelocityEpsilon        = 0.05
	AngularVelocityEpsilon = 0.05
)
