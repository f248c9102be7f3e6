package game

import (
	"testing"

	"github.com/frameball/server/pkg/game/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptGoalFiresOncePerObjectAndGoal(t *testing.T) {
	r := NewCollisionRouter()

	assert.True(t, r.AcceptGoal(5, constants.GoalTriggerHome))
	assert.False(t, r.AcceptGoal(5, constants.GoalTriggerHome), "duplicate detection path is absorbed")
	assert.True(t, r.HasScored(5, constants.GoalTriggerHome))

	assert.True(t, r.AcceptGoal(5, constants.GoalTriggerAway), "the other goal is independent")
	assert.True(t, r.AcceptGoal(6, constants.GoalTriggerHome), "other objects are independent")
}

func TestAcceptStrike(t *testing.T) {
	tests := []struct {
		name       string
		speed      float64
		wantDamage int
		wantOK     bool
	}{
		{name: "below minimum speed", speed: 19.9, wantOK: false},
		{name: "at minimum speed", speed: 20, wantDamage: 5, wantOK: true},
		{name: "mid speed", speed: 60, wantDamage: 15, wantOK: true},
		{name: "at cap", speed: 100, wantDamage: 25, wantOK: true},
		{name: "above cap is clamped", speed: 500, wantDamage: 25, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCollisionRouter()
			damage, ok := r.AcceptStrike(5, 1, tt.speed, 0)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantDamage, damage)
		})
	}
}

func TestAcceptStrikeCooldown(t *testing.T) {
	r := NewCollisionRouter()

	_, ok := r.AcceptStrike(5, 1, 50, 0)
	require.True(t, ok)

	_, ok = r.AcceptStrike(5, 1, 50, 999)
	assert.False(t, ok, "the pair is on cooldown")

	_, ok = r.AcceptStrike(5, 2, 50, 500)
	assert.True(t, ok, "a different participant is not gated")

	_, ok = r.AcceptStrike(5, 1, 50, 1000)
	assert.True(t, ok, "the cooldown expires")
}

func TestSweepDropsExpiredCooldowns(t *testing.T) {
	r := NewCollisionRouter()
	r.AcceptStrike(5, 1, 50, 0)
	r.AcceptStrike(6, 1, 50, 0)
	require.Equal(t, 2, r.CooldownCount())

	r.Sweep(500)
	assert.Equal(t, 2, r.CooldownCount(), "live cooldowns survive")

	sweepAt := constants.CooldownSweepEvery.Milliseconds() + 500
	r.Sweep(sweepAt)
	assert.Zero(t, r.CooldownCount())
}
