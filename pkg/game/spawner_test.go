package game

import (
	"testing"

	"github.com/frameball/server/pkg/game/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnSchedulerDrainsFIFOCapped(t *testing.T) {
	s := NewSpawnScheduler([]int{1, 2, 3, 4, 5})

	require.True(t, s.Enqueue(3))
	require.True(t, s.Enqueue(1))
	require.True(t, s.Enqueue(5))

	assert.Equal(t, []int{3, 1}, s.Drain(), "at most two per tick, in enqueue order")
	assert.Equal(t, []int{5}, s.Drain())
	assert.Nil(t, s.Drain())
}

func TestSpawnSchedulerClaimsFromPool(t *testing.T) {
	s := NewSpawnScheduler([]int{1, 2})

	assert.True(t, s.Enqueue(1))
	assert.False(t, s.Enqueue(1), "already queued")
	assert.False(t, s.Enqueue(99), "not in the pool")
	assert.Equal(t, 1, s.PoolCount())

	s.Drain()
	assert.False(t, s.Enqueue(1), "drained identifiers are not in the pool")
}

func TestSpawnSchedulerEnqueueNextPrefersPhaseOne(t *testing.T) {
	phase2 := 1 + constants.Phase2IDOffset
	s := NewSpawnScheduler([]int{phase2, 7, 3})

	id, ok := s.EnqueueNext()
	require.True(t, ok)
	assert.Equal(t, 3, id)

	id, ok = s.EnqueueNext()
	require.True(t, ok)
	assert.Equal(t, 7, id)

	id, ok = s.EnqueueNext()
	require.True(t, ok)
	assert.Equal(t, phase2, id, "phase-2 identifiers come last")

	_, ok = s.EnqueueNext()
	assert.False(t, ok, "empty pool")
}

func TestSpawnSchedulerOnSlotCompleted(t *testing.T) {
	phase2 := 4 + constants.Phase2IDOffset
	s := NewSpawnScheduler([]int{9, phase2})

	s.OnSlotCompleted(4, 1)
	assert.Equal(t, []int{phase2}, s.Drain(), "phase-1 completion schedules the paired phase-2 id")

	s.OnSlotCompleted(4, 2)
	assert.Equal(t, []int{9}, s.Drain(), "phase-2 completion falls back to the next pool id")

	s.OnSlotCompleted(4, 2)
	assert.Nil(t, s.Drain(), "an empty pool schedules nothing")
}

func TestSpawnSchedulerReturn(t *testing.T) {
	s := NewSpawnScheduler([]int{1})
	s.Enqueue(1)
	s.Drain()

	s.Return(1)
	assert.Equal(t, 1, s.PoolCount())
	assert.True(t, s.Enqueue(1), "returned identifiers can be claimed again")
}
