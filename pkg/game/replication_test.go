package game

import (
	"testing"

	"github.com/frameball/server/pkg/game/constants"
	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replicationState() *gametypes.SessionState {
	state := gametypes.NewSessionState()
	state.Participants[1] = gametypes.NewParticipantState(1, "alice", mgl64.Vec3{0, 0, 1})
	state.Objects[5] = gametypes.NewAvailableObject(5, mgl64.Vec3{2, 0, 1})
	return state
}

func TestBuildDeltaFirstSightIsComplete(t *testing.T) {
	tracker := newReplicaTracker()
	state := replicationState()

	update := tracker.BuildDelta(state)
	require.Contains(t, update.Participants, uint32(1))
	pu := update.Participants[1]
	assert.Equal(t, "alice", pu.Name)
	require.NotNil(t, pu.Position)
	require.NotNil(t, pu.Health)
	assert.Equal(t, constants.ParticipantMaxHealth, *pu.Health)

	require.Contains(t, update.Objects, 5)
	require.NotNil(t, update.Objects[5].Position)
	require.NotNil(t, update.Objects[5].State)
}

func TestBuildDeltaSuppressesSubEpsilonMovement(t *testing.T) {
	tracker := newReplicaTracker()
	state := replicationState()
	tracker.BuildDelta(state)

	// Below every epsilon: nothing is republished.
	state.Participants[1].Position = state.Participants[1].Position.Add(mgl64.Vec3{0.005, 0, 0})
	update := tracker.BuildDelta(state)
	assert.True(t, updateEmpty(update))

	// Past the position epsilon: only position fields reappear.
	state.Participants[1].Position = state.Participants[1].Position.Add(mgl64.Vec3{0.05, 0, 0})
	update = tracker.BuildDelta(state)
	require.Contains(t, update.Participants, uint32(1))
	pu := update.Participants[1]
	assert.NotNil(t, pu.Position)
	assert.Nil(t, pu.Velocity, "unchanged fields stay omitted")
	assert.Nil(t, pu.Health)
	assert.Empty(t, pu.Name, "the name is only sent on first sight")
}

func TestBuildDeltaSkipsSleepingObjects(t *testing.T) {
	tracker := newReplicaTracker()
	state := replicationState()
	state.Objects[5].Asleep = true
	tracker.BuildDelta(state)

	// Position noise on a sleeping object is not even inspected.
	state.Objects[5].Position = state.Objects[5].Position.Add(mgl64.Vec3{5, 0, 0})
	update := tracker.BuildDelta(state)
	assert.True(t, updateEmpty(update))

	// Waking republishes.
	state.Objects[5].Asleep = false
	update = tracker.BuildDelta(state)
	assert.Contains(t, update.Objects, 5)
}

func TestBuildDeltaEmitsRemovals(t *testing.T) {
	tracker := newReplicaTracker()
	state := replicationState()
	tracker.BuildDelta(state)

	delete(state.Objects, 5)
	update := tracker.BuildDelta(state)
	assert.Equal(t, []int{5}, update.Removed)
	assert.False(t, updateEmpty(update))

	update = tracker.BuildDelta(state)
	assert.True(t, updateEmpty(update), "a removal is only sent once")
}

func TestBuildDeltaEmitsScoreChanges(t *testing.T) {
	tracker := newReplicaTracker()
	state := replicationState()
	tracker.BuildDelta(state)

	state.Scores[constants.GoalSideHome] = 1
	update := tracker.BuildDelta(state)
	assert.Equal(t, map[string]int{constants.GoalSideHome: 1}, update.Scores)

	update = tracker.BuildDelta(state)
	assert.Nil(t, update.Scores, "unchanged scores are omitted")
}

func TestBuildFullSnapshotLeavesBaselineUntouched(t *testing.T) {
	tracker := newReplicaTracker()
	state := replicationState()
	tracker.BuildDelta(state)

	snapshot := buildFullSnapshot(state)
	require.Contains(t, snapshot.Participants, uint32(1))
	assert.Equal(t, "alice", snapshot.Participants[1].Name)
	require.Contains(t, snapshot.Objects, 5)

	// The per-client snapshot did not disturb the broadcast baseline.
	update := tracker.BuildDelta(state)
	assert.True(t, updateEmpty(update))
}

func TestBoundaryGuardClamp(t *testing.T) {
	guard := NewBoundaryGuard()
	m := constants.EmergencyMargin

	inside, escaped := guard.Clamp(mgl64.Vec3{0, 0, 5})
	assert.False(t, escaped)
	assert.Equal(t, mgl64.Vec3{0, 0, 5}, inside)

	edge := mgl64.Vec3{constants.ArenaHalfLength + m, 0, 5}
	_, escaped = guard.Clamp(edge)
	assert.False(t, escaped, "the emergency box boundary is inclusive")

	clamped, escaped := guard.Clamp(mgl64.Vec3{constants.ArenaHalfLength + m + 50, 0, -100})
	assert.True(t, escaped)
	assert.Equal(t, constants.ArenaHalfLength+m, clamped.X())
	assert.Equal(t, -m, clamped.Z())
}

func TestLeaderboardOrdering(t *testing.T) {
	state := gametypes.NewSessionState()
	for i, entry := range []struct {
		name      string
		completed int
	}{
		{"carol", 2},
		{"alice", 5},
		{"bob", 2},
	} {
		p := gametypes.NewParticipantState(uint32(i+1), entry.name, mgl64.Vec3{})
		p.ObjectsCompleted = entry.completed
		state.Participants[p.ClientID] = p
	}

	board := buildLeaderboard(state)
	require.Len(t, board.Entries, 3)
	assert.Equal(t, "alice", board.Entries[0].Name)
	assert.Equal(t, "bob", board.Entries[1].Name, "ties break on name")
	assert.Equal(t, "carol", board.Entries[2].Name)
}
