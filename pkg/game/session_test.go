package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/frameball/server/pkg/challenges"
	"github.com/frameball/server/pkg/game/constants"
	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/messages"
	"github.com/frameball/server/pkg/metrics"
	"github.com/frameball/server/pkg/queue"
	"github.com/frameball/server/pkg/repositories"
	"github.com/frameball/server/pkg/state"
	"github.com/frameball/server/pkg/workers"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository keeps records in memory and counts ranking increments.
type fakeRepository struct {
	mu       sync.Mutex
	records  map[string]*repositories.SessionRecord
	rankings map[string]int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		records:  make(map[string]*repositories.SessionRecord),
		rankings: make(map[string]int),
	}
}

func (r *fakeRepository) Close(ctx context.Context) error { return nil }

func (r *fakeRepository) SaveSessionState(ctx context.Context, record *repositories.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.SessionID] = record
	return nil
}

func (r *fakeRepository) LoadSessionState(ctx context.Context, sessionID string) (*repositories.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[sessionID]
	if !ok {
		return nil, &repositories.ErrNotFound{}
	}
	return record, nil
}

func (r *fakeRepository) IncrementRanking(ctx context.Context, name string, goals int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankings[name] += goals
	return nil
}

func (r *fakeRepository) TopRankings(ctx context.Context, limit int) ([]repositories.RankingEntry, error) {
	return nil, nil
}

func (r *fakeRepository) rankingFor(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rankings[name]
}

// fakeSender records every outbound message.
type fakeSender struct {
	mu           sync.Mutex
	sent         map[uint32][]*messages.Message
	broadcasts   []*messages.Message
	disconnected []uint32
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[uint32][]*messages.Message)}
}

func (s *fakeSender) SendToClient(clientID uint32, msg *messages.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[clientID] = append(s.sent[clientID], msg)
	return nil
}

func (s *fakeSender) Broadcast(msg *messages.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, msg)
}

func (s *fakeSender) DisconnectClient(clientID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, clientID)
}

func (s *fakeSender) sentTypes(clientID uint32) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []string
	for _, msg := range s.sent[clientID] {
		types = append(types, msg.Type)
	}
	return types
}

func (s *fakeSender) broadcastTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []string
	for _, msg := range s.broadcasts {
		types = append(types, msg.Type)
	}
	return types
}

type sessionFixture struct {
	manager    *SessionManager
	repository *fakeRepository
	sender     *fakeSender
	msgQueue   queue.Queue
	connQueue  queue.Queue
	now        time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	repository := newFakeRepository()
	sender := newFakeSender()
	msgQueue := queue.NewInMemoryQueue(256)
	connQueue := queue.NewInMemoryQueue(64)
	saveChan := make(chan workers.SaveSessionRequest, 16)

	manager := NewSessionManager(NewSessionManagerOptions{
		SessionID:            "test",
		Provider:             challenges.NewStaticProvider(1),
		Repository:           repository,
		StateManager:         state.NewInMemoryStateManager(),
		SaveRequestChan:      saveChan,
		ClientMessageQueue:   msgQueue,
		ConnectionEventQueue: connQueue,
		Sender:               sender,
		Metrics:              metrics.New(),
		Seed:                 1,
	})
	require.NoError(t, manager.initialize(context.Background()))
	t.Cleanup(manager.world.Dispose)

	return &sessionFixture{
		manager:    manager,
		repository: repository,
		sender:     sender,
		msgQueue:   msgQueue,
		connQueue:  connQueue,
		now:        time.UnixMilli(1_000_000),
	}
}

func (f *sessionFixture) tick() {
	f.now = f.now.Add(constants.TickInterval)
	f.manager.tick(f.now, constants.TickInterval.Seconds())
}

func (f *sessionFixture) join(t *testing.T, clientID uint32, name string) {
	t.Helper()
	require.NoError(t, f.connQueue.Enqueue(&gametypes.ConnectParticipantEvent{
		ClientID: clientID,
		Name:     name,
	}))
	f.tick()
}

func (f *sessionFixture) send(t *testing.T, clientID uint32, msgType string, payload interface{}) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, f.msgQueue.Enqueue(&messages.Message{
		ClientID: clientID,
		Type:     msgType,
		Payload:  b,
	}))
}

func TestInitializeSpawnsGroundObjects(t *testing.T) {
	f := newSessionFixture(t)

	assert.Len(t, f.manager.state.Objects, constants.InitialGroundObjects)
	for id, obj := range f.manager.state.Objects {
		assert.Less(t, id, constants.Phase2IDOffset, "only phase-1 objects spawn at start")
		assert.Equal(t, gametypes.ObjectOnGround, obj.State)
		_, ok := f.manager.world.Body(objectBodyID(id))
		assert.True(t, ok)
	}
	assert.Equal(t, constants.FrameSlotCount*2-constants.InitialGroundObjects,
		f.manager.spawner.PoolCount())
}

func TestJoinSendsWelcomeWithSnapshot(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")

	require.Contains(t, f.manager.state.Participants, uint32(1))
	types := f.sender.sentTypes(1)
	require.Contains(t, types, messages.MessageTypeServerWelcome)

	var welcome messages.ServerWelcome
	require.NoError(t, json.Unmarshal(f.sender.sent[1][0].Payload, &welcome))
	assert.Equal(t, uint32(1), welcome.ClientID)
	require.NotNil(t, welcome.Snapshot)
	assert.Len(t, welcome.Snapshot.Objects, constants.InitialGroundObjects)
	require.NotNil(t, welcome.Slots)

	assert.Contains(t, f.sender.broadcastTypes(), messages.MessageTypeServerJoined)
}

func TestJoinRejectsDuplicateName(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")
	f.join(t, 2, "ALICE")

	assert.NotContains(t, f.manager.state.Participants, uint32(2),
		"name comparison is case-insensitive")
	assert.Contains(t, f.sender.sentTypes(2), messages.MessageTypeServerJoinRejected)
	assert.Contains(t, f.sender.disconnected, uint32(2))
	assert.NotContains(t, f.sender.sentTypes(2), messages.MessageTypeServerWelcome)
}

func TestDisconnectReleasesObjectsAndRoster(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")
	p := f.manager.state.Participants[1]
	p.ObjectsCompleted = 3

	require.NoError(t, f.connQueue.Enqueue(&gametypes.DisconnectParticipantEvent{ClientID: 1}))
	f.tick()

	assert.NotContains(t, f.manager.state.Participants, uint32(1))
	_, ok := f.manager.world.Body(participantBodyID(1))
	assert.False(t, ok)
	assert.Contains(t, f.sender.broadcastTypes(), messages.MessageTypeServerLeft)

	// A rejoin under the same name restores the completion counter.
	f.join(t, 2, "Alice")
	assert.Equal(t, 3, f.manager.state.Participants[2].ObjectsCompleted)
}

func TestSubmitFlowOverMessages(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")

	var objectID int
	for id := range f.manager.state.Objects {
		objectID = id
		break
	}

	f.send(t, 1, messages.MessageTypeClientObjectClick, &messages.ClientObjectClick{ID: objectID})
	f.tick()
	require.Contains(t, f.sender.sentTypes(1), messages.MessageTypeServerShowChallenge)

	provider := challenges.NewStaticProvider(1)
	f.send(t, 1, messages.MessageTypeClientSubmit, &messages.ClientObjectSubmit{
		ID:          objectID,
		AnswerIndex: provider.CorrectAnswer(objectID + 1),
	})
	f.tick()

	types := f.sender.sentTypes(1)
	assert.Contains(t, types, messages.MessageTypeServerChallengeSuccess)
	broadcasts := f.sender.broadcastTypes()
	assert.Contains(t, broadcasts, messages.MessageTypeServerObjectPlaced)
	assert.Contains(t, broadcasts, messages.MessageTypeServerSlotStates)
	assert.Contains(t, broadcasts, messages.MessageTypeServerLeaderboard)
	assert.NotContains(t, f.manager.state.Objects, objectID)
	assert.Equal(t, 1, f.manager.state.Slots[objectID].Fill)
}

func TestGoalScoringCreditsLastShooter(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")

	var objectID int
	for id := range f.manager.state.Objects {
		objectID = id
		break
	}
	f.manager.lastShooter[objectID] = 1

	f.manager.handleGoal(objectID, constants.GoalTriggerHome)

	assert.Equal(t, 1, f.manager.state.Scores[constants.GoalSideHome])
	assert.Contains(t, f.sender.broadcastTypes(), messages.MessageTypeServerGoalScored)
	assert.NotContains(t, f.manager.state.Objects, objectID, "the scored ball leaves play")
	assert.Equal(t, 1, f.manager.spawner.PendingCount(), "the identifier is recycled")

	require.Eventually(t, func() bool {
		return f.repository.rankingFor("alice") == 1
	}, time.Second, 10*time.Millisecond)

	// The same pair cannot score twice.
	f.manager.handleGoal(objectID, constants.GoalTriggerHome)
	assert.Equal(t, 1, f.manager.state.Scores[constants.GoalSideHome])
}

func TestPingRepliesWithPong(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")

	f.send(t, 1, messages.MessageTypeClientPing, &messages.ClientPing{Timestamp: 42})
	f.tick()

	var pong *messages.Message
	for _, msg := range f.sender.sent[1] {
		if msg.Type == messages.MessageTypeServerPong {
			pong = msg
		}
	}
	require.NotNil(t, pong)
	var payload messages.ServerPong
	require.NoError(t, json.Unmarshal(pong.Payload, &payload))
	assert.Equal(t, int64(42), payload.Timestamp)
}

func TestMoveIntegratesIntoPosition(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")
	p := f.manager.state.Participants[1]

	// Park the participant at the arena center, clear of all geometry.
	_, err := f.manager.world.Teleport(participantBodyID(1), mgl64.Vec3{0, 0, 1}, p.Rotation)
	require.NoError(t, err)
	p.Position = mgl64.Vec3{0, 0, 1}
	p.Yaw = 0
	start := p.Position

	f.send(t, 1, messages.MessageTypeClientMove, &messages.ClientMove{Throttle: 1})
	for i := 0; i < 10; i++ {
		f.tick()
	}
	assert.Greater(t, p.Position.Sub(start).Len(), 1.0, "throttle moves the participant")
}

func TestRespawnAfterDelay(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")
	p := f.manager.state.Participants[1]

	p.Health = 1
	require.True(t, p.TakeDamage(10))
	f.manager.nowMillis = f.now.UnixMilli()
	f.manager.handleDeath(p)
	require.True(t, p.IsDead)
	_, ok := f.manager.world.Body(participantBodyID(1))
	require.False(t, ok, "dead participants have no body")

	deadline := p.RespawnAt
	assert.Equal(t, f.now.UnixMilli()+constants.RespawnDelay.Milliseconds(), deadline)

	f.tick()
	assert.True(t, p.IsDead, "the delay has not elapsed")

	f.now = time.UnixMilli(deadline)
	f.tick()
	assert.False(t, p.IsDead)
	assert.Equal(t, constants.ParticipantMaxHealth, p.Health)
	_, ok = f.manager.world.Body(participantBodyID(1))
	assert.True(t, ok)
}

func TestSessionRecordRoundTrip(t *testing.T) {
	f := newSessionFixture(t)
	f.join(t, 1, "alice")
	p := f.manager.state.Participants[1]
	p.ObjectsCompleted = 4
	f.manager.state.Slots[7] = &gametypes.CompletedSlot{Slot: 7, Fill: 1, Solvers: []string{"alice"}}
	f.manager.state.Scores[constants.GoalSideAway] = 2

	record := f.manager.record()
	require.NoError(t, f.repository.SaveSessionState(context.Background(), record))

	// A fresh session resumed from the record restores the partition.
	resumed := NewSessionManager(NewSessionManagerOptions{
		SessionID:            "test",
		Provider:             challenges.NewStaticProvider(1),
		Repository:           f.repository,
		StateManager:         state.NewInMemoryStateManager(),
		SaveRequestChan:      make(chan workers.SaveSessionRequest, 1),
		ClientMessageQueue:   queue.NewInMemoryQueue(16),
		ConnectionEventQueue: queue.NewInMemoryQueue(16),
		Sender:               newFakeSender(),
		Metrics:              metrics.New(),
		Seed:                 1,
	})
	require.NoError(t, resumed.initialize(context.Background()))
	defer resumed.world.Dispose()

	assert.Equal(t, 1, resumed.state.Slots[7].Fill)
	assert.Equal(t, 2, resumed.state.Scores[constants.GoalSideAway])
	assert.Equal(t, 4, resumed.roster["alice"])
	assert.NotContains(t, resumed.spawner.pool, 7,
		"the consumed phase-1 identifier is out of the pool")
	phase2 := 7 + constants.Phase2IDOffset
	_, livePhase2 := resumed.state.Objects[phase2]
	phase2Pooled := resumed.spawner.pool[phase2]
	assert.True(t, livePhase2 || phase2Pooled || resumed.spawner.queued[phase2],
		"the half-filled slot's phase-2 identifier is accounted for")
}
