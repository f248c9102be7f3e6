package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/frameball/server/pkg/challenges"
	"github.com/frameball/server/pkg/game/constants"
	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/messages"
	"github.com/frameball/server/pkg/metrics"
	"github.com/frameball/server/pkg/physics"
	"github.com/frameball/server/pkg/queue"
	"github.com/frameball/server/pkg/repositories"
	"github.com/frameball/server/pkg/state"
	"github.com/frameball/server/pkg/workers"
	"github.com/go-gl/mathgl/mgl64"
)

// rosterKey normalizes a display name for the roster map, matching the
// case-insensitive name comparison at join.
func rosterKey(name string) string {
	return strings.ToLower(name)
}

// MessageSender is the outbound side of the transport, implemented by the
// network client manager.
type MessageSender interface {
	SendToClient(clientID uint32, msg *messages.Message) error
	Broadcast(msg *messages.Message)
	DisconnectClient(clientID uint32)
}

// SessionManager owns one session: the physics world, the replicated
// state tree, and the tick loop that advances both. All state access
// happens on the loop goroutine; the queues are the only way in and the
// sender the only way out.
type SessionManager struct {
	sessionID string

	world     *physics.World
	state     *gametypes.SessionState
	lifecycle *LifecycleManager
	router    *CollisionRouter
	spawner   *SpawnScheduler
	boundary  *BoundaryGuard
	tracker   *replicaTracker

	provider        challenges.Provider
	repository      repositories.Repository
	stateManager    state.StateManager
	saveRequestChan chan<- workers.SaveSessionRequest

	clientMessageQueue   queue.Queue
	connectionEventQueue queue.Queue
	sender               MessageSender
	metrics              *metrics.Metrics

	rng      *rand.Rand
	handlers map[string]messageHandler

	// nowMillis is the timestamp of the tick in progress.
	nowMillis int64

	// lastShooter credits goals to the participant who last launched the
	// object. Entries survive the shooter disconnecting.
	lastShooter map[int]uint32

	// roster carries objects-completed counters across reconnects, keyed
	// by lowercased display name.
	roster map[string]int

	leaderboardDirty bool
	droppedEvents    uint64
}

type NewSessionManagerOptions struct {
	SessionID            string
	Provider             challenges.Provider
	Repository           repositories.Repository
	StateManager         state.StateManager
	SaveRequestChan      chan<- workers.SaveSessionRequest
	ClientMessageQueue   queue.Queue
	ConnectionEventQueue queue.Queue
	Sender               MessageSender
	Metrics              *metrics.Metrics
	Seed                 int64
}

func NewSessionManager(opts NewSessionManagerOptions) *SessionManager {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sm := &SessionManager{
		sessionID:            opts.SessionID,
		state:                gametypes.NewSessionState(),
		provider:             opts.Provider,
		repository:           opts.Repository,
		stateManager:         opts.StateManager,
		saveRequestChan:      opts.SaveRequestChan,
		clientMessageQueue:   opts.ClientMessageQueue,
		connectionEventQueue: opts.ConnectionEventQueue,
		sender:               opts.Sender,
		metrics:              opts.Metrics,
		rng:                  rand.New(rand.NewSource(seed)),
		lastShooter:          make(map[int]uint32),
		roster:               make(map[string]int),
	}
	sm.handlers = sm.buildHandlers()
	return sm
}

// Start initializes the session and runs the tick loop until the context
// is canceled.
func (s *SessionManager) Start(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}
	defer s.world.Dispose()

	ticker := time.NewTicker(constants.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.requestSave(time.Now().UnixMilli())
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.tick(now, dt)
		}
	}
}

func (s *SessionManager) initialize(ctx context.Context) error {
	world, err := physics.NewWorld(ArenaDef())
	if err != nil {
		return fmt.Errorf("failed to create physics world: %w", err)
	}
	s.world = world
	s.router = NewCollisionRouter()
	s.boundary = NewBoundaryGuard()
	s.tracker = newReplicaTracker()

	record, err := s.repository.LoadSessionState(ctx, s.sessionID)
	if err != nil {
		if !repositories.IsNotFound(err) {
			return fmt.Errorf("failed to load session state: %w", err)
		}
		record = repositories.NewSessionRecord(s.sessionID)
		log.Info("Starting session %s from scratch", s.sessionID)
	} else {
		log.Info("Resuming session %s from saved state", s.sessionID)
	}
	s.restore(record)

	s.spawner = NewSpawnScheduler(s.unspawnedPool())
	s.lifecycle = NewLifecycleManager(s.state, s.world, s.provider, s.spawner, s.rng)

	// Slots stuck between phases resume with their phase-2 object live.
	for slot, cs := range s.state.Slots {
		if cs.Fill == 1 {
			_, phase2 := gametypes.SlotIDs(slot)
			s.spawner.Enqueue(phase2)
		}
	}
	for s.spawner.PendingCount() < constants.InitialGroundObjects {
		if _, ok := s.spawner.EnqueueNext(); !ok {
			break
		}
	}
	for {
		ids := s.spawner.Drain()
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			s.spawnObject(id, randomGroundPosition(s.rng, constants.ObjectHalfExtent))
		}
	}
	log.Info("Session %s initialized with %d objects live, %d pooled",
		s.sessionID, len(s.state.Objects), s.spawner.PoolCount())
	return nil
}

// restore rebuilds slot, score, and roster state from a saved record.
func (s *SessionManager) restore(record *repositories.SessionRecord) {
	for slot, fill := range record.SlotFills {
		s.state.Slots[slot] = &gametypes.CompletedSlot{
			Slot:    slot,
			Fill:    fill,
			Solvers: append([]string(nil), record.SlotSolvers[slot]...),
		}
	}
	for side, score := range record.Scores {
		s.state.Scores[side] = score
	}
	for name, completed := range record.Roster {
		s.roster[rosterKey(name)] = completed
	}
}

// unspawnedPool derives the spawnable identifier pool from slot progress:
// a fill of one consumes the slot's phase-1 identifier, a fill of two
// consumes both.
func (s *SessionManager) unspawnedPool() []int {
	var ids []int
	for slot := 1; slot <= constants.FrameSlotCount; slot++ {
		phase1, phase2 := gametypes.SlotIDs(slot)
		fill := 0
		if cs, ok := s.state.Slots[slot]; ok {
			fill = cs.Fill
		}
		if fill < 1 {
			ids = append(ids, phase1)
		}
		if fill < 2 {
			ids = append(ids, phase2)
		}
	}
	return ids
}

func (s *SessionManager) tick(now time.Time, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in tick: %v", r)
		}
	}()
	started := time.Now()
	s.nowMillis = now.UnixMilli()

	s.processConnectionEvents()
	s.processClientMessages()
	s.processTimers()
	s.processSpawns()
	s.applyInputs(dt)
	s.world.Step(dt)
	s.readbackBodies()
	s.followHeldObjects()
	s.processPhysicsEvents()
	s.replicate()
	s.sweepBoundary()

	s.metrics.TickDuration.Observe(time.Since(started).Seconds())
	if dropped := s.world.DroppedEvents(); dropped > s.droppedEvents {
		s.metrics.EventsDropped.Add(float64(dropped - s.droppedEvents))
		s.droppedEvents = dropped
	}
}

func (s *SessionManager) processConnectionEvents() {
	events, err := s.connectionEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read connection events: %v", err)
		return
	}
	for _, item := range events {
		switch event := item.(type) {
		case *gametypes.ConnectParticipantEvent:
			s.connectParticipant(event)
		case *gametypes.DisconnectParticipantEvent:
			s.disconnectParticipant(event)
		default:
			log.Error("Unknown connection event type: %T", item)
		}
	}
}

func (s *SessionManager) connectParticipant(event *gametypes.ConnectParticipantEvent) {
	if existing := s.state.ParticipantByName(event.Name); existing != nil {
		log.Warn("Rejecting client %d: name %q is in use by client %d",
			event.ClientID, event.Name, existing.ClientID)
		s.sendToClient(event.ClientID, messages.MessageTypeServerJoinRejected, &messages.ServerJoinRejected{
			Reason: fmt.Sprintf("the name %q is already in use", event.Name),
		})
		s.sender.DisconnectClient(event.ClientID)
		return
	}

	position := randomGroundPosition(s.rng, constants.ParticipantHalfHeight)
	p := gametypes.NewParticipantState(event.ClientID, event.Name, position)
	p.ObjectsCompleted = s.roster[rosterKey(event.Name)]
	if err := s.createParticipantBody(p); err != nil {
		log.Error("Failed to create body for client %d: %v", event.ClientID, err)
		s.sender.DisconnectClient(event.ClientID)
		return
	}
	s.state.Participants[event.ClientID] = p

	s.sendToClient(event.ClientID, messages.MessageTypeServerWelcome, &messages.ServerWelcome{
		ClientID: event.ClientID,
		Snapshot: buildFullSnapshot(s.state),
		Slots:    s.slotStates(),
	})
	s.broadcast(messages.MessageTypeServerJoined, &messages.ServerParticipantJoined{
		ClientID: event.ClientID,
		Name:     event.Name,
	})
	s.metrics.Participants.Set(float64(len(s.state.Participants)))
	s.leaderboardDirty = true
	log.Info("Participant %d (%s) joined", event.ClientID, event.Name)
}

func (s *SessionManager) disconnectParticipant(event *gametypes.DisconnectParticipantEvent) {
	p, ok := s.state.Participants[event.ClientID]
	if !ok {
		return
	}
	s.lifecycle.ReleaseOwned(event.ClientID)
	s.world.RemoveBody(participantBodyID(event.ClientID))
	s.roster[rosterKey(p.Name)] = p.ObjectsCompleted
	delete(s.state.Participants, event.ClientID)

	s.broadcast(messages.MessageTypeServerLeft, &messages.ServerParticipantLeft{
		ClientID: event.ClientID,
	})
	s.metrics.Participants.Set(float64(len(s.state.Participants)))
	s.leaderboardDirty = true
	s.requestSave(s.nowMillis)
	log.Info("Participant %d (%s) left", event.ClientID, p.Name)
}

func (s *SessionManager) processClientMessages() {
	items, err := s.clientMessageQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read client messages: %v", err)
		return
	}
	for _, item := range items {
		msg, ok := item.(*messages.Message)
		if !ok {
			log.Error("Unexpected message type in queue: %T", item)
			continue
		}
		handler, ok := s.handlers[msg.Type]
		if !ok {
			log.Warn("No handler for message type %s from client %d", msg.Type, msg.ClientID)
			continue
		}
		s.metrics.MessagesProcessed.Inc()
		handler(msg.ClientID, msg.Payload)
	}
}

func (s *SessionManager) processTimers() {
	for id, owner := range s.lifecycle.AutoRelease(s.nowMillis) {
		s.lastShooter[id] = owner
		log.Debug("Object %d auto-released at full charge for participant %d", id, owner)
	}
	for _, p := range s.state.Participants {
		if p.IsDead && p.RespawnAt > 0 && s.nowMillis >= p.RespawnAt {
			s.respawnParticipant(p)
		}
	}
	s.router.Sweep(s.nowMillis)
}

func (s *SessionManager) processSpawns() {
	for _, id := range s.spawner.Drain() {
		s.spawnObject(id, randomSkyPosition(s.rng))
	}
}

func (s *SessionManager) spawnObject(id int, position mgl64.Vec3) {
	obj := gametypes.NewAvailableObject(id, position)
	_, err := s.world.CreateBody(objectBodyID(id), position, obj.Rotation, physics.NewBodyOptions{
		HalfExtents: mgl64.Vec3{constants.ObjectHalfExtent, constants.ObjectHalfExtent, constants.ObjectHalfExtent},
		Mass:        constants.ObjectMass,
		Restitution: constants.ObjectRestitution,
		Friction:    constants.ObjectFriction,
	})
	if err != nil {
		log.Error("Failed to create body for object %d: %v", id, err)
		s.spawner.Return(id)
		return
	}
	s.state.Objects[id] = obj
}

func (s *SessionManager) createParticipantBody(p *gametypes.ParticipantState) error {
	_, err := s.world.CreateBody(participantBodyID(p.ClientID), p.Position, p.Rotation, physics.NewBodyOptions{
		HalfExtents: mgl64.Vec3{constants.ParticipantHalfWidth, constants.ParticipantHalfWidth, constants.ParticipantHalfHeight},
		Mass:        constants.ParticipantMass,
	})
	return err
}

// applyInputs integrates steering into yaw and drives the horizontal
// velocity from throttle. Vertical velocity is left to gravity.
func (s *SessionManager) applyInputs(dt float64) {
	for _, p := range s.state.Participants {
		if p.IsDead {
			continue
		}
		body, ok := s.world.Body(participantBodyID(p.ClientID))
		if !ok {
			continue
		}
		p.Yaw += p.Steering * constants.ParticipantTurnRate * dt
		p.Rotation = mgl64.QuatRotate(p.Yaw, mgl64.Vec3{0, 0, 1})
		body.Rotation = p.Rotation

		horizontal := p.Forward().Mul(p.Throttle * constants.ParticipantMoveSpeed)
		body.Velocity = mgl64.Vec3{horizontal.X(), horizontal.Y(), body.Velocity.Z()}
		if p.Throttle != 0 || p.Steering != 0 {
			body.Wake()
		}
	}
}

// readbackBodies copies post-step body poses into the replicated state.
func (s *SessionManager) readbackBodies() {
	for _, p := range s.state.Participants {
		body, ok := s.world.Body(participantBodyID(p.ClientID))
		if !ok {
			continue
		}
		p.Position = body.Position
		p.Velocity = body.Velocity
		p.AngularVelocity = body.AngularVelocity
	}
	for _, obj := range s.state.Objects {
		if obj.Held() {
			continue
		}
		body, ok := s.world.Body(objectBodyID(obj.ID))
		if !ok {
			continue
		}
		obj.Position = body.Position
		obj.Rotation = body.Rotation
		obj.Velocity = body.Velocity
		obj.AngularVelocity = body.AngularVelocity
		obj.Asleep = body.Asleep
	}
}

// followHeldObjects moves each held object's kinematic body to its hold
// pose. Kinematic bodies never produce trigger enter events, so carried
// objects are checked against the goal volumes explicitly.
func (s *SessionManager) followHeldObjects() {
	for _, obj := range s.state.Objects {
		if !obj.Held() {
			continue
		}
		owner, ok := s.state.Participants[obj.OwnerID]
		if !ok {
			continue
		}
		position, rotation := HoldPose(owner)
		if err := s.world.MoveKinematic(objectBodyID(obj.ID), position, rotation); err != nil {
			log.Warn("Failed to move held object %d: %v", obj.ID, err)
			continue
		}
		obj.Position = position
		obj.Rotation = rotation
		obj.Velocity = mgl64.Vec3{}
		obj.AngularVelocity = mgl64.Vec3{}
		obj.Asleep = false

		for _, trigger := range []string{constants.GoalTriggerHome, constants.GoalTriggerAway} {
			if s.world.TriggerContains(trigger, objectBodyID(obj.ID)) {
				s.handleGoal(obj.ID, trigger)
				break
			}
		}
	}
}

func (s *SessionManager) processPhysicsEvents() {
	for _, event := range s.world.DrainEvents() {
		switch event.Type {
		case physics.EventTypeContact:
			s.handleContact(event)
		case physics.EventTypeTriggerEnter:
			if objectID, ok := bodyIsObject(event.Body); ok {
				s.handleGoal(objectID, event.Trigger)
			}
		}
	}
}

func (s *SessionManager) handleContact(event physics.Event) {
	objectID, clientID, ok := contactPair(event)
	if !ok {
		return
	}
	obj, exists := s.state.Objects[objectID]
	if !exists || obj.Held() {
		return
	}
	p, exists := s.state.Participants[clientID]
	if !exists {
		return
	}
	damage, ok := s.router.AcceptStrike(objectID, clientID, event.Speed, s.nowMillis)
	if !ok {
		return
	}
	if !p.TakeDamage(damage) {
		return
	}
	log.Debug("Object %d struck participant %d for %d damage at speed %.1f",
		objectID, clientID, damage, event.Speed)
	if p.IsDead {
		s.handleDeath(p)
	}
}

// contactPair extracts the object and participant sides of a contact, in
// either order.
func contactPair(event physics.Event) (objectID int, clientID uint32, ok bool) {
	if objectID, isObj := bodyIsObject(event.BodyA); isObj {
		if clientID, isPart := bodyIsParticipant(event.BodyB); isPart {
			return objectID, clientID, true
		}
	}
	if objectID, isObj := bodyIsObject(event.BodyB); isObj {
		if clientID, isPart := bodyIsParticipant(event.BodyA); isPart {
			return objectID, clientID, true
		}
	}
	return 0, 0, false
}

func (s *SessionManager) handleDeath(p *gametypes.ParticipantState) {
	s.lifecycle.ReleaseOwned(p.ClientID)
	s.world.RemoveBody(participantBodyID(p.ClientID))
	p.Velocity = mgl64.Vec3{}
	p.Throttle = 0
	p.RespawnAt = s.nowMillis + constants.RespawnDelay.Milliseconds()
	log.Info("Participant %d (%s) died, respawning at %d", p.ClientID, p.Name, p.RespawnAt)
}

func (s *SessionManager) respawnParticipant(p *gametypes.ParticipantState) {
	p.Position = randomGroundPosition(s.rng, constants.ParticipantHalfHeight)
	p.Health = constants.ParticipantMaxHealth
	p.IsDead = false
	p.RespawnAt = 0
	p.Velocity = mgl64.Vec3{}
	if err := s.createParticipantBody(p); err != nil {
		log.Error("Failed to respawn participant %d: %v", p.ClientID, err)
		return
	}
	log.Info("Participant %d (%s) respawned", p.ClientID, p.Name)
}

// handleGoal scores a goal once per object and goal volume, credits the
// last shooter's ranking, and recycles the object through the spawner.
func (s *SessionManager) handleGoal(objectID int, trigger string) {
	side, ok := goalSideForTrigger(trigger)
	if !ok {
		return
	}
	if !s.router.AcceptGoal(objectID, trigger) {
		return
	}
	obj, exists := s.state.Objects[objectID]
	if !exists {
		return
	}
	if obj.Held() {
		if owner, ok := s.state.Participants[obj.OwnerID]; ok {
			owner.Activity = gametypes.ParticipantIdle
		}
	}

	s.state.Scores[side]++
	score := s.state.Scores[side]
	s.metrics.GoalsScored.WithLabelValues(side).Inc()
	s.broadcast(messages.MessageTypeServerGoalScored, &messages.ServerGoalScored{
		Side:  side,
		ID:    objectID,
		Score: score,
	})
	log.Info("Goal for %s side by object %d, score %d", side, objectID, score)

	if shooter, ok := s.lastShooter[objectID]; ok {
		delete(s.lastShooter, objectID)
		if p, connected := s.state.Participants[shooter]; connected {
			name := p.Name
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.repository.IncrementRanking(ctx, name, 1); err != nil {
					log.Error("Failed to increment ranking for %s: %v", name, err)
				}
			}()
		}
	}

	s.world.RemoveBody(objectBodyID(objectID))
	delete(s.state.Objects, objectID)
	s.spawner.Return(objectID)
	s.spawner.Enqueue(objectID)
}

func (s *SessionManager) replicate() {
	s.state.Timestamp = s.nowMillis
	delta := s.tracker.BuildDelta(s.state)
	if !updateEmpty(delta) {
		s.broadcast(messages.MessageTypeServerSessionUpdate, delta)
	}
	if err := s.stateManager.Set(s.record()); err != nil {
		log.Error("Failed to update state manager: %v", err)
	}
	if s.leaderboardDirty {
		s.leaderboardDirty = false
		s.broadcast(messages.MessageTypeServerLeaderboard, buildLeaderboard(s.state))
	}
}

// sweepBoundary clamps any body that escaped the emergency box back
// inside it. Teleporting recreates the body with zeroed velocity.
func (s *SessionManager) sweepBoundary() {
	for _, p := range s.state.Participants {
		if p.IsDead {
			continue
		}
		if clamped, escaped := s.boundary.Clamp(p.Position); escaped {
			log.Warn("Participant %d escaped the arena at %v, recovering", p.ClientID, p.Position)
			if _, err := s.world.Teleport(participantBodyID(p.ClientID), clamped, p.Rotation); err != nil {
				log.Error("Failed to recover participant %d: %v", p.ClientID, err)
				continue
			}
			p.Position = clamped
			p.Velocity = mgl64.Vec3{}
		}
	}
	for _, obj := range s.state.Objects {
		if obj.Held() {
			continue
		}
		if clamped, escaped := s.boundary.Clamp(obj.Position); escaped {
			log.Warn("Object %d escaped the arena at %v, recovering", obj.ID, obj.Position)
			if _, err := s.world.Teleport(objectBodyID(obj.ID), clamped, obj.Rotation); err != nil {
				log.Error("Failed to recover object %d: %v", obj.ID, err)
				continue
			}
			obj.Position = clamped
			obj.Velocity = mgl64.Vec3{}
			obj.AngularVelocity = mgl64.Vec3{}
		}
	}
}

// record builds the persistable snapshot of slot progress, scores, and
// roster counters.
func (s *SessionManager) record() *repositories.SessionRecord {
	record := repositories.NewSessionRecord(s.sessionID)
	record.Timestamp = s.nowMillis
	for slot, cs := range s.state.Slots {
		record.SlotFills[slot] = cs.Fill
		record.SlotSolvers[slot] = append([]string(nil), cs.Solvers...)
	}
	for side, score := range s.state.Scores {
		record.Scores[side] = score
	}
	for name, completed := range s.roster {
		record.Roster[name] = completed
	}
	for _, p := range s.state.Participants {
		record.Roster[rosterKey(p.Name)] = p.ObjectsCompleted
	}
	return record
}

func (s *SessionManager) requestSave(timestamp int64) {
	select {
	case s.saveRequestChan <- workers.SaveSessionRequest{Timestamp: timestamp, Record: s.record()}:
	default:
		log.Warn("Save request channel is full, dropping save request")
	}
}

func (s *SessionManager) slotStates() *messages.ServerSlotStates {
	states := &messages.ServerSlotStates{}
	for slot, cs := range s.state.Slots {
		switch cs.Fill {
		case 1:
			states.HalfFilled = append(states.HalfFilled, slot)
		case 2:
			states.Complete = append(states.Complete, slot)
		}
	}
	sort.Ints(states.HalfFilled)
	sort.Ints(states.Complete)
	return states
}

func (s *SessionManager) sendToClient(clientID uint32, msgType string, payload interface{}) {
	msg, err := messages.NewServerMessage(msgType, payload)
	if err != nil {
		log.Error("Failed to build %s message: %v", msgType, err)
		return
	}
	if err := s.sender.SendToClient(clientID, msg); err != nil {
		log.Debug("Failed to send %s to client %d: %v", msgType, clientID, err)
	}
}

func (s *SessionManager) broadcast(msgType string, payload interface{}) {
	msg, err := messages.NewServerMessage(msgType, payload)
	if err != nil {
		log.Error("Failed to build %s message: %v", msgType, err)
		return
	}
	s.sender.Broadcast(msg)
}
