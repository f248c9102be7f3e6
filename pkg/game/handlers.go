package game

import (
	"encoding/json"
	"fmt"

	"github.com/frameball/server/pkg/game/constants"
	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/messages"
	"github.com/go-gl/mathgl/mgl64"
)

type messageHandler func(clientID uint32, payload json.RawMessage)

// buildHandlers wires each inbound message type to its handler. Handlers
// run on the tick goroutine and may touch session state freely.
func (s *SessionManager) buildHandlers() map[string]messageHandler {
	return map[string]messageHandler{
		messages.MessageTypeClientMove:        s.handleMove,
		messages.MessageTypeClientObjectClick: s.handleObjectClick,
		messages.MessageTypeClientChargeStart: s.handleChargeStart,
		messages.MessageTypeClientObjectShoot: s.handleObjectShoot,
		messages.MessageTypeClientSubmit:      s.handleSubmit,
		messages.MessageTypeClientCancel:      s.handleCancel,
		messages.MessageTypeClientPlace:       s.handlePlace,
		messages.MessageTypeClientMelee:       s.handleMeleeAttack,
		messages.MessageTypeClientRespawn:     s.handleRespawn,
		messages.MessageTypeClientPing:        s.handlePing,
	}
}

// participant resolves the sender, dropping messages from clients that
// never completed a join.
func (s *SessionManager) participant(clientID uint32) (*gametypes.ParticipantState, bool) {
	p, ok := s.state.Participants[clientID]
	if !ok {
		log.Debug("Dropping message from unknown client %d", clientID)
	}
	return p, ok
}

func (s *SessionManager) handleMove(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var move messages.ClientMove
	if err := json.Unmarshal(payload, &move); err != nil {
		log.Warn("Failed to unmarshal move from client %d: %v", clientID, err)
		return
	}
	if p.IsDead {
		return
	}
	p.Throttle = mgl64.Clamp(move.Throttle, -1, 1)
	p.Steering = mgl64.Clamp(move.Steering, -1, 1)
}

func (s *SessionManager) handleObjectClick(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var click messages.ClientObjectClick
	if err := json.Unmarshal(payload, &click); err != nil {
		log.Warn("Failed to unmarshal object click from client %d: %v", clientID, err)
		return
	}
	challenge, err := s.lifecycle.Click(p, click.ID)
	if err != nil {
		log.Trace("Rejected click on object %d by client %d: %v", click.ID, clientID, err)
		return
	}
	s.sendToClient(clientID, messages.MessageTypeServerShowChallenge, &messages.ServerShowChallenge{
		ID:      click.ID,
		Payload: challenge,
	})
}

func (s *SessionManager) handleChargeStart(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var charge messages.ClientObjectChargeStart
	if err := json.Unmarshal(payload, &charge); err != nil {
		log.Warn("Failed to unmarshal charge start from client %d: %v", clientID, err)
		return
	}
	if err := s.lifecycle.ChargeStart(p, charge.ID, s.nowMillis); err != nil {
		log.Trace("Rejected charge on object %d by client %d: %v", charge.ID, clientID, err)
	}
}

func (s *SessionManager) handleObjectShoot(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var shoot messages.ClientObjectShoot
	if err := json.Unmarshal(payload, &shoot); err != nil {
		log.Warn("Failed to unmarshal shoot from client %d: %v", clientID, err)
		return
	}
	strength, err := s.lifecycle.Shoot(p, shoot.ID, shoot.Direction, s.nowMillis)
	if err != nil {
		log.Trace("Rejected shot of object %d by client %d: %v", shoot.ID, clientID, err)
		return
	}
	s.lastShooter[shoot.ID] = clientID
	log.Debug("Object %d shot by participant %d at strength %.1f", shoot.ID, clientID, strength)
}

func (s *SessionManager) handleSubmit(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var submit messages.ClientObjectSubmit
	if err := json.Unmarshal(payload, &submit); err != nil {
		log.Warn("Failed to unmarshal submit from client %d: %v", clientID, err)
		return
	}
	result, err := s.lifecycle.Submit(p, submit.ID, submit.AnswerIndex)
	if err != nil {
		log.Trace("Rejected submit for object %d by client %d: %v", submit.ID, clientID, err)
		return
	}
	if !result.Correct {
		s.sendToClient(clientID, messages.MessageTypeServerChallengeFailed, &messages.ServerChallengeFailed{
			ID: submit.ID,
		})
		return
	}

	s.sendToClient(clientID, messages.MessageTypeServerChallengeSuccess, &messages.ServerChallengeSuccess{
		ID:       submit.ID,
		Slot:     result.Slot,
		Complete: result.Complete,
	})
	s.broadcast(messages.MessageTypeServerObjectPlaced, &messages.ServerObjectPlaced{
		ID:       submit.ID,
		Slot:     result.Slot,
		SolverID: clientID,
		Complete: result.Complete,
	})
	s.broadcast(messages.MessageTypeServerSlotStates, s.slotStates())
	s.roster[rosterKey(p.Name)] = p.ObjectsCompleted
	s.leaderboardDirty = true
	if result.Complete {
		s.metrics.SlotsCompleted.Inc()
	}
	s.requestSave(s.nowMillis)
}

func (s *SessionManager) handleCancel(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var cancel messages.ClientObjectCancel
	if err := json.Unmarshal(payload, &cancel); err != nil {
		log.Warn("Failed to unmarshal cancel from client %d: %v", clientID, err)
		return
	}
	if err := s.lifecycle.Cancel(p, cancel.ID); err != nil {
		log.Trace("Rejected cancel of object %d by client %d: %v", cancel.ID, clientID, err)
	}
}

// handlePlace services the legacy placement message. Placement happens
// server-side on a correct submit, so this only confirms or denies what
// already happened.
func (s *SessionManager) handlePlace(clientID uint32, payload json.RawMessage) {
	if _, ok := s.participant(clientID); !ok {
		return
	}
	var place messages.ClientPlace
	if err := json.Unmarshal(payload, &place); err != nil {
		log.Warn("Failed to unmarshal place from client %d: %v", clientID, err)
		return
	}

	obj := gametypes.AvailableObject{ID: place.ID}
	slot := obj.Slot()
	if place.Slot != slot {
		s.sendToClient(clientID, messages.MessageTypeServerPlacementFailed, &messages.ServerPlacementFailed{
			Reason: fmt.Sprintf("object %d belongs to slot %d, not %d", place.ID, slot, place.Slot),
		})
		return
	}
	cs, ok := s.state.Slots[slot]
	if !ok || !slotPhaseConsumed(cs.Fill, obj.Phase()) {
		s.sendToClient(clientID, messages.MessageTypeServerPlacementFailed, &messages.ServerPlacementFailed{
			Reason: fmt.Sprintf("object %d has not been solved", place.ID),
		})
		return
	}
	s.sendToClient(clientID, messages.MessageTypeServerObjectPlaced, &messages.ServerObjectPlaced{
		ID:       place.ID,
		Slot:     slot,
		SolverID: clientID,
		Complete: cs.Complete(),
	})
}

func slotPhaseConsumed(fill, phase int) bool {
	if phase == 1 {
		return fill >= 1
	}
	return fill >= 2
}

func (s *SessionManager) handleMeleeAttack(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	var melee messages.ClientMeleeAttack
	if err := json.Unmarshal(payload, &melee); err != nil {
		log.Warn("Failed to unmarshal melee attack from client %d: %v", clientID, err)
		return
	}
	if p.IsDead || p.Activity == gametypes.ParticipantSolvingChallenge {
		return
	}
	target, ok := s.state.Participants[melee.TargetID]
	if !ok || target.ClientID == clientID {
		return
	}
	if target.Position.Sub(p.Position).Len() > constants.MeleeRange {
		log.Trace("Melee from %d on %d out of range", clientID, melee.TargetID)
		return
	}
	if !target.TakeDamage(constants.MeleeDamage) {
		return
	}
	log.Debug("Participant %d meleed %d for %d damage", clientID, melee.TargetID, constants.MeleeDamage)
	if target.IsDead {
		s.handleDeath(target)
	}
}

func (s *SessionManager) handleRespawn(clientID uint32, payload json.RawMessage) {
	p, ok := s.participant(clientID)
	if !ok {
		return
	}
	if !p.IsDead || p.RespawnAt == 0 || s.nowMillis < p.RespawnAt {
		return
	}
	s.respawnParticipant(p)
}

func (s *SessionManager) handlePing(clientID uint32, payload json.RawMessage) {
	var ping messages.ClientPing
	if err := json.Unmarshal(payload, &ping); err != nil {
		log.Warn("Failed to unmarshal ping from client %d: %v", clientID, err)
		return
	}
	s.sendToClient(clientID, messages.MessageTypeServerPong, &messages.ServerPong{
		Timestamp: ping.Timestamp,
	})
}
