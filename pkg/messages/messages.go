package messages

import "encoding/json"

// Message types sent by participants.
const (
	MessageTypeClientJoin        = "join"
	MessageTypeClientMove        = "move"
	MessageTypeClientObjectClick = "object_click"
	MessageTypeClientChargeStart = "object_charge_start"
	MessageTypeClientObjectShoot = "object_shoot"
	MessageTypeClientSubmit      = "object_submit"
	MessageTypeClientCancel      = "object_cancel"
	MessageTypeClientPlace       = "place"
	MessageTypeClientMelee       = "melee_attack"
	MessageTypeClientRespawn     = "respawn"
	MessageTypeClientPing        = "ping"
)

// Message types sent by the session.
const (
	MessageTypeServerWelcome          = "welcome"
	MessageTypeServerJoinRejected     = "join_rejected"
	MessageTypeServerShowChallenge    = "show_challenge"
	MessageTypeServerChallengeSuccess = "challenge_success"
	MessageTypeServerChallengeFailed  = "challenge_failed"
	MessageTypeServerObjectPlaced     = "object_placed"
	MessageTypeServerPlacementFailed  = "placement_failed"
	MessageTypeServerGoalScored       = "goal_scored"
	MessageTypeServerPong             = "pong"
	MessageTypeServerSlotStates       = "slot_states"
	MessageTypeServerSessionUpdate    = "session_update"
	MessageTypeServerJoined           = "participant_joined"
	MessageTypeServerLeft             = "participant_left"
	MessageTypeServerLeaderboard      = "leaderboard"
)

// Message is the wire envelope. ClientID 0 marks a message from the server.
type Message struct {
	ClientID uint32          `json:"clientID"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
}
