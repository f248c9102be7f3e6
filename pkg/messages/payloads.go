package messages

import "github.com/frameball/server/pkg/challenges"

// Client payloads.

type ClientJoin struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

type ClientMove struct {
	Throttle float64 `json:"throttle"`
	Steering float64 `json:"steering"`
}

type ClientObjectClick struct {
	ID int `json:"id"`
}

type ClientObjectChargeStart struct {
	ID int `json:"id"`
}

// ClientObjectShoot carries an optional direction hint. The hint is
// advisory: magnitude always comes from the server-measured charge.
type ClientObjectShoot struct {
	ID        int         `json:"id"`
	Direction *[3]float64 `json:"direction,omitempty"`
}

type ClientObjectSubmit struct {
	ID          int `json:"id"`
	AnswerIndex int `json:"answerIndex"`
}

type ClientObjectCancel struct {
	ID int `json:"id"`
}

type ClientPlace struct {
	ID   int `json:"id"`
	Slot int `json:"slot"`
}

type ClientMeleeAttack struct {
	TargetID uint32 `json:"targetId"`
}

type ClientRespawn struct{}

type ClientPing struct {
	Timestamp int64 `json:"timestamp"`
}

// Server payloads.

type ServerWelcome struct {
	ClientID uint32            `json:"clientID"`
	Snapshot *SessionUpdate    `json:"snapshot"`
	Slots    *ServerSlotStates `json:"slots"`
}

type ServerJoinRejected struct {
	Reason string `json:"reason"`
}

type ServerShowChallenge struct {
	ID      int                 `json:"id"`
	Payload *challenges.Payload `json:"payload"`
}

type ServerChallengeSuccess struct {
	ID       int  `json:"id"`
	Slot     int  `json:"slot"`
	Complete bool `json:"complete"`
}

type ServerChallengeFailed struct {
	ID int `json:"id"`
}

type ServerObjectPlaced struct {
	ID       int    `json:"id"`
	Slot     int    `json:"slot"`
	SolverID uint32 `json:"solverId"`
	Complete bool   `json:"complete"`
}

type ServerPlacementFailed struct {
	Reason string `json:"reason"`
}

type ServerGoalScored struct {
	Side  string `json:"side"`
	ID    int    `json:"id"`
	Score int    `json:"score"`
}

type ServerPong struct {
	Timestamp int64 `json:"timestamp"`
}

type ServerSlotStates struct {
	HalfFilled []int `json:"halfFilled"`
	Complete   []int `json:"complete"`
}

type ServerParticipantJoined struct {
	ClientID uint32 `json:"clientID"`
	Name     string `json:"name"`
}

type ServerParticipantLeft struct {
	ClientID uint32 `json:"clientID"`
}

type LeaderboardEntry struct {
	Name      string `json:"name"`
	Completed int    `json:"completed"`
}

type ServerLeaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// SessionUpdate is the threshold-filtered replication delta broadcast each
// tick. Entities whose movement stayed inside the epsilons since the last
// broadcast are omitted.
type SessionUpdate struct {
	Timestamp    int64                         `json:"timestamp"`
	Participants map[uint32]*ParticipantUpdate `json:"participants,omitempty"`
	Objects      map[int]*ObjectUpdate         `json:"objects,omitempty"`
	Removed      []int                         `json:"removed,omitempty"`
	Scores       map[string]int                `json:"scores,omitempty"`
}

type ParticipantUpdate struct {
	Name            string      `json:"name,omitempty"`
	Position        *[3]float64 `json:"position,omitempty"`
	Rotation        *[4]float64 `json:"rotation,omitempty"`
	Velocity        *[3]float64 `json:"velocity,omitempty"`
	AngularVelocity *[3]float64 `json:"angularVelocity,omitempty"`
	Yaw             *float64    `json:"yaw,omitempty"`
	Health          *int        `json:"health,omitempty"`
	IsDead          *bool       `json:"isDead,omitempty"`
	Completed       *int        `json:"completed,omitempty"`
}

type ObjectUpdate struct {
	Position        *[3]float64 `json:"position,omitempty"`
	Rotation        *[4]float64 `json:"rotation,omitempty"`
	Velocity        *[3]float64 `json:"velocity,omitempty"`
	AngularVelocity *[3]float64 `json:"angularVelocity,omitempty"`
	State           *uint8      `json:"state,omitempty"`
	OwnerID         *uint32     `json:"ownerId,omitempty"`
	Asleep          *bool       `json:"asleep,omitempty"`
}
