package types

import "strings"

// SessionState is the replicated entity state tree of one session. It is
// owned by the session loop; Copy produces detached snapshots for workers.
type SessionState struct {
	// Timestamp is the unix-milli time of the tick that produced this state.
	Timestamp int64
	// Participants maps client IDs to participant states.
	Participants map[uint32]*ParticipantState
	// Objects maps collectible identifiers to the active (replicated) set.
	Objects map[int]*AvailableObject
	// Slots maps slot indexes to their completion records.
	Slots map[int]*CompletedSlot
	// Scores maps goal side names to scores.
	Scores map[string]int
}

func NewSessionState() *SessionState {
	return &SessionState{
		Participants: make(map[uint32]*ParticipantState),
		Objects:      make(map[int]*AvailableObject),
		Slots:        make(map[int]*CompletedSlot),
		Scores:       make(map[string]int),
	}
}

func (s *SessionState) Copy() *SessionState {
	c := NewSessionState()
	c.Timestamp = s.Timestamp
	for id, p := range s.Participants {
		c.Participants[id] = p.Copy()
	}
	for id, o := range s.Objects {
		c.Objects[id] = o.Copy()
	}
	for slot, cs := range s.Slots {
		c.Slots[slot] = cs.Copy()
	}
	for side, score := range s.Scores {
		c.Scores[side] = score
	}
	return c
}

// ParticipantByName returns the participant with the given display name,
// compared case-insensitively.
func (s *SessionState) ParticipantByName(name string) *ParticipantState {
	for _, p := range s.Participants {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}
