package types

// ConnectParticipantEvent asks the session loop to admit a participant.
type ConnectParticipantEvent struct {
	ClientID uint32
	Name     string
}

// DisconnectParticipantEvent asks the session loop to remove a participant.
type DisconnectParticipantEvent struct {
	ClientID uint32
}
