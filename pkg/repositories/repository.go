package repositories

import "context"

// SessionRecord is the persisted shape of a session: slot fill counts and
// solver names, goal scores per side, and the roster completion counters.
type SessionRecord struct {
	SessionID   string
	Timestamp   int64
	SlotFills   map[int]int
	SlotSolvers map[int][]string
	Scores      map[string]int
	Roster      map[string]int
}

func NewSessionRecord(sessionID string) *SessionRecord {
	return &SessionRecord{
		SessionID:   sessionID,
		SlotFills:   make(map[int]int),
		SlotSolvers: make(map[int][]string),
		Scores:      make(map[string]int),
		Roster:      make(map[string]int),
	}
}

// RankingEntry is one row of the all-time goals ranking.
type RankingEntry struct {
	Name  string
	Goals int
}

type Repository interface {
	Close(ctx context.Context) error
	SaveSessionState(ctx context.Context, record *SessionRecord) error
	LoadSessionState(ctx context.Context, sessionID string) (*SessionRecord, error)
	IncrementRanking(ctx context.Context, name string, goals int) error
	TopRankings(ctx context.Context, limit int) ([]RankingEntry, error)
}
