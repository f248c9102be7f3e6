package game

import (
	"sort"

	gametypes "github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/messages"
)

// buildLeaderboard derives the session leaderboard from the roster. It is
// recomputed whenever the roster or a completion counter changes, never
// stored.
func buildLeaderboard(state *gametypes.SessionState) *messages.ServerLeaderboard {
	entries := make([]messages.LeaderboardEntry, 0, len(state.Participants))
	for _, p := range state.Participants {
		entries = append(entries, messages.LeaderboardEntry{
			Name:      p.Name,
			Completed: p.ObjectsCompleted,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Completed != entries[j].Completed {
			return entries[i].Completed > entries[j].Completed
		}
		return entries[i].Name < entries[j].Name
	})
	return &messages.ServerLeaderboard{Entries: entries}
}
