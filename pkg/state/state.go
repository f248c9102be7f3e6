package state

import (
	"github.com/frameball/server/pkg/repositories"
)

// StateManager provides shared access to the latest persistable session
// snapshot. Implementations must be thread-safe: the session loop writes,
// the save worker reads.
type StateManager interface {
	// Get returns a copy of the most recent session record.
	Get() (*repositories.SessionRecord, error)
	// Set stores a new session record.
	Set(record *repositories.SessionRecord) error
}
