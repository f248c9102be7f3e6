package state

import (
	"fmt"
	"sync"

	"github.com/frameball/server/pkg/repositories"
)

type InMemoryStateManager struct {
	lock   sync.RWMutex
	record *repositories.SessionRecord
}

func NewInMemoryStateManager() *InMemoryStateManager {
	return &InMemoryStateManager{}
}

func (m *InMemoryStateManager) Get() (*repositories.SessionRecord, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.record == nil {
		return nil, fmt.Errorf("no session record has been set")
	}
	return copyRecord(m.record), nil
}

func (m *InMemoryStateManager) Set(record *repositories.SessionRecord) error {
	if record == nil {
		return fmt.Errorf("session record is nil")
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record = copyRecord(record)
	return nil
}

func copyRecord(r *repositories.SessionRecord) *repositories.SessionRecord {
	c := repositories.NewSessionRecord(r.SessionID)
	c.Timestamp = r.Timestamp
	for slot, fill := range r.SlotFills {
		c.SlotFills[slot] = fill
	}
	for slot, solvers := range r.SlotSolvers {
		c.SlotSolvers[slot] = append([]string(nil), solvers...)
	}
	for side, score := range r.Scores {
		c.Scores[side] = score
	}
	for name, completed := range r.Roster {
		c.Roster[name] = completed
	}
	return c
}
