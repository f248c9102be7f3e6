package workers

import (
	"context"
	"time"

	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/repositories"
	"github.com/frameball/server/pkg/state"
)

type SaveSessionStateWorker struct {
	repository      repositories.Repository
	saveRequestChan <-chan SaveSessionRequest
	stateManager    state.StateManager
	interval        time.Duration
}

type NewSaveSessionStateWorkerOptions struct {
	Repository      repositories.Repository
	SaveRequestChan <-chan SaveSessionRequest
	StateManager    state.StateManager
	Interval        time.Duration
}

// SaveSessionRequest asks for an immediate save of a session record,
// bypassing the periodic interval. The session loop sends one on events
// that must not be lost, like a participant disconnect.
type SaveSessionRequest struct {
	Timestamp int64
	Record    *repositories.SessionRecord
}

// NewSaveSessionStateWorker creates a worker that persists session
// snapshots: immediately for explicit requests from the session loop, and
// periodically from the state manager.
func NewSaveSessionStateWorker(opts NewSaveSessionStateWorkerOptions) *SaveSessionStateWorker {
	return &SaveSessionStateWorker{
		repository:      opts.Repository,
		saveRequestChan: opts.SaveRequestChan,
		stateManager:    opts.StateManager,
		interval:        opts.Interval,
	}
}

func (w *SaveSessionStateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case saveRequest := <-w.saveRequestChan:
			saveRequest.Record.Timestamp = saveRequest.Timestamp
			w.save(ctx, saveRequest.Record)
		case t := <-ticker.C:
			record, err := w.stateManager.Get()
			if err != nil {
				log.Debug("No session record to save yet: %v", err)
				continue
			}
			record.Timestamp = t.UnixMilli()
			w.save(ctx, record)
		}
	}
}

func (w *SaveSessionStateWorker) save(ctx context.Context, record *repositories.SessionRecord) {
	if err := w.repository.SaveSessionState(ctx, record); err != nil {
		log.Error("Failed to save session state: %v", err)
	}
}
