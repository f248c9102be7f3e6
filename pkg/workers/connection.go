package workers

import (
	"context"

	"github.com/frameball/server/pkg/game/types"
	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/network"
	"github.com/frameball/server/pkg/queue"
)

// ConnectionEventWorker translates transport connection events into
// session events and enqueues them for the tick loop.
type ConnectionEventWorker struct {
	clientManager        *network.ClientManager
	connectionEventQueue queue.Queue
}

type NewConnectionEventWorkerOptions struct {
	ClientManager        *network.ClientManager
	ConnectionEventQueue queue.Queue
}

func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	return &ConnectionEventWorker{
		clientManager:        opts.ClientManager,
		connectionEventQueue: opts.ConnectionEventQueue,
	}
}

// Start consumes connection events until the context is canceled.
func (w *ConnectionEventWorker) Start(ctx context.Context) {
	events := w.clientManager.GetConnectionEventChan()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			w.handleEvent(event)
		}
	}
}

func (w *ConnectionEventWorker) handleEvent(event network.ConnectionEvent) {
	var item interface{}
	switch event.Type {
	case network.ConnectionEventTypeConnect:
		item = &types.ConnectParticipantEvent{
			ClientID: event.ClientID,
			Name:     event.Name,
		}
	case network.ConnectionEventTypeDisconnect:
		item = &types.DisconnectParticipantEvent{
			ClientID: event.ClientID,
		}
	default:
		log.Error("Unknown connection event type: %d", event.Type)
		return
	}
	if err := w.connectionEventQueue.Enqueue(item); err != nil {
		log.Error("Failed to enqueue connection event: %v", err)
	}
}
