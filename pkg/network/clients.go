package network

import (
	"fmt"
	"strings"
	"sync"

	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/messages"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// ClientIDMaxRetries bounds unique ID generation.
	ClientIDMaxRetries = 1024

	// Inbound message budget per client. Movement at tick rate plus a
	// margin for interaction bursts.
	clientMessageRate  = 60
	clientMessageBurst = 120
)

type ConnectionEventType int

const (
	ConnectionEventTypeConnect ConnectionEventType = iota
	ConnectionEventTypeDisconnect
)

// ConnectionEvent reports a client joining or leaving the transport.
type ConnectionEvent struct {
	Type     ConnectionEventType
	ClientID uint32
	Name     string
}

// Client is one connected websocket participant.
type Client struct {
	ID    uint32
	Name  string
	Token string

	conn      *websocket.Conn
	writeLock sync.Mutex
	limiter   *rate.Limiter
}

// Send serializes and writes a message to the client connection.
func (c *Client) Send(msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Allow applies the per-client inbound rate limit.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// ClientManager tracks connected clients and their session tokens.
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
	nextID      uint32
	eventChan   chan ConnectionEvent
}

func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:   make(map[uint32]*Client),
		nextID:    1,
		eventChan: make(chan ConnectionEvent, 256),
	}
}

// GetConnectionEventChan returns the channel connection events are
// published on.
func (cm *ClientManager) GetConnectionEventChan() <-chan ConnectionEvent {
	return cm.eventChan
}

// ConnectClient admits a new connection under the given display name and
// session token. An empty token is replaced with a fresh one. If another
// client already holds the token, that client is forcibly disconnected
// before the new one is admitted.
func (cm *ClientManager) ConnectClient(conn *websocket.Conn, name string, token string) (*Client, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("display name is empty")
	}
	if token == "" {
		token = uuid.NewString()
	}

	if prior := cm.clientByToken(token); prior != nil {
		log.Info("Session token reused, disconnecting prior holder %d", prior.ID)
		cm.DisconnectClient(prior.ID)
	}

	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a unique ID: %w", err)
	}
	client := &Client{
		ID:      clientID,
		Name:    name,
		Token:   token,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(clientMessageRate), clientMessageBurst),
	}
	cm.clients[clientID] = client

	cm.eventChan <- ConnectionEvent{
		Type:     ConnectionEventTypeConnect,
		ClientID: clientID,
		Name:     name,
	}
	return client, nil
}

func (cm *ClientManager) clientByToken(token string) *Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	for _, client := range cm.clients {
		if client.Token == token {
			return client
		}
	}
	return nil
}

// DisconnectClient closes a client connection and publishes the
// disconnect event.
func (cm *ClientManager) DisconnectClient(clientID uint32) {
	cm.clientsLock.Lock()
	client, ok := cm.clients[clientID]
	if ok {
		delete(cm.clients, clientID)
	}
	cm.clientsLock.Unlock()

	if !ok {
		return
	}
	_ = client.conn.Close()
	cm.eventChan <- ConnectionEvent{
		Type:     ConnectionEventTypeDisconnect,
		ClientID: clientID,
	}
}

// GetClients returns all connected clients.
func (cm *ClientManager) GetClients() []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

// GetClientByID returns a client by id.
func (cm *ClientManager) GetClientByID(clientID uint32) (*Client, bool) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	return client, ok
}

func (cm *ClientManager) Exists(clientID uint32) bool {
	_, ok := cm.GetClientByID(clientID)
	return ok
}

// SendToClient writes a message to one client.
func (cm *ClientManager) SendToClient(clientID uint32, msg *messages.Message) error {
	client, ok := cm.GetClientByID(clientID)
	if !ok {
		return fmt.Errorf("client %d is not connected", clientID)
	}
	return client.Send(msg)
}

// Broadcast writes a message to every connected client. Write failures
// are logged and skipped; the read loop notices dead connections.
func (cm *ClientManager) Broadcast(msg *messages.Message) {
	for _, client := range cm.GetClients() {
		if err := client.Send(msg); err != nil {
			log.Error("Failed to send message to client %d: %v", client.ID, err)
		}
	}
}

// generateUniqueID generates a unique client ID. The caller must hold the
// clients lock.
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := cm.nextID
		cm.nextID++
		if id == 0 {
			// ClientID 0 is reserved for the server.
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}
	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
