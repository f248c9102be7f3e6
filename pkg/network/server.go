package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/messages"
	"github.com/frameball/server/pkg/queue"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for outgoing control frames.
	writeWait = 10 * time.Second
	// pongWait is how long the read loop tolerates a silent peer.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// joinWait bounds how long a fresh connection may sit without
	// sending its join message.
	joinWait = 10 * time.Second

	maxMessageSize = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSServer accepts websocket connections and feeds inbound client
// messages into the session message queue.
type WSServer struct {
	port          int
	clientManager *ClientManager
	messageQueue  queue.Queue
	httpServer    *http.Server
}

type NewWSServerOptions struct {
	Port          int
	ClientManager *ClientManager
	MessageQueue  queue.Queue
}

func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port:          opts.Port,
		clientManager: opts.ClientManager,
		messageQueue:  opts.MessageQueue,
	}
}

// Start runs the websocket listener until the context is canceled.
func (s *WSServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleConnection)
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("WebSocket server listening on port %d", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("websocket server failed: %w", err)
	}
}

func (s *WSServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade connection: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client, err := s.awaitJoin(conn)
	if err != nil {
		log.Warn("Rejecting connection from %s: %v", r.RemoteAddr, err)
		_ = conn.Close()
		return
	}
	log.Info("Client %d (%s) connected from %s", client.ID, client.Name, r.RemoteAddr)

	done := make(chan struct{})
	go s.keepalive(conn, done)
	s.readLoop(client, conn, done)
}

// awaitJoin reads the first message on a fresh connection, which must be
// a join, and admits the client.
func (s *WSServer) awaitJoin(conn *websocket.Conn) (*Client, error) {
	if err := conn.SetReadDeadline(time.Now().Add(joinWait)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	_, b, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read join message: %w", err)
	}
	msg, err := messages.DeserializeMessage(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize join message: %w", err)
	}
	if msg.Type != messages.MessageTypeClientJoin {
		return nil, fmt.Errorf("expected %s message, got %s", messages.MessageTypeClientJoin, msg.Type)
	}
	var join messages.ClientJoin
	if err := json.Unmarshal(msg.Payload, &join); err != nil {
		return nil, fmt.Errorf("failed to unmarshal join payload: %w", err)
	}
	return s.clientManager.ConnectClient(conn, join.Name, join.Token)
}

func (s *WSServer) readLoop(client *Client, conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer s.clientManager.DisconnectClient(client.ID)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Client %d connection error: %v", client.ID, err)
			}
			return
		}
		if !client.Allow() {
			log.Debug("Dropping message from client %d: rate limit exceeded", client.ID)
			continue
		}
		msg, err := messages.DeserializeMessage(b)
		if err != nil {
			log.Warn("Failed to deserialize message from client %d: %v", client.ID, err)
			continue
		}
		// The transport is the authority on sender identity.
		msg.ClientID = client.ID
		if err := s.messageQueue.Enqueue(msg); err != nil {
			log.Warn("Failed to enqueue message from client %d: %v", client.ID, err)
		}
	}
}

func (s *WSServer) keepalive(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
