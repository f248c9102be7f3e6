package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frameball/server/pkg/api"
	"github.com/frameball/server/pkg/challenges"
	"github.com/frameball/server/pkg/game"
	"github.com/frameball/server/pkg/log"
	"github.com/frameball/server/pkg/metrics"
	"github.com/frameball/server/pkg/network"
	"github.com/frameball/server/pkg/queue"
	"github.com/frameball/server/pkg/repositories"
	"github.com/frameball/server/pkg/state"
	"github.com/frameball/server/pkg/version"
	"github.com/frameball/server/pkg/workers"
)

const (
	defaultWSPort  = 8888
	defaultAPIPort = 9090

	clientMessageQueueSize   = 1024
	connectionEventQueueSize = 256
	saveRequestChanSize      = 16

	saveInterval = 30 * time.Second
)

func main() {
	wsPort := flag.Int("ws-port", defaultWSPort, "port for the websocket server")
	apiPort := flag.Int("api-port", defaultAPIPort, "port for the HTTP API server")
	logLevel := flag.String("log-level", "info", "log level (error, warn, info, debug, trace)")
	sqlitePath := flag.String("sqlite-path", "frameball.db", "path to the sqlite database file")
	migrationsDir := flag.String("migrations-dir", "pkg/repositories/migrations", "path to the sql migrations directory")
	sessionID := flag.String("session-id", "default", "identifier of the session to run")
	challengeSeed := flag.Int64("challenge-seed", 1, "seed for the challenge generator")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	level, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
		os.Exit(1)
	}
	log.SetDefaultLogger(log.New(os.Stdout, "", log.DefaultLoggerFlag, level))
	log.Info("Starting frameball server %s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repository := newRepository(ctx, *sqlitePath, *migrationsDir)
	defer func() {
		if err := repository.Close(context.Background()); err != nil {
			log.Error("Failed to close repository: %v", err)
		}
	}()

	stateManager := state.NewInMemoryStateManager()
	clientMessageQueue := queue.NewInMemoryQueue(clientMessageQueueSize)
	connectionEventQueue := queue.NewInMemoryQueue(connectionEventQueueSize)
	saveRequestChan := make(chan workers.SaveSessionRequest, saveRequestChanSize)
	sessionMetrics := metrics.New()

	clientManager := network.NewClientManager()

	connectionEventWorker := workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ClientManager:        clientManager,
		ConnectionEventQueue: connectionEventQueue,
	})
	go connectionEventWorker.Start(ctx)

	saveWorker := workers.NewSaveSessionStateWorker(workers.NewSaveSessionStateWorkerOptions{
		Repository:      repository,
		SaveRequestChan: saveRequestChan,
		StateManager:    stateManager,
		Interval:        saveInterval,
	})
	go saveWorker.Start(ctx)

	wsServer := network.NewWSServer(network.NewWSServerOptions{
		Port:          *wsPort,
		ClientManager: clientManager,
		MessageQueue:  clientMessageQueue,
	})
	go func() {
		if err := wsServer.Start(ctx); err != nil {
			log.Error("WebSocket server stopped: %v", err)
			stop()
		}
	}()

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         *apiPort,
		Repository:   repository,
		StateManager: stateManager,
		Metrics:      sessionMetrics,
	})
	go func() {
		if err := apiServer.Start(ctx); err != nil {
			log.Error("API server stopped: %v", err)
			stop()
		}
	}()

	sessionManager := game.NewSessionManager(game.NewSessionManagerOptions{
		SessionID:            *sessionID,
		Provider:             challenges.NewStaticProvider(*challengeSeed),
		Repository:           repository,
		StateManager:         stateManager,
		SaveRequestChan:      saveRequestChan,
		ClientMessageQueue:   clientMessageQueue,
		ConnectionEventQueue: connectionEventQueue,
		Sender:               clientManager,
		Metrics:              sessionMetrics,
	})
	if err := sessionManager.Start(ctx); err != nil {
		log.Error("Session stopped: %v", err)
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

// newRepository selects postgres when DATABASE_URL is set, sqlite
// otherwise.
func newRepository(ctx context.Context, sqlitePath, migrationsDir string) repositories.Repository {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		repository, err := repositories.NewPostgresRepository(ctx, databaseURL)
		if err != nil {
			log.Error("Failed to connect to postgres: %v", err)
			os.Exit(1)
		}
		log.Info("Using postgres repository")
		return repository
	}
	repository, err := repositories.NewSQLiteRepository(ctx, sqlitePath, migrationsDir)
	if err != nil {
		log.Error("Failed to open sqlite database: %v", err)
		os.Exit(1)
	}
	log.Info("Using sqlite repository at %s", sqlitePath)
	return repository
}
