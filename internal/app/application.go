package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"snapbooth/internal/api"
	"snapbooth/internal/config"
	"snapbooth/internal/hub"
	"snapbooth/internal/journal"
	"snapbooth/internal/printer"
	"snapbooth/internal/session"
	"snapbooth/internal/storage"
	"snapbooth/internal/websocket"
	pkgdatabase "snapbooth/pkg/database"
)

// Application coordinates all system components.
// Component initialization follows strict dependency order:
// Journal → Storage → Store → Hub → Printer → Orchestrator → API/WS → HTTP.
type Application struct {
	config       *config.Config
	eventJournal *journal.Journal
	images       *storage.ImageStore
	store        *session.Store
	notifyHub    *hub.Hub
	orchestrator *session.Orchestrator
	apiServer    *api.Server
	httpServer   *http.Server
	sweeperStop  chan struct{}
	sweeperDone  chan struct{}
}

// NewApplication creates an application instance with all components wired.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Event journal (sqlite, observability layer).
	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = cfg.Journal.Path
	eventJournal, err := journal.New(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	// STEP 2: Image storage.
	images, err := storage.NewImageStore(cfg.Storage.UploadDir)
	if err != nil {
		_ = eventJournal.Close()
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	// STEP 3: Session store and notification hub.
	store := session.NewStore()
	notifyHub := hub.NewHub()

	// STEP 4: External print operation.
	printDevice := printer.NewCommandPrinter(cfg.Printer.Command, cfg.Printer.Args, cfg.Printer.Timeout)

	// STEP 5: Orchestrator drives the state machine over the above.
	orchestrator := session.NewOrchestrator(store, notifyHub, printDevice, eventJournal, cfg.HTTP.PublicBaseURL)

	// STEP 6: HTTP API and WebSocket endpoints.
	apiServer := api.NewServer(orchestrator, notifyHub, images, eventJournal,
		cfg.HTTP.PublicBaseURL, cfg.Storage.MaxUploadBytes)

	wsHandler := websocket.NewHandler(orchestrator, notifyHub, websocket.Config{
		PingInterval: cfg.WebSocket.PingInterval,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
		BufferSize:   cfg.WebSocket.BufferSize,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:       cfg,
		eventJournal: eventJournal,
		images:       images,
		store:        store,
		notifyHub:    notifyHub,
		orchestrator: orchestrator,
		apiServer:    apiServer,
		httpServer:   httpServer,
	}, nil
}

// Start begins serving. The expiry sweeper runs only when a session TTL is
// configured; by default sessions live until process exit.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting snapbooth on %s", app.httpServer.Addr)

	if app.config.Session.TTL > 0 {
		app.sweeperStop = make(chan struct{})
		app.sweeperDone = make(chan struct{})
		go app.runSweeper()
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.stopSweeper()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("snapbooth started successfully")
		return nil
	case <-ctx.Done():
		app.stopSweeper()
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse dependency order:
// HTTP → sweeper → journal.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down snapbooth")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.stopSweeper()

	if err := app.eventJournal.Close(); err != nil {
		log.Printf("Journal shutdown error: %v", err)
	}

	log.Printf("snapbooth shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}

// runSweeper periodically removes expired sessions and their stored images.
func (app *Application) runSweeper() {
	defer close(app.sweeperDone)

	ticker := time.NewTicker(app.config.Session.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := app.orchestrator.Sweep(app.config.Session.TTL)
			for _, expired := range removed {
				if expired.HasImage() {
					if err := app.images.Remove(expired.ImagePath); err != nil {
						log.Printf("Failed to remove image for expired session %s: %v", expired.Token, err)
					}
				}
			}
		case <-app.sweeperStop:
			return
		}
	}
}

func (app *Application) stopSweeper() {
	if app.sweeperStop == nil {
		return
	}
	select {
	case <-app.sweeperStop:
	default:
		close(app.sweeperStop)
		<-app.sweeperDone
	}
}
