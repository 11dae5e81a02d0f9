package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"

	"github.com/lcalzada-xor/wlcoord/internal/adapters/notify"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/sme"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/storage"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/timer"
	"github.com/lcalzada-xor/wlcoord/internal/adapters/web/handlers"
	webserver "github.com/lcalzada-xor/wlcoord/internal/adapters/web/server"
	"github.com/lcalzada-xor/wlcoord/internal/config"
	"github.com/lcalzada-xor/wlcoord/internal/core/domain"
	"github.com/lcalzada-xor/wlcoord/internal/core/services/concurrency"
	grpcserver "github.com/lcalzada-xor/wlcoord/internal/core/services/grpc"
	"github.com/lcalzada-xor/wlcoord/internal/telemetry"
)

// DefaultAllowedOrigins are the browser origins accepted on /ws.
var DefaultAllowedOrigins = []string{
	"http://localhost:8080",
	"http://127.0.0.1:8080",
	"http://[::1]:8080",
}

// Application holds the core components of the application.
// It wires the adapters' state machines to their event sources and consumers.
type Application struct {
	Config *config.Config
	Logger *slog.Logger

	Tracker    *concurrency.Tracker
	Notifier   *notify.Fanout
	Journal    *storage.Journal
	Links      *Links
	WebServer  *webserver.Server
	GrpcServer *grpc.Server
	Health     *grpcserver.HealthReporter
	Simulator  *sme.Simulator
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	if err := app.bootstrap(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()
	app.Tracker = concurrency.NewTracker()
	app.Notifier = notify.NewFanout(app.Logger)
	app.Notifier.Subscribe(notify.NewLogNotifier(app.Logger))

	if err := app.initJournal(); err != nil {
		return err
	}

	// 2. Adapters
	links, err := NewLinks(app.Config.Adapters, LinkDeps{
		Tracker:       app.Tracker,
		Notifier:      app.Notifier,
		Timers:        timer.Real{},
		LinkUpTimeout: app.Config.LinkUpTimeout,
		QueueDepth:    app.Config.QueueDepth,
	}, app.Logger)
	if err != nil {
		return err
	}
	app.Links = links

	// 3. Servers & Event sources
	if err := app.initServers(); err != nil {
		return err
	}

	if app.Config.MockMode {
		app.Simulator = sme.NewSimulator(app.Links,
			app.Links.Names(domain.RoleStation), app.Links.Names(domain.RoleAP),
			app.Config.MockSeed, app.Logger)
		app.Logger.Info("mock mode active: adapters driven by simulated SME", "seed", app.Config.MockSeed)
	}

	return nil
}

func (app *Application) initJournal() error {
	if !app.Config.JournalEnabled() {
		app.Logger.Info("notification journal disabled")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}

	j, err := storage.NewJournal(app.Config.DBPath, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	app.Journal = j
	app.Notifier.Subscribe(j)
	return nil
}

func (app *Application) initServers() error {
	var hash []byte
	if h := app.Config.APITokenHash; h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return fmt.Errorf("api token hash: %w", err)
		}
		hash = []byte(h)
	}

	// A nil *storage.Journal must not become a non-nil interface.
	var journal handlers.JournalReader
	if app.Journal != nil {
		journal = app.Journal
	}

	app.WebServer = webserver.NewServer(webserver.Options{
		Addr:           app.Config.Addr,
		TokenHash:      hash,
		AllowedOrigins: DefaultAllowedOrigins,
	}, app.Links, app.Links, journal, app.Logger)
	app.Notifier.Subscribe(app.WebServer.WSManager)

	app.GrpcServer, app.Health = grpcserver.NewGrpcServer(app.Links, app.Logger)
	return nil
}

// Run starts the application components and manages their execution lifecycle.
func (app *Application) Run(ctx context.Context) error {
	app.Logger.Info("starting wlcoord components", "adapters", len(app.Config.Adapters))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Adapter event loops
	linksDone := make(chan struct{})
	go func() {
		defer close(linksDone)
		app.Links.Run(ctx)
	}()

	// 2. Servers & Event sources
	errChan := make(chan error, 4)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	if app.Config.GRPCPort > 0 {
		go func() {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", app.Config.GRPCPort))
			if err != nil {
				errChan <- fmt.Errorf("grpc listen error: %w", err)
				return
			}
			app.Logger.Info("gRPC health server listening", "port", app.Config.GRPCPort)

			go func() {
				<-ctx.Done()
				app.GrpcServer.GracefulStop()
			}()

			if err := app.GrpcServer.Serve(lis); err != nil {
				errChan <- fmt.Errorf("grpc server error: %w", err)
			}
		}()
		go app.Health.Run(ctx, grpcserver.DefaultRefresh)
	}

	if app.Config.ReplayPath != "" {
		go func() {
			if err := app.replay(ctx); err != nil {
				errChan <- fmt.Errorf("replay error: %w", err)
			}
		}()
	}

	if app.Simulator != nil {
		go func() {
			if err := app.Simulator.Start(ctx); err != nil {
				errChan <- fmt.Errorf("simulator error: %w", err)
			}
		}()
	}

	app.Logger.Info("wlcoord ready. Press Ctrl+C to terminate.")

	var runErr error
	select {
	case <-ctx.Done():
		app.Logger.Info("termination signal received")
	case runErr = <-errChan:
	}

	cancel()
	<-linksDone
	return errors.Join(runErr, app.cleanup())
}

func (app *Application) replay(ctx context.Context) error {
	f, err := os.Open(app.Config.ReplayPath)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := sme.Replay(ctx, f, app.Links, app.Logger)
	if err != nil && ctx.Err() == nil {
		return err
	}
	app.Logger.Info("replay complete", "file", app.Config.ReplayPath, "events", n)
	return nil
}

func (app *Application) cleanup() error {
	app.Logger.Info("cleaning up resources")
	if app.Journal != nil {
		if err := app.Journal.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
	}
	return nil
}
