package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/line-relay/internal/background"
	"github.com/dgellow/line-relay/internal/config"
	"github.com/dgellow/line-relay/internal/crypto"
	"github.com/dgellow/line-relay/internal/linenotify"
	"github.com/dgellow/line-relay/internal/log"
	"github.com/dgellow/line-relay/internal/messaging"
	"github.com/dgellow/line-relay/internal/server"
	"github.com/dgellow/line-relay/internal/session"
	"github.com/dgellow/line-relay/internal/storage"
	"github.com/dgellow/line-relay/internal/tasks"
)

const shutdownTimeout = 30 * time.Second

// App is one running service: its HTTP server, its background tasks and
// whatever clients need closing on shutdown
type App struct {
	service    config.Service
	httpServer *server.HTTPServer
	runner     *background.Runner
	closers    []func() error
}

// NewApp builds the service selected by service from cfg
func NewApp(ctx context.Context, cfg config.Config, service config.Service) (*App, error) {
	if err := cfg.RequireService(service); err != nil {
		return nil, err
	}
	if err := log.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	app := &App{
		service: service,
		runner:  background.NewRunner(),
	}

	var (
		routes server.Routes
		addr   string
		err    error
	)
	switch service {
	case config.ServiceNotifyRelay:
		addr = cfg.NotifyRelay.Addr
		routes, err = app.buildNotifyRelay(ctx, cfg.NotifyRelay)
	case config.ServiceTaskDispatcher:
		addr = cfg.TaskDispatcher.Addr
		routes, err = app.buildTaskDispatcher(ctx, cfg.TaskDispatcher)
	case config.ServiceLineBot:
		addr = cfg.LineBot.Addr
		routes, err = app.buildLineBot(cfg.LineBot)
	}
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build %s: %w", service, err)
	}

	app.httpServer = server.NewHTTPServer(string(service), server.NewHandler(string(service), routes), addr)
	return app, nil
}

func (a *App) buildNotifyRelay(ctx context.Context, cfg *config.NotifyRelayConfig) (server.Routes, error) {
	log.LogInfoWithFields("app", "Building notify relay", map[string]any{
		"baseURL":     cfg.BaseURL,
		"redirectURI": cfg.RedirectURI(),
		"storage":     string(cfg.Storage),
	})

	store, err := a.setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	sessionKey := []byte(cfg.SessionSecret)
	if len(sessionKey) == 0 {
		generated, err := crypto.GenerateSecureToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
		sessionKey = []byte(generated)
	}
	sessions := session.NewManager(crypto.NewTokenSigner(sessionKey, cfg.SessionTTL), cfg.CookieSecure)

	notify := linenotify.NewClient(linenotify.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURL:  cfg.RedirectURI(),
		AuthorizeURL: cfg.AuthorizeURL,
		TokenURL:     cfg.TokenURL,
		NotifyURL:    cfg.NotifyURL,
		HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout},
	})

	return server.NewRelayHandlers(notify, store, sessions, a.runner, string(cfg.AccessToken), config.CallbackPath), nil
}

// setupStorage creates the token store selected by configuration
func (a *App) setupStorage(ctx context.Context, cfg *config.NotifyRelayConfig) (storage.TokenStore, error) {
	switch cfg.Storage {
	case config.StorageFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Firestore.Project,
			"database":   cfg.Firestore.Database,
			"collection": cfg.Firestore.Collection,
		})
		encryptor, err := crypto.NewEncryptor([]byte(cfg.Firestore.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		store, err := storage.NewFirestoreTokenStore(ctx, cfg.Firestore.Project, cfg.Firestore.Database, cfg.Firestore.Collection, encryptor)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StorageRedis:
		log.LogInfoWithFields("storage", "Using Redis storage", map[string]any{
			"addr": cfg.Redis.Addr,
			"db":   cfg.Redis.DB,
			"key":  cfg.Redis.Key,
		})
		store := storage.NewRedisTokenStore(ctx, cfg.Redis.Addr, string(cfg.Redis.Password), cfg.Redis.DB, cfg.Redis.Key)
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		log.LogInfoWithFields("storage", "Using in-memory storage", nil)
		return storage.NewMemoryTokenStore(), nil
	}
}

func (a *App) buildTaskDispatcher(ctx context.Context, cfg *config.TaskDispatcherConfig) (server.Routes, error) {
	log.LogInfoWithFields("app", "Building task dispatcher", map[string]any{
		"queue":     tasks.QueuePath(cfg.Project, cfg.Location, cfg.Queue),
		"targetUrl": cfg.TargetURL,
		"delay":     cfg.Delay.String(),
	})

	client, err := tasks.NewClient(ctx, cfg.EmulatorHost)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)

	return server.NewDispatcherHandlers(tasks.NewDispatcher(client, *cfg), a.runner), nil
}

func (a *App) buildLineBot(cfg *config.LineBotConfig) (server.Routes, error) {
	log.LogInfoWithFields("app", "Building LINE bot", map[string]any{
		"pushTarget": cfg.UserID != "",
	})

	bot, err := messaging.New(messaging.Options{
		ChannelSecret: string(cfg.ChannelSecret),
		ChannelToken:  string(cfg.ChannelToken),
		APIEndpoint:   cfg.APIEndpoint,
	})
	if err != nil {
		return nil, err
	}
	return server.NewBotHandlers(bot, cfg.UserID, a.runner), nil
}

func (a *App) close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.LogWarnWithFields("app", "Failed to close client", map[string]any{
				"error": err.Error(),
			})
		}
	}
	a.closers = nil
}

// Run serves until SIGINT/SIGTERM or a server error, then shuts down:
// the HTTP server first, then in-flight background tasks, then clients.
func (a *App) Run() error {
	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	var runErr error
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("app", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		runErr = err
		log.LogErrorWithFields("app", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("app", "Starting graceful shutdown", map[string]any{
		"service": string(a.service),
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("app", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		if runErr == nil {
			runErr = err
		}
	}

	a.waitForTasks(shutdownCtx)
	a.close()

	log.LogInfoWithFields("app", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return runErr
}

// waitForTasks lets background work finish, bounded by ctx. Task errors
// were already logged by the runner.
func (a *App) waitForTasks(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		_ = a.runner.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.LogWarnWithFields("app", "Background tasks still running at shutdown deadline", nil)
	}
}
