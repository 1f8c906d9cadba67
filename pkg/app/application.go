package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arenabeat/resultgate/internal/middleware"
	"github.com/arenabeat/resultgate/internal/services"
	"github.com/arenabeat/resultgate/internal/tracing"
	"github.com/arenabeat/resultgate/internal/watch"
	"github.com/arenabeat/resultgate/pkg/auth"
	"github.com/arenabeat/resultgate/pkg/config"
	"github.com/arenabeat/resultgate/pkg/domain"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Stream          services.StreamService
	Watcher         *watch.Watcher
	Logger          *slog.Logger
	Started         time.Time
	ClientValidator auth.Validator
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithClientValidator sets a custom validator for the streaming endpoint
func WithClientValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.ClientValidator = validator
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "resultgate", "env", cfg.Env)
	slog.SetDefault(logger)

	// Malformed patterns are a fatal configuration error; the process must
	// not accept requests with a watch list it cannot scan.
	watcher, err := watch.New(cfg.WatchPatterns)
	if err != nil {
		return nil, err
	}

	tracingShutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "resultgate",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	stream := services.NewStreamService(
		watcher,
		logger,
		time.Now,
		time.Duration(cfg.PollPeriodSeconds)*time.Second,
		time.Duration(cfg.FreshnessWindowSeconds)*time.Second,
		time.Duration(cfg.SessionTimeoutSeconds)*time.Second,
	)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware("resultgate"),
	)

	app := &Application{
		Config:          cfg,
		Engine:          engine,
		Stream:          stream,
		Watcher:         watcher,
		Logger:          logger,
		Started:         time.Now(),
		TracingShutdown: tracingShutdown,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	// Create default validator from config if not provided
	if app.ClientValidator == nil && cfg.ClientAuth.Type != "" {
		validator, err := auth.NewValidator(auth.ProviderConfig{
			Type:   cfg.ClientAuth.Type,
			Config: json.RawMessage(cfg.ClientAuth.Config),
		})
		if err != nil {
			return nil, err
		}
		app.ClientValidator = validator
	}

	return app, nil
}

// AgentCard builds the capability descriptor served on the discovery
// endpoint.
func (app *Application) AgentCard() domain.AgentCard {
	cfg := app.Config
	return domain.AgentCard{
		Name:        cfg.AgentName,
		Description: cfg.AgentDescription,
		URL:         cfg.PublicURL,
		Version:     cfg.AgentVersion,
		Capabilities: domain.Capabilities{
			Streaming:         true,
			PushNotifications: false,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []domain.Skill{
			{
				ID:          "evaluate",
				Name:        "Run evaluation",
				Description: "Streams progress until the evaluation result lands on disk, then delivers it.",
				Tags:        []string{"evaluation", "streaming"},
			},
		},
	}
}
