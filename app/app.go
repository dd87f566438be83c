// Package app wires configuration, devices, the live transport and the tool
// registry into a ready-to-run interpreter session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/room4-2/OpenInterpret/audio"
	"github.com/room4-2/OpenInterpret/capture"
	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/device"
	"github.com/room4-2/OpenInterpret/functions"
	"github.com/room4-2/OpenInterpret/gemini"
	"github.com/room4-2/OpenInterpret/imagegen"
	"github.com/room4-2/OpenInterpret/metrics"
	"github.com/room4-2/OpenInterpret/session"
	"github.com/room4-2/OpenInterpret/transport"
)

// Listener receives session events and microphone levels.
type Listener interface {
	session.Listener
	Level(audio.Level)
}

// App owns the process-wide resources behind one session.
type App struct {
	Session *session.Session
	Graph   *capture.Manager
	Backend *device.Backend
	Metrics *metrics.Metrics

	store  *session.RedisStore
	logger *slog.Logger
}

// New builds the session. A missing Gemini key is not an error here; the
// session reports it when started.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, listener Listener, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New("")
	}
	a := &App{Metrics: m, logger: logger}

	backend, err := device.Open(device.Options{
		CaptureRate: cfg.CaptureRate,
		OutputRate:  cfg.OutputRate,
		QueueBlocks: cfg.CaptureQueue,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio backend: %w", err)
	}
	a.Backend = backend

	var onLevel func(audio.Level)
	if listener != nil {
		onLevel = listener.Level
	}
	a.Graph = capture.NewManager(backend, capture.Options{
		TargetRate: cfg.TargetRate,
		ChunkSize:  cfg.ChunkSize,
		OnLevel:    onLevel,
	}, logger)

	var dialer transport.Dialer
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		dialer = client
	} else {
		logger.Warn("⚠️ GEMINI_API_KEY not set, sessions cannot start")
	}

	tools := functions.NewRegistry()
	gen, err := imagegen.New(ctx, imagegen.Options{
		Provider:     cfg.ImageProvider,
		Model:        cfg.ImageModel,
		GeminiAPIKey: cfg.GeminiAPIKey,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("⚠️ render_image disabled", "provider", cfg.ImageProvider, "error", err)
	} else {
		tools.Register(functions.RenderImage(gen))
	}

	deps := session.Deps{
		Dialer:  dialer,
		Graph:   a.Graph,
		Tools:   tools,
		Metrics: a.Metrics,
		Logger:  logger,
	}
	if listener != nil {
		deps.Listener = listener
	}
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.SessionTimeout)
		if err != nil {
			logger.Warn("⚠️ Redis unavailable, status registry disabled", "error", err)
		} else {
			a.store = rs
			deps.Store = rs
		}
	}

	a.Session = session.New(deps, session.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.LiveModel,
		Voice:      cfg.Voice,
		Language:   cfg.Language,
		Languages:  cfg.Languages,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OutputRate: cfg.OutputRate,
	})
	return a, nil
}

// Close destroys the audio contexts and releases the backend. Call it after
// the session's Run has returned.
func (a *App) Close() error {
	var errs []error
	if a.Graph != nil {
		errs = append(errs, a.Graph.Close())
	}
	if a.Backend != nil {
		errs = append(errs, a.Backend.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
