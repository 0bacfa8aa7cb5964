// Package app wires the chord engine to its bindings file, action
// dispatcher, trigger history and HTTP API, and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/chordinate/internal/api"
	"github.com/dshills/chordinate/internal/config"
	"github.com/dshills/chordinate/internal/dispatch"
	"github.com/dshills/chordinate/internal/history"
	"github.com/dshills/chordinate/internal/input"
	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/dshills/chordinate/internal/input/recorder"
	"github.com/dshills/chordinate/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Timing for background maintenance and shutdown.
const (
	pruneInterval   = 10 * time.Minute
	shutdownTimeout = 5 * time.Second
)

// Application owns every long-lived component.
type Application struct {
	cfg     *config.Config
	logger  *logging.Logger
	ownsLog bool
	log     zerolog.Logger

	store     *keymap.FileStore
	registry  *keymap.Registry
	persister *keymap.Persister
	watcher   *keymap.Watcher

	engine     *input.Engine
	recorder   *recorder.Recorder
	dispatcher *dispatch.Dispatcher
	history    *history.Store
	histWriter *historyWriter
	api        *api.Server

	cancels []func()

	running      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty uses config.DefaultPath().
	ConfigPath string

	// Config replaces loading from ConfigPath when set.
	Config *config.Config

	// Logger replaces the logger built from the configuration. The caller
	// keeps ownership.
	Logger *logging.Logger

	// Opener overrides how URL actions are opened.
	Opener dispatch.URLOpener

	// EnableAPI forces the HTTP API on regardless of configuration.
	EnableAPI bool
}

// New loads the configuration and creates every component. Nothing runs
// until Run is called; bindings are loaded immediately.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		path := opts.ConfigPath
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, &InitError{Component: "config", Err: err}
		}
	}
	if opts.EnableAPI {
		cfg.API.Enabled = true
	}

	app := &Application{cfg: cfg, logger: opts.Logger}
	if app.logger == nil {
		logger, err := logging.New(logging.Config{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return nil, &InitError{Component: "logging", Err: err}
		}
		app.logger = logger
		app.ownsLog = true
	}
	app.log = app.logger.With().Str("component", "app").Logger()

	if err := app.bootstrap(opts); err != nil {
		app.shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap creates components in dependency order.
func (app *Application) bootstrap(opts Options) error {
	cfg := app.cfg
	base := app.logger.Logger

	// Bindings
	app.store = keymap.NewFileStore(cfg.Storage.BindingsPath)
	bindings, err := app.store.Load()
	if err != nil {
		return &InitError{Component: "bindings", Err: err}
	}
	if app.registry, err = keymap.NewRegistry(bindings...); err != nil {
		return &InitError{Component: "bindings", Err: err}
	}
	app.log.Info().
		Str("path", app.store.Path()).
		Int("bindings", len(bindings)).
		Msg("bindings loaded")

	app.persister = keymap.NewPersister(app.registry, app.store, cfg.Storage.SaveDebounce.Std(), base)
	app.persister.OnError(func(err error) {
		app.log.Error().Err(err).Msg("save bindings")
	})

	if cfg.Storage.Watch {
		if app.watcher, err = keymap.NewWatcher(app.store, app.registry, base); err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
	}

	// Dispatch
	app.dispatcher = dispatch.New(dispatch.Options{
		Shell:        cfg.Dispatch.Shell,
		Opener:       opts.Opener,
		MaxProcesses: cfg.Dispatch.MaxProcesses,
		Logger:       base,
	})

	// Engine
	app.engine = input.NewEngine(app.registry,
		input.WithTimeout(cfg.Engine.Timeout.Std()),
		input.WithDetectionEnabled(cfg.Engine.DetectionEnabled),
		input.WithLogger(base),
		input.WithDispatcher(app.dispatcher),
	)
	app.recorder = recorder.New()
	app.engine.AddInterceptor("recorder", input.PriorityHighest, app.recorder)

	// History
	if cfg.Storage.HistoryPath != "" {
		if app.history, err = history.Open(cfg.Storage.HistoryPath, base); err != nil {
			return &InitError{Component: "history", Err: err}
		}
		app.subscribeHistory()
	}

	// API
	if cfg.API.Enabled {
		apiOpts := api.Options{
			Registry:     app.registry,
			Engine:       app.engine,
			Recorder:     app.recorder,
			AllowOrigins: cfg.API.AllowOrigins,
			Logger:       base,
		}
		if app.history != nil {
			apiOpts.History = app.history
		}
		apiOpts.Processes = app.dispatcher.Supervisor()
		app.api = api.New(apiOpts)
	}
	return nil
}

// subscribeHistory records triggers and dispatch outcomes.
func (app *Application) subscribeHistory() {
	app.histWriter = newHistoryWriter(app.history, app.log)
	app.cancels = append(app.cancels, app.engine.OnTrigger(app.histWriter.Trigger))
	app.dispatcher.OnResult(app.histWriter.Result)
}

// Run starts the background components and blocks until ctx is done or
// one of them fails. Shutdown is performed before returning.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)

	if app.api != nil {
		if err := app.api.Listen(app.cfg.API.Addr); err != nil {
			return errors.Join(err, app.Shutdown())
		}
		g.Go(func() error {
			return app.api.Serve(gctx)
		})
	}

	if app.watcher != nil {
		g.Go(func() error {
			if err := app.watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if app.history != nil {
		g.Go(func() error {
			app.pruneLoop(gctx)
			return nil
		})
	}

	app.log.Info().
		Bool("detection", app.engine.DetectionEnabled()).
		Int("bindings", app.registry.Len()).
		Msg("chordinate running")

	g.Go(func() error {
		<-gctx.Done()
		app.stopServing()
		return nil
	})

	err := g.Wait()
	return errors.Join(err, app.Shutdown())
}

func (app *Application) pruneLoop(ctx context.Context) {
	app.prune(ctx)
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.prune(ctx)
		}
	}
}

func (app *Application) prune(ctx context.Context) {
	if _, err := app.history.Prune(ctx, app.cfg.Storage.HistoryKeep); err != nil && ctx.Err() == nil {
		app.log.Warn().Err(err).Msg("prune history")
	}
}

// stopServing stops the components that block Run.
func (app *Application) stopServing() {
	if app.api != nil {
		app.api.Shutdown()
	}
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.log.Debug().Err(err).Msg("close watcher")
		}
	}
}

// Shutdown stops every component and flushes pending binding writes.
// Running commands are left to finish on their own. Safe to call more
// than once; later calls return the first result.
func (app *Application) Shutdown() error {
	app.shutdownOnce.Do(func() {
		app.shutdownErr = app.shutdown()
	})
	return app.shutdownErr
}

// shutdown performs cleanup in reverse initialization order.
func (app *Application) shutdown() error {
	var errs []error

	app.stopServing()

	for _, cancel := range app.cancels {
		cancel()
	}
	if app.engine != nil {
		app.engine.Close()
	}

	if app.dispatcher != nil {
		app.dispatcher.Close()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := app.dispatcher.Wait(ctx); err != nil {
			app.log.Warn().Msg("actions still running at shutdown")
			errs = append(errs, ErrShutdownTimeout)
		}
		cancel()
	}

	if app.persister != nil {
		if err := app.persister.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if app.histWriter != nil {
		app.histWriter.Close()
	}
	if app.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		app.prune(ctx)
		cancel()
		if err := app.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	app.log.Info().Msg("chordinate stopped")
	if app.ownsLog {
		if err := app.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Feed passes a raw key event to the engine. It satisfies the terminal
// source's sink.
func (app *Application) Feed(ev key.RawEvent) bool {
	return app.engine.Feed(ev)
}

// Config returns the active configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() zerolog.Logger {
	return app.logger.Logger
}

// Registry returns the binding registry.
func (app *Application) Registry() *keymap.Registry {
	return app.registry
}

// Store returns the bindings file store.
func (app *Application) Store() *keymap.FileStore {
	return app.store
}

// Engine returns the chord engine.
func (app *Application) Engine() *input.Engine {
	return app.engine
}

// Recorder returns the sequence recorder.
func (app *Application) Recorder() *recorder.Recorder {
	return app.recorder
}

// Dispatcher returns the action dispatcher.
func (app *Application) Dispatcher() *dispatch.Dispatcher {
	return app.dispatcher
}

// History returns the history store, or nil when history is disabled.
func (app *Application) History() *history.Store {
	return app.history
}

// API returns the HTTP server, or nil when the API is disabled.
func (app *Application) API() *api.Server {
	return app.api
}

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}
