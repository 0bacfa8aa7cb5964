// Package api serves bindings, detection state and trigger history over
// HTTP, and streams state changes to WebSocket clients.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dshills/chordinate/internal/dispatch"
	"github.com/dshills/chordinate/internal/history"
	"github.com/dshills/chordinate/internal/input"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/dshills/chordinate/internal/input/recorder"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Outbound event types.
const (
	EventBindingsChanged  = "bindingsChanged"
	EventDetectionChanged = "detectionChanged"
	EventLastTriggered    = "lastTriggered"
	EventRecorderChanged  = "recorderChanged"
	EventError            = "error"
)

// Inbound message types.
const (
	MsgReady               = "ready"
	MsgSetDetectionEnabled = "setDetectionEnabled"
	MsgCreateBinding       = "createBinding"
	MsgUpdateBinding       = "updateBinding"
	MsgRemoveBinding       = "removeBinding"
	MsgRecordStart         = "recordStart"
	MsgRecordStop          = "recordStop"
	MsgRecordCancel        = "recordCancel"
)

// bodyLimit caps request bodies.
const bodyLimit = "1M"

// Engine is the detection surface the API exposes.
type Engine interface {
	DetectionEnabled() bool
	SetDetectionEnabled(enabled bool)
	LastTriggered() (keymap.Binding, bool)
	OnTrigger(fn func(keymap.Binding)) (cancel func())
	OnDetectionChange(fn func(bool)) (cancel func())
	Metrics() *input.Metrics
}

// HistorySource lists recent history entries.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// ProcessSource lists running shell commands.
type ProcessSource interface {
	List() []*dispatch.Process
}

// Options configures a Server.
type Options struct {
	Registry *keymap.Registry
	Engine   Engine

	// Recorder is optional; without it the recorder routes return 404.
	Recorder *recorder.Recorder

	// History is optional; without it /api/history returns 404.
	History HistorySource

	// Processes is optional; without it /api/processes returns 404.
	Processes ProcessSource

	// AllowOrigins lists CORS origins. Default: all.
	AllowOrigins []string

	Logger zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	echo     *echo.Echo
	hub      *Hub
	reg      *keymap.Registry
	engine   Engine
	recorder *recorder.Recorder
	history  HistorySource
	procs    ProcessSource
	log      zerolog.Logger

	cancels []func()

	mu       sync.Mutex
	listener net.Listener
	stopOnce sync.Once
}

// New creates a server and subscribes it to state changes.
func New(opts Options) *Server {
	log := opts.Logger.With().Str("component", "api").Logger()
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		echo:     echo.New(),
		hub:      NewHub(log),
		reg:      opts.Registry,
		engine:   opts.Engine,
		recorder: opts.Recorder,
		history:  opts.History,
		procs:    opts.Processes,
		log:      log,
	}
	s.hub.onConnect = s.initialState
	s.hub.onMessage = s.handleMessage

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.log.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = s.log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	s.routes()
	s.subscribe()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)

	g := e.Group("/api")
	g.GET("/bindings", s.handleListBindings)
	g.PUT("/bindings", s.handleReplaceBindings)
	g.POST("/bindings", s.handleCreateBinding)
	g.GET("/bindings/:id", s.handleGetBinding)
	g.PUT("/bindings/:id", s.handleUpdateBinding)
	g.DELETE("/bindings/:id", s.handleDeleteBinding)

	g.GET("/detection", s.handleGetDetection)
	g.PUT("/detection", s.handleSetDetection)
	g.GET("/last-triggered", s.handleLastTriggered)
	g.GET("/metrics", s.handleMetrics)

	g.GET("/recorder", s.handleRecorderState)
	g.POST("/recorder/start", s.handleRecorderStart)
	g.POST("/recorder/stop", s.handleRecorderStop)
	g.POST("/recorder/cancel", s.handleRecorderCancel)

	g.GET("/history", s.handleHistory)
	g.GET("/processes", s.handleProcesses)
	g.GET("/events", echo.WrapHandler(s.hub))
}

// subscribe forwards state changes to WebSocket clients.
func (s *Server) subscribe() {
	sub := s.reg.OnChange(func(bindings []keymap.Binding) {
		s.hub.Broadcast(EventBindingsChanged, bindingsPayload{Bindings: nonNil(bindings)})
	})
	s.cancels = append(s.cancels, sub.Cancel)

	if s.engine != nil {
		s.cancels = append(s.cancels,
			s.engine.OnDetectionChange(func(enabled bool) {
				s.hub.Broadcast(EventDetectionChanged, detectionPayload{Enabled: enabled})
			}),
			s.engine.OnTrigger(func(b keymap.Binding) {
				s.hub.Broadcast(EventLastTriggered, lastTriggeredPayload{Binding: &b})
			}),
		)
	}

	if s.recorder != nil {
		s.recorder.OnUpdate(func(u recorder.Update) {
			s.hub.Broadcast(EventRecorderChanged, newRecorderPayload(u))
		})
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Listen binds addr. Use ":0" for an OS-assigned port.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the server on the listener from Listen until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("api: Serve called before Listen")
	}

	s.echo.Listener = ln
	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("api listening")
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown stops the server and disconnects clients. Safe to call more
// than once.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		s.hub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("api shutdown")
		}
	})
}

// errorHandler renders every error as {"error": message}.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("write error response")
	}
}
