package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dshills/chordinate/internal/input"
	"github.com/dshills/chordinate/internal/input/key"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/dshills/chordinate/internal/input/recorder"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type bindingsPayload struct {
	Bindings []keymap.Binding `json:"bindings"`
}

type detectionPayload struct {
	Enabled bool `json:"enabled"`
}

type lastTriggeredPayload struct {
	Binding *keymap.Binding `json:"binding"`
}

type recorderPayload struct {
	Recording bool     `json:"recording"`
	Canceled  bool     `json:"canceled,omitempty"`
	Steps     []string `json:"steps"`
	Display   string   `json:"display"`
}

func newRecorderPayload(u recorder.Update) recorderPayload {
	return recorderPayload{
		Recording: u.Recording,
		Canceled:  u.Canceled,
		Steps:     stepSpecs(u.Steps),
		Display:   u.Steps.DisplayText(),
	}
}

func stepSpecs(seq key.Sequence) []string {
	out := make([]string, 0, len(seq))
	for _, k := range seq {
		out = append(out, k.String())
	}
	return out
}

func nonNil(bindings []keymap.Binding) []keymap.Binding {
	if bindings == nil {
		return []keymap.Binding{}
	}
	return bindings
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.String(http.StatusOK, "Chordinate API: GET/PUT /api/bindings")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleListBindings(c echo.Context) error {
	data, err := keymap.Encode(s.reg.Bindings())
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, data)
}

// handleReplaceBindings replaces the whole list. The body must be a JSON
// array; documents with legacy numeric modifiers are accepted.
func (s *Server) handleReplaceBindings(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !gjson.ValidBytes(body) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON")
	}
	if !gjson.ParseBytes(body).IsArray() {
		return echo.NewHTTPError(http.StatusBadRequest, "Expected array")
	}

	bindings, err := keymap.Decode(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.reg.Replace(bindings); err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleCreateBinding(c echo.Context) error {
	b, err := decodeBinding(c.Request().Body)
	if err != nil {
		return err
	}
	added, err := s.reg.Add(b)
	if err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusCreated, added)
}

func (s *Server) handleGetBinding(c echo.Context) error {
	id, err := bindingID(c)
	if err != nil {
		return err
	}
	b, ok := s.reg.Get(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "binding not found")
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) handleUpdateBinding(c echo.Context) error {
	id, err := bindingID(c)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if v := gjson.GetBytes(body, "id"); v.Exists() && v.String() != id.String() {
		return echo.NewHTTPError(http.StatusBadRequest, "id in body does not match path")
	}
	b, err := decodeBinding(bytes.NewReader(body))
	if err != nil {
		return err
	}
	b.ID = id
	if err := s.reg.Update(b); err != nil {
		return registryError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) handleDeleteBinding(c echo.Context) error {
	id, err := bindingID(c)
	if err != nil {
		return err
	}
	if err := s.reg.Remove(id); err != nil {
		return registryError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetDetection(c echo.Context) error {
	if s.engine == nil {
		return echo.NewHTTPError(http.StatusNotFound, "detection is not running")
	}
	return c.JSON(http.StatusOK, detectionPayload{Enabled: s.engine.DetectionEnabled()})
}

func (s *Server) handleSetDetection(c echo.Context) error {
	if s.engine == nil {
		return echo.NewHTTPError(http.StatusNotFound, "detection is not running")
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.Enabled == nil {
		return echo.NewHTTPError(http.StatusBadRequest, `expected {"enabled": bool}`)
	}
	s.engine.SetDetectionEnabled(*req.Enabled)
	return c.JSON(http.StatusOK, detectionPayload{Enabled: s.engine.DetectionEnabled()})
}

func (s *Server) handleLastTriggered(c echo.Context) error {
	if s.engine == nil {
		return echo.NewHTTPError(http.StatusNotFound, "detection is not running")
	}
	var p lastTriggeredPayload
	if b, ok := s.engine.LastTriggered(); ok {
		p.Binding = &b
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleMetrics(c echo.Context) error {
	if s.engine == nil {
		return c.JSON(http.StatusOK, input.MetricsSnapshot{})
	}
	return c.JSON(http.StatusOK, s.engine.Metrics().Snapshot())
}

func (s *Server) handleRecorderState(c echo.Context) error {
	if s.recorder == nil {
		return echo.NewHTTPError(http.StatusNotFound, "recorder is not available")
	}
	return c.JSON(http.StatusOK, newRecorderPayload(recorder.Update{
		Recording: s.recorder.IsRecording(),
		Steps:     s.recorder.Steps(),
	}))
}

func (s *Server) handleRecorderStart(c echo.Context) error {
	if s.recorder == nil {
		return echo.NewHTTPError(http.StatusNotFound, "recorder is not available")
	}
	s.recorder.Start()
	return s.handleRecorderState(c)
}

func (s *Server) handleRecorderStop(c echo.Context) error {
	if s.recorder == nil {
		return echo.NewHTTPError(http.StatusNotFound, "recorder is not available")
	}
	s.recorder.Stop()
	return s.handleRecorderState(c)
}

func (s *Server) handleRecorderCancel(c echo.Context) error {
	if s.recorder == nil {
		return echo.NewHTTPError(http.StatusNotFound, "recorder is not available")
	}
	s.recorder.Cancel()
	return s.handleRecorderState(c)
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is disabled")
	}

	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

type processPayload struct {
	ID      string    `json:"id"`
	Command string    `json:"command"`
	PID     int       `json:"pid"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
}

func (s *Server) handleProcesses(c echo.Context) error {
	if s.procs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "process list is unavailable")
	}
	procs := s.procs.List()
	out := make([]processPayload, 0, len(procs))
	for _, p := range procs {
		out = append(out, processPayload{
			ID:      p.ID,
			Command: p.Name,
			PID:     p.PID(),
			State:   p.State().String(),
			Started: p.Started,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// initialState is sent to every new WebSocket client.
func (s *Server) initialState() []Envelope {
	var out []Envelope
	add := func(t string, p any) {
		if env, err := newEnvelope(t, p); err == nil {
			out = append(out, env)
		}
	}

	add(EventBindingsChanged, bindingsPayload{Bindings: nonNil(s.reg.Bindings())})
	if s.engine != nil {
		add(EventDetectionChanged, detectionPayload{Enabled: s.engine.DetectionEnabled()})
		var p lastTriggeredPayload
		if b, ok := s.engine.LastTriggered(); ok {
			p.Binding = &b
		}
		add(EventLastTriggered, p)
	}
	if s.recorder != nil {
		add(EventRecorderChanged, newRecorderPayload(recorder.Update{
			Recording: s.recorder.IsRecording(),
			Steps:     s.recorder.Steps(),
		}))
	}
	return out
}

// handleMessage applies an inbound bridge message. State changes reach
// the client through the broadcast events; only errors and "ready" are
// answered directly.
func (s *Server) handleMessage(env Envelope) []Envelope {
	switch env.Type {
	case MsgReady:
		return s.initialState()

	case MsgSetDetectionEnabled:
		var enabled bool
		if err := json.Unmarshal(env.Payload, &enabled); err != nil {
			return []Envelope{errorEnvelope("setDetectionEnabled expects a boolean")}
		}
		if s.engine != nil {
			s.engine.SetDetectionEnabled(enabled)
		}

	case MsgCreateBinding, MsgUpdateBinding, MsgRemoveBinding:
		var b keymap.Binding
		if err := json.Unmarshal(env.Payload, &b); err != nil {
			return []Envelope{errorEnvelope(env.Type + ": " + err.Error())}
		}
		var err error
		switch env.Type {
		case MsgCreateBinding:
			_, err = s.reg.Add(b)
		case MsgUpdateBinding:
			err = s.reg.Update(b)
		case MsgRemoveBinding:
			err = s.reg.Remove(b.ID)
		}
		if err != nil {
			return []Envelope{errorEnvelope(env.Type + ": " + err.Error())}
		}

	case MsgRecordStart, MsgRecordStop, MsgRecordCancel:
		if s.recorder == nil {
			return []Envelope{errorEnvelope("recorder is not available")}
		}
		switch env.Type {
		case MsgRecordStart:
			s.recorder.Start()
		case MsgRecordStop:
			s.recorder.Stop()
		case MsgRecordCancel:
			s.recorder.Cancel()
		}

	default:
		return []Envelope{errorEnvelope("unknown message type " + strconv.Quote(env.Type))}
	}
	return nil
}

func decodeBinding(r io.Reader) (keymap.Binding, error) {
	var b keymap.Binding
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return keymap.Binding{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return b, nil
}

func bindingID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid binding id")
	}
	return id, nil
}

// registryError maps registry failures to HTTP errors.
func registryError(err error) error {
	var ve *keymap.ValidationError
	switch {
	case errors.Is(err, keymap.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, keymap.ErrDuplicateID):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &ve), errors.Is(err, keymap.ErrInvalidAction):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
