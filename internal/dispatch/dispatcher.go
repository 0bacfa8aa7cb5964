package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// Outcome classifies how a dispatched action ended.
type Outcome string

const (
	// OutcomeSucceeded means the command exited 0 or the URL was opened.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the command could not start, exited non-zero,
	// or the URL could not be opened.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the payload was empty or not a valid URL.
	OutcomeSkipped Outcome = "skipped"
)

// Result reports the end of one dispatched action.
type Result struct {
	ID       string
	Action   keymap.Action
	Outcome  Outcome
	ExitCode int
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration returns how long the action ran.
func (r Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// URLOpener opens a URL with the system handler.
type URLOpener func(u string) error

// Options configures a Dispatcher.
type Options struct {
	// Shell runs shell actions as `<Shell> -lc <command>`.
	// Default: DefaultShell()
	Shell string

	// Opener opens URLs. Default: the system browser.
	Opener URLOpener

	// MaxProcesses caps concurrent shell commands (0 = unlimited).
	MaxProcesses int

	// Logger receives dispatch logs.
	Logger zerolog.Logger
}

// DefaultShell returns the login shell used for commands.
func DefaultShell() string {
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	return "/bin/sh"
}

// Dispatcher runs binding actions in the background. Each action gets its
// own goroutine; no timeout is applied and failures are never retried.
type Dispatcher struct {
	shell  string
	opener URLOpener
	sup    *Supervisor
	log    zerolog.Logger

	// launchMu orders Dispatch's wg.Add against Close.
	launchMu sync.Mutex
	closed   bool
	wg       sync.WaitGroup

	mu        sync.RWMutex
	listeners []func(Result)
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Shell == "" {
		opts.Shell = DefaultShell()
	}
	if opts.Opener == nil {
		opts.Opener = openBrowser
	}
	return &Dispatcher{
		shell:  opts.Shell,
		opener: opts.Opener,
		sup:    NewSupervisor(WithMaxProcesses(opts.MaxProcesses)),
		log:    opts.Logger.With().Str("component", "dispatch").Logger(),
	}
}

var quietBrowser sync.Once

func openBrowser(u string) error {
	quietBrowser.Do(func() {
		browser.Stdout = io.Discard
		browser.Stderr = io.Discard
	})
	return browser.OpenURL(u)
}

// Supervisor returns the supervisor tracking running commands.
func (d *Dispatcher) Supervisor() *Supervisor {
	return d.sup
}

// OnResult registers fn to receive every result.
func (d *Dispatcher) OnResult(fn func(Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Dispatch starts action in the background and returns immediately.
func (d *Dispatcher) Dispatch(action keymap.Action) {
	d.launchMu.Lock()
	if d.closed {
		d.launchMu.Unlock()
		d.log.Warn().Err(ErrClosed).Str("action", action.String()).Msg("dispatch ignored")
		return
	}
	d.wg.Add(1)
	d.launchMu.Unlock()

	go func() {
		defer d.wg.Done()
		d.emit(d.Execute(action))
	}()
}

// Execute runs action and waits for it to finish.
func (d *Dispatcher) Execute(action keymap.Action) Result {
	res := Result{
		ID:      uuid.NewString(),
		Action:  action,
		Started: time.Now(),
	}

	switch action.Type {
	case keymap.ActionShellCommand:
		d.runShell(action.Payload, &res)
	case keymap.ActionOpenURL:
		d.openURL(action.Payload, &res)
	default:
		res.Outcome = OutcomeSkipped
		res.Err = fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
	}
	res.Finished = time.Now()

	ev := d.log.Info()
	if res.Outcome != OutcomeSucceeded {
		ev = d.log.Warn().Err(res.Err)
	}
	ev.Str("id", res.ID).
		Str("type", string(action.Type)).
		Str("payload", action.Payload).
		Str("outcome", string(res.Outcome)).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration()).
		Msg("action finished")
	return res
}

func (d *Dispatcher) runShell(payload string, res *Result) {
	command := strings.TrimSpace(payload)
	if command == "" {
		res.Outcome = OutcomeSkipped
		res.Err = ErrEmptyCommand
		return
	}

	cmd := exec.Command(d.shell, "-lc", command)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	proc, err := d.sup.Start(command, cmd)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.ExitCode = -1
		res.Err = err
		return
	}
	res.ID = proc.ID
	<-proc.Done()

	res.ExitCode = proc.ExitCode()
	if err := proc.ExitError(); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return
	}
	res.Outcome = OutcomeSucceeded
}

func (d *Dispatcher) openURL(payload string, res *Result) {
	u, err := ParseURL(payload)
	if err != nil {
		res.Outcome = OutcomeSkipped
		res.Err = err
		return
	}
	if err := d.opener(u.String()); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("open %s: %w", u, err)
		return
	}
	res.Outcome = OutcomeSucceeded
}

// ParseURL validates an open-URL payload. The URL must carry a scheme.
func ParseURL(payload string) (*url.URL, error) {
	s := strings.TrimSpace(payload)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidURL, s)
	}
	return u, nil
}

func (d *Dispatcher) emit(res Result) {
	d.mu.RLock()
	fns := make([]func(Result), len(d.listeners))
	copy(fns, d.listeners)
	d.mu.RUnlock()

	for _, fn := range fns {
		fn(res)
	}
}

// Wait blocks until every dispatched action has been reported and every
// supervised command has exited, or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if err := waitGroup(ctx, &d.wg); err != nil {
		return err
	}
	return d.sup.Wait(ctx)
}

// Close stops accepting actions. Commands already running continue.
func (d *Dispatcher) Close() {
	d.launchMu.Lock()
	d.closed = true
	d.launchMu.Unlock()
	d.sup.Close()
}
