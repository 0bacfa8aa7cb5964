package dispatch

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the state of a launched command.
type State int

const (
	// StateCreated indicates the process has not been started.
	StateCreated State = iota
	// StateRunning indicates the process is running.
	StateRunning
	// StateExited indicates the process has exited.
	StateExited
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process is a shell command launched for a binding.
type Process struct {
	// ID uniquely identifies the launch.
	ID string

	// Name is the command line that was run.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	// release runs after the exit status is recorded and before Done
	// closes.
	release func(*Process)

	mu      sync.RWMutex
	exitErr error
}

func newProcess(id, name string, cmd *exec.Cmd, release func(*Process)) *Process {
	p := &Process{
		ID:      id,
		Name:    name,
		Cmd:     cmd,
		done:    make(chan struct{}),
		release: release,
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1)
	return p
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the exit code, or -1 if the process has not exited
// or was ended by a signal.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// PID returns the OS process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.State() == StateCreated || p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}
	if err := p.Cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}
	p.Started = time.Now()
	p.state.Store(int32(StateRunning))
	go p.wait()
	return nil
}

func (p *Process) wait() {
	err := p.Cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(StateExited))
	if p.release != nil {
		p.release(p)
	}
	close(p.done)
}
