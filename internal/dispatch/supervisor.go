package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Supervisor tracks launched commands until they exit.
//
// Children are never given a timeout and are not signalled on shutdown;
// Close only stops new launches.
type Supervisor struct {
	mu        sync.RWMutex
	processes map[string]*Process
	wg        sync.WaitGroup
	closed    bool

	// maxProcesses limits concurrent processes (0 = unlimited)
	maxProcesses int
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithMaxProcesses sets the maximum number of concurrent processes.
func WithMaxProcesses(max int) SupervisorOption {
	return func(s *Supervisor) {
		s.maxProcesses = max
	}
}

// NewSupervisor creates a process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		processes: make(map[string]*Process),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches cmd and tracks it under a fresh ID. The process leaves
// the supervisor before its Done channel closes, so a caller that waited
// on Done can start the next command without hitting the limit.
func (s *Supervisor) Start(name string, cmd *exec.Cmd) (*Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSupervisorClosed
	}
	if s.maxProcesses > 0 && len(s.processes) >= s.maxProcesses {
		return nil, fmt.Errorf("%w: %d", ErrProcessLimit, s.maxProcesses)
	}

	// release blocks on s.mu until Start returns, so the entry is always
	// in the map before it is removed.
	proc := newProcess(uuid.NewString(), name, cmd, s.release)
	s.processes[proc.ID] = proc
	s.wg.Add(1)
	if err := proc.start(); err != nil {
		delete(s.processes, proc.ID)
		s.wg.Done()
		return nil, err
	}
	return proc, nil
}

func (s *Supervisor) release(proc *Process) {
	s.mu.Lock()
	delete(s.processes, proc.ID)
	s.mu.Unlock()
	s.wg.Done()
}

// List returns the running processes, oldest first.
func (s *Supervisor) List() []*Process {
	s.mu.RLock()
	result := make([]*Process, 0, len(s.processes))
	for _, p := range s.processes {
		result = append(result, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Process) int {
		return a.Started.Compare(b.Started)
	})
	return result
}

// Count returns the number of running processes.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processes)
}

// Close stops further launches. Running processes are left alone.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Wait blocks until every tracked process has exited, or ctx ends.
func (s *Supervisor) Wait(ctx context.Context) error {
	return waitGroup(ctx, &s.wg)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
