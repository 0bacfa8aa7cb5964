package input

import (
	"sort"
	"sync"

	"github.com/dshills/chordinate/internal/input/key"
)

// Interceptor sees raw events before the engine does.
type Interceptor interface {
	// Intercept returns true to consume the event. A consumed event never
	// reaches the chord matcher.
	Intercept(ev key.RawEvent) bool
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(ev key.RawEvent) bool

// Intercept implements Interceptor.
func (f InterceptorFunc) Intercept(ev key.RawEvent) bool {
	return f(ev)
}

// InterceptorPriority defines the execution order for interceptors.
// Lower values execute first.
type InterceptorPriority int

const (
	// PriorityHighest runs before all other interceptors.
	PriorityHighest InterceptorPriority = -1000
	// PriorityHigh runs early in the chain.
	PriorityHigh InterceptorPriority = -100
	// PriorityNormal is the default priority.
	PriorityNormal InterceptorPriority = 0
	// PriorityLow runs late in the chain.
	PriorityLow InterceptorPriority = 100
)

// InterceptorID uniquely identifies a registered interceptor.
type InterceptorID uint64

type interceptorRegistration struct {
	id          InterceptorID
	name        string
	priority    InterceptorPriority
	interceptor Interceptor
}

// interceptorChain holds interceptors ordered by priority, then by
// registration.
type interceptorChain struct {
	mu     sync.RWMutex
	regs   []interceptorRegistration
	nextID InterceptorID
}

func (c *interceptorChain) add(name string, priority InterceptorPriority, ic Interceptor) InterceptorID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.regs = append(c.regs, interceptorRegistration{
		id:          c.nextID,
		name:        name,
		priority:    priority,
		interceptor: ic,
	})
	sort.SliceStable(c.regs, func(i, j int) bool {
		return c.regs[i].priority < c.regs[j].priority
	})
	return c.nextID
}

func (c *interceptorChain) remove(id InterceptorID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.regs {
		if c.regs[i].id == id {
			c.regs = append(c.regs[:i], c.regs[i+1:]...)
			return true
		}
	}
	return false
}

// run offers ev to each interceptor in order and reports which one, if
// any, consumed it.
func (c *interceptorChain) run(ev key.RawEvent) (string, bool) {
	c.mu.RLock()
	regs := make([]interceptorRegistration, len(c.regs))
	copy(regs, c.regs)
	c.mu.RUnlock()

	for _, r := range regs {
		if r.interceptor.Intercept(ev) {
			return r.name, true
		}
	}
	return "", false
}
