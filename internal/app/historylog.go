package app

import (
	"context"
	"sync"

	"github.com/dshills/chordinate/internal/dispatch"
	"github.com/dshills/chordinate/internal/history"
	"github.com/dshills/chordinate/internal/input/keymap"
	"github.com/rs/zerolog"
)

// historyQueueSize bounds writes waiting for the database.
const historyQueueSize = 256

type historyWrite func(ctx context.Context, store *history.Store) error

// historyWriter moves history inserts off the keystroke path. Writes run
// in order on one goroutine; when the queue is full they are dropped.
type historyWriter struct {
	store *history.Store
	log   zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan historyWrite
	done   chan struct{}
}

func newHistoryWriter(store *history.Store, log zerolog.Logger) *historyWriter {
	w := &historyWriter{
		store: store,
		log:   log,
		queue: make(chan historyWrite, historyQueueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *historyWriter) run() {
	defer close(w.done)
	for write := range w.queue {
		if err := write(context.Background(), w.store); err != nil {
			w.log.Warn().Err(err).Msg("write history")
		}
	}
}

func (w *historyWriter) enqueue(write historyWrite) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- write:
	default:
		w.log.Warn().Msg("history queue full, entry dropped")
	}
}

// Trigger queues a trigger row.
func (w *historyWriter) Trigger(b keymap.Binding) {
	w.enqueue(func(ctx context.Context, s *history.Store) error {
		return s.RecordTrigger(ctx, b)
	})
}

// Result queues a dispatch row.
func (w *historyWriter) Result(r dispatch.Result) {
	w.enqueue(func(ctx context.Context, s *history.Store) error {
		return s.RecordResult(ctx, r)
	})
}

// Close stops accepting writes and waits for queued ones to finish.
func (w *historyWriter) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}
