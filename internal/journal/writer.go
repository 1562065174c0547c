package journal

import (
	"log/slog"

	"github.com/yalor/ace/internal/bus"
)

// writerBuffer bounds how many events may queue for persistence before the
// journal starts shedding.
const writerBuffer = 256

// Writer streams bus traffic into the Store off the publishing goroutine.
// The tap only enqueues; when the buffer is full events are dropped, never
// blocking the pipeline on disk.
type Writer struct {
	store  *Store
	logger *slog.Logger
	ch     chan bus.Event
	done   chan struct{}
}

// NewWriter creates a Writer over an open Store.
func NewWriter(store *Store) *Writer {
	return &Writer{
		store:  store,
		logger: slog.Default(),
		ch:     make(chan bus.Event, writerBuffer),
		done:   make(chan struct{}),
	}
}

// Start taps the bus and begins draining into the store. The returned stop
// function detaches the tap and waits for the queue to flush.
func (w *Writer) Start(b *bus.Bus) func() {
	untap := b.Tap(func(e bus.Event) {
		select {
		case w.ch <- e:
		default:
			w.logger.Warn("journal buffer full, dropping event", "kind", e.EventKind())
		}
	})

	go w.run()

	return func() {
		untap()
		close(w.ch)
		<-w.done
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for e := range w.ch {
		if err := w.store.RecordEvent(e); err != nil {
			w.logger.Warn("journaling event failed", "kind", e.EventKind(), "error", err)
		}
	}
}
