package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the dispatcher queue length used when none is given.
const DefaultBufferSize = 256

// sinkTimeout bounds a single sink write.
const sinkTimeout = 5 * time.Second

type namedSink struct {
	name string
	sink Sink
}

// Dispatcher queues events from request goroutines and writes them to every
// registered sink from one background goroutine. Emit never blocks: when
// the queue is full the event is dropped and counted.
type Dispatcher struct {
	ch      chan *Event
	sinks   []namedSink
	logger  *slog.Logger
	dropped atomic.Uint64
	source  string
	now     func() time.Time
}

// NewDispatcher creates a dispatcher with room for bufferSize queued events.
func NewDispatcher(bufferSize int, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		ch:     make(chan *Event, bufferSize),
		logger: logger,
		source: "api",
		now:    time.Now,
	}
}

// AddSink registers a sink. Sinks must be added before Run starts.
func (d *Dispatcher) AddSink(name string, s Sink) {
	d.sinks = append(d.sinks, namedSink{name: name, sink: s})
}

// Emit enqueues an event. It is safe to call on a nil Dispatcher.
func (d *Dispatcher) Emit(action, username string, details map[string]any) {
	if d == nil {
		return
	}

	e := &Event{
		ID:        "aud-" + uuid.NewString(),
		Action:    action,
		Username:  username,
		Source:    d.source,
		Details:   details,
		CreatedAt: d.now().UTC(),
	}

	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn("audit queue full, dropping event", "action", action)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Run writes queued events until ctx is cancelled, then drains what is
// left and returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-d.ch:
			d.deliver(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-d.ch:
					d.deliver(e)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(e *Event) {
	for _, ns := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := ns.sink.Write(ctx, e); err != nil {
			d.logger.Error("audit sink write failed",
				"sink", ns.name,
				"action", e.Action,
				"error", err,
			)
		}
		cancel()
	}
}
