package interactions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// Recorder receives one observation per interaction: stored, failed or dropped.
type Recorder interface {
	ObserveInteraction(result string)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	Logger       *logging.Logger
	Recorder     Recorder
}

// Dispatcher queues interactions and writes them to a Store from background
// workers. Log never blocks: when the queue is full the record is dropped
// and counted.
type Dispatcher struct {
	store        Store
	queue        chan Interaction
	workers      int
	writeTimeout time.Duration
	logger       *logging.Logger
	recorder     Recorder
	now          func() time.Time

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over store.
func NewDispatcher(store Store, cfg DispatcherConfig) *Dispatcher {
	if store == nil {
		panic("interactions: store required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		store:        store,
		queue:        make(chan Interaction, cfg.QueueSize),
		workers:      cfg.Workers,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.Component("interactions"),
		recorder:     cfg.Recorder,
		now:          time.Now,
	}
}

// Start launches the workers. Writes use ctx for values only; cancelling it
// does not abort queued writes, Close drains them.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	base := context.WithoutCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(base)
	}
}

// Log enqueues an interaction. It assigns an ID and timestamp when missing
// and copies the trace ID from ctx.
func (d *Dispatcher) Log(ctx context.Context, in Interaction) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = d.now().UTC()
	}
	if in.Type == "" {
		in.Type = TypeMisc
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		in.TraceID = sc.TraceID().String()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(in, "dispatcher closed")
		return
	}
	select {
	case d.queue <- in:
	default:
		d.drop(in, "queue full")
	}
}

// Close stops accepting interactions and waits until queued ones are written.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for in := range d.queue {
			d.drop(in, "dispatcher never started")
		}
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for in := range d.queue {
		d.write(ctx, in)
	}
}

func (d *Dispatcher) write(ctx context.Context, in Interaction) {
	ctx, cancel := context.WithTimeout(ctx, d.writeTimeout)
	defer cancel()
	if err := d.store.Save(ctx, in); err != nil {
		d.logger.Warn("interaction write failed",
			"interaction_id", in.ID.String(),
			"type", string(in.Type),
			"error", err,
		)
		d.observe("failed")
		return
	}
	d.observe("stored")
}

func (d *Dispatcher) drop(in Interaction, reason string) {
	d.logger.Warn("interaction dropped",
		"interaction_id", in.ID.String(),
		"type", string(in.Type),
		"appointment_id", in.AppointmentID,
		"reason", reason,
	)
	d.observe("dropped")
}

func (d *Dispatcher) observe(result string) {
	if d.recorder != nil {
		d.recorder.ObserveInteraction(result)
	}
}
