package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/flightlog"
	"github.com/roman-kulish/visual-servo/internal/storage"
	"github.com/roman-kulish/visual-servo/internal/target"
	"github.com/roman-kulish/visual-servo/internal/telemetry"
)

const (
	flushInterval = time.Second
	queueSize     = 256
)

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// WithMaxBatchSize sets the maximum number of cycles stored within a single
// database transaction.
func WithMaxBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		r.maxBatchSize = size
	}
}

// WithQueueSize sets how many records may wait for the database before new
// ones are dropped.
func WithQueueSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		r.queueSize = size
	}
}

// WithFlushInterval sets how often a partial batch of cycles is stored.
func WithFlushInterval(d time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		r.flushInterval = d
	}
}

type record struct {
	cycle     *flightlog.Cycle
	telemetry *telemetry.Telemetry
	event     *flightlog.Event
}

// Recorder writes the flight log of a session from a background goroutine.
// Record and Event never block the control loop: when the queue is full the
// record is dropped and counted.
type Recorder struct {
	store     storage.Store
	sessionID int64

	queue   chan record
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	lastTelemetry time.Time

	maxBatchSize  int
	queueSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	wg sync.WaitGroup
}

// NewRecorder starts a recorder for the session. Writes outlive the
// cancellation of ctx so the tail of the flight is not lost; Close flushes
// and stops the worker.
func NewRecorder(ctx context.Context, store storage.Store, sessionID int64, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:         store,
		sessionID:     sessionID,
		maxBatchSize:  defaultMaxBatchSize,
		queueSize:     queueSize,
		flushInterval: flushInterval,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&r)
	}

	r.queue = make(chan record, r.queueSize)

	r.wg.Add(1)
	go r.run(context.WithoutCancel(ctx))

	return &r
}

// Record queues the cycle, and the telemetry it acted on when that is new.
func (r *Recorder) Record(snap control.Snapshot) {
	c := toCycle(snap)
	r.enqueue(record{cycle: &c, telemetry: snap.Telemetry})
}

// Event queues a flight state machine event.
func (r *Recorder) Event(e flight.Event) {
	r.enqueue(record{event: &flightlog.Event{
		Timestamp: e.Time,
		Kind:      string(e.Kind),
		Detail:    e.Detail,
		Battery:   e.Battery,
		Height:    e.Height,
	}})
}

// Dropped returns the number of records lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
	}
}

// Close stores everything queued and stops the worker. It is safe to call
// Close multiple times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()

	if n := r.dropped.Load(); n > 0 {
		r.logger.Warn("flight log records dropped", slog.Uint64("count", n))
	}
	return nil
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]flightlog.Cycle, 0, r.maxBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		for chunk := range slices.Chunk(batch, r.maxBatchSize) {
			if err := r.store.StoreCycles(ctx, r.sessionID, chunk); err != nil {
				r.logger.Error(fmt.Sprintf("storing cycles: %s", err.Error()))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec, ok := <-r.queue:
			if !ok {
				flush()
				return
			}

			r.storeTelemetry(ctx, rec.telemetry)
			r.storeEvent(ctx, rec.event)

			if rec.cycle != nil {
				batch = append(batch, *rec.cycle)
				if len(batch) >= r.maxBatchSize {
					flush()
				}
			}

		case <-ticker.C:
			flush()
		}
	}
}

func (r *Recorder) storeTelemetry(ctx context.Context, t *telemetry.Telemetry) {
	if t == nil || !t.Timestamp.After(r.lastTelemetry) {
		return
	}
	r.lastTelemetry = t.Timestamp

	if _, err := r.store.StoreTelemetry(ctx, r.sessionID, t); err != nil {
		r.logger.Error(fmt.Sprintf("storing telemetry: %s", err.Error()))
	}
}

func (r *Recorder) storeEvent(ctx context.Context, e *flightlog.Event) {
	if e == nil {
		return
	}
	if err := r.store.StoreEvent(ctx, r.sessionID, *e); err != nil {
		r.logger.Error(fmt.Sprintf("storing event: %s", err.Error()))
	}
}

func toCycle(snap control.Snapshot) flightlog.Cycle {
	c := flightlog.Cycle{
		Cycle:     snap.Cycle,
		Timestamp: snap.Time,
		Flying:    snap.State.Flying,
		Mode:      snap.State.Mode.String(),
		Battery:   snap.Battery,
		Height:    snap.Height,
		HasFrame:  snap.HasFrame,
		Kind:      snap.Observation.Kind.String(),
		LR:        snap.Command.LR,
		FB:        snap.Command.FB,
		UD:        snap.Command.UD,
		Yaw:       snap.Command.Yaw,
		Notice:    snap.Notice,
	}

	switch snap.Observation.Kind {
	case target.KindBlob:
		c.BoxX = snap.Observation.Box.X
		c.BoxY = snap.Observation.Box.Y
		c.BoxW = snap.Observation.Box.W
		c.BoxH = snap.Observation.Box.H
		c.Area = snap.Observation.Area
	case target.KindGesture:
		c.Gesture = snap.Observation.Gesture.String()
	}

	return c
}
