package audit

import (
	"context"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking the hash or verify call
	// that produced them.
	DropIfFull bool
	// CloseTimeout bounds how long Close waits for the sink to take queued
	// events. When it expires the sink context is cancelled. Zero means
	// DefaultCloseTimeout.
	CloseTimeout time.Duration
}

// DefaultCloseTimeout is used when Config.CloseTimeout is zero.
const DefaultCloseTimeout = 5 * time.Second

// Dispatcher hands events to a sink from a single worker goroutine, so sinks
// never run on the caller's goroutine and see events in emit order.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	queue      chan Event
	stop       chan struct{}
	wg         sync.WaitGroup
	sinkCtx    context.Context
	cancelSink context.CancelFunc

	dropped   atomic.Uint64
	delivered atomic.Uint64
	panicked  atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the worker. It returns nil when cfg is disabled; a nil
// Dispatcher accepts and ignores every call.
func NewDispatcher(cfg Config, sink Sink, logger *zap.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	d.sinkCtx, d.cancelSink = context.WithCancel(context.Background())

	d.wg.Add(1)
	go d.work()

	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever was queued before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("audit sink panicked",
				zap.String("event_type", ev.EventType),
				zap.Any("panic", r),
			)
		}
	}()

	d.sink.Emit(d.sinkCtx, ev)
	d.delivered.Add(1)
}

// Emit queues ev. With DropIfFull it never blocks; otherwise it waits for
// buffer space, ctx, or Close.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.drop(ev)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.drop(ev)
	case <-d.stop:
	}
}

// drop counts a lost event and logs at 1, 2, 4, 8... drops so a saturated
// sink cannot flood the log.
func (d *Dispatcher) drop(ev Event) {
	n := d.dropped.Add(1)
	if bits.OnesCount64(n) == 1 {
		d.logger.Warn("audit events dropped",
			zap.Uint64("dropped_total", n),
			zap.String("last_event_type", ev.EventType),
		)
	}
}

// Close stops accepting events and flushes the queue. If the sink has not
// taken every queued event within CloseTimeout, its context is cancelled and
// Close returns once the sink gives up.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(d.cfg.CloseTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			d.logger.Warn("audit sink blocked on close, cancelling",
				zap.Duration("timeout", d.cfg.CloseTimeout),
				zap.Int("queued", len(d.queue)),
			)
			d.cancelSink()
			<-done
		}
		d.cancelSink()
	})
}

// Dropped returns the number of events that never reached the sink because
// the buffer was full or the caller's context ended.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns the number of events the sink accepted.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Panicked returns the number of sink calls that panicked.
func (d *Dispatcher) Panicked() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
