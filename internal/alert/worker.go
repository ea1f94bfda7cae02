package alert

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/sosfinder/internal/metrics"
	"github.com/ayusman/sosfinder/internal/store"
)

// Default worker settings.
const (
	DefaultQueueSize = 8
	DefaultTimeout   = 10 * time.Second
)

// Recorder persists alerts and their delivery outcomes.
// *store.AlertRepository satisfies it.
type Recorder interface {
	Create(a *store.AlertRecord) error
	RecordDelivery(d *store.Delivery) error
}

// WorkerConfig sizes the queue and bounds each delivery.
type WorkerConfig struct {
	QueueSize int
	Timeout   time.Duration
}

// Worker drains a bounded alert queue and fans each alert out to the
// current dispatchers.
type Worker struct {
	queue   chan Alert
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	current  *dispatcherSet
	recorder Recorder
	metrics     *metrics.Metrics
	onResult    func(Result)
}

// NewWorker creates a worker. Non-positive settings use the defaults.
func NewWorker(cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		queue:   make(chan Alert, cfg.QueueSize),
		timeout: cfg.Timeout,
		logger:  logger.With("component", "alert"),
	}
}

// dispatcherSet is one generation of delivery targets. It is closed once
// it has been replaced and no delivery still uses it.
type dispatcherSet struct {
	dispatchers []Dispatcher
	refs        int
	retired     bool
}

// SetDispatchers replaces the delivery targets and takes ownership of ds.
// The previous set is closed once deliveries already using it return.
func (w *Worker) SetDispatchers(ds []Dispatcher) {
	w.mu.Lock()
	old := w.current
	w.current = &dispatcherSet{dispatchers: append([]Dispatcher(nil), ds...)}
	closeOld := false
	if old != nil {
		old.retired = true
		closeOld = old.refs == 0
	}
	w.mu.Unlock()

	if closeOld {
		CloseAll(old.dispatchers)
	}
}

// Dispatchers returns the current delivery targets.
func (w *Worker) Dispatchers() []Dispatcher {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return nil
	}
	return append([]Dispatcher(nil), w.current.dispatchers...)
}

// Close retires the current dispatchers. Deliveries in flight finish first.
func (w *Worker) Close() {
	w.SetDispatchers(nil)
}

func (w *Worker) acquire() *dispatcherSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	set := w.current
	if set != nil {
		set.refs++
	}
	return set
}

func (w *Worker) release(set *dispatcherSet) {
	if set == nil {
		return
	}
	w.mu.Lock()
	set.refs--
	closeSet := set.retired && set.refs == 0
	w.mu.Unlock()

	if closeSet {
		CloseAll(set.dispatchers)
	}
}

// SetRecorder sets where alerts and deliveries are persisted.
func (w *Worker) SetRecorder(r Recorder) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recorder = r
}

// SetMetrics sets the metrics sink.
func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = m
}

// OnResult registers a callback invoked after every delivery attempt.
// It runs on a delivery goroutine and must not block.
func (w *Worker) OnResult(fn func(Result)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResult = fn
}

// Enqueue hands an alert to the worker without blocking.
// It returns ErrQueueFull when the queue has no room; the alert is dropped.
func (w *Worker) Enqueue(a Alert) error {
	select {
	case w.queue <- a:
		return nil
	default:
	}

	w.mu.RLock()
	m := w.metrics
	w.mu.RUnlock()
	if m != nil {
		m.AlertsDropped.Inc()
	}
	w.logger.Error("alert dropped", "id", a.ID, "error", ErrQueueFull)
	return ErrQueueFull
}

// Pending returns the number of queued alerts.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Run delivers queued alerts until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-w.queue:
			w.deliver(ctx, a)
		}
	}
}

// deliver sends one alert to every dispatcher concurrently and waits for all.
func (w *Worker) deliver(ctx context.Context, a Alert) {
	set := w.acquire()
	defer w.release(set)

	var dispatchers []Dispatcher
	if set != nil {
		dispatchers = set.dispatchers
	}

	w.mu.RLock()
	recorder := w.recorder
	w.mu.RUnlock()

	if recorder != nil {
		rec := &store.AlertRecord{ID: a.ID, TriggeredAt: a.TriggeredAt, Count: a.Count, Message: a.Message}
		if err := recorder.Create(rec); err != nil {
			w.logger.Error("failed to record alert", "id", a.ID, "error", err)
			recorder = nil
		}
	}

	if len(dispatchers) == 0 {
		w.logger.Warn("no alert channels configured", "id", a.ID)
		return
	}

	var wg sync.WaitGroup
	for _, d := range dispatchers {
		wg.Add(1)
		go func(d Dispatcher) {
			defer wg.Done()
			w.report(recorder, w.dispatch(ctx, d, a))
		}(d)
	}
	wg.Wait()
}

func (w *Worker) dispatch(ctx context.Context, d Dispatcher, a Alert) Result {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	err := d.Dispatch(ctx, a)
	return Result{Alert: a, Channel: d.Name(), Err: err, Duration: time.Since(start)}
}

func (w *Worker) report(recorder Recorder, res Result) {
	w.mu.RLock()
	m := w.metrics
	onResult := w.onResult
	w.mu.RUnlock()

	if res.Err != nil {
		w.logger.Error("alert delivery failed", "id", res.Alert.ID, "channel", res.Channel, "error", res.Err)
	} else {
		w.logger.Info("alert delivered", "id", res.Alert.ID, "channel", res.Channel, "took", res.Duration)
	}

	if m != nil {
		m.ObserveDelivery(res.Channel, res.Err, res.Duration)
	}

	if recorder != nil {
		d := &store.Delivery{AlertID: res.Alert.ID, Channel: res.Channel, Success: res.Err == nil}
		if res.Err != nil {
			d.Error = res.Err.Error()
		}
		if err := recorder.RecordDelivery(d); err != nil {
			w.logger.Error("failed to record delivery", "id", res.Alert.ID, "channel", res.Channel, "error", err)
		}
	}

	if onResult != nil {
		onResult(res)
	}
}

// CloseAll closes every dispatcher holding a connection.
func CloseAll(ds []Dispatcher) {
	for _, d := range ds {
		if c, ok := d.(io.Closer); ok {
			c.Close()
		}
	}
}
