package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/metrics"
	"github.com/ayusman/sosfinder/internal/store"
)

// fakeDispatcher records alerts and returns a fixed error.
type fakeDispatcher struct {
	name  string
	err   error
	delay time.Duration

	mu     sync.Mutex
	alerts []Alert
}

func (f *fakeDispatcher) Name() string { return f.name }

func (f *fakeDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.alerts = append(f.alerts, a)
	f.mu.Unlock()
	return f.err
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// fakeRecorder keeps alerts and deliveries in memory.
type fakeRecorder struct {
	mu         sync.Mutex
	alerts     []*store.AlertRecord
	deliveries []*store.Delivery
}

func (r *fakeRecorder) Create(a *store.AlertRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *fakeRecorder) RecordDelivery(d *store.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	return nil
}

func testAlert() Alert {
	return New(debounce.AlertEvent{
		TriggeredAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Count:       2,
	}, "")
}

// collectResults runs the worker until n results arrive or the test times out.
func collectResults(t *testing.T, w *Worker, n int) []Result {
	t.Helper()

	results := make(chan Result, n)
	w.OnResult(func(r Result) { results <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var got []Result
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case r := <-results:
			got = append(got, r)
		case <-timeout:
			t.Fatalf("received %d results, want %d", len(got), n)
		}
	}
	return got
}

func TestNew_Defaults(t *testing.T) {
	a := testAlert()

	if a.ID == "" {
		t.Error("New() should assign an ID")
	}
	if a.Message != DefaultMessage {
		t.Errorf("Message = %q, want %q", a.Message, DefaultMessage)
	}
	if a.Count != 2 {
		t.Errorf("Count = %d, want 2", a.Count)
	}
	if b := testAlert(); b.ID == a.ID {
		t.Error("alert IDs should be unique")
	}
}

func TestWorker_FansOutToAllDispatchers(t *testing.T) {
	ok := &fakeDispatcher{name: "log"}
	failing := &fakeDispatcher{name: "sms", err: errors.New("unauthorized")}
	rec := &fakeRecorder{}
	m := metrics.New()

	w := NewWorker(WorkerConfig{QueueSize: 4, Timeout: time.Second}, nil)
	w.SetDispatchers([]Dispatcher{ok, failing})
	w.SetRecorder(rec)
	w.SetMetrics(m)

	a := testAlert()
	if err := w.Enqueue(a); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	results := collectResults(t, w, 2)

	byChannel := map[string]Result{}
	for _, r := range results {
		byChannel[r.Channel] = r
		if r.Alert.ID != a.ID {
			t.Errorf("result alert ID = %q, want %q", r.Alert.ID, a.ID)
		}
	}
	if byChannel["log"].Err != nil {
		t.Errorf("log channel error = %v", byChannel["log"].Err)
	}
	if byChannel["sms"].Err == nil {
		t.Error("sms channel should report its error")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.alerts) != 1 || rec.alerts[0].ID != a.ID {
		t.Errorf("recorded alerts = %+v", rec.alerts)
	}
	if len(rec.deliveries) != 2 {
		t.Errorf("recorded %d deliveries, want 2", len(rec.deliveries))
	}

	if got := testutil.ToFloat64(m.Deliveries.WithLabelValues("sms", metrics.ResultFailure)); got != 1 {
		t.Errorf("sms failures = %v, want 1", got)
	}
}

func TestWorker_EnqueueNeverBlocks(t *testing.T) {
	m := metrics.New()
	w := NewWorker(WorkerConfig{QueueSize: 2, Timeout: time.Second}, nil)
	w.SetMetrics(m)

	// No Run loop: the queue fills and further alerts are dropped.
	for i := 0; i < 2; i++ {
		if err := w.Enqueue(testAlert()); err != nil {
			t.Fatalf("Enqueue() %d error = %v", i, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- w.Enqueue(testAlert()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("Enqueue() on full queue error = %v, want ErrQueueFull", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Enqueue() blocked on a full queue")
	}

	if w.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", w.Pending())
	}
	if got := testutil.ToFloat64(m.AlertsDropped); got != 1 {
		t.Errorf("alerts_dropped_total = %v, want 1", got)
	}
}

func TestWorker_DispatchTimeout(t *testing.T) {
	slow := &fakeDispatcher{name: "slow", delay: 5 * time.Second}

	w := NewWorker(WorkerConfig{QueueSize: 1, Timeout: 50 * time.Millisecond}, nil)
	w.SetDispatchers([]Dispatcher{slow})
	w.Enqueue(testAlert())

	results := collectResults(t, w, 1)
	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want context.DeadlineExceeded", results[0].Err)
	}
}

func TestWorker_SlowChannelDoesNotDelayOthers(t *testing.T) {
	slow := &fakeDispatcher{name: "slow", delay: 300 * time.Millisecond}
	fast := &fakeDispatcher{name: "fast"}

	w := NewWorker(WorkerConfig{QueueSize: 1, Timeout: time.Second}, nil)
	w.SetDispatchers([]Dispatcher{slow, fast})
	w.Enqueue(testAlert())

	results := collectResults(t, w, 2)
	if results[0].Channel != "fast" {
		t.Errorf("first result from %q, want fast", results[0].Channel)
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	w := NewWorker(WorkerConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWorker_SetDispatchersCopies(t *testing.T) {
	w := NewWorker(WorkerConfig{}, nil)
	ds := []Dispatcher{&fakeDispatcher{name: "a"}}
	w.SetDispatchers(ds)
	ds[0] = &fakeDispatcher{name: "b"}

	if got := w.Dispatchers()[0].Name(); got != "a" {
		t.Errorf("Dispatchers()[0] = %q, want a", got)
	}
}

// closingDispatcher fails deliveries once closed, like a dropped broker
// connection.
type closingDispatcher struct {
	name    string
	delay   time.Duration
	started chan struct{}

	mu     sync.Mutex
	closed int
}

func (c *closingDispatcher) Name() string { return c.name }

func (c *closingDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if c.started != nil {
		close(c.started)
	}
	time.Sleep(c.delay)
	if c.closes() > 0 {
		return errors.New("use of closed connection")
	}
	return nil
}

func (c *closingDispatcher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *closingDispatcher) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestWorker_SetDispatchers_InFlightDeliveryCompletes(t *testing.T) {
	old := &closingDispatcher{name: "mqtt", delay: 100 * time.Millisecond, started: make(chan struct{})}
	next := &closingDispatcher{name: "mqtt"}

	w := NewWorker(WorkerConfig{QueueSize: 1, Timeout: time.Second}, nil)
	w.SetDispatchers([]Dispatcher{old})

	results := make(chan Result, 1)
	w.OnResult(func(r Result) { results <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := w.Enqueue(testAlert()); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	select {
	case <-old.started:
	case <-time.After(time.Second):
		t.Fatal("delivery did not start")
	}
	w.SetDispatchers([]Dispatcher{next})

	if old.closes() != 0 {
		t.Error("dispatcher closed while a delivery was using it")
	}

	select {
	case r := <-results:
		if r.Err != nil {
			t.Errorf("in-flight delivery error = %v, want nil", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery result")
	}

	deadline := time.Now().Add(time.Second)
	for old.closes() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("replaced dispatcher was never closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if next.closes() != 0 {
		t.Error("current dispatcher should stay open")
	}
}

func TestWorker_SetDispatchers_IdleSetClosedImmediately(t *testing.T) {
	old := &closingDispatcher{name: "kafka"}

	w := NewWorker(WorkerConfig{}, nil)
	w.SetDispatchers([]Dispatcher{old})
	w.SetDispatchers(nil)

	if old.closes() != 1 {
		t.Errorf("closes = %d, want 1", old.closes())
	}
}

func TestWorker_SetDispatchers_ConcurrentSwapsCloseEachSetOnce(t *testing.T) {
	w := NewWorker(WorkerConfig{}, nil)

	sets := make([]*closingDispatcher, 10)
	for i := range sets {
		sets[i] = &closingDispatcher{name: "log"}
	}

	var wg sync.WaitGroup
	for _, d := range sets {
		wg.Add(1)
		go func(d Dispatcher) {
			defer wg.Done()
			w.SetDispatchers([]Dispatcher{d})
		}(d)
	}
	wg.Wait()
	w.Close()

	for i, d := range sets {
		if got := d.closes(); got != 1 {
			t.Errorf("set %d closed %d times, want 1", i, got)
		}
	}
	if len(w.Dispatchers()) != 0 {
		t.Error("Close() should leave no dispatchers")
	}
}
