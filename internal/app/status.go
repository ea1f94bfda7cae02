package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/sosfinder/internal/alert"
	"github.com/ayusman/sosfinder/internal/debounce"
)

// Status is the observable state of the app.
type Status struct {
	Running      bool              `json:"running"`
	Debounce     debounce.Snapshot `json:"debounce"`
	Hands        int               `json:"hands"`
	Closed       bool              `json:"closed"`
	LastError    string            `json:"lastError,omitempty"`
	LastDispatch *DispatchStatus   `json:"lastDispatch,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// DispatchStatus is the most recent delivery outcome.
type DispatchStatus struct {
	AlertID string    `json:"alertId"`
	Channel string    `json:"channel"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// statusBoard holds the published status and fans changes out to subscribers.
type statusBoard struct {
	mu     sync.RWMutex
	status Status
	subs   map[chan Status]struct{}
}

func (b *statusBoard) init(dc debounce.Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = Status{
		Debounce:  debounce.Snapshot{Threshold: dc.Threshold, Window: dc.Window},
		UpdatedAt: time.Now(),
	}
	b.subs = make(map[chan Status]struct{})
}

func (b *statusBoard) get() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.status
	if s.LastDispatch != nil {
		d := *s.LastDispatch
		s.LastDispatch = &d
	}
	return s
}

func (b *statusBoard) update(fn func(*Status)) {
	b.mu.Lock()
	fn(&b.status)
	b.status.UpdatedAt = time.Now()
	b.mu.Unlock()

	b.notify()
}

func (b *statusBoard) start(snap debounce.Snapshot) {
	b.update(func(s *Status) {
		s.Running = true
		s.Debounce = snap
		s.Hands = 0
		s.Closed = false
		s.LastError = ""
	})
}

func (b *statusBoard) stop(snap debounce.Snapshot) {
	b.update(func(s *Status) {
		s.Running = false
		s.Debounce = snap
		s.Hands = 0
		s.Closed = false
	})
}

func (b *statusBoard) setError(err error) {
	b.update(func(s *Status) {
		s.LastError = err.Error()
	})
}

func (b *statusBoard) tick(snap debounce.Snapshot, hands int, closed bool) {
	b.update(func(s *Status) {
		s.Debounce = snap
		s.Hands = hands
		s.Closed = closed
	})
}

func (b *statusBoard) dispatched(d DispatchStatus) {
	b.update(func(s *Status) {
		s.LastDispatch = &d
	})
}

func (b *statusBoard) subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// notify delivers the current status to every subscriber, replacing any
// unread one.
func (b *statusBoard) notify() {
	s := b.get()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// frameBuffer holds the latest annotated preview frame.
type frameBuffer struct {
	viewers atomic.Int32

	mu   sync.RWMutex
	jpeg []byte
	seq  uint64
}

func (f *frameBuffer) attach() func() {
	f.viewers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { f.viewers.Add(-1) })
	}
}

func (f *frameBuffer) watched() bool {
	return f.viewers.Load() > 0
}

func (f *frameBuffer) set(jpeg []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jpeg = jpeg
	f.seq++
}

func (f *frameBuffer) get() ([]byte, uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.jpeg, f.seq
}

func (f *frameBuffer) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jpeg = nil
}

func (a *App) recordDispatch(r alert.Result) {
	d := DispatchStatus{
		AlertID: r.Alert.ID,
		Channel: r.Channel,
		Success: r.Err == nil,
		At:      a.now(),
	}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	a.status.dispatched(d)
}
