package app

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gocv.io/x/gocv"

	"github.com/ayusman/sosfinder/internal/capture"
	"github.com/ayusman/sosfinder/internal/config"
	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/detector"
	"github.com/ayusman/sosfinder/internal/metrics"
	"github.com/ayusman/sosfinder/internal/store"
	"github.com/ayusman/sosfinder/testdata"
)

type testApp struct {
	*App
	camera   *capture.MockCamera
	detector *detector.MockDetector
	metrics  *metrics.Metrics
}

func newTestApp(t *testing.T, s *store.Store) *testApp {
	t.Helper()

	settings := config.Default()
	settings.Plugins.Dir = t.TempDir()

	cam := capture.NewMockCamera(nil, true)
	det := detector.NewMockDetector()
	m := metrics.New()

	a := New(Config{
		Settings: settings,
		Store:    s,
		Camera:   cam,
		Detector: det,
		Metrics:  m,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { a.Close() })

	return &testApp{App: a, camera: cam, detector: det, metrics: m}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "sosfinder.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	closedHands = []detector.HandLandmarks{detector.ClosedFistLandmarks()}
	openHands   = []detector.HandLandmarks{detector.OpenPalmLandmarks()}
)

func TestApp_Process_SingleAlertPerEpisode(t *testing.T) {
	a := newTestApp(t, nil)
	deb := debounce.New(debounce.DefaultConfig())
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	a.process(deb, closedHands, t0)
	if got := a.worker.Pending(); got != 0 {
		t.Fatalf("Pending() after one closed frame = %d, want 0", got)
	}

	snap := a.process(deb, closedHands, t0.Add(100*time.Millisecond))
	if !snap.Fired || snap.Count != 2 {
		t.Fatalf("snapshot after threshold = %+v, want count 2 fired", snap)
	}
	if got := a.worker.Pending(); got != 1 {
		t.Fatalf("Pending() after threshold = %d, want 1", got)
	}

	// Still in the same episode.
	a.process(deb, closedHands, t0.Add(200*time.Millisecond))
	a.process(deb, closedHands, t0.Add(300*time.Millisecond))
	if got := a.worker.Pending(); got != 1 {
		t.Errorf("Pending() within episode = %d, want 1", got)
	}

	// A gap longer than the window ends the episode.
	snap = a.process(deb, openHands, t0.Add(1500*time.Millisecond))
	if snap.Count != 0 || snap.Fired {
		t.Fatalf("snapshot after expiry = %+v, want empty and armed", snap)
	}

	a.process(deb, closedHands, t0.Add(1600*time.Millisecond))
	a.process(deb, closedHands, t0.Add(1700*time.Millisecond))
	if got := a.worker.Pending(); got != 2 {
		t.Errorf("Pending() after second episode = %d, want 2", got)
	}

	if got := testutil.ToFloat64(a.metrics.AlertsTriggered); got != 2 {
		t.Errorf("alerts_triggered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.metrics.FramesProcessed); got != 7 {
		t.Errorf("frames_processed = %v, want 7", got)
	}
	if got := testutil.ToFloat64(a.metrics.FramesClosed); got != 6 {
		t.Errorf("frames_closed = %v, want 6", got)
	}
}

func TestApp_Process_OpenHandsNeverAlert(t *testing.T) {
	a := newTestApp(t, nil)
	deb := debounce.New(debounce.Config{Threshold: 1, Window: time.Second})
	t0 := time.Now()

	for i := 0; i < 20; i++ {
		a.process(deb, openHands, t0.Add(time.Duration(i)*50*time.Millisecond))
	}
	a.process(deb, nil, t0.Add(2*time.Second))

	if got := a.worker.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
	if got := testutil.ToFloat64(a.metrics.FramesClosed); got != 0 {
		t.Errorf("frames_closed = %v, want 0", got)
	}
}

func TestApp_Process_AnyClosedHandCounts(t *testing.T) {
	a := newTestApp(t, nil)
	deb := debounce.New(debounce.Config{Threshold: 1, Window: time.Second})

	hands := []detector.HandLandmarks{detector.OpenPalmLandmarks(), detector.ClosedFistLandmarks()}
	snap := a.process(deb, hands, time.Now())

	if snap.Count != 1 {
		t.Errorf("Count = %d, want 1 for a frame with two hands", snap.Count)
	}
	st := a.Snapshot()
	if st.Hands != 2 || !st.Closed {
		t.Errorf("status hands=%d closed=%v, want 2 true", st.Hands, st.Closed)
	}
}

func TestApp_Process_QueueFullDropsAlert(t *testing.T) {
	a := newTestApp(t, nil)
	t0 := time.Now()

	// Each fresh debouncer fires on its first closed frame.
	for i := 0; i < a.settings.Alert.QueueSize+2; i++ {
		deb := debounce.New(debounce.Config{Threshold: 1, Window: time.Second})
		a.process(deb, closedHands, t0)
	}

	if got := a.worker.Pending(); got != a.settings.Alert.QueueSize {
		t.Errorf("Pending() = %d, want %d", got, a.settings.Alert.QueueSize)
	}
	if got := testutil.ToFloat64(a.metrics.AlertsDropped); got != 2 {
		t.Errorf("alerts_dropped = %v, want 2", got)
	}
}

func TestApp_Subscribe(t *testing.T) {
	a := newTestApp(t, nil)
	ch, unsubscribe := a.Subscribe()
	defer unsubscribe()

	deb := debounce.New(debounce.DefaultConfig())
	a.process(deb, closedHands, time.Now())

	select {
	case st := <-ch:
		if st.Debounce.Count != 1 {
			t.Errorf("published count = %d, want 1", st.Debounce.Count)
		}
		if !st.Closed {
			t.Error("published status should report a closed hand")
		}
	case <-time.After(time.Second):
		t.Fatal("no status published")
	}
}

func TestApp_Subscribe_SlowReaderGetsNewest(t *testing.T) {
	a := newTestApp(t, nil)
	ch, unsubscribe := a.Subscribe()
	defer unsubscribe()

	deb := debounce.New(debounce.Config{Threshold: 10, Window: time.Second})
	t0 := time.Now()
	for i := 0; i < 5; i++ {
		a.process(deb, closedHands, t0.Add(time.Duration(i)*10*time.Millisecond))
	}

	st := <-ch
	if st.Debounce.Count != 5 {
		t.Errorf("Count = %d, want newest value 5", st.Debounce.Count)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected queued status %+v", extra)
	default:
	}
}

func TestApp_Reset_NotRunning(t *testing.T) {
	a := newTestApp(t, nil)
	if err := a.Reset(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Reset() error = %v, want ErrNotRunning", err)
	}
}

func TestApp_Start_CameraError(t *testing.T) {
	a := newTestApp(t, nil)
	a.camera.SetOpenError(errors.New("device busy"))

	err := a.Start()
	if err == nil {
		t.Fatal("Start() should fail when the camera cannot be opened")
	}
	if !strings.Contains(err.Error(), "camera not accessible") {
		t.Errorf("Start() error = %v", err)
	}
	if a.Running() {
		t.Error("Running() = true after failed start")
	}
	if st := a.Snapshot(); !strings.Contains(st.LastError, "device busy") {
		t.Errorf("LastError = %q, want camera error", st.LastError)
	}
}

func TestApp_StopWhenIdle(t *testing.T) {
	a := newTestApp(t, nil)
	a.Stop()
	if a.Running() {
		t.Error("Running() = true")
	}
}

func TestApp_DebounceConfig(t *testing.T) {
	t.Run("defaults without store", func(t *testing.T) {
		a := newTestApp(t, nil)
		dc, err := a.DebounceConfig()
		if err != nil {
			t.Fatalf("DebounceConfig() error = %v", err)
		}
		if dc != debounce.DefaultConfig() {
			t.Errorf("DebounceConfig() = %+v, want defaults", dc)
		}
		if err := a.UpdateDebounceConfig(debounce.DefaultConfig()); err == nil {
			t.Error("UpdateDebounceConfig() without store should fail")
		}
	})

	t.Run("stored overrides", func(t *testing.T) {
		a := newTestApp(t, newTestStore(t))
		want := debounce.Config{Threshold: 4, Window: 1500 * time.Millisecond}
		if err := a.UpdateDebounceConfig(want); err != nil {
			t.Fatalf("UpdateDebounceConfig() error = %v", err)
		}
		got, err := a.DebounceConfig()
		if err != nil {
			t.Fatalf("DebounceConfig() error = %v", err)
		}
		if got != want {
			t.Errorf("DebounceConfig() = %+v, want %+v", got, want)
		}
	})

	t.Run("invalid update rejected", func(t *testing.T) {
		a := newTestApp(t, newTestStore(t))
		if err := a.UpdateDebounceConfig(debounce.Config{Threshold: 0, Window: time.Second}); err == nil {
			t.Error("UpdateDebounceConfig() with threshold 0 should fail")
		}
	})

	t.Run("corrupt stored value", func(t *testing.T) {
		s := newTestStore(t)
		a := newTestApp(t, s)
		if err := s.Settings().Set(SettingThreshold, "5"); err != nil {
			t.Fatal(err)
		}
		if err := s.Settings().Set(SettingWindow, "soon"); err != nil {
			t.Fatal(err)
		}
		dc, err := a.DebounceConfig()
		if err == nil {
			t.Error("DebounceConfig() should reject an unparsable window")
		}
		if dc != a.settings.DebounceConfig() {
			t.Errorf("DebounceConfig() = %+v, want the configured base %+v", dc, a.settings.DebounceConfig())
		}
	})
}

func TestApp_Tick_FailuresLeaveDebouncerUntouched(t *testing.T) {
	a := newTestApp(t, nil)

	frame := testdata.NewFrame(testdata.FrameWidth, testdata.FrameHeight)
	defer frame.Close()
	a.camera.SetFrames([]*gocv.Mat{frame})
	if err := a.camera.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.camera.Close()
	a.detector.SetHands(closedHands)

	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return t0 }

	deb := debounce.New(debounce.Config{Threshold: 3, Window: time.Second})
	a.tick(deb)
	before := deb.Snapshot()
	if before.Count != 1 {
		t.Fatalf("count after one closed frame = %d, want 1", before.Count)
	}

	t.Run("read error", func(t *testing.T) {
		calls := a.detector.Calls()
		a.camera.SetReadError(errors.New("device unplugged"))
		defer a.camera.SetReadError(nil)

		a.tick(deb)

		if got := deb.Snapshot(); got != before {
			t.Errorf("snapshot = %+v, want unchanged %+v", got, before)
		}
		if got := testutil.ToFloat64(a.metrics.ReadErrors); got != 1 {
			t.Errorf("read_errors = %v, want 1", got)
		}
		if got := testutil.ToFloat64(a.metrics.FramesProcessed); got != 1 {
			t.Errorf("frames_processed = %v, want 1", got)
		}
		if a.detector.Calls() != calls {
			t.Error("detector should not run without a frame")
		}
	})

	t.Run("detect error", func(t *testing.T) {
		a.detector.SetError(errors.New("landmark service crashed"))
		defer a.detector.SetError(nil)

		a.tick(deb)

		if got := deb.Snapshot(); got != before {
			t.Errorf("snapshot = %+v, want unchanged %+v", got, before)
		}
		if got := testutil.ToFloat64(a.metrics.DetectErrors); got != 1 {
			t.Errorf("detect_errors = %v, want 1", got)
		}
		if got := testutil.ToFloat64(a.metrics.FramesProcessed); got != 1 {
			t.Errorf("frames_processed = %v, want 1", got)
		}
	})

	a.tick(deb)
	if got := deb.Snapshot().Count; got != 2 {
		t.Errorf("count after recovery = %d, want 2", got)
	}
}
