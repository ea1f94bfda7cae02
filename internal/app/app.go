// Package app runs the SOS detection session: camera frames in, debounced
// alerts out.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/sosfinder/internal/alert"
	"github.com/ayusman/sosfinder/internal/capture"
	"github.com/ayusman/sosfinder/internal/config"
	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/detector"
	"github.com/ayusman/sosfinder/internal/gesture"
	"github.com/ayusman/sosfinder/internal/metrics"
	"github.com/ayusman/sosfinder/internal/plugin"
	"github.com/ayusman/sosfinder/internal/store"
)

// Settings keys persisted in the store and applied at the next session start.
const (
	SettingThreshold = "debounce.threshold"
	SettingWindow    = "debounce.window"
)

// ErrNotRunning is returned by operations that need an active session.
var ErrNotRunning = errors.New("detection is not running")

// Config holds the application's collaborators. Camera and Detector are
// built from Settings when nil.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// Clock supplies sample timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// App owns the camera, detector and alert worker, and runs at most one
// detection session at a time.
type App struct {
	settings  *config.Config
	store     *store.Store
	camera    capture.Camera
	detector  detector.Detector
	predicate detector.Predicate
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	worker     *alert.Worker
	reloadMu   sync.Mutex

	// session lifecycle, guarded by mu
	mu           sync.Mutex
	deb          *debounce.Debouncer
	stopCh       chan struct{}
	doneCh       chan struct{}
	resetCh      chan struct{}
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	status statusBoard
	frames frameBuffer
}

// New creates an App. It never opens the camera; see Start.
func New(cfg Config) *App {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}

	a := &App{
		settings:   settings,
		store:      cfg.Store,
		camera:     cfg.Camera,
		detector:   cfg.Detector,
		metrics:    m,
		logger:     logger.With("component", "app"),
		now:        now,
		pluginMgr:  plugin.NewManager(settings.Plugins.Dir, logger),
		pluginExec: plugin.NewExecutor(settings.Alert.Timeout),
		resetCh:    make(chan struct{}, 1),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(settings.Camera.Device)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(settings.DetectorConfig()); err == nil {
			a.detector = mp
			a.logger.Info("using MediaPipe hand detection")
		} else {
			a.logger.Warn("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	switch settings.Pose.Predicate {
	case config.PredicateFistTemplate:
		a.predicate = gesture.FistTemplatePredicate(settings.Pose.Tolerance)
	default:
		a.predicate = detector.ThumbHidden
	}

	a.worker = alert.NewWorker(alert.WorkerConfig{
		QueueSize: settings.Alert.QueueSize,
		Timeout:   settings.Alert.Timeout,
	}, logger)
	a.worker.SetMetrics(m)
	if a.store != nil {
		a.worker.SetRecorder(a.store.Alerts())
	}
	a.worker.OnResult(a.recordDispatch)

	a.status.init(a.defaultDebounceConfig())
	return a
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// ReloadChannels rebuilds the alert dispatchers from the stored channels.
// With no store, alerts go to the log. Deliveries in flight finish on the
// previous dispatchers, which are closed afterwards.
func (a *App) ReloadChannels() error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	var channels []*store.Channel
	if a.store != nil {
		var err error
		channels, err = a.store.Channels().ListEnabled()
		if err != nil {
			return fmt.Errorf("load channels: %w", err)
		}
	}

	a.worker.SetDispatchers(alert.BuildAll(channels, a.alertDeps()))
	return nil
}

func (a *App) alertDeps() alert.Deps {
	return alert.Deps{
		Logger:   a.logger,
		Plugins:  a.pluginMgr,
		Executor: a.pluginExec,
	}
}

// Start opens the camera and begins a detection session with a fresh
// debouncer. Starting a running session is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		a.status.setError(err)
		a.logger.Error("camera not accessible", "error", err)
		return fmt.Errorf("camera not accessible: %w", err)
	}
	a.camera.SetFPS(a.settings.Camera.FPS)

	dc, err := a.DebounceConfig()
	if err != nil {
		a.logger.Warn("ignoring stored debounce settings", "error", err)
	}

	if err := a.ReloadChannels(); err != nil {
		a.logger.Error("failed to load alert channels", "error", err)
	}
	a.startWorker()

	// Drop a reset requested while stopped.
	select {
	case <-a.resetCh:
	default:
	}

	a.deb = debounce.New(dc)
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.status.start(a.deb.Snapshot())

	go a.runPipeline(a.deb, a.stopCh, a.doneCh)

	a.logger.Info("detection started", "threshold", dc.Threshold, "window", dc.Window)
	return nil
}

// Stop ends the session, waits for the loop to exit and resets the
// debouncer. Stopping an idle app is a no-op.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh == nil {
		return
	}

	close(a.stopCh)
	<-a.doneCh
	a.stopCh = nil
	a.doneCh = nil

	if err := a.camera.Close(); err != nil {
		a.logger.Error("error closing camera", "error", err)
	}

	a.deb.Reset()
	snap := a.deb.Snapshot()
	a.metrics.SetDebounce(snap.Count, snap.Fired)
	a.status.stop(snap)
	a.frames.clear()

	a.logger.Info("detection stopped")
}

// Reset asks the running session to clear its window and re-arm. The
// loop applies it between ticks.
func (a *App) Reset() error {
	if !a.Running() {
		return ErrNotRunning
	}
	select {
	case a.resetCh <- struct{}{}:
	default:
	}
	return nil
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh != nil
}

// Close stops the session and the alert worker and releases the detector
// and alert channels.
func (a *App) Close() error {
	a.Stop()

	a.mu.Lock()
	if a.workerCancel != nil {
		a.workerCancel()
		<-a.workerDone
		a.workerCancel = nil
	}
	a.mu.Unlock()

	a.worker.Close()
	return a.detector.Close()
}

// startWorker runs the alert worker for the app's lifetime. Alerts already
// queued when a session stops are still delivered. Called with mu held.
func (a *App) startWorker() {
	if a.workerCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	a.workerDone = make(chan struct{})
	go func() {
		defer close(a.workerDone)
		a.worker.Run(ctx)
	}()
}

func (a *App) defaultDebounceConfig() debounce.Config {
	return a.settings.DebounceConfig()
}

// DebounceConfig returns the configuration the next session will use:
// file and env settings overlaid with stored overrides. When the overrides
// are unusable it returns the file and env settings with the error.
func (a *App) DebounceConfig() (debounce.Config, error) {
	base := a.defaultDebounceConfig()
	if a.store == nil {
		return base, nil
	}

	all, err := a.store.Settings().All()
	if err != nil {
		return base, err
	}

	dc := base
	if v, ok := all[SettingThreshold]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, fmt.Errorf("%s: %w", SettingThreshold, err)
		}
		dc.Threshold = n
	}
	if v, ok := all[SettingWindow]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return base, fmt.Errorf("%s: %w", SettingWindow, err)
		}
		dc.Window = d
	}
	if err := dc.Validate(); err != nil {
		return base, err
	}
	return dc, nil
}

// UpdateDebounceConfig validates and persists overrides for the next session.
func (a *App) UpdateDebounceConfig(dc debounce.Config) error {
	if err := dc.Validate(); err != nil {
		return err
	}
	if a.store == nil {
		return errors.New("no store configured")
	}
	if err := a.store.Settings().Set(SettingThreshold, strconv.Itoa(dc.Threshold)); err != nil {
		return err
	}
	return a.store.Settings().Set(SettingWindow, dc.Window.String())
}

// Snapshot returns the current session status. Safe for concurrent use.
func (a *App) Snapshot() Status {
	return a.status.get()
}

// Subscribe returns a channel receiving the latest status after each
// change, and a function to unsubscribe. Slow readers only see the newest
// status.
func (a *App) Subscribe() (<-chan Status, func()) {
	return a.status.subscribe()
}

// Frame returns the latest annotated JPEG and its sequence number. The
// pipeline only renders frames while at least one viewer is attached.
func (a *App) Frame() ([]byte, uint64) {
	return a.frames.get()
}

// AttachViewer registers a preview consumer; call the returned function
// to detach.
func (a *App) AttachViewer() func() {
	return a.frames.attach()
}

// AlertDeps returns what alert channels need, for validating new channels.
func (a *App) AlertDeps() alert.Deps {
	return a.alertDeps()
}

// Metrics returns the metrics sink.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}
