package app

import (
	"time"

	"github.com/ayusman/sosfinder/internal/alert"
	"github.com/ayusman/sosfinder/internal/debounce"
	"github.com/ayusman/sosfinder/internal/detector"
	"github.com/ayusman/sosfinder/internal/overlay"
)

// runPipeline is the detection loop for one session. It owns deb until done
// is closed.
//
// Each tick reads a frame, detects hands, reduces them to one closed/not
// closed sample and feeds the debouncer. Reset requests are applied between
// ticks so the debouncer never needs a lock.
func (a *App) runPipeline(deb *debounce.Debouncer, stop, done chan struct{}) {
	defer close(done)

	fps := a.settings.Camera.FPS
	if fps < 1 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-a.resetCh:
			deb.Reset()
			snap := deb.Snapshot()
			a.metrics.SetDebounce(snap.Count, snap.Fired)
			a.status.tick(snap, 0, false)
			a.logger.Info("debouncer reset")
		case <-ticker.C:
			a.tick(deb)
		}
	}
}

// tick processes a single frame. Read and detection failures skip the frame
// and leave the debouncer untouched.
func (a *App) tick(deb *debounce.Debouncer) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.metrics.ReadErrors.Inc()
		a.logger.Debug("frame read failed", "error", err)
		return
	}
	defer frame.Close()

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.metrics.DetectErrors.Inc()
		a.logger.Debug("hand detection failed", "error", err)
		return
	}

	snap := a.process(deb, hands, a.now())

	if !a.frames.watched() {
		return
	}
	overlay.Draw(frame, hands, snap)
	jpeg, err := overlay.EncodeJPEG(frame)
	if err != nil {
		a.logger.Debug("preview encode failed", "error", err)
		return
	}
	a.frames.set(jpeg)
}

// process feeds one frame's detections into the debouncer and hands any
// resulting alert to the worker.
func (a *App) process(deb *debounce.Debouncer, hands []detector.HandLandmarks, now time.Time) debounce.Snapshot {
	closed := detector.AnyClosed(hands, a.predicate)

	a.metrics.FramesProcessed.Inc()
	if closed {
		a.metrics.FramesClosed.Inc()
	}

	if ev := deb.Observe(debounce.Sample{Timestamp: now, Closed: closed}); ev != nil {
		al := alert.New(*ev, a.settings.Alert.Message)
		a.metrics.AlertsTriggered.Inc()
		a.logger.Warn("SOS detected", "alert_id", al.ID, "count", al.Count)
		// A full queue is logged and counted by the worker.
		_ = a.worker.Enqueue(al)
	}

	snap := deb.Snapshot()
	a.metrics.SetDebounce(snap.Count, snap.Fired)
	a.status.tick(snap, len(hands), closed)
	return snap
}
