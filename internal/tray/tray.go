// Package tray provides the system tray control shell for sosfinder.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/sosfinder/internal/app"
)

// Controller is the part of the app the tray drives.
type Controller interface {
	Start() error
	Stop()
	Running() bool
	Snapshot() app.Status
	Subscribe() (<-chan app.Status, func())
}

// Tray represents the system tray application.
type Tray struct {
	ctrl        Controller
	onDashboard func()
	onQuit      func()
	onError     func(error)
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuCount    *systray.MenuItem
	menuState    *systray.MenuItem
	menuDispatch *systray.MenuItem

	unsubscribe func()
}

// New creates a new Tray driving ctrl.
func New(ctrl Controller) *Tray {
	return &Tray{ctrl: ctrl}
}

// OnDashboard sets the callback function to be called when the dashboard menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// OnError sets the callback for start failures triggered from the menu.
func (t *Tray) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, for example on a signal.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("SOS")
	systray.SetTooltip("sosfinder SOS gesture detector")

	l := labelsFor(t.ctrl.Snapshot())

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(l.toggle, "Start or stop detection")
	systray.AddSeparator()

	t.menuCount = systray.AddMenuItem(l.count, "Closed-hand samples in the current window")
	t.menuCount.Disable()
	t.menuState = systray.AddMenuItem(l.state, "Alert state")
	t.menuState.Disable()
	t.menuDispatch = systray.AddMenuItem(l.dispatch, "Last alert delivery")
	t.menuDispatch.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit sosfinder")

	updates, unsubscribe := t.ctrl.Subscribe()
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	go func() {
		for st := range updates {
			t.apply(labelsFor(st))
		}
	}()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handleToggle starts or stops detection.
func (t *Tray) handleToggle() {
	if t.ctrl.Running() {
		t.ctrl.Stop()
		return
	}

	if err := t.ctrl.Start(); err != nil {
		t.mu.RLock()
		callback := t.onError
		t.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}

	systray.Quit()
}

func (t *Tray) apply(l labels) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuToggle == nil {
		return
	}
	t.menuToggle.SetTitle(l.toggle)
	t.menuCount.SetTitle(l.count)
	t.menuState.SetTitle(l.state)
	t.menuDispatch.SetTitle(l.dispatch)
	systray.SetTitle(l.title)
}

// labels are the menu titles for one status.
type labels struct {
	title    string
	toggle   string
	count    string
	state    string
	dispatch string
}

func labelsFor(st app.Status) labels {
	l := labels{
		title:    "SOS",
		toggle:   "▶ Start Detection",
		count:    fmt.Sprintf("Count: %d", st.Debounce.Count),
		state:    "Status: Idle",
		dispatch: "Last alert: none",
	}

	if st.Running {
		l.toggle = "■ Stop Detection"
		l.state = "Status: Armed"
	}
	if st.Debounce.Fired {
		l.state = "Status: SOS"
		l.title = "SOS!"
	}
	if !st.Running && st.LastError != "" {
		l.state = "Error: " + st.LastError
	}

	if d := st.LastDispatch; d != nil {
		if d.Success {
			l.dispatch = fmt.Sprintf("Last alert: sent via %s at %s", d.Channel, d.At.Format("15:04:05"))
		} else {
			l.dispatch = fmt.Sprintf("Last alert: %s failed: %s", d.Channel, d.Error)
		}
	}

	return l
}
