// Package tray provides a system tray menu for driving a measurement session
// without the preview window.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handruler/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onCalibrate func()
	onMeasure   func()
	onSave      func()
	onQuit      func()
	mu          sync.RWMutex

	status session.Status

	// Menu items stored for later updates
	menuStatus    *systray.MenuItem
	menuCalibrate *systray.MenuItem
	menuMeasure   *systray.MenuItem
	menuSave      *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnCalibrate sets the callback for the Calibrate item.
func (t *Tray) OnCalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCalibrate = fn
}

// OnMeasure sets the callback for the Start measuring item.
func (t *Tray) OnMeasure(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMeasure = fn
}

// OnSave sets the callback for the Save item.
func (t *Tray) OnSave(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSave = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, which makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handruler")
	systray.SetTooltip("handruler hand measurement")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(StatusTitle(t.status), "Session status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuCalibrate = systray.AddMenuItem("Calibrate", "Calibrate against the card in the box")
	t.menuMeasure = systray.AddMenuItem("Start measuring", "Measure the next hand")
	t.menuSave = systray.AddMenuItem("Save", "Save the stable measurements")
	t.applyLocked()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handruler")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuCalibrate.ClickedCh:
				t.call(func() func() { return t.onCalibrate })
			case <-t.menuMeasure.ClickedCh:
				t.call(func() func() { return t.onMeasure })
			case <-t.menuSave.ClickedCh:
				t.call(func() func() { return t.onSave })
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// call runs the callback chosen under the read lock, outside the lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.call(func() func() { return t.onQuit })
	systray.Quit()
}

// SetStatus updates the status line and enables the actions that are
// valid in the new state.
func (t *Tray) SetStatus(status session.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == status {
		return
	}
	t.status = status
	t.applyLocked()
}

// Status returns the last status given to SetStatus.
func (t *Tray) Status() session.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tray) applyLocked() {
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(StatusTitle(t.status))
	enabled := Actions(t.status.State)
	setEnabled(t.menuMeasure, enabled.Measure)
	setEnabled(t.menuSave, enabled.Save)
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}

// Available lists which menu actions make sense in a state. Calibrate is
// always available.
type Available struct {
	Measure bool
	Save    bool
}

// Actions returns the actions available in state.
func Actions(state session.State) Available {
	switch state {
	case session.CalibratedIdle:
		return Available{Measure: true}
	case session.Measuring:
		return Available{Save: true}
	}
	return Available{}
}

// StatusTitle is the text of the status menu line.
func StatusTitle(status session.Status) string {
	switch status.State {
	case session.Uncalibrated:
		return "Not calibrated"
	case session.CalibratedIdle:
		return fmt.Sprintf("Ready for hand #%d", status.HandIndex)
	case session.Measuring:
		if !status.HandDetected {
			return fmt.Sprintf("Hand #%d: no hand in view", status.HandIndex)
		}
		return fmt.Sprintf("Hand #%d: %d/%d stable", status.HandIndex, status.Stable, status.Total)
	}
	return status.State.String()
}
