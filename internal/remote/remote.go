// Package remote dispatches remote-control key events to the controller
// façade. Interpreting raw remote scan codes into Keys is out of scope;
// this package starts from an already-decoded KeyEvent and owns only
// the timeout/dispatch logic: multi-digit channel number accumulation
// with an inactivity timeout, and debouncing of repeat volume keys.
package remote

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Key identifies a decoded remote key. Scan-code-to-Key translation is
// the external collaborator's job.
type Key int

const (
	KeyUnknown Key = iota
	KeyDigit0
	KeyDigit1
	KeyDigit2
	KeyDigit3
	KeyDigit4
	KeyDigit5
	KeyDigit6
	KeyDigit7
	KeyDigit8
	KeyDigit9
	KeyOK
	KeyChannelUp
	KeyChannelDown
	KeyVolumeUp
	KeyVolumeDown
	KeyMute
	KeyExit
)

// KeyEvent is one decoded key press delivered by the remote
// collaborator.
type KeyEvent struct {
	Key Key
}

// Controller is the subset of internal/controller's façade the
// dispatcher drives. Defined at its interface so this package never
// imports internal/controller directly (the dependency runs the other
// way: cmd/dtvstb wires both together).
type Controller interface {
	PlayChannel(number uint16) error
	Next() error
	Previous() error
	VolumeUp() error
	VolumeDown() error
	MuteToggle() error
}

// digitEntryTimeout bounds how long the dispatcher waits for the next
// digit before committing the pending channel number: a one-shot timer
// reset on every digit, built on time.AfterFunc instead of a POSIX
// timer_t.
const digitEntryTimeout = 2 * time.Second

// maxDigits bounds multi-digit entry so a channel number always commits
// even without a pause (a 5-digit channel number is already far beyond
// any catalog this client will build).
const maxDigits = 4

// volumeRepeatRate caps how often a held volume-up/down key is allowed
// to reach the controller, protecting it from a stuck or bouncing
// remote.
const volumeRepeatRate = 10 // events/second

// Dispatcher turns KeyEvents into Controller calls, owning the
// multi-digit channel entry timer and the volume-repeat limiters.
type Dispatcher struct {
	ctrl Controller
	show func(pending int) // presenter hook: show_channel_number while entry is in progress

	mu      sync.Mutex
	pending int
	digits  int
	timer   *time.Timer

	volUpLimiter   *rate.Limiter
	volDownLimiter *rate.Limiter
}

// NewDispatcher returns a Dispatcher driving ctrl. show, if non-nil, is
// called with the in-progress pending channel number after each digit
// that does not itself commit the entry (wiring the multi-digit entry
// banner); it may be nil in tests.
func NewDispatcher(ctrl Controller, show func(pending int)) *Dispatcher {
	return &Dispatcher{
		ctrl:           ctrl,
		show:           show,
		volUpLimiter:   rate.NewLimiter(rate.Limit(volumeRepeatRate), 1),
		volDownLimiter: rate.NewLimiter(rate.Limit(volumeRepeatRate), 1),
	}
}

// Dispatch routes one key event to the controller.
func (d *Dispatcher) Dispatch(ev KeyEvent) error {
	if digit, ok := digitValue(ev.Key); ok {
		d.pushDigit(digit)
		return nil
	}

	switch ev.Key {
	case KeyOK:
		return d.commitPending()
	case KeyChannelUp:
		d.resetPending()
		return d.ctrl.Next()
	case KeyChannelDown:
		d.resetPending()
		return d.ctrl.Previous()
	case KeyVolumeUp:
		if !d.volUpLimiter.Allow() {
			return nil
		}
		return d.ctrl.VolumeUp()
	case KeyVolumeDown:
		if !d.volDownLimiter.Allow() {
			return nil
		}
		return d.ctrl.VolumeDown()
	case KeyMute:
		return d.ctrl.MuteToggle()
	default:
		return nil
	}
}

func digitValue(k Key) (int, bool) {
	if k >= KeyDigit0 && k <= KeyDigit9 {
		return int(k - KeyDigit0), true
	}
	return 0, false
}

// pushDigit appends a digit to the pending channel number, (re)starting
// the inactivity timer and committing immediately once maxDigits digits
// have accumulated.
func (d *Dispatcher) pushDigit(digit int) {
	d.mu.Lock()
	d.pending = d.pending*10 + digit
	d.digits++
	pending := d.pending
	digits := d.digits

	if d.timer != nil {
		d.timer.Stop()
	}
	if digits >= maxDigits {
		d.timer = nil
		d.mu.Unlock()
		d.commitPending()
		return
	}
	d.timer = time.AfterFunc(digitEntryTimeout, func() {
		d.commitPending()
	})
	d.mu.Unlock()

	if d.show != nil {
		d.show(pending)
	}
}

// commitPending plays the accumulated channel number and clears entry
// state. It is a no-op if no digits are pending (e.g. the timer fires
// after OK already committed).
func (d *Dispatcher) commitPending() error {
	d.mu.Lock()
	if d.digits == 0 {
		d.mu.Unlock()
		return nil
	}
	number := d.pending
	d.resetPendingLocked()
	d.mu.Unlock()

	return d.ctrl.PlayChannel(uint16(number))
}

func (d *Dispatcher) resetPending() {
	d.mu.Lock()
	d.resetPendingLocked()
	d.mu.Unlock()
}

func (d *Dispatcher) resetPendingLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = 0
	d.digits = 0
}
