package tdp

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// sectionScript describes how the Fake should respond when a filter is
// installed for a given (pid, table_id): either delay-then-deliver buf,
// or never deliver (to provoke an AcquisitionTimeout in the caller).
type sectionScript struct {
	delay   time.Duration
	buf     []byte
	deliver bool
}

type filterKey struct {
	pid     uint16
	tableID uint8
}

// Fake is an in-memory, scriptable stand-in for the Tuner/Demux/Player
// hardware used by every other package's tests. It enforces the
// single-filter invariant (SetFilter fails if a filter is already
// installed) so tests can catch a regression the same way a real demux
// chip would reject a second concurrent filter registration.
//
// Real hardware exposes Tuner, Demux, and Player as distinct subsystems;
// the Fake mirrors that split with three thin wrapper types (fakeTuner,
// fakeDemux, fakePlayer) sharing one state block, so each wrapper can
// satisfy its interface without name collisions between e.g. Tuner.Init
// and Player.Init.
type Fake struct {
	mu sync.Mutex

	volume    uint32
	volumeMax uint32

	lockCB    LockCallback
	sectionCB SectionCallback

	activeFilter   *filterKey
	nextFilter     FilterHandle
	nextStream     StreamHandle
	openStreams    map[StreamHandle]struct{}
	filterInstalls int // instrumentation for the single-filter-invariant test

	// LockResponder, when set, is invoked synchronously by Lock to decide
	// whether/when the lock callback fires; the callback itself is then
	// delivered off the caller's goroutine. Leaving it nil simulates a
	// tuner that never locks (timeout).
	LockResponder func(freq, bandwidth uint32, mod Modulation) (delay time.Duration, status LockStatus, fire bool)

	// Scripts maps (pid, table_id) to a canned section response installed
	// by SetFilter. Tests populate this before driving catalog build.
	Scripts map[filterKey]sectionScript

	// FailStreamCreate, if non-nil, is consulted by StreamCreate and can
	// force a TdpFailure-equivalent error for a given PID.
	FailStreamCreate func(pid uint16) error

	timers []*time.Timer
}

// NewFake returns a Fake with the given reported maximum volume.
func NewFake(volumeMax uint32) *Fake {
	return &Fake{
		volumeMax:   volumeMax,
		volume:      volumeMax / 2,
		openStreams: map[StreamHandle]struct{}{},
		Scripts:     map[filterKey]sectionScript{},
	}
}

// Tuner, Demux, Player return interface-typed views onto the shared fake
// hardware state.
func (f *Fake) Tuner() Tuner   { return fakeTuner{f} }
func (f *Fake) Demux() Demux   { return fakeDemux{f} }
func (f *Fake) Player() Player { return fakePlayer{f} }

// ScriptSection arranges for SetFilter(pid, tableID) to deliver buf to the
// registered section callback after delay. Call ScriptNoSection instead to
// exercise a timeout.
func (f *Fake) ScriptSection(pid uint16, tableID uint8, delay time.Duration, buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts[filterKey{pid, tableID}] = sectionScript{delay: delay, buf: buf, deliver: true}
}

// ScriptNoSection arranges for SetFilter(pid, tableID) to never deliver,
// so the caller's acquisition wait times out.
func (f *Fake) ScriptNoSection(pid uint16, tableID uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Scripts[filterKey{pid, tableID}] = sectionScript{deliver: false}
}

// FilterInstallCount returns how many times SetFilter succeeded, for tests
// that assert on catalog-build shape.
func (f *Fake) FilterInstallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterInstalls
}

// OpenStreamCount returns the number of currently open stream handles.
func (f *Fake) OpenStreamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.openStreams)
}

// fakeTuner implements Tuner over the shared Fake state.
type fakeTuner struct{ f *Fake }

func (t fakeTuner) Init() error   { return nil }
func (t fakeTuner) Deinit() error { return nil }

func (t fakeTuner) RegisterLockCallback(cb LockCallback) error {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	t.f.lockCB = cb
	return nil
}

func (t fakeTuner) Lock(ctx context.Context, frequencyHz uint32, bandwidthHz uint32, mod Modulation) error {
	f := t.f
	f.mu.Lock()
	responder := f.LockResponder
	cb := f.lockCB
	f.mu.Unlock()
	if responder == nil || cb == nil {
		return nil // never locks; caller's coordinator wait will time out
	}
	delay, status, fire := responder(frequencyHz, bandwidthHz, mod)
	if !fire {
		return nil
	}
	if delay <= 0 {
		go cb(status)
		return nil
	}
	f.mu.Lock()
	f.timers = append(f.timers, time.AfterFunc(delay, func() { cb(status) }))
	f.mu.Unlock()
	return nil
}

// fakeDemux implements Demux over the shared Fake state.
type fakeDemux struct{ f *Fake }

func (d fakeDemux) SetFilter(pid uint16, tableID uint8) (FilterHandle, error) {
	f := d.f
	f.mu.Lock()
	if f.activeFilter != nil {
		prev := *f.activeFilter
		f.mu.Unlock()
		return 0, fmt.Errorf("tdp: filter already installed for pid=0x%04x table_id=0x%02x", prev.pid, prev.tableID)
	}
	f.nextFilter++
	h := f.nextFilter
	key := filterKey{pid, tableID}
	f.activeFilter = &key
	f.filterInstalls++
	script, scripted := f.Scripts[key]
	cb := f.sectionCB
	f.mu.Unlock()

	if scripted && script.deliver && cb != nil {
		deliver := func() { cb(script.buf) }
		if script.delay <= 0 {
			go deliver()
		} else {
			f.mu.Lock()
			f.timers = append(f.timers, time.AfterFunc(script.delay, deliver))
			f.mu.Unlock()
		}
	}
	return h, nil
}

func (d fakeDemux) FreeFilter(h FilterHandle) error {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.f.activeFilter = nil
	return nil
}

func (d fakeDemux) RegisterSectionCallback(cb SectionCallback) error {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.f.sectionCB = cb
	return nil
}

func (d fakeDemux) UnregisterSectionCallback() error {
	d.f.mu.Lock()
	defer d.f.mu.Unlock()
	d.f.sectionCB = nil
	return nil
}

// fakePlayer implements Player over the shared Fake state.
type fakePlayer struct{ f *Fake }

func (p fakePlayer) Init() (uint32, error)     { return 1, nil }
func (p fakePlayer) Deinit() error             { return nil }
func (p fakePlayer) SourceOpen() (uint32, error) { return 1, nil }
func (p fakePlayer) SourceClose(source uint32) error { return nil }

func (p fakePlayer) StreamCreate(source uint32, pid uint16, codecTag int) (StreamHandle, error) {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailStreamCreate != nil {
		if err := f.FailStreamCreate(pid); err != nil {
			return 0, err
		}
	}
	f.nextStream++
	h := f.nextStream
	f.openStreams[h] = struct{}{}
	return h, nil
}

func (p fakePlayer) StreamRemove(h StreamHandle) error {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.openStreams, h)
	return nil
}

func (p fakePlayer) VolumeGet() (uint32, error) {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, nil
}

func (p fakePlayer) VolumeSet(v uint32) error {
	f := p.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (p fakePlayer) VolumeMax() uint32 { return p.f.volumeMax }
