// Package tdp defines the Tuner/Demux/Player hardware abstraction the
// stream controller is built against. It is an external contract: this
// package declares interfaces and callback types only, and ships one
// in-memory Fake (tdp/fake.go) implementation used by every other
// package's tests in place of real hardware.
package tdp

import "context"

// Modulation is the RF modulation scheme for a transponder.
type Modulation int

const (
	ModulationUnknown Modulation = iota
	ModulationQPSK
	ModulationQAM64
	ModulationQAM256
	ModulationOFDM
)

// LockStatus is reported once, asynchronously, after Tuner.Lock.
type LockStatus int

const (
	StatusNotLocked LockStatus = iota
	StatusLocked
)

// LockCallback is invoked from a TDP-owned goroutine when a tune attempt
// completes. Implementations must assume concurrent delivery.
type LockCallback func(status LockStatus)

// SectionCallback is invoked from a TDP-owned goroutine once per matching
// complete PSI section. buf is only valid for the duration of the call;
// callers that need to retain its content must copy it.
type SectionCallback func(buf []byte)

// FilterHandle identifies an installed demux section filter.
type FilterHandle uint32

// StreamHandle identifies an open elementary-stream pipeline (video or
// audio).
type StreamHandle uint32

// Tuner locks the RF front-end to a transponder. Lock is non-blocking;
// completion is reported via the registered LockCallback.
type Tuner interface {
	Init() error
	Deinit() error
	RegisterLockCallback(cb LockCallback) error
	Lock(ctx context.Context, frequencyHz uint32, bandwidthHz uint32, mod Modulation) error
}

// Demux installs PID/table_id section filters and delivers matching PSI
// sections to a registered callback. Only one filter may be installed at
// a time (see coordinator single-filter invariant).
type Demux interface {
	SetFilter(pid uint16, tableID uint8) (FilterHandle, error)
	FreeFilter(h FilterHandle) error
	RegisterSectionCallback(cb SectionCallback) error
	UnregisterSectionCallback() error
}

// Player owns the source, elementary-stream pipelines, and volume. The
// demux is considered part of the player, per the hardware contract: a
// player handle must exist before a source can be opened.
type Player interface {
	Init() (playerHandle uint32, err error)
	Deinit() error
	SourceOpen() (uint32, error)
	SourceClose(source uint32) error
	StreamCreate(source uint32, pid uint16, codecTag int) (StreamHandle, error)
	StreamRemove(h StreamHandle) error
	VolumeGet() (uint32, error)
	VolumeSet(v uint32) error
	VolumeMax() uint32
}

// Hardware groups the three TDP subsystems behind one handle, the shape
// the controller façade is constructed against. Fake implements this
// directly via its Tuner/Demux/Player accessor methods.
type Hardware interface {
	Tuner() Tuner
	Demux() Demux
	Player() Player
}
