package controller

import (
	"fmt"

	"github.com/snapetech/dtvstb/internal/playback"
	"github.com/snapetech/dtvstb/internal/psi"
)

// TdpFailure wraps any underlying TDP call that reported a non-OK
// result. It is always surfaced to the caller, never recovered locally.
type TdpFailure struct {
	Op  string
	Err error
}

func (e *TdpFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("controller: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("controller: %s failed", e.Op)
}

func (e *TdpFailure) Unwrap() error { return e.Err }

// AcquisitionTimeout wraps a PAT/PMT acquisition timeout from
// internal/catalog. It is surfaced to the caller, never retried.
type AcquisitionTimeout struct {
	Stage string
	Err   error
}

func (e *AcquisitionTimeout) Error() string {
	return fmt.Sprintf("controller: acquisition timeout during %s: %v", e.Stage, e.Err)
}

func (e *AcquisitionTimeout) Unwrap() error { return e.Err }

// ParseError re-exports internal/psi's parse error: a malformed PSI
// section is logged and that program is skipped; catalog build
// continues.
type ParseError = psi.ParseError

// OutOfRangeError re-exports internal/playback's out-of-range error: it
// is recovered locally by drawing a "no such channel" banner, state
// unchanged.
type OutOfRangeError = playback.OutOfRangeError

// ConfigurationError describes a PID or codec absent from a channel's
// PMT fold. It is handled silently at switch time (internal/playback
// omits the missing pipeline) and is exposed here only for diagnostics,
// never returned from a user operation.
type ConfigurationError struct {
	ChannelIndex int
	Missing      string // "video" or "audio"
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("controller: channel %d has no %s stream", e.ChannelIndex+1, e.Missing)
}

// ErrNotInitialized is returned by user operations invoked before Init
// has completed successfully.
var ErrNotInitialized = fmt.Errorf("controller: not initialized")
