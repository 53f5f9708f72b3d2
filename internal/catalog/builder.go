package catalog

import (
	"fmt"
	"log"
	"time"

	"github.com/snapetech/dtvstb/internal/coordinator"
	"github.com/snapetech/dtvstb/internal/psi"
	"github.com/snapetech/dtvstb/internal/tdp"
)

const (
	patPID     uint16 = 0x0000
	patTableID uint8  = 0x00
	pmtTableID uint8  = 0x02

	// acquisitionTimeout bounds every individual PAT/PMT section wait.
	acquisitionTimeout = 3 * time.Second
)

// ErrAcquisitionTimeout is returned when a PAT or PMT section fails to
// arrive within acquisitionTimeout. A timeout anywhere in catalog build
// aborts the whole build rather than limping on with a partial catalog;
// the builder frees its own filter and section callback before
// returning.
var ErrAcquisitionTimeout = fmt.Errorf("catalog: acquisition timed out")

// Builder drives one PAT acquisition followed by N PMT acquisitions,
// single-filter-at-a-time, and folds the results into a ChannelCatalog.
type Builder struct {
	demux   tdp.Demux
	coord   *coordinator.Coordinator
	timeout time.Duration
	observe func(kind string, seconds float64)
}

// NewBuilder returns a Builder bound to the given demux and a dedicated
// coordinator for this build's section acquisitions, using the default
// 3-second PAT/PMT acquisition timeout.
func NewBuilder(demux tdp.Demux) *Builder {
	return &Builder{demux: demux, coord: coordinator.New(), timeout: acquisitionTimeout}
}

// NewBuilderWithTimeout is NewBuilder with an overridden per-section
// acquisition timeout, for tests that need to exercise the
// abort-on-timeout path without waiting 3 real seconds.
func NewBuilderWithTimeout(demux tdp.Demux, timeout time.Duration) *Builder {
	return &Builder{demux: demux, coord: coordinator.New(), timeout: timeout}
}

// SetObserver installs a callback invoked with each PAT/PMT acquisition
// wait's kind ("pat" or "pmt") and latency in seconds, win or timeout.
// Catalog has no metrics dependency of its own; the caller supplies the
// sink. Leaving it unset (the zero value) disables observation.
func (b *Builder) SetObserver(observe func(kind string, seconds float64)) {
	b.observe = observe
}

// Build runs the full catalog acquisition sequence. A malformed PMT
// section skips just that program and the build continues; an
// acquisition timeout aborts the entire build and returns
// ErrAcquisitionTimeout.
func (b *Builder) Build() (*ChannelCatalog, error) {
	pat, err := b.acquirePAT()
	if err != nil {
		return nil, err
	}

	programPIDs := make([]uint16, 0, len(pat.Programs))
	for _, p := range pat.Programs {
		if p.ProgramNumber == 0 {
			continue // NIT reference: counted, never followed into PMT acquisition
		}
		programPIDs = append(programPIDs, p.ProgramMapPID)
	}

	channels := make([]Channel, 0, len(programPIDs))
	for i, pmtPID := range programPIDs {
		pmt, err := b.acquirePMT(pmtPID)
		if err != nil {
			return nil, err
		}
		if pmt == nil {
			log.Printf("catalog: program %d (pid=0x%04x) skipped: malformed PMT", i+1, pmtPID)
			continue
		}
		channels = append(channels, foldPMT(pmt))
	}

	log.Printf("catalog: built %d channel(s) from %d PAT program(s)", len(channels), len(programPIDs))
	return &ChannelCatalog{Channels: channels}, nil
}

// acquirePAT installs the PAT filter, waits for the section, and parses
// it. A malformed PAT is a hard build failure (there is no channel to
// skip to); acquisition timeout aborts the build.
func (b *Builder) acquirePAT() (*psi.PatRecord, error) {
	var scratch []byte
	if err := b.demux.RegisterSectionCallback(func(buf []byte) {
		scratch = append([]byte(nil), buf...)
		b.coord.Signal()
	}); err != nil {
		return nil, fmt.Errorf("catalog: register PAT callback: %w", err)
	}
	defer b.demux.UnregisterSectionCallback()

	handle, err := b.demux.SetFilter(patPID, patTableID)
	if err != nil {
		return nil, fmt.Errorf("catalog: install PAT filter: %w", err)
	}
	defer b.demux.FreeFilter(handle)

	start := time.Now()
	waitErr := b.coord.WaitForSignal(b.timeout)
	b.observeLatency("pat", time.Since(start))
	if waitErr != nil {
		log.Printf("catalog: PAT acquisition timed out")
		return nil, ErrAcquisitionTimeout
	}

	pat, err := psi.ParsePAT(scratch)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse PAT: %w", err)
	}
	log.Printf("catalog: PAT acquired, %d program(s)", len(pat.Programs))
	return pat, nil
}

// acquirePMT installs the PMT filter for pmtPID, waits for the section,
// and parses it. It returns (nil, nil) on a ParseError so the caller can
// skip just that program; it returns a non-nil error only on
// acquisition timeout or a failure to install the filter/callback.
func (b *Builder) acquirePMT(pmtPID uint16) (*psi.PmtRecord, error) {
	var scratch []byte
	if err := b.demux.RegisterSectionCallback(func(buf []byte) {
		scratch = append([]byte(nil), buf...)
		b.coord.Signal()
	}); err != nil {
		return nil, fmt.Errorf("catalog: register PMT callback for pid=0x%04x: %w", pmtPID, err)
	}
	defer b.demux.UnregisterSectionCallback()

	handle, err := b.demux.SetFilter(pmtPID, pmtTableID)
	if err != nil {
		return nil, fmt.Errorf("catalog: install PMT filter for pid=0x%04x: %w", pmtPID, err)
	}
	defer b.demux.FreeFilter(handle)

	start := time.Now()
	waitErr := b.coord.WaitForSignal(b.timeout)
	b.observeLatency("pmt", time.Since(start))
	if waitErr != nil {
		log.Printf("catalog: PMT acquisition for pid=0x%04x timed out", pmtPID)
		return nil, ErrAcquisitionTimeout
	}

	pmt, err := psi.ParsePMT(scratch)
	if err != nil {
		log.Printf("catalog: PMT for pid=0x%04x malformed: %v", pmtPID, err)
		return nil, nil
	}
	return pmt, nil
}

func (b *Builder) observeLatency(kind string, d time.Duration) {
	if b.observe != nil {
		b.observe(kind, d.Seconds())
	}
}
