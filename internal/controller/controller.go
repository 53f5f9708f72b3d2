// Package controller is the stream-controller façade: init/deinit and
// the small set of user operations a remote drives (play N, next,
// previous, volume up/down/mute). It owns acquire/release ordering for
// every hardware resource and is the one place the playback error
// taxonomy is surfaced as concrete Go types.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/snapetech/dtvstb/internal/catalog"
	"github.com/snapetech/dtvstb/internal/config"
	"github.com/snapetech/dtvstb/internal/coordinator"
	"github.com/snapetech/dtvstb/internal/metrics"
	"github.com/snapetech/dtvstb/internal/playback"
	"github.com/snapetech/dtvstb/internal/presenter"
	"github.com/snapetech/dtvstb/internal/statussrv"
	"github.com/snapetech/dtvstb/internal/storage"
	"github.com/snapetech/dtvstb/internal/tdp"
)

// tunerLockTimeout bounds the tuner-lock wait.
const tunerLockTimeout = 10 * time.Second

// Controller is the session state for one stream-controller session:
// every collaborator it owns is threaded through explicitly rather than
// kept as ambient global state.
type Controller struct {
	mu sync.Mutex

	tuner  tdp.Tuner
	demux  tdp.Demux
	player tdp.Player

	coord       *coordinator.Coordinator
	lockTimeout time.Duration

	source    uint32
	engine    *playback.Engine
	presenter *presenter.Presenter
	metrics   *metrics.Metrics
	statusSrv *statussrv.Server
	store     *storage.Store

	initialized bool
}

// New returns a Controller bound to the given TDP implementation and
// graphics collaborator. Call Init before any user operation.
func New(hw tdp.Hardware, g presenter.Graphics) *Controller {
	return NewWithLockTimeout(hw, g, tunerLockTimeout)
}

// NewWithLockTimeout is New with an overridden tuner-lock wait, for tests
// that need to exercise the lock-timeout path without waiting the full
// 10s (mirrors internal/catalog's NewBuilderWithTimeout).
func NewWithLockTimeout(hw tdp.Hardware, g presenter.Graphics, lockTimeout time.Duration) *Controller {
	return &Controller{
		tuner:       hw.Tuner(),
		demux:       hw.Demux(),
		player:      hw.Player(),
		coord:       coordinator.New(),
		presenter:   presenter.New(g),
		lockTimeout: lockTimeout,
	}
}

// Init performs, in order: tuner init, lock-callback registration, tune
// to the configured transponder, wait for lock (10s), player init,
// source open, initial volume read, run the catalog builder. Any
// failure releases whatever was already acquired.
func (c *Controller) Init(cfg config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return fmt.Errorf("controller: already initialized")
	}

	c.metrics = metrics.New()

	if err := c.tuner.Init(); err != nil {
		return &TdpFailure{Op: "tuner init", Err: err}
	}

	var lockStatus tdp.LockStatus
	if err := c.tuner.RegisterLockCallback(func(status tdp.LockStatus) {
		lockStatus = status
		c.coord.Signal()
	}); err != nil {
		c.tuner.Deinit()
		return &TdpFailure{Op: "register lock callback", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.lockTimeout)
	defer cancel()
	if err := c.tuner.Lock(ctx, cfg.Transponder.FrequencyHz, cfg.Transponder.BandwidthHz, cfg.Transponder.Modulation); err != nil {
		c.tuner.Deinit()
		return &TdpFailure{Op: "tuner lock", Err: err}
	}

	lockWaitStart := time.Now()
	waitErr := c.coord.WaitForSignal(c.lockTimeout)
	c.metrics.ObserveAcquisition("tuner_lock", time.Since(lockWaitStart).Seconds())
	if waitErr != nil {
		c.tuner.Deinit()
		c.recordMetricFailure("tuner_lock")
		return &TdpFailure{Op: "tuner lock", Err: fmt.Errorf("no lock callback within %s", c.lockTimeout)}
	}
	if lockStatus != tdp.StatusLocked {
		c.tuner.Deinit()
		return &TdpFailure{Op: "tuner lock", Err: fmt.Errorf("tuner reported not-locked")}
	}

	if _, err := c.player.Init(); err != nil {
		c.tuner.Deinit()
		return &TdpFailure{Op: "player init", Err: err}
	}
	source, err := c.player.SourceOpen()
	if err != nil {
		c.player.Deinit()
		c.tuner.Deinit()
		return &TdpFailure{Op: "source open", Err: err}
	}

	initialVolume, err := c.player.VolumeGet()
	if err != nil {
		c.player.SourceClose(source)
		c.player.Deinit()
		c.tuner.Deinit()
		return &TdpFailure{Op: "volume get", Err: err}
	}

	builder := catalog.NewBuilder(c.demux)
	builder.SetObserver(c.metrics.ObserveAcquisition)
	cat, err := builder.Build()
	if err != nil {
		c.player.SourceClose(source)
		c.player.Deinit()
		c.tuner.Deinit()
		if err == catalog.ErrAcquisitionTimeout {
			return &AcquisitionTimeout{Stage: "catalog build", Err: err}
		}
		return &TdpFailure{Op: "catalog build", Err: err}
	}

	c.source = source
	c.engine = playback.New(cat, c.player, source, initialVolume)

	if cfg.StorageEnabled {
		store, err := storage.Open(cfg.StoragePath)
		if err != nil {
			log.Printf("controller: storage disabled: %v", err)
		} else {
			c.store = store
			if err := c.store.SnapshotCatalog(time.Now(), cat.Len(), cat.Channels); err != nil {
				log.Printf("controller: catalog snapshot: %v", err)
			}
		}
	}

	if cfg.StatusServerEnabled {
		c.statusSrv = statussrv.New(cfg.StatusServerAddr, c.metrics.Registry, c.statusSnapshot)
		c.statusSrv.Start()
	}

	c.initialized = true
	log.Printf("controller: init complete, %d channel(s)", cat.Len())
	return nil
}

// Deinit reverses Init: stops playback, closes the source, deinits the
// player, then deinits the tuner. It is idempotent; calling it more
// than once is a no-op after the first.
func (c *Controller) Deinit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil
	}

	if c.statusSrv != nil {
		if err := c.statusSrv.Stop(); err != nil {
			log.Printf("controller: statussrv stop: %v", err)
		}
		c.statusSrv = nil
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			log.Printf("controller: storage close: %v", err)
		}
		c.store = nil
	}

	c.engine.Stop()
	// Null the engine before releasing the source/player/tuner it
	// depended on, not after.
	c.engine = nil

	var firstErr error
	if err := c.player.SourceClose(c.source); err != nil {
		firstErr = &TdpFailure{Op: "source close", Err: err}
	}
	if err := c.player.Deinit(); err != nil && firstErr == nil {
		firstErr = &TdpFailure{Op: "player deinit", Err: err}
	}
	if err := c.tuner.Deinit(); err != nil && firstErr == nil {
		firstErr = &TdpFailure{Op: "tuner deinit", Err: err}
	}

	c.initialized = false
	return firstErr
}

// PlayChannel switches to the 1-based channel number.
func (c *Controller) PlayChannel(number uint16) error {
	return c.withEngine(func(e *playback.Engine) error {
		index := int(number) - 1
		start := time.Now()
		err := e.ChangeTo(index)
		c.presentSwitchResult("direct", index, time.Since(start), err)
		return classifySwitchErr(err)
	})
}

// Next advances to the next channel, wrapping around.
func (c *Controller) Next() error {
	return c.withEngine(func(e *playback.Engine) error {
		start := time.Now()
		err := e.Next()
		c.presentSwitchResult("next", e.CurrentIndex(), time.Since(start), err)
		return classifySwitchErr(err)
	})
}

// Previous moves to the previous channel, wrapping around.
func (c *Controller) Previous() error {
	return c.withEngine(func(e *playback.Engine) error {
		start := time.Now()
		err := e.Previous()
		c.presentSwitchResult("previous", e.CurrentIndex(), time.Since(start), err)
		return classifySwitchErr(err)
	})
}

// VolumeUp raises the volume by one step, unmuting if muted.
func (c *Controller) VolumeUp() error {
	return c.withEngine(func(e *playback.Engine) error {
		if err := e.VolumeUp(); err != nil {
			c.recordMetricFailure("volume_up")
			return &TdpFailure{Op: "volume up", Err: err}
		}
		c.presentVolume()
		return nil
	})
}

// VolumeDown lowers the volume by one step, unmuting if muted.
func (c *Controller) VolumeDown() error {
	return c.withEngine(func(e *playback.Engine) error {
		if err := e.VolumeDown(); err != nil {
			c.recordMetricFailure("volume_down")
			return &TdpFailure{Op: "volume down", Err: err}
		}
		c.presentVolume()
		return nil
	})
}

// MuteToggle flips the mute flag.
func (c *Controller) MuteToggle() error {
	return c.withEngine(func(e *playback.Engine) error {
		if err := e.MuteToggle(); err != nil {
			c.recordMetricFailure("mute_toggle")
			return &TdpFailure{Op: "mute toggle", Err: err}
		}
		c.metrics.MuteToggles.Inc()
		c.presentVolume()
		return nil
	})
}

func (c *Controller) withEngine(fn func(e *playback.Engine) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || c.engine == nil {
		return ErrNotInitialized
	}
	return fn(c.engine)
}

func classifySwitchErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*OutOfRangeError); ok {
		return err // recovered locally, state unchanged
	}
	return &TdpFailure{Op: "channel switch", Err: err}
}

func (c *Controller) presentSwitchResult(direction string, index int, elapsed time.Duration, err error) {
	if err == nil {
		c.metrics.RecordSwitch(direction)
		c.metrics.ObserveSwitch(direction, elapsed.Seconds())
		ch := c.engine.ChannelAt(index)
		c.presenter.ShowChannelInfo(index+1, ch.Subtitles)
		c.recordSwitchJournal(index, ch.ProgramNumber, true, "")
		return
	}
	if oor, ok := err.(*OutOfRangeError); ok {
		c.presenter.ShowNoSuchChannel(oor.Index + 1)
		c.recordSwitchJournal(oor.Index, 0, false, "out_of_range")
		return
	}
	c.metrics.RecordSwitchFailure("tdp_failure")
	c.recordSwitchJournal(index, 0, false, "tdp_failure")
	log.Printf("controller: channel switch to index %d failed: %v", index, err)
}

func (c *Controller) recordSwitchJournal(index int, programNumber uint16, ok bool, reason string) {
	if c.store == nil {
		return
	}
	if err := c.store.RecordSwitch(time.Now(), index, programNumber, ok, reason); err != nil {
		log.Printf("controller: storage record switch: %v", err)
	}
}

func (c *Controller) presentVolume() {
	volume, muted := c.engine.Volume()
	c.presenter.ShowVolume(volume, c.player.VolumeMax(), muted)
}

func (c *Controller) recordMetricFailure(call string) {
	if c.metrics != nil {
		c.metrics.RecordTdpFailure(call)
	}
}

func (c *Controller) statusSnapshot() statussrv.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return statussrv.Status{}
	}
	volume, muted := c.engine.Volume()
	percent := 0.0
	if !muted && c.player.VolumeMax() > 0 {
		percent = float64(volume) / float64(c.player.VolumeMax())
	}
	return statussrv.Status{
		ChannelNumber: c.engine.CurrentIndex() + 1,
		VolumePercent: percent,
		Muted:         muted,
	}
}
