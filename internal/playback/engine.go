// Package playback manages the currently playing channel's audio/video
// stream handles and volume/mute state, performing channel switches
// against the TDP player abstraction.
package playback

import (
	"fmt"
	"log"
	"sync"

	"github.com/snapetech/dtvstb/internal/catalog"
	"github.com/snapetech/dtvstb/internal/tdp"
)

// volumeStepFraction is the fraction of VOL_MAX that one volume_up/
// volume_down step moves.
const volumeStepFraction = 0.05

// OutOfRangeError is returned by ChangeTo when the requested index is
// not a valid catalog slot. It never mutates engine state; it is
// recovered locally by the caller.
type OutOfRangeError struct {
	Index int
	N     int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("playback: channel index %d out of range [0,%d)", e.Index, e.N)
}

// Engine holds the live playback state for one session. Every state
// transition is guarded by mu, since user operations arrive serialized
// from the controller's foreground thread but the engine does not
// itself assume that.
type Engine struct {
	mu sync.Mutex

	catalog *catalog.ChannelCatalog
	player  tdp.Player
	source  uint32

	currentIndex int
	videoHandle  *tdp.StreamHandle
	audioHandle  *tdp.StreamHandle
	volume       uint32
	muted        bool
}

// New returns an Engine over the given catalog and player, with the
// given opened source handle and initial hardware-read volume.
func New(cat *catalog.ChannelCatalog, player tdp.Player, source uint32, initialVolume uint32) *Engine {
	return &Engine{
		catalog:      cat,
		player:       player,
		source:       source,
		currentIndex: -1,
		volume:       initialVolume,
	}
}

// CurrentIndex returns the currently playing channel's 0-based index, or
// -1 if nothing is playing.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// ChannelAt returns the catalog entry at the given 0-based index, for
// presentation purposes (e.g. subtitle tags on the channel-info banner).
func (e *Engine) ChannelAt(index int) catalog.Channel {
	return e.catalog.At(index)
}

// Volume returns the current volume setpoint and mute flag.
func (e *Engine) Volume() (volume uint32, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume, e.muted
}

// ChangeTo switches playback to the given 0-based catalog index. On any
// TDP failure mid-switch, every handle opened during the attempt is
// closed and the engine is left in a clean stopped state; the error is
// returned to the caller for the controller to classify.
func (e *Engine) ChangeTo(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.catalog.Len()
	if index < 0 || index >= n {
		return &OutOfRangeError{Index: index, N: n}
	}

	e.stopLocked()
	e.currentIndex = -1

	ch := e.catalog.At(index)
	var videoHandle, audioHandle *tdp.StreamHandle

	if ch.Video != nil {
		h, err := e.player.StreamCreate(e.source, ch.Video.PID, int(ch.Video.Codec))
		if err != nil {
			log.Printf("playback: video StreamCreate failed for channel %d: %v", index+1, err)
			return fmt.Errorf("playback: open video stream: %w", err)
		}
		videoHandle = &h
	}
	if ch.Audio != nil {
		h, err := e.player.StreamCreate(e.source, ch.Audio.PID, int(ch.Audio.Codec))
		if err != nil {
			log.Printf("playback: audio StreamCreate failed for channel %d: %v", index+1, err)
			if videoHandle != nil {
				e.player.StreamRemove(*videoHandle)
			}
			return fmt.Errorf("playback: open audio stream: %w", err)
		}
		audioHandle = &h
	}

	e.videoHandle = videoHandle
	e.audioHandle = audioHandle

	if !e.muted {
		if err := e.player.VolumeSet(e.volume); err != nil {
			log.Printf("playback: volume_set failed during channel switch: %v", err)
			e.stopLocked()
			return fmt.Errorf("playback: volume_set: %w", err)
		}
	}

	e.currentIndex = index
	log.Printf("playback: switched to channel %d (program_number=%d)", index+1, ch.ProgramNumber)
	return nil
}

// Next advances to the next channel, wrapping around at the end of the
// catalog.
func (e *Engine) Next() error {
	n := e.catalog.Len()
	if n == 0 {
		return &OutOfRangeError{Index: 0, N: 0}
	}
	cur := e.CurrentIndex()
	return e.ChangeTo((cur + 1) % n)
}

// Previous moves to the previous channel, wrapping around at index 0.
func (e *Engine) Previous() error {
	n := e.catalog.Len()
	if n == 0 {
		return &OutOfRangeError{Index: 0, N: 0}
	}
	cur := e.CurrentIndex()
	return e.ChangeTo((cur - 1 + n) % n)
}

// Stop removes both stream handles if present and nulls them.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.currentIndex = -1
}

func (e *Engine) stopLocked() {
	if e.videoHandle != nil {
		if err := e.player.StreamRemove(*e.videoHandle); err != nil {
			log.Printf("playback: StreamRemove(video) failed: %v", err)
		}
		e.videoHandle = nil
	}
	if e.audioHandle != nil {
		if err := e.player.StreamRemove(*e.audioHandle); err != nil {
			log.Printf("playback: StreamRemove(audio) failed: %v", err)
		}
		e.audioHandle = nil
	}
}

// VolumeUp rereads the hardware volume when unmuted (starting from the
// stored setpoint when muted), then adds one step, saturating at
// VOL_MAX, clears mute, and applies the result.
func (e *Engine) VolumeUp() error {
	return e.stepVolume(1)
}

// VolumeDown rereads the hardware volume when unmuted (starting from the
// stored setpoint when muted), then subtracts one step, saturating at 0,
// clears mute, and applies the result.
func (e *Engine) VolumeDown() error {
	return e.stepVolume(-1)
}

func (e *Engine) stepVolume(direction int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Rereading the hardware setpoint tolerates external volume changes,
	// but only while unmuted: muted hardware always reads back 0 (the
	// mute invariant), which is not the base this step should be taken
	// from, so a muted step starts from the last stored setpoint instead.
	hwVolume := e.volume
	if !e.muted {
		v, err := e.player.VolumeGet()
		if err != nil {
			return fmt.Errorf("playback: volume_get: %w", err)
		}
		hwVolume = v
	}

	step := uint32(float64(e.player.VolumeMax()) * volumeStepFraction)
	var next uint32
	switch {
	case direction > 0:
		next = hwVolume + step
		if next > e.player.VolumeMax() {
			next = e.player.VolumeMax()
		}
	default:
		if hwVolume < step {
			next = 0
		} else {
			next = hwVolume - step
		}
	}

	e.volume = next
	e.muted = false
	if err := e.player.VolumeSet(next); err != nil {
		return fmt.Errorf("playback: volume_set: %w", err)
	}
	return nil
}

// MuteToggle flips the mute flag, applying 0 or the stored volume to the
// player accordingly.
func (e *Engine) MuteToggle() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = !e.muted
	setpoint := e.volume
	if e.muted {
		setpoint = 0
	}
	if err := e.player.VolumeSet(setpoint); err != nil {
		return fmt.Errorf("playback: volume_set on mute toggle: %w", err)
	}
	return nil
}
