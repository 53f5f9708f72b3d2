// Package presenter translates playback-engine events into draw calls
// on the graphics collaborator. It is a stateless façade: every method
// composes one frame and commits it, holding no state of its own beyond
// the Graphics handle it was constructed with.
package presenter

import "github.com/snapetech/dtvstb/internal/psi"

// Graphics is the external rendering collaborator. Font/pixel rendering
// itself is out of scope; this repo only defines the interface the
// presenter drives.
type Graphics interface {
	Init() error
	Deinit() error
	DrawChannelNumber(n int)
	DrawChannelNumberMessage(n int)
	DrawChannelInfo(n int, subCount int, subTags []psi.LangTag)
	DrawVolumeInfo(percent float64)
	Commit()
	Clear(alpha uint8)
}

// Presenter is a stateless façade over Graphics.
type Presenter struct {
	g Graphics
}

// New returns a Presenter driving the given Graphics collaborator.
func New(g Graphics) *Presenter {
	return &Presenter{g: g}
}

// ShowChannelInfo draws the channel-info banner for channel n (1-based)
// with its subtitle language tags.
func (p *Presenter) ShowChannelInfo(n int, subTags []psi.LangTag) {
	p.g.DrawChannelInfo(n, len(subTags), subTags)
	p.g.Commit()
}

// ShowVolume draws the volume banner. volume/volumeMax give the raw
// hardware values; percent is 0 when muted regardless of the stored
// volume.
func (p *Presenter) ShowVolume(volume, volumeMax uint32, muted bool) {
	percent := 0.0
	if !muted && volumeMax > 0 {
		percent = float64(volume) / float64(volumeMax)
	}
	p.g.DrawVolumeInfo(percent)
	p.g.Commit()
}

// ShowChannelNumber draws the in-progress multi-digit channel number
// entry banner.
func (p *Presenter) ShowChannelNumber(n int) {
	p.g.DrawChannelNumber(n)
	p.g.Commit()
}

// ShowNoSuchChannel draws the "no such channel" banner for an
// out-of-range channel number entry.
func (p *Presenter) ShowNoSuchChannel(n int) {
	p.g.DrawChannelNumberMessage(n)
	p.g.Commit()
}

// Clear clears the overlay to the given alpha.
func (p *Presenter) Clear(alpha uint8) {
	p.g.Clear(alpha)
	p.g.Commit()
}
