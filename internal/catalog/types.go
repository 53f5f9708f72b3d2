// Package catalog builds and holds the typed channel table derived from
// PAT/PMT acquisition: a ChannelCatalog is built exactly once per
// session and never mutated afterward.
package catalog

import "github.com/snapetech/dtvstb/internal/psi"

// Channel is the fold of one program's PMT into at most one video and
// one audio elementary stream, plus any subtitle language tags.
type Channel struct {
	ProgramNumber uint16
	Video         *VideoStream
	Audio         *AudioStream
	Subtitles     []psi.LangTag
}

// VideoStream identifies the selected video elementary stream.
type VideoStream struct {
	PID   uint16
	Codec psi.VideoCodec
}

// AudioStream identifies the selected audio elementary stream.
type AudioStream struct {
	PID   uint16
	Codec psi.AudioCodec
}

// ChannelCatalog is the ordered, 1-based (by user-visible number)
// sequence of channels built during init. Slot k (0-based) corresponds
// to the (k+1)-th non-zero PAT program in PAT order.
type ChannelCatalog struct {
	Channels []Channel
}

// Len reports the number of channels in the catalog.
func (c *ChannelCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Channels)
}

// At returns the channel at the given 0-based index. The caller must
// range-check; bounds checks happen at the call site
// (internal/controller) rather than in a panicking accessor.
func (c *ChannelCatalog) At(index int) Channel {
	return c.Channels[index]
}

// foldPMT applies the PMT-to-channel fold rule: the first elementary
// stream that decodes to a video codec wins the video role, the first
// that decodes to an audio codec wins the audio role; subtitles are
// copied, never aliased into the PmtRecord the parser returned.
func foldPMT(pmt *psi.PmtRecord) Channel {
	ch := Channel{ProgramNumber: pmt.ProgramNumber}
	for _, es := range pmt.Streams {
		switch es.Kind.Role {
		case psi.RoleVideo:
			if ch.Video == nil {
				ch.Video = &VideoStream{PID: es.PID, Codec: es.Kind.Video}
			}
		case psi.RoleAudio:
			if ch.Audio == nil {
				ch.Audio = &AudioStream{PID: es.PID, Codec: es.Kind.Audio}
			}
		}
	}
	if len(pmt.Subtitles) > 0 {
		ch.Subtitles = make([]psi.LangTag, len(pmt.Subtitles))
		copy(ch.Subtitles, pmt.Subtitles)
	}
	return ch
}
