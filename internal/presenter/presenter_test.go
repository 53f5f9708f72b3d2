package presenter

import (
	"testing"

	"github.com/snapetech/dtvstb/internal/psi"
)

type fakeGraphics struct {
	commits     int
	lastVolume  float64
	lastChannel int
	lastSubs    int
	lastNoSuch  int
	cleared     bool
}

func (g *fakeGraphics) Init() error   { return nil }
func (g *fakeGraphics) Deinit() error { return nil }
func (g *fakeGraphics) DrawChannelNumber(n int) {
	g.lastChannel = n
}
func (g *fakeGraphics) DrawChannelNumberMessage(n int) {
	g.lastNoSuch = n
}
func (g *fakeGraphics) DrawChannelInfo(n int, subCount int, subTags []psi.LangTag) {
	g.lastChannel = n
	g.lastSubs = subCount
}
func (g *fakeGraphics) DrawVolumeInfo(percent float64) {
	g.lastVolume = percent
}
func (g *fakeGraphics) Commit()          { g.commits++ }
func (g *fakeGraphics) Clear(alpha uint8) { g.cleared = true }

func TestPresenter_showVolumeMutedIsZeroPercent(t *testing.T) {
	g := &fakeGraphics{}
	p := New(g)
	p.ShowVolume(50, 100, true)
	if g.lastVolume != 0 {
		t.Errorf("lastVolume = %v, want 0 when muted", g.lastVolume)
	}
	if g.commits != 1 {
		t.Errorf("commits = %d, want 1", g.commits)
	}
}

func TestPresenter_showVolumeUnmuted(t *testing.T) {
	g := &fakeGraphics{}
	p := New(g)
	p.ShowVolume(25, 100, false)
	if g.lastVolume != 0.25 {
		t.Errorf("lastVolume = %v, want 0.25", g.lastVolume)
	}
}

func TestPresenter_showChannelInfoPassesSubtitleCount(t *testing.T) {
	g := &fakeGraphics{}
	p := New(g)
	p.ShowChannelInfo(3, []psi.LangTag{{'e', 'n', 'g'}, {'g', 'e', 'r'}})
	if g.lastChannel != 3 {
		t.Errorf("lastChannel = %d, want 3", g.lastChannel)
	}
	if g.lastSubs != 2 {
		t.Errorf("lastSubs = %d, want 2", g.lastSubs)
	}
}

func TestPresenter_showNoSuchChannel(t *testing.T) {
	g := &fakeGraphics{}
	p := New(g)
	p.ShowNoSuchChannel(99)
	if g.lastNoSuch != 99 {
		t.Errorf("lastNoSuch = %d, want 99", g.lastNoSuch)
	}
}

func TestPresenter_clear(t *testing.T) {
	g := &fakeGraphics{}
	p := New(g)
	p.Clear(128)
	if !g.cleared {
		t.Error("Clear did not reach Graphics.Clear")
	}
}
