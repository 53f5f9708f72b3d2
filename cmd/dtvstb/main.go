// Command dtvstb runs the digital-TV set-top box controller: it brings
// up the tuner/demux/player, builds the channel catalog, and drives
// playback from a remote-control key stream until interrupted.
//
// No production RF/demux/player driver ships in this repo; this binary
// runs against tdp.Fake seeded with a small demo transport stream so
// the full init/catalog/playback/remote path is exercisable end to
// end.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/snapetech/dtvstb/internal/config"
	"github.com/snapetech/dtvstb/internal/controller"
	"github.com/snapetech/dtvstb/internal/psi"
	"github.com/snapetech/dtvstb/internal/remote"
	"github.com/snapetech/dtvstb/internal/tdp"
)

func main() {
	envFile := flag.String("env-file", "", "optional path to a DTVSTB_* env file")
	flag.Parse()

	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			log.Fatalf("load env file: %v", err)
		}
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hw := tdp.NewFake(1000)
	seedDemoTransportStream(hw)

	gfx := &consoleGraphics{}
	ctrl := controller.New(hw, gfx)
	if err := ctrl.Init(cfg); err != nil {
		log.Fatalf("controller init: %v", err)
	}
	defer func() {
		if err := ctrl.Deinit(); err != nil {
			log.Printf("controller deinit: %v", err)
		}
	}()

	if cfg.InitialChannel != config.NotSet {
		if err := ctrl.PlayChannel(cfg.InitialChannel); err != nil {
			log.Printf("initial play(%d): %v", cfg.InitialChannel, err)
		}
	}

	done := make(chan struct{})
	go runRemoteLoop(ctrl, done)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		fmt.Println("shutting down")
	case <-done:
		fmt.Println("input closed, shutting down")
	}
}

// seedDemoTransportStream arranges the Fake to lock immediately and to
// answer PAT/PMT acquisition with a fixed two-channel catalog, since no
// real broadcast source exists in this repo.
func seedDemoTransportStream(hw *tdp.Fake) {
	hw.LockResponder = func(freq, bandwidth uint32, mod tdp.Modulation) (time.Duration, tdp.LockStatus, bool) {
		return 5 * time.Millisecond, tdp.StatusLocked, true
	}

	const (
		patPID     uint16 = 0x0000
		patTableID uint8  = 0x00
		pmtTableID uint8  = 0x02
	)

	pat := buildPAT(1, []patProgram{{1, 0x100}, {2, 0x200}})
	hw.ScriptSection(patPID, patTableID, 5*time.Millisecond, pat)

	pmt1 := buildPMT(1, 0x101, []pmtEntry{
		{streamType: 0x1B, pid: 0x101, subtitles: []psi.LangTag{{'e', 'n', 'g'}}},
		{streamType: 0x03, pid: 0x102},
	})
	hw.ScriptSection(0x100, pmtTableID, 5*time.Millisecond, pmt1)

	pmt2 := buildPMT(2, 0x201, []pmtEntry{{streamType: 0x02, pid: 0x201}})
	hw.ScriptSection(0x200, pmtTableID, 5*time.Millisecond, pmt2)
}

// runRemoteLoop reads simple line commands from stdin, translates each
// into a remote.KeyEvent, and dispatches it through remote.Dispatcher
// until stdin is closed. Decoding raw remote scan codes into KeyEvents
// is out of scope; this stands in for whatever front-end does that
// decoding on real hardware.
func runRemoteLoop(ctrl *controller.Controller, done chan<- struct{}) {
	disp := remote.NewDispatcher(ctrl, func(pending int) {
		log.Printf("osd: entering channel number %d", pending)
	})
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		ev, ok := parseKeyLine(strings.TrimSpace(scanner.Text()))
		if !ok {
			continue
		}
		if err := disp.Dispatch(ev); err != nil {
			log.Printf("dispatch: %v", err)
		}
	}
	close(done)
}

// parseKeyLine maps one line of stdin input to a remote.KeyEvent: a
// single digit 0-9, or one of the named commands.
func parseKeyLine(line string) (remote.KeyEvent, bool) {
	if line == "" {
		return remote.KeyEvent{}, false
	}
	if n, err := strconv.Atoi(line); err == nil && len(line) == 1 && n >= 0 && n <= 9 {
		return remote.KeyEvent{Key: remote.KeyDigit0 + remote.Key(n)}, true
	}
	switch line {
	case "ok":
		return remote.KeyEvent{Key: remote.KeyOK}, true
	case "up":
		return remote.KeyEvent{Key: remote.KeyChannelUp}, true
	case "down":
		return remote.KeyEvent{Key: remote.KeyChannelDown}, true
	case "vol+":
		return remote.KeyEvent{Key: remote.KeyVolumeUp}, true
	case "vol-":
		return remote.KeyEvent{Key: remote.KeyVolumeDown}, true
	case "mute":
		return remote.KeyEvent{Key: remote.KeyMute}, true
	case "exit", "quit":
		return remote.KeyEvent{Key: remote.KeyExit}, true
	default:
		log.Printf("unrecognized command: %q", line)
		return remote.KeyEvent{}, false
	}
}

// consoleGraphics is a Graphics implementation that logs draw calls
// instead of rendering pixels, since font/pixel rendering is out of
// scope.
type consoleGraphics struct{}

func (g *consoleGraphics) Init() error   { return nil }
func (g *consoleGraphics) Deinit() error { return nil }
func (g *consoleGraphics) DrawChannelNumber(n int) {
	log.Printf("osd: entering channel number %d", n)
}
func (g *consoleGraphics) DrawChannelNumberMessage(n int) {
	log.Printf("osd: no such channel %d", n)
}
func (g *consoleGraphics) DrawChannelInfo(n int, subCount int, subTags []psi.LangTag) {
	log.Printf("osd: now playing channel %d (%d subtitle track(s))", n, subCount)
}
func (g *consoleGraphics) DrawVolumeInfo(percent float64) {
	log.Printf("osd: volume %.0f%%", percent*100)
}
func (g *consoleGraphics) Commit()           {}
func (g *consoleGraphics) Clear(alpha uint8) {}

// The section builders below synthesize a minimal PAT/PMT pair for the
// demo transport stream; they duplicate internal/catalog's test
// fixture logic since that package's builders are unexported.

func crc32MPEG(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			if (crc^(uint32(b)<<24))&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
			b <<= 1
		}
	}
	return crc
}

func appendCRC(section []byte) []byte {
	crc := crc32MPEG(section)
	return append(section, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

type patProgram struct {
	programNumber uint16
	pmtPID        uint16
}

func buildPAT(tsid uint16, programs []patProgram) []byte {
	body := []byte{}
	body = append(body, byte(tsid>>8), byte(tsid))
	body = append(body, 0xC1)
	body = append(body, 0x00, 0x00)
	for _, p := range programs {
		body = append(body, byte(p.programNumber>>8), byte(p.programNumber))
		body = append(body, byte(0xE0|byte(p.pmtPID>>8)), byte(p.pmtPID))
	}
	sectionLength := len(body) + 4
	out := []byte{0x00, byte(0xB0 | byte(sectionLength>>8)), byte(sectionLength)}
	out = append(out, body...)
	return appendCRC(out)
}

type pmtEntry struct {
	streamType byte
	pid        uint16
	subtitles  []psi.LangTag
}

func buildPMT(programNumber, pcrPID uint16, entries []pmtEntry) []byte {
	body := []byte{}
	body = append(body, byte(programNumber>>8), byte(programNumber))
	body = append(body, 0xC1)
	body = append(body, 0x00, 0x00)
	body = append(body, byte(0xE0|byte(pcrPID>>8)), byte(pcrPID))
	body = append(body, 0xF0, 0x00)

	for _, e := range entries {
		var desc []byte
		if len(e.subtitles) > 0 {
			var recs []byte
			for _, tag := range e.subtitles {
				// subtitling_descriptor record: 3-byte lang code,
				// subtitling_type, composition_page_id (2 bytes),
				// ancillary_page_id (2 bytes) = 8 bytes.
				recs = append(recs, tag[0], tag[1], tag[2], 0x10, 0x00, 0x01, 0x00, 0x01)
			}
			desc = append(desc, 0x59, byte(len(recs)))
			desc = append(desc, recs...)
		}
		body = append(body, e.streamType)
		body = append(body, byte(0xE0|byte(e.pid>>8)), byte(e.pid))
		body = append(body, byte(0xF0|byte(len(desc)>>8)), byte(len(desc)))
		body = append(body, desc...)
	}

	sectionLength := len(body) + 4
	out := []byte{0x02, byte(0xB0 | byte(sectionLength>>8)), byte(sectionLength)}
	out = append(out, body...)
	return appendCRC(out)
}
