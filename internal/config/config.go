// Package config defines the typed configuration the controller façade
// requires and the ambient env-var/env-file loading conventions used
// throughout this repo. Parsing a structured on-disk configuration file
// format is out of scope; LoadEnvFile only loads operational knobs into
// the process environment.
package config

import (
	"fmt"
	"os"

	"github.com/snapetech/dtvstb/internal/tdp"
)

// NotSet is the sentinel for an absent PID/codec/channel slot.
const NotSet = 0xFFFF

// Transponder is the immutable RF tuning target supplied by the
// configuration collaborator.
type Transponder struct {
	FrequencyHz uint32
	BandwidthHz uint32
	Modulation  tdp.Modulation
}

// Config is the full set of inputs the controller façade's Init needs.
type Config struct {
	Transponder    Transponder
	InitialChannel uint16 // 1-based; NotSet means "don't auto-play"
	VolumeMaxStep  uint32

	// StatusServerEnabled and StorageEnabled gate the optional diagnostic
	// surfaces (internal/statussrv, internal/storage); both default to
	// off, since neither is a dependency of channel-switch correctness.
	StatusServerEnabled bool
	StatusServerAddr    string
	StorageEnabled      bool
	StoragePath         string
}

// FromEnv assembles a Config from DTVSTB_-prefixed environment
// variables, using the getenvInt/getenvBool helpers in env.go rather
// than introducing a flags library.
func FromEnv() (Config, error) {
	mod, err := parseModulation(getenv("DTVSTB_MODULATION", "qam256"))
	if err != nil {
		return Config{}, err
	}
	return Config{
		Transponder: Transponder{
			FrequencyHz: uint32(getenvInt("DTVSTB_FREQUENCY_HZ", 0)),
			BandwidthHz: uint32(getenvInt("DTVSTB_BANDWIDTH_HZ", 8000000)),
			Modulation:  mod,
		},
		InitialChannel: uint16(getenvInt("DTVSTB_INITIAL_CHANNEL", 1)),
		VolumeMaxStep:  uint32(getenvInt("DTVSTB_VOLUME_MAX_STEP", 0)),

		StatusServerEnabled: getenvBool("DTVSTB_STATUS_SERVER_ENABLED", false),
		StatusServerAddr:    getenv("DTVSTB_STATUS_SERVER_ADDR", "127.0.0.1:8089"),
		StorageEnabled:      getenvBool("DTVSTB_STORAGE_ENABLED", false),
		StoragePath:         getenv("DTVSTB_STORAGE_PATH", "/var/lib/dtvstb/journal.db"),
	}, nil
}

func parseModulation(s string) (tdp.Modulation, error) {
	switch s {
	case "qpsk":
		return tdp.ModulationQPSK, nil
	case "qam64":
		return tdp.ModulationQAM64, nil
	case "qam256":
		return tdp.ModulationQAM256, nil
	case "ofdm":
		return tdp.ModulationOFDM, nil
	default:
		return tdp.ModulationUnknown, fmt.Errorf("config: unknown modulation %q", s)
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
