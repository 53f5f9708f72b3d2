// Package metrics exposes Prometheus collectors for the controller
// façade: acquisition latency, channel-switch activity, and TDP
// failures. Registration happens once per controller session (at
// Controller.Init), using a private registry rather than the global
// default so multiple sessions in one process (as in tests) never
// collide; nothing is unregistered at Deinit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector this repo registers. The zero value
// is not usable; construct with New.
type Metrics struct {
	Registry *prometheus.Registry

	AcquisitionLatency *prometheus.HistogramVec
	SwitchLatency      *prometheus.HistogramVec
	ChannelSwitches    *prometheus.CounterVec
	ChannelSwitchFails *prometheus.CounterVec
	TdpFailures        *prometheus.CounterVec
	MuteToggles        prometheus.Counter
}

// New builds and registers the full collector set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		AcquisitionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dtvstb",
			Subsystem: "acquisition",
			Name:      "latency_seconds",
			Help:      "Latency of tuner-lock and PSI section acquisition waits.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5, 10},
		}, []string{"kind"}), // kind ∈ {tuner_lock, pat, pmt}
		SwitchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dtvstb",
			Subsystem: "playback",
			Name:      "switch_latency_seconds",
			Help:      "Latency of a channel switch from request to opened streams.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"direction"}), // direction ∈ {direct, next, previous}
		ChannelSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dtvstb",
			Subsystem: "playback",
			Name:      "channel_switches_total",
			Help:      "Successful channel switches.",
		}, []string{"direction"}), // direction ∈ {direct, next, previous}
		ChannelSwitchFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dtvstb",
			Subsystem: "playback",
			Name:      "channel_switch_failures_total",
			Help:      "Channel switches that failed and rolled back to stopped state.",
		}, []string{"reason"}),
		TdpFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dtvstb",
			Subsystem: "tdp",
			Name:      "failures_total",
			Help:      "TDP hardware-abstraction call failures by call site.",
		}, []string{"call"}),
		MuteToggles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dtvstb",
			Subsystem: "playback",
			Name:      "mute_toggles_total",
			Help:      "Mute toggle operations.",
		}),
	}

	reg.MustRegister(
		m.AcquisitionLatency,
		m.SwitchLatency,
		m.ChannelSwitches,
		m.ChannelSwitchFails,
		m.TdpFailures,
		m.MuteToggles,
	)
	return m
}

// ObserveAcquisition records an acquisition wait's latency by kind.
func (m *Metrics) ObserveAcquisition(kind string, seconds float64) {
	m.AcquisitionLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordSwitch increments the channel-switch counter for direction.
func (m *Metrics) RecordSwitch(direction string) {
	m.ChannelSwitches.WithLabelValues(direction).Inc()
}

// ObserveSwitch records a successful channel switch's latency by
// direction.
func (m *Metrics) ObserveSwitch(direction string, seconds float64) {
	m.SwitchLatency.WithLabelValues(direction).Observe(seconds)
}

// RecordSwitchFailure increments the channel-switch-failure counter for
// reason.
func (m *Metrics) RecordSwitchFailure(reason string) {
	m.ChannelSwitchFails.WithLabelValues(reason).Inc()
}

// RecordTdpFailure increments the TDP-failure counter for call.
func (m *Metrics) RecordTdpFailure(call string) {
	m.TdpFailures.WithLabelValues(call).Inc()
}
