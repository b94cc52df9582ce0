// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package metrics exposes the gateway's runtime state as Prometheus
// metrics: reflector-link status, frames relayed in each direction,
// echo activity and the size of the loaded reflector directory.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reflector-link status values exported on the ReflectorLinkStatus
// gauge, matching reflectorlink.Status's ordering.
const (
	StatusNotLinked = 0
	StatusLinking   = 1
	StatusLinked    = 2
	StatusUnlinking = 3
	StatusRejected  = 4
	StatusFailed    = 5
)

// Metrics holds every gauge/counter the gateway exports.
type Metrics struct {
	ReflectorLinkStatus prometheus.Gauge
	FramesRelayedTotal  *prometheus.CounterVec
	EchoActiveGauge     prometheus.Gauge
	ReflectorDirSize    prometheus.Gauge
}

// New creates and registers the gateway's metrics.
func New() *Metrics {
	m := &Metrics{
		ReflectorLinkStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "m17gateway_reflector_link_status",
			Help: "Current reflector-link state (0=notlinked,1=linking,2=linked,3=unlinking,4=rejected,5=failed)",
		}),
		FramesRelayedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "m17gateway_frames_relayed_total",
			Help: "The total number of M17 network frames relayed",
		}, []string{"direction"}),
		EchoActiveGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "m17gateway_echo_active",
			Help: "1 if the echo engine is recording or playing back, 0 otherwise",
		}),
		ReflectorDirSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "m17gateway_reflector_directory_size",
			Help: "The number of reflectors currently loaded from the directory",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(m.ReflectorLinkStatus)
	prometheus.MustRegister(m.FramesRelayedTotal)
	prometheus.MustRegister(m.EchoActiveGauge)
	prometheus.MustRegister(m.ReflectorDirSize)
}

// SetReflectorLinkStatus records the reflector-link's current state.
func (m *Metrics) SetReflectorLinkStatus(status int) {
	m.ReflectorLinkStatus.Set(float64(status))
}

// RecordFrameRelayed increments the relayed-frame counter for a
// direction ("reflector-to-repeater" or "repeater-to-reflector").
func (m *Metrics) RecordFrameRelayed(direction string) {
	m.FramesRelayedTotal.WithLabelValues(direction).Inc()
}

// SetEchoActive records whether the echo engine is busy.
func (m *Metrics) SetEchoActive(active bool) {
	if active {
		m.EchoActiveGauge.Set(1)
	} else {
		m.EchoActiveGauge.Set(0)
	}
}

// SetReflectorDirectorySize records how many reflectors are loaded.
func (m *Metrics) SetReflectorDirectorySize(count int) {
	m.ReflectorDirSize.Set(float64(count))
}
