// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics declares the Prometheus collectors for connection
// lifecycle, instruction dispatch, and stream activity, served by
// server.Server's `/metrics` route alongside internal/rescue's own
// panic_total counter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/guacd/gcore/common"
)

var (
	// ConnectionsOpened counts every Client.Connect call that
	// successfully established a tunnel, labeled by the negotiated
	// protocol (vnc, rdp, ssh, ...).
	ConnectionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "connections_opened_total",
			Help:      "Connections that successfully completed Connect",
		},
		[]string{"protocol"},
	)

	// ConnectionsActive is the number of clients currently in
	// StateWaiting or StateConnected.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "connections_active",
			Help:      "Connections currently in WAITING or CONNECTED",
		},
	)

	// ConnectionsClosed counts every connection that reached
	// DISCONNECTED, labeled by whether it closed cleanly or via an
	// error/timeout.
	ConnectionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "connections_closed_total",
			Help:      "Connections that reached DISCONNECTED",
		},
		[]string{"reason"},
	)

	// InstructionsDispatched counts every instruction routed through a
	// Client's router, labeled by opcode.
	InstructionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "instructions_dispatched_total",
			Help:      "Instructions dispatched through a connection's router",
		},
		[]string{"opcode"},
	)

	// StreamsOpened counts input streams opened by stream.InputManager,
	// labeled by kind (clipboard, object-body, object-put).
	StreamsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "streams_opened_total",
			Help:      "Input streams opened, by kind",
		},
		[]string{"kind"},
	)

	// TunnelReconnects counts how many times a chained tunnel had to
	// fall back past its first candidate.
	TunnelReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "tunnel_fallbacks_total",
			Help:      "Times a chained tunnel committed to a candidate other than the first",
		},
	)
)

// CloseReason labels a closed connection for ConnectionsClosed.
type CloseReason string

const (
	CloseReasonClean   CloseReason = "clean"
	CloseReasonError   CloseReason = "error"
	CloseReasonTimeout CloseReason = "timeout"
)
