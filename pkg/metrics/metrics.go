// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics exposes Prometheus instrumentation for ceremony activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for CeremoniesTotal.
const (
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	PhaseBegin    = "begin"
	PhaseComplete = "complete"

	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// CeremoniesTotal counts ceremony phases by outcome.
var CeremoniesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "passkey",
		Name:      "ceremonies_total",
		Help:      "WebAuthn ceremony phases by ceremony type, phase and outcome.",
	},
	[]string{"ceremony", "phase", "status"},
)

// RecordCeremony increments the ceremony counter for the given outcome.
func RecordCeremony(ceremony, phase, status string) {
	CeremoniesTotal.WithLabelValues(ceremony, phase, status).Inc()
}
