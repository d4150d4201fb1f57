// Package metrics exposes Prometheus counters for the attendance flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts successfully created users.
	Registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absensiqr_registrations_total",
		Help: "Users created through registration.",
	})

	// Logins counts successful logins.
	Logins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absensiqr_logins_total",
		Help: "Successful logins.",
	})

	// ScansRecorded counts attendance records written by the scan pipeline.
	ScansRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absensiqr_scans_recorded_total",
		Help: "Attendance records written by the scan pipeline.",
	})

	// ScanErrors counts scans that ended in the error state, by kind.
	ScanErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "absensiqr_scan_errors_total",
		Help: "Scans that ended in the error state.",
	}, []string{"kind"})
)
