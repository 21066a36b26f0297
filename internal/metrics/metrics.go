// Package metrics exposes rollout counters for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed runs by mode and result.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclpush",
		Name:      "runs_total",
		Help:      "Completed rollout runs by mode and result.",
	}, []string{"mode", "result"})

	// DeviceOutcomesTotal counts terminal device outcomes by status.
	DeviceOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aclpush",
		Name:      "device_outcomes_total",
		Help:      "Terminal device outcomes by status.",
	}, []string{"status"})

	// RollbackFailuresTotal counts rollbacks that themselves failed, leaving
	// a device in an unknown state.
	RollbackFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aclpush",
		Name:      "rollback_failures_total",
		Help:      "Rollbacks that failed, leaving the device state unknown.",
	})
)
