package controller

import (
	"sync/atomic"
)

// Metrics contains atomic counters of a Controller.
type Metrics struct {
	// RunCount indicates the number of started runs.
	RunCount atomic.Uint64
	// CycleCount indicates the number of auto mode cycles entered from Idle.
	CycleCount atomic.Uint64
	// RecoveryCount indicates the number of cycles restarted after a failure.
	RecoveryCount atomic.Uint64
	// PageRequestCount indicates the number of "page 7" requests.
	PageRequestCount atomic.Uint64
	// AnnounceCount indicates the number of UPDATED texts sent.
	AnnounceCount atomic.Uint64
	// UpdateCount indicates the number of polling runs that reported "update complete".
	UpdateCount atomic.Uint64
}

func (m *Metrics) incRunCount() {
	m.RunCount.Add(1)
}

func (m *Metrics) incCycleCount() {
	m.CycleCount.Add(1)
}

func (m *Metrics) incRecoveryCount() {
	m.RecoveryCount.Add(1)
}

func (m *Metrics) incPageRequestCount() {
	m.PageRequestCount.Add(1)
}

func (m *Metrics) incAnnounceCount() {
	m.AnnounceCount.Add(1)
}

func (m *Metrics) incUpdateCount() {
	m.UpdateCount.Add(1)
}
