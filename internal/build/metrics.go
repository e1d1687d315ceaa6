package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build counts and durations
type BuildMetrics struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	LastDuration     time.Duration `json:"last_duration"`
	AverageDuration  time.Duration `json:"average_duration"`
	TotalDuration    time.Duration `json:"total_duration"`
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records a build outcome in the metrics
func (bm *BuildMetrics) RecordBuild(outcome Outcome) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += outcome.Duration
	bm.LastDuration = outcome.Duration

	if outcome.Failed() {
		bm.FailedBuilds++
	} else {
		bm.SuccessfulBuilds++
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// GetSnapshot returns a copy of the current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		LastDuration:     bm.LastDuration,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.LastDuration = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
}

// GetSuccessRate returns the share of successful builds as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0
	}
	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100
}
