package scraper

import (
	"github.com/rcrowley/go-metrics"
)

type scraperMetrics struct {
	registry metrics.Registry

	TrackersAttempted metrics.Counter
	TrackersSkipped   metrics.Counter
	TrackersFailed    metrics.Counter
	HashesResolved    metrics.Counter
	HashesUnresolved  metrics.Counter
	TrackerDuration   metrics.Timer
}

func newMetrics() *scraperMetrics {
	r := metrics.NewRegistry()
	return &scraperMetrics{
		registry: r,

		TrackersAttempted: metrics.NewRegisteredCounter("trackers_attempted", r),
		TrackersSkipped:   metrics.NewRegisteredCounter("trackers_skipped", r),
		TrackersFailed:    metrics.NewRegisteredCounter("trackers_failed", r),
		HashesResolved:    metrics.NewRegisteredCounter("hashes_resolved", r),
		HashesUnresolved:  metrics.NewRegisteredCounter("hashes_unresolved", r),
		TrackerDuration:   metrics.NewRegisteredTimer("tracker_duration", r),
	}
}

func (m *scraperMetrics) Close() {
	m.TrackerDuration.Stop()
}
