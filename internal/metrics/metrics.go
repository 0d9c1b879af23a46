// If you are AI: This file defines the process-wide prometheus collectors
// for videopipe. There is no teacher equivalent (vinq1911-nonchalant
// exposes only a bare /healthz), so these are grounded on the pack's
// snapetech-plexTuner, which wires github.com/prometheus/client_golang
// the same way: package-level CounterVec/Gauge variables registered once
// at process start and incremented from the hot path with no allocation.

package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FramesPublished counts frames handed to channel.Publisher.Publish,
	// labeled by channel name.
	FramesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "videopipe_frames_published_total",
		Help: "Number of frames published to a channel.",
	}, []string{"channel"})

	// SlotFailures counts per-subscriber notification failures observed
	// during a publish, labeled by channel name (spec.md §4.3's notifyAll
	// step: a slot that fails to be notified is marked failed and not
	// retried; it becomes free again only when its subscriber detaches
	// and clears in_use, or when an operator calls Purge).
	SlotFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "videopipe_slot_failures_total",
		Help: "Number of subscriber-slot notification failures observed during publish.",
	}, []string{"channel"})

	// FramesPersisted counts frames C7's fan-out successfully wrote to
	// disk, labeled by output name.
	FramesPersisted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "videopipe_frames_persisted_total",
		Help: "Number of frames persisted to the filesystem by the output fan-out.",
	}, []string{"output"})
)

// Register adds every collector above to prometheus's default registry.
// Call this once during process start-up, before /metrics is served.
func Register() {
	prometheus.MustRegister(FramesPublished, SlotFailures, FramesPersisted)
}
