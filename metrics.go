package aio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	periodsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "periods_total",
		Help:      "Periods completed by the dHub per stream and sink",
	}, []string{"stream", "sink"})

	underflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "underflows_total",
		Help:      "Zero buffers submitted because no playback data was ready",
	}, []string{"stream", "sink"})

	overflowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "overflows_total",
		Help:      "Capture periods replaced with silence because the ring was full",
	}, []string{"stream", "sink"})

	queueFullTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "queue_full_total",
		Help:      "DMA submissions deferred because the dHub queue was full",
	}, []string{"stream", "sink"})

	desyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "desync_corrections_total",
		Help:      "Periods skipped to resynchronize with the dHub command queue",
	}, []string{"stream", "sink"})

	spuriousTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "spurious_interrupts_total",
		Help:      "Interrupts received while no DMA was pending",
	}, []string{"stream", "sink"})

	reclassifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "burst_reclassifications_total",
		Help:      "IEC61937 burst type changes detected after hw_params",
	}, []string{"stream", "sink"})

	micMuteTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "berlin",
		Subsystem: "aio",
		Name:      "mic_mute_transitions_total",
		Help:      "Mic-mute state transitions reported",
	}, []string{"stream", "sink"})
)

// Stats is a snapshot of the streaming counters of one stream.
type Stats struct {
	Periods         uint64
	Underflows      uint64
	Overflows       uint64
	QueueFull       uint64
	Desyncs         uint64
	Spurious        uint64
	Reclassified    uint64
	MicTransitions  uint64
	DescriptorSplit uint64
}

// streamCounters keeps the local copy of the counters next to the Prometheus series.
// Callers hold the stream lock.
type streamCounters struct {
	name  string
	stats Stats
}

func (c *streamCounters) period(sink string) {
	c.stats.Periods++
	periodsTotal.WithLabelValues(c.name, sink).Inc()
}

func (c *streamCounters) underflow(sink string) {
	c.stats.Underflows++
	underflowsTotal.WithLabelValues(c.name, sink).Inc()
}

func (c *streamCounters) overflow(sink string) {
	c.stats.Overflows++
	overflowsTotal.WithLabelValues(c.name, sink).Inc()
}

func (c *streamCounters) queueFull(sink string) {
	c.stats.QueueFull++
	queueFullTotal.WithLabelValues(c.name, sink).Inc()
}

func (c *streamCounters) desync(sink string, n int) {
	c.stats.Desyncs += uint64(n)
	desyncTotal.WithLabelValues(c.name, sink).Add(float64(n))
}

func (c *streamCounters) spurious(sink string) {
	c.stats.Spurious++
	spuriousTotal.WithLabelValues(c.name, sink).Inc()
}

func (c *streamCounters) reclassified(sink string) {
	c.stats.Reclassified++
	reclassifyTotal.WithLabelValues(c.name, sink).Inc()
}

func (c *streamCounters) micTransition() {
	c.stats.MicTransitions++
	micMuteTotal.WithLabelValues(c.name, "mic").Inc()
}

func (c *streamCounters) split(n int) {
	if n > 1 {
		c.stats.DescriptorSplit++
	}
}

// DeleteMetrics removes every Prometheus series of a stream.
func DeleteMetrics(stream string) {
	for _, vec := range []*prometheus.CounterVec{
		periodsTotal, underflowsTotal, overflowsTotal, queueFullTotal,
		desyncTotal, spuriousTotal, reclassifyTotal, micMuteTotal,
	} {
		vec.DeletePartialMatch(prometheus.Labels{"stream": stream})
	}
}
