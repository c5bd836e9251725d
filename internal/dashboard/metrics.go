package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the statistics table as Prometheus gauges.
// Values are read from a fresh snapshot on every scrape, so a clear command
// resets them; they are gauges rather than counters for that reason.
type Collector struct {
	src Source
	now func() time.Time

	calls      *prometheus.Desc
	errors     *prometheus.Desc
	avgTime    *prometheus.Desc
	maxTime    *prometheus.Desc
	errorKinds *prometheus.Desc
	iterations *prometheus.Desc
	active     *prometheus.Desc
	runTime    *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	constLabels := prometheus.Labels{"run_id": src.RunID()}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("frontloader", "", name), help, labels, constLabels)
	}

	return &Collector{
		src:        src,
		now:        time.Now,
		calls:      desc("calls", "Calls recorded per call name.", "call"),
		errors:     desc("call_errors", "Failed calls per call name.", "call"),
		avgTime:    desc("call_avg_seconds", "Mean call time per call name.", "call"),
		maxTime:    desc("call_max_seconds", "Largest call time per call name.", "call"),
		errorKinds: desc("errors_by_kind", "Failed calls per status code or Timeout.", "kind"),
		iterations: desc("iterations_completed", "Script iterations completed across all workers."),
		active:     desc("workers_active", "Workers still looping."),
		runTime:    desc("run_seconds", "Time since the run clock started."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.errors
	ch <- c.avgTime
	ch <- c.maxTime
	ch <- c.errorKinds
	ch <- c.iterations
	ch <- c.active
	ch <- c.runTime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Snapshot()

	for _, name := range snap.Names {
		call := snap.Call(name)
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.GaugeValue, float64(call.Count), name)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.GaugeValue, float64(call.ErrorCount), name)
		ch <- prometheus.MustNewConstMetric(c.avgTime, prometheus.GaugeValue, call.AverageTime(), name)
		ch <- prometheus.MustNewConstMetric(c.maxTime, prometheus.GaugeValue, call.MaxTime.Seconds(), name)
	}
	for _, kind := range snap.SortedErrorKinds() {
		ch <- prometheus.MustNewConstMetric(c.errorKinds, prometheus.GaugeValue, float64(snap.ErrorCount(kind)), kind.String())
	}

	ch <- prometheus.MustNewConstMetric(c.iterations, prometheus.GaugeValue, float64(c.src.Iterations()))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(c.src.ActiveWorkers()))

	var runTime float64
	if start := c.src.StartTime(); !start.IsZero() {
		runTime = c.now().Sub(start).Seconds()
	}
	ch <- prometheus.MustNewConstMetric(c.runTime, prometheus.GaugeValue, runTime)
}
