package generate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phobologic/l10ngen/internal/gettext"
)

// metrics collects run counters in a private registry so they can be dumped
// in the node_exporter textfile format after the run.
type metrics struct {
	registry *prometheus.Registry

	files        *prometheus.CounterVec
	calls        *prometheus.CounterVec
	entries      prometheus.Gauge
	destinations *prometheus.CounterVec
	duration     prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "l10ngen_source_files_total",
				Help: "Source files visited, by language and result",
			},
			[]string{"language", "result"},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "l10ngen_calls_total",
				Help: "Translation function calls seen, by outcome",
			},
			[]string{"status"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "l10ngen_catalog_entries",
				Help: "Messages in the extracted catalog",
			},
		),
		destinations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "l10ngen_destinations_total",
				Help: "Destination files processed, by type and status",
			},
			[]string{"type", "status"},
		),
		duration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "l10ngen_run_duration_seconds",
				Help: "Wall time of the last run",
			},
		),
	}
	m.registry.MustRegister(m.files, m.calls, m.entries, m.destinations, m.duration)
	return m
}

func (m *metrics) observeFile(language, result string) {
	m.files.WithLabelValues(language, result).Inc()
}

func (m *metrics) observeCalls(s gettext.Stats) {
	m.calls.WithLabelValues("extracted").Add(float64(s.Extracted))
	m.calls.WithLabelValues("invalid").Add(float64(s.Invalid))
	m.calls.WithLabelValues("other_domain").Add(float64(s.OtherDomain))
	m.calls.WithLabelValues("unmatched").Add(float64(s.Unmatched))
}

func (m *metrics) observeDestination(r DestinationResult) {
	m.destinations.WithLabelValues(r.Type, string(r.Status)).Inc()
}

func (m *metrics) finish(entries int, elapsed time.Duration) {
	m.entries.Set(float64(entries))
	m.duration.Set(elapsed.Seconds())
}

func (m *metrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
