package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	campusauth "github.com/campuskit/campusauth"
	"github.com/campuskit/campusauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() campusauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format.
// It reads atomically-consistent snapshots, so scraping never contends
// with the engine's hot path.
type Exporter struct {
	source metricsSource
}

func NewExporter(engine *campusauth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource accepts any snapshot provider, mainly for tests.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the exposition at scrape time.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render writes the current metrics as exposition text.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()

	var b strings.Builder
	b.Grow(8192)

	// Zero-valued series are omitted, so a disabled registry renders to
	// an empty exposition.
	for _, def := range internaldefs.CounterDefs {
		if v := snapshot.Counters[def.ID]; v > 0 {
			writeCounter(&b, def.Name, def.Help, v)
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		hist := snapshot.Histograms[def.ID]
		if hist.Count == 0 {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(hist.Buckets)
		writeHistogram(&b, def.Name, def.Help, cumulative, hist.Count)
	}

	if dropped > 0 {
		writeCounter(&b, "campusauth_audit_dropped_total", "Audit events shed under dispatcher backpressure.", dropped)
	}

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64, count uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" histogram\n")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(count, 10))
	b.WriteByte('\n')

	// Sum is not tracked in core snapshots; keep a stable field.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
