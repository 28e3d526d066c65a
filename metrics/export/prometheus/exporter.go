package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goScrypt "github.com/MrEthical07/goScrypt"
	defs "github.com/MrEthical07/goScrypt/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() goScrypt.MetricsSnapshot
	AuditDropped() uint64
}

// reportSource is implemented by *goScrypt.Engine. Sources that also report
// their configuration get cost gauges next to the counters.
type reportSource interface {
	SecurityReport() goScrypt.SecurityReport
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates an exporter reading from engine.
func NewPrometheusExporter(engine *goScrypt.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics in Prometheus text exposition format.
// It is empty when the source has metrics disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	w := &textWriter{}
	w.b.Grow(4096)

	w.header(defs.OperationsFamily, defs.OperationsHelp, "counter")
	for _, def := range defs.OperationDefs {
		w.sample(defs.OperationsFamily, snapshot.Counters[def.ID],
			defs.LabelOperation, def.Operation, defs.LabelOutcome, def.Outcome)
	}

	w.header(defs.EventsFamily, defs.EventsHelp, "counter")
	for _, def := range defs.EventDefs {
		w.sample(defs.EventsFamily, snapshot.Counters[def.ID], defs.LabelEvent, def.Event)
	}

	w.header(defs.KDFDurationFamily, defs.KDFDurationHelp, "histogram")
	for _, def := range defs.HistogramDefs {
		cumulative := defs.CumulativeBuckets(defs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		for i, le := range defs.HistogramBounds {
			w.sample(defs.KDFDurationFamily+"_bucket", cumulative[i], defs.LabelOperation, def.Operation, defs.LabelLE, le)
		}
		w.sample(defs.KDFDurationFamily+"_count", cumulative[len(cumulative)-1], defs.LabelOperation, def.Operation)
		// Snapshots carry bucket counts only.
		w.sample(defs.KDFDurationFamily+"_sum", 0, defs.LabelOperation, def.Operation)
	}

	w.header(defs.AuditDroppedFamily, defs.AuditDroppedHelp, "counter")
	w.sample(defs.AuditDroppedFamily, dropped)

	if rs, ok := p.source.(reportSource); ok {
		r := rs.SecurityReport()
		w.gauge(defs.DefaultLogNFamily, defs.DefaultLogNHelp, uint64(r.Defaults.LogN))
		w.gauge(defs.DefaultMemFamily, defs.DefaultMemHelp, r.DefaultMemory)
		w.gauge(defs.MaxLogNFamily, defs.MaxLogNHelp, uint64(r.Limits.MaxLogN))
	}

	return w.b.String()
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.b.WriteString("# HELP ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(escapeHelp(help))
	w.b.WriteString("\n# TYPE ")
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(kind)
	w.b.WriteByte('\n')
}

// sample writes one line. labels alternate key, value.
func (w *textWriter) sample(name string, value uint64, labels ...string) {
	w.b.WriteString(name)
	if len(labels) > 0 {
		w.b.WriteByte('{')
		for i := 0; i+1 < len(labels); i += 2 {
			if i > 0 {
				w.b.WriteByte(',')
			}
			w.b.WriteString(labels[i])
			w.b.WriteString(`="`)
			w.b.WriteString(escapeLabel(labels[i+1]))
			w.b.WriteByte('"')
		}
		w.b.WriteByte('}')
	}
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(value, 10))
	w.b.WriteByte('\n')
}

func (w *textWriter) gauge(name, help string, value uint64) {
	w.header(name, help, "gauge")
	w.sample(name, value)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return strings.ReplaceAll(v, "\n", "\\n")
}
