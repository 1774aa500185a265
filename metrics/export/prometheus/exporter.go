package prometheus

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads. *authkit.Engine satisfies it.
type MetricsSource interface {
	MetricsSnapshot() authkit.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source MetricsSource
}

// NewExporter returns an exporter reading from source.
func NewExporter(source MetricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write(p.Render())
	})
}

// Render returns the exposition text. It is empty when metrics are disabled
// and nothing was dropped.
func (p *Exporter) Render() []byte {
	if p == nil || p.source == nil {
		return nil
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return nil
	}

	w := textWriter{}
	w.buf.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		w.family(def.Name, def.Help, "counter")
		w.sample(def.Name, "", snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		w.family(def.Name, def.Help, "histogram")
		for i, bound := range internaldefs.HistogramBounds {
			w.sample(def.Name+"_bucket", `le="`+strconv.FormatFloat(bound, 'f', -1, 64)+`"`, cumulative[i])
		}
		total := cumulative[len(cumulative)-1]
		w.sample(def.Name+"_bucket", `le="+Inf"`, total)
		w.sample(def.Name+"_count", "", total)
		// Snapshots carry bucket counts only.
		w.sample(def.Name+"_sum", "", 0)
	}

	w.family(internaldefs.AuditDroppedName, "Audit events dropped because the dispatcher buffer was full.", "counter")
	w.sample(internaldefs.AuditDroppedName, "", dropped)

	return w.buf.Bytes()
}

type textWriter struct {
	buf bytes.Buffer
}

func (w *textWriter) family(name, help, kind string) {
	w.buf.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.buf.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) sample(name, labels string, value uint64) {
	w.buf.WriteString(name)
	if labels != "" {
		w.buf.WriteString("{" + labels + "}")
	}
	w.buf.WriteByte(' ')
	w.buf.WriteString(strconv.FormatUint(value, 10))
	w.buf.WriteByte('\n')
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
