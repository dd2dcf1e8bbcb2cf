package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stupid-simple/medialib/runner"
)

const namespace = "medialib"

// Textfile writes the outcome of every run in Prometheus text format, one
// file per kind and discriminator, for the node exporter textfile
// collector.
type Textfile struct {
	dir string
	now func() time.Time
}

func NewTextfile(dir string) *Textfile {
	return &Textfile{dir: dir, now: time.Now}
}

// Path is where the metrics of a kind and discriminator are written.
func (t *Textfile) Path(kind, discriminator string) string {
	return filepath.Join(t.dir, fmt.Sprintf("%s_%s_%s.prom", namespace, kind, discriminator))
}

func (t *Textfile) Record(report runner.Report) error {
	labels := prometheus.Labels{"kind": report.Kind, "discriminator": report.Discriminator}
	reg := prometheus.NewRegistry()

	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		reg.MustRegister(g)
		return g
	}

	success := gauge("run_success", "Whether the last run succeeded.")
	if report.Succeeded {
		success.Set(1)
	}
	gauge("run_duration_seconds", "Duration of the last run.").Set(report.ElapsedSeconds)
	gauge("run_last_timestamp_seconds", "Time the last run ended.").Set(float64(t.now().Unix()))
	gauge("run_errors", "Per file errors of the last run.").Set(float64(report.Status.Errors))
	gauge("run_bytes", "Bytes handled by the last run.").Set(float64(report.Status.Bytes))

	counts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "run_files",
		Help:        "Files per outcome in the last run.",
		ConstLabels: labels,
	}, []string{"count"})
	reg.MustRegister(counts)
	for _, c := range report.Status.Counts {
		counts.WithLabelValues(c.Name).Set(float64(c.Value))
	}

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(t.Path(report.Kind, report.Discriminator), reg)
}
