// Package exposition derives resource utilization from a node exporter
// scrape in the Prometheus text exposition format.
package exposition

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"supamon-backend/internal/models"
)

const (
	cpuSeconds     = "node_cpu_seconds_total"
	memAvailable   = "node_memory_MemAvailable_bytes"
	memTotal       = "node_memory_MemTotal_bytes"
	fsAvailable    = "node_filesystem_avail_bytes"
	fsSize         = "node_filesystem_size_bytes"
	rootMountpoint = "/"
)

// Parse reads a scrape body and returns cpu, memory and disk percentages.
// Fields whose inputs are missing are 0. On a syntax error the usage is zero
// and the error is returned.
func Parse(r io.Reader) (models.ResourceUsage, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return models.ResourceUsage{}, fmt.Errorf("parse exposition: %w", err)
	}
	return FromFamilies(families), nil
}

// FromFamilies derives usage from already parsed metric families.
func FromFamilies(families map[string]*dto.MetricFamily) models.ResourceUsage {
	usage := models.ResourceUsage{
		CPU:    cpuPercent(families[cpuSeconds]),
		Memory: usedPercent(sum(families[memAvailable], nil), sum(families[memTotal], nil)),
		Disk:   diskPercent(families[fsAvailable], families[fsSize]),
	}
	return usage.Clamp()
}

func cpuPercent(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var idle, total float64
	for _, m := range mf.GetMetric() {
		v := value(m)
		total += v
		if label(m, "mode") == "idle" {
			idle += v
		}
	}
	return usedPercent(idle, total)
}

func diskPercent(avail, size *dto.MetricFamily) float64 {
	onRoot := func(m *dto.Metric) bool { return label(m, "mountpoint") == rootMountpoint }
	if s := sum(size, onRoot); s > 0 {
		return usedPercent(sum(avail, onRoot), s)
	}
	return usedPercent(sum(avail, nil), sum(size, nil))
}

// usedPercent is 100*(1-free/total), or 0 when total is not positive.
func usedPercent(free, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * (1 - free/total)
}

func sum(mf *dto.MetricFamily, keep func(*dto.Metric) bool) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		if keep == nil || keep(m) {
			total += value(m)
		}
	}
	return total
}

func value(m *dto.Metric) float64 {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	}
	return 0
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
