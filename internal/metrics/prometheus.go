package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kvmigrate"

// gauges are exported as gauges, every other key as a counter.
var gauges = map[string]bool{
	string(EndpointsUnhealthy): true,
}

// Collector exposes every counter of a Registry to Prometheus.
//
// It is an unchecked collector: Describe sends nothing because the set of
// keys grows as counters are first touched.
type Collector struct {
	reg *Registry
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector wraps reg.
func NewCollector(reg *Registry) *Collector {
	return &Collector{reg: reg}
}

func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", k),
			"Migration counter "+k+".",
			nil, nil,
		)
		valueType := prometheus.CounterValue
		if gauges[k] {
			valueType = prometheus.GaugeValue
		}
		ch <- prometheus.MustNewConstMetric(desc, valueType, float64(snap[k]))
	}
}

// NewPrometheusRegistry returns a Prometheus registry serving reg.
func NewPrometheusRegistry(reg *Registry) *prometheus.Registry {
	pr := prometheus.NewRegistry()
	pr.MustRegister(NewCollector(reg))
	return pr
}
