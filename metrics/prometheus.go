package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

const namespace = "ore_boost"

// InitializePrometheusMetrics installs the Prometheus backend. Calling it
// again is a no-op.
func InitializePrometheusMetrics() {
	if _, ok := metrics.(*prometheusMetrics); !ok {
		metrics = newPrometheusMetrics()
	}
}

type prometheusMetrics struct {
	counterVecs   sync.Map
	gaugeVecs     sync.Map
	histogramVecs sync.Map
}

func newPrometheusMetrics() Metrics {
	return &prometheusMetrics{}
}

func (o *prometheusMetrics) GetOrCreateHandler() http.Handler {
	return promhttp.Handler()
}

func (o *prometheusMetrics) GetOrCreateCountVecMeter(name string, labels []string) CountVecMeter {
	if item, ok := o.counterVecs.Load(name); ok {
		return item.(CountVecMeter)
	}
	meter, _ := o.counterVecs.LoadOrStore(name, o.newCountVecMeter(name, labels))
	return meter.(CountVecMeter)
}

func (o *prometheusMetrics) GetOrCreateGaugeVecMeter(name string, labels []string) GaugeVecMeter {
	if item, ok := o.gaugeVecs.Load(name); ok {
		return item.(GaugeVecMeter)
	}
	meter, _ := o.gaugeVecs.LoadOrStore(name, o.newGaugeVecMeter(name, labels))
	return meter.(GaugeVecMeter)
}

func (o *prometheusMetrics) GetOrCreateHistogramVecMeter(name string, labels []string, buckets []int64) HistogramVecMeter {
	if item, ok := o.histogramVecs.Load(name); ok {
		return item.(HistogramVecMeter)
	}
	meter, _ := o.histogramVecs.LoadOrStore(name, o.newHistogramVecMeter(name, labels, buckets))
	return meter.(HistogramVecMeter)
}

func register(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		klog.Warningf("unable to register metric: %v", err)
	}
}

func (o *prometheusMetrics) newCountVecMeter(name string, labels []string) CountVecMeter {
	meter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
		},
		labels,
	)
	register(meter)
	return &promCountVecMeter{counter: meter}
}

type promCountVecMeter struct {
	counter *prometheus.CounterVec
}

func (c *promCountVecMeter) AddWithLabel(i int64, labels map[string]string) {
	c.counter.With(labels).Add(float64(i))
}

func (o *prometheusMetrics) newGaugeVecMeter(name string, labels []string) GaugeVecMeter {
	meter := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
		},
		labels,
	)
	register(meter)
	return &promGaugeVecMeter{gauge: meter}
}

type promGaugeVecMeter struct {
	gauge *prometheus.GaugeVec
}

func (c *promGaugeVecMeter) AddWithLabel(i int64, labels map[string]string) {
	c.gauge.With(labels).Add(float64(i))
}

func (c *promGaugeVecMeter) SetWithLabel(i int64, labels map[string]string) {
	c.gauge.With(labels).Set(float64(i))
}

func (o *prometheusMetrics) newHistogramVecMeter(name string, labels []string, buckets []int64) HistogramVecMeter {
	floatBuckets := make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		floatBuckets = append(floatBuckets, float64(bucket))
	}
	meter := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Buckets:   floatBuckets,
		},
		labels,
	)
	register(meter)
	return &promHistogramVecMeter{histogram: meter}
}

type promHistogramVecMeter struct {
	histogram *prometheus.HistogramVec
}

func (c *promHistogramVecMeter) ObserveWithLabels(i int64, labels map[string]string) {
	c.histogram.With(labels).Observe(float64(i))
}
