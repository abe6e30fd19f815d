// Package metrics exposes counters, gauges and histograms through a
// process-wide service. It is a no-op until InitializePrometheusMetrics is
// called.
package metrics

import (
	"net/http"
	"sync"
)

var metrics = defaultNoopMetrics()

// Metrics defines the interface for metrics service implementations
type Metrics interface {
	GetOrCreateCountVecMeter(name string, labels []string) CountVecMeter
	GetOrCreateGaugeVecMeter(name string, labels []string) GaugeVecMeter
	GetOrCreateHistogramVecMeter(name string, labels []string, buckets []int64) HistogramVecMeter
	GetOrCreateHandler() http.Handler
}

// HTTPHandler returns the http handler for retrieving metrics. It is nil
// while metrics are disabled.
func HTTPHandler() http.Handler {
	return metrics.GetOrCreateHandler()
}

// Enabled reports whether a real metrics backend is installed.
func Enabled() bool {
	_, ok := metrics.(*prometheusMetrics)
	return ok
}

// BucketConfirmMillis covers submission to confirmation latencies.
var BucketConfirmMillis = []int64{250, 500, 1000, 2000, 5000, 10_000, 20_000, 30_000, 60_000}

// BucketRequestMillis covers ledger and REST round trips.
var BucketRequestMillis = []int64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// CountVecMeter is a monotonically increasing counter with labels.
type CountVecMeter interface {
	AddWithLabel(int64, map[string]string)
}

func CounterVec(name string, labels []string) CountVecMeter {
	return metrics.GetOrCreateCountVecMeter(name, labels)
}

// GaugeVecMeter is a labelled value that can go up and down.
type GaugeVecMeter interface {
	AddWithLabel(int64, map[string]string)
	SetWithLabel(int64, map[string]string)
}

func GaugeVec(name string, labels []string) GaugeVecMeter {
	return metrics.GetOrCreateGaugeVecMeter(name, labels)
}

// HistogramVecMeter aggregates labelled observations into buckets.
type HistogramVecMeter interface {
	ObserveWithLabels(int64, map[string]string)
}

func HistogramVec(name string, labels []string, buckets []int64) HistogramVecMeter {
	return metrics.GetOrCreateHistogramVecMeter(name, labels, buckets)
}

// LazyLoad defers creating a meter until first use, so package level meter
// definitions pick up whichever backend is installed by then.
func LazyLoad[T any](f func() T) func() T {
	var result T
	var once sync.Once
	return func() T {
		once.Do(func() {
			result = f()
		})
		return result
	}
}

func LazyLoadCounterVec(name string, labels []string) func() CountVecMeter {
	return LazyLoad(func() CountVecMeter {
		return CounterVec(name, labels)
	})
}

func LazyLoadGaugeVec(name string, labels []string) func() GaugeVecMeter {
	return LazyLoad(func() GaugeVecMeter {
		return GaugeVec(name, labels)
	})
}

func LazyLoadHistogramVec(name string, labels []string, buckets []int64) func() HistogramVecMeter {
	return LazyLoad(func() HistogramVecMeter {
		return HistogramVec(name, labels, buckets)
	})
}
