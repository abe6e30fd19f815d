package metrics

import "net/http"

type noopMetrics struct{}

func defaultNoopMetrics() Metrics { return &noopMetrics{} }

func (n *noopMetrics) GetOrCreateCountVecMeter(string, []string) CountVecMeter { return &noopMetric }

func (n *noopMetrics) GetOrCreateGaugeVecMeter(string, []string) GaugeVecMeter { return &noopMetric }

func (n *noopMetrics) GetOrCreateHistogramVecMeter(string, []string, []int64) HistogramVecMeter {
	return &noopMetric
}

func (n *noopMetrics) GetOrCreateHandler() http.Handler { return nil }

var noopMetric = noopMeters{}

type noopMeters struct{}

func (n noopMeters) AddWithLabel(int64, map[string]string) {}

func (n noopMeters) SetWithLabel(int64, map[string]string) {}

func (n noopMeters) ObserveWithLabels(int64, map[string]string) {}
