package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the lead pipeline.
type PipelineMetrics struct {
	leadsTotal     *prometheus.CounterVec
	webhookTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
	downloadsTotal *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpipe",
			Subsystem: "intake",
			Name:      "leads_total",
			Help:      "Total lead submissions by source and outcome",
		}, []string{"source", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpipe",
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Total inbound email webhook events",
		}, []string{"event_type", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadpipe",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of email webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		downloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadpipe",
			Subsystem: "library",
			Name:      "downloads_total",
			Help:      "Total library download attempts",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.leadsTotal, m.webhookTotal, m.webhookLatency, m.downloadsTotal)
	return m
}

func (m *PipelineMetrics) ObserveLead(source, status string) {
	if m == nil {
		return
	}
	m.leadsTotal.WithLabelValues(source, status).Inc()
}

func (m *PipelineMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *PipelineMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

func (m *PipelineMetrics) ObserveDownload(status string) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(status).Inc()
}
