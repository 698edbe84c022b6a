// Package metrics exposes the interceptor's decision counters and the
// least-trustworthy-path gauge as Prometheus collectors, so an operator can
// scrape forward/drop rates and watch the (never decision-gating) path
// score without reading logs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set bundles the collectors one broker instance registers.
type Set struct {
	MessagesTotal    *prometheus.CounterVec
	FeedbackTotal    *prometheus.CounterVec
	PathScoreGauge   *prometheus.GaugeVec
}

// NewSet creates a Set and registers it with reg.
func NewSet(reg prometheus.Registerer) *Set {
	s := &Set{
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustmesh",
			Name:      "messages_total",
			Help:      "Inbound messages processed by the interceptor, by disposition.",
		}, []string{"result", "reason"}),
		FeedbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trustmesh",
			Name:      "feedback_total",
			Help:      "Feedback messages applied, by sign.",
		}, []string{"sign", "applied"}),
		PathScoreGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trustmesh",
			Name:      "path_score",
			Help:      "Least-trustworthy-path score last observed for a (source,target) pair.",
		}, []string{"source", "target"}),
	}
	reg.MustRegister(s.MessagesTotal, s.FeedbackTotal, s.PathScoreGauge)
	return s
}

// RecordForward increments the forward counter.
func (s *Set) RecordForward() {
	if s == nil {
		return
	}
	s.MessagesTotal.WithLabelValues("forward", "").Inc()
}

// RecordDrop increments the drop counter for reason.
func (s *Set) RecordDrop(reason string) {
	if s == nil {
		return
	}
	s.MessagesTotal.WithLabelValues("drop", reason).Inc()
}

// RecordPassThrough increments the pass-through counter.
func (s *Set) RecordPassThrough() {
	if s == nil {
		return
	}
	s.MessagesTotal.WithLabelValues("pass_through", "").Inc()
}

// RecordFeedback increments the feedback counter for sign, tagging whether
// it actually mutated state.
func (s *Set) RecordFeedback(sign string, applied bool) {
	if s == nil {
		return
	}
	appliedLabel := "false"
	if applied {
		appliedLabel = "true"
	}
	s.FeedbackTotal.WithLabelValues(sign, appliedLabel).Inc()
}

// ObservePathScore records the last path score computed for source->target.
func (s *Set) ObservePathScore(source, target string, score float64) {
	if s == nil {
		return
	}
	s.PathScoreGauge.WithLabelValues(source, target).Set(score)
}
