package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatwidget"

// Metrics holds the diagnostic counters of the widget. All methods are safe on
// a nil receiver so components can run without metrics.
type Metrics struct {
	rendered     *prometheus.CounterVec
	unclassified *prometheus.CounterVec
	submissions  *prometheus.CounterVec
	speech       *prometheus.CounterVec
}

// New creates the counters and registers them with reg. A nil reg skips
// registration, which is what tests use.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rendered_total",
			Help:      "Messages rendered, by variant.",
		}, []string{"variant"}),
		unclassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_unclassified_total",
			Help:      "Messages omitted because their type matched no renderer.",
		}, []string{"type"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Composer submissions, by result (accepted, rejected, gated).",
		}, []string{"result"}),
		speech: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_sessions_total",
			Help:      "Speech capture sessions, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.rendered, m.unclassified, m.submissions, m.speech} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) MessageRendered(variant string) {
	if m == nil {
		return
	}
	m.rendered.WithLabelValues(variant).Inc()
}

func (m *Metrics) MessageUnclassified(type_ string) {
	if m == nil {
		return
	}
	m.unclassified.WithLabelValues(type_).Inc()
}

func (m *Metrics) Submission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) SpeechSession(outcome string) {
	if m == nil {
		return
	}
	m.speech.WithLabelValues(outcome).Inc()
}

// Rendered, Unclassified, Submissions and Speech expose the vectors for
// inspection in tests.
func (m *Metrics) Rendered() *prometheus.CounterVec     { return m.rendered }
func (m *Metrics) Unclassified() *prometheus.CounterVec { return m.unclassified }
func (m *Metrics) Submissions() *prometheus.CounterVec  { return m.submissions }
func (m *Metrics) Speech() *prometheus.CounterVec       { return m.speech }
