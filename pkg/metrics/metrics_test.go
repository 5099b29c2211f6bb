package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.MessageRendered("bot")
	m.MessageUnclassified("typo")
	m.Submission("accepted")
	m.SpeechSession("error")
}

func TestMetrics_RegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.MessageUnclassified("bott")
	m.MessageUnclassified("bott")
	m.Submission("accepted")

	require.Equal(t, 2.0, testutil.ToFloat64(m.Unclassified().WithLabelValues("bott")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Submissions().WithLabelValues("accepted")))

	_, err = New(reg)
	require.Error(t, err)
}
