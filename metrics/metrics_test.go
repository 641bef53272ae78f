package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegistersOnce(t *testing.T) {
	r := prometheus.NewRegistry()

	m, err := New(r)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Double registration on the same registry must surface the error.
	_, err = New(r)
	require.Error(t, err)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.IncTxnsStarted()
	m.IncTxnsAborted()
	m.IncTxnsDrained()
	m.IncRecordsAppended()
	m.SetPoolDepth(3)
	m.AddFlushBytes(128)
	m.IncFlushFailures()
}
