package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wblog"

// Metrics instruments the staging pool and the frontend logger. All
// methods tolerate a nil receiver so components can run uninstrumented.
type Metrics struct {
	txnsStarted     prometheus.Counter
	txnsAborted     prometheus.Counter
	txnsDrained     prometheus.Counter
	recordsAppended prometheus.Counter
	poolDepth       prometheus.Gauge
	flushBytes      prometheus.Counter
	flushFailures   prometheus.Counter
}

func New(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		txnsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txns_started",
			Help:      "number of transactions registered in the pool",
		}),
		txnsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txns_aborted",
			Help:      "number of transaction lists discarded on abort",
		}),
		txnsDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txns_drained",
			Help:      "number of transaction lists drained by the frontend logger",
		}),
		recordsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended",
			Help:      "number of tuple records staged",
		}),
		poolDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_depth",
			Help:      "number of transaction lists currently staged",
		}),
		flushBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_bytes",
			Help:      "bytes acknowledged by the log writer",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_failures",
			Help:      "flush attempts that exhausted their retries",
		}),
	}

	collectors := []prometheus.Collector{
		m.txnsStarted,
		m.txnsAborted,
		m.txnsDrained,
		m.recordsAppended,
		m.poolDepth,
		m.flushBytes,
		m.flushFailures,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) IncTxnsStarted() {
	if m == nil {
		return
	}
	m.txnsStarted.Inc()
}

func (m *Metrics) IncTxnsAborted() {
	if m == nil {
		return
	}
	m.txnsAborted.Inc()
}

func (m *Metrics) IncTxnsDrained() {
	if m == nil {
		return
	}
	m.txnsDrained.Inc()
}

func (m *Metrics) IncRecordsAppended() {
	if m == nil {
		return
	}
	m.recordsAppended.Inc()
}

func (m *Metrics) SetPoolDepth(n int) {
	if m == nil {
		return
	}
	m.poolDepth.Set(float64(n))
}

func (m *Metrics) AddFlushBytes(n int) {
	if m == nil {
		return
	}
	m.flushBytes.Add(float64(n))
}

func (m *Metrics) IncFlushFailures() {
	if m == nil {
		return
	}
	m.flushFailures.Inc()
}
