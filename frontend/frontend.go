package frontend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wblog/config"
	"wblog/log_pool"
	"wblog/metrics"
)

// LogWriter is the external physical log writer. A nil return from Write
// is the durability acknowledgment; the writer must persist bytes in the
// order it is handed them.
type LogWriter interface {
	Write(p []byte) error
}

type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("frontend logger %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FrontendLogger consumes the staging pool. Transaction threads report
// commit-pending transactions via CommitPending; the background loop (or
// an explicit Flush call) drains each one out of the pool, serializes the
// lists keeping every transaction's records contiguous and in append
// order, and hands the concatenation to the log writer. Lists drained but
// not yet acknowledged stay in a private carry buffer so a write failure
// never loses records and a retry never duplicates a drain.
type FrontendLogger struct {
	pool   *log_pool.LogRecordPool
	writer LogWriter
	lg     *zap.Logger
	cfg    config.Config
	m      *metrics.Metrics

	pendingMu sync.Mutex
	pending   []int64
	notify    chan struct{}

	// flushMu serializes flush cycles; carry and failed belong to it.
	flushMu sync.Mutex
	carry   []*log_pool.TxnRecordList
	failed  map[int64]struct{}

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(pool *log_pool.LogRecordPool, writer LogWriter, lg *zap.Logger, cfg config.Config, m *metrics.Metrics) *FrontendLogger {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &FrontendLogger{
		pool:   pool,
		writer: writer,
		lg:     lg,
		cfg:    cfg,
		m:      m,
		notify: make(chan struct{}, 1),
		failed: make(map[int64]struct{}),
		done:   make(chan struct{}),
	}
}

// CommitPending records that txNum's commit is durable at the
// concurrency-control layer and its list is ready to drain. Never blocks:
// transaction threads must not wait on a stalled writer.
func (f *FrontendLogger) CommitPending(txNum int64) {
	f.pendingMu.Lock()
	f.pending = append(f.pending, txNum)
	f.pendingMu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Start launches the background flush loop.
func (f *FrontendLogger) Start() {
	f.wg.Add(1)
	go f.run()
}

// Close stops the background loop and performs one final flush of
// everything still pending or carried.
func (f *FrontendLogger) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
	})
	f.wg.Wait()
	return f.Flush()
}

// FailedTxns returns the transactions whose durability is unknown: drained
// from the pool but never acknowledged by the writer within the retry
// budget. Their records are still carried and retried on the next flush.
func (f *FrontendLogger) FailedTxns() []int64 {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	txns := make([]int64, 0, len(f.failed))
	for txNum := range f.failed {
		txns = append(txns, txNum)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i] < txns[j] })
	return txns
}

func (f *FrontendLogger) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-f.notify:
		case <-ticker.C:
		}
		if err := f.Flush(); err != nil {
			f.lg.Error("flush cycle failed", zap.Error(err))
		}
	}
}

// Flush runs one drain-and-flush cycle. Safe to call concurrently with
// the background loop; cycles are serialized.
func (f *FrontendLogger) Flush() error {
	f.flushMu.Lock()
	defer f.flushMu.Unlock()

	for _, txNum := range f.takePending() {
		list, err := f.pool.DrainFor(txNum)
		if err != nil {
			if errors.Is(err, log_pool.ErrNoSuchTxn) {
				// The commit signal raced with an abort that won, or a
				// duplicate signal for an already-drained transaction.
				f.lg.Debug("commit-pending txn already retired", zap.Int64("txn", txNum))
				continue
			}
			return &Error{Op: "drain", Err: err}
		}
		f.carry = append(f.carry, list)
	}

	if len(f.carry) == 0 {
		return nil
	}

	start := time.Now()
	payload, err := serializeLists(f.carry)
	if err != nil {
		return &Error{Op: "serialize", Err: err}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.cfg.RetryInitialWait
	writeErr := backoff.Retry(func() error {
		return f.writer.Write(payload)
	}, backoff.WithMaxRetries(bo, f.cfg.MaxFlushRetries))

	if writeErr != nil {
		// Retries exhausted. The lists stay in the carry buffer (never
		// back in the shared pool) and the transactions are reported as
		// durability-unknown until a later cycle succeeds.
		for _, list := range f.carry {
			f.failed[list.TxNumber()] = struct{}{}
		}
		f.m.IncFlushFailures()
		f.lg.Error("log writer rejected flush",
			zap.Int("txns", len(f.carry)),
			zap.Int("bytes", len(payload)),
			zap.Error(writeErr),
		)
		return &Error{Op: "write", Err: writeErr}
	}

	for _, list := range f.carry {
		delete(f.failed, list.TxNumber())
	}
	f.m.AddFlushBytes(len(payload))
	f.lg.Info("flushed transactions",
		zap.Int("txns", len(f.carry)),
		zap.Int("bytes", len(payload)),
		zap.Duration("t", time.Since(start)),
	)
	f.carry = nil
	return nil
}

func (f *FrontendLogger) takePending() []int64 {
	f.pendingMu.Lock()
	defer f.pendingMu.Unlock()
	pending := f.pending
	f.pending = nil
	return pending
}

// serializeLists serializes each list in parallel, then concatenates in
// list order so every transaction's records stay contiguous and in append
// order while transactions keep their drain order.
func serializeLists(lists []*log_pool.TxnRecordList) ([]byte, error) {
	bufs := make([][]byte, len(lists))
	var g errgroup.Group
	for i, list := range lists {
		i, list := i, list
		g.Go(func() error {
			bufs[i] = list.ToBytes()
			if bufs[i] == nil && list.Len() > 0 {
				return fmt.Errorf("failed to serialize txn %d", list.TxNumber())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	payload := make([]byte, 0, total)
	for _, b := range bufs {
		payload = append(payload, b...)
	}
	return payload, nil
}
