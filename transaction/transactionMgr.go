package transaction

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"wblog/frontend"
	"wblog/log_pool"
	"wblog/log_record"
)

// ErrTxnFinished reports a log call on a transaction that already
// committed or rolled back. The staging layer's correctness depends on no
// appends happening after retirement, so this is fatal to the caller.
var ErrTxnFinished = errors.New("transaction already finished")

type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Mgr hands out transaction numbers and log sequence numbers and wires
// each transaction to the staging pool and the frontend logger. Numbers
// strictly increase for the process lifetime, so an identifier is never
// reused while a prior list could still be live.
type Mgr struct {
	nextTxNum *atomic.Int64
	nextLSN   *atomic.Int64
	pool      *log_pool.LogRecordPool
	fl        *frontend.FrontendLogger
	lg        *zap.Logger
}

func NewMgr(pool *log_pool.LogRecordPool, fl *frontend.FrontendLogger, lg *zap.Logger) *Mgr {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Mgr{
		nextTxNum: atomic.NewInt64(0),
		nextLSN:   atomic.NewInt64(0),
		pool:      pool,
		fl:        fl,
		lg:        lg,
	}
}

// Begin allocates a transaction number and eagerly registers its record
// list in the pool.
func (m *Mgr) Begin() (*Txn, error) {
	txNum := m.nextTxNum.Inc()
	if err := m.pool.CreateList(txNum); err != nil {
		return nil, &Error{Op: "begin", Err: err}
	}
	m.lg.Debug("transaction started", zap.Int64("txn", txNum))
	return &Txn{mgr: m, txNum: txNum}, nil
}

// HasLogState reports whether txNum still has staged records. Exposed for
// callers that branch on outstanding log work, e.g. a read-only commit
// fast path.
func (m *Mgr) HasLogState(txNum int64) bool {
	return m.pool.Exists(txNum)
}

var _ TransactionInterface = (*Txn)(nil)

// Txn is one executing transaction's handle into the staging layer. All
// methods must be called from the single goroutine executing the
// transaction.
type Txn struct {
	mgr      *Mgr
	txNum    int64
	logged   int
	finished bool
}

func (t *Txn) TxNumber() int64 {
	return t.txNum
}

// LogInsert stages an insert of image at loc. Returns the assigned LSN.
func (t *Txn) LogInsert(loc log_record.TupleLocation, image []byte) (int64, error) {
	return t.stage(func(lsn int64) *log_record.TupleRecord {
		return log_record.NewInsertRecord(t.txNum, lsn, loc, image)
	})
}

// LogUpdate stages an in-place update of the tuple at loc.
func (t *Txn) LogUpdate(loc log_record.TupleLocation, oldImage, newImage []byte) (int64, error) {
	return t.stage(func(lsn int64) *log_record.TupleRecord {
		return log_record.NewUpdateRecord(t.txNum, lsn, loc, oldImage, newImage)
	})
}

// LogDelete stages a delete of the tuple at loc, keeping the old image
// for undo.
func (t *Txn) LogDelete(loc log_record.TupleLocation, oldImage []byte) (int64, error) {
	return t.stage(func(lsn int64) *log_record.TupleRecord {
		return log_record.NewDeleteRecord(t.txNum, lsn, loc, oldImage)
	})
}

func (t *Txn) stage(build func(lsn int64) *log_record.TupleRecord) (int64, error) {
	if t.finished {
		return 0, &Error{Op: "log", Err: fmt.Errorf("txn %d: %w", t.txNum, ErrTxnFinished)}
	}

	// The begin marker is written lazily with the first tuple change so a
	// read-only transaction leaves nothing to flush.
	if t.logged == 0 {
		beginLSN := t.mgr.nextLSN.Inc()
		if err := t.mgr.pool.Append(log_record.NewBeginRecord(t.txNum, beginLSN)); err != nil {
			return 0, &Error{Op: "log", Err: err}
		}
	}

	lsn := t.mgr.nextLSN.Inc()
	if err := t.mgr.pool.Append(build(lsn)); err != nil {
		return 0, &Error{Op: "log", Err: err}
	}
	t.logged++
	return lsn, nil
}

// Commit retires the transaction. A transaction that logged nothing is
// removed from the pool without ever touching the frontend logger; one
// with staged changes gets a commit marker and is signaled commit-pending,
// after which this handle performs no further appends.
func (t *Txn) Commit() error {
	if t.finished {
		return &Error{Op: "commit", Err: fmt.Errorf("txn %d: %w", t.txNum, ErrTxnFinished)}
	}
	t.finished = true

	if t.logged == 0 {
		// Read-only fast path.
		t.mgr.pool.Remove(t.txNum)
		t.mgr.lg.Debug("read-only transaction committed", zap.Int64("txn", t.txNum))
		return nil
	}

	lsn := t.mgr.nextLSN.Inc()
	if err := t.mgr.pool.Append(log_record.NewCommitRecord(t.txNum, lsn)); err != nil {
		return &Error{Op: "commit", Err: err}
	}
	t.mgr.fl.CommitPending(t.txNum)
	t.mgr.lg.Debug("transaction committed",
		zap.Int64("txn", t.txNum),
		zap.Int("records", t.logged),
		zap.Int64("commitLSN", lsn),
	)
	return nil
}

// Rollback discards the transaction's staged records. Idempotent: rolling
// back a finished transaction is a no-op.
func (t *Txn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true

	t.mgr.pool.Remove(t.txNum)
	t.mgr.lg.Debug("transaction rolled back", zap.Int64("txn", t.txNum))
	return nil
}
