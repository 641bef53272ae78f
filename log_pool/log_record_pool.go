package log_pool

import (
	"errors"
	"fmt"
	"sync"

	"wblog/log_record"
	"wblog/metrics"
)

var (
	// ErrDuplicateTxn reports a CreateList for a transaction that already
	// has a live list. This is a contract violation upstream (identifier
	// reuse before the prior list was retired); the pool refuses rather
	// than silently dropping a committed-but-undrained list.
	ErrDuplicateTxn = errors.New("transaction already has a record list")

	// ErrNoSuchTxn reports an Append or DrainFor against an unknown
	// transaction. For Append this is a caller bug (CreateList was never
	// called, or the transaction was already retired); for DrainFor it is
	// usually a benign race with a concurrent abort.
	ErrNoSuchTxn = errors.New("no record list for transaction")
)

type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("log pool %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LogRecordPool stages every active transaction's log records until the
// frontend logger drains them or the transaction aborts. The table itself
// is guarded by one mutex; list contents need no lock because a list is
// appended to only by its owning transaction, and removal/drain for a
// transaction only happens after that transaction has stopped appending.
type LogRecordPool struct {
	mu       sync.RWMutex
	txnTable map[int64]*TxnRecordList
	m        *metrics.Metrics
}

func NewLogRecordPool(m *metrics.Metrics) *LogRecordPool {
	return &LogRecordPool{
		txnTable: make(map[int64]*TxnRecordList),
		m:        m,
	}
}

// CreateList registers an empty record list for txNum. Fails with
// ErrDuplicateTxn if a list already exists.
func (p *LogRecordPool) CreateList(txNum int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txnTable[txNum]; exists {
		return &Error{Op: "create", Err: fmt.Errorf("txn %d: %w", txNum, ErrDuplicateTxn)}
	}
	p.txnTable[txNum] = NewTxnRecordList(txNum)
	p.m.IncTxnsStarted()
	p.m.SetPoolDepth(len(p.txnTable))
	return nil
}

// Append stages rec on the list owned by rec's transaction. Fails with
// ErrNoSuchTxn if the transaction has no live list. The table lock is held
// only long enough to locate the list; the append itself relies on the
// single-writer-per-transaction rule.
func (p *LogRecordPool) Append(rec *log_record.TupleRecord) error {
	p.mu.RLock()
	list, exists := p.txnTable[rec.TxNumber()]
	p.mu.RUnlock()

	if !exists {
		return &Error{Op: "append", Err: fmt.Errorf("txn %d: %w", rec.TxNumber(), ErrNoSuchTxn)}
	}
	list.append(rec)
	p.m.IncRecordsAppended()
	return nil
}

// Exists reports whether txNum has a live list in the pool.
func (p *LogRecordPool) Exists(txNum int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txnTable[txNum]
	return exists
}

// IsEmpty is the quiescence check: true iff no transaction has outstanding
// unflushed log state.
func (p *LogRecordPool) IsEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txnTable) == 0
}

func (p *LogRecordPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txnTable)
}

// Remove discards txNum's list and every record in it. Removing an absent
// transaction is a no-op: an abort may race with a drain that already won,
// and exactly one of the two must observe absence.
func (p *LogRecordPool) Remove(txNum int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txnTable[txNum]; !exists {
		return
	}
	delete(p.txnTable, txNum)
	p.m.IncTxnsAborted()
	p.m.SetPoolDepth(len(p.txnTable))
}

// DrainFor atomically removes and returns txNum's list, transferring
// ownership to the caller so serialization happens outside the pool's
// critical section. Fails with ErrNoSuchTxn if absent.
func (p *LogRecordPool) DrainFor(txNum int64) (*TxnRecordList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	list, exists := p.txnTable[txNum]
	if !exists {
		return nil, &Error{Op: "drain", Err: fmt.Errorf("txn %d: %w", txNum, ErrNoSuchTxn)}
	}
	delete(p.txnTable, txNum)
	p.m.IncTxnsDrained()
	p.m.SetPoolDepth(len(p.txnTable))
	return list, nil
}

// Clear unconditionally discards every list. Only for controlled shutdown
// and test teardown; during normal operation it would lose committed but
// undrained records.
func (p *LogRecordPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txnTable = make(map[int64]*TxnRecordList)
	p.m.SetPoolDepth(0)
}
