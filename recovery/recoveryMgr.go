package recovery

import (
	"fmt"

	"go.uber.org/zap"

	"wblog/log_record"
	"wblog/utils"
)

// Redoer is the narrow slice of the storage engine recovery needs:
// reapplying a committed tuple change at its original location.
type Redoer interface {
	RedoInsert(loc log_record.TupleLocation, image []byte) error
	RedoUpdate(loc log_record.TupleLocation, oldImage, newImage []byte) error
	RedoDelete(loc log_record.TupleLocation, oldImage []byte) error
}

// Mgr replays the persisted output of the external log writer on a cold
// start. Under write-behind logging only committed transactions ever reach
// the writer, but a crash can leave a torn tail, so replay still requires
// the commit marker before redoing a transaction.
type Mgr struct {
	lg *zap.Logger
}

func NewRecoveryMgr(lg *zap.Logger) *Mgr {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Mgr{lg: lg}
}

// Replay scans the serialized log, groups records per transaction in the
// order they were written, and redoes each committed transaction's tuple
// changes in that order. Transactions with no commit marker are skipped.
func (r *Mgr) Replay(data []byte, rd Redoer) error {
	txnRecords := make(map[int64][]*log_record.TupleRecord)
	var commitOrder []int64

	iter := utils.NewFrameIterator(data)
	for iter.HasNext() {
		frame, err := iter.Next()
		if err != nil {
			// A torn final write is expected after a crash; everything up
			// to the tear already replays correctly.
			r.lg.Warn("log stream ends mid-frame", zap.Error(err))
			break
		}
		rec, err := log_record.FromBytes(frame)
		if err != nil {
			return fmt.Errorf("failed to decode log record: %w", err)
		}

		switch rec.Kind() {
		case log_record.TXNBEGIN:
			// Marks the start of a transaction's run in the stream.
		case log_record.TXNCOMMIT:
			commitOrder = append(commitOrder, rec.TxNumber())
		default:
			txnRecords[rec.TxNumber()] = append(txnRecords[rec.TxNumber()], rec)
		}
	}

	committed := make(map[int64]bool, len(commitOrder))
	for _, txNum := range commitOrder {
		committed[txNum] = true
	}
	for txNum := range txnRecords {
		if !committed[txNum] {
			r.lg.Warn("skipping transaction without commit marker",
				zap.Int64("txn", txNum),
				zap.Int("records", len(txnRecords[txNum])),
			)
		}
	}

	for _, txNum := range commitOrder {
		for _, rec := range txnRecords[txNum] {
			if err := r.redo(rec, rd); err != nil {
				return fmt.Errorf("failed to redo txn %d lsn %d: %w", txNum, rec.LSN(), err)
			}
		}
		r.lg.Debug("transaction replayed",
			zap.Int64("txn", txNum),
			zap.Int("records", len(txnRecords[txNum])),
		)
	}
	return nil
}

func (r *Mgr) redo(rec *log_record.TupleRecord, rd Redoer) error {
	switch rec.Kind() {
	case log_record.TUPLEINSERT:
		return rd.RedoInsert(rec.Location(), rec.NewBytes())
	case log_record.TUPLEUPDATE:
		return rd.RedoUpdate(rec.Location(), rec.OldBytes(), rec.NewBytes())
	case log_record.TUPLEDELETE:
		return rd.RedoDelete(rec.Location(), rec.OldBytes())
	default:
		return fmt.Errorf("unexpected record kind %d", rec.Kind())
	}
}
