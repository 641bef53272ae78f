package log_pool

import (
	"bytes"
	"encoding/binary"

	"wblog/log_record"
)

// TxnRecordList is the ordered sequence of log records generated by one
// transaction. Append order is generation order and therefore replay
// order. The list is written to by exactly one goroutine (the owning
// transaction) until the pool hands ownership to the frontend logger.
type TxnRecordList struct {
	txNum   int64
	records []*log_record.TupleRecord
}

func NewTxnRecordList(txNum int64) *TxnRecordList {
	return &TxnRecordList{txNum: txNum}
}

func (l *TxnRecordList) TxNumber() int64 {
	return l.txNum
}

func (l *TxnRecordList) Len() int {
	return len(l.records)
}

// Records returns the underlying slice in append order. Callers must not
// reorder or mutate it.
func (l *TxnRecordList) Records() []*log_record.TupleRecord {
	return l.records
}

// TupleChanges counts the records carrying tuple mutations, excluding
// begin/commit markers. Used for the read-only commit fast path.
func (l *TxnRecordList) TupleChanges() int {
	n := 0
	for _, rec := range l.records {
		if rec.IsTupleChange() {
			n++
		}
	}
	return n
}

func (l *TxnRecordList) append(rec *log_record.TupleRecord) {
	l.records = append(l.records, rec)
}

// ToBytes serializes every record in append order, each frame prefixed by
// its uint32 length so a reader can walk the stream record by record.
func (l *TxnRecordList) ToBytes() []byte {
	var buf bytes.Buffer
	for _, rec := range l.records {
		frame := rec.ToBytes()
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(frame))); err != nil {
			return nil
		}
		if _, err := buf.Write(frame); err != nil {
			return nil
		}
	}
	return buf.Bytes()
}
