package log_record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	TUPLEINSERT int32 = iota
	TUPLEUPDATE
	TUPLEDELETE
	TXNBEGIN
	TXNCOMMIT
)

// TupleRecord describes a single tuple-level change made by one
// transaction: the operation kind, the owning transaction number, the log
// sequence number assigned at append time, the tuple's location, and the
// before/after images needed to redo or undo the change. A record is never
// mutated after it has been appended to a transaction's list.
type TupleRecord struct {
	kind     int32
	txNum    int64
	lsn      int64
	location TupleLocation
	oldBytes []byte
	newBytes []byte
}

func NewInsertRecord(txNum, lsn int64, loc TupleLocation, image []byte) *TupleRecord {
	return &TupleRecord{kind: TUPLEINSERT, txNum: txNum, lsn: lsn, location: loc, newBytes: image}
}

func NewUpdateRecord(txNum, lsn int64, loc TupleLocation, oldBytes, newBytes []byte) *TupleRecord {
	return &TupleRecord{kind: TUPLEUPDATE, txNum: txNum, lsn: lsn, location: loc, oldBytes: oldBytes, newBytes: newBytes}
}

func NewDeleteRecord(txNum, lsn int64, loc TupleLocation, oldImage []byte) *TupleRecord {
	return &TupleRecord{kind: TUPLEDELETE, txNum: txNum, lsn: lsn, location: loc, oldBytes: oldImage}
}

func NewBeginRecord(txNum, lsn int64) *TupleRecord {
	return &TupleRecord{kind: TXNBEGIN, txNum: txNum, lsn: lsn}
}

func NewCommitRecord(txNum, lsn int64) *TupleRecord {
	return &TupleRecord{kind: TXNCOMMIT, txNum: txNum, lsn: lsn}
}

// Getter methods
func (r *TupleRecord) Kind() int32 {
	return r.kind
}

func (r *TupleRecord) TxNumber() int64 {
	return r.txNum
}

func (r *TupleRecord) LSN() int64 {
	return r.lsn
}

func (r *TupleRecord) Location() TupleLocation {
	return r.location
}

func (r *TupleRecord) OldBytes() []byte {
	return r.oldBytes
}

func (r *TupleRecord) NewBytes() []byte {
	return r.newBytes
}

// IsTupleChange reports whether the record carries a tuple mutation, as
// opposed to a transaction begin/commit marker.
func (r *TupleRecord) IsTupleChange() bool {
	return r.kind == TUPLEINSERT || r.kind == TUPLEUPDATE || r.kind == TUPLEDELETE
}

func (r *TupleRecord) String() string {
	return fmt.Sprintf("%s txnum=%d, lsn=%d, loc=%s, oldBytes=%v, newBytes=%v",
		kindName(r.kind), r.txNum, r.lsn, r.location, r.oldBytes, r.newBytes)
}

func kindName(kind int32) string {
	switch kind {
	case TUPLEINSERT:
		return "TUPLEINSERT"
	case TUPLEUPDATE:
		return "TUPLEUPDATE"
	case TUPLEDELETE:
		return "TUPLEDELETE"
	case TXNBEGIN:
		return "TXNBEGIN"
	case TXNCOMMIT:
		return "TXNCOMMIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", kind)
	}
}

// ToBytes serializes the record. The layout is self-describing
// (length-prefixed variable fields) so FromBytes can reverse it.
func (r *TupleRecord) ToBytes() []byte {
	var buf bytes.Buffer

	// Write record kind
	if err := binary.Write(&buf, binary.BigEndian, r.kind); err != nil {
		return nil
	}

	// Write transaction number
	if err := binary.Write(&buf, binary.BigEndian, r.txNum); err != nil {
		return nil
	}

	// Write log sequence number
	if err := binary.Write(&buf, binary.BigEndian, r.lsn); err != nil {
		return nil
	}

	// Write filename length and filename
	fileBytes := []byte(r.location.FileName())
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(fileBytes))); err != nil {
		return nil
	}
	if _, err := buf.Write(fileBytes); err != nil {
		return nil
	}

	// Write block number and slot
	if err := binary.Write(&buf, binary.BigEndian, r.location.BlockNumber()); err != nil {
		return nil
	}
	if err := binary.Write(&buf, binary.BigEndian, r.location.Slot()); err != nil {
		return nil
	}

	// Write old image length and bytes
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.oldBytes))); err != nil {
		return nil
	}
	if _, err := buf.Write(r.oldBytes); err != nil {
		return nil
	}

	// Write new image length and bytes
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.newBytes))); err != nil {
		return nil
	}
	if _, err := buf.Write(r.newBytes); err != nil {
		return nil
	}

	return buf.Bytes()
}

// FromBytes creates a TupleRecord from raw bytes produced by ToBytes.
func FromBytes(data []byte) (*TupleRecord, error) {
	buf := bytes.NewBuffer(data)

	// Read record kind
	var kind int32
	if err := binary.Read(buf, binary.BigEndian, &kind); err != nil {
		return nil, fmt.Errorf("failed to read record kind: %w", err)
	}

	// Read transaction number
	var txNum int64
	if err := binary.Read(buf, binary.BigEndian, &txNum); err != nil {
		return nil, fmt.Errorf("failed to read transaction number: %w", err)
	}

	// Read log sequence number
	var lsn int64
	if err := binary.Read(buf, binary.BigEndian, &lsn); err != nil {
		return nil, fmt.Errorf("failed to read log sequence number: %w", err)
	}

	// Read filename length
	var fileLen uint32
	if err := binary.Read(buf, binary.BigEndian, &fileLen); err != nil {
		return nil, fmt.Errorf("failed to read filename length: %w", err)
	}

	// Read filename
	fileName := make([]byte, fileLen)
	if _, err := io.ReadFull(buf, fileName); err != nil {
		return nil, fmt.Errorf("failed to read filename: %w", err)
	}

	// Read block number
	var blockNum int32
	if err := binary.Read(buf, binary.BigEndian, &blockNum); err != nil {
		return nil, fmt.Errorf("failed to read block number: %w", err)
	}

	// Read slot
	var slot int32
	if err := binary.Read(buf, binary.BigEndian, &slot); err != nil {
		return nil, fmt.Errorf("failed to read slot: %w", err)
	}

	// Read old image length
	var oldLen uint32
	if err := binary.Read(buf, binary.BigEndian, &oldLen); err != nil {
		return nil, fmt.Errorf("failed to read old image length: %w", err)
	}

	// Read old image
	oldBytes := make([]byte, oldLen)
	if _, err := io.ReadFull(buf, oldBytes); err != nil {
		return nil, fmt.Errorf("failed to read old image: %w", err)
	}

	// Read new image length
	var newLen uint32
	if err := binary.Read(buf, binary.BigEndian, &newLen); err != nil {
		return nil, fmt.Errorf("failed to read new image length: %w", err)
	}

	// Read new image
	newBytes := make([]byte, newLen)
	if _, err := io.ReadFull(buf, newBytes); err != nil {
		return nil, fmt.Errorf("failed to read new image: %w", err)
	}

	return &TupleRecord{
		kind:     kind,
		txNum:    txNum,
		lsn:      lsn,
		location: NewTupleLocation(string(fileName), blockNum, slot),
		oldBytes: oldBytes,
		newBytes: newBytes,
	}, nil
}
