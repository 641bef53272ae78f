package recovery

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wblog/config"
	"wblog/frontend"
	"wblog/log_pool"
	"wblog/log_record"
	"wblog/transaction"
)

// bufferWriter accumulates acknowledged bytes like a log file would.
type bufferWriter struct {
	mu   sync.Mutex
	data []byte
}

func (w *bufferWriter) Write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, p...)
	return nil
}

func (w *bufferWriter) bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.data...)
}

// traceRedoer records each redo call as a printable step.
type traceRedoer struct {
	steps []string
}

func (r *traceRedoer) RedoInsert(loc log_record.TupleLocation, image []byte) error {
	r.steps = append(r.steps, fmt.Sprintf("insert %s %s", loc.FileName(), image))
	return nil
}

func (r *traceRedoer) RedoUpdate(loc log_record.TupleLocation, oldImage, newImage []byte) error {
	r.steps = append(r.steps, fmt.Sprintf("update %s %s->%s", loc.FileName(), oldImage, newImage))
	return nil
}

func (r *traceRedoer) RedoDelete(loc log_record.TupleLocation, oldImage []byte) error {
	r.steps = append(r.steps, fmt.Sprintf("delete %s %s", loc.FileName(), oldImage))
	return nil
}

// frames builds a log stream of length-prefixed record frames, the same
// layout the frontend logger writes.
func frames(recs ...*log_record.TupleRecord) []byte {
	var buf bytes.Buffer
	for _, rec := range recs {
		frame := rec.ToBytes()
		binary.Write(&buf, binary.BigEndian, uint32(len(frame)))
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestReplayRoundTrip(t *testing.T) {
	pool := log_pool.NewLogRecordPool(nil)
	writer := &bufferWriter{}
	cfg := config.Config{
		FlushInterval:    time.Hour,
		MaxFlushRetries:  1,
		RetryInitialWait: time.Millisecond,
	}
	fl := frontend.New(pool, writer, nil, cfg, nil)
	mgr := transaction.NewMgr(pool, fl, nil)

	// Committed transaction with three ordered changes.
	loc := log_record.NewTupleLocation("users.tbl", 0, 0)
	txn, err := mgr.Begin()
	require.NoError(t, err)
	_, err = txn.LogInsert(loc, []byte("alice"))
	require.NoError(t, err)
	_, err = txn.LogUpdate(loc, []byte("alice"), []byte("alice2"))
	require.NoError(t, err)
	_, err = txn.LogDelete(log_record.NewTupleLocation("users.tbl", 0, 1), []byte("bob"))
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	// Aborted transaction leaves no trace in the log.
	aborted, err := mgr.Begin()
	require.NoError(t, err)
	_, err = aborted.LogInsert(loc, []byte("never"))
	require.NoError(t, err)
	require.NoError(t, aborted.Rollback())

	require.NoError(t, fl.Flush())

	rd := &traceRedoer{}
	rm := NewRecoveryMgr(nil)
	require.NoError(t, rm.Replay(writer.bytes(), rd))

	assert.Equal(t, []string{
		"insert users.tbl alice",
		"update users.tbl alice->alice2",
		"delete users.tbl bob",
	}, rd.steps)
}

func TestReplaySkipsTxnWithoutCommitMarker(t *testing.T) {
	// Second transaction has no commit marker, as a torn final write
	// would leave it.
	data := frames(
		log_record.NewBeginRecord(1, 1),
		log_record.NewInsertRecord(1, 2, log_record.NewTupleLocation("t.tbl", 0, 0), []byte("keep")),
		log_record.NewCommitRecord(1, 3),
		log_record.NewBeginRecord(2, 4),
		log_record.NewInsertRecord(2, 5, log_record.NewTupleLocation("t.tbl", 0, 1), []byte("drop")),
	)

	rd := &traceRedoer{}
	require.NoError(t, NewRecoveryMgr(nil).Replay(data, rd))
	assert.Equal(t, []string{"insert t.tbl keep"}, rd.steps)
}

func TestReplayToleratesTornFrame(t *testing.T) {
	data := frames(
		log_record.NewBeginRecord(1, 1),
		log_record.NewInsertRecord(1, 2, log_record.NewTupleLocation("t.tbl", 0, 0), []byte("keep")),
		log_record.NewCommitRecord(1, 3),
	)

	// A trailing frame whose header promises more bytes than exist.
	torn := append(append([]byte(nil), data...), 0x00, 0x00, 0x00, 0x40, 0x01, 0x02)

	rd := &traceRedoer{}
	require.NoError(t, NewRecoveryMgr(nil).Replay(torn, rd))
	assert.Equal(t, []string{"insert t.tbl keep"}, rd.steps)
}
