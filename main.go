package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"wblog/config"
	"wblog/frontend"
	"wblog/log_pool"
	"wblog/log_record"
	"wblog/metrics"
	"wblog/recovery"
	"wblog/transaction"
)

// fileLogWriter is a minimal stand-in for the database's physical log
// writer: append, then fsync before acknowledging durability.
type fileLogWriter struct {
	f *os.File
}

func (w *fileLogWriter) Write(p []byte) error {
	if _, err := w.f.Write(p); err != nil {
		return err
	}
	return w.f.Sync()
}

// printRedoer echoes replayed changes instead of touching a storage engine.
type printRedoer struct{}

func (printRedoer) RedoInsert(loc log_record.TupleLocation, image []byte) error {
	fmt.Printf("redo insert %s <- %q\n", loc, image)
	return nil
}

func (printRedoer) RedoUpdate(loc log_record.TupleLocation, oldImage, newImage []byte) error {
	fmt.Printf("redo update %s: %q -> %q\n", loc, oldImage, newImage)
	return nil
}

func (printRedoer) RedoDelete(loc log_record.TupleLocation, oldImage []byte) error {
	fmt.Printf("redo delete %s (was %q)\n", loc, oldImage)
	return nil
}

func main() {
	dbDir := filepath.Join(".", "mydb")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		log.Fatalf("Failed to create db directory: %v", err)
	}
	logPath := filepath.Join(dbDir, "wbl.log")

	lg, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}

	pool := log_pool.NewLogRecordPool(m)
	fl := frontend.New(pool, &fileLogWriter{f: f}, lg, config.DefaultConfig(), m)
	fl.Start()
	mgr := transaction.NewMgr(pool, fl, lg)

	// One committing transaction.
	txn, err := mgr.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	loc := log_record.NewTupleLocation("users.tbl", 0, 0)
	if _, err := txn.LogInsert(loc, []byte("alice")); err != nil {
		log.Fatalf("Failed to log insert: %v", err)
	}
	if _, err := txn.LogUpdate(loc, []byte("alice"), []byte("alice2")); err != nil {
		log.Fatalf("Failed to log update: %v", err)
	}
	if err := txn.Commit(); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	// One aborting transaction; its records never reach the log.
	aborted, err := mgr.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	if _, err := aborted.LogDelete(log_record.NewTupleLocation("users.tbl", 0, 1), []byte("bob")); err != nil {
		log.Fatalf("Failed to log delete: %v", err)
	}
	if err := aborted.Rollback(); err != nil {
		log.Fatalf("Failed to rollback: %v", err)
	}

	if err := fl.Close(); err != nil {
		log.Fatalf("Failed to close frontend logger: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to close log file: %v", err)
	}
	fmt.Printf("Pool empty after shutdown: %v\n", pool.IsEmpty())

	// Cold-start replay over the persisted log.
	data, err := os.ReadFile(logPath)
	if err != nil {
		log.Fatalf("Failed to read log file: %v", err)
	}
	rm := recovery.NewRecoveryMgr(lg)
	if err := rm.Replay(data, printRedoer{}); err != nil {
		log.Fatalf("Failed to replay log: %v", err)
	}
}
