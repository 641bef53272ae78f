package transaction

type TransactionInterface interface {
	TxNumber() int64
	Commit() error
	Rollback() error
}
