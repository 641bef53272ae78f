package log_record

import "fmt"

// TupleLocation identifies a tuple slot within a table file. The staging
// layer treats it as an opaque address; only recovery hands it back to the
// storage engine.
type TupleLocation struct {
	fileName string
	blockNum int32
	slot     int32
}

func NewTupleLocation(fileName string, blockNum, slot int32) TupleLocation {
	return TupleLocation{
		fileName: fileName,
		blockNum: blockNum,
		slot:     slot,
	}
}

func (l TupleLocation) FileName() string {
	return l.fileName
}

func (l TupleLocation) BlockNumber() int32 {
	return l.blockNum
}

func (l TupleLocation) Slot() int32 {
	return l.slot
}

func (l TupleLocation) String() string {
	return fmt.Sprintf("[file %s, block %d, slot %d]", l.fileName, l.blockNum, l.slot)
}
