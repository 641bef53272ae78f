package utils

import (
	"encoding/binary"
	"fmt"
)

type Iterator[T any] interface {
	HasNext() bool
	Next() (T, error)
}

// FrameIterator walks a byte stream of length-prefixed record frames, as
// produced by the frontend logger: each frame is a uint32 big-endian
// length followed by that many payload bytes.
type FrameIterator struct {
	data []byte
	pos  int
}

func NewFrameIterator(data []byte) *FrameIterator {
	return &FrameIterator{data: data}
}

// HasNext indicates whether there are unconsumed bytes. A truncated final
// frame still answers true; Next surfaces the truncation as an error.
func (it *FrameIterator) HasNext() bool {
	return it.pos < len(it.data)
}

// Next returns the next frame's payload.
func (it *FrameIterator) Next() ([]byte, error) {
	if it.pos+4 > len(it.data) {
		return nil, fmt.Errorf("truncated frame header at offset %d", it.pos)
	}
	frameLen := int(binary.BigEndian.Uint32(it.data[it.pos:]))
	it.pos += 4

	if it.pos+frameLen > len(it.data) {
		return nil, fmt.Errorf("truncated frame at offset %d: want %d bytes, have %d",
			it.pos, frameLen, len(it.data)-it.pos)
	}
	frame := it.data[it.pos : it.pos+frameLen]
	it.pos += frameLen
	return frame, nil
}
