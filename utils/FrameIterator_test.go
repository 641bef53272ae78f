package utils

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStream(payloads ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range payloads {
		binary.Write(&buf, binary.BigEndian, uint32(len(p)))
		buf.Write(p)
	}
	return buf.Bytes()
}

func TestFrameIterator(t *testing.T) {
	stream := buildStream([]byte("first"), []byte{}, []byte("third"))
	iter := NewFrameIterator(stream)

	require.True(t, iter.HasNext())
	frame, err := iter.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), frame)

	frame, err = iter.Next()
	require.NoError(t, err)
	assert.Empty(t, frame)

	frame, err = iter.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), frame)

	assert.False(t, iter.HasNext())
}

func TestFrameIteratorTruncated(t *testing.T) {
	stream := buildStream([]byte("whole"))

	// Header promising more bytes than remain.
	short := append(append([]byte(nil), stream...), 0x00, 0x00, 0x00, 0x10, 0xff)
	iter := NewFrameIterator(short)

	_, err := iter.Next()
	require.NoError(t, err)
	require.True(t, iter.HasNext())
	_, err = iter.Next()
	require.Error(t, err)

	// Torn mid-header.
	iter = NewFrameIterator([]byte{0x00, 0x00})
	require.True(t, iter.HasNext())
	_, err = iter.Next()
	require.Error(t, err)
}
