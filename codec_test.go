package mtprotosender

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := NewEncodeBuf(0)
	e.Long(-1234567890123).
		ULong(0xfeedfacecafebeef).
		Int(-42).
		UInt(0xdeadbeef).
		Double(3.1415926535).
		String("hello, mtproto").
		StringBytes([]byte{1, 2, 3}).
		VectorLong([]int64{1, -2, 3}).
		VectorInt([]int32{10, -20, 30}).
		Raw([]byte{0xaa, 0xbb})

	d := NewDecodeBuf(e.Bytes())
	assert.Equal(t, int64(-1234567890123), d.Long())
	assert.Equal(t, uint64(0xfeedfacecafebeef), d.ULong())
	assert.Equal(t, int32(-42), d.Int())
	assert.Equal(t, uint32(0xdeadbeef), d.UInt())
	assert.InDelta(t, 3.1415926535, d.Double(), 1e-12)
	assert.Equal(t, "hello, mtproto", d.String())
	assert.Equal(t, []byte{1, 2, 3}, d.StringBytes())
	assert.Equal(t, []int64{1, -2, 3}, d.VectorLong())
	assert.Equal(t, []int32{10, -20, 30}, d.VectorInt())
	assert.Equal(t, []byte{0xaa, 0xbb}, d.Bytes(2))
	require.NoError(t, d.Err())
	assert.Equal(t, 0, d.Remaining())
}

func TestStringBytesPaddingBoundaries(t *testing.T) {
	for _, n := range []int{0, 1, 3, 4, 253, 254, 255, 300, 1021} {
		e := NewEncodeBuf(0)
		body := make([]byte, n)
		for i := range body {
			body[i] = byte(i)
		}
		e.StringBytes(body)
		assert.Zero(t, len(e.Bytes())%4, "encoded StringBytes must be 4-byte aligned for n=%d", n)

		d := NewDecodeBuf(e.Bytes())
		got := d.StringBytes()
		require.NoError(t, d.Err())
		assert.Equal(t, body, got)
		assert.Equal(t, 0, d.Remaining())
	}
}

func TestDecodeBufTruncated(t *testing.T) {
	d := NewDecodeBuf([]byte{1, 2, 3})
	d.Long()
	require.Error(t, d.Err())
	assert.True(t, errors.Is(d.Err(), ErrTruncated))

	// Once poisoned, further reads stay zero/no-op rather than panicking.
	assert.Equal(t, int32(0), d.Int())
	assert.Equal(t, uint32(0), d.UInt())
}

func TestSeekAndPeek(t *testing.T) {
	e := NewEncodeBuf(0)
	e.UInt(crcPing).Long(99)
	d := NewDecodeBuf(e.Bytes())

	peeked := d.PeekUInt()
	assert.Equal(t, crcPing, peeked)
	assert.Equal(t, 0, d.Tell())

	code := d.UInt()
	assert.Equal(t, crcPing, code)
	assert.Equal(t, int64(99), d.Long())

	d.Seek(0)
	assert.Equal(t, crcPing, d.UInt())

	d.SeekRelative(-4)
	assert.Equal(t, crcPing, d.UInt())
}

func TestSeekOutOfRange(t *testing.T) {
	d := NewDecodeBuf([]byte{1, 2, 3, 4})
	d.Seek(100)
	require.Error(t, d.Err())
	assert.True(t, errors.Is(d.Err(), ErrTruncated))
}
