package mtprotosender

import (
	"encoding/binary"
	"math"
	"math/big"
)

// crcVector is the TL "Vector" constructor id, used to frame
// length-prefixed arrays of primitives.
const crcVector uint32 = 0x1cb5c415

// DecodeBuf is a little-endian binary reader over a fixed byte slice,
// with absolute positioning (Tell/Seek/SeekRelative): dispatch rewinds
// four bytes after peeking a constructor code.
type DecodeBuf struct {
	buf  []byte
	off  int
	size int
	err  error
}

func NewDecodeBuf(b []byte) *DecodeBuf {
	return &DecodeBuf{buf: b, off: 0, size: len(b)}
}

// Err returns the first error encountered by any read, if any. It
// classifies as ErrTruncated under errors.Is.
func (d *DecodeBuf) Err() error {
	return d.err
}

// Tell returns the current absolute read offset.
func (d *DecodeBuf) Tell() int { return d.off }

// Seek moves the read cursor to an absolute offset. It is a no-op once
// the buffer has already failed.
func (d *DecodeBuf) Seek(off int) {
	if d.err != nil {
		return
	}
	if off < 0 || off > d.size {
		d.err = errTruncatedf("Seek: offset %d out of range [0,%d]", off, d.size)
		return
	}
	d.off = off
}

// SeekRelative moves the read cursor by a relative delta.
func (d *DecodeBuf) SeekRelative(delta int) { d.Seek(d.off + delta) }

// Remaining reports how many bytes are left to read.
func (d *DecodeBuf) Remaining() int { return d.size - d.off }

// Rest returns every byte from the current offset to the end, without
// consuming them.
func (d *DecodeBuf) Rest() []byte { return d.buf[d.off:d.size] }

func (d *DecodeBuf) Long() int64 {
	if d.err != nil {
		return 0
	}
	if d.off+8 > d.size {
		d.err = errTruncatedf("Long: need 8 bytes, have %d", d.size-d.off)
		return 0
	}
	x := int64(binary.LittleEndian.Uint64(d.buf[d.off : d.off+8]))
	d.off += 8
	return x
}

func (d *DecodeBuf) ULong() uint64 {
	return uint64(d.Long())
}

func (d *DecodeBuf) Double() float64 {
	if d.err != nil {
		return 0
	}
	if d.off+8 > d.size {
		d.err = errTruncatedf("Double: need 8 bytes, have %d", d.size-d.off)
		return 0
	}
	x := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off : d.off+8]))
	d.off += 8
	return x
}

func (d *DecodeBuf) Int() int32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > d.size {
		d.err = errTruncatedf("Int: need 4 bytes, have %d", d.size-d.off)
		return 0
	}
	x := binary.LittleEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return int32(x)
}

func (d *DecodeBuf) UInt() uint32 {
	if d.err != nil {
		return 0
	}
	if d.off+4 > d.size {
		d.err = errTruncatedf("UInt: need 4 bytes, have %d", d.size-d.off)
		return 0
	}
	x := binary.LittleEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return x
}

// PeekUInt reads the next 32-bit constructor code without consuming
// it: read then rewind four bytes.
func (d *DecodeBuf) PeekUInt() uint32 {
	x := d.UInt()
	d.SeekRelative(-4)
	return x
}

func (d *DecodeBuf) Bytes(size int) []byte {
	if d.err != nil {
		return nil
	}
	if size < 0 || d.off+size > d.size {
		d.err = errTruncatedf("Bytes: need %d bytes, have %d", size, d.size-d.off)
		return nil
	}
	x := make([]byte, size)
	copy(x, d.buf[d.off:d.off+size])
	d.off += size
	return x
}

// StringBytes decodes an MTProto length-prefixed byte string: a 1-byte
// length when < 254, else a 0xFE marker followed by a 3-byte length,
// padded so the total (length prefix + payload) is a 4-byte multiple.
func (d *DecodeBuf) StringBytes() []byte {
	if d.err != nil {
		return nil
	}
	if d.off+1 > d.size {
		d.err = errTruncatedf("StringBytes: need 1 byte, have %d", d.size-d.off)
		return nil
	}
	size := int(d.buf[d.off])
	d.off++
	padding := (4 - ((size + 1) % 4)) & 3
	if size == 254 {
		if d.off+3 > d.size {
			d.err = errTruncatedf("StringBytes: need 3-byte length, have %d", d.size-d.off)
			return nil
		}
		size = int(d.buf[d.off]) | int(d.buf[d.off+1])<<8 | int(d.buf[d.off+2])<<16
		d.off += 3
		padding = (4 - size%4) & 3
	}

	if d.off+size > d.size {
		d.err = errTruncatedf("StringBytes: need %d bytes, have %d", size, d.size-d.off)
		return nil
	}
	x := make([]byte, size)
	copy(x, d.buf[d.off:d.off+size])
	d.off += size

	if d.off+padding > d.size {
		d.err = errTruncatedf("StringBytes: need %d padding bytes, have %d", padding, d.size-d.off)
		return nil
	}
	d.off += padding
	return x
}

func (d *DecodeBuf) String() string {
	b := d.StringBytes()
	if d.err != nil {
		return ""
	}
	return string(b)
}

func (d *DecodeBuf) BigInt() *big.Int {
	b := d.StringBytes()
	if d.err != nil {
		return nil
	}
	y := make([]byte, len(b)+1)
	copy(y[1:], b)
	return new(big.Int).SetBytes(y)
}

func (d *DecodeBuf) VectorLong() []int64 {
	constructor := d.UInt()
	if d.err != nil {
		return nil
	}
	if constructor != crcVector {
		d.err = errTruncatedf("VectorLong: wrong constructor 0x%08x", constructor)
		return nil
	}
	size := d.Int()
	if d.err != nil {
		return nil
	}
	if size < 0 {
		d.err = errTruncatedf("VectorLong: negative size %d", size)
		return nil
	}
	x := make([]int64, size)
	for i := range x {
		x[i] = d.Long()
		if d.err != nil {
			return nil
		}
	}
	return x
}

func (d *DecodeBuf) VectorInt() []int32 {
	constructor := d.UInt()
	if d.err != nil {
		return nil
	}
	if constructor != crcVector {
		d.err = errTruncatedf("VectorInt: wrong constructor 0x%08x", constructor)
		return nil
	}
	size := d.Int()
	if d.err != nil {
		return nil
	}
	if size < 0 {
		d.err = errTruncatedf("VectorInt: negative size %d", size)
		return nil
	}
	x := make([]int32, size)
	for i := range x {
		x[i] = d.Int()
		if d.err != nil {
			return nil
		}
	}
	return x
}

// EncodeBuf is a little-endian binary writer, the write-side companion
// to DecodeBuf, built in the same method-chaining style.
type EncodeBuf struct {
	buf []byte
}

func NewEncodeBuf(sizeHint int) *EncodeBuf {
	return &EncodeBuf{buf: make([]byte, 0, sizeHint)}
}

func (e *EncodeBuf) Bytes() []byte { return e.buf }

func (e *EncodeBuf) Long(v int64) *EncodeBuf {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *EncodeBuf) ULong(v uint64) *EncodeBuf { return e.Long(int64(v)) }

func (e *EncodeBuf) Int(v int32) *EncodeBuf {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *EncodeBuf) UInt(v uint32) *EncodeBuf {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *EncodeBuf) Double(v float64) *EncodeBuf {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *EncodeBuf) Raw(b []byte) *EncodeBuf {
	e.buf = append(e.buf, b...)
	return e
}

// StringBytes encodes an MTProto length-prefixed byte string, the
// inverse of DecodeBuf.StringBytes.
func (e *EncodeBuf) StringBytes(b []byte) *EncodeBuf {
	size := len(b)
	if size < 254 {
		e.buf = append(e.buf, byte(size))
		e.buf = append(e.buf, b...)
		padding := (4 - ((size + 1) % 4)) & 3
		e.buf = append(e.buf, make([]byte, padding)...)
		return e
	}
	e.buf = append(e.buf, 0xfe, byte(size), byte(size>>8), byte(size>>16))
	e.buf = append(e.buf, b...)
	padding := (4 - size%4) & 3
	e.buf = append(e.buf, make([]byte, padding)...)
	return e
}

func (e *EncodeBuf) String(s string) *EncodeBuf { return e.StringBytes([]byte(s)) }

func (e *EncodeBuf) VectorLong(xs []int64) *EncodeBuf {
	e.UInt(crcVector)
	e.Int(int32(len(xs)))
	for _, x := range xs {
		e.Long(x)
	}
	return e
}

func (e *EncodeBuf) VectorInt(xs []int32) *EncodeBuf {
	e.UInt(crcVector)
	e.Int(int32(len(xs)))
	for _, x := range xs {
		e.Int(x)
	}
	return e
}

func (e *EncodeBuf) BigInt(v *big.Int) *EncodeBuf {
	b := v.Bytes()
	if len(b) > 0 && b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return e.StringBytes(b)
}
