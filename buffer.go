// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package msgpack

import (
	"encoding/binary"
	"io"
	"math"
)

// Buffer buffers encoded msgpack objects.
//
// Each Write* method appends the narrowest encoding
// that losslessly represents its argument (except the
// float writers, which never narrow). The contents of
// Buffer can be inspected directly with Buffer.Bytes()
// or written to an io.Writer with Buffer.WriteTo.
type Buffer struct {
	buf []byte
}

// Set sets the buffer used by 'b'
// and resets the state of the buffer.
// Subsequent calls to Write* functions
// on 'b' will append to the given buffer.
func (b *Buffer) Set(p []byte) {
	b.buf = p
}

// get the next 'n' bytes at the end of the buffer
func (b *Buffer) grow(n int) []byte {
	off := len(b.buf)
	if cap(b.buf)-off >= n {
		b.buf = b.buf[:off+n]
	} else {
		nb := make([]byte, off+n, n+(2*off))
		copy(nb, b.buf)
		b.buf = nb
	}
	return b.buf[off:]
}

// WriteNil writes a msgpack nil value into the buffer.
func (b *Buffer) WriteNil() {
	b.buf = append(b.buf, tagNil)
}

// WriteBool writes a bool into the buffer.
func (b *Buffer) WriteBool(n bool) {
	bt := byte(tagFalse)
	if n {
		bt++
	}
	b.buf = append(b.buf, bt)
}

// WriteUint writes an unsigned integer to the buffer
// using the narrowest encoding that represents it.
func (b *Buffer) WriteUint(u uint64) {
	switch {
	case u < (1 << 7):
		b.buf = append(b.buf, byte(u))
	case u <= math.MaxUint8:
		b.buf = append(b.buf, tagUint8, byte(u))
	case u <= math.MaxUint16:
		dst := b.grow(3)
		dst[0] = tagUint16
		binary.BigEndian.PutUint16(dst[1:], uint16(u))
	case u <= math.MaxUint32:
		dst := b.grow(5)
		dst[0] = tagUint32
		binary.BigEndian.PutUint32(dst[1:], uint32(u))
	default:
		dst := b.grow(9)
		dst[0] = tagUint64
		binary.BigEndian.PutUint64(dst[1:], u)
	}
}

// WriteInt writes an integer to the buffer
// using the narrowest encoding that represents it.
// Non-negative values use the unsigned forms.
func (b *Buffer) WriteInt(i int64) {
	if i >= 0 {
		b.WriteUint(uint64(i))
		return
	}
	switch {
	case i >= -32:
		b.buf = append(b.buf, byte(i))
	case i >= math.MinInt8:
		b.buf = append(b.buf, tagInt8, byte(i))
	case i >= math.MinInt16:
		dst := b.grow(3)
		dst[0] = tagInt16
		binary.BigEndian.PutUint16(dst[1:], uint16(i))
	case i >= math.MinInt32:
		dst := b.grow(5)
		dst[0] = tagInt32
		binary.BigEndian.PutUint32(dst[1:], uint32(i))
	default:
		dst := b.grow(9)
		dst[0] = tagInt64
		binary.BigEndian.PutUint64(dst[1:], uint64(i))
	}
}

// WriteFloat64 writes a msgpack float64 to the buffer.
// The width is fixed; floats are never narrowed.
func (b *Buffer) WriteFloat64(f float64) {
	dst := b.grow(9)
	dst[0] = tagFloat64
	binary.BigEndian.PutUint64(dst[1:], math.Float64bits(f))
}

// WriteFloat32 writes a msgpack float32 to the buffer.
func (b *Buffer) WriteFloat32(f float32) {
	dst := b.grow(5)
	dst[0] = tagFloat32
	binary.BigEndian.PutUint32(dst[1:], math.Float32bits(f))
}

// WriteRawHeader writes a raw length prefix; the
// caller is expected to append the payload itself
// (typically with UnsafeAppend).
func (b *Buffer) WriteRawHeader(size int) {
	switch {
	case size < (1 << 5):
		b.buf = append(b.buf, fixrawTag|byte(size))
	case size <= math.MaxUint16:
		dst := b.grow(3)
		dst[0] = tagRaw16
		binary.BigEndian.PutUint16(dst[1:], uint16(size))
	default:
		dst := b.grow(5)
		dst[0] = tagRaw32
		binary.BigEndian.PutUint32(dst[1:], uint32(size))
	}
}

// WriteRaw writes a []byte as a msgpack raw object.
func (b *Buffer) WriteRaw(p []byte) {
	b.WriteRawHeader(len(p))
	copy(b.grow(len(p)), p)
}

// WriteString writes a string as a msgpack raw object.
func (b *Buffer) WriteString(s string) {
	b.WriteRawHeader(len(s))
	copy(b.grow(len(s)), s)
}

// WriteArrayHeader writes an array length prefix;
// the caller must write 'size' objects after it.
func (b *Buffer) WriteArrayHeader(size int) {
	switch {
	case size < (1 << 4):
		b.buf = append(b.buf, fixarrayTag|byte(size))
	case size <= math.MaxUint16:
		dst := b.grow(3)
		dst[0] = tagArray16
		binary.BigEndian.PutUint16(dst[1:], uint16(size))
	default:
		dst := b.grow(5)
		dst[0] = tagArray32
		binary.BigEndian.PutUint32(dst[1:], uint32(size))
	}
}

// WriteMapHeader writes a map length prefix; the
// caller must write 'size' key-value pairs after it.
// Pairs are emitted in caller order; msgpack does
// not require sorted keys.
func (b *Buffer) WriteMapHeader(size int) {
	switch {
	case size < (1 << 4):
		b.buf = append(b.buf, fixmapTag|byte(size))
	case size <= math.MaxUint16:
		dst := b.grow(3)
		dst[0] = tagMap16
		binary.BigEndian.PutUint16(dst[1:], uint16(size))
	default:
		dst := b.grow(5)
		dst[0] = tagMap32
		binary.BigEndian.PutUint32(dst[1:], uint32(size))
	}
}

// UnsafeAppend appends arbitrary data
// to the buffer.
func (b *Buffer) UnsafeAppend(buf []byte) {
	copy(b.grow(len(buf)), buf)
}

// WriteTo implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	i, err := w.Write(b.buf)
	return int64(i), err
}

// Bytes returns the current contents of the buffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// Size returns the number of bytes in the buffer.
func (b *Buffer) Size() int { return len(b.buf) }

// Reset resets a buffer to its initial state.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}
