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
	"fmt"
	"math"
)

// RangeError is the error returned when a decoded
// integer does not fit the requested output type.
// Unlike the dynamic Value conversions, the Decoder
// validates ranges; a RangeError always leaves the
// decoder's offset rolled back so the same bytes can
// be retried against a wider type.
type RangeError struct {
	Func string
	Mag  uint64 // magnitude of the decoded value
	Neg  bool   // the decoded value was negative
}

func (e *RangeError) Error() string {
	sign := ""
	if e.Neg {
		sign = "-"
	}
	return fmt.Sprintf("msgpack.%s: value %s%d out of range", e.Func, sign, e.Mag)
}

func outofrange(mag uint64, neg bool, fn string) error {
	return &RangeError{Func: fn, Mag: mag, Neg: neg}
}

// Decoder decodes a complete in-memory buffer directly
// into caller-provided typed variables, without building
// intermediate dynamic Values.
//
// The typed methods are chainable and use a sticky
// error: after the first failure, subsequent calls are
// no-ops and Err returns the failure. A failed call
// never consumes bytes, so after ClearErr the same
// position can be decoded again with a different type:
//
//	var narrow uint8
//	var wide uint16
//	if d.Uint8(&narrow).Err() != nil {
//		d.ClearErr()
//		d.Uint16(&wide)
//	}
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder constructs a Decoder over a complete
// encoded buffer. The decoder reads from, but never
// modifies, buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Err returns the first error encountered
// by a decode method, or nil.
func (d *Decoder) Err() error { return d.err }

// ClearErr discards the sticky error so decoding can
// be retried from the rolled-back offset.
func (d *Decoder) ClearErr() { d.err = nil }

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int { return d.off }

// Rest returns the bytes not yet consumed.
func (d *Decoder) Rest() []byte { return d.buf[d.off:] }

// fail records the sticky error; the offset has
// not been advanced by the failed operation.
func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// integer pulls the next integer of either sign
// off the buffer as (magnitude, negative).
func (d *Decoder) integer(fn string) (uint64, bool, []byte, bool) {
	if d.err != nil {
		return 0, false, nil, false
	}
	msg := d.buf[d.off:]
	if t := TypeOf(msg); !t.Integer() {
		d.fail(bad(t, IntType, fn))
		return 0, false, nil, false
	}
	if TypeOf(msg) == UintType {
		u, rest, err := ReadUint(msg)
		if err != nil {
			d.fail(err)
			return 0, false, nil, false
		}
		return u, false, rest, true
	}
	i, rest, err := ReadInt(msg)
	if err != nil {
		d.fail(err)
		return 0, false, nil, false
	}
	// signed encodings may carry non-negative values
	// (minimal-width producers never emit them, but
	// other encoders do)
	if i < 0 {
		return uint64(-i), true, rest, true
	}
	return uint64(i), false, rest, true
}

func (d *Decoder) uint(v *uint64, max uint64, fn string) *Decoder {
	mag, neg, rest, ok := d.integer(fn)
	if !ok {
		return d
	}
	if neg || mag > max {
		d.fail(outofrange(mag, neg, fn))
		return d
	}
	*v = mag
	d.off = len(d.buf) - len(rest)
	return d
}

func (d *Decoder) int(v *int64, min, max int64, fn string) *Decoder {
	mag, neg, rest, ok := d.integer(fn)
	if !ok {
		return d
	}
	if neg {
		if mag > uint64(-math.MinInt64) || -int64(mag) < min {
			d.fail(outofrange(mag, neg, fn))
			return d
		}
		*v = -int64(mag)
	} else {
		if mag > uint64(max) {
			d.fail(outofrange(mag, neg, fn))
			return d
		}
		*v = int64(mag)
	}
	d.off = len(d.buf) - len(rest)
	return d
}

// Uint8 decodes an integer into *v, failing with a
// RangeError (and no consumed bytes) if the encoded
// value does not fit a uint8.
func (d *Decoder) Uint8(v *uint8) *Decoder {
	var u uint64
	if d.uint(&u, math.MaxUint8, "Uint8").err == nil {
		*v = uint8(u)
	}
	return d
}

// Uint16 decodes an integer into *v with range validation.
func (d *Decoder) Uint16(v *uint16) *Decoder {
	var u uint64
	if d.uint(&u, math.MaxUint16, "Uint16").err == nil {
		*v = uint16(u)
	}
	return d
}

// Uint32 decodes an integer into *v with range validation.
func (d *Decoder) Uint32(v *uint32) *Decoder {
	var u uint64
	if d.uint(&u, math.MaxUint32, "Uint32").err == nil {
		*v = uint32(u)
	}
	return d
}

// Uint64 decodes an integer into *v with range validation.
func (d *Decoder) Uint64(v *uint64) *Decoder {
	var u uint64
	if d.uint(&u, math.MaxUint64, "Uint64").err == nil {
		*v = u
	}
	return d
}

// Int8 decodes an integer into *v with range validation.
func (d *Decoder) Int8(v *int8) *Decoder {
	var i int64
	if d.int(&i, math.MinInt8, math.MaxInt8, "Int8").err == nil {
		*v = int8(i)
	}
	return d
}

// Int16 decodes an integer into *v with range validation.
func (d *Decoder) Int16(v *int16) *Decoder {
	var i int64
	if d.int(&i, math.MinInt16, math.MaxInt16, "Int16").err == nil {
		*v = int16(i)
	}
	return d
}

// Int32 decodes an integer into *v with range validation.
func (d *Decoder) Int32(v *int32) *Decoder {
	var i int64
	if d.int(&i, math.MinInt32, math.MaxInt32, "Int32").err == nil {
		*v = int32(i)
	}
	return d
}

// Int64 decodes an integer into *v with range validation.
func (d *Decoder) Int64(v *int64) *Decoder {
	var i int64
	if d.int(&i, math.MinInt64, math.MaxInt64, "Int64").err == nil {
		*v = i
	}
	return d
}

// Bool decodes a bool into *v.
func (d *Decoder) Bool(v *bool) *Decoder {
	if d.err != nil {
		return d
	}
	q, rest, err := ReadBool(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	*v = q
	d.off = len(d.buf) - len(rest)
	return d
}

// Nil decodes a nil object, verifying its presence.
func (d *Decoder) Nil() *Decoder {
	if d.err != nil {
		return d
	}
	rest, err := ReadNil(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	d.off = len(d.buf) - len(rest)
	return d
}

// Float32 decodes a float32 into *v. Only the 32-bit
// encoding is accepted; the 64-bit form would narrow.
func (d *Decoder) Float32(v *float32) *Decoder {
	if d.err != nil {
		return d
	}
	f, rest, err := ReadFloat32(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	*v = f
	d.off = len(d.buf) - len(rest)
	return d
}

// Float64 decodes a float (either width) into *v.
func (d *Decoder) Float64(v *float64) *Decoder {
	if d.err != nil {
		return d
	}
	f, rest, err := ReadFloat64(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	*v = f
	d.off = len(d.buf) - len(rest)
	return d
}

// String decodes a raw object into *v, copying the payload.
func (d *Decoder) String(v *string) *Decoder {
	if d.err != nil {
		return d
	}
	s, rest, err := ReadString(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	*v = s
	d.off = len(d.buf) - len(rest)
	return d
}

// Bytes decodes a raw object into *v. The result
// aliases the decoder's buffer; see ReadBytesShared.
func (d *Decoder) Bytes(v *[]byte) *Decoder {
	if d.err != nil {
		return d
	}
	p, rest, err := ReadBytesShared(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	*v = p
	d.off = len(d.buf) - len(rest)
	return d
}

// ArrayHeader reads an array length prefix and returns
// the number of elements that follow. The caller then
// decodes each element with further method calls.
func (d *Decoder) ArrayHeader() (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	n, rest, err := ReadArrayHeader(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return 0, err
	}
	d.off = len(d.buf) - len(rest)
	return n, nil
}

// MapHeader reads a map length prefix and returns the
// number of key-value pairs that follow.
func (d *Decoder) MapHeader() (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	n, rest, err := ReadMapHeader(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return 0, err
	}
	d.off = len(d.buf) - len(rest)
	return n, nil
}

// RawHeader reads a raw length prefix and returns the
// number of payload bytes that follow. The payload can
// then be taken directly from Rest.
func (d *Decoder) RawHeader() (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	n, rest, err := readRawHeader(d.buf[d.off:], "RawHeader")
	if err != nil {
		d.fail(err)
		return 0, err
	}
	d.off = len(d.buf) - len(rest)
	return n, nil
}

// Skip advances past one complete object.
func (d *Decoder) Skip() *Decoder {
	if d.err != nil {
		return d
	}
	rest, err := Skip(d.buf[d.off:])
	if err != nil {
		d.fail(err)
		return d
	}
	d.off = len(d.buf) - len(rest)
	return d
}

// Unpack decodes the next object into dst, which must
// be a pointer. Fixed-width integer targets are decoded
// with range validation; other targets use the same
// reflection rules as Unmarshal.
func (d *Decoder) Unpack(dst any) *Decoder {
	if d.err != nil {
		return d
	}
	switch v := dst.(type) {
	case *uint8:
		return d.Uint8(v)
	case *uint16:
		return d.Uint16(v)
	case *uint32:
		return d.Uint32(v)
	case *uint64:
		return d.Uint64(v)
	case *int8:
		return d.Int8(v)
	case *int16:
		return d.Int16(v)
	case *int32:
		return d.Int32(v)
	case *int64:
		return d.Int64(v)
	case *bool:
		return d.Bool(v)
	case *float32:
		return d.Float32(v)
	case *float64:
		return d.Float64(v)
	case *string:
		return d.String(v)
	case *[]byte:
		return d.Bytes(v)
	}
	rest, err := Unmarshal(d.buf[d.off:], dst)
	if err != nil {
		d.fail(err)
		return d
	}
	d.off = len(d.buf) - len(rest)
	return d
}
