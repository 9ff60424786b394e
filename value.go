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
	"bytes"

	"golang.org/x/exp/slices"
)

// Value represents a dynamically-typed msgpack datum.
//
// A Value is one of
//
//	Nil, Bool, Uint, Int, Float, Raw, Array, Map
//
// A Raw value produced by decoding may alias the buffer
// it was decoded from (see ReadBytesShared and Unpacker);
// callers that retain a Raw past the next mutation of its
// source must copy it first with Raw.Clone.
type Value interface {
	Type() Type
	Encode(dst *Buffer)

	// used for Equal
	equal(Value) bool
}

var (
	// all of these types must be values
	_ Value = Nil{}
	_ Value = Bool(true)
	_ Value = Uint(0)
	_ Value = Int(0)
	_ Value = Float(0)
	_ Value = Raw(nil)
	_ Value = Array{}
	_ Value = Map{}
)

// Nil is the msgpack nil datum.
type Nil struct{}

func (n Nil) Type() Type         { return NilType }
func (n Nil) Encode(dst *Buffer) { dst.WriteNil() }

func (n Nil) equal(x Value) bool {
	_, ok := x.(Nil)
	return ok
}

// Bool is a msgpack bool datum.
type Bool bool

func (b Bool) Type() Type         { return BoolType }
func (b Bool) Encode(dst *Buffer) { dst.WriteBool(bool(b)) }

func (b Bool) equal(x Value) bool {
	b2, ok := x.(Bool)
	return ok && b2 == b
}

// Uint is a msgpack unsigned integer datum.
type Uint uint64

func (u Uint) Type() Type         { return UintType }
func (u Uint) Encode(dst *Buffer) { dst.WriteUint(uint64(u)) }

func (u Uint) equal(x Value) bool {
	switch x := x.(type) {
	case Uint:
		return u == x
	case Int:
		return x >= 0 && Uint(x) == u
	case Float:
		return float64(uint64(x)) == float64(x) && uint64(x) == uint64(u)
	default:
		return false
	}
}

// Int is a msgpack signed integer datum.
// Decoding minimal-width input only produces Int
// for negative values; non-negative integers decode
// as Uint. Non-minimal signed encodings may decode
// to a non-negative Int, which compares equal to
// (and reports the Type of) the equivalent Uint.
type Int int64

func (i Int) Type() Type {
	if i >= 0 {
		return UintType
	}
	return IntType
}

func (i Int) Encode(dst *Buffer) { dst.WriteInt(int64(i)) }

func (i Int) equal(x Value) bool {
	switch x := x.(type) {
	case Int:
		return x == i
	case Uint:
		return i >= 0 && Uint(i) == x
	case Float:
		return float64(int64(x)) == float64(x) && int64(x) == int64(i)
	default:
		return false
	}
}

// Float is a msgpack float datum.
type Float float64

func (f Float) Type() Type         { return FloatType }
func (f Float) Encode(dst *Buffer) { dst.WriteFloat64(float64(f)) }

func (f Float) equal(x Value) bool {
	if f2, ok := x.(Float); ok {
		return f2 == f
	}
	if i, ok := x.(Int); ok {
		return float64(int64(f)) == float64(f) && int64(f) == int64(i)
	}
	if u, ok := x.(Uint); ok {
		return float64(uint64(f)) == float64(f) && uint64(f) == uint64(u)
	}
	return false
}

// Raw is a msgpack raw (byte-string) datum.
type Raw []byte

func (r Raw) Type() Type         { return RawType }
func (r Raw) Encode(dst *Buffer) { dst.WriteRaw([]byte(r)) }

func (r Raw) equal(x Value) bool {
	r2, ok := x.(Raw)
	return ok && bytes.Equal(r, r2)
}

// Clone returns a copy of r that does not
// alias the buffer r was decoded from.
func (r Raw) Clone() Raw {
	return Raw(slices.Clone([]byte(r)))
}

// Array is a msgpack array datum.
type Array []Value

func (a Array) Type() Type { return ArrayType }

func (a Array) Encode(dst *Buffer) {
	dst.WriteArrayHeader(len(a))
	for i := range a {
		a[i].Encode(dst)
	}
}

func (a Array) equal(x Value) bool {
	a2, ok := x.(Array)
	if !ok || len(a) != len(a2) {
		return false
	}
	for i := range a {
		if !Equal(a[i], a2[i]) {
			return false
		}
	}
	return true
}

// MapEntry is a single key-value pair in a Map datum.
type MapEntry struct {
	Key, Value Value
}

// Map is a msgpack map datum. Entries preserve
// encoded order, and keys may be of any kind,
// so a Map is a pair sequence rather than a Go map.
type Map []MapEntry

func (m Map) Type() Type { return MapType }

func (m Map) Encode(dst *Buffer) {
	dst.WriteMapHeader(len(m))
	for i := range m {
		m[i].Key.Encode(dst)
		m[i].Value.Encode(dst)
	}
}

// Get returns the value associated with the first
// entry whose key equals k, or (nil, false).
func (m Map) Get(k Value) (Value, bool) {
	for i := range m {
		if Equal(m[i].Key, k) {
			return m[i].Value, true
		}
	}
	return nil, false
}

func (m Map) equal(x Value) bool {
	m2, ok := x.(Map)
	if !ok || len(m) != len(m2) {
		return false
	}
	// entry order is not semantically significant,
	// so compare under a canonical key ordering
	k1 := sortedEntries(m)
	k2 := sortedEntries(m2)
	for i := range k1 {
		if !Equal(k1[i].Key, k2[i].Key) || !Equal(k1[i].Value, k2[i].Value) {
			return false
		}
	}
	return true
}

func sortedEntries(m Map) []MapEntry {
	out := slices.Clone([]MapEntry(m))
	slices.SortFunc(out, func(x, y MapEntry) bool {
		var bx, by Buffer
		x.Key.Encode(&bx)
		y.Key.Encode(&by)
		return bytes.Compare(bx.Bytes(), by.Bytes()) < 0
	})
	return out
}

// Equal returns whether a and b are
// semantically equivalent. Numeric values
// of different kinds compare equal when the
// conversion between them is lossless.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.equal(b)
}

func decodeNilValue(b []byte) (Value, []byte, error) {
	rest, err := ReadNil(b)
	if err != nil {
		return nil, rest, err
	}
	return Nil{}, rest, nil
}

func decodeBoolValue(b []byte) (Value, []byte, error) {
	q, rest, err := ReadBool(b)
	if err != nil {
		return nil, rest, err
	}
	return Bool(q), rest, nil
}

func decodeUintValue(b []byte) (Value, []byte, error) {
	u, rest, err := ReadUint(b)
	if err != nil {
		return nil, rest, err
	}
	return Uint(u), rest, nil
}

func decodeIntValue(b []byte) (Value, []byte, error) {
	i, rest, err := ReadInt(b)
	if err != nil {
		return nil, rest, err
	}
	return Int(i), rest, nil
}

func decodeFloatValue(b []byte) (Value, []byte, error) {
	f, rest, err := ReadFloat64(b)
	if err != nil {
		return nil, rest, err
	}
	return Float(f), rest, nil
}

func decodeRawValue(b []byte) (Value, []byte, error) {
	body, rest, err := ReadBytesShared(b)
	if err != nil {
		return nil, rest, err
	}
	return Raw(body), rest, nil
}

func decodeArrayValue(b []byte) (Value, []byte, error) {
	n, rest, err := ReadArrayHeader(b)
	if err != nil {
		return nil, rest, err
	}
	out := make(Array, 0, clampPrealloc(n))
	for i := 0; i < n; i++ {
		var item Value
		item, rest, err = ReadValue(rest)
		if err != nil {
			return nil, rest, err
		}
		out = append(out, item)
	}
	return out, rest, nil
}

func decodeMapValue(b []byte) (Value, []byte, error) {
	n, rest, err := ReadMapHeader(b)
	if err != nil {
		return nil, rest, err
	}
	out := make(Map, 0, clampPrealloc(n))
	for i := 0; i < n; i++ {
		var k, v Value
		k, rest, err = ReadValue(rest)
		if err != nil {
			return nil, rest, err
		}
		v, rest, err = ReadValue(rest)
		if err != nil {
			return nil, rest, err
		}
		out = append(out, MapEntry{Key: k, Value: v})
	}
	return out, rest, nil
}

func decodeInvalid(b []byte) (Value, []byte, error) {
	return nil, b, badtag(b[0], -1)
}

var _valueTable = [...](func([]byte) (Value, []byte, error)){
	NilType:     decodeNilValue,
	BoolType:    decodeBoolValue,
	UintType:    decodeUintValue,
	IntType:     decodeIntValue,
	FloatType:   decodeFloatValue,
	RawType:     decodeRawValue,
	ArrayType:   decodeArrayValue,
	MapType:     decodeMapValue,
	InvalidType: decodeInvalid,
}

var valueTable [9](func([]byte) (Value, []byte, error))

func init() {
	copy(valueTable[:], _valueTable[:])
}

// ReadValue reads the next object from buf
// and returns it along with the subsequent
// message bytes. Raw payloads inside the
// returned Value alias buf.
func ReadValue(buf []byte) (Value, []byte, error) {
	if len(buf) == 0 {
		return nil, buf, errTruncated
	}
	return valueTable[TypeOf(buf)](buf)
}

// container length prefixes come from untrusted
// input; never pre-allocate more than this many
// elements before seeing actual data
const maxPrealloc = 1 << 10

func clampPrealloc(n int) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}
