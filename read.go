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
	"fmt"
	"math"
)

// TypeError is the type of the error
// returned from read operations that
// try to evaluate a function that
// is typed incorrectly for the encoded data.
type TypeError struct {
	Wanted, Found Type
	Func          string
}

func (t *TypeError) Error() string {
	return fmt.Sprintf("msgpack.%s: found type %s, wanted type %s", t.Func, t.Found, t.Wanted)
}

func bad(got, want Type, fn string) error {
	return &TypeError{Wanted: want, Found: got, Func: fn}
}

func toosmall(got, want int, fn string) error {
	return fmt.Errorf("msgpack.%s: want at least %d bytes but have %d", fn, want, got)
}

var errTruncated = fmt.Errorf("msgpack: object truncated")

// trail returns the number of payload or length
// bytes that follow an explicit tag byte.
func trail(b byte) int {
	switch b {
	case tagUint8, tagInt8:
		return 1
	case tagUint16, tagInt16, tagRaw16, tagArray16, tagMap16:
		return 2
	case tagFloat32, tagUint32, tagInt32, tagRaw32, tagArray32, tagMap32:
		return 4
	case tagFloat64, tagUint64, tagInt64:
		return 8
	default:
		return 0
	}
}

// beuint decodes an n-byte big-endian unsigned
// integer from the front of msg; n must be 1, 2, 4, or 8
// and msg must have at least n bytes.
func beuint(msg []byte, n int) uint64 {
	switch n {
	case 1:
		return uint64(msg[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(msg))
	case 4:
		return uint64(binary.BigEndian.Uint32(msg))
	case 8:
		return binary.BigEndian.Uint64(msg)
	default:
		panic("msgpack: bad big-endian width")
	}
}

// ReadNil reads a nil object from msg
// and returns the subsequent message bytes.
func ReadNil(msg []byte) ([]byte, error) {
	if len(msg) == 0 {
		return nil, toosmall(0, 1, "ReadNil")
	}
	if msg[0] != tagNil {
		return nil, bad(TypeOf(msg), NilType, "ReadNil")
	}
	return msg[1:], nil
}

// ReadBool reads a boolean value
// and returns it along with the
// subsequent message bytes.
func ReadBool(msg []byte) (bool, []byte, error) {
	if len(msg) == 0 {
		return false, nil, toosmall(0, 1, "ReadBool")
	}
	switch msg[0] {
	case tagFalse:
		return false, msg[1:], nil
	case tagTrue:
		return true, msg[1:], nil
	default:
		return false, nil, bad(TypeOf(msg), BoolType, "ReadBool")
	}
}

// ReadUint reads a msgpack integer as a uint64
// and returns the subsequent message bytes.
// ReadUint only accepts unsigned encodings
// (positive fixnum and uint8 through uint64);
// use ReadInt for values that may be negative.
func ReadUint(msg []byte) (uint64, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, "ReadUint")
	}
	b := msg[0]
	if b < fixintMask {
		return uint64(b), msg[1:], nil
	}
	if b < tagUint8 || b > tagUint64 {
		return 0, nil, bad(TypeOf(msg), UintType, "ReadUint")
	}
	n := trail(b)
	if len(msg) < 1+n {
		return 0, nil, toosmall(len(msg), 1+n, "ReadUint")
	}
	return beuint(msg[1:], n), msg[1+n:], nil
}

// ReadInt reads a msgpack integer as an int64
// and returns the subsequent message bytes.
// ReadInt accepts both signed and unsigned
// encodings; unsigned values above math.MaxInt64
// are out of range.
func ReadInt(msg []byte) (int64, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, "ReadInt")
	}
	b := msg[0]
	switch {
	case b < fixintMask:
		return int64(b), msg[1:], nil
	case b >= negfixTag:
		return int64(int8(b)), msg[1:], nil
	case b >= tagUint8 && b <= tagUint64:
		n := trail(b)
		if len(msg) < 1+n {
			return 0, nil, toosmall(len(msg), 1+n, "ReadInt")
		}
		u := beuint(msg[1:], n)
		if u > math.MaxInt64 {
			return 0, nil, fmt.Errorf("msgpack.ReadInt: value %d out of range for int64", u)
		}
		return int64(u), msg[1+n:], nil
	case b >= tagInt8 && b <= tagInt64:
		n := trail(b)
		if len(msg) < 1+n {
			return 0, nil, toosmall(len(msg), 1+n, "ReadInt")
		}
		u := beuint(msg[1:], n)
		// sign-extend from the encoded width
		return int64(u) << (64 - 8*n) >> (64 - 8*n), msg[1+n:], nil
	default:
		return 0, nil, bad(TypeOf(msg), IntType, "ReadInt")
	}
}

// ReadFloat64 reads a msgpack float
// (either width) as a float64 and returns
// the value and the subsequent message bytes.
func ReadFloat64(msg []byte) (float64, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, "ReadFloat64")
	}
	switch msg[0] {
	case tagFloat32:
		if len(msg) < 5 {
			return 0, nil, toosmall(len(msg), 5, "ReadFloat64")
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(msg[1:]))), msg[5:], nil
	case tagFloat64:
		if len(msg) < 9 {
			return 0, nil, toosmall(len(msg), 9, "ReadFloat64")
		}
		return math.Float64frombits(binary.BigEndian.Uint64(msg[1:])), msg[9:], nil
	default:
		return 0, nil, bad(TypeOf(msg), FloatType, "ReadFloat64")
	}
}

// ReadFloat32 reads a msgpack float32
// and returns the value and the subsequent
// message bytes. Unlike ReadFloat64, it does
// not accept the 64-bit encoding, since the
// conversion would lose precision.
func ReadFloat32(msg []byte) (float32, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, "ReadFloat32")
	}
	if msg[0] != tagFloat32 {
		return 0, nil, bad(TypeOf(msg), FloatType, "ReadFloat32")
	}
	if len(msg) < 5 {
		return 0, nil, toosmall(len(msg), 5, "ReadFloat32")
	}
	return math.Float32frombits(binary.BigEndian.Uint32(msg[1:])), msg[5:], nil
}

// readRawHeader decodes a raw length prefix.
func readRawHeader(msg []byte, fn string) (int, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, fn)
	}
	b := msg[0]
	switch {
	case b&0xe0 == fixrawTag:
		return int(b & 0x1f), msg[1:], nil
	case b == tagRaw16:
		if len(msg) < 3 {
			return 0, nil, toosmall(len(msg), 3, fn)
		}
		return int(binary.BigEndian.Uint16(msg[1:])), msg[3:], nil
	case b == tagRaw32:
		if len(msg) < 5 {
			return 0, nil, toosmall(len(msg), 5, fn)
		}
		return int(binary.BigEndian.Uint32(msg[1:])), msg[5:], nil
	default:
		return 0, nil, bad(TypeOf(msg), RawType, fn)
	}
}

// ReadBytesShared reads a raw object and
// returns the payload and the subsequent
// message bytes. Note that the returned []byte
// aliases the input message, so the caller
// must copy those bytes into a new buffer if
// the original buffer is expected to be clobbered.
func ReadBytesShared(msg []byte) ([]byte, []byte, error) {
	n, body, err := readRawHeader(msg, "ReadBytesShared")
	if err != nil {
		return nil, nil, err
	}
	if len(body) < n {
		return nil, nil, toosmall(len(body), n, "ReadBytesShared")
	}
	return body[:n:n], body[n:], nil
}

// ReadBytes reads a raw object from msg.
// The returned slice does not alias msg.
// See also: ReadBytesShared.
func ReadBytes(msg []byte) ([]byte, []byte, error) {
	orig, rest, err := ReadBytesShared(msg)
	if err != nil {
		return nil, rest, err
	}
	out := make([]byte, len(orig))
	copy(out, orig)
	return out, rest, nil
}

// ReadString reads a raw object from msg
// as a string and returns the string and
// the subsequent message bytes.
func ReadString(msg []byte) (string, []byte, error) {
	body, rest, err := ReadBytesShared(msg)
	if err != nil {
		return "", rest, err
	}
	return string(body), rest, nil
}

// ReadStringShared reads a raw object from msg
// and returns the payload and the subsequent
// message bytes. The returned slice containing
// the string contents aliases the input slice.
func ReadStringShared(msg []byte) ([]byte, []byte, error) {
	return ReadBytesShared(msg)
}

// ReadArrayHeader reads an array length prefix
// and returns the number of elements that follow
// plus the subsequent message bytes.
func ReadArrayHeader(msg []byte) (int, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, "ReadArrayHeader")
	}
	b := msg[0]
	switch {
	case b&0xf0 == fixarrayTag:
		return int(b & 0x0f), msg[1:], nil
	case b == tagArray16:
		if len(msg) < 3 {
			return 0, nil, toosmall(len(msg), 3, "ReadArrayHeader")
		}
		return int(binary.BigEndian.Uint16(msg[1:])), msg[3:], nil
	case b == tagArray32:
		if len(msg) < 5 {
			return 0, nil, toosmall(len(msg), 5, "ReadArrayHeader")
		}
		return int(binary.BigEndian.Uint32(msg[1:])), msg[5:], nil
	default:
		return 0, nil, bad(TypeOf(msg), ArrayType, "ReadArrayHeader")
	}
}

// ReadMapHeader reads a map length prefix
// and returns the number of key-value pairs
// that follow plus the subsequent message bytes.
func ReadMapHeader(msg []byte) (int, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, toosmall(0, 1, "ReadMapHeader")
	}
	b := msg[0]
	switch {
	case b&0xf0 == fixmapTag && b < fixarrayTag:
		return int(b & 0x0f), msg[1:], nil
	case b == tagMap16:
		if len(msg) < 3 {
			return 0, nil, toosmall(len(msg), 3, "ReadMapHeader")
		}
		return int(binary.BigEndian.Uint16(msg[1:])), msg[3:], nil
	case b == tagMap32:
		if len(msg) < 5 {
			return 0, nil, toosmall(len(msg), 5, "ReadMapHeader")
		}
		return int(binary.BigEndian.Uint32(msg[1:])), msg[5:], nil
	default:
		return 0, nil, bad(TypeOf(msg), MapType, "ReadMapHeader")
	}
}

// Skip advances past one complete object
// and returns the remaining message bytes.
// Unlike the fixed-cost header reads, Skip
// walks container contents, since msgpack
// containers are count-prefixed rather than
// byte-length-prefixed.
func Skip(msg []byte) ([]byte, error) {
	if len(msg) == 0 {
		return nil, errTruncated
	}
	b := msg[0]
	switch TypeOf(msg) {
	case NilType, BoolType:
		return msg[1:], nil
	case UintType, IntType:
		if b < fixintMask || b >= negfixTag {
			return msg[1:], nil
		}
		n := trail(b)
		if len(msg) < 1+n {
			return nil, errTruncated
		}
		return msg[1+n:], nil
	case FloatType:
		n := trail(b)
		if len(msg) < 1+n {
			return nil, errTruncated
		}
		return msg[1+n:], nil
	case RawType:
		_, rest, err := ReadBytesShared(msg)
		return rest, err
	case ArrayType:
		n, rest, err := ReadArrayHeader(msg)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			rest, err = Skip(rest)
			if err != nil {
				return nil, err
			}
		}
		return rest, nil
	case MapType:
		n, rest, err := ReadMapHeader(msg)
		if err != nil {
			return nil, err
		}
		for i := 0; i < 2*n; i++ {
			rest, err = Skip(rest)
			if err != nil {
				return nil, err
			}
		}
		return rest, nil
	default:
		return nil, badtag(b, -1)
	}
}
