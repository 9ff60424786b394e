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

// Package msgpack implements the MessagePack binary
// serialization format (v1, no extension types).
//
// The package provides three decoding surfaces:
// low-level Read* functions that decode one object
// from a complete buffer and return the remaining bytes,
// a Decoder that decodes a complete buffer directly into
// typed Go variables with range validation, and an
// Unpacker that accepts bytes incrementally (for example,
// as they arrive from a socket) and produces dynamic
// Value results as soon as enough bytes are available.
//
// Encoding is handled by Buffer, which appends
// minimal-width encodings, and by Packer, a chainable
// convenience layer on top of Buffer.
package msgpack

import (
	"fmt"
)

// Type is one of the msgpack datatypes
type Type byte

const (
	NilType Type = iota
	BoolType
	UintType // unsigned integer; also positive fixnum
	IntType  // signed integer; always negative
	FloatType
	RawType // byte-string (arbitrary binary or text)
	ArrayType
	MapType
	InvalidType // reserved tag bytes
)

func (t Type) String() string {
	switch t {
	case NilType:
		return "nil"
	case BoolType:
		return "bool"
	case UintType:
		return "uint"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case RawType:
		return "raw"
	case ArrayType:
		return "array"
	case MapType:
		return "map"
	case InvalidType:
		return "invalid"
	default:
		return "invalid"
	}
}

// Composite returns whether or not
// the type is an object containing
// other objects.
func (t Type) Composite() bool {
	switch t {
	case ArrayType, MapType:
		return true
	default:
		return false
	}
}

// Integer returns whether or not
// the type is an integer type
// (either IntType or UintType).
func (t Type) Integer() bool {
	switch t {
	case IntType, UintType:
		return true
	default:
		return false
	}
}

// explicit (non-fixnum, non-fix-form) tag bytes
const (
	tagNil     = 0xc0
	tagUnused  = 0xc1 // never used by any msgpack version
	tagFalse   = 0xc2
	tagTrue    = 0xc3
	tagFloat32 = 0xca
	tagFloat64 = 0xcb
	tagUint8   = 0xcc
	tagUint16  = 0xcd
	tagUint32  = 0xce
	tagUint64  = 0xcf
	tagInt8    = 0xd0
	tagInt16   = 0xd1
	tagInt32   = 0xd2
	tagInt64   = 0xd3
	tagExtF    = 0xd4 // legacy "extended float"; always rejected
	tagRaw16   = 0xda
	tagRaw32   = 0xdb
	tagArray16 = 0xdc
	tagArray32 = 0xdd
	tagMap16   = 0xde
	tagMap32   = 0xdf
)

// fix-form tag ranges; the low bits of the
// tag byte embed the value or length itself
const (
	fixintMask  = 0x80 // 0x00-0x7f: positive fixnum
	fixmapTag   = 0x80 // 0x80-0x8f: map of up to 15 pairs
	fixarrayTag = 0x90 // 0x90-0x9f: array of up to 15 items
	fixrawTag   = 0xa0 // 0xa0-0xbf: raw of up to 31 bytes
	negfixTag   = 0xe0 // 0xe0-0xff: negative fixnum (-32..-1)
)

// typeTable maps each possible leading tag byte
// to the msgpack type it introduces.
var typeTable [256]Type

func init() {
	for b := 0x00; b <= 0x7f; b++ {
		typeTable[b] = UintType
	}
	for b := 0x80; b <= 0x8f; b++ {
		typeTable[b] = MapType
	}
	for b := 0x90; b <= 0x9f; b++ {
		typeTable[b] = ArrayType
	}
	for b := 0xa0; b <= 0xbf; b++ {
		typeTable[b] = RawType
	}
	for b := 0xe0; b <= 0xff; b++ {
		typeTable[b] = IntType
	}
	for b := 0xc0; b <= 0xdf; b++ {
		typeTable[b] = InvalidType
	}
	typeTable[tagNil] = NilType
	typeTable[tagFalse] = BoolType
	typeTable[tagTrue] = BoolType
	typeTable[tagFloat32] = FloatType
	typeTable[tagFloat64] = FloatType
	for b := tagUint8; b <= tagUint64; b++ {
		typeTable[b] = UintType
	}
	for b := tagInt8; b <= tagInt64; b++ {
		typeTable[b] = IntType
	}
	typeTable[tagRaw16] = RawType
	typeTable[tagRaw32] = RawType
	typeTable[tagArray16] = ArrayType
	typeTable[tagArray32] = ArrayType
	typeTable[tagMap16] = MapType
	typeTable[tagMap32] = MapType
}

// TypeOf returns the type of the next
// object in the buffer. TypeOf returns
// InvalidType if msg is empty or begins
// with a reserved tag byte.
func TypeOf(msg []byte) Type {
	if len(msg) == 0 {
		return InvalidType
	}
	return typeTable[msg[0]]
}

// FormatError is the error returned when a
// reserved or otherwise unrecognized tag byte
// is encountered. A FormatError means the byte
// stream can no longer be trusted: the decoder
// cannot re-synchronize past an unknown tag.
type FormatError struct {
	Byte byte  // the offending tag byte
	Off  int64 // stream offset of the tag, if known (otherwise -1)
}

func (e *FormatError) Error() string {
	if e.Byte == tagExtF {
		return fmt.Sprintf("msgpack: legacy extended-float tag 0x%02x is not supported", e.Byte)
	}
	return fmt.Sprintf("msgpack: unknown format tag 0x%02x", e.Byte)
}

func badtag(b byte, off int64) error {
	return &FormatError{Byte: b, Off: off}
}

// fixlen returns the length embedded in a
// fix-form tag byte. The result is unspecified
// if b is not a fixmap, fixarray, or fixraw tag.
func fixlen(b byte) int {
	if b&0xe0 == fixrawTag {
		return int(b & 0x1f)
	}
	return int(b & 0x0f)
}
