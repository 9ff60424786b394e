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
	"errors"
	"testing"
)

func TestTypeOf(t *testing.T) {
	tcs := []struct {
		b    byte
		want Type
	}{
		{0x00, UintType},
		{0x7f, UintType},
		{0x80, MapType},
		{0x8f, MapType},
		{0x90, ArrayType},
		{0x9f, ArrayType},
		{0xa0, RawType},
		{0xbf, RawType},
		{0xc0, NilType},
		{0xc1, InvalidType},
		{0xc2, BoolType},
		{0xc3, BoolType},
		{0xc4, InvalidType},
		{0xc9, InvalidType},
		{0xca, FloatType},
		{0xcb, FloatType},
		{0xcc, UintType},
		{0xcf, UintType},
		{0xd0, IntType},
		{0xd3, IntType},
		{0xd4, InvalidType},
		{0xd9, InvalidType},
		{0xda, RawType},
		{0xdb, RawType},
		{0xdc, ArrayType},
		{0xdd, ArrayType},
		{0xde, MapType},
		{0xdf, MapType},
		{0xe0, IntType},
		{0xff, IntType},
	}
	for i := range tcs {
		if got := TypeOf([]byte{tcs[i].b}); got != tcs[i].want {
			t.Errorf("tag 0x%02x: got %s, want %s", tcs[i].b, got, tcs[i].want)
		}
	}
	if TypeOf(nil) != InvalidType {
		t.Error("TypeOf(nil) should be InvalidType")
	}
}

func TestReadTypeMismatch(t *testing.T) {
	// a bool encoding, offered to every other reader
	msg := []byte{0xc3}
	var te *TypeError

	if _, _, err := ReadUint(msg); !errors.As(err, &te) {
		t.Errorf("ReadUint: got %v", err)
	}
	if _, _, err := ReadInt(msg); !errors.As(err, &te) {
		t.Errorf("ReadInt: got %v", err)
	}
	if _, _, err := ReadFloat64(msg); !errors.As(err, &te) {
		t.Errorf("ReadFloat64: got %v", err)
	}
	if _, _, err := ReadBytesShared(msg); !errors.As(err, &te) {
		t.Errorf("ReadBytesShared: got %v", err)
	}
	if _, _, err := ReadArrayHeader(msg); !errors.As(err, &te) {
		t.Errorf("ReadArrayHeader: got %v", err)
	}
	if _, _, err := ReadMapHeader(msg); !errors.As(err, &te) {
		t.Errorf("ReadMapHeader: got %v", err)
	}
	if _, err := ReadNil(msg); !errors.As(err, &te) {
		t.Errorf("ReadNil: got %v", err)
	}
	if te.Found != BoolType {
		t.Errorf("TypeError.Found = %s", te.Found)
	}
}

func TestReadTruncated(t *testing.T) {
	var b Buffer
	b.WriteUint(65536)
	for i := 1; i < b.Size(); i++ {
		if _, _, err := ReadUint(b.Bytes()[:i]); err == nil {
			t.Errorf("ReadUint of %d/%d bytes should fail", i, b.Size())
		}
	}
	b.Reset()
	b.WriteRaw([]byte("hello"))
	for i := 1; i < b.Size(); i++ {
		if _, _, err := ReadBytesShared(b.Bytes()[:i]); err == nil {
			t.Errorf("ReadBytesShared of %d/%d bytes should fail", i, b.Size())
		}
	}
}

func TestSkip(t *testing.T) {
	var p Packer
	p.Pack(map[string]any{"a": []any{int64(1), int64(2), "three"}})
	p.Pack("sentinel")
	if p.Err() != nil {
		t.Fatal(p.Err())
	}
	rest, err := Skip(p.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	s, rest, err := ReadString(rest)
	if err != nil {
		t.Fatal(err)
	}
	if s != "sentinel" || len(rest) != 0 {
		t.Errorf("after Skip: %q, %d bytes left", s, len(rest))
	}

	// truncating anywhere inside the object breaks Skip
	obj := p.Bytes()[:len(p.Bytes())-10]
	for i := 1; i < len(obj); i++ {
		if _, err := Skip(obj[:i]); err == nil {
			t.Fatalf("Skip of %d/%d bytes should fail", i, len(obj))
		}
	}
}

func TestReservedTags(t *testing.T) {
	reserved := []byte{0xc1, 0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9}
	for _, tag := range reserved {
		_, _, err := ReadValue([]byte{tag, 0x00})
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("tag 0x%02x: got %v", tag, err)
		}
		if fe.Byte != tag {
			t.Errorf("tag 0x%02x: error reports 0x%02x", tag, fe.Byte)
		}
	}

	// the legacy extended-float tag gets a message of its own
	_, _, err := ReadValue([]byte{0xd4})
	if err == nil || err.Error() != "msgpack: legacy extended-float tag 0xd4 is not supported" {
		t.Errorf("unexpected 0xd4 error: %v", err)
	}
}

func TestZeroCopyShared(t *testing.T) {
	var b Buffer
	b.WriteRaw([]byte("alias me"))
	msg := b.Bytes()
	body, _, err := ReadBytesShared(msg)
	if err != nil {
		t.Fatal(err)
	}
	// identity, not just equality
	if &body[0] != &msg[len(msg)-len(body)] {
		t.Error("ReadBytesShared should alias the input")
	}
	cp, _, err := ReadBytes(msg)
	if err != nil {
		t.Fatal(err)
	}
	if &cp[0] == &msg[len(msg)-len(cp)] {
		t.Error("ReadBytes should copy")
	}
}
