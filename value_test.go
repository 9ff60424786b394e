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

func TestReadValueScenario(t *testing.T) {
	// pack(1, true, "Foo") wraps as a 3-element array
	var p Packer
	p.Pack(1, true, "Foo")
	if p.Err() != nil {
		t.Fatal(p.Err())
	}
	v, rest, err := ReadValue(p.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Errorf("%d bytes left over?", len(rest))
	}
	want := Array{Uint(1), Bool(true), Raw("Foo")}
	if !Equal(v, want) {
		t.Errorf("got %#v, want %#v", v, want)
	}
}

func TestValueRoundTrip(t *testing.T) {
	tcs := []Value{
		Nil{},
		Bool(true),
		Bool(false),
		Uint(0),
		Uint(127),
		Uint(128),
		Uint(1 << 34),
		Int(-1),
		Int(-32),
		Int(-33),
		Int(-7000000),
		Float(3.5),
		Raw(""),
		Raw("hello"),
		Array{},
		Map{},
		Array{Uint(1), Array{Uint(2), Array{Uint(3), Array{Uint(4), Array{}}}}},
		Map{
			{Key: Raw("a"), Value: Uint(1)},
			{Key: Uint(2), Value: Array{Bool(false), Nil{}}},
			{Key: Raw("nested"), Value: Map{{Key: Raw("x"), Value: Float(0.25)}}},
		},
	}

	var b Buffer
	for i := range tcs {
		b.Reset()
		tcs[i].Encode(&b)
		got, rest, err := ReadValue(b.Bytes())
		if err != nil {
			t.Fatalf("case %d: %s", i, err)
		}
		if len(rest) != 0 {
			t.Errorf("case %d: %d bytes left over?", i, len(rest))
		}
		if !Equal(got, tcs[i]) {
			t.Errorf("case %d: got %#v, want %#v", i, got, tcs[i])
		}
	}
}

func TestEqual(t *testing.T) {
	tcs := []struct {
		a, b Value
		want bool
	}{
		{Uint(7), Int(7), true},
		{Int(7), Uint(7), true},
		{Int(-7), Uint(7), false},
		{Float(7), Uint(7), true},
		{Float(7.5), Uint(7), false},
		{Uint(7), Float(7), true},
		{Raw("x"), Raw("x"), true},
		{Raw("x"), Raw("y"), false},
		{Nil{}, Nil{}, true},
		{Nil{}, Bool(false), false},
		{Array{Uint(1)}, Array{Uint(1)}, true},
		{Array{Uint(1)}, Array{Int(1)}, true},
		{Array{Uint(1)}, Array{Uint(1), Uint(2)}, false},
		// map equality ignores entry order
		{
			Map{{Key: Raw("a"), Value: Uint(1)}, {Key: Raw("b"), Value: Uint(2)}},
			Map{{Key: Raw("b"), Value: Uint(2)}, {Key: Raw("a"), Value: Uint(1)}},
			true,
		},
		{
			Map{{Key: Raw("a"), Value: Uint(1)}},
			Map{{Key: Raw("a"), Value: Uint(2)}},
			false,
		},
	}
	for i := range tcs {
		if got := Equal(tcs[i].a, tcs[i].b); got != tcs[i].want {
			t.Errorf("case %d: Equal(%v, %v) = %v", i, tcs[i].a, tcs[i].b, got)
		}
	}
}

func TestConversions(t *testing.T) {
	if b, err := AsBool(Bool(true)); err != nil || !b {
		t.Errorf("AsBool: %v, %v", b, err)
	}
	if _, err := AsBool(Uint(1)); err == nil {
		t.Error("AsBool(Uint) should fail")
	}
	if i, err := AsInt(Uint(5)); err != nil || i != 5 {
		t.Errorf("AsInt: %v, %v", i, err)
	}
	if u, err := AsUint(Int(-1)); err != nil || u != ^uint64(0) {
		// dynamic conversions cast without range checks
		t.Errorf("AsUint: %v, %v", u, err)
	}
	if _, err := AsInt(Float(1)); err == nil {
		t.Error("AsInt(Float) should fail")
	}
	if f, err := AsFloat(Float(2.5)); err != nil || f != 2.5 {
		t.Errorf("AsFloat: %v, %v", f, err)
	}
	if s, err := AsString(Raw("abc")); err != nil || s != "abc" {
		t.Errorf("AsString: %q, %v", s, err)
	}
	if a, err := AsArray(Nil{}); err != nil || a != nil {
		t.Errorf("AsArray(Nil): %v, %v", a, err)
	}
	if _, err := AsMap(Array{}); err == nil {
		t.Error("AsMap(Array) should fail")
	}

	var te *TypeError
	_, err := AsString(Uint(1))
	if !errors.As(err, &te) || te.Wanted != RawType || te.Found != UintType {
		t.Errorf("unexpected error shape: %v", err)
	}
}

func TestMapGet(t *testing.T) {
	m := Map{
		{Key: Raw("a"), Value: Uint(1)},
		{Key: Uint(9), Value: Raw("nine")},
	}
	if v, ok := m.Get(Raw("a")); !ok || !Equal(v, Uint(1)) {
		t.Errorf("Get(a): %v, %v", v, ok)
	}
	if v, ok := m.Get(Int(9)); !ok || !Equal(v, Raw("nine")) {
		t.Errorf("Get(9): %v, %v", v, ok)
	}
	if _, ok := m.Get(Raw("missing")); ok {
		t.Error("Get(missing) should fail")
	}
}
