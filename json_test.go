// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package msgpack

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestToJSON(t *testing.T) {
	tcs := []struct {
		in   Value
		want string
	}{
		{Nil{}, "null"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Uint(42), "42"},
		{Int(-3), "-3"},
		{Float(0.5), "0.5"},
		{Raw("hello"), `"hello"`},
		{Raw([]byte{0xff, 0x00}), `"/wA="`}, // not UTF-8: base64
		{Array{Uint(1), Raw("two"), Nil{}}, `[1, "two", null]`},
		{Map{
			{Key: Raw("a"), Value: Uint(1)},
			{Key: Uint(2), Value: Raw("b")},
			{Key: Int(-1), Value: Array{}},
		}, `{"a": 1, "2": "b", "-1": []}`},
		{Map{}, "{}"},
	}
	for i := range tcs {
		var b Buffer
		tcs[i].in.Encode(&b)
		var out bytes.Buffer
		n, err := ToJSON(&out, bytes.NewReader(b.Bytes()))
		if err != nil {
			t.Fatalf("case %d: %s", i, err)
		}
		if got := out.String(); got != tcs[i].want+"\n" {
			t.Errorf("case %d: got %q, want %q", i, got, tcs[i].want)
		}
		if n != out.Len() {
			t.Errorf("case %d: reported %d bytes, wrote %d", i, n, out.Len())
		}
	}
}

func TestToJSONStream(t *testing.T) {
	var b Buffer
	Uint(1).Encode(&b)
	Raw("x").Encode(&b)
	Array{Bool(true)}.Encode(&b)

	var out bytes.Buffer
	if _, err := ToJSON(&out, bytes.NewReader(b.Bytes())); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "1\n\"x\"\n[true]\n" {
		t.Errorf("got %q", got)
	}

	// trailing bytes that form no complete object are an error
	b.UnsafeAppend([]byte{0x92, 0x01})
	if _, err := ToJSON(io.Discard, bytes.NewReader(b.Bytes())); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestJSONWriterSplit(t *testing.T) {
	var b Buffer
	Map{
		{Key: Raw("msg"), Value: Raw(strings.Repeat("z", 40))},
		{Key: Raw("n"), Value: Uint(1000)},
	}.Encode(&b)
	Uint(7).Encode(&b)
	msg := b.Bytes()
	want := `{"msg": "` + strings.Repeat("z", 40) + `", "n": 1000}` + "\n7\n"

	// values split across Write calls must still decode
	for chunk := 1; chunk <= len(msg); chunk++ {
		var out bytes.Buffer
		w := NewJSONWriter(&out, '\n')
		for i := 0; i < len(msg); i += chunk {
			end := i + chunk
			if end > len(msg) {
				end = len(msg)
			}
			n, err := w.Write(msg[i:end])
			if err != nil {
				t.Fatalf("chunk %d: %s", chunk, err)
			}
			if n != end-i {
				t.Fatalf("chunk %d: short write %d", chunk, n)
			}
		}
		if err := w.Close(); err != nil {
			t.Fatalf("chunk %d: %s", chunk, err)
		}
		if got := out.String(); got != want {
			t.Errorf("chunk %d: got %q, want %q", chunk, got, want)
		}
	}
}

func TestJSONWriterArrayMode(t *testing.T) {
	var b Buffer
	Uint(1).Encode(&b)
	Raw("two").Encode(&b)
	Bool(false).Encode(&b)

	var out bytes.Buffer
	w := NewJSONWriter(&out, ',')
	if _, err := w.Write(b.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != `[1,"two",false]` {
		t.Errorf("got %q", got)
	}

	// no values at all still yields valid JSON
	out.Reset()
	w = NewJSONWriter(&out, ',')
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "[]" {
		t.Errorf("got %q", got)
	}
}

func TestJSONWriterIncomplete(t *testing.T) {
	var out bytes.Buffer
	w := NewJSONWriter(&out, '\n')
	if _, err := w.Write([]byte{0x92, 0x01}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestJSONWriterBadInput(t *testing.T) {
	var out bytes.Buffer
	w := NewJSONWriter(&out, '\n')
	var fe *FormatError
	if _, err := w.Write([]byte{0xc1}); !errors.As(err, &fe) {
		t.Errorf("expected FormatError, got %v", err)
	}
}
