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
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

type jswriter interface {
	io.Writer
	io.ByteWriter
	WriteString(s string) (int, error)
}

// helper for formatting json scalars
type scratch struct {
	buf []byte
}

func (s *scratch) f64(f float64) []byte {
	s.buf = strconv.AppendFloat(s.buf[:0], f, 'g', -1, 64)
	return s.buf
}

func (s *scratch) int(i int64) []byte {
	s.buf = strconv.AppendInt(s.buf[:0], i, 10)
	return s.buf
}

func (s *scratch) uint(u uint64) []byte {
	s.buf = strconv.AppendUint(s.buf[:0], u, 10)
	return s.buf
}

func (s *scratch) quoted(body []byte) []byte {
	s.buf = strconv.AppendQuote(s.buf[:0], string(body))
	return s.buf
}

// writeJSON writes one Value as a JSON value.
// Raw payloads that are valid UTF-8 are written as JSON
// strings; other payloads are base64-encoded strings.
// Map keys that are not raws are rendered as quoted
// JSON scalars, since JSON object keys must be strings.
func writeJSON(w jswriter, v Value, s *scratch) error {
	switch v := v.(type) {
	case Nil:
		_, err := w.WriteString("null")
		return err
	case Bool:
		var err error
		if v {
			_, err = w.WriteString("true")
		} else {
			_, err = w.WriteString("false")
		}
		return err
	case Uint:
		_, err := w.Write(s.uint(uint64(v)))
		return err
	case Int:
		_, err := w.Write(s.int(int64(v)))
		return err
	case Float:
		_, err := w.Write(s.f64(float64(v)))
		return err
	case Raw:
		if utf8.Valid(v) {
			_, err := w.Write(s.quoted(v))
			return err
		}
		dst := make([]byte, base64.StdEncoding.EncodedLen(len(v)))
		base64.StdEncoding.Encode(dst, v)
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.Write(dst); err != nil {
			return err
		}
		return w.WriteByte('"')
	case Array:
		if err := w.WriteByte('['); err != nil {
			return err
		}
		for i := range v {
			if i > 0 {
				if _, err := w.WriteString(", "); err != nil {
					return err
				}
			}
			if err := writeJSON(w, v[i], s); err != nil {
				return err
			}
		}
		return w.WriteByte(']')
	case Map:
		if err := w.WriteByte('{'); err != nil {
			return err
		}
		for i := range v {
			if i > 0 {
				if _, err := w.WriteString(", "); err != nil {
					return err
				}
			}
			if err := writeJSONKey(w, v[i].Key, s); err != nil {
				return err
			}
			if _, err := w.WriteString(": "); err != nil {
				return err
			}
			if err := writeJSON(w, v[i].Value, s); err != nil {
				return err
			}
		}
		return w.WriteByte('}')
	default:
		return fmt.Errorf("msgpack: cannot translate %s to JSON", v.Type())
	}
}

func writeJSONKey(w jswriter, k Value, s *scratch) error {
	if r, ok := k.(Raw); ok && utf8.Valid(r) {
		_, err := w.Write(s.quoted(r))
		return err
	}
	// non-string key: render its scalar form inside quotes
	switch k := k.(type) {
	case Uint:
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.Write(s.uint(uint64(k))); err != nil {
			return err
		}
		return w.WriteByte('"')
	case Int:
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.Write(s.int(int64(k))); err != nil {
			return err
		}
		return w.WriteByte('"')
	default:
		return writeJSON(w, k, s)
	}
}

// ToJSON reads a stream of msgpack objects from 'r'
// and writes them to 'w'. Each top-level object in the
// stream is written on its own line.
// (See also: jsonlines.org, ndjson.org)
//
// ToJSON returns the number of bytes written to w
// and the first error encountered (if any).
func ToJSON(w io.Writer, r io.Reader) (int, error) {
	var b *bufio.Writer
	js, ok := w.(jswriter)
	if !ok {
		b = bufio.NewWriter(w)
		js = b
	}
	cw := &countWriter{w: js}
	var s scratch
	u := NewUnpacker(nil, 0)
	chunk := make([]byte, 4096)
	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			u.Feed(chunk[:n])
			for {
				ok, err := u.Execute()
				if err != nil {
					if b != nil {
						b.Flush()
					}
					return cw.n, err
				}
				if !ok {
					break
				}
				if err := writeJSON(cw, u.Purge(), &s); err != nil {
					return cw.n, err
				}
				if err := cw.WriteByte('\n'); err != nil {
					return cw.n, err
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return cw.n, rerr
		}
	}
	if u.UnparsedSize() > 0 {
		return cw.n, fmt.Errorf("msgpack: %d trailing bytes form no complete object: %w", u.UnparsedSize(), io.ErrUnexpectedEOF)
	}
	if b != nil {
		if err := b.Flush(); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

type countWriter struct {
	w jswriter
	n int
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

func (c *countWriter) WriteByte(b byte) error {
	err := c.w.WriteByte(b)
	if err == nil {
		c.n++
	}
	return err
}

func (c *countWriter) WriteString(s string) (int, error) {
	n, err := c.w.WriteString(s)
	c.n += n
	return n, err
}

// JSONWriter is an io.WriteCloser that performs inline
// translation of msgpack data into JSON objects.
// See NewJSONWriter.
type JSONWriter struct {
	// W is the output io.Writer into which
	// the JSON data is written.
	W io.Writer

	s  scratch
	b  *bufio.Writer
	js jswriter
	u  *Unpacker

	anyout bool // any output has been written
	nd     bool // is ndjson
}

// NewJSONWriter creates a new JSON writer
// which writes either NDJSON or a JSON array
// depending on the value of sep:
//
//	If sep is '\n', then the returned JSONWriter
//	writes NDJSON lines from each input object,
//	and the Close method only flushes.
//
//	If sep is ',', then the returned JSONWriter
//	writes a JSON array containing all the msgpack
//	values passed to Write. The call to Close
//	writes the final ']' byte.
//
// NewJSONWriter will panic if sep is not one
// of the recognized bytes.
//
// Unlike a byte-for-byte translator, JSONWriter
// buffers partial objects internally, so values split
// across multiple Write calls are handled correctly.
func NewJSONWriter(w io.Writer, sep byte) *JSONWriter {
	var b *bufio.Writer
	js, ok := w.(jswriter)
	if !ok {
		b = bufio.NewWriter(w)
		js = b
	}
	switch sep {
	case '\n', ',':
	default:
		panic("invalid sep passed to NewJSONWriter")
	}
	return &JSONWriter{W: w, b: b, js: js, nd: sep == '\n', u: NewUnpacker(nil, 0)}
}

// Write implements io.Writer. Input need not align
// with object boundaries; incomplete trailing bytes
// are buffered until a subsequent Write completes them.
func (w *JSONWriter) Write(src []byte) (int, error) {
	w.u.Feed(src)
	for {
		ok, err := w.u.Execute()
		if err != nil {
			w.flush()
			return 0, err
		}
		if !ok {
			break
		}
		if !w.nd {
			if w.anyout {
				w.js.WriteByte(',')
			} else {
				w.js.WriteByte('[')
			}
		}
		if err := writeJSON(w.js, w.u.Purge(), &w.s); err != nil {
			w.flush()
			return 0, err
		}
		if w.nd {
			w.js.WriteByte('\n')
		}
		w.anyout = true
	}
	return len(src), w.flush()
}

// Close terminates the JSON output. Any buffered bytes
// that do not form a complete object are reported as an
// error. Close does not close the underlying writer.
func (w *JSONWriter) Close() error {
	if w.u.UnparsedSize() > 0 {
		return fmt.Errorf("msgpack: %d buffered bytes form no complete object: %w", w.u.UnparsedSize(), io.ErrUnexpectedEOF)
	}
	if w.nd {
		return w.flush()
	}
	if !w.anyout {
		_, err := io.WriteString(w.W, "[]")
		return err
	}
	w.js.WriteByte(']')
	return w.flush()
}

func (w *JSONWriter) flush() error {
	if w.b != nil {
		return w.b.Flush()
	}
	return nil
}
