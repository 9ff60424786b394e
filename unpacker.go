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
	"math"
)

// parseState identifies what the unpacker expects
// at its current cursor position: either a fresh tag
// byte (stateHeader) or the trailing payload/length
// bytes of a tag that has already been classified.
type parseState uint8

const (
	stateHeader parseState = iota

	// fixed-width scalar payloads
	stateFloat32
	stateFloat64
	stateUint8
	stateUint16
	stateUint32
	stateUint64
	stateInt8
	stateInt16
	stateInt32
	stateInt64

	// 16- or 32-bit length prefixes
	stateRawLen16
	stateRawLen32
	stateArrayLen16
	stateArrayLen32
	stateMapLen16
	stateMapLen32

	// raw payload bytes
	stateRawBody
)

type frameKind uint8

const (
	frameArray frameKind = iota
	frameMapKey
	frameMapValue
)

// frame is one level of in-progress container nesting.
type frame struct {
	kind      frameKind
	remaining int
	key       Value // pending map key, when kind == frameMapValue
	arr       Array
	m         Map
}

// Unpacker is a resumable streaming msgpack parser.
//
// An Unpacker owns a growable byte buffer. Newly arrived
// bytes are appended with Feed; each call to Execute
// advances the parse as far as the buffered bytes permit
// and reports whether a complete top-level value is ready.
// Running out of bytes mid-value is not an error: Execute
// returns false and the parse resumes exactly where it
// left off once more bytes are fed. The idiomatic
// per-message loop is
//
//	for {
//		ok, err := u.Execute()
//		if err != nil || !ok {
//			break // feed more bytes, or give up
//		}
//		handle(u.Purge())
//	}
//
// Raw values produced by an Unpacker alias its internal
// buffer; copy them with Raw.Clone before the next call
// to Feed or Execute if they are retained.
//
// An Unpacker must not be shared between goroutines.
type Unpacker struct {
	buf         []byte // owned storage; buf[off:] is unparsed
	off         int    // parse cursor
	parsedTotal int64  // bytes consumed toward the current value

	state    parseState
	trail    int // bytes needed to leave the current state
	stack    []frame
	result   Value
	done     bool
	borrowed bool // a produced Raw aliases buf
}

// NewUnpacker constructs an Unpacker seeded with the
// given initial bytes. The unpacker takes ownership of
// the slice; it must not be modified by the caller
// afterwards. sizeHint, if positive, pre-sizes the
// internal buffer for expected message sizes.
func NewUnpacker(initial []byte, sizeHint int) *Unpacker {
	u := &Unpacker{}
	if sizeHint > len(initial) {
		u.buf = make([]byte, 0, sizeHint)
		u.buf = append(u.buf, initial...)
	} else {
		u.buf = initial
	}
	return u
}

// Size returns the number of bytes currently buffered.
// Callers can use it for backpressure, e.g. rejecting a
// stream whose buffered-but-incomplete message exceeds
// a limit.
func (u *Unpacker) Size() int { return len(u.buf) }

// ParsedSize returns how many buffered bytes have
// been consumed by parsing so far.
func (u *Unpacker) ParsedSize() int { return u.off }

// UnparsedSize returns how many buffered bytes have
// not yet been consumed by parsing.
func (u *Unpacker) UnparsedSize() int { return len(u.buf) - u.off }

// ParsedTotal returns the cumulative number of bytes
// consumed toward the value currently being parsed
// (or the value awaiting Purge). Clear resets it.
func (u *Unpacker) ParsedTotal() int64 { return u.parsedTotal }

// Feed appends newly arrived bytes to the unpacker's
// buffer. Feed never blocks and never fails; it only
// grows the buffer.
func (u *Unpacker) Feed(p []byte) {
	// when everything buffered has been consumed and no
	// parse is in flight, rewind instead of growing; if a
	// Raw result still aliases the storage, start a fresh
	// allocation so the borrowed view stays intact
	if u.off == len(u.buf) && len(u.stack) == 0 && u.state == stateHeader && !u.done {
		if u.borrowed {
			u.buf = nil
			u.borrowed = false
		} else {
			u.buf = u.buf[:0]
		}
		u.off = 0
	}
	u.buf = append(u.buf, p...)
}

// Clear resets the unpacker for the next top-level
// value: the parse stack, saved state, and ParsedTotal
// are discarded, while unconsumed trailing bytes remain
// buffered (back-to-back messages in one stream parse
// without re-feeding).
func (u *Unpacker) Clear() {
	u.result = nil
	u.done = false
	u.stack = u.stack[:0]
	u.state = stateHeader
	u.trail = 0
	u.parsedTotal = 0
}

// Purge returns the completed value and clears the
// unpacker for the next message. Purge returns nil if
// no value has been completed since the last Clear.
func (u *Unpacker) Purge() Value {
	v := u.result
	u.Clear()
	return v
}

// Execute advances the parse as far as the currently
// buffered bytes permit. It returns true once a complete
// top-level value is available (and keeps returning true
// until Purge or Clear is called). Returning false with a
// nil error means more bytes are needed; it is the
// expected suspension signal, not a failure.
//
// A non-nil error means an unrecognized tag byte was
// encountered. The cursor is left pointing at the bad
// tag, but the stream should be considered
// desynchronized and discarded.
func (u *Unpacker) Execute() (bool, error) {
	if u.done {
		return true, nil
	}
	start := u.off
	ok, err := u.run()
	u.parsedTotal += int64(u.off - start)
	return ok, err
}

func (u *Unpacker) run() (bool, error) {
	for u.off < len(u.buf) {
		if u.state == stateHeader {
			if err := u.header(u.buf[u.off]); err != nil {
				return false, err
			}
			if u.done {
				return true, nil
			}
			continue
		}
		// a classified tag needs u.trail more bytes
		if len(u.buf)-u.off < u.trail {
			return false, nil
		}
		body := u.buf[u.off : u.off+u.trail]
		u.off += u.trail
		state := u.state
		u.state = stateHeader
		switch state {
		case stateFloat32:
			u.push(Float(math.Float32frombits(uint32(beuint(body, 4)))))
		case stateFloat64:
			u.push(Float(math.Float64frombits(beuint(body, 8))))
		case stateUint8, stateUint16, stateUint32, stateUint64:
			u.push(Uint(beuint(body, len(body))))
		case stateInt8, stateInt16, stateInt32, stateInt64:
			n := len(body)
			u.push(Int(int64(beuint(body, n)) << (64 - 8*n) >> (64 - 8*n)))
		case stateRawLen16, stateRawLen32:
			u.beginRaw(int(beuint(body, len(body))))
		case stateArrayLen16, stateArrayLen32:
			u.beginContainer(frameArray, int(beuint(body, len(body))))
		case stateMapLen16, stateMapLen32:
			u.beginContainer(frameMapKey, int(beuint(body, len(body))))
		case stateRawBody:
			// zero-copy: the Raw aliases our buffer
			u.borrowed = true
			u.push(Raw(body[:len(body):len(body)]))
		}
		if u.done {
			return true, nil
		}
	}
	return u.done, nil
}

// header classifies one tag byte. Fixnum and fix-form
// tags resolve immediately; explicit tags record how many
// trailing bytes the payload or length prefix needs.
func (u *Unpacker) header(b byte) error {
	switch {
	case b < fixintMask:
		u.off++
		u.push(Uint(b))
		return nil
	case b >= negfixTag:
		u.off++
		u.push(Int(int8(b)))
		return nil
	case b&0xe0 == fixrawTag:
		u.off++
		u.beginRaw(fixlen(b))
		return nil
	case b&0xf0 == fixarrayTag:
		u.off++
		u.beginContainer(frameArray, fixlen(b))
		return nil
	case b&0xf0 == fixmapTag:
		u.off++
		u.beginContainer(frameMapKey, fixlen(b))
		return nil
	}
	var next parseState
	switch b {
	case tagNil:
		u.off++
		u.push(Nil{})
		return nil
	case tagFalse:
		u.off++
		u.push(Bool(false))
		return nil
	case tagTrue:
		u.off++
		u.push(Bool(true))
		return nil
	case tagFloat32:
		next = stateFloat32
	case tagFloat64:
		next = stateFloat64
	case tagUint8:
		next = stateUint8
	case tagUint16:
		next = stateUint16
	case tagUint32:
		next = stateUint32
	case tagUint64:
		next = stateUint64
	case tagInt8:
		next = stateInt8
	case tagInt16:
		next = stateInt16
	case tagInt32:
		next = stateInt32
	case tagInt64:
		next = stateInt64
	case tagRaw16:
		next = stateRawLen16
	case tagRaw32:
		next = stateRawLen32
	case tagArray16:
		next = stateArrayLen16
	case tagArray32:
		next = stateArrayLen32
	case tagMap16:
		next = stateMapLen16
	case tagMap32:
		next = stateMapLen32
	default:
		// cursor intentionally not advanced past the bad tag
		return badtag(b, int64(u.off))
	}
	u.off++
	u.state = next
	u.trail = trail(b)
	return nil
}

// beginRaw starts consuming a raw payload of n bytes.
func (u *Unpacker) beginRaw(n int) {
	if n == 0 {
		u.push(Raw{})
		return
	}
	u.state = stateRawBody
	u.trail = n
}

// beginContainer pushes a parse-stack frame for an
// array of n elements or a map of n pairs.
func (u *Unpacker) beginContainer(kind frameKind, n int) {
	if n == 0 {
		if kind == frameArray {
			u.push(Array{})
		} else {
			u.push(Map{})
		}
		return
	}
	f := frame{kind: kind, remaining: n}
	if kind == frameArray {
		f.arr = make(Array, 0, clampPrealloc(n))
	} else {
		f.m = make(Map, 0, clampPrealloc(n))
	}
	u.stack = append(u.stack, f)
}

// push delivers a completed value to the innermost
// container frame, unwinding frames as they fill. When
// the stack empties, the value is the final result.
func (u *Unpacker) push(v Value) {
	for {
		if len(u.stack) == 0 {
			u.result = v
			u.done = true
			return
		}
		f := &u.stack[len(u.stack)-1]
		switch f.kind {
		case frameArray:
			f.arr = append(f.arr, v)
			f.remaining--
			if f.remaining > 0 {
				return
			}
			v = f.arr
		case frameMapKey:
			f.key = v
			f.kind = frameMapValue
			return
		case frameMapValue:
			f.m = append(f.m, MapEntry{Key: f.key, Value: v})
			f.key = nil
			f.kind = frameMapKey
			f.remaining--
			if f.remaining > 0 {
				return
			}
			v = f.m
		}
		u.stack = u.stack[:len(u.stack)-1]
	}
}
