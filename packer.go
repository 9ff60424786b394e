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

// Packer is a chainable convenience layer over Buffer.
//
// Methods record the first encoding failure and turn
// subsequent calls into no-ops, so a chain can be
// written without intermediate error checks:
//
//	var p Packer
//	p.Pack(1, true, "Foo") // a three-element array
//	if err := p.Err(); err != nil {
//		...
//	}
//
// Encoding failures only arise from Pack arguments of
// unsupported Go types; the fixed-shape methods
// (PackNil, PackArrayHeader, ...) cannot fail.
type Packer struct {
	buf Buffer
	err error
}

// Buffer returns the underlying byte sink.
func (p *Packer) Buffer() *Buffer { return &p.buf }

// Bytes returns the encoded bytes accumulated so far.
func (p *Packer) Bytes() []byte { return p.buf.Bytes() }

// Err returns the first error encountered by Pack, or nil.
func (p *Packer) Err() error { return p.err }

// Reset discards buffered bytes and any sticky error.
func (p *Packer) Reset() {
	p.buf.Reset()
	p.err = nil
}

// Pack encodes its arguments. A single argument is
// encoded as one value; two or more arguments are
// wrapped as an array of that many elements. Arguments
// may be Go primitives, slices, maps, structs
// (encoded positionally as arrays), Values, or
// Packable implementations.
func (p *Packer) Pack(args ...any) *Packer {
	if p.err != nil {
		return p
	}
	if len(args) > 1 {
		p.buf.WriteArrayHeader(len(args))
	}
	for i := range args {
		if err := Marshal(&p.buf, args[i]); err != nil {
			p.err = err
			return p
		}
	}
	return p
}

// PackNil appends a nil object.
func (p *Packer) PackNil() *Packer {
	if p.err == nil {
		p.buf.WriteNil()
	}
	return p
}

// PackTrue appends boolean true.
func (p *Packer) PackTrue() *Packer {
	if p.err == nil {
		p.buf.WriteBool(true)
	}
	return p
}

// PackFalse appends boolean false.
func (p *Packer) PackFalse() *Packer {
	if p.err == nil {
		p.buf.WriteBool(false)
	}
	return p
}

// PackArrayHeader appends an array length prefix; the
// caller must pack n more values as the elements.
func (p *Packer) PackArrayHeader(n int) *Packer {
	if p.err == nil {
		p.buf.WriteArrayHeader(n)
	}
	return p
}

// PackMapHeader appends a map length prefix; the caller
// must pack n more key-value pairs, key first.
func (p *Packer) PackMapHeader(n int) *Packer {
	if p.err == nil {
		p.buf.WriteMapHeader(n)
	}
	return p
}

// PackRawHeader appends a raw length prefix; the caller
// must append n payload bytes (see Buffer.UnsafeAppend).
func (p *Packer) PackRawHeader(n int) *Packer {
	if p.err == nil {
		p.buf.WriteRawHeader(n)
	}
	return p
}

// PackRaw appends a complete raw object.
func (p *Packer) PackRaw(body []byte) *Packer {
	if p.err == nil {
		p.buf.WriteRaw(body)
	}
	return p
}
