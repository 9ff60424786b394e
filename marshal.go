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
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Packable is implemented by types that know how to
// encode themselves. Marshal and Packer.Pack use the
// implementation instead of reflection when present.
type Packable interface {
	PackMsgpack(dst *Buffer)
}

// Unpackable is implemented by types that know how to
// decode themselves. UnpackMsgpack consumes one complete
// object from buf and returns the remaining bytes.
type Unpackable interface {
	UnpackMsgpack(buf []byte) (rest []byte, err error)
}

var (
	packableType   = reflect.TypeOf((*Packable)(nil)).Elem()
	unpackableType = reflect.TypeOf((*Unpackable)(nil)).Elem()
	valueType      = reflect.TypeOf((*Value)(nil)).Elem()
)

var structEncoders sync.Map

type encodefn func(*Buffer, reflect.Value)

// compileEncoder builds (and caches) the field-by-field
// encoder for a struct type. Structs encode positionally
// as arrays: the i-th emitted element is the i-th visible
// exported field. A `msgpack:"-"` tag skips a field.
func compileEncoder(t reflect.Type) (encodefn, bool) {
	// in order to break dependency chains for (mutually-)recursive types,
	// force any concurrent lookups to delay compilation until eval time
	slow := func(dst *Buffer, v reflect.Value) {
		fn, ok := encoderFunc(v.Type())
		if !ok {
			panic("msgpack.compileEncoder: failed to compile structure?")
		}
		fn(dst, v)
	}
	f, ok := structEncoders.LoadOrStore(t, encodefn(nil))
	if ok {
		fn := f.(encodefn)
		if fn != nil {
			return fn, true
		}
		return slow, true
	}
	type fieldEnc struct {
		index int
		fn    encodefn
	}

	var encs []fieldEnc
	fields := reflect.VisibleFields(t)
	for i := range fields {
		if fields[i].PkgPath != "" || len(fields[i].Index) != 1 {
			continue // unexported or promoted embedded struct field
		}
		if val, ok := fields[i].Tag.Lookup("msgpack"); ok {
			name, _, _ := strings.Cut(val, ",")
			if name == "-" {
				continue // explicitly ignored
			}
		}
		efn, ok := encoderFunc(fields[i].Type)
		if !ok {
			continue
		}
		encs = append(encs, fieldEnc{
			index: fields[i].Index[0],
			fn:    efn,
		})
	}
	self := func(dst *Buffer, src reflect.Value) {
		dst.WriteArrayHeader(len(encs))
		for i := range encs {
			encs[i].fn(dst, src.Field(encs[i].index))
		}
	}
	structEncoders.Store(t, encodefn(self))
	return self, true
}

func encodeList(dst *Buffer, inner encodefn, src reflect.Value) {
	l := src.Len()
	dst.WriteArrayHeader(l)
	for i := 0; i < l; i++ {
		inner(dst, src.Index(i))
	}
}

func encoderFunc(t reflect.Type) (encodefn, bool) {
	if t.Implements(packableType) {
		return func(dst *Buffer, src reflect.Value) {
			src.Interface().(Packable).PackMsgpack(dst)
		}, true
	}
	if t.Implements(valueType) {
		return func(dst *Buffer, src reflect.Value) {
			src.Interface().(Value).Encode(dst)
		}, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteInt(src.Int())
		}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteUint(src.Uint())
		}, true
	case reflect.Float32:
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteFloat32(float32(src.Float()))
		}, true
	case reflect.Float64:
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteFloat64(src.Float())
		}, true
	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 {
			// encode []byte as raw
			return func(dst *Buffer, src reflect.Value) {
				dst.WriteRaw(src.Bytes())
			}, true
		}
		inner, ok := encoderFunc(elem)
		if !ok {
			return nil, false
		}
		return func(dst *Buffer, src reflect.Value) {
			encodeList(dst, inner, src)
		}, true
	case reflect.String:
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteString(src.String())
		}, true
	case reflect.Map:
		kval, ok := encoderFunc(t.Key())
		if !ok {
			return nil, false
		}
		eval, ok := encoderFunc(t.Elem())
		if !ok {
			return nil, false
		}
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteMapHeader(src.Len())
			iter := src.MapRange()
			for iter.Next() {
				kval(dst, iter.Key())
				eval(dst, iter.Value())
			}
		}, true
	case reflect.Struct:
		return compileEncoder(t)
	case reflect.Bool:
		return func(dst *Buffer, src reflect.Value) {
			dst.WriteBool(src.Bool())
		}, true
	case reflect.Pointer:
		body, ok := encoderFunc(t.Elem())
		if !ok {
			return nil, false
		}
		return func(dst *Buffer, src reflect.Value) {
			if src.IsNil() {
				dst.WriteNil()
			} else {
				body(dst, src.Elem())
			}
		}, true
	case reflect.Interface:
		return func(dst *Buffer, src reflect.Value) {
			if src.IsNil() {
				dst.WriteNil()
				return
			}
			val := src.Elem()
			fn, ok := encoderFunc(val.Type())
			if !ok {
				dst.WriteNil()
				return
			}
			fn(dst, val)
		}, true
	default:
		return nil, false
	}
}

// Marshal encodes src into dst.
func Marshal(dst *Buffer, src any) error {
	if src == nil {
		dst.WriteNil()
		return nil
	}
	v := reflect.ValueOf(src)
	t := v.Type()
	enc, ok := encoderFunc(t)
	if !ok {
		return fmt.Errorf("msgpack.Marshal: cannot marshal type %s", t)
	}
	enc(dst, v)
	return nil
}

// Unmarshal decodes one object from buf into dst, which
// must be a non-nil pointer, and returns the remaining
// message bytes.
//
// Integer targets narrower than the encoded value are
// truncated silently on this path; use Decoder for
// range-validated decoding.
func Unmarshal(buf []byte, dst any) ([]byte, error) {
	if u, ok := dst.(Unpackable); ok {
		return u.UnpackMsgpack(buf)
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("msgpack.Unmarshal: destination must be a non-nil pointer, have %T", dst)
	}
	return unmarshalValue(buf, v.Elem())
}

func unmarshalValue(buf []byte, rv reflect.Value) ([]byte, error) {
	if rv.CanAddr() {
		if u, ok := rv.Addr().Interface().(Unpackable); ok {
			return u.UnpackMsgpack(buf)
		}
	}
	switch rv.Kind() {
	case reflect.Bool:
		q, rest, err := ReadBool(buf)
		if err != nil {
			return nil, err
		}
		rv.SetBool(q)
		return rest, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, rest, err := ReadInt(buf)
		if err != nil {
			return nil, err
		}
		rv.SetInt(i) // truncates when rv is narrower
		return rest, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if TypeOf(buf) == UintType {
			u, rest, err := ReadUint(buf)
			if err != nil {
				return nil, err
			}
			rv.SetUint(u)
			return rest, nil
		}
		i, rest, err := ReadInt(buf)
		if err != nil {
			return nil, err
		}
		rv.SetUint(uint64(i)) // wraps; dynamic path does not range-check
		return rest, nil
	case reflect.Float32, reflect.Float64:
		f, rest, err := ReadFloat64(buf)
		if err != nil {
			return nil, err
		}
		rv.SetFloat(f)
		return rest, nil
	case reflect.String:
		s, rest, err := ReadString(buf)
		if err != nil {
			return nil, err
		}
		rv.SetString(s)
		return rest, nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			p, rest, err := ReadBytes(buf)
			if err != nil {
				return nil, err
			}
			rv.SetBytes(p)
			return rest, nil
		}
		if TypeOf(buf) == NilType {
			rest, err := ReadNil(buf)
			if err != nil {
				return nil, err
			}
			rv.Set(reflect.Zero(rv.Type()))
			return rest, nil
		}
		n, rest, err := ReadArrayHeader(buf)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeSlice(rv.Type(), 0, clampPrealloc(n))
		for i := 0; i < n; i++ {
			item := reflect.New(rv.Type().Elem()).Elem()
			rest, err = unmarshalValue(rest, item)
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, item)
		}
		rv.Set(out)
		return rest, nil
	case reflect.Map:
		if TypeOf(buf) == NilType {
			rest, err := ReadNil(buf)
			if err != nil {
				return nil, err
			}
			rv.Set(reflect.Zero(rv.Type()))
			return rest, nil
		}
		n, rest, err := ReadMapHeader(buf)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeMapWithSize(rv.Type(), clampPrealloc(n))
		for i := 0; i < n; i++ {
			key := reflect.New(rv.Type().Key()).Elem()
			rest, err = unmarshalValue(rest, key)
			if err != nil {
				return nil, err
			}
			val := reflect.New(rv.Type().Elem()).Elem()
			rest, err = unmarshalValue(rest, val)
			if err != nil {
				return nil, err
			}
			out.SetMapIndex(key, val)
		}
		rv.Set(out)
		return rest, nil
	case reflect.Struct:
		return unmarshalStruct(buf, rv)
	case reflect.Pointer:
		if TypeOf(buf) == NilType {
			rest, err := ReadNil(buf)
			if err != nil {
				return nil, err
			}
			rv.Set(reflect.Zero(rv.Type()))
			return rest, nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return unmarshalValue(buf, rv.Elem())
	case reflect.Interface:
		if rv.NumMethod() != 0 {
			return nil, fmt.Errorf("msgpack.Unmarshal: cannot unmarshal into non-empty interface %s", rv.Type())
		}
		v, rest, err := ReadValue(buf)
		if err != nil {
			return nil, err
		}
		rv.Set(reflect.ValueOf(owned(v)))
		return rest, nil
	default:
		return nil, fmt.Errorf("msgpack.Unmarshal: cannot unmarshal into type %s", rv.Type())
	}
}

// unmarshalStruct decodes a positional array into the
// visible exported fields of a struct, in field order.
// Extra encoded elements are skipped; missing trailing
// elements leave their fields zero-valued.
func unmarshalStruct(buf []byte, rv reflect.Value) ([]byte, error) {
	n, rest, err := ReadArrayHeader(buf)
	if err != nil {
		return nil, err
	}
	fields := reflect.VisibleFields(rv.Type())
	got := 0
	for i := range fields {
		if got == n {
			break
		}
		if fields[i].PkgPath != "" || len(fields[i].Index) != 1 {
			continue
		}
		if val, ok := fields[i].Tag.Lookup("msgpack"); ok {
			name, _, _ := strings.Cut(val, ",")
			if name == "-" {
				continue
			}
		}
		rest, err = unmarshalValue(rest, rv.Field(fields[i].Index[0]))
		if err != nil {
			return nil, err
		}
		got++
	}
	for ; got < n; got++ {
		rest, err = Skip(rest)
		if err != nil {
			return nil, err
		}
	}
	return rest, nil
}

// owned returns v with any buffer-aliasing Raw
// payloads replaced by owned copies, so results
// decoded into interface targets never dangle.
func owned(v Value) Value {
	switch v := v.(type) {
	case Raw:
		return v.Clone()
	case Array:
		for i := range v {
			v[i] = owned(v[i])
		}
		return v
	case Map:
		for i := range v {
			v[i].Key = owned(v[i].Key)
			v[i].Value = owned(v[i].Value)
		}
		return v
	default:
		return v
	}
}
