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

// Dynamic conversions project a Value into a concrete Go
// type, failing with a TypeError when the kinds are
// incompatible. Integer conversions between signs are
// performed as unchecked casts: AsUint(Int(-1)) wraps
// rather than failing. Callers that need range-validated
// narrowing should decode with Decoder instead, which
// rejects out-of-range values and rolls back.

// AsBool converts v to a bool.
// v must be a Bool.
func AsBool(v Value) (bool, error) {
	b, ok := v.(Bool)
	if !ok {
		return false, bad(v.Type(), BoolType, "AsBool")
	}
	return bool(b), nil
}

// AsInt converts v to an int64. v may be an
// Int or a Uint; Uint values above math.MaxInt64
// wrap without error.
func AsInt(v Value) (int64, error) {
	switch v := v.(type) {
	case Int:
		return int64(v), nil
	case Uint:
		return int64(v), nil
	default:
		return 0, bad(v.Type(), IntType, "AsInt")
	}
}

// AsUint converts v to a uint64. v may be a
// Uint or an Int; negative values wrap without error.
func AsUint(v Value) (uint64, error) {
	switch v := v.(type) {
	case Uint:
		return uint64(v), nil
	case Int:
		return uint64(v), nil
	default:
		return 0, bad(v.Type(), UintType, "AsUint")
	}
}

// AsFloat converts v to a float64.
// v must be a Float.
func AsFloat(v Value) (float64, error) {
	f, ok := v.(Float)
	if !ok {
		return 0, bad(v.Type(), FloatType, "AsFloat")
	}
	return float64(f), nil
}

// AsString converts v to a string, copying the payload.
// v must be a Raw.
func AsString(v Value) (string, error) {
	r, ok := v.(Raw)
	if !ok {
		return "", bad(v.Type(), RawType, "AsString")
	}
	return string(r), nil
}

// AsBytes converts v to a []byte. v must be a Raw;
// the result shares the Raw's storage (which may alias
// an unpacker buffer; see Raw.Clone).
func AsBytes(v Value) ([]byte, error) {
	r, ok := v.(Raw)
	if !ok {
		return nil, bad(v.Type(), RawType, "AsBytes")
	}
	return []byte(r), nil
}

// AsArray converts v to an Array.
// v must be an Array, or Nil (which yields nil).
func AsArray(v Value) (Array, error) {
	switch v := v.(type) {
	case Array:
		return v, nil
	case Nil:
		return nil, nil
	default:
		return nil, bad(v.Type(), ArrayType, "AsArray")
	}
}

// AsMap converts v to a Map.
// v must be a Map.
func AsMap(v Value) (Map, error) {
	m, ok := v.(Map)
	if !ok {
		return nil, bad(v.Type(), MapType, "AsMap")
	}
	return m, nil
}
