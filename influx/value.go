// Copyright (c) 2022 Exograd SAS.
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that the above
// copyright notice and this permission notice appear in all copies.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
// ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR
// IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.

package influx

import (
	"bytes"
	"math"
	"math/big"
	"strconv"
	"sync/atomic"
)

type ValueKind int

const (
	InvalidKind ValueKind = iota
	IntKind
	UintKind
	BigIntKind
	Float32Kind
	Float64Kind
	BigFloatKind
	StringKind
	BoolKind
)

func (k ValueKind) String() string {
	switch k {
	case IntKind:
		return "int"
	case UintKind:
		return "uint"
	case BigIntKind:
		return "big_int"
	case Float32Kind:
		return "float32"
	case Float64Kind:
		return "float64"
	case BigFloatKind:
		return "big_float"
	case StringKind:
		return "string"
	case BoolKind:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a field value. The zero value is invalid and cannot be used in a
// point.
type Value struct {
	kind ValueKind

	i  int64
	u  uint64
	f  float64
	bi *big.Int
	bf *big.Float
	s  string
	b  bool
}

func Int(i int64) Value {
	return Value{kind: IntKind, i: i}
}

func Uint(u uint64) Value {
	return Value{kind: UintKind, u: u}
}

func BigInt(i *big.Int) Value {
	if i == nil {
		return Value{}
	}

	return Value{kind: BigIntKind, bi: new(big.Int).Set(i)}
}

func Float32(f float32) Value {
	return Value{kind: Float32Kind, f: float64(f)}
}

func Float(f float64) Value {
	return Value{kind: Float64Kind, f: f}
}

func BigFloat(f *big.Float) Value {
	if f == nil {
		return Value{}
	}

	return Value{kind: BigFloatKind, bf: new(big.Float).Copy(f)}
}

func String(s string) Value {
	return Value{kind: StringKind, s: s}
}

func Bool(b bool) Value {
	return Value{kind: BoolKind, b: b}
}

// ValueOf converts a Go value to a field value. Atomic integers are loaded
// once, at conversion time.
func ValueOf(v interface{}) (Value, error) {
	var value Value

	switch v := v.(type) {
	case Value:
		value = v

	case int:
		value = Int(int64(v))
	case int8:
		value = Int(int64(v))
	case int16:
		value = Int(int64(v))
	case int32:
		value = Int(int64(v))
	case int64:
		value = Int(v)

	case uint:
		value = Uint(uint64(v))
	case uint8:
		value = Uint(uint64(v))
	case uint16:
		value = Uint(uint64(v))
	case uint32:
		value = Uint(uint64(v))
	case uint64:
		value = Uint(v)

	case *atomic.Int32:
		value = Int(int64(v.Load()))
	case *atomic.Int64:
		value = Int(v.Load())
	case *atomic.Uint32:
		value = Uint(uint64(v.Load()))
	case *atomic.Uint64:
		value = Uint(v.Load())

	case *big.Int:
		value = BigInt(v)
	case big.Int:
		value = BigInt(&v)

	case float32:
		value = Float32(v)
	case float64:
		value = Float(v)

	case *big.Float:
		value = BigFloat(v)
	case big.Float:
		value = BigFloat(&v)

	case string:
		value = String(v)
	case []byte:
		value = String(string(v))

	case bool:
		value = Bool(v)
	}

	if err := value.Check(); err != nil {
		return Value{}, &UnsupportedValueTypeError{Value: v}
	}

	return value, nil
}

func MustValueOf(v interface{}) Value {
	value, err := ValueOf(v)
	if err != nil {
		panic(err)
	}

	return value
}

func (v Value) Kind() ValueKind {
	return v.kind
}

// Check returns an error if the value cannot be represented in line
// protocol: invalid values, NaN and infinite floats.
func (v Value) Check() error {
	ok := true

	switch v.kind {
	case InvalidKind:
		ok = false
	case BigIntKind:
		ok = v.bi != nil
	case Float32Kind, Float64Kind:
		ok = !math.IsNaN(v.f) && !math.IsInf(v.f, 0)
	case BigFloatKind:
		ok = v.bf != nil && !v.bf.IsInf()
	}

	if !ok {
		return &UnsupportedValueTypeError{Value: v.Interface()}
	}

	return nil
}

// Interface returns the value as a Go value: int64, uint64, *big.Int,
// float32, float64, *big.Float, string or bool.
func (v Value) Interface() interface{} {
	switch v.kind {
	case IntKind:
		return v.i
	case UintKind:
		return v.u
	case BigIntKind:
		return v.bi
	case Float32Kind:
		return float32(v.f)
	case Float64Kind:
		return v.f
	case BigFloatKind:
		return v.bf
	case StringKind:
		return v.s
	case BoolKind:
		return v.b
	default:
		return nil
	}
}

func (v Value) Format(opts EncodeOptions) string {
	var buf bytes.Buffer
	encodeFieldValue(v, &buf, opts)
	return buf.String()
}

func (v Value) String() string {
	return v.Format(EncodeOptions{})
}

func encodeFieldValue(v Value, buf *bytes.Buffer, opts EncodeOptions) {
	var tmp [64]byte

	switch v.kind {
	case IntKind:
		buf.Write(strconv.AppendInt(tmp[:0], v.i, 10))
		if opts.IntegerSuffix {
			buf.WriteByte('i')
		}

	case UintKind:
		buf.Write(strconv.AppendUint(tmp[:0], v.u, 10))
		if opts.IntegerSuffix {
			buf.WriteByte('u')
		}

	case BigIntKind:
		buf.WriteString(v.bi.String())
		if opts.IntegerSuffix {
			// Integers which do not fit a 64 bit integer are stored as
			// floats by the server.
			if v.bi.IsInt64() {
				buf.WriteByte('i')
			} else if v.bi.IsUint64() {
				buf.WriteByte('u')
			}
		}

	case Float32Kind:
		buf.Write(strconv.AppendFloat(tmp[:0], v.f, 'f', -1, 32))

	case Float64Kind:
		buf.Write(strconv.AppendFloat(tmp[:0], v.f, 'f', -1, 64))

	case BigFloatKind:
		buf.WriteString(v.bf.Text('f', -1))

	case StringKind:
		encodeStringField(v.s, buf)

	case BoolKind:
		buf.WriteString(strconv.FormatBool(v.b))
	}
}
