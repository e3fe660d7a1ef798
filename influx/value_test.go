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
	"errors"
	"math"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueFormat(t *testing.T) {
	assert := assert.New(t)

	var atomicInt atomic.Int64
	atomicInt.Store(1_000_000_000_000_000_000)

	var atomicUint atomic.Uint32
	atomicUint.Store(7)

	bigInt := new(big.Int).Lsh(big.NewInt(1), 70)

	bigFloat, _, err := big.ParseFloat("100000000.00000001", 10, 128,
		big.ToNearestEven)
	require.NoError(t, err)

	tests := []struct {
		value       interface{}
		s           string
		sWithSuffix string
	}{
		{int8(100), "100", "100i"},
		{100000000, "100000000", "100000000i"},
		{int64(-42), "-42", "-42i"},
		{&atomicInt, "1000000000000000000", "1000000000000000000i"},
		{uint16(8), "8", "8u"},
		{uint64(math.MaxUint64), "18446744073709551615",
			"18446744073709551615u"},
		{&atomicUint, "7", "7u"},
		{big.NewInt(100000000), "100000000", "100000000i"},
		{*big.NewInt(-3), "-3", "-3i"},
		{new(big.Int).SetUint64(math.MaxUint64), "18446744073709551615",
			"18446744073709551615u"},
		{bigInt, "1180591620717411303424", "1180591620717411303424"},
		{100000000.0001, "100000000.0001", "100000000.0001"},
		{1.0, "1", "1"},
		{-0.5, "-0.5", "-0.5"},
		{float32(0.1), "0.1", "0.1"},
		{big.NewFloat(1.5), "1.5", "1.5"},
		{bigFloat, "100000000.00000001", "100000000.00000001"},
		{"foo", `"foo"`, `"foo"`},
		{`a "b" \c`, `"a \"b\" \\c"`, `"a \"b\" \\c"`},
		{"a b,c=d", `"a b,c=d"`, `"a b,c=d"`},
		{[]byte("bar"), `"bar"`, `"bar"`},
		{true, "true", "true"},
		{false, "false", "false"},
		{Int(12), "12", "12i"},
	}

	for _, test := range tests {
		v, err := ValueOf(test.value)
		if assert.NoError(err, "%#v", test.value) {
			assert.Equal(test.s, v.Format(EncodeOptions{}), "%#v", test.value)
			assert.Equal(test.sWithSuffix,
				v.Format(EncodeOptions{IntegerSuffix: true}),
				"%#v", test.value)
		}
	}
}

func TestValueOfUnsupported(t *testing.T) {
	assert := assert.New(t)

	var nilBigInt *big.Int

	tests := []interface{}{
		nil,
		struct{}{},
		map[string]int{"a": 1},
		[]int{1, 2},
		nilBigInt,
		math.NaN(),
		math.Inf(1),
		float32(math.Inf(-1)),
		new(big.Float).SetInf(false),
		Value{},
	}

	for _, test := range tests {
		_, err := ValueOf(test)

		var valueErr *UnsupportedValueTypeError
		assert.True(errors.As(err, &valueErr), "%#v", test)
	}

	assert.Panics(func() { MustValueOf(struct{}{}) })
}

func TestValueKind(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		value Value
		kind  ValueKind
		v     interface{}
	}{
		{Int(-1), IntKind, int64(-1)},
		{Uint(1), UintKind, uint64(1)},
		{Float32(2.5), Float32Kind, float32(2.5)},
		{Float(2.5), Float64Kind, 2.5},
		{String("x"), StringKind, "x"},
		{Bool(true), BoolKind, true},
		{Value{}, InvalidKind, nil},
	}

	for _, test := range tests {
		assert.Equal(test.kind, test.value.Kind())
		assert.Equal(test.v, test.value.Interface())
	}

	n := big.NewInt(10)
	v := BigInt(n)
	n.SetInt64(20)
	assert.Equal("10", v.String())

	assert.Equal(InvalidKind, BigInt(nil).Kind())
	assert.Error(BigFloat(nil).Check())
}
