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
	"strconv"
	"testing"
	"time"

	"github.com/influxdata/influxdb/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoint(measurement string, tags Tags, fields Fields) *Point {
	p, err := NewPoint(measurement, tags, fields)
	if err != nil {
		panic(err)
	}

	return p
}

func testPointWithTimestamp(measurement string, tags Tags, fields Fields, t time.Time) *Point {
	p, err := NewPointWithTimestamp(measurement, tags, fields, t)
	if err != nil {
		panic(err)
	}

	return p
}

func TestEncodePoint(t *testing.T) {
	assert := assert.New(t)

	timestamp := time.Now().UTC()

	tests := []struct {
		p    *Point
		line string
	}{
		{testPoint("m1", Tags{}, Fields{"a": 1}),
			`m1 a=1`},
		{testPoint("m2", Tags{}, Fields{"a": 123, "b": true, "c": "foo"}),
			`m2 a=123,b=true,c="foo"`},
		{testPoint("m3", Tags{"x": "foo"}, Fields{"a": -1}),
			`m3,x=foo a=-1`},
		{testPoint("m4", Tags{"y": "23", "x": "1"}, Fields{"abc": "def"}),
			`m4,x=1,y=23 abc="def"`},
		{testPoint("m5", Tags{"x": "", "y": "1"}, Fields{"a": 1.5}),
			`m5,y=1 a=1.5`},
		{testPointWithTimestamp("m6", Tags{}, Fields{"a": 1}, timestamp),
			`m6 a=1 ` + strconv.FormatInt(timestamp.UnixNano(), 10)},
		{testPoint(" m, 7 ", Tags{", =": `""`}, Fields{"=": `"a"`}),
			`\ m\,\ 7\ ,\,\ \=="" \=="\"a\""`},
		{testPoint("m=8", Tags{"a b": "c,d"}, Fields{"e f": `\`}),
			`m=8,a\ b=c\,d e\ f="\\"`},
	}

	for _, test := range tests {
		var buf bytes.Buffer
		EncodePoint(test.p, &buf)
		assert.Equal(test.line, buf.String(), test.p.Measurement())
	}
}

func TestEncodePoints(t *testing.T) {
	assert := assert.New(t)

	timestamp := time.Now().UTC()

	tests := []struct {
		ps   Points
		line string
	}{
		{Points{},
			""},
		{Points{
			testPoint("m1", Tags{}, Fields{"a": 1}),
		},
			"m1 a=1\n"},
		{Points{
			testPoint("m1", Tags{}, Fields{"a": 1}),
			testPoint("m2", Tags{"x": "foo"}, Fields{"a": 1, "b": false}),
		},
			"m1 a=1\nm2,x=foo a=1,b=false\n"},
		{Points{
			testPoint("m1", Tags{}, Fields{"a": 1}),
			testPoint("m2", Tags{"x": "foo"}, Fields{"a": 1, "b": false}),
			testPointWithTimestamp("m3", Tags{}, Fields{"a": "n"}, timestamp),
		},
			"m1 a=1\nm2,x=foo a=1,b=false\nm3 a=\"n\" " +
				strconv.FormatInt(timestamp.UnixNano(), 10) + "\n"},
	}

	for i, test := range tests {
		var buf bytes.Buffer
		EncodePoints(test.ps, &buf)
		assert.Equal(test.line, buf.String(), i+1)
	}
}

func TestEscape(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(`a\ b\,c=d`, EscapeMeasurement("a b,c=d"))
	assert.Equal(`a\ b\,c\=d`, EscapeKey("a b,c=d"))
	assert.Equal(`a b,c=d \"e\" \\f`, EscapeStringField(`a b,c=d "e" \f`))

	// Escaping is applied once per token.
	assert.Equal(`a\\ b`, EscapeKey(`a\ b`))
}

func TestLineProtocolRoundTrip(t *testing.T) {
	assert := assert.New(t)

	timestamp := time.Unix(1_600_000_000, 123_456_789)

	p, err := Measurement("cpu load").
		Tag("host", "server A").
		Tag("region", "eu,west").
		Tag("k=v", "x").
		Field("count", 42).
		Field("load", 1.5).
		Field("comment", `he said "hi" \o/`).
		Field("up", true).
		Timestamp(timestamp).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	p.AppendLineProtocol(&buf, EncodeOptions{IntegerSuffix: true})

	mps, err := models.ParsePoints(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 1, len(mps))

	mp := mps[0]

	assert.Equal("cpu load", string(mp.Name()))
	assert.Equal(map[string]string{
		"host":   "server A",
		"region": "eu,west",
		"k=v":    "x",
	}, mp.Tags().Map())

	fields, err := mp.Fields()
	if assert.NoError(err) {
		assert.Equal(models.Fields{
			"count":   int64(42),
			"load":    1.5,
			"comment": `he said "hi" \o/`,
			"up":      true,
		}, fields)
	}

	assert.Equal(timestamp.UnixNano(), mp.UnixNano())
}
