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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrecisionConvert(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		value    int64
		from     Precision
		to       Precision
		expected int64
	}{
		{1, Nanoseconds, Nanoseconds, 1},
		{1, Microseconds, Nanoseconds, 1000},
		{1, Milliseconds, Nanoseconds, 1_000_000},
		{1, Minutes, Seconds, 60},
		{2, Hours, Minutes, 120},
		{1, Hours, Nanoseconds, 3_600_000_000_000},
		{499, Nanoseconds, Microseconds, 0},
		{500, Nanoseconds, Microseconds, 1},
		{-499, Nanoseconds, Microseconds, 0},
		{-500, Nanoseconds, Microseconds, -1},
		{29, Seconds, Minutes, 0},
		{30, Seconds, Minutes, 1},
		{59, Minutes, Hours, 1},
		{1, Nanoseconds, "", 1},
	}

	for _, test := range tests {
		assert.Equal(test.expected, test.to.Convert(test.value, test.from),
			"%d%s -> %s", test.value, test.from, test.to)
	}
}

func TestPrecisionValues(t *testing.T) {
	assert := assert.New(t)

	for _, p := range PrecisionValues {
		assert.True(p.Valid(), p)
		assert.Equal(string(p), p.String())
	}

	assert.False(Precision("").Valid())
	assert.False(Precision("d").Valid())
	assert.Equal("ns", Precision("").String())

	assert.Equal(time.Microsecond, Microseconds.Duration())
	assert.Equal(time.Hour, Hours.Duration())
	assert.Panics(func() { Precision("d").Duration() })

	ts := time.Unix(10, 600_000_000)
	assert.Equal(int64(11), Seconds.FromTime(ts))
	assert.Equal(int64(10_600), Milliseconds.FromTime(ts))
}
