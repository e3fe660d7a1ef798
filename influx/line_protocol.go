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
	"sort"
	"strconv"
)

type EncodeOptions struct {
	// The precision timestamps are converted to. The zero value means
	// nanoseconds.
	Precision Precision `json:"precision"`

	// Suffix integer fields with "i" and unsigned integer fields with "u" so
	// that the server does not store them as floats.
	IntegerSuffix bool `json:"integer_suffix"`
}

func EncodePoint(p *Point, buf *bytes.Buffer) {
	encodePoint(p, nil, buf, EncodeOptions{})
}

func EncodePoints(ps Points, buf *bytes.Buffer) {
	encodePoints(ps, nil, buf, EncodeOptions{})
}

func encodePoints(ps Points, defaultTags Tags, buf *bytes.Buffer, opts EncodeOptions) {
	for _, p := range ps {
		encodePoint(p, defaultTags, buf, opts)
		buf.WriteByte('\n')
	}
}

func encodePoint(p *Point, defaultTags Tags, buf *bytes.Buffer, opts EncodeOptions) {
	encodeMeasurement(p.measurement, buf)

	tags := p.tags
	if len(defaultTags) > 0 {
		tags = make(Tags, len(defaultTags)+len(p.tags))
		for key, value := range defaultTags {
			tags[key] = value
		}
		for key, value := range p.tags {
			tags[key] = value
		}
	}

	if len(tags) > 0 {
		encodeTags(tags, buf)
	}

	buf.WriteByte(' ')
	encodeFields(p.fields, buf, opts)

	if p.hasTimestamp {
		buf.WriteByte(' ')
		encodeTimestamp(p, buf, opts)
	}
}

func encodeTags(tags Tags, buf *bytes.Buffer) {
	// From the InfluxDB documentation:
	//
	// For best performance you should sort tags by key before sending them to
	// the database. The sort should match the results from the Go
	// bytes.Compare function.

	keys := make([]string, 0, len(tags))

	for key, value := range tags {
		// "Tag values cannot be empty; instead, omit the tag from the tag set"
		if value != "" {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		buf.WriteByte(',')
		encodeKey(key, buf)
		buf.WriteByte('=')
		encodeKey(tags[key], buf)
	}
}

func encodeFields(fields []Field, buf *bytes.Buffer, opts EncodeOptions) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}

		encodeKey(field.Key, buf)
		buf.WriteByte('=')
		encodeFieldValue(field.Value, buf, opts)
	}
}

func encodeTimestamp(p *Point, buf *bytes.Buffer, opts EncodeOptions) {
	precision := opts.Precision
	if precision == "" {
		precision = DefaultPrecision
	}

	var tmp [20]byte
	value := precision.Convert(p.timestamp, p.precision)
	buf.Write(strconv.AppendInt(tmp[:0], value, 10))
}
