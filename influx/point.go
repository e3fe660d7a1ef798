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
	"fmt"
	"math"
	"sort"
	"time"
)

type Tags map[string]string

type Fields map[string]interface{}

type Field struct {
	Key   string
	Value Value
}

// Point is a single measurement sample. Points are immutable: they are
// created with a PointBuilder and all accessors return copies.
type Point struct {
	measurement string
	tags        Tags
	fields      []Field

	timestamp    int64
	hasTimestamp bool
	precision    Precision
}

type Points []*Point

type PointBuilder struct {
	measurement string
	tags        Tags
	fields      []Field
	fieldIdx    map[string]int

	timestamp    int64
	hasTimestamp bool
	precision    Precision

	err error
}

func NewPointBuilder(measurement string) *PointBuilder {
	return &PointBuilder{
		measurement: measurement,
		tags:        make(Tags),
		fieldIdx:    make(map[string]int),
		precision:   DefaultPrecision,
	}
}

// Measurement is a shorter name for NewPointBuilder, reading well in chains:
//
//	influx.Measurement("cpu").Tag("host", "a").Field("idle", 99).Build()
func Measurement(measurement string) *PointBuilder {
	return NewPointBuilder(measurement)
}

func (b *PointBuilder) Tag(key, value string) *PointBuilder {
	if key == "" {
		if b.err == nil {
			b.err = ErrEmptyTagKey
		}

		return b
	}

	b.tags[key] = value
	return b
}

func (b *PointBuilder) Tags(tags Tags) *PointBuilder {
	for key, value := range tags {
		b.Tag(key, value)
	}

	return b
}

// Field sets a field. Setting a field which already exists replaces its value
// but keeps its position. Unsupported values are reported by Build.
func (b *PointBuilder) Field(key string, value interface{}) *PointBuilder {
	v, err := ValueOf(value)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("invalid field %q: %w", key, err)
		}

		return b
	}

	return b.FieldValue(key, v)
}

func (b *PointBuilder) FieldValue(key string, value Value) *PointBuilder {
	if key == "" {
		if b.err == nil {
			b.err = ErrEmptyFieldKey
		}

		return b
	}

	if err := value.Check(); err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("invalid field %q: %w", key, err)
		}

		return b
	}

	if i, found := b.fieldIdx[key]; found {
		b.fields[i].Value = value
		return b
	}

	b.fieldIdx[key] = len(b.fields)
	b.fields = append(b.fields, Field{Key: key, Value: value})

	return b
}

// Fields adds all fields of a map, in key order so that the encoding is
// deterministic.
func (b *PointBuilder) Fields(fields Fields) *PointBuilder {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		b.Field(key, fields[key])
	}

	return b
}

func (b *PointBuilder) Time(value int64, precision Precision) *PointBuilder {
	if !precision.Valid() {
		if b.err == nil {
			b.err = fmt.Errorf("invalid precision %q", string(precision))
		}

		return b
	}

	// Timestamps must be expressible in nanoseconds so that any later
	// conversion to a finer unit cannot overflow.
	unit := int64(precision.Duration())
	if value > math.MaxInt64/unit || value < math.MinInt64/unit {
		if b.err == nil {
			b.err = fmt.Errorf("timestamp %d%s: %w", value, precision,
				ErrTimestampOutOfRange)
		}

		return b
	}

	b.timestamp = value
	b.hasTimestamp = true
	b.precision = precision

	return b
}

func (b *PointBuilder) Timestamp(t time.Time) *PointBuilder {
	return b.Time(t.UnixNano(), Nanoseconds)
}

func (b *PointBuilder) Build() (*Point, error) {
	if b.measurement == "" {
		return nil, ErrMissingMeasurement
	}

	if b.err != nil {
		return nil, b.err
	}

	if len(b.fields) == 0 {
		return nil, ErrMissingFields
	}

	p := &Point{
		measurement: b.measurement,
		tags:        make(Tags, len(b.tags)),
		fields:      make([]Field, len(b.fields)),

		timestamp:    b.timestamp,
		hasTimestamp: b.hasTimestamp,
		precision:    b.precision,
	}

	for key, value := range b.tags {
		p.tags[key] = value
	}

	copy(p.fields, b.fields)

	return p, nil
}

func NewPoint(measurement string, tags Tags, fields Fields) (*Point, error) {
	return NewPointBuilder(measurement).Tags(tags).Fields(fields).Build()
}

func NewPointWithTimestamp(measurement string, tags Tags, fields Fields, t time.Time) (*Point, error) {
	return NewPointBuilder(measurement).Tags(tags).Fields(fields).
		Timestamp(t).Build()
}

func (p *Point) Measurement() string {
	return p.measurement
}

func (p *Point) Tags() Tags {
	tags := make(Tags, len(p.tags))
	for key, value := range p.tags {
		tags[key] = value
	}

	return tags
}

func (p *Point) Fields() []Field {
	fields := make([]Field, len(p.fields))
	copy(fields, p.fields)
	return fields
}

// Timestamp returns the timestamp of the point and its precision. The last
// value is false if the point does not have a timestamp.
func (p *Point) Timestamp() (int64, Precision, bool) {
	return p.timestamp, p.precision, p.hasTimestamp
}

func (p *Point) Time() (time.Time, bool) {
	if !p.hasTimestamp {
		return time.Time{}, false
	}

	ns := Nanoseconds.Convert(p.timestamp, p.precision)
	return time.Unix(0, ns).UTC(), true
}

func (p *Point) LineProtocol() string {
	return p.LineProtocolWithPrecision(DefaultPrecision)
}

func (p *Point) LineProtocolWithPrecision(precision Precision) string {
	var buf bytes.Buffer
	p.AppendLineProtocol(&buf, EncodeOptions{Precision: precision})
	return buf.String()
}

// AppendLineProtocol writes the line of the point without trailing newline.
func (p *Point) AppendLineProtocol(buf *bytes.Buffer, opts EncodeOptions) {
	encodePoint(p, nil, buf, opts)
}

func (p *Point) String() string {
	return p.LineProtocol()
}
