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
)

type ConsistencyLevel string

const (
	ConsistencyOne    ConsistencyLevel = "one"
	ConsistencyQuorum ConsistencyLevel = "quorum"
	ConsistencyAll    ConsistencyLevel = "all"
	ConsistencyAny    ConsistencyLevel = "any"

	DefaultConsistency = ConsistencyOne
)

var ConsistencyLevelValues = []ConsistencyLevel{
	ConsistencyOne,
	ConsistencyQuorum,
	ConsistencyAll,
	ConsistencyAny,
}

func (l ConsistencyLevel) Valid() bool {
	for _, l2 := range ConsistencyLevelValues {
		if l == l2 {
			return true
		}
	}

	return false
}

// The empty retention policy lets the server use the default retention
// policy of the database.
const DefaultRetentionPolicy = ""

// Target identifies where points are written.
type Target struct {
	Database        string
	RetentionPolicy string
	Consistency     ConsistencyLevel
}

func (t Target) String() string {
	s := t.Database
	if t.RetentionPolicy != "" {
		s += "/" + t.RetentionPolicy
	}

	return fmt.Sprintf("%s (%s)", s, t.Consistency)
}

// BatchPoints is an ordered set of points sharing a target, a precision and
// a set of default tags. A BatchPoints value is not safe for concurrent use.
type BatchPoints struct {
	target    Target
	tags      Tags
	precision Precision
	points    Points
}

type BatchPointsBuilder struct {
	bp BatchPoints
}

func NewBatchPointsBuilder(database string) *BatchPointsBuilder {
	return &BatchPointsBuilder{
		bp: BatchPoints{
			target: Target{
				Database:        database,
				RetentionPolicy: DefaultRetentionPolicy,
				Consistency:     DefaultConsistency,
			},
			tags:      make(Tags),
			precision: DefaultPrecision,
		},
	}
}

func NewBatchPointsBuilderForTarget(target Target) *BatchPointsBuilder {
	b := NewBatchPointsBuilder(target.Database).
		RetentionPolicy(target.RetentionPolicy)

	if target.Consistency != "" {
		b.Consistency(target.Consistency)
	}

	return b
}

func (b *BatchPointsBuilder) RetentionPolicy(rp string) *BatchPointsBuilder {
	b.bp.target.RetentionPolicy = rp
	return b
}

func (b *BatchPointsBuilder) Consistency(level ConsistencyLevel) *BatchPointsBuilder {
	b.bp.target.Consistency = level
	return b
}

func (b *BatchPointsBuilder) Tag(key, value string) *BatchPointsBuilder {
	b.bp.tags[key] = value
	return b
}

func (b *BatchPointsBuilder) Tags(tags Tags) *BatchPointsBuilder {
	for key, value := range tags {
		b.bp.tags[key] = value
	}

	return b
}

func (b *BatchPointsBuilder) Precision(precision Precision) *BatchPointsBuilder {
	b.bp.precision = precision
	return b
}

func (b *BatchPointsBuilder) Point(p *Point) *BatchPointsBuilder {
	b.bp.points = append(b.bp.points, p)
	return b
}

func (b *BatchPointsBuilder) Points(ps Points) *BatchPointsBuilder {
	b.bp.points = append(b.bp.points, ps...)
	return b
}

func (b *BatchPointsBuilder) Build() (*BatchPoints, error) {
	if b.bp.target.Database == "" {
		return nil, ErrMissingDatabase
	}

	if !b.bp.target.Consistency.Valid() {
		return nil, fmt.Errorf("invalid consistency level %q",
			string(b.bp.target.Consistency))
	}

	if !b.bp.precision.Valid() {
		return nil, fmt.Errorf("invalid precision %q",
			string(b.bp.precision))
	}

	if _, found := b.bp.tags[""]; found {
		return nil, ErrEmptyTagKey
	}

	bp := &BatchPoints{
		target:    b.bp.target,
		tags:      make(Tags, len(b.bp.tags)),
		precision: b.bp.precision,
		points:    make(Points, len(b.bp.points)),
	}

	for key, value := range b.bp.tags {
		bp.tags[key] = value
	}

	copy(bp.points, b.bp.points)

	return bp, nil
}

// Point appends a point to the batch and returns the batch.
func (bp *BatchPoints) Point(p *Point) *BatchPoints {
	bp.points = append(bp.points, p)
	return bp
}

func (bp *BatchPoints) Target() Target {
	return bp.target
}

func (bp *BatchPoints) Database() string {
	return bp.target.Database
}

func (bp *BatchPoints) RetentionPolicy() string {
	return bp.target.RetentionPolicy
}

func (bp *BatchPoints) Consistency() ConsistencyLevel {
	return bp.target.Consistency
}

func (bp *BatchPoints) Precision() Precision {
	return bp.precision
}

func (bp *BatchPoints) Tags() Tags {
	tags := make(Tags, len(bp.tags))
	for key, value := range bp.tags {
		tags[key] = value
	}

	return tags
}

func (bp *BatchPoints) Points() Points {
	ps := make(Points, len(bp.points))
	copy(ps, bp.points)
	return ps
}

func (bp *BatchPoints) Len() int {
	return len(bp.points)
}

func (bp *BatchPoints) LineProtocol() string {
	var buf bytes.Buffer
	bp.Encode(&buf, EncodeOptions{})
	return buf.String()
}

// Encode writes one line per point, each terminated by a newline. The
// precision of the batch always overrides the one of the options.
func (bp *BatchPoints) Encode(buf *bytes.Buffer, opts EncodeOptions) {
	opts.Precision = bp.precision
	encodePoints(bp.points, bp.tags, buf, opts)
}
