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
	"fmt"
	"time"
)

// Precision is a timestamp unit. Values are the ones accepted by the
// "precision" parameter of the InfluxDB write endpoint.
type Precision string

const (
	Nanoseconds  Precision = "ns"
	Microseconds Precision = "u"
	Milliseconds Precision = "ms"
	Seconds      Precision = "s"
	Minutes      Precision = "m"
	Hours        Precision = "h"

	DefaultPrecision = Nanoseconds
)

var PrecisionValues = []Precision{
	Nanoseconds,
	Microseconds,
	Milliseconds,
	Seconds,
	Minutes,
	Hours,
}

func (p Precision) Duration() time.Duration {
	switch p {
	case Nanoseconds, "":
		return time.Nanosecond
	case Microseconds:
		return time.Microsecond
	case Milliseconds:
		return time.Millisecond
	case Seconds:
		return time.Second
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	}

	panic(fmt.Sprintf("unknown precision %q", string(p)))
}

func (p Precision) Valid() bool {
	for _, p2 := range PrecisionValues {
		if p == p2 {
			return true
		}
	}

	return false
}

func (p Precision) String() string {
	if p == "" {
		return string(DefaultPrecision)
	}

	return string(p)
}

// Convert expresses a timestamp stored in precision from in precision p.
// Converting to a finer unit is exact. Converting to a coarser unit rounds
// to the nearest value, half away from zero.
func (p Precision) Convert(value int64, from Precision) int64 {
	fromUnit := int64(from.Duration())
	toUnit := int64(p.Duration())

	if fromUnit == toUnit {
		return value
	}

	if fromUnit > toUnit {
		return value * (fromUnit / toUnit)
	}

	ratio := toUnit / fromUnit

	q := value / ratio
	r := value % ratio

	if r < 0 {
		r = -r
	}

	if 2*r >= ratio {
		if value < 0 {
			q--
		} else {
			q++
		}
	}

	return q
}

// FromTime returns the number of p units elapsed since the Unix epoch,
// rounded like Convert.
func (p Precision) FromTime(t time.Time) int64 {
	return p.Convert(t.UnixNano(), Nanoseconds)
}
