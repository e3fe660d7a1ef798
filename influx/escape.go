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
	"strings"
)

// None of these replacers is idempotent: each token must be escaped exactly
// once.
var (
	measurementReplacer = strings.NewReplacer(`,`, `\,`, ` `, `\ `)
	keyReplacer         = strings.NewReplacer(`,`, `\,`, `=`, `\=`, ` `, `\ `)
	stringFieldReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

func EscapeMeasurement(s string) string {
	return measurementReplacer.Replace(s)
}

// EscapeKey escapes tag keys, tag values and field keys.
func EscapeKey(s string) string {
	return keyReplacer.Replace(s)
}

func EscapeStringField(s string) string {
	return stringFieldReplacer.Replace(s)
}

func encodeMeasurement(measurement string, buf *bytes.Buffer) {
	measurementReplacer.WriteString(buf, measurement)
}

func encodeKey(key string, buf *bytes.Buffer) {
	keyReplacer.WriteString(buf, key)
}

func encodeStringField(s string, buf *bytes.Buffer) {
	buf.WriteByte('"')
	stringFieldReplacer.WriteString(buf, s)
	buf.WriteByte('"')
}
