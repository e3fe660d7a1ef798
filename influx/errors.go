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
	"fmt"
)

var (
	ErrMissingMeasurement = errors.New("missing or empty measurement")
	ErrMissingFields      = errors.New("points must contain at least one field")
	ErrMissingDatabase    = errors.New("missing or empty database")

	ErrEmptyTagKey         = errors.New("empty tag key")
	ErrEmptyFieldKey       = errors.New("empty field key")
	ErrTimestampOutOfRange = errors.New("timestamp out of the nanosecond range")
)

type UnsupportedValueTypeError struct {
	Value interface{}
}

func (err *UnsupportedValueTypeError) Error() string {
	return fmt.Sprintf("%#v (%T) is not a supported field value",
		err.Value, err.Value)
}

// TransportError wraps any error returned by a transport so that callers can
// tell network and server failures apart from encoding failures.
type TransportError struct {
	Op  string
	Err error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("cannot %s: %v", err.Op, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

type WriteError struct {
	Status  int
	Message string
}

func (err *WriteError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("request failed with status %d", err.Status)
	}

	return fmt.Sprintf("request failed with status %d: %s",
		err.Status, err.Message)
}
