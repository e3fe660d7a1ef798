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
	"context"
	"time"
)

type WriteRequest struct {
	Target    Target
	Precision Precision
	Payload   []byte
}

type Pong struct {
	Version      string
	ResponseTime time.Duration
}

// Transport sends encoded batches to a server. Implementations must be safe
// for concurrent use and are responsible for their own timeouts.
type Transport interface {
	Write(context.Context, *WriteRequest) error
	Ping(context.Context) (*Pong, error)
}

// FailureObserver is notified of batches which could not be flushed by a
// batch processor. Batches reported to the observer are not retried.
type FailureObserver interface {
	OnFlushError(target Target, payload []byte, err error)
}

type FailureObserverFunc func(Target, []byte, error)

func (fn FailureObserverFunc) OnFlushError(target Target, payload []byte, err error) {
	fn(target, payload, err)
}

func NewWriteRequest(bp *BatchPoints, opts EncodeOptions) *WriteRequest {
	var buf bytes.Buffer
	bp.Encode(&buf, opts)

	return &WriteRequest{
		Target:    bp.Target(),
		Precision: bp.Precision(),
		Payload:   buf.Bytes(),
	}
}
