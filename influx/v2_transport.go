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
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/exograd/go-influxdb/dhttp"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

type V2TransportCfg struct {
	HTTPClient *dhttp.Client

	URI   string
	Token string
	Org   string

	// Precision announced to the server. The client library sets it once
	// for all writes, so requests with another precision are rejected.
	Precision Precision
}

// V2Transport writes to the InfluxDB 2.x API. Databases and retention
// policies are mapped to buckets named "database" or
// "database/retention-policy", following the DBRP convention of the 1.x
// compatibility layer. Consistency levels have no 2.x equivalent and are
// ignored.
type V2Transport struct {
	Cfg V2TransportCfg

	client influxdb2.Client

	writeAPIs      map[string]api.WriteAPIBlocking
	writeAPIsMutex sync.Mutex
}

func NewV2Transport(cfg V2TransportCfg) (*V2Transport, error) {
	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}

	if cfg.Org == "" {
		return nil, fmt.Errorf("missing or empty org")
	}

	if cfg.Precision == "" {
		cfg.Precision = DefaultPrecision
	}

	if !cfg.Precision.Valid() {
		return nil, fmt.Errorf("invalid precision %q", string(cfg.Precision))
	}

	options := influxdb2.DefaultOptions().
		SetPrecision(cfg.Precision.Duration())

	if cfg.HTTPClient != nil {
		options.SetHTTPClient(cfg.HTTPClient.Client)
	}

	t := &V2Transport{
		Cfg: cfg,

		client: influxdb2.NewClientWithOptions(cfg.URI, cfg.Token, options),

		writeAPIs: make(map[string]api.WriteAPIBlocking),
	}

	return t, nil
}

func Bucket(target Target) string {
	if target.RetentionPolicy == DefaultRetentionPolicy {
		return target.Database
	}

	return target.Database + "/" + target.RetentionPolicy
}

func (t *V2Transport) writeAPI(bucket string) api.WriteAPIBlocking {
	t.writeAPIsMutex.Lock()
	defer t.writeAPIsMutex.Unlock()

	writeAPI, found := t.writeAPIs[bucket]
	if !found {
		writeAPI = t.client.WriteAPIBlocking(t.Cfg.Org, bucket)
		t.writeAPIs[bucket] = writeAPI
	}

	return writeAPI
}

func (t *V2Transport) Write(ctx context.Context, req *WriteRequest) error {
	if req.Precision != t.Cfg.Precision {
		return &TransportError{
			Op: "write points",
			Err: fmt.Errorf("precision %q does not match transport "+
				"precision %q", req.Precision, t.Cfg.Precision),
		}
	}

	payload := strings.TrimRight(string(req.Payload), "\n")
	if payload == "" {
		return nil
	}

	writeAPI := t.writeAPI(Bucket(req.Target))

	if err := writeAPI.WriteRecord(ctx, payload); err != nil {
		return &TransportError{Op: "write points", Err: err}
	}

	return nil
}

func (t *V2Transport) Ping(ctx context.Context) (*Pong, error) {
	start := time.Now()

	health, err := t.client.Health(ctx)
	if err != nil {
		return nil, &TransportError{Op: "ping server", Err: err}
	}

	pong := Pong{
		Version:      UnknownVersion,
		ResponseTime: time.Since(start),
	}

	if health.Version != nil && *health.Version != "" {
		pong.Version = *health.Version
	}

	return &pong, nil
}

func (t *V2Transport) Close() {
	t.client.Close()
}
