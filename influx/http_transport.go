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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/exograd/go-influxdb/dhttp"
)

const maxErrorBodySize = 64 * 1024

type HTTPTransportCfg struct {
	HTTPClient *dhttp.Client

	URI      string
	Username string
	Password string
	Token    string
}

// HTTPTransport talks to the InfluxDB 1.x HTTP API, which is also served by
// InfluxDB 2.x for compatibility.
type HTTPTransport struct {
	Cfg HTTPTransportCfg

	baseURI *url.URL
	client  *dhttp.Client
}

func NewHTTPTransport(cfg HTTPTransportCfg) (*HTTPTransport, error) {
	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}

	baseURI, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", cfg.URI, err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client, err = dhttp.NewClient(dhttp.ClientCfg{})
		if err != nil {
			return nil, fmt.Errorf("cannot create http client: %w", err)
		}
	}

	t := &HTTPTransport{
		Cfg: cfg,

		baseURI: baseURI,
		client:  client,
	}

	return t, nil
}

func (t *HTTPTransport) endpoint(path string, query url.Values) *url.URL {
	uri := *t.baseURI
	uri.Path = strings.TrimRight(uri.Path, "/") + path
	uri.RawQuery = query.Encode()
	return &uri
}

func (t *HTTPTransport) header() map[string]string {
	header := make(map[string]string)

	if t.Cfg.Token != "" {
		header["Authorization"] = "Token " + t.Cfg.Token
	}

	return header
}

func (t *HTTPTransport) newRequest(ctx context.Context, method string, uri *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri.String(), body)
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}

	for name, value := range t.header() {
		req.Header.Set(name, value)
	}

	if t.Cfg.Username != "" {
		req.SetBasicAuth(t.Cfg.Username, t.Cfg.Password)
	}

	return req, nil
}

func (t *HTTPTransport) Write(ctx context.Context, wreq *WriteRequest) error {
	query := url.Values{}
	query.Set("db", wreq.Target.Database)

	if rp := wreq.Target.RetentionPolicy; rp != DefaultRetentionPolicy {
		query.Set("rp", rp)
	}

	query.Set("precision", wreq.Precision.String())

	if c := wreq.Target.Consistency; c != "" {
		query.Set("consistency", string(c))
	}

	uri := t.endpoint("/write", query)

	req, err := t.newRequest(ctx, "POST", uri, bytes.NewReader(wreq.Payload))
	if err != nil {
		return &TransportError{Op: "write points", Err: err}
	}

	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	res, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Op: "write points", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != 204 && res.StatusCode != 200 {
		return &TransportError{Op: "write points", Err: readWriteError(res)}
	}

	io.Copy(io.Discard, res.Body)

	return nil
}

func (t *HTTPTransport) Ping(ctx context.Context) (*Pong, error) {
	uri := t.endpoint("/ping", url.Values{})

	req, err := t.newRequest(ctx, "GET", uri, nil)
	if err != nil {
		return nil, &TransportError{Op: "ping server", Err: err}
	}

	start := time.Now()

	res, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "ping server", Err: err}
	}
	defer res.Body.Close()

	responseTime := time.Since(start)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &TransportError{Op: "ping server", Err: readWriteError(res)}
	}

	io.Copy(io.Discard, res.Body)

	version := res.Header.Get("X-Influxdb-Version")
	if version == "" {
		version = UnknownVersion
	}

	pong := Pong{
		Version:      version,
		ResponseTime: responseTime,
	}

	return &pong, nil
}

func readWriteError(res *http.Response) error {
	err := &WriteError{Status: res.StatusCode}

	data, readErr := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
	if readErr != nil || len(data) == 0 {
		return err
	}

	var body struct {
		Error string `json:"error"`
	}

	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		err.Message = body.Error
	} else {
		err.Message = strings.TrimSpace(string(data))
	}

	return err
}
