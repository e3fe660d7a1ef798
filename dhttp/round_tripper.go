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

package dhttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/exograd/go-log"
)

type RoundTripper struct {
	Cfg *ClientCfg
	Log *log.Logger

	http.RoundTripper
}

func NewRoundTripper(rt http.RoundTripper, cfg *ClientCfg) *RoundTripper {
	return &RoundTripper{
		Cfg: cfg,
		Log: cfg.Log,

		RoundTripper: rt,
	}
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// A round tripper must not modify the request it was given.
	req = rt.finalizeReq(req)

	res, err := rt.RoundTripper.RoundTrip(req)

	if rt.Cfg.LogRequests {
		rt.logRequest(req, res, err, time.Since(start))
	}

	return res, err
}

func (rt *RoundTripper) finalizeReq(req *http.Request) *http.Request {
	if len(rt.Cfg.Header) == 0 && rt.Cfg.UserAgent == "" {
		return req
	}

	req = req.Clone(req.Context())

	for name, values := range rt.Cfg.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}

	if rt.Cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", rt.Cfg.UserAgent)
	}

	return req
}

func (rt *RoundTripper) logRequest(req *http.Request, res *http.Response, err error, d time.Duration) {
	data := log.Data{
		"time": d.Microseconds(),
	}

	statusString := "-"
	if res != nil {
		statusString = strconv.Itoa(res.StatusCode)
		data["status"] = res.StatusCode
	}

	if err != nil {
		data["error"] = err.Error()
	}

	rt.Log.InfoData(data, "%s %s %s %s", req.Method, req.URL.String(),
		statusString, FormatDuration(d))
}

// FormatDuration formats a request time for logs.
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()

	switch {
	case seconds < 0.001:
		return strconv.Itoa(int(d.Microseconds())) + "µs"
	case seconds < 1.0:
		return strconv.Itoa(int(d.Milliseconds())) + "ms"
	default:
		return strconv.FormatFloat(seconds, 'f', 1, 64) + "s"
	}
}
