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

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-influxdb/dhttp"
	"github.com/exograd/go-influxdb/influx"
	"github.com/exograd/go-log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultAPIAddress = "localhost:8090"

var errInfluxDisabled = errors.New("influx client disabled")

type APICfg struct {
	Address     string `json:"address"`
	LogRequests bool   `json:"log_requests"`
}

func (cfg *APICfg) Check(c *check.Checker) {
	if cfg.Address == "" {
		return
	}

	_, _, err := net.SplitHostPort(cfg.Address)
	c.Check("address", err == nil, "address must be of the form host:port")
}

func (d *Daemon) initAPI() error {
	apiCfg := d.Cfg.API
	if apiCfg == nil {
		return nil
	}

	address := apiCfg.Address
	if address == "" {
		address = DefaultAPIAddress
	}

	server, err := dhttp.NewServer(dhttp.ServerCfg{
		Log: d.Log.Child("api", log.Data{}),

		Address:     address,
		LogRequests: apiCfg.LogRequests,
	})
	if err != nil {
		return err
	}

	metricsHandler := promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})

	server.Route("/metrics", "GET", metricsHandler.ServeHTTP)
	server.Route("/ping", "GET", d.hPing)

	d.API = server

	return nil
}

func (d *Daemon) pingInflux(ctx context.Context) (*influx.Pong, error) {
	if d.Influx == nil {
		return nil, errInfluxDisabled
	}

	return d.Influx.Ping(ctx)
}

func (d *Daemon) hPing(w http.ResponseWriter, req *http.Request) {
	pong, err := d.pingInflux(req.Context())
	if err != nil {
		dhttp.ReplyError(w, 503, "%v", err)
		return
	}

	dhttp.ReplyJSON(w, 200, map[string]interface{}{
		"version":       pong.Version,
		"response_time": pong.ResponseTime.Microseconds(),
	})
}
