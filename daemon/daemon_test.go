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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/exograd/go-influxdb/influx"
	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServiceCfg struct {
	API    *APICfg           `json:"api"`
	Influx *influx.ClientCfg `json:"influx"`
}

type testService struct {
	Cfg    testServiceCfg
	Daemon *Daemon

	startErr error

	started    bool
	stopped    bool
	terminated bool
}

func (s *testService) ServiceCfg() interface{} {
	return &s.Cfg
}

func (s *testService) DaemonCfg() (DaemonCfg, error) {
	cfg := NewDaemonCfg()

	cfg.API = s.Cfg.API
	cfg.Influx = s.Cfg.Influx

	return cfg, nil
}

func (s *testService) Init(d *Daemon) error {
	s.Daemon = d
	return nil
}

func (s *testService) Start(d *Daemon) error {
	if s.startErr != nil {
		return s.startErr
	}

	s.started = true
	return nil
}

func (s *testService) Stop(d *Daemon) {
	s.stopped = true
}

func (s *testService) Terminate(d *Daemon) {
	s.terminated = true
}

func newTestInfluxServer() *httptest.Server {
	handler := func(w http.ResponseWriter, req *http.Request) {
		io.Copy(io.Discard, req.Body)

		w.Header().Set("X-Influxdb-Version", "1.8.10")
		w.WriteHeader(204)
	}

	return httptest.NewServer(http.HandlerFunc(handler))
}

func writeTestCfg(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func httpGet(t *testing.T, uri string) (int, []byte) {
	res, err := http.Get(uri)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res.StatusCode, body
}

func TestDaemon(t *testing.T) {
	assert := assert.New(t)

	influxServer := newTestInfluxServer()
	defer influxServer.Close()

	cfgPath := writeTestCfg(t, fmt.Sprintf(`
api:
  address: "localhost:0"
influx:
  uri: %q
  database: test
  batch:
    actions: 10
`, influxServer.URL))

	service := &testService{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)

	go func() {
		errChan <- RunTest(ctx, "test", service, cfgPath, readyChan)
	}()

	select {
	case <-readyChan:
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not start")
	}

	d := service.Daemon
	assert.True(service.started)
	assert.True(d.Influx.IsBatchEnabled())

	baseURI := "http://" + d.API.Address()

	status, body := httpGet(t, baseURI+"/ping")
	if assert.Equal(200, status) {
		var pong struct {
			Version string `json:"version"`
		}

		if assert.NoError(json.Unmarshal(body, &pong)) {
			assert.Equal("1.8.10", pong.Version)
		}
	}

	status, body = httpGet(t, baseURI+"/metrics")
	if assert.Equal(200, status) {
		assert.True(strings.Contains(string(body),
			"influx_client_points_written_total"))
		assert.True(strings.Contains(string(body), "go_goroutines"))
	}

	status, _ = httpGet(t, baseURI+"/unknown")
	assert.Equal(404, status)

	d.Shutdown()

	select {
	case err := <-errChan:
		assert.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	assert.True(service.stopped)
}

func TestDaemonFatal(t *testing.T) {
	assert := assert.New(t)

	service := &testService{}

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)

	go func() {
		errChan <- RunTest(context.Background(), "test", service, "",
			readyChan)
	}()

	<-readyChan

	assert.Nil(service.Daemon.API)
	assert.Nil(service.Daemon.Influx)

	pong, err := service.Daemon.pingInflux(context.Background())
	assert.Nil(pong)
	assert.ErrorIs(err, errInfluxDisabled)

	service.Daemon.Fatal(fmt.Errorf("test error"))

	err = <-errChan
	if assert.Error(err) {
		assert.Equal("test error", err.Error())
	}
}

func TestDaemonInvalidCfg(t *testing.T) {
	assert := assert.New(t)

	cfgPath := writeTestCfg(t, `
api:
  address: "localhost"
influx:
  api: v3
`)

	err := RunTest(context.Background(), "test", &testService{}, cfgPath, nil)
	if assert.Error(err) {
		assert.True(strings.Contains(err.Error(), "/api/address"))
		assert.True(strings.Contains(err.Error(), "/influx/api"))
	}
}

func TestDaemonStartFailure(t *testing.T) {
	defer leaktest.Check(t)()

	assert := assert.New(t)

	influxServer := newTestInfluxServer()
	defer influxServer.Close()

	cfgPath := writeTestCfg(t, fmt.Sprintf(`
api:
  address: "localhost:0"
influx:
  uri: %q
  database: test
  batch:
    actions: 10
    flush_interval: 1
    flush_interval_unit: h
`, influxServer.URL))

	service := &testService{startErr: fmt.Errorf("service failure")}

	err := RunTest(context.Background(), "test", service, cfgPath, nil)
	if assert.Error(err) {
		assert.True(strings.Contains(err.Error(), "service failure"))
	}

	assert.False(service.started)
	assert.False(service.stopped)
	assert.True(service.terminated)
}
