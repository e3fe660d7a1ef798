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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-log"
	"github.com/go-chi/chi/v5"
)

type ServerCfg struct {
	Log *log.Logger `json:"-"`

	Address string `json:"address"`

	LogRequests bool `json:"log_requests"`
}

// Server is a minimal HTTP server used for daemon endpoints such as metrics
// and health checks.
type Server struct {
	Cfg ServerCfg
	Log *log.Logger

	Router *chi.Mux

	server   *http.Server
	listener net.Listener

	errorChan chan error
	wg        sync.WaitGroup
}

func (cfg *ServerCfg) Check(c *check.Checker) {
	c.CheckStringNotEmpty("address", cfg.Address)
}

func NewServer(cfg ServerCfg) (*Server, error) {
	if cfg.Log == nil {
		cfg.Log = log.DefaultLogger("http-server")
	}

	if cfg.Address == "" {
		cfg.Address = "localhost:8080"
	}

	s := &Server{
		Cfg: cfg,
		Log: cfg.Log,

		errorChan: make(chan error, 1),
	}

	s.Router = chi.NewMux()
	s.Router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		ReplyError(w, 404, "route not found")
	})
	s.Router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		ReplyError(w, 405, "unhandled method")
	})

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Address returns the address the server listens on once started.
func (s *Server) Address() string {
	if s.listener == nil {
		return s.Cfg.Address
	}

	return s.listener.Addr().String()
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Cfg.Address)
	if err != nil {
		return fmt.Errorf("cannot listen on %q: %w", s.Cfg.Address, err)
	}

	s.listener = listener

	s.Log.Info("listening on %q", s.Address())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Error("server error: %v", err)
			s.errorChan <- err
		}
	}()

	return nil
}

func (s *Server) Errors() <-chan error {
	return s.errorChan
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.Log.Error("cannot shutdown server: %v", err)
	}

	s.wg.Wait()
}

func (s *Server) Terminate() {
	close(s.errorChan)
}

func (s *Server) Route(pattern, method string, handler http.HandlerFunc) {
	s.Router.MethodFunc(method, pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !s.Cfg.LogRequests {
		s.Router.ServeHTTP(w, req)
		return
	}

	start := time.Now()
	rw := NewResponseWriter(w)

	s.Router.ServeHTTP(rw, req)

	d := time.Since(start)

	data := log.Data{
		"time":          d.Microseconds(),
		"status":        rw.Status,
		"response_size": rw.ResponseBodySize,
	}

	s.Log.InfoData(data, "%s %s %d %s", req.Method, req.URL.Path, rw.Status,
		FormatDuration(d))
}

func ReplyJSON(w http.ResponseWriter, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		w.WriteHeader(500)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func ReplyError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	ReplyJSON(w, status, map[string]string{
		"error": fmt.Sprintf(format, args...),
	})
}

type ResponseWriter struct {
	Status           int
	ResponseBodySize int

	w http.ResponseWriter
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		Status: 200,

		w: w,
	}
}

func (w *ResponseWriter) Header() http.Header {
	return w.w.Header()
}

func (w *ResponseWriter) Write(data []byte) (int, error) {
	w.ResponseBodySize += len(data)
	return w.w.Write(data)
}

func (w *ResponseWriter) WriteHeader(status int) {
	w.Status = status
	w.w.WriteHeader(status)
}
