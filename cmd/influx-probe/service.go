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

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-influxdb/daemon"
	"github.com/exograd/go-influxdb/influx"
	"github.com/exograd/go-log"
)

const (
	DefaultHeartbeatMeasurement = "heartbeat"
	DefaultHeartbeatInterval    = 10
)

type HeartbeatCfg struct {
	Measurement string `json:"measurement"`

	// Interval between two heartbeats in seconds.
	Interval int `json:"interval"`

	Tags influx.Tags `json:"tags"`
}

func (cfg *HeartbeatCfg) Check(c *check.Checker) {
	c.CheckIntMin("interval", cfg.Interval, 0)
}

type ServiceCfg struct {
	Logger    *log.LoggerCfg    `json:"logger"`
	API       *daemon.APICfg    `json:"api"`
	Influx    *influx.ClientCfg `json:"influx"`
	Heartbeat *HeartbeatCfg     `json:"heartbeat"`
}

type Service struct {
	Cfg ServiceCfg

	Daemon *daemon.Daemon
	Log    *log.Logger

	heartbeatCfg HeartbeatCfg
	startTime    time.Time
	nbBeats      int64

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewService() *Service {
	s := &Service{}

	return s
}

func (s *Service) ServiceCfg() interface{} {
	s.Cfg = ServiceCfg{
		Influx: &influx.ClientCfg{
			Database: "probes",
			GoProbe:  true,
		},
	}

	return &s.Cfg
}

func (s *Service) DaemonCfg() (daemon.DaemonCfg, error) {
	if s.Cfg.Influx == nil {
		return daemon.DaemonCfg{}, fmt.Errorf("missing influx configuration")
	}

	if s.Cfg.Heartbeat != nil {
		if err := check.Validate(s.Cfg.Heartbeat); err != nil {
			return daemon.DaemonCfg{}, fmt.Errorf("invalid heartbeat "+
				"configuration: %w", err)
		}
	}

	cfg := daemon.NewDaemonCfg()

	cfg.Logger = s.Cfg.Logger
	cfg.API = s.Cfg.API
	cfg.Influx = s.Cfg.Influx

	return cfg, nil
}

func (s *Service) Init(d *daemon.Daemon) error {
	s.Daemon = d
	s.Log = d.Log

	s.heartbeatCfg = HeartbeatCfg{
		Measurement: DefaultHeartbeatMeasurement,
		Interval:    DefaultHeartbeatInterval,
	}

	if cfg := s.Cfg.Heartbeat; cfg != nil {
		if cfg.Measurement != "" {
			s.heartbeatCfg.Measurement = cfg.Measurement
		}

		if cfg.Interval > 0 {
			s.heartbeatCfg.Interval = cfg.Interval
		}

		s.heartbeatCfg.Tags = cfg.Tags
	}

	return nil
}

func (s *Service) Start(d *daemon.Daemon) error {
	s.startTime = time.Now()
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.heartbeatMain()

	return nil
}

func (s *Service) Stop(d *daemon.Daemon) {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Service) Terminate(d *daemon.Daemon) {
}

func (s *Service) heartbeatMain() {
	defer s.wg.Done()

	interval := time.Duration(s.heartbeatCfg.Interval) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return

		case now := <-ticker.C:
			if err := s.beat(now); err != nil {
				s.Log.Error("cannot write heartbeat: %v", err)
			}
		}
	}
}

func (s *Service) beat(now time.Time) error {
	s.nbBeats++

	p, err := influx.Measurement(s.heartbeatCfg.Measurement).
		Tags(s.heartbeatCfg.Tags).
		FieldValue("uptime", influx.Float(now.Sub(s.startTime).Seconds())).
		FieldValue("count", influx.Int(s.nbBeats)).
		Timestamp(now).
		Build()
	if err != nil {
		return err
	}

	return s.Daemon.Influx.EnqueuePoint(p)
}
