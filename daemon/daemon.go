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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-influxdb/dhttp"
	"github.com/exograd/go-influxdb/influx"
	"github.com/exograd/go-log"
	"github.com/exograd/go-program"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Service interface {
	ServiceCfg() interface{}
	DaemonCfg() (DaemonCfg, error)

	Init(*Daemon) error
	Start(*Daemon) error
	Stop(*Daemon)
	Terminate(*Daemon)
}

type DaemonCfg struct {
	name string

	Logger *log.LoggerCfg

	API *APICfg

	HTTPClients map[string]dhttp.ClientCfg

	Influx *influx.ClientCfg
}

func NewDaemonCfg() DaemonCfg {
	return DaemonCfg{
		HTTPClients: make(map[string]dhttp.ClientCfg),
	}
}

func (cfg DaemonCfg) AddHTTPClient(name string, clientCfg dhttp.ClientCfg) {
	if _, found := cfg.HTTPClients[name]; found {
		panic(fmt.Sprintf("duplicate http client %q", name))
	}

	cfg.HTTPClients[name] = clientCfg
}

func (cfg *DaemonCfg) Check(c *check.Checker) {
	c.CheckOptionalObject("api", cfg.API)
	c.CheckOptionalObject("influx", cfg.Influx)

	c.WithChild("http_clients", func() {
		for name, clientCfg := range cfg.HTTPClients {
			clientCfg := clientCfg
			c.CheckObject(name, &clientCfg)
		}
	})
}

type Daemon struct {
	Cfg DaemonCfg

	Log *log.Logger

	service Service

	Registry *prometheus.Registry

	API *dhttp.Server

	HTTPClients map[string]*dhttp.Client

	Influx *influx.Client

	Hostname string

	stopChan  chan struct{}
	errorChan chan error
}

func newDaemon(cfg DaemonCfg, service Service) *Daemon {
	d := &Daemon{
		Cfg: cfg,

		service: service,

		stopChan:  make(chan struct{}, 1),
		errorChan: make(chan error, 1),
	}

	return d
}

func (d *Daemon) init() error {
	d.initDefaultLogger()

	initFuncs := []func() error{
		d.checkCfg,
		d.initHostname,
		d.initLogger,
		d.initMetrics,
		d.initHTTPClients,
		d.initInflux,
		d.initAPI,
	}

	for _, initFunc := range initFuncs {
		if err := initFunc(); err != nil {
			return err
		}
	}

	if err := d.service.Init(d); err != nil {
		return err
	}

	return nil
}

func (d *Daemon) initDefaultLogger() {
	d.Log = log.DefaultLogger(d.Cfg.name)
}

func (d *Daemon) checkCfg() error {
	if err := check.Validate(&d.Cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func (d *Daemon) initHostname() error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("cannot obtain hostname: %w", err)
	}

	d.Hostname = hostname

	return nil
}

func (d *Daemon) initLogger() error {
	if d.Cfg.Logger == nil {
		return nil
	}

	logger, err := log.NewLogger(d.Cfg.name, *d.Cfg.Logger)
	if err != nil {
		return fmt.Errorf("invalid logger configuration: %w", err)
	}

	d.Log = logger

	return nil
}

func (d *Daemon) initMetrics() error {
	d.Registry = prometheus.NewRegistry()

	err := d.Registry.Register(collectors.NewGoCollector())
	if err != nil {
		return fmt.Errorf("cannot register go collector: %w", err)
	}

	err = d.Registry.Register(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err != nil {
		return fmt.Errorf("cannot register process collector: %w", err)
	}

	return nil
}

func (d *Daemon) initHTTPClients() error {
	d.HTTPClients = make(map[string]*dhttp.Client)

	if d.Cfg.Influx != nil {
		cfg := influx.HTTPClientCfg(d.Cfg.Influx)

		if err := d.initHTTPClient("influx", cfg); err != nil {
			return err
		}
	}

	for name, cfg := range d.Cfg.HTTPClients {
		if err := d.initHTTPClient(name, cfg); err != nil {
			return err
		}
	}

	return nil
}

func (d *Daemon) initHTTPClient(name string, cfg dhttp.ClientCfg) error {
	if _, found := d.HTTPClients[name]; found {
		return fmt.Errorf("duplicate http client %q", name)
	}

	cfg.Log = d.Log.Child("http-client", log.Data{"client": name})

	client, err := dhttp.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("cannot create http client %q: %w", name, err)
	}

	d.HTTPClients[name] = client

	return nil
}

func (d *Daemon) initInflux() error {
	if d.Cfg.Influx == nil {
		return nil
	}

	cfg := *d.Cfg.Influx

	cfg.Log = d.Log.Child("influx", log.Data{})
	cfg.HTTPClient = d.HTTPClients["influx"]
	cfg.Hostname = d.Hostname
	cfg.MetricsRegisterer = d.Registry

	client, err := influx.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("cannot create influx client: %w", err)
	}

	d.Influx = client

	return nil
}

func (d *Daemon) wait(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var apiErrors <-chan error
	if d.API != nil {
		apiErrors = d.API.Errors()
	}

	select {
	case signo := <-sigChan:
		fmt.Println()
		d.Log.Info("received signal %d (%v)", signo, signo)

	case <-ctx.Done():

	case <-d.stopChan:

	case err := <-apiErrors:
		return fmt.Errorf("api server error: %w", err)

	case err := <-d.errorChan:
		return err
	}

	return nil
}

func (d *Daemon) start() error {
	d.Log.Info("starting")

	if d.API != nil {
		if err := d.API.Start(); err != nil {
			return fmt.Errorf("cannot start api server: %w", err)
		}
	}

	if d.Influx != nil {
		d.Influx.Start()
	}

	if err := d.service.Start(d); err != nil {
		d.stopComponents()
		return err
	}

	d.Log.Info("started")

	return nil
}

func (d *Daemon) stop() {
	d.Log.Info("stopping")

	d.service.Stop(d)
	d.stopComponents()

	d.Log.Info("stopped")
}

// stopComponents flushes the influx client and stops the API server.
func (d *Daemon) stopComponents() {
	if d.Influx != nil {
		d.Influx.Stop()
	}

	if d.API != nil {
		d.API.Stop()
	}
}

func (d *Daemon) terminate() {
	d.service.Terminate(d)

	if d.Influx != nil {
		d.Influx.Terminate()
	}

	for _, c := range d.HTTPClients {
		c.Terminate()
	}

	if d.API != nil {
		d.API.Terminate()
	}
}

// Shutdown asks the daemon to stop as if it had received a signal.
func (d *Daemon) Shutdown() {
	select {
	case d.stopChan <- struct{}{}:
	default:
	}
}

// Fatal stops the daemon with an error.
func (d *Daemon) Fatal(err error) {
	select {
	case d.errorChan <- err:
	default:
	}
}

func (d *Daemon) run(ctx context.Context, readyChan chan<- struct{}) error {
	if err := d.init(); err != nil {
		return fmt.Errorf("cannot initialize daemon: %w", err)
	}

	if err := d.start(); err != nil {
		d.terminate()
		return fmt.Errorf("cannot start daemon: %w", err)
	}

	if readyChan != nil {
		close(readyChan)
	}

	err := d.wait(ctx)

	d.stop()
	d.terminate()

	return err
}

func Run(name, description string, service Service) {
	// Program
	p := program.NewProgram(name, description)

	p.AddOption("c", "cfg-file", "path", "",
		"the path of the configuration file")
	p.AddOption("e", "env-file", "path", "",
		"the path of an environment file loaded before the configuration")

	p.ParseCommandLine()

	// Environment
	if p.IsOptionSet("env-file") {
		envPath := p.OptionValue("env-file")

		if err := godotenv.Load(envPath); err != nil {
			p.Fatal("cannot load environment file: %v", err)
		}
	}

	// Configuration
	daemonCfg, err := loadDaemonCfg(service, p.OptionValue("cfg-file"))
	if err != nil {
		p.Fatal("%v", err)
	}

	daemonCfg.name = name

	// Daemon
	d := newDaemon(daemonCfg, service)

	if err := d.run(context.Background(), nil); err != nil {
		p.Fatal("%v", err)
	}
}

// RunTest runs a daemon until the context is canceled. The ready channel is
// closed once the daemon has started.
func RunTest(ctx context.Context, name string, service Service, cfgPath string, readyChan chan<- struct{}) error {
	daemonCfg, err := loadDaemonCfg(service, cfgPath)
	if err != nil {
		return err
	}

	daemonCfg.name = name

	d := newDaemon(daemonCfg, service)

	return d.run(ctx, readyChan)
}

func loadDaemonCfg(service Service, cfgPath string) (DaemonCfg, error) {
	serviceCfg := service.ServiceCfg()

	if cfgPath != "" {
		if err := LoadCfg(cfgPath, serviceCfg); err != nil {
			return DaemonCfg{}, fmt.Errorf("cannot load configuration: %w", err)
		}
	}

	daemonCfg, err := service.DaemonCfg()
	if err != nil {
		return DaemonCfg{}, fmt.Errorf("invalid configuration: %w", err)
	}

	if daemonCfg.HTTPClients == nil {
		daemonCfg.HTTPClients = make(map[string]dhttp.ClientCfg)
	}

	return daemonCfg, nil
}
