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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-influxdb/dhttp"
	"github.com/exograd/go-log"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultURI = "http://localhost:8086"

	UnknownVersion = "unknown"
)

var ErrBatchEnabled = errors.New("batch processing is already enabled")

type API string

const (
	APIv1 API = "v1"
	APIv2 API = "v2"
)

var APIValues = []API{APIv1, APIv2}

type ClientCfg struct {
	Log               *log.Logger           `json:"-"`
	HTTPClient        *dhttp.Client         `json:"-"`
	Transport         Transport             `json:"-"`
	Hostname          string                `json:"-"`
	FailureObserver   FailureObserver       `json:"-"`
	MetricsRegisterer prometheus.Registerer `json:"-"`

	URI      string `json:"uri"`
	API      API    `json:"api"`
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
	Org      string `json:"org"`

	Database        string           `json:"database"`
	RetentionPolicy string           `json:"retention_policy"`
	Consistency     ConsistencyLevel `json:"consistency"`
	Precision       Precision        `json:"precision"`
	IntegerSuffix   bool             `json:"integer_suffix"`
	Tags            Tags             `json:"tags"`

	Batch   *BatchCfg        `json:"batch"`
	HTTP    *dhttp.ClientCfg `json:"http"`
	GoProbe bool             `json:"go_probe"`
}

func (cfg *ClientCfg) Check(c *check.Checker) {
	if cfg.URI != "" {
		c.CheckStringURI("uri", cfg.URI)
	}

	if cfg.API != "" {
		c.CheckStringValue("api", cfg.API, APIValues)
	}

	if cfg.API == APIv2 {
		c.CheckStringNotEmpty("org", cfg.Org)
	}

	if cfg.Consistency != "" {
		c.CheckStringValue("consistency", cfg.Consistency,
			ConsistencyLevelValues)
	}

	if cfg.Precision != "" {
		c.CheckStringValue("precision", cfg.Precision, PrecisionValues)
	}

	c.WithChild("tags", func() {
		for key := range cfg.Tags {
			c.Check(key, key != "", "tag key must not be empty")
		}
	})

	if cfg.GoProbe {
		c.Check("database", cfg.Database != "",
			"missing database for the go probe")
	}

	c.CheckOptionalObject("batch", cfg.Batch)
	c.CheckOptionalObject("http", cfg.HTTP)
}

func HTTPClientCfg(cfg *ClientCfg) dhttp.ClientCfg {
	if cfg.HTTP == nil {
		return dhttp.ClientCfg{}
	}

	return *cfg.HTTP
}

// Client writes points either synchronously or through a batch processor
// when batching is enabled.
type Client struct {
	Cfg ClientCfg
	Log *log.Logger

	Transport Transport
	Metrics   *Metrics

	tags          Tags
	target        Target
	encodeOptions EncodeOptions

	v2Transport *V2Transport

	lifecycleMutex sync.Mutex

	batchMutex sync.Mutex
	processor  *BatchProcessor
	running    bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewClient(cfg ClientCfg) (*Client, error) {
	if cfg.Log == nil {
		cfg.Log = log.DefaultLogger("influx")
	}

	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}

	if cfg.API == "" {
		cfg.API = APIv1
	}

	if cfg.Consistency == "" {
		cfg.Consistency = DefaultConsistency
	}

	if cfg.Precision == "" {
		cfg.Precision = DefaultPrecision
	}

	c := &Client{
		Cfg: cfg,
		Log: cfg.Log,

		Metrics: NewMetrics(),

		target: Target{
			Database:        cfg.Database,
			RetentionPolicy: cfg.RetentionPolicy,
			Consistency:     cfg.Consistency,
		},

		encodeOptions: EncodeOptions{
			Precision:     cfg.Precision,
			IntegerSuffix: cfg.IntegerSuffix,
		},
	}

	c.tags = make(Tags)
	if cfg.Hostname != "" {
		c.tags["host"] = cfg.Hostname
	}
	for name, value := range cfg.Tags {
		c.tags[name] = value
	}

	if err := c.initTransport(); err != nil {
		return nil, err
	}

	if cfg.MetricsRegisterer != nil {
		if err := c.Metrics.Register(cfg.MetricsRegisterer); err != nil {
			return nil, err
		}
	}

	if batchCfg := cfg.Batch; batchCfg != nil {
		if err := c.EnableBatch(batchCfg.Actions, batchCfg.Interval()); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) initTransport() error {
	if c.Cfg.Transport != nil {
		c.Transport = c.Cfg.Transport
		return nil
	}

	switch c.Cfg.API {
	case APIv1:
		t, err := NewHTTPTransport(HTTPTransportCfg{
			HTTPClient: c.Cfg.HTTPClient,

			URI:      c.Cfg.URI,
			Username: c.Cfg.Username,
			Password: c.Cfg.Password,
			Token:    c.Cfg.Token,
		})
		if err != nil {
			return fmt.Errorf("cannot create http transport: %w", err)
		}

		c.Transport = t

	case APIv2:
		t, err := NewV2Transport(V2TransportCfg{
			HTTPClient: c.Cfg.HTTPClient,

			URI:       c.Cfg.URI,
			Token:     c.Cfg.Token,
			Org:       c.Cfg.Org,
			Precision: c.Cfg.Precision,
		})
		if err != nil {
			return fmt.Errorf("cannot create v2 transport: %w", err)
		}

		c.Transport = t
		c.v2Transport = t

	default:
		return fmt.Errorf("unknown api %q", string(c.Cfg.API))
	}

	return nil
}

func (c *Client) Start() {
	c.lifecycleMutex.Lock()
	defer c.lifecycleMutex.Unlock()

	c.batchMutex.Lock()
	defer c.batchMutex.Unlock()

	if c.running {
		return
	}

	c.running = true
	c.stopChan = make(chan struct{})

	if c.processor != nil {
		c.processor.Start()
	}

	if c.Cfg.GoProbe {
		c.wg.Add(1)
		go c.goProbeMain(c.stopChan)
	}
}

// Stop terminates the go probe, then flushes and stops the batch processor.
func (c *Client) Stop() {
	c.lifecycleMutex.Lock()
	defer c.lifecycleMutex.Unlock()

	c.batchMutex.Lock()
	if !c.running {
		c.batchMutex.Unlock()
		return
	}
	c.running = false
	c.batchMutex.Unlock()

	// The probe enqueues points, so it must be stopped before the batch
	// mutex is held again.
	close(c.stopChan)
	c.wg.Wait()

	if processor := c.batchProcessor(); processor != nil {
		processor.Stop()
	}
}

func (c *Client) Terminate() {
	if c.v2Transport != nil {
		c.v2Transport.Close()
	}
}

// EnableBatch routes points written with Write and EnqueuePoints through a
// batch processor flushing every time actions points are buffered for a
// target or when interval has elapsed.
func (c *Client) EnableBatch(actions int, interval time.Duration) error {
	c.batchMutex.Lock()
	defer c.batchMutex.Unlock()

	if c.processor != nil {
		return ErrBatchEnabled
	}

	processor, err := NewBatchProcessor(BatchProcessorCfg{
		Log:             c.Log.Child("batch", log.Data{}),
		Transport:       c.Transport,
		FailureObserver: c.Cfg.FailureObserver,
		Metrics:         c.Metrics,

		Actions:       actions,
		FlushInterval: interval,

		Precision:     c.Cfg.Precision,
		Tags:          c.tags,
		EncodeOptions: c.encodeOptions,
	})
	if err != nil {
		return fmt.Errorf("cannot create batch processor: %w", err)
	}

	c.processor = processor

	if c.running {
		processor.Start()
	}

	return nil
}

// DisableBatch flushes buffered points and returns to synchronous writes.
// Points written while the last batch is being flushed are sent
// synchronously.
func (c *Client) DisableBatch() {
	c.batchMutex.Lock()
	processor := c.processor
	c.processor = nil
	c.batchMutex.Unlock()

	if processor != nil {
		processor.Stop()
	}
}

func (c *Client) IsBatchEnabled() bool {
	c.batchMutex.Lock()
	defer c.batchMutex.Unlock()

	return c.processor != nil
}

func (c *Client) batchProcessor() *BatchProcessor {
	c.batchMutex.Lock()
	defer c.batchMutex.Unlock()

	return c.processor
}

func (c *Client) Flush() {
	if processor := c.batchProcessor(); processor != nil {
		processor.Flush()
	}
}

func (c *Client) Ping(ctx context.Context) (*Pong, error) {
	return c.Transport.Ping(ctx)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	pong, err := c.Ping(ctx)
	if err != nil {
		return "", err
	}

	return pong.Version, nil
}

// Write sends a point to a database and retention policy. When batching is
// enabled, the point is buffered and the function returns immediately.
func (c *Client) Write(ctx context.Context, database, rp string, p *Point) error {
	target := Target{
		Database:        database,
		RetentionPolicy: rp,
		Consistency:     c.Cfg.Consistency,
	}

	return c.writePoints(ctx, target, Points{p})
}

// WriteBatch synchronously sends a batch, bypassing the batch processor.
// Points are written in the precision of the batch, or in the precision of
// the client for the v2 API.
// Default tags of the client apply to every point; tags of the batch and of
// the points take precedence.
func (c *Client) WriteBatch(ctx context.Context, bp *BatchPoints) error {
	if bp.Len() == 0 {
		return nil
	}

	tags := make(Tags, len(c.tags)+len(bp.tags))
	for key, value := range c.tags {
		tags[key] = value
	}
	for key, value := range bp.tags {
		tags[key] = value
	}

	precision := bp.precision
	if t, ok := c.Transport.(*V2Transport); ok {
		// The precision of a v2 transport is fixed at creation.
		precision = t.Cfg.Precision
	}

	opts := c.encodeOptions
	opts.Precision = precision

	var buf bytes.Buffer
	encodePoints(bp.points, tags, &buf, opts)

	return c.Transport.Write(ctx, &WriteRequest{
		Target:    bp.target,
		Precision: precision,
		Payload:   buf.Bytes(),
	})
}

func (c *Client) EnqueuePoint(p *Point) error {
	return c.EnqueuePoints(Points{p})
}

// EnqueuePoints writes points to the default database of the client.
func (c *Client) EnqueuePoints(ps Points) error {
	return c.writePoints(context.Background(), c.target, ps)
}

func (c *Client) writePoints(ctx context.Context, target Target, ps Points) error {
	if target.Database == "" {
		return ErrMissingDatabase
	}

	if processor := c.batchProcessor(); processor != nil {
		return processor.Enqueue(target, ps...)
	}

	bp, err := NewBatchPointsBuilderForTarget(target).
		Precision(c.Cfg.Precision).
		Points(ps).
		Build()
	if err != nil {
		return err
	}

	return c.WriteBatch(ctx, bp)
}
