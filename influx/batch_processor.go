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
	"fmt"
	"sync"
	"time"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-log"
)

const (
	DefaultBatchActions       = 1000
	DefaultBatchFlushInterval = time.Second
)

// BatchCfg is the serializable configuration of batching. The flush
// interval is expressed as a number of FlushIntervalUnit, milliseconds by
// default.
type BatchCfg struct {
	Actions           int       `json:"actions"`
	FlushInterval     int       `json:"flush_interval"`
	FlushIntervalUnit Precision `json:"flush_interval_unit"`
}

func (cfg *BatchCfg) Check(c *check.Checker) {
	c.CheckIntMin("actions", cfg.Actions, 0)
	c.CheckIntMin("flush_interval", cfg.FlushInterval, 0)

	if cfg.FlushIntervalUnit != "" {
		c.CheckStringValue("flush_interval_unit", cfg.FlushIntervalUnit,
			PrecisionValues)
	}
}

func (cfg BatchCfg) Interval() time.Duration {
	if cfg.FlushInterval <= 0 {
		return DefaultBatchFlushInterval
	}

	unit := cfg.FlushIntervalUnit
	if unit == "" {
		unit = Milliseconds
	}

	return time.Duration(cfg.FlushInterval) * unit.Duration()
}

type BatchProcessorCfg struct {
	Log             *log.Logger
	Transport       Transport
	FailureObserver FailureObserver
	Metrics         *Metrics

	// Number of buffered points of a target which triggers a flush; also the
	// maximum number of points in a written batch.
	Actions int

	// Maximum time points of a target wait before being flushed.
	FlushInterval time.Duration

	Precision     Precision
	Tags          Tags
	EncodeOptions EncodeOptions
}

// BatchProcessor buffers points per target and writes them in the
// background, when enough points are buffered for a target or when its
// flush interval has elapsed.
type BatchProcessor struct {
	Cfg BatchProcessorCfg
	Log *log.Logger

	lifecycleMutex sync.Mutex

	// Held for reading while points are appended, and for writing when the
	// processor changes state, so that Stop sees every buffered point.
	stateMutex sync.RWMutex
	running    bool

	groups      map[Target]*batchGroup
	groupsMutex sync.Mutex

	flushChan chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

type batchGroup struct {
	target Target

	mutex     sync.Mutex
	points    Points
	lastFlush time.Time
}

func NewBatchProcessor(cfg BatchProcessorCfg) (*BatchProcessor, error) {
	if cfg.Log == nil {
		cfg.Log = log.DefaultLogger("influx-batch")
	}

	if cfg.Transport == nil {
		return nil, fmt.Errorf("missing transport")
	}

	if cfg.Actions < 0 {
		return nil, fmt.Errorf("invalid negative number of actions")
	} else if cfg.Actions == 0 {
		cfg.Actions = DefaultBatchActions
	}

	if cfg.FlushInterval < 0 {
		return nil, fmt.Errorf("invalid negative flush interval")
	} else if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultBatchFlushInterval
	}

	if cfg.Precision == "" {
		cfg.Precision = DefaultPrecision
	}

	if !cfg.Precision.Valid() {
		return nil, fmt.Errorf("invalid precision %q", string(cfg.Precision))
	}

	cfg.EncodeOptions.Precision = cfg.Precision

	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	bp := &BatchProcessor{
		Cfg: cfg,
		Log: cfg.Log,

		groups: make(map[Target]*batchGroup),

		flushChan: make(chan struct{}, 1),
	}

	if bp.Cfg.FailureObserver == nil {
		bp.Cfg.FailureObserver = FailureObserverFunc(bp.logFlushError)
	}

	return bp, nil
}

func (bp *BatchProcessor) Start() {
	bp.lifecycleMutex.Lock()
	defer bp.lifecycleMutex.Unlock()

	bp.stateMutex.Lock()
	defer bp.stateMutex.Unlock()

	if bp.running {
		return
	}

	bp.running = true
	bp.stopChan = make(chan struct{})

	bp.wg.Add(1)
	go bp.main(bp.stopChan)
}

// Stop terminates the flush loop, then flushes every buffered point before
// returning. Points enqueued after Stop are written synchronously.
func (bp *BatchProcessor) Stop() {
	bp.lifecycleMutex.Lock()
	defer bp.lifecycleMutex.Unlock()

	bp.stateMutex.Lock()
	if !bp.running {
		bp.stateMutex.Unlock()
		return
	}

	bp.running = false
	close(bp.stopChan)
	bp.stateMutex.Unlock()

	bp.wg.Wait()

	bp.flushGroups(time.Now(), true)
}

func (bp *BatchProcessor) IsRunning() bool {
	bp.stateMutex.RLock()
	defer bp.stateMutex.RUnlock()

	return bp.running
}

// Enqueue buffers points for a target. If the processor is stopped, points
// are written immediately and the error of the transport is returned.
func (bp *BatchProcessor) Enqueue(target Target, points ...*Point) error {
	if target.Database == "" {
		return ErrMissingDatabase
	}

	if target.Consistency == "" {
		target.Consistency = DefaultConsistency
	}

	if len(points) == 0 {
		return nil
	}

	bp.stateMutex.RLock()

	if !bp.running {
		bp.stateMutex.RUnlock()

		bp.Cfg.Metrics.SyncWrites.Add(float64(len(points)))
		return bp.write(context.Background(), target, points)
	}

	full := bp.group(target).add(points, bp.Cfg.Actions)

	bp.stateMutex.RUnlock()

	bp.Cfg.Metrics.PointsEnqueued.Add(float64(len(points)))
	bp.Cfg.Metrics.PendingPoints.Add(float64(len(points)))

	if full {
		select {
		case bp.flushChan <- struct{}{}:
		default:
		}
	}

	return nil
}

// Flush synchronously writes all buffered points.
func (bp *BatchProcessor) Flush() {
	bp.flushGroups(time.Now(), true)
}

func (bp *BatchProcessor) group(target Target) *batchGroup {
	bp.groupsMutex.Lock()
	defer bp.groupsMutex.Unlock()

	g, found := bp.groups[target]
	if !found {
		g = &batchGroup{
			target:    target,
			lastFlush: time.Now(),
		}

		bp.groups[target] = g
	}

	return g
}

func (bp *BatchProcessor) main(stopChan <-chan struct{}) {
	defer bp.wg.Done()

	ticker := time.NewTicker(bp.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return

		case <-bp.flushChan:
			bp.flushGroups(time.Now(), false)

		case now := <-ticker.C:
			bp.flushGroups(now, false)
		}
	}
}

func (bp *BatchProcessor) tickInterval() time.Duration {
	interval := bp.Cfg.FlushInterval

	d := interval / 4
	if d < time.Millisecond {
		d = time.Millisecond
		if interval < d {
			d = interval
		}
	}

	return d
}

func (bp *BatchProcessor) flushGroups(now time.Time, force bool) {
	bp.groupsMutex.Lock()
	groups := make([]*batchGroup, 0, len(bp.groups))
	for _, g := range bp.groups {
		groups = append(groups, g)
	}
	bp.groupsMutex.Unlock()

	for _, g := range groups {
		points := g.drain(now, bp.Cfg.Actions, bp.Cfg.FlushInterval, force)
		if len(points) == 0 {
			continue
		}

		bp.Cfg.Metrics.PendingPoints.Sub(float64(len(points)))

		bp.flushPoints(g.target, points)
	}
}

func (bp *BatchProcessor) flushPoints(target Target, points Points) {
	actions := bp.Cfg.Actions

	for len(points) > 0 {
		n := actions
		if n > len(points) {
			n = len(points)
		}

		payload := bp.encode(points[:n])

		start := time.Now()
		err := bp.Cfg.Transport.Write(context.Background(), &WriteRequest{
			Target:    target,
			Precision: bp.Cfg.Precision,
			Payload:   payload,
		})
		bp.Cfg.Metrics.FlushDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			bp.Cfg.Metrics.BatchesWritten.Inc()
			bp.Cfg.Metrics.PointsWritten.Add(float64(n))
		} else {
			bp.Cfg.Metrics.FlushErrors.Inc()
			bp.notifyFailure(target, payload, err)
		}

		points = points[n:]
	}
}

func (bp *BatchProcessor) write(ctx context.Context, target Target, points Points) error {
	payload := bp.encode(points)

	err := bp.Cfg.Transport.Write(ctx, &WriteRequest{
		Target:    target,
		Precision: bp.Cfg.Precision,
		Payload:   payload,
	})
	if err != nil {
		return err
	}

	bp.Cfg.Metrics.PointsWritten.Add(float64(len(points)))

	return nil
}

func (bp *BatchProcessor) encode(points Points) []byte {
	var buf bytes.Buffer
	encodePoints(points, bp.Cfg.Tags, &buf, bp.Cfg.EncodeOptions)
	return buf.Bytes()
}

func (bp *BatchProcessor) notifyFailure(target Target, payload []byte, err error) {
	defer func() {
		if value := recover(); value != nil {
			bp.Log.Error("panic in failure observer: %v", value)
		}
	}()

	bp.Cfg.FailureObserver.OnFlushError(target, payload, err)
}

func (bp *BatchProcessor) logFlushError(target Target, payload []byte, err error) {
	bp.Log.Error("cannot write batch to %v: %v", target, err)
}

// add appends points and reports whether the group holds enough points to
// be flushed.
func (g *batchGroup) add(points Points, actions int) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.points = append(g.points, points...)

	return len(g.points) >= actions
}

func (g *batchGroup) drain(now time.Time, actions int, interval time.Duration, force bool) Points {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.points) == 0 {
		return nil
	}

	if !force && len(g.points) < actions && now.Sub(g.lastFlush) < interval {
		return nil
	}

	points := g.points
	g.points = nil
	g.lastFlush = now

	return points
}
