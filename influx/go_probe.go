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
	"runtime"
	"time"
)

const goProbeInterval = time.Second

func (c *Client) goProbeMain(stopChan <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(goProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return

		case now := <-ticker.C:
			if err := c.EnqueuePoints(goProbePoints(now)); err != nil {
				c.Log.Error("cannot write go probe points: %v", err)
			}
		}
	}
}

func goProbePoints(now time.Time) Points {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	goroutines := Measurement("go_goroutines").
		FieldValue("count", Int(int64(runtime.NumGoroutine()))).
		Timestamp(now)

	memory := Measurement("go_memory").
		FieldValue("heap_alloc", Uint(stats.HeapAlloc)).
		FieldValue("heap_sys", Uint(stats.HeapSys)).
		FieldValue("heap_idle", Uint(stats.HeapIdle)).
		FieldValue("heap_in_use", Uint(stats.HeapInuse)).
		FieldValue("heap_released", Uint(stats.HeapReleased)).
		FieldValue("stack_in_use", Uint(stats.StackInuse)).
		FieldValue("stack_sys", Uint(stats.StackSys)).
		FieldValue("nb_gcs", Uint(uint64(stats.NumGC))).
		FieldValue("gc_cpu_time_fraction", Float(stats.GCCPUFraction)).
		Timestamp(now)

	var points Points

	for _, b := range []*PointBuilder{goroutines, memory} {
		// Builders only fail on missing data, which cannot happen here.
		p, err := b.Build()
		if err != nil {
			panic(err)
		}

		points = append(points, p)
	}

	return points
}
