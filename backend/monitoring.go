// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
)

// MetricsFile is the storage name of the persisted metrics.
const MetricsFile = "metrics.json"

const LatencyBuckets = 51
const LatencyBucketSize = 10 * time.Millisecond

// Histogram counts request latencies in fixed-width buckets. The last bucket
// holds everything slower.
type Histogram struct {
	Buckets [LatencyBuckets]uint64 `json:"b"`
	Count   uint64                 `json:"c"`
	Sum     float64                `json:"s"` // milliseconds
}

func (h *Histogram) Add(d time.Duration) {
	idx := int(d / LatencyBucketSize)
	if idx >= LatencyBuckets {
		idx = LatencyBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += float64(d) / float64(time.Millisecond)
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := 0; i < LatencyBuckets; i++ {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// Percentile returns the upper bound of the bucket holding the p-th
// percentile, 0 < p <= 100.
func (h *Histogram) Percentile(p float64) time.Duration {
	if h.Count == 0 {
		return 0
	}
	rank := uint64(float64(h.Count)*p/100 + 0.5)
	if rank == 0 {
		rank = 1
	}
	var seen uint64
	for i, n := range h.Buckets {
		seen += n
		if seen >= rank {
			return time.Duration(i+1) * LatencyBucketSize
		}
	}
	return LatencyBuckets * LatencyBucketSize
}

// ResolutionConfig defines the policy for a single RRD bucket set.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1m", 1 * time.Minute, 120},
	{"1h", 1 * time.Hour, 7 * 24},
	{"1d", 24 * time.Hour, 90},
}

// Point represents a single data point in a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer for storing time series data.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // next write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
	}
}

func (rb *RingBuffer[T]) align(timestamp int64) int64 {
	resSec := int64(rb.Config.Resolution.Seconds())
	return (timestamp / resSec) * resSec
}

// last returns the most recent point when it covers timestamp.
func (rb *RingBuffer[T]) last(timestamp int64) (*Point[T], bool) {
	prev := &rb.Data[(rb.Head-1+len(rb.Data))%len(rb.Data)]
	return prev, prev.Timestamp == rb.align(timestamp)
}

// Add stores value for the bucket of timestamp, replacing the most recent
// point if it covers the same bucket.
func (rb *RingBuffer[T]) Add(timestamp int64, value T) {
	if prev, ok := rb.last(timestamp); ok {
		prev.Value = value
		return
	}
	rb.Data[rb.Head] = Point[T]{Timestamp: rb.align(timestamp), Value: value}
	rb.Head = (rb.Head + 1) % len(rb.Data)
}

// GetPoints returns the data points sorted by time.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := 0; i < len(rb.Data); i++ {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// CounterSeries sums events per bucket at every resolution.
type CounterSeries struct {
	Buffers map[string]*RingBuffer[uint64] `json:"buffers"`
}

func NewCounterSeries() *CounterSeries {
	cs := &CounterSeries{}
	cs.Hydrate()
	return cs
}

func (cs *CounterSeries) Ingest(timestamp int64, n uint64) {
	for _, buf := range cs.Buffers {
		if prev, ok := buf.last(timestamp); ok {
			prev.Value += n
			continue
		}
		buf.Add(timestamp, n)
	}
}

func (cs *CounterSeries) Hydrate() {
	if cs.Buffers == nil {
		cs.Buffers = make(map[string]*RingBuffer[uint64])
	}
	for _, cfg := range DefaultResolutions {
		if _, ok := cs.Buffers[cfg.Name]; !ok {
			cs.Buffers[cfg.Name] = NewRingBuffer[uint64](cfg)
		}
	}
}

// HistogramSeries holds all resolutions for a histogram metric.
type HistogramSeries struct {
	Buffers map[string]*RingBuffer[Histogram] `json:"buffers"`
}

func NewHistogramSeries() *HistogramSeries {
	hs := &HistogramSeries{}
	hs.Hydrate()
	return hs
}

func (hs *HistogramSeries) Ingest(timestamp int64, d time.Duration) {
	for _, buf := range hs.Buffers {
		if prev, ok := buf.last(timestamp); ok {
			prev.Value.Add(d)
			continue
		}
		var h Histogram
		h.Add(d)
		buf.Add(timestamp, h)
	}
}

func (hs *HistogramSeries) Hydrate() {
	if hs.Buffers == nil {
		hs.Buffers = make(map[string]*RingBuffer[Histogram])
	}
	for _, cfg := range DefaultResolutions {
		if _, ok := hs.Buffers[cfg.Name]; !ok {
			hs.Buffers[cfg.Name] = NewRingBuffer[Histogram](cfg)
		}
	}
}

// Metrics records request traffic, views served by kind and dataset loads.
type Metrics struct {
	mu sync.Mutex

	Requests *CounterSeries            `json:"requests"`
	Latency  *HistogramSeries          `json:"latency"`
	Views    map[string]*CounterSeries `json:"views"`
	Loads    *CounterSeries            `json:"loads"`
}

func NewMetrics() *Metrics {
	m := &Metrics{}
	m.hydrate()
	return m
}

func (m *Metrics) hydrate() {
	if m.Requests == nil {
		m.Requests = NewCounterSeries()
	}
	if m.Latency == nil {
		m.Latency = NewHistogramSeries()
	}
	if m.Loads == nil {
		m.Loads = NewCounterSeries()
	}
	if m.Views == nil {
		m.Views = make(map[string]*CounterSeries)
	}
	m.Requests.Hydrate()
	m.Latency.Hydrate()
	m.Loads.Hydrate()
	for _, s := range m.Views {
		s.Hydrate()
	}
}

// ObserveRequest records one request and how long it took.
func (m *Metrics) ObserveRequest(t time.Time, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests.Ingest(t.Unix(), 1)
	m.Latency.Ingest(t.Unix(), d)
}

// ObserveView records one rendered view.
func (m *Metrics) ObserveView(t time.Time, kind ViewKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Views[kind.String()]
	if !ok {
		s = NewCounterSeries()
		m.Views[kind.String()] = s
	}
	s.Ingest(t.Unix(), 1)
}

// ObserveLoad records one dataset version loaded.
func (m *Metrics) ObserveLoad(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loads.Ingest(t.Unix(), 1)
}

// LatencyPoint summarizes one latency bucket.
type LatencyPoint struct {
	Timestamp int64   `json:"t"`
	Count     uint64  `json:"count"`
	AvgMS     float64 `json:"avgMs"`
	P50MS     int64   `json:"p50Ms"`
	P95MS     int64   `json:"p95Ms"`
}

// MetricsReport is one resolution of the recorded metrics.
type MetricsReport struct {
	Resolution string                     `json:"resolution"`
	Requests   []Point[uint64]            `json:"requests"`
	Latency    []LatencyPoint             `json:"latency"`
	Views      map[string][]Point[uint64] `json:"views"`
	Loads      []Point[uint64]            `json:"loads"`
}

// Report returns the points recorded at the named resolution.
func (m *Metrics) Report(resolution string) (MetricsReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Requests.Buffers[resolution]; !ok {
		return MetricsReport{}, fmt.Errorf("unknown resolution %q", resolution)
	}
	r := MetricsReport{
		Resolution: resolution,
		Requests:   m.Requests.Buffers[resolution].GetPoints(),
		Views:      make(map[string][]Point[uint64]),
		Loads:      m.Loads.Buffers[resolution].GetPoints(),
	}
	for _, p := range m.Latency.Buffers[resolution].GetPoints() {
		lp := LatencyPoint{
			Timestamp: p.Timestamp,
			Count:     p.Value.Count,
			P50MS:     p.Value.Percentile(50).Milliseconds(),
			P95MS:     p.Value.Percentile(95).Milliseconds(),
		}
		if p.Value.Count > 0 {
			lp.AvgMS = p.Value.Sum / float64(p.Value.Count)
		}
		r.Latency = append(r.Latency, lp)
	}
	for kind, s := range m.Views {
		r.Views[kind] = s.Buffers[resolution].GetPoints()
	}
	return r, nil
}

// LoadMetrics reads the persisted metrics, or returns empty ones when there
// are none.
func LoadMetrics(s *storage.Storage) (*Metrics, error) {
	m := &Metrics{}
	if err := s.ReadDataFile(MetricsFile, m); err != nil {
		if os.IsNotExist(err) {
			return NewMetrics(), nil
		}
		return NewMetrics(), fmt.Errorf("ReadDataFile: %w", err)
	}
	m.hydrate()
	return m, nil
}

// Save persists the metrics.
func (m *Metrics) Save(s *storage.Storage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.SaveDataFile(MetricsFile, m); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}
