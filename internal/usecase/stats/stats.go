// Package stats implements the Stats Aggregator (spec §4.8): live
// in-memory counters cheap enough to update on every worker's hot path,
// merged on read with the Metadata Store's durable Aggregate().
package stats

import (
	"container/ring"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/piyushgit011/image-process/internal/dto"
	"github.com/piyushgit011/image-process/internal/repo"
)

const (
	throughputWindow = 60 * time.Second
	throughputSlots  = 60
	emaAlpha         = 0.1
)

// Aggregator is the Stats Aggregator use case.
type Aggregator struct {
	metadata repo.MetadataStore
	queue    repo.Queue

	processedTotal atomic.Int64
	failedTotal    atomic.Int64
	activeWorkers  atomic.Int64

	mu        sync.Mutex
	avgTime   float64
	window    *ring.Ring
	slotStart time.Time
}

func New(metadata repo.MetadataStore, queue repo.Queue) *Aggregator {
	window := ring.New(throughputSlots)
	for i := 0; i < throughputSlots; i++ {
		window.Value = 0
		window = window.Next()
	}

	return &Aggregator{
		metadata:  metadata,
		queue:     queue,
		window:    window,
		slotStart: time.Now(),
	}
}

// RecordProcessed is called by a worker on every successful completion; it
// must never block or perform I/O (spec §5).
func (a *Aggregator) RecordProcessed(durationSeconds float64) {
	a.processedTotal.Add(1)
	a.tick()
	a.updateAvg(durationSeconds)
}

// RecordFailed is called by a worker on every terminal failure.
func (a *Aggregator) RecordFailed() {
	a.failedTotal.Add(1)
}

func (a *Aggregator) IncActiveWorkers() { a.activeWorkers.Add(1) }
func (a *Aggregator) DecActiveWorkers() { a.activeWorkers.Add(-1) }
func (a *Aggregator) ActiveWorkers() int64 { return a.activeWorkers.Load() }

func (a *Aggregator) updateAvg(sample float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.avgTime == 0 {
		a.avgTime = sample
		return
	}
	a.avgTime = emaAlpha*sample + (1-emaAlpha)*a.avgTime
}

// tick rolls the ring buffer forward once per elapsed second and bumps
// the current slot's count, giving a rolling 60s throughput window.
func (a *Aggregator) tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := time.Since(a.slotStart)
	slots := int(elapsed / (throughputWindow / throughputSlots))
	if slots > throughputSlots {
		slots = throughputSlots
	}
	for i := 0; i < slots; i++ {
		a.window = a.window.Next()
		a.window.Value = 0
	}
	if slots > 0 {
		a.slotStart = a.slotStart.Add(time.Duration(slots) * (throughputWindow / throughputSlots))
	}

	a.window.Value = a.window.Value.(int) + 1
}

func (a *Aggregator) throughputPerMinute() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Zero out slots that have aged past the window since the last record.
	slots := int(time.Since(a.slotStart) / (throughputWindow / throughputSlots))
	if slots > throughputSlots {
		slots = throughputSlots
	}
	for i := 0; i < slots; i++ {
		a.window = a.window.Next()
		a.window.Value = 0
	}
	if slots > 0 {
		a.slotStart = a.slotStart.Add(time.Duration(slots) * (throughputWindow / throughputSlots))
	}

	total := 0
	a.window.Do(func(v any) {
		total += v.(int)
	})
	return float64(total)
}

func (a *Aggregator) avgProcessingTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avgTime
}

func (a *Aggregator) QueueDepth(ctx context.Context) (int64, error) {
	depth, err := a.queue.Depth(ctx)
	if err != nil {
		return 0, fmt.Errorf("stats - Aggregator - QueueDepth - queue.Depth: %w", err)
	}
	return depth, nil
}

func (a *Aggregator) Snapshot(ctx context.Context) (dto.StatsSnapshot, error) {
	aggregate, err := a.metadata.Aggregate(ctx)
	if err != nil {
		return dto.StatsSnapshot{}, fmt.Errorf("stats - Aggregator - Snapshot - metadata.Aggregate: %w", err)
	}

	depth, err := a.QueueDepth(ctx)
	if err != nil {
		return dto.StatsSnapshot{}, fmt.Errorf("stats - Aggregator - Snapshot: %w", err)
	}

	return dto.StatsSnapshot{
		ProcessedTotal:      a.processedTotal.Load(),
		FailedTotal:         a.failedTotal.Load(),
		ThroughputPerMinute: a.throughputPerMinute(),
		AvgProcessingTime:   a.avgProcessingTime(),
		ActiveWorkers:       a.ActiveWorkers(),
		QueueDepth:          depth,

		TotalRecorded:    aggregate.Total,
		VehiclesDetected: aggregate.VehiclesDetected,
		FacesDetected:    aggregate.FacesDetected,
		FacesBlurred:     aggregate.FacesBlurred,
		AvgProcessingAll: aggregate.AvgProcessingSeconds,
	}, nil
}
