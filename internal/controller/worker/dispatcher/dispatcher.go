// Package dispatcher implements the Worker Pool and Job Dispatcher
// (spec §4.6, §4.7): a fixed pool of goroutines pulling envelopes off the
// Queue Adapter and running the per-job state machine. It generalizes the
// teacher's KafkaController — same per-task recover() at the loop
// boundary, same per-step context.WithTimeout wrapping, same
// ack-after-success-only discipline — onto repo.Queue.BlockingPop instead
// of a Kafka read loop.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/internal/repo"
	"github.com/piyushgit011/image-process/internal/usecase"
	"github.com/piyushgit011/image-process/pkg/logger"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

// Recorder is the narrow slice of stats.Aggregator the dispatcher drives;
// kept separate from usecase.StatsUseCase so the read-only stats surface
// consumed by controllers stays free of write methods.
type Recorder interface {
	RecordProcessed(durationSeconds float64)
	RecordFailed()
	IncActiveWorkers()
	DecActiveWorkers()
	ActiveWorkers() int64
}

type queueItem struct {
	deliveryID string
	envelope   *entity.Envelope
}

// Dispatcher owns both the read loop and the worker fan-out, matching the
// teacher's single-type split between KafkaController's reader goroutine
// and its worker(tasks) goroutines.
type Dispatcher struct {
	queue    repo.Queue
	blobs    repo.BlobStore
	metadata repo.MetadataStore
	models   usecase.ModelManager
	stats    Recorder
	logger   logger.Interface

	workers        int
	pollTimeout    time.Duration
	processTimeout time.Duration
	cpuTimeout     time.Duration
	maxAttempts    int

	// readCtx/readCancel stop the poll loop only, so Shutdown can close
	// the task channel without preempting work already dispatched to a
	// worker.
	readCtx    context.Context
	readCancel context.CancelFunc

	// workCtx/workCancel root every in-flight process() call, independent
	// of readCtx: a running job gets up to processTimeout to finish
	// (spec.md's graceful-drain requirement) and is only force-cancelled
	// if Shutdown's own deadline expires first.
	workCtx    context.Context
	workCancel context.CancelFunc

	wg sync.WaitGroup

	started atomic.Bool
}

func New(
	queue repo.Queue,
	blobs repo.BlobStore,
	metadata repo.MetadataStore,
	models usecase.ModelManager,
	stats Recorder,
	l logger.Interface,
	workers int,
	pollTimeout time.Duration,
	processTimeout time.Duration,
	cpuTimeout time.Duration,
	maxAttempts int,
) (*Dispatcher, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("dispatcher - New: %w", errs.ErrValidation)
	}

	return &Dispatcher{
		queue:          queue,
		blobs:          blobs,
		metadata:       metadata,
		models:         models,
		stats:          stats,
		logger:         l,
		workers:        workers,
		pollTimeout:    pollTimeout,
		processTimeout: processTimeout,
		cpuTimeout:     cpuTimeout,
		maxAttempts:    maxAttempts,
	}, nil
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher - Start - dispatcher already started")
	}

	d.readCtx, d.readCancel = context.WithCancel(ctx)
	d.workCtx, d.workCancel = context.WithCancel(context.Background())

	tasks := make(chan queueItem, d.workers*2)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(tasks)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-d.readCtx.Done():
				return
			default:
				deliveryID, envelope, err := d.queue.BlockingPop(d.readCtx, d.pollTimeout)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						d.logger.Error(err, "dispatcher - Start - queue.BlockingPop")
					}
					continue
				}
				if envelope == nil {
					continue
				}

				select {
				case tasks <- queueItem{deliveryID: deliveryID, envelope: envelope}:
				case <-d.readCtx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (d *Dispatcher) worker(tasks <-chan queueItem) {
	defer d.wg.Done()

	for item := range tasks {
		func() {
			d.stats.IncActiveWorkers()
			defer d.stats.DecActiveWorkers()

			defer func() {
				if r := recover(); r != nil {
					jobID := item.envelope.JobID.String()
					d.logger.Error(fmt.Errorf("job_id=%s panic %v", jobID, r), "dispatcher - worker - panic")
					d.failFatal(d.workCtx, item, jobID, "panic", 0)
				}
			}()

			processCtx, cancel := context.WithTimeout(d.workCtx, d.processTimeout)
			defer cancel()

			d.process(processCtx, item)
		}()
	}
}

// process implements spec.md §4.6 steps 1-8.
func (d *Dispatcher) process(ctx context.Context, item queueItem) {
	jobID := item.envelope.JobID.String()

	record, err := d.metadata.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			d.ack(ctx, item.deliveryID, jobID, "orphan envelope")
			return
		}
		d.nack(ctx, item, "metadata unavailable fetching row")
		return
	}

	switch record.Status {
	case entity.Completed, entity.Failed, entity.Rejected:
		d.ack(ctx, item.deliveryID, jobID, "idempotent re-delivery")
		return
	}

	if err := d.metadata.MarkProcessing(ctx, jobID); err != nil {
		d.logger.Error(err, "dispatcher - process - metadata.MarkProcessing")
	}

	started := time.Now()

	data, err := item.envelope.PayloadRef.Resolve(ctx, d.blobs)
	if err != nil {
		d.nack(ctx, item, "storage-unavailable")
		return
	}

	cpuCtx, cpuCancel := context.WithTimeout(ctx, d.cpuTimeout)
	processed, faceMeta, err := d.models.DetectAndBlurFaces(cpuCtx, data)
	cpuCancel()
	if err != nil {
		if errors.Is(err, errs.ErrDecode) || errors.Is(err, errs.ErrModel) {
			d.failFatal(ctx, item, jobID, "model-error", time.Since(started).Seconds())
			return
		}
		d.nack(ctx, item, "model step transient error")
		return
	}

	processedKey := processedBlobKey(item.envelope.JobID.String(), item.envelope.UploadTS, item.envelope.ContentType)
	processedURL, err := d.blobs.Put(ctx, processedKey, processed, item.envelope.ContentType)
	if err != nil {
		d.nack(ctx, item, "storage unavailable writing processed blob")
		return
	}

	duration := time.Since(started).Seconds()

	if err := d.metadata.UpdateOnCompletion(ctx, jobID, processedURL, int64(len(processed)), faceMeta, duration); err != nil {
		d.nack(ctx, item, "metadata unavailable on completion")
		return
	}

	d.stats.RecordProcessed(duration)
	d.ack(ctx, item.deliveryID, jobID, "completed")
}

func (d *Dispatcher) failFatal(ctx context.Context, item queueItem, jobID, reasonKind string, duration float64) {
	if err := d.metadata.MarkFailed(ctx, jobID, reasonKind, duration); err != nil {
		d.logger.Error(err, "dispatcher - failFatal - metadata.MarkFailed")
	}
	d.stats.RecordFailed()
	d.ack(ctx, item.deliveryID, jobID, reasonKind)
}

func (d *Dispatcher) nack(ctx context.Context, item queueItem, reason string) {
	if item.envelope.Attempts+1 >= d.maxAttempts {
		if err := d.metadata.MarkFailed(ctx, item.envelope.JobID.String(), "max-attempts-exceeded", 0); err != nil {
			d.logger.Error(err, "dispatcher - nack - metadata.MarkFailed")
		}
		d.stats.RecordFailed()
		d.ack(ctx, item.deliveryID, item.envelope.JobID.String(), "max-attempts-exceeded")
		return
	}

	item.envelope.Attempts++
	if err := d.queue.Nack(ctx, item.deliveryID, item.envelope, reason); err != nil {
		d.logger.Error(err, "dispatcher - nack - queue.Nack")
	}
}

func (d *Dispatcher) ack(ctx context.Context, deliveryID, jobID, reason string) {
	if err := d.queue.Ack(ctx, deliveryID); err != nil {
		d.logger.Error(fmt.Errorf("job_id=%s reason=%s: %w", jobID, reason, err), "dispatcher - ack - queue.Ack")
	}
}

func (d *Dispatcher) ActiveWorkers() int64 {
	return d.stats.ActiveWorkers()
}

func (d *Dispatcher) QueueDepth(ctx context.Context) (int64, error) {
	depth, err := d.queue.Depth(ctx)
	if err != nil {
		return 0, fmt.Errorf("dispatcher - QueueDepth - queue.Depth: %w", err)
	}
	return depth, nil
}

// Shutdown stops the poll loop immediately so no new envelope is dequeued,
// then gives in-flight process() calls up to ctx's own deadline to drain
// naturally (each already bounded by processTimeout). Only if ctx expires
// first does it force-cancel the still-running calls, leaving them
// un-Acked for natural redelivery (spec.md's graceful-drain requirement).
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if !d.started.Load() {
		return nil
	}

	if d.readCancel != nil {
		d.readCancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if d.workCancel != nil {
			d.workCancel()
		}
		return nil
	case <-ctx.Done():
		if d.workCancel != nil {
			d.workCancel()
		}
		return nil
	}
}
