// Package reclaimer implements the Queue Reclaimer: periodic background
// work that neither the Admission Gate nor a Worker perform inline —
// sweeping the delayed-retry set for envelopes whose backoff has elapsed,
// and reclaiming stream entries abandoned by a crashed worker. Adapted
// line-for-line in shape from the teacher's OutboxRelay ticker worker.
package reclaimer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/piyushgit011/image-process/pkg/logger"
)

// Queue is the narrow slice of redisqueue.Queue the reclaimer drives.
type Queue interface {
	ReclaimDue(ctx context.Context) (int, error)
	ReclaimStale(ctx context.Context, minIdle time.Duration) (int, error)
}

type Reclaimer struct {
	queue  Queue
	logger logger.Interface

	dueInterval   time.Duration
	staleInterval time.Duration
	minIdle       time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(queue Queue, l logger.Interface, dueInterval, staleInterval, minIdle time.Duration) *Reclaimer {
	return &Reclaimer{
		queue:         queue,
		logger:        l,
		dueInterval:   dueInterval,
		staleInterval: staleInterval,
		minIdle:       minIdle,
	}
}

func (r *Reclaimer) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("reclaimer - Start - reclaimer already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	r.worker(r.dueInterval, func() {
		n, err := r.queue.ReclaimDue(r.ctx)
		if err != nil {
			r.logger.Error(err, "reclaimer - Start - worker - queue.ReclaimDue")
			return
		}
		if n > 0 {
			r.logger.Info("reclaimer requeued %d due backoff entries", n)
		}
	})

	r.worker(r.staleInterval, func() {
		n, err := r.queue.ReclaimStale(r.ctx, r.minIdle)
		if err != nil {
			r.logger.Error(err, "reclaimer - Start - worker - queue.ReclaimStale")
			return
		}
		if n > 0 {
			r.logger.Info("reclaimer reclaimed %d stale stream entries", n)
		}
	})

	return nil
}

func (r *Reclaimer) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *Reclaimer) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
