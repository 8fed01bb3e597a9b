package repo

import (
	"context"
	"time"

	"github.com/piyushgit011/image-process/internal/entity"
)

type (
	// BlobStore is the Blob Store Adapter (spec §4.2): Put/Get keyed by the
	// staging/original/processed discipline, idempotent on identical
	// key+bytes.
	BlobStore interface {
		Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
		Get(ctx context.Context, key string) ([]byte, error)
	}

	// MetadataStore is the Metadata Store Adapter (spec §4.3) over the
	// processed_images table.
	MetadataStore interface {
		Insert(ctx context.Context, job *entity.Job) error
		MarkProcessing(ctx context.Context, jobID string) error
		UpdateOnCompletion(ctx context.Context, jobID string, processedURL string, processedSize int64, faceMeta entity.FaceMeta, duration float64) error
		MarkFailed(ctx context.Context, jobID string, reasonKind string, duration float64) error
		GetByJobID(ctx context.Context, jobID string) (*entity.Job, error)
		Query(ctx context.Context, filter entity.JobFilter, limit int) ([]*entity.Job, error)
		Aggregate(ctx context.Context) (*entity.Aggregate, error)
	}

	// Queue is the durable FIFO Queue Adapter (spec §4.1). BlockingPop
	// returns ("", nil, nil) on a timeout, not an error. Nack carries the
	// envelope forward with Attempts already incremented by the caller,
	// since the backing Redis Streams implementation can only re-admit a
	// fresh entry, never mutate one in place (SPEC_FULL.md Open Question 3).
	Queue interface {
		Push(ctx context.Context, envelope *entity.Envelope) (deliveryID string, err error)
		BlockingPop(ctx context.Context, timeout time.Duration) (deliveryID string, envelope *entity.Envelope, err error)
		Ack(ctx context.Context, deliveryID string) error
		Nack(ctx context.Context, deliveryID string, envelope *entity.Envelope, reason string) error
		Depth(ctx context.Context) (int64, error)
	}
)
