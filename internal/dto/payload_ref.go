package dto

import (
	"context"
	"fmt"
)

// PayloadRefKind tags a PayloadRef as carrying its bytes inline or staged
// behind a blob-store key.
type PayloadRefKind string

const (
	PayloadInline PayloadRefKind = "inline"
	PayloadStaged PayloadRefKind = "staged"
)

// BlobGetter is the minimal surface PayloadRef.Resolve needs from the blob
// store; it is satisfied by repo.BlobStore without importing it here.
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// PayloadRef is the tagged union described by the worker's design notes:
// small payloads travel inline in the envelope, large ones are staged in
// the blob store under staging/{job_id} and referenced by key. The worker
// resolves either uniformly through Resolve.
type PayloadRef struct {
	Kind   PayloadRefKind `json:"kind"`
	Inline []byte         `json:"inline,omitempty"`
	Key    string         `json:"key,omitempty"`
}

func InlinePayload(data []byte) PayloadRef {
	return PayloadRef{Kind: PayloadInline, Inline: data}
}

func StagedPayload(key string) PayloadRef {
	return PayloadRef{Kind: PayloadStaged, Key: key}
}

func (p PayloadRef) Resolve(ctx context.Context, blobs BlobGetter) ([]byte, error) {
	switch p.Kind {
	case PayloadInline:
		return p.Inline, nil
	case PayloadStaged:
		data, err := blobs.Get(ctx, p.Key)
		if err != nil {
			return nil, fmt.Errorf("PayloadRef - Resolve - blobs.Get: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("PayloadRef - Resolve: unknown kind %q", p.Kind)
	}
}
