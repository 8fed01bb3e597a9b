package job

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyushgit011/image-process/internal/dto"
	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/pkg/logger"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

type fakeBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte)}
}

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = data
	return "https://blobs.local/" + key, nil
}

func (f *fakeBlobs) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.data[key]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	return data, nil
}

type fakeMetadata struct {
	mu      sync.Mutex
	rows    map[string]*entity.Job
	insertErr error
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{rows: make(map[string]*entity.Job)}
}

func (f *fakeMetadata) Insert(_ context.Context, job *entity.Job) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[job.JobID.String()] = job
	return nil
}

func (f *fakeMetadata) MarkProcessing(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[jobID]; ok {
		row.Status = entity.Processing
	}
	return nil
}

func (f *fakeMetadata) UpdateOnCompletion(_ context.Context, jobID, processedURL string, processedSize int64, faceMeta entity.FaceMeta, duration float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return errs.ErrRecordNotFound
	}
	row.Status = entity.Completed
	row.BlobProcessedURL = &processedURL
	row.FileSizeProcessed = &processedSize
	row.ProcessingTimeSeconds = &duration
	return nil
}

func (f *fakeMetadata) MarkFailed(_ context.Context, jobID, reasonKind string, duration float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return errs.ErrRecordNotFound
	}
	row.Status = entity.Failed
	row.FailureReason = reasonKind
	row.ProcessingTimeSeconds = &duration
	return nil
}

func (f *fakeMetadata) GetByJobID(_ context.Context, jobID string) (*entity.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return nil, errs.ErrRecordNotFound
	}
	return row, nil
}

func (f *fakeMetadata) Query(_ context.Context, _ entity.JobFilter, _ int) ([]*entity.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.Job, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeMetadata) Aggregate(_ context.Context) (*entity.Aggregate, error) {
	return &entity.Aggregate{}, nil
}

type fakeQueue struct {
	mu      sync.Mutex
	pushed  []*entity.Envelope
	pushErr error
}

func (f *fakeQueue) Push(_ context.Context, envelope *entity.Envelope) (string, error) {
	if f.pushErr != nil {
		return "", f.pushErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, envelope)
	return uuid.NewString(), nil
}

func (f *fakeQueue) BlockingPop(context.Context, time.Duration) (string, *entity.Envelope, error) {
	return "", nil, nil
}
func (f *fakeQueue) Ack(context.Context, string) error                           { return nil }
func (f *fakeQueue) Nack(context.Context, string, *entity.Envelope, string) error { return nil }
func (f *fakeQueue) Depth(context.Context) (int64, error)                        { return 0, nil }

type fakeModels struct {
	vehicleDetected bool
	vehicleErr      error
}

func (f *fakeModels) DetectVehicles(context.Context, []byte) (bool, entity.VehicleDetection, error) {
	if f.vehicleErr != nil {
		return false, entity.VehicleDetection{}, f.vehicleErr
	}
	return f.vehicleDetected, entity.VehicleDetection{VehicleDetected: f.vehicleDetected}, nil
}

func (f *fakeModels) DetectAndBlurFaces(context.Context, []byte) ([]byte, entity.FaceMeta, error) {
	return nil, entity.FaceMeta{}, fmt.Errorf("not used in gate tests")
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})        {}
func (noopLogger) Info(string, ...interface{})         {}
func (noopLogger) Warn(string, ...interface{})         {}
func (noopLogger) Error(error, string, ...interface{}) {}
func (noopLogger) Fatal(error)                         {}

var _ logger.Interface = noopLogger{}

func TestSubmit_RejectsNoVehicle(t *testing.T) {
	metadata := newFakeMetadata()
	queue := &fakeQueue{}
	blobs := newFakeBlobs()
	models := &fakeModels{vehicleDetected: false}

	g := New(blobs, metadata, queue, models, 0, noopLogger{})

	jobID, accepted, reason, err := g.Submit(context.Background(), dto.SubmitRequest{
		Data:        []byte("fake-image-bytes"),
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
	})

	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, "no-vehicle", reason)
	assert.Empty(t, jobID)
	assert.Empty(t, queue.pushed)
	assert.Empty(t, metadata.rows)
}

func TestSubmit_AcceptsAndEnqueuesInline(t *testing.T) {
	metadata := newFakeMetadata()
	queue := &fakeQueue{}
	blobs := newFakeBlobs()
	models := &fakeModels{vehicleDetected: true}

	g := New(blobs, metadata, queue, models, 1<<20, noopLogger{})

	jobID, accepted, reason, err := g.Submit(context.Background(), dto.SubmitRequest{
		Data:        []byte("fake-image-bytes"),
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
	})

	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Empty(t, reason)
	require.NotEmpty(t, jobID)

	require.Len(t, queue.pushed, 1)
	assert.Equal(t, dto.PayloadInline, queue.pushed[0].PayloadRef.Kind)

	row, ok := metadata.rows[jobID]
	require.True(t, ok)
	assert.Equal(t, entity.Submitted, row.Status)
	assert.True(t, row.IsVehicleDetected)
}

func TestSubmit_StagesLargePayload(t *testing.T) {
	metadata := newFakeMetadata()
	queue := &fakeQueue{}
	blobs := newFakeBlobs()
	models := &fakeModels{vehicleDetected: true}

	g := New(blobs, metadata, queue, models, 4, noopLogger{})

	jobID, accepted, _, err := g.Submit(context.Background(), dto.SubmitRequest{
		Data:        []byte("larger-than-four-bytes"),
		Filename:    "photo.png",
		ContentType: "image/png",
	})

	require.NoError(t, err)
	assert.True(t, accepted)
	require.NotEmpty(t, jobID)

	require.Len(t, queue.pushed, 1)
	assert.Equal(t, dto.PayloadStaged, queue.pushed[0].PayloadRef.Kind)
	assert.Contains(t, queue.pushed[0].PayloadRef.Key, "staging/")
}

func TestSubmit_FailsRowNotDeletesOnQueueUnavailable(t *testing.T) {
	metadata := newFakeMetadata()
	queue := &fakeQueue{pushErr: errs.ErrQueueUnavailable}
	blobs := newFakeBlobs()
	models := &fakeModels{vehicleDetected: true}

	g := New(blobs, metadata, queue, models, 1<<20, noopLogger{})

	jobID, accepted, reason, err := g.Submit(context.Background(), dto.SubmitRequest{
		Data:        []byte("fake-image-bytes"),
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
	})

	require.Error(t, err)
	assert.False(t, accepted)
	assert.Equal(t, "queue-unavailable", reason)
	assert.Empty(t, jobID)

	require.Len(t, metadata.rows, 1)
	for _, row := range metadata.rows {
		assert.Equal(t, entity.Failed, row.Status)
		assert.Equal(t, "queue-unavailable", row.FailureReason)
	}
}

func TestSubmit_RejectsEmptyPayload(t *testing.T) {
	g := New(newFakeBlobs(), newFakeMetadata(), &fakeQueue{}, &fakeModels{vehicleDetected: true}, 0, noopLogger{})

	_, accepted, reason, err := g.Submit(context.Background(), dto.SubmitRequest{Data: nil, Filename: "x.jpg", ContentType: "image/jpeg"})

	require.Error(t, err)
	assert.False(t, accepted)
	assert.Equal(t, "validation-error", reason)
}

func TestBatchSubmit_IsolatesFailures(t *testing.T) {
	metadata := newFakeMetadata()
	queue := &fakeQueue{}
	blobs := newFakeBlobs()
	models := &fakeModels{}

	g := New(blobs, metadata, queue, models, 0, noopLogger{})

	reqs := []dto.SubmitRequest{
		{Data: []byte("no vehicle here"), Filename: "a.jpg", ContentType: "image/jpeg"},
		{Data: nil, Filename: "b.jpg", ContentType: "image/jpeg"},
	}

	result, err := g.BatchSubmit(context.Background(), reqs)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "a.jpg", result.Results[0].Filename)
	assert.Equal(t, "b.jpg", result.Results[1].Filename)
}

func TestExtFor(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":      ".jpg",
		"image/jpg":       ".jpg",
		"image/png":       ".png",
		"image/gif":       ".gif",
		"application/pdf": ".bin",
	}
	for contentType, want := range cases {
		assert.Equal(t, want, extFor(contentType))
	}
}
