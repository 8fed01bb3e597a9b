package dispatcher

import (
	"context"
	"errors"
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
	mu     sync.Mutex
	put    map[string][]byte
	getErr error
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{put: make(map[string][]byte)} }

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put[key] = data
	return "https://blobs.local/" + key, nil
}

func (f *fakeBlobs) Get(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return []byte("original-bytes"), nil
}

type fakeMetadata struct {
	mu   sync.Mutex
	rows map[string]*entity.Job
}

func newFakeMetadata(rows ...*entity.Job) *fakeMetadata {
	m := &fakeMetadata{rows: make(map[string]*entity.Job)}
	for _, row := range rows {
		m.rows[row.JobID.String()] = row
	}
	return m
}

func (f *fakeMetadata) Insert(context.Context, *entity.Job) error { return nil }

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
	return nil
}

func (f *fakeMetadata) MarkFailed(_ context.Context, jobID, reasonKind string, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[jobID]
	if !ok {
		return errs.ErrRecordNotFound
	}
	row.Status = entity.Failed
	row.FailureReason = reasonKind
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

func (f *fakeMetadata) Query(context.Context, entity.JobFilter, int) ([]*entity.Job, error) {
	return nil, nil
}
func (f *fakeMetadata) Aggregate(context.Context) (*entity.Aggregate, error) {
	return &entity.Aggregate{}, nil
}

type fakeQueue struct {
	mu     sync.Mutex
	acked  []string
	nacked []string
}

func (f *fakeQueue) Push(context.Context, *entity.Envelope) (string, error) { return "", nil }
func (f *fakeQueue) BlockingPop(context.Context, time.Duration) (string, *entity.Envelope, error) {
	return "", nil, nil
}

func (f *fakeQueue) Ack(_ context.Context, deliveryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, deliveryID)
	return nil
}

func (f *fakeQueue) Nack(_ context.Context, deliveryID string, _ *entity.Envelope, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, deliveryID)
	return nil
}

func (f *fakeQueue) Depth(context.Context) (int64, error) { return 0, nil }

type fakeModels struct {
	err error
}

func (f *fakeModels) DetectVehicles(context.Context, []byte) (bool, entity.VehicleDetection, error) {
	return true, entity.VehicleDetection{}, nil
}

func (f *fakeModels) DetectAndBlurFaces(context.Context, []byte) ([]byte, entity.FaceMeta, error) {
	if f.err != nil {
		return nil, entity.FaceMeta{}, f.err
	}
	return []byte("blurred-bytes"), entity.FaceMeta{FaceCount: 1}, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	active   int64
	processed int
	failed   int
}

func (f *fakeRecorder) RecordProcessed(float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed++
}
func (f *fakeRecorder) RecordFailed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed++
}
func (f *fakeRecorder) IncActiveWorkers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active++
}
func (f *fakeRecorder) DecActiveWorkers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}
func (f *fakeRecorder) ActiveWorkers() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})        {}
func (noopLogger) Info(string, ...interface{})         {}
func (noopLogger) Warn(string, ...interface{})         {}
func (noopLogger) Error(error, string, ...interface{}) {}
func (noopLogger) Fatal(error)                         {}

var _ logger.Interface = noopLogger{}

func newSubmittedRow(jobID uuid.UUID) *entity.Job {
	return &entity.Job{
		ID:          uuid.New(),
		JobID:       jobID,
		Status:      entity.Submitted,
		ContentType: "image/jpeg",
	}
}

func newEnvelope(jobID uuid.UUID) *entity.Envelope {
	return &entity.Envelope{
		JobID:       jobID,
		ContentType: "image/jpeg",
		PayloadRef:  dto.InlinePayload([]byte("original-bytes")),
		UploadTS:    1700000000,
	}
}

func TestNew_RejectsZeroWorkers(t *testing.T) {
	_, err := New(&fakeQueue{}, newFakeBlobs(), newFakeMetadata(), &fakeModels{}, &fakeRecorder{}, noopLogger{}, 0, time.Second, time.Second, time.Second, 3)
	require.Error(t, err)
}

func TestProcess_HappyPath(t *testing.T) {
	jobID := uuid.New()
	metadata := newFakeMetadata(newSubmittedRow(jobID))
	queue := &fakeQueue{}
	blobs := newFakeBlobs()
	recorder := &fakeRecorder{}

	d, err := New(queue, blobs, metadata, &fakeModels{}, recorder, noopLogger{}, 1, time.Second, time.Second, time.Second, 3)
	require.NoError(t, err)

	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: newEnvelope(jobID)})

	row := metadata.rows[jobID.String()]
	assert.Equal(t, entity.Completed, row.Status)
	require.Len(t, queue.acked, 1)
	assert.Empty(t, queue.nacked)
	assert.Equal(t, 1, recorder.processed)
}

func TestProcess_IdempotentOnAlreadyCompleted(t *testing.T) {
	jobID := uuid.New()
	row := newSubmittedRow(jobID)
	row.Status = entity.Completed
	metadata := newFakeMetadata(row)
	queue := &fakeQueue{}

	d, err := New(queue, newFakeBlobs(), metadata, &fakeModels{}, &fakeRecorder{}, noopLogger{}, 1, time.Second, time.Second, time.Second, 3)
	require.NoError(t, err)

	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: newEnvelope(jobID)})

	require.Len(t, queue.acked, 1)
	assert.Empty(t, queue.nacked)
}

func TestProcess_AcksOrphanEnvelope(t *testing.T) {
	jobID := uuid.New()
	metadata := newFakeMetadata()
	queue := &fakeQueue{}

	d, err := New(queue, newFakeBlobs(), metadata, &fakeModels{}, &fakeRecorder{}, noopLogger{}, 1, time.Second, time.Second, time.Second, 3)
	require.NoError(t, err)

	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: newEnvelope(jobID)})

	require.Len(t, queue.acked, 1)
	assert.Empty(t, queue.nacked)
}

func TestProcess_FailsFatalOnModelError(t *testing.T) {
	jobID := uuid.New()
	metadata := newFakeMetadata(newSubmittedRow(jobID))
	queue := &fakeQueue{}
	recorder := &fakeRecorder{}

	d, err := New(queue, newFakeBlobs(), metadata, &fakeModels{err: errs.ErrDecode}, recorder, noopLogger{}, 1, time.Second, time.Second, time.Second, 3)
	require.NoError(t, err)

	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: newEnvelope(jobID)})

	row := metadata.rows[jobID.String()]
	assert.Equal(t, entity.Failed, row.Status)
	assert.Equal(t, "model-error", row.FailureReason)
	require.Len(t, queue.acked, 1)
	assert.Equal(t, 1, recorder.failed)
}

func TestProcess_NacksOnBlobResolveFailure(t *testing.T) {
	jobID := uuid.New()
	metadata := newFakeMetadata(newSubmittedRow(jobID))
	queue := &fakeQueue{}
	blobs := newFakeBlobs()
	blobs.getErr = errs.ErrStorageUnavailable
	recorder := &fakeRecorder{}

	d, err := New(queue, blobs, metadata, &fakeModels{}, recorder, noopLogger{}, 1, time.Second, time.Second, time.Second, 3)
	require.NoError(t, err)

	envelope := newEnvelope(jobID)
	envelope.PayloadRef = dto.StagedPayload("staging/" + jobID.String())
	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: envelope})

	row := metadata.rows[jobID.String()]
	assert.Equal(t, entity.Processing, row.Status)
	assert.Empty(t, queue.acked)
	require.Len(t, queue.nacked, 1)
	assert.Equal(t, 1, envelope.Attempts)
	assert.Equal(t, 0, recorder.failed)
}

func TestProcess_NacksOnTransientModelError(t *testing.T) {
	jobID := uuid.New()
	metadata := newFakeMetadata(newSubmittedRow(jobID))
	queue := &fakeQueue{}

	d, err := New(queue, newFakeBlobs(), metadata, &fakeModels{err: errors.New("transient")}, &fakeRecorder{}, noopLogger{}, 1, time.Second, time.Second, time.Second, 3)
	require.NoError(t, err)

	envelope := newEnvelope(jobID)
	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: envelope})

	row := metadata.rows[jobID.String()]
	assert.Equal(t, entity.Processing, row.Status)
	assert.Empty(t, queue.acked)
	require.Len(t, queue.nacked, 1)
	assert.Equal(t, 1, envelope.Attempts)
}

func TestProcess_MaxAttemptsExceededFailsRow(t *testing.T) {
	jobID := uuid.New()
	metadata := newFakeMetadata(newSubmittedRow(jobID))
	queue := &fakeQueue{}
	recorder := &fakeRecorder{}

	d, err := New(queue, newFakeBlobs(), metadata, &fakeModels{err: errors.New("transient")}, recorder, noopLogger{}, 1, time.Second, time.Second, time.Second, 1)
	require.NoError(t, err)

	envelope := newEnvelope(jobID)
	envelope.Attempts = 0
	d.process(context.Background(), queueItem{deliveryID: "delivery-1", envelope: envelope})

	row := metadata.rows[jobID.String()]
	assert.Equal(t, entity.Failed, row.Status)
	assert.Equal(t, "max-attempts-exceeded", row.FailureReason)
	require.Len(t, queue.acked, 1)
	assert.Equal(t, 1, recorder.failed)
}

func TestProcessedBlobKey(t *testing.T) {
	key := processedBlobKey("abc-123", 1700000000, "image/png")
	assert.Equal(t, "processed/abc-123_1700000000.png", key)
}

func TestExtForContentType(t *testing.T) {
	assert.Equal(t, ".jpg", extForContentType("image/jpeg"))
	assert.Equal(t, ".bin", extForContentType("application/octet-stream"))
}
