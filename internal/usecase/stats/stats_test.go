package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piyushgit011/image-process/internal/entity"
)

type fakeMetadata struct {
	aggregate *entity.Aggregate
	err       error
}

func (f *fakeMetadata) Insert(context.Context, *entity.Job) error { return nil }
func (f *fakeMetadata) MarkProcessing(context.Context, string) error { return nil }
func (f *fakeMetadata) UpdateOnCompletion(context.Context, string, string, int64, entity.FaceMeta, float64) error {
	return nil
}
func (f *fakeMetadata) MarkFailed(context.Context, string, string, float64) error { return nil }
func (f *fakeMetadata) GetByJobID(context.Context, string) (*entity.Job, error)   { return nil, nil }
func (f *fakeMetadata) Query(context.Context, entity.JobFilter, int) ([]*entity.Job, error) {
	return nil, nil
}
func (f *fakeMetadata) Aggregate(context.Context) (*entity.Aggregate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.aggregate, nil
}

type fakeQueue struct {
	depth int64
}

func (f *fakeQueue) Push(context.Context, *entity.Envelope) (string, error) { return "", nil }
func (f *fakeQueue) BlockingPop(context.Context, time.Duration) (string, *entity.Envelope, error) {
	return "", nil, nil
}
func (f *fakeQueue) Ack(context.Context, string) error                           { return nil }
func (f *fakeQueue) Nack(context.Context, string, *entity.Envelope, string) error { return nil }
func (f *fakeQueue) Depth(context.Context) (int64, error)                        { return f.depth, nil }

func TestRecordProcessed_UpdatesCountersAndEMA(t *testing.T) {
	a := New(&fakeMetadata{aggregate: &entity.Aggregate{}}, &fakeQueue{})

	a.RecordProcessed(1.0)
	assert.Equal(t, int64(1), a.processedTotal.Load())
	assert.InDelta(t, 1.0, a.avgProcessingTime(), 0.0001)

	a.RecordProcessed(3.0)
	// EMA(alpha=0.1): 0.1*3 + 0.9*1 = 1.2
	assert.InDelta(t, 1.2, a.avgProcessingTime(), 0.0001)
}

func TestRecordFailed_IncrementsFailedTotal(t *testing.T) {
	a := New(&fakeMetadata{aggregate: &entity.Aggregate{}}, &fakeQueue{})

	a.RecordFailed()
	a.RecordFailed()

	assert.Equal(t, int64(2), a.failedTotal.Load())
}

func TestActiveWorkers_IncDec(t *testing.T) {
	a := New(&fakeMetadata{aggregate: &entity.Aggregate{}}, &fakeQueue{})

	a.IncActiveWorkers()
	a.IncActiveWorkers()
	assert.Equal(t, int64(2), a.ActiveWorkers())

	a.DecActiveWorkers()
	assert.Equal(t, int64(1), a.ActiveWorkers())
}

func TestThroughputPerMinute_CountsWithinWindow(t *testing.T) {
	a := New(&fakeMetadata{aggregate: &entity.Aggregate{}}, &fakeQueue{})

	for i := 0; i < 5; i++ {
		a.RecordProcessed(0.5)
	}

	assert.Equal(t, float64(5), a.throughputPerMinute())
}

func TestSnapshot_MergesLiveAndDurableCounters(t *testing.T) {
	metadata := &fakeMetadata{aggregate: &entity.Aggregate{
		Total:                10,
		VehiclesDetected:     8,
		FacesDetected:        4,
		FacesBlurred:         4,
		AvgProcessingSeconds: 2.5,
	}}
	queue := &fakeQueue{depth: 7}

	a := New(metadata, queue)
	a.RecordProcessed(1.0)
	a.IncActiveWorkers()

	snapshot, err := a.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), snapshot.ProcessedTotal)
	assert.Equal(t, int64(1), snapshot.ActiveWorkers)
	assert.Equal(t, int64(7), snapshot.QueueDepth)
	assert.Equal(t, int64(10), snapshot.TotalRecorded)
	assert.Equal(t, int64(8), snapshot.VehiclesDetected)
	assert.InDelta(t, 2.5, snapshot.AvgProcessingAll, 0.0001)
}
