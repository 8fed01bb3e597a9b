package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/piyushgit011/image-process/internal/entity"
	"github.com/piyushgit011/image-process/pkg/types/errs"
)

const (
	_defaultConnAttempts      = 10
	_defaultConnTimeout       = time.Second
	_defaultMaxQueueSize      = 1000
	_defaultGroup             = "workers"
	_defaultConsumer          = "worker-pool"
	_defaultVisibilityTimeout = 120 * time.Second
	_reclaimerConsumer        = "reclaimer"
	_retrySetSuffix           = ":retry"
)

// Queue implements repo.Queue over a Redis stream with a consumer group.
// Push does XADD; BlockingPop does XREADGROUP ... BLOCK; Ack does
// XACK+XDEL (permanent removal, per spec §4.1); Nack acks the original
// entry and ZADDs the envelope (with Attempts already incremented by the
// caller) into a companion delayed-retry set scored by
// now+visibilityTimeout+backoff, since Redis Streams entries can't be
// mutated in place once appended.
type Queue struct {
	connAttempts int
	connTimeout  time.Duration

	stream            string
	retrySet          string
	group             string
	consumer          string
	maxQueueSize      int64
	visibilityTimeout time.Duration

	Client *redis.Client
}

func New(ctx context.Context, url, stream string, opts ...Option) (*Queue, error) {
	parsed, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisqueue - New - redis.ParseURL: %w", err)
	}

	q := &Queue{
		connAttempts:      _defaultConnAttempts,
		connTimeout:       _defaultConnTimeout,
		stream:            stream,
		retrySet:          stream + _retrySetSuffix,
		group:             _defaultGroup,
		consumer:          _defaultConsumer,
		maxQueueSize:      _defaultMaxQueueSize,
		visibilityTimeout: _defaultVisibilityTimeout,
		Client:            redis.NewClient(parsed),
	}

	for _, opt := range opts {
		opt(q)
	}

	for q.connAttempts > 0 {
		err = q.Client.Ping(ctx).Err()
		if err == nil {
			break
		}

		log.Printf("redisqueue is trying to connect, attempts left: %d", q.connAttempts)

		time.Sleep(q.connTimeout)

		q.connAttempts--
	}

	if err != nil {
		return nil, fmt.Errorf("redisqueue - New - connAttempts == 0: %w", err)
	}

	err = q.Client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		// BUSYGROUP means the group already exists, which is fine.
		if !isBusyGroup(err) {
			return nil, fmt.Errorf("redisqueue - New - XGroupCreateMkStream: %w", err)
		}
	}

	return q, nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

func (q *Queue) Close() error {
	return q.Client.Close()
}

func (q *Queue) Push(ctx context.Context, envelope *entity.Envelope) (string, error) {
	depth, err := q.Client.XLen(ctx, q.stream).Result()
	if err != nil {
		return "", fmt.Errorf("redisqueue - Push - XLen: %w", errs.ErrQueueUnavailable)
	}
	if depth >= q.maxQueueSize {
		return "", fmt.Errorf("redisqueue - Push: %w", errs.ErrBackpressure)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("redisqueue - Push - json.Marshal: %w", err)
	}

	id, err := q.Client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"envelope": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redisqueue - Push - XAdd: %w", errs.ErrQueueUnavailable)
	}

	return id, nil
}

// BlockingPop returns ("", nil, nil) on timeout, per repo.Queue's contract.
func (q *Queue) BlockingPop(ctx context.Context, timeout time.Duration) (string, *entity.Envelope, error) {
	res, err := q.Client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    timeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("redisqueue - BlockingPop - XReadGroup: %w", errs.ErrQueueUnavailable)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return "", nil, nil
	}

	msg := res[0].Messages[0]

	raw, ok := msg.Values["envelope"].(string)
	if !ok {
		// Structurally invalid entry; ack it away so it doesn't poison the
		// stream forever and report it as a decode failure to the caller.
		_ = q.Ack(ctx, msg.ID)
		return "", nil, fmt.Errorf("redisqueue - BlockingPop: %w", errs.ErrDecode)
	}

	var envelope entity.Envelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		_ = q.Ack(ctx, msg.ID)
		return "", nil, fmt.Errorf("redisqueue - BlockingPop - json.Unmarshal: %w", errs.ErrDecode)
	}

	return msg.ID, &envelope, nil
}

func (q *Queue) Ack(ctx context.Context, deliveryID string) error {
	pipe := q.Client.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, deliveryID)
	pipe.XDel(ctx, q.stream, deliveryID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisqueue - Ack: %w", errs.ErrQueueUnavailable)
	}

	return nil
}

// Nack removes the original entry from the consumer group's pending list
// and re-admits envelope (attempts already bumped by the caller) into the
// delayed-retry set, scored by now+visibilityTimeout+backoff so it becomes
// visible again no sooner than one full visibility window plus the
// caller's jittered backoff (spec §4.6).
func (q *Queue) Nack(ctx context.Context, deliveryID string, envelope *entity.Envelope, reason string) error {
	if err := q.Ack(ctx, deliveryID); err != nil {
		return fmt.Errorf("redisqueue - Nack - Ack: %w", err)
	}

	_ = reason // surfaced to callers for logging; the stream itself only carries attempts forward

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("redisqueue - Nack - json.Marshal: %w", err)
	}

	score := float64(time.Now().Add(q.visibilityTimeout).Add(backoffFor(envelope.Attempts)).Unix())

	err = q.Client.ZAdd(ctx, q.retrySet, redis.Z{Score: score, Member: payload}).Err()
	if err != nil {
		return fmt.Errorf("redisqueue - Nack - ZAdd: %w", errs.ErrQueueUnavailable)
	}

	return nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	pipe := q.Client.TxPipeline()
	lenCmd := pipe.XLen(ctx, q.stream)
	cardCmd := pipe.ZCard(ctx, q.retrySet)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redisqueue - Depth: %w", errs.ErrQueueUnavailable)
	}

	return lenCmd.Val() + cardCmd.Val(), nil
}

// ReclaimDue moves every delayed-retry entry whose backoff has elapsed
// back onto the live stream, returning how many were re-admitted.
func (q *Queue) ReclaimDue(ctx context.Context) (int, error) {
	now := float64(time.Now().Unix())

	due, err := q.Client.ZRangeByScore(ctx, q.retrySet, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redisqueue - ReclaimDue - ZRangeByScore: %w", err)
	}

	readmitted := 0
	for _, payload := range due {
		if err := q.Client.ZRem(ctx, q.retrySet, payload).Err(); err != nil {
			continue
		}

		err = q.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: map[string]interface{}{"envelope": payload},
		}).Err()
		if err != nil {
			return readmitted, fmt.Errorf("redisqueue - ReclaimDue - XAdd: %w", err)
		}
		readmitted++
	}

	return readmitted, nil
}

// ReclaimStale re-admits any stream entry whose consumer has held it
// pending longer than minIdle - the crash-recovery half of at-least-once
// delivery (spec §9's worker-crash property). Ownership is transferred to
// the reclaimer consumer and a fresh copy is pushed so any worker can pop
// it again via XREADGROUP "> ".
func (q *Queue) ReclaimStale(ctx context.Context, minIdle time.Duration) (int, error) {
	messages, _, err := q.Client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: _reclaimerConsumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    100,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redisqueue - ReclaimStale - XAutoClaim: %w", err)
	}

	for _, msg := range messages {
		raw, ok := msg.Values["envelope"].(string)
		if !ok {
			_ = q.Ack(ctx, msg.ID)
			continue
		}

		if err := q.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: map[string]interface{}{"envelope": raw},
		}).Err(); err != nil {
			return 0, fmt.Errorf("redisqueue - ReclaimStale - XAdd: %w", err)
		}

		if err := q.Ack(ctx, msg.ID); err != nil {
			return 0, fmt.Errorf("redisqueue - ReclaimStale - Ack: %w", err)
		}
	}

	return len(messages), nil
}

// backoffFor implements spec §4.6's schedule: jitter in [0, base*2^attempts],
// base 1s, capped at 60s.
func backoffFor(attempts int) time.Duration {
	const base = time.Second
	const capDur = 60 * time.Second

	max := base << attempts
	if max > capDur || max <= 0 {
		max = capDur
	}

	return time.Duration(rand.Int63n(int64(max) + 1))
}
