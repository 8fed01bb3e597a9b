package redisqueue

import "time"

type Option func(*Queue)

func ConnAttempts(attempts int) Option {
	return func(q *Queue) {
		q.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(q *Queue) {
		q.connTimeout = timeout
	}
}

func MaxQueueSize(size int64) Option {
	return func(q *Queue) {
		q.maxQueueSize = size
	}
}

func Group(group string) Option {
	return func(q *Queue) {
		q.group = group
	}
}

func Consumer(consumer string) Option {
	return func(q *Queue) {
		q.consumer = consumer
	}
}

func VisibilityTimeout(timeout time.Duration) Option {
	return func(q *Queue) {
		q.visibilityTimeout = timeout
	}
}
