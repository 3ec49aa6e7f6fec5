// Package queue is the partition queue transport. Each upstream partition is
// one redis list; the upstream producer pushes article payloads onto the
// tail and exactly one worker consumes from the head.
//
// Dequeue peeks without removing, mirroring a cloud queue's
// dequeue-then-delete protocol; DeleteLast removes the head. This is only
// safe because a partition never has two concurrent consumers.
package queue

import (
	"time"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/medwatch/contentprocessor/internal/common/processorerrors"
)

type RedisTransport struct {
	db redis.UniversalClient
}

func NewRedisTransport(db redis.UniversalClient) *RedisTransport {
	return &RedisTransport{db: db}
}

// Connect verifies the transport is reachable. Called once per worker at
// startup; failure there is fatal to the worker.
func (t *RedisTransport) Connect(name string) error {
	err := retry.Do(
		func() error { return t.db.Ping().Err() },
		retry.Attempts(4),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	return errors.Wrapf(err, "connecting to partition queue %s", name)
}

// Dequeue returns the payload at the head of the partition, without removing
// it. The second return is false when the partition is empty.
func (t *RedisTransport) Dequeue(name string) (string, bool, error) {
	payload, err := t.db.LIndex(name, 0).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "dequeuing from %s", name)
	}
	return payload, true, nil
}

// DeleteLast removes the item returned by the preceding Dequeue.
func (t *RedisTransport) DeleteLast(name string) error {
	err := t.db.LPop(name).Err()
	if err == redis.Nil {
		// The item peeked by Dequeue is gone. With a single consumer per
		// partition that means a second consumer is attached.
		return &processorerrors.ErrStaleDequeue{QueueName: name}
	}
	return errors.Wrapf(err, "deleting head of %s", name)
}

// Length reports the current depth of the partition.
func (t *RedisTransport) Length(name string) (int64, error) {
	depth, err := t.db.LLen(name).Result()
	return depth, errors.Wrapf(err, "reading depth of %s", name)
}

// Enqueue pushes a payload onto the tail of the partition. The consumer side
// never calls this; it exists for the upstream producer and for tests.
func (t *RedisTransport) Enqueue(name string, payload string) error {
	return errors.Wrapf(t.db.RPush(name, payload).Err(), "enqueuing to %s", name)
}
