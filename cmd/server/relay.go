package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// relay fans frames in and out of Redis pub/sub, one channel per
// document — the teacher's exact mechanism from server/main.go,
// generalized from a single hardcoded "test-doc" channel to an
// arbitrary document ID taken from the request path.
type relay struct {
	rdb *redis.Client
	log *zap.Logger
}

func newRelay(addr string, log *zap.Logger) (*relay, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("relay: connect %s: %w", addr, err)
	}
	return &relay{rdb: rdb, log: log}, nil
}

func (r *relay) Close() error { return r.rdb.Close() }

func channelFor(doc string) string { return "collabtext:doc:" + doc }

// Publish broadcasts a frame's wire bytes to every server instance
// subscribed to doc, this one included.
func (r *relay) Publish(ctx context.Context, doc string, payload []byte) error {
	return r.rdb.Publish(ctx, channelFor(doc), payload).Err()
}

// Subscribe returns a subscription whose Channel() yields the raw
// frame payloads published by any server instance (including this
// one) for doc. The caller owns the returned pubsub and must Close it.
func (r *relay) Subscribe(ctx context.Context, doc string) *redis.PubSub {
	return r.rdb.Subscribe(ctx, channelFor(doc))
}
