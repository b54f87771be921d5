package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	streamChanges = "netstate.changes"
	streamMaxLen  = 10000
	readBlock     = 5 * time.Second
)

// RedisBus publishes changes to a Redis stream so every API replica and worker
// sees the same feed.
type RedisBus struct {
	rdb    *redis.Client
	stream string
	log    *zap.SugaredLogger
}

func NewRedisBus(rdb *redis.Client, log *zap.SugaredLogger) *RedisBus {
	return &RedisBus{rdb: rdb, stream: streamChanges, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	_, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: encode(c),
	}).Result()
	return err
}

func (b *RedisBus) Subscribe(ctx context.Context, tables ...string) (<-chan Change, error) {
	out := make(chan Change, subscriberBuffer)

	go func() {
		defer close(out)
		lastID := "$"

		for {
			res, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{b.stream, lastID},
				Block:   readBlock,
				Count:   100,
			}).Result()

			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				b.log.Warnw("change stream read failed", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, stream := range res {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					c, err := decode(msg.Values)
					if err != nil {
						b.log.Warnw("skipping malformed change", "id", msg.ID, "error", err)
						continue
					}
					if !matches(tables, c.Table) {
						continue
					}
					select {
					case out <- c:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

func encode(c Change) map[string]interface{} {
	return map[string]interface{}{
		"table":  c.Table,
		"type":   string(c.Type),
		"id":     c.ID,
		"record": string(c.Record),
		"at":     c.At.UnixMilli(),
	}
}

func decode(values map[string]interface{}) (Change, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	c := Change{
		Table: str("table"),
		Type:  ChangeType(str("type")),
		ID:    str("id"),
	}
	if c.Table == "" || c.Type == "" {
		return Change{}, fmt.Errorf("missing table or type")
	}
	if rec := str("record"); rec != "" {
		c.Record = []byte(rec)
	}
	if ms, err := strconv.ParseInt(str("at"), 10, 64); err == nil {
		c.At = time.UnixMilli(ms).UTC()
	}
	return c, nil
}
