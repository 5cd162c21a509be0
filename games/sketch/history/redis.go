/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package history ships finished rounds to a Redis stream.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Seednode/sketchbox/games/sketch"
)

const (
	DefaultStream = "sketchbox:rounds"

	maxStreamLength = 10000
)

// RedisRecorder appends one stream entry per finished round.
type RedisRecorder struct {
	client *redis.Client
	stream string
	maxLen int64
}

var _ sketch.RoundRecorder = (*RedisRecorder)(nil)

func NewRedisRecorder(client *redis.Client, stream string) *RedisRecorder {
	if stream == "" {
		stream = DefaultStream
	}

	return &RedisRecorder{
		client: client,
		stream: stream,
		maxLen: maxStreamLength,
	}
}

// Dial connects to the Redis server at url and checks that it answers.
func Dial(ctx context.Context, url, stream string) (*RedisRecorder, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisRecorder(client, stream), nil
}

func (r *RedisRecorder) RecordRound(ctx context.Context, s sketch.RoundSummary) error {
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: values(s),
	}).Err()
	if err != nil {
		return fmt.Errorf("recording round %d of %s: %w", s.Number, s.Room, err)
	}

	return nil
}

func (r *RedisRecorder) Close() error {
	return r.client.Close()
}

func values(s sketch.RoundSummary) map[string]any {
	return map[string]any{
		"room":       s.Room,
		"round":      s.Number,
		"word":       s.Word,
		"drawer":     s.Drawer,
		"reason":     string(s.Reason),
		"winners":    strings.Join(s.Winners, ","),
		"strokes":    s.Strokes,
		"started_at": s.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration":   s.EndedAt.Sub(s.StartedAt).Milliseconds(),
	}
}
