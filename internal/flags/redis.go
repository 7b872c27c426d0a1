package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKey   = "router:pause:state"
	historyKey = "router:pause:history"
)

// RedisSwitch keeps the pause state in Redis so every replica sees it.
type RedisSwitch struct {
	client redis.Cmdable
}

func NewRedisSwitch(client redis.Cmdable) (*RedisSwitch, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisSwitch{client: client}, nil
}

// State reads the current position. A switch never set is running.
func (s *RedisSwitch) State(ctx context.Context) (State, error) {
	val, err := s.client.Get(ctx, stateKey).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get pause state: %w", err)
	}

	var st State
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return State{}, fmt.Errorf("unmarshal pause state: %w", err)
	}
	return st, nil
}

func (s *RedisSwitch) Paused(ctx context.Context) (bool, error) {
	st, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return st.Paused, nil
}

// SetPaused stores the new position and appends it to the bounded history.
func (s *RedisSwitch) SetPaused(ctx context.Context, paused bool, by string) error {
	st := State{Paused: paused, UpdatedBy: by, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal pause state: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, stateKey, b, 0)
	pipe.LPush(ctx, historyKey, b)
	pipe.LTrim(ctx, historyKey, 0, HistoryLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set pause state: %w", err)
	}
	return nil
}

func (s *RedisSwitch) History(ctx context.Context, limit int64) ([]State, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	vals, err := s.client.LRange(ctx, historyKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("pause history: %w", err)
	}

	out := make([]State, 0, len(vals))
	for _, v := range vals {
		var st State
		if err := json.Unmarshal([]byte(v), &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
