package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"PatternScope/internal/domain/models"
	domrepo "PatternScope/internal/domain/repository"
)

const historyKeyPrefix = "patternscope:history:"

// RedisHistory keeps one sorted set per symbol scored by entry time in milliseconds.
type RedisHistory struct {
	cli *redis.Client
	now func() time.Time
}

func NewRedisHistory(cli *redis.Client) *RedisHistory {
	return &RedisHistory{cli: cli, now: time.Now}
}

func (r *RedisHistory) Append(ctx context.Context, e models.PatternHistoryEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	z := redis.Z{Score: float64(e.Timestamp.UnixMilli()), Member: b}
	if err := r.cli.ZAdd(ctx, historyKeyPrefix+e.Symbol, z).Err(); err != nil {
		return fmt.Errorf("zadd history: %w", err)
	}
	return nil
}

func (r *RedisHistory) QueryTrend(ctx context.Context, symbol string, days int) ([]models.PatternHistoryEntry, error) {
	lo := strconv.FormatInt(trendStart(r.now(), days).UnixMilli(), 10)
	members, err := r.cli.ZRangeByScore(ctx, historyKeyPrefix+symbol, &redis.ZRangeBy{Min: lo, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange history: %w", err)
	}
	out := make([]models.PatternHistoryEntry, 0, len(members))
	for _, m := range members {
		var e models.PatternHistoryEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

var _ domrepo.HistoryStore = (*RedisHistory)(nil)
