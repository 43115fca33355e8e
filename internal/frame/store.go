package frame

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps the most recent encoded frames in redis so the UI can show a
// short capture history. Frames expire; this is a cache, not an archive.
type Store struct {
	redis    *redis.Client
	frameTTL time.Duration
}

func NewStore(redisClient *redis.Client, frameTTL time.Duration) *Store {
	if frameTTL == 0 {
		frameTTL = 60 * time.Second
	}
	return &Store{redis: redisClient, frameTTL: frameTTL}
}

// StoredFrame is the redis representation of one emitted frame.
type StoredFrame struct {
	Data      string  `json:"data"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	DiffPct   float64 `json:"diff_pct"`
	Timestamp string  `json:"timestamp"`
	CapturedAt int64  `json:"captured_at"`
}

func (s *Store) key(captureID string) string {
	return fmt.Sprintf("capture:%s:frames", captureID)
}

func (s *Store) Put(ctx context.Context, captureID string, enc Encoded) error {
	sf := StoredFrame{
		Data:       enc.Data,
		Width:      enc.Width,
		Height:     enc.Height,
		DiffPct:    enc.DiffPct,
		Timestamp:  enc.Timestamp,
		CapturedAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(sf)
	if err != nil {
		return err
	}

	key := s.key(captureID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(sf.CapturedAt), Member: data})
	pipe.Expire(ctx, key, s.frameTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit frames, newest first.
func (s *Store) Recent(ctx context.Context, captureID string, limit int) ([]StoredFrame, error) {
	if limit <= 0 {
		limit = 10
	}
	results, err := s.redis.ZRevRangeWithScores(ctx, s.key(captureID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]StoredFrame, 0, len(results))
	for _, r := range results {
		raw, ok := r.Member.(string)
		if !ok {
			continue
		}
		var sf StoredFrame
		if err := json.Unmarshal([]byte(raw), &sf); err != nil {
			continue
		}
		frames = append(frames, sf)
	}
	return frames, nil
}

// Range returns frames captured between startMillis and endMillis.
func (s *Store) Range(ctx context.Context, captureID string, startMillis, endMillis int64, limit int) ([]StoredFrame, error) {
	opt := &redis.ZRangeBy{
		Min:   strconv.FormatInt(startMillis, 10),
		Max:   strconv.FormatInt(endMillis, 10),
		Count: int64(limit),
	}
	results, err := s.redis.ZRangeByScoreWithScores(ctx, s.key(captureID), opt).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]StoredFrame, 0, len(results))
	for _, r := range results {
		raw, ok := r.Member.(string)
		if !ok {
			continue
		}
		var sf StoredFrame
		if err := json.Unmarshal([]byte(raw), &sf); err != nil {
			continue
		}
		frames = append(frames, sf)
	}
	return frames, nil
}

func (s *Store) Delete(ctx context.Context, captureID string) error {
	return s.redis.Del(ctx, s.key(captureID)).Err()
}
