package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taskhub:dedup:"

// Deduplicator 在时间窗口内识别重复提交（如重复的验证签名）。
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// Claim 以 SETNX 占用 (scope, value)，已被占用时返回 true。
// 值按小写归一化后取 sha256，避免大小写不同的同一签名绕过去重。
func (d *Deduplicator) Claim(ctx context.Context, scope, value string) (bool, error) {
	if d == nil || d.rdb == nil || value == "" {
		return false, nil
	}
	ok, err := d.rdb.SetNX(ctx, key(scope, value), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Release 释放占用，用于后续写库失败时回滚。
func (d *Deduplicator) Release(ctx context.Context, scope, value string) error {
	if d == nil || d.rdb == nil || value == "" {
		return nil
	}
	if err := d.rdb.Del(ctx, key(scope, value)).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func key(scope, value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return keyPrefix + scope + ":" + hex.EncodeToString(sum[:])
}
