package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"taskhub/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "taskhub:challenge:"
	nonceBytes = 12
)

// consumeLua 仅当 nonce 与当前记录一致且未使用时标记为已使用。
const consumeLua = `
local nonce = redis.call("HGET", KEYS[1], "nonce")
if not nonce or nonce ~= ARGV[1] then
  return 0
end
if redis.call("HGET", KEYS[1], "used") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "used", "1")
return 1
`

// Store 以钱包地址为键保存一次性挑战。
//
// 每个钱包只有一条记录，重新签发会直接覆盖旧挑战。记录不设 Redis TTL：
// 过期与已使用状态由记录本身给出，存储量以钱包数为上界。
type Store struct {
	rdb     *redis.Client
	ttl     time.Duration
	consume *redis.Script
	now     func() time.Time
}

// NewStore 创建挑战存储，ttl 为挑战有效期。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{
		rdb:     rdb,
		ttl:     ttl,
		consume: redis.NewScript(consumeLua),
		now:     time.Now,
	}
}

// Issue 为钱包签发新挑战并覆盖旧记录。
func (s *Store) Issue(ctx context.Context, wallet string) (*model.Challenge, error) {
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ch := &model.Challenge{
		WalletAddress: wallet,
		Nonce:         nonce,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	key := keyPrefix + wallet
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"nonce", ch.Nonce,
			"expires_at", ch.ExpiresAt.UnixMilli(),
			"created_at", ch.CreatedAt.UnixMilli(),
			"used", "0",
		)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("challenge upsert: %w", err)
	}
	return ch, nil
}

// Get 读取钱包当前挑战，不存在时返回 (nil, nil)。
func (s *Store) Get(ctx context.Context, wallet string) (*model.Challenge, error) {
	values, err := s.rdb.HGetAll(ctx, keyPrefix+wallet).Result()
	if err != nil {
		return nil, fmt.Errorf("challenge get: %w", err)
	}
	if len(values) == 0 || values["nonce"] == "" {
		return nil, nil
	}
	return &model.Challenge{
		WalletAddress: wallet,
		Nonce:         values["nonce"],
		ExpiresAt:     parseMillis(values["expires_at"]),
		CreatedAt:     parseMillis(values["created_at"]),
		Used:          values["used"] == "1",
	}, nil
}

// Consume 原子地将 nonce 标记为已使用。
//
// 返回 false 表示记录已被替换或已被其他请求消费。
func (s *Store) Consume(ctx context.Context, wallet, nonce string) (bool, error) {
	res, err := s.consume.Run(ctx, s.rdb, []string{keyPrefix + wallet}, nonce).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("challenge consume: %w", err)
	}
	return res == 1, nil
}

func newNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return "nonce_" + hex.EncodeToString(buf), nil
}

func parseMillis(v string) time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
