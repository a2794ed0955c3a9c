package model

import "time"

// Challenge 是某个钱包当前有效的一次性登录挑战，保存在 Redis 中。
type Challenge struct {
	WalletAddress string    `json:"wallet_address"`
	Nonce         string    `json:"challenge"`
	ExpiresAt     time.Time `json:"expires_at"`
	Used          bool      `json:"used"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired 判断挑战在 now 时刻是否已过期。
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
