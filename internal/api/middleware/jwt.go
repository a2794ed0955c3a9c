package middleware

import (
	"errors"
	"net/http"
	"strings"

	"taskhub/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// 上下文键。
const (
	CtxUserID        = "userID"
	CtxWalletAddress = "walletAddress"
)

// TokenParser 校验访问令牌。
type TokenParser interface {
	Parse(tokenStr string) (*token.Claims, error)
}

// AuthMiddleware 校验 Bearer 令牌并将 userID、walletAddress 写入上下文。
// 过期令牌返回 "token expired"，其余失败返回 "invalid token"。
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortUnauthorized(c, "invalid authorization header")
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				abortUnauthorized(c, "token expired")
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxWalletAddress, strings.ToLower(claims.WalletAddress))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "unauthenticated"})
}
