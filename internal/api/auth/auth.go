package auth

import (
	"log/slog"
	"net/http"

	"taskhub/internal/api/respond"
	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 提供钱包挑战与签名登录接口。
type Handler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(svc *service.AuthService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type challengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type challengeResponse struct {
	WalletAddress string `json:"wallet_address"`
	Challenge     string `json:"challenge"`
	ExpiresAt     string `json:"expires_at"`
}

type verifyRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Challenge     string `json:"challenge"`
}

// Challenge 签发登录挑战，客户端需用钱包对 challenge 字符串做 personal_sign。
func (h *Handler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	ch, err := h.svc.CreateChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, challengeResponse{
		WalletAddress: ch.WalletAddress,
		Challenge:     ch.Nonce,
		ExpiresAt:     ch.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Verify 校验签名并返回访问令牌。
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Verify(c.Request.Context(), req.WalletAddress, req.Signature, req.Challenge)
	if err != nil {
		if h.logger != nil {
			h.logger.Info("wallet verify rejected",
				slog.String("wallet", req.WalletAddress),
				slog.String("error", err.Error()))
		}
		respond.Error(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
