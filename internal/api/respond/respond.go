// Package respond 统一 API 层的错误输出格式：{"error": msg, "code": code}。
package respond

import (
	"errors"
	"log/slog"
	"net/http"

	"taskhub/internal/service"

	"github.com/gin-gonic/gin"
)

type mapping struct {
	target error
	status int
	code   string
}

var mappings = []mapping{
	{service.ErrValidation, http.StatusBadRequest, "invalid_request"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{service.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrAlreadyUsed, http.StatusConflict, "already_used"},
	{service.ErrConflict, http.StatusConflict, "conflict"},
	{service.ErrExpired, http.StatusGone, "expired"},
	{service.ErrPreconditionFailed, http.StatusPreconditionFailed, "precondition_failed"},
	{service.ErrUnavailable, http.StatusServiceUnavailable, "unavailable"},
}

// Status 返回错误对应的 HTTP 状态码与错误码，未识别的错误为 500。
func Status(err error) (int, string) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// Error 输出错误响应。500 不向客户端暴露内部细节。
func Error(c *gin.Context, logger *slog.Logger, err error) {
	status, code := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.String("error", err.Error()))
		}
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "code": code})
}

// BadRequest 输出请求体解析失败等参数错误。
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "invalid_request"})
}
