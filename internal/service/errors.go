package service

import "errors"

// 业务错误类型，API 层通过 errors.Is 统一映射为 HTTP 状态码。
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrAlreadyUsed        = errors.New("challenge already used")
	ErrConflict           = errors.New("conflict")
	ErrExpired            = errors.New("challenge expired")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrValidation         = errors.New("validation error")
	ErrUnavailable        = errors.New("service unavailable")
)
