package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/pkg/metrics"
	"taskhub/internal/pkg/walletsig"
)

const maxWalletLength = 128

// AuthService 实现钱包挑战签名登录。
//
// 状态机：NoChallenge -> Issued -> Used。校验顺序固定：
// 记录存在 -> 未使用 -> 未过期 -> 签名有效 -> 原子消费 -> 确保用户 -> 签发令牌。
// 签名错误不会消费挑战，调用方可以在过期前用同一 nonce 重试。
type AuthService struct {
	challenges ChallengeStore
	users      UserStore
	verifier   SignatureVerifier
	tokens     TokenIssuer
	logger     *slog.Logger
	now        func() time.Time
}

func NewAuthService(challenges ChallengeStore, users UserStore, verifier SignatureVerifier, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{
		challenges: challenges,
		users:      users,
		verifier:   verifier,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
}

// LoginResult 验证成功后的返回值。
type LoginResult struct {
	UserID        string      `json:"user_id"`
	WalletAddress string      `json:"wallet_address"`
	AccessToken   string      `json:"access_token"`
	User          *model.User `json:"user"`
}

// CreateChallenge 为钱包签发新挑战，旧挑战立即失效。
func (s *AuthService) CreateChallenge(ctx context.Context, wallet string) (*model.Challenge, error) {
	wallet = NormalizeWallet(wallet)
	if err := validateWallet(wallet); err != nil {
		return nil, err
	}
	ch, err := s.challenges.Issue(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}
	metrics.AuthChallengesIssuedTotal.Inc()
	return ch, nil
}

// Verify 校验挑战签名并登录。nonce 非空时必须与当前有效挑战一致。
func (s *AuthService) Verify(ctx context.Context, wallet, signature, nonce string) (*LoginResult, error) {
	res, err := s.verify(ctx, wallet, signature, nonce)
	metrics.AuthVerifyTotal.WithLabelValues(verifyResult(err)).Inc()
	return res, err
}

func (s *AuthService) verify(ctx context.Context, wallet, signature, nonce string) (*LoginResult, error) {
	wallet = NormalizeWallet(wallet)
	if err := validateWallet(wallet); err != nil {
		return nil, err
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: signature is required", ErrValidation)
	}

	ch, err := s.challenges.Get(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if ch == nil || (nonce != "" && nonce != ch.Nonce) {
		return nil, fmt.Errorf("%w: no challenge for wallet", ErrNotFound)
	}
	if ch.Used {
		return nil, ErrAlreadyUsed
	}
	if ch.Expired(s.now()) {
		return nil, ErrExpired
	}

	recovered, err := s.verifier.Recover(ch.Nonce, signature)
	if err != nil || !walletsig.SameAddress(recovered, wallet) {
		return nil, ErrInvalidSignature
	}

	ok, err := s.challenges.Consume(ctx, wallet, ch.Nonce)
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	if !ok {
		// 并发请求抢先消费，或挑战已被重新签发
		current, err := s.challenges.Get(ctx, wallet)
		if err == nil && current != nil && current.Nonce == ch.Nonce && current.Used {
			return nil, ErrAlreadyUsed
		}
		return nil, fmt.Errorf("%w: challenge replaced", ErrNotFound)
	}

	user, err := s.ensureUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", slog.String("user_id", user.ID), slog.String("error", err.Error()))
	} else {
		user.LastLoginAt = &now
	}

	token, err := s.tokens.Issue(user.ID, user.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("wallet verified", slog.String("wallet", wallet), slog.String("user_id", user.ID))
	return &LoginResult{
		UserID:        user.ID,
		WalletAddress: user.WalletAddress,
		AccessToken:   token,
		User:          user,
	}, nil
}

// ensureUser 幂等地为钱包创建用户。
func (s *AuthService) ensureUser(ctx context.Context, wallet string) (*model.User, error) {
	user, err := s.users.FindByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	now := s.now().UTC()
	user = &model.User{
		ID:            newID("user_"),
		WalletAddress: wallet,
		DisplayName:   defaultDisplayName(wallet),
		Roles:         []string{"user"},
		Preferences:   model.DefaultPreferences(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 并发登录时另一请求已创建
		existing, findErr := s.users.FindByWallet(ctx, wallet)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user created", slog.String("wallet", wallet), slog.String("user_id", user.ID))
	return user, nil
}

func defaultDisplayName(wallet string) string {
	if len(wallet) > 6 {
		wallet = wallet[:6]
	}
	return "user_" + wallet
}

func validateWallet(wallet string) error {
	if wallet == "" {
		return fmt.Errorf("%w: wallet_address is required", ErrValidation)
	}
	if len(wallet) > maxWalletLength {
		return fmt.Errorf("%w: wallet_address too long", ErrValidation)
	}
	return nil
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	default:
		return "error"
	}
}
