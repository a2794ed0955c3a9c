package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/model"
	"taskhub/internal/pkg/objstore"
	"taskhub/internal/pkg/walletsig"
)

const signatureDedupScope = "verification_sig"

// UploadPresigner 为附件生成直传地址，未配置存储时为 nil。
type UploadPresigner interface {
	PresignUpload(ctx context.Context, taskID, fileName, contentType string) (*objstore.UploadURL, error)
}

// EvidenceService 管理任务完成凭证：附件与签名验证记录。
// 所有操作都要求调用方对任务有读权限。
type EvidenceService struct {
	tasks     *TaskService
	evidence  EvidenceStore
	users     UserStore
	verifier  SignatureVerifier
	dedup     Deduper
	presigner UploadPresigner
	logger    *slog.Logger
	now       func() time.Time
}

func NewEvidenceService(tasks *TaskService, evidence EvidenceStore, users UserStore, verifier SignatureVerifier, dedup Deduper, presigner UploadPresigner, logger *slog.Logger) *EvidenceService {
	return &EvidenceService{
		tasks:     tasks,
		evidence:  evidence,
		users:     users,
		verifier:  verifier,
		dedup:     dedup,
		presigner: presigner,
		logger:    logger,
		now:       time.Now,
	}
}

// AttachmentInput 登记附件参数。
type AttachmentInput struct {
	FileName      string `json:"file_name"`
	FileURL       string `json:"file_url"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	MimeType      string `json:"mime_type"`
}

// VerificationInput 提交签名验证参数。
type VerificationInput struct {
	Message   string  `json:"message"`
	Signature string  `json:"signature"`
	TxHash    *string `json:"tx_hash"`
}

// UploadURLInput 申请直传地址参数。
type UploadURLInput struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

// AddAttachment 为任务登记附件，上传者为调用方。
func (s *EvidenceService) AddAttachment(ctx context.Context, actor Actor, taskID string, in AttachmentInput) (*model.Attachment, error) {
	if _, err := s.tasks.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	in.FileName = strings.TrimSpace(in.FileName)
	if n := utf8.RuneCountInString(in.FileName); n < 1 || n > 255 {
		return nil, fmt.Errorf("%w: file_name must be 1-255 characters", ErrValidation)
	}
	if strings.TrimSpace(in.FileURL) == "" {
		return nil, fmt.Errorf("%w: file_url is required", ErrValidation)
	}
	if in.FileSizeBytes < 0 {
		return nil, fmt.Errorf("%w: file_size_bytes must not be negative", ErrValidation)
	}

	a := &model.Attachment{
		ID:            newID("att_"),
		TaskID:        taskID,
		UserID:        actor.UserID,
		FileName:      in.FileName,
		FileURL:       in.FileURL,
		FileSizeBytes: in.FileSizeBytes,
		MimeType:      in.MimeType,
		UploadedAt:    s.now().UTC(),
	}
	if err := s.evidence.AddAttachment(ctx, a); err != nil {
		return nil, fmt.Errorf("add attachment: %w", err)
	}
	return a, nil
}

// ListAttachments 列出任务附件并填充上传者信息。
func (s *EvidenceService) ListAttachments(ctx context.Context, actor Actor, taskID string) ([]model.Attachment, error) {
	if _, err := s.tasks.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	items, err := s.evidence.ListAttachments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, a := range items {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load uploaders: %w", err)
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range items {
		items[i].User = byID[items[i].UserID]
	}
	return items, nil
}

// AddVerification 记录调用方对任务的签名验证。
//
// 签名必须能恢复出调用方钱包；同一签名在去重窗口内重复提交返回 ErrConflict。
// 不做链上校验，verified_on_chain 恒为 false。
func (s *EvidenceService) AddVerification(ctx context.Context, actor Actor, taskID string, in VerificationInput) (*model.Verification, error) {
	if _, err := s.tasks.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if strings.TrimSpace(in.Signature) == "" {
		return nil, fmt.Errorf("%w: signature is required", ErrValidation)
	}

	recovered, err := s.verifier.Recover(in.Message, in.Signature)
	if err != nil || !walletsig.SameAddress(recovered, actor.WalletAddress) {
		return nil, ErrInvalidSignature
	}

	claimed := false
	if s.dedup != nil {
		dup, err := s.dedup.Claim(ctx, signatureDedupScope, in.Signature)
		if err != nil {
			// Redis 不可用时放行，唯一性退化为不保证
			s.logger.Warn("signature dedup failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
		} else if dup {
			return nil, fmt.Errorf("%w: signature already submitted", ErrConflict)
		} else {
			claimed = true
		}
	}

	v := &model.Verification{
		ID:              newID("ver_"),
		TaskID:          taskID,
		UserID:          actor.UserID,
		WalletAddress:   actor.WalletAddress,
		Message:         in.Message,
		Signature:       in.Signature,
		VerifiedOnChain: false,
		TxHash:          in.TxHash,
		VerifiedAt:      s.now().UTC(),
	}
	if err := s.evidence.AddVerification(ctx, v); err != nil {
		if claimed {
			if relErr := s.dedup.Release(ctx, signatureDedupScope, in.Signature); relErr != nil {
				s.logger.Warn("release signature dedup failed", slog.String("error", relErr.Error()))
			}
		}
		return nil, fmt.Errorf("add verification: %w", err)
	}
	return v, nil
}

// ListVerifications 列出任务的验证记录。
func (s *EvidenceService) ListVerifications(ctx context.Context, actor Actor, taskID string) ([]model.Verification, error) {
	if _, err := s.tasks.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	items, err := s.evidence.ListVerifications(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return items, nil
}

// PresignUpload 生成附件直传地址。上传完成后客户端仍需调用 AddAttachment 登记。
func (s *EvidenceService) PresignUpload(ctx context.Context, actor Actor, taskID string, in UploadURLInput) (*objstore.UploadURL, error) {
	if s.presigner == nil {
		return nil, fmt.Errorf("%w: object storage not configured", ErrUnavailable)
	}
	if _, err := s.tasks.GetTask(ctx, actor, taskID); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.FileName)); n < 1 || n > 255 {
		return nil, fmt.Errorf("%w: file_name must be 1-255 characters", ErrValidation)
	}
	u, err := s.presigner.PresignUpload(ctx, taskID, in.FileName, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return u, nil
}
