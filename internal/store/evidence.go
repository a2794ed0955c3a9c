package store

import (
	"context"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

// EvidenceStore 附件与验证记录（完成凭证）访问。
type EvidenceStore struct {
	db *gorm.DB
}

func NewEvidenceStore(db *gorm.DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) AddAttachment(ctx context.Context, a *model.Attachment) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *EvidenceStore) ListAttachments(ctx context.Context, taskID string) ([]model.Attachment, error) {
	items := []model.Attachment{}
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("uploaded_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *EvidenceStore) AddVerification(ctx context.Context, v *model.Verification) error {
	return s.db.WithContext(ctx).Create(v).Error
}

func (s *EvidenceStore) ListVerifications(ctx context.Context, taskID string) ([]model.Verification, error) {
	items := []model.Verification{}
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("verified_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// CountAttachments 统计任务附件数量，userID 为空时统计全部上传者。
func (s *EvidenceStore) CountAttachments(ctx context.Context, taskID, userID string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Attachment{}).Where("task_id = ?", taskID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountVerifications 统计任务验证记录数量，userID 为空时统计全部。
func (s *EvidenceStore) CountVerifications(ctx context.Context, taskID, userID string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Verification{}).Where("task_id = ?", taskID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// TasksWithAttachments 返回给定任务中至少有一个附件的任务 ID 集合。
func (s *EvidenceStore) TasksWithAttachments(ctx context.Context, taskIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(taskIDs) == 0 {
		return result, nil
	}
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Attachment{}).
		Where("task_id IN ?", taskIDs).
		Distinct("task_id").
		Pluck("task_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}
