package store

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

// CommentStore 任务评论表访问。
type CommentStore struct {
	db *gorm.DB
}

func NewCommentStore(db *gorm.DB) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) Create(ctx context.Context, c *model.Comment) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// FindByID 不存在返回 (nil, nil)。
func (s *CommentStore) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByTask 按创建时间倒序返回任务评论。
func (s *CommentStore) ListByTask(ctx context.Context, taskID string) ([]model.Comment, error) {
	comments := []model.Comment{}
	if err := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at DESC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *CommentStore) Update(ctx context.Context, c *model.Comment) error {
	return s.db.WithContext(ctx).Model(c).
		Select("content", "is_edited", "updated_at").
		Updates(c).Error
}

func (s *CommentStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{}).Error
}

// AuditStore 审计日志只追加写入。
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append 实现 audit.Sink。
func (s *AuditStore) Append(ctx context.Context, entry *model.AuditEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
