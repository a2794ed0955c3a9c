package store

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

// TaskStore 任务表访问。
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) Create(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Create(task).Error
}

// FindByID 不存在返回 (nil, nil)。
func (s *TaskStore) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).Where("task_id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List 按字段过滤，条件之间为 AND，空字段忽略。
func (s *TaskStore) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	query := s.db.WithContext(ctx).Model(&model.Task{})
	if filter.WalletAddress != "" {
		query = query.Where("wallet_address = ?", filter.WalletAddress)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.GroupID != "" {
		query = query.Where("group_id = ?", filter.GroupID)
	}
	if len(filter.GroupIDs) > 0 {
		query = query.Where("group_id IN ?", filter.GroupIDs)
	}

	tasks := []model.Task{}
	if err := query.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update 保存可修改字段与派生字段。
func (s *TaskStore) Update(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Model(task).
		Select("title", "description", "status", "priority", "tags", "due_date", "metadata",
			"is_completed", "color_code", "completed_at", "updated_at").
		Updates(task).Error
}

// DeleteCascade 在一个事务中删除任务及其附件、验证记录和评论。
func (s *TaskStore) DeleteCascade(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.Verification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return tx.Where("task_id = ?", id).Delete(&model.Task{}).Error
	})
}
