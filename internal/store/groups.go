package store

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

// GroupStore 群组表访问，成员级联操作在同一事务中完成。
type GroupStore struct {
	db *gorm.DB
}

func NewGroupStore(db *gorm.DB) *GroupStore {
	return &GroupStore{db: db}
}

// CreateWithOwner 在一个事务中写入群组和 owner 成员记录。
func (s *GroupStore) CreateWithOwner(ctx context.Context, group *model.Group, owner *model.Membership) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		return tx.Create(owner).Error
	})
}

// FindByID 不存在返回 (nil, nil)。
func (s *GroupStore) FindByID(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	err := s.db.WithContext(ctx).Where("group_id = ?", id).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupStore) FindByIDs(ctx context.Context, ids []string) ([]model.Group, error) {
	groups := []model.Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	if err := s.db.WithContext(ctx).Where("group_id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// List 按过滤条件查询，条件之间为 AND。
func (s *GroupStore) List(ctx context.Context, filter model.GroupFilter) ([]model.Group, error) {
	query := s.db.WithContext(ctx).Model(&model.Group{})
	if len(filter.WalletAddresses) == 1 {
		query = query.Where("wallet_address = ?", filter.WalletAddresses[0])
	} else if len(filter.WalletAddresses) > 1 {
		query = query.Where("wallet_address IN ?", filter.WalletAddresses)
	}
	if filter.IsPublic != nil {
		query = query.Where("is_public = ?", *filter.IsPublic)
	}

	groups := []model.Group{}
	if err := query.Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// Update 保存可修改字段。
func (s *GroupStore) Update(ctx context.Context, group *model.Group) error {
	return s.db.WithContext(ctx).Model(group).
		Select("name", "description", "is_public", "join_policy", "updated_at").
		Updates(group).Error
}

// DeleteCascade 删除群组及其全部成员记录。
func (s *GroupStore) DeleteCascade(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&model.Membership{}).Error; err != nil {
			return err
		}
		return tx.Where("group_id = ?", id).Delete(&model.Group{}).Error
	})
}

// ListWithoutOwnerMembership 返回创建者没有成员记录的群组。
func (s *GroupStore) ListWithoutOwnerMembership(ctx context.Context) ([]model.Group, error) {
	groups := []model.Group{}
	err := s.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("NOT EXISTS (?)",
			s.db.Model(&model.Membership{}).
				Select("1").
				Where("group_members.group_id = task_groups.group_id AND group_members.wallet_address = task_groups.wallet_address"),
		).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}
