package store

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

// MemberStore 群组成员表访问。
//
// (group_id, wallet_address) 上有唯一索引 idx_member_group_wallet，
// InsertIfAbsent 在事务内先查后插，并发下由唯一索引兜底。
type MemberStore struct {
	db *gorm.DB
}

func NewMemberStore(db *gorm.DB) *MemberStore {
	return &MemberStore{db: db}
}

// Find 按 (group_id, wallet) 查找成员，不存在返回 (nil, nil)。
func (s *MemberStore) Find(ctx context.Context, groupID, wallet string) (*model.Membership, error) {
	var m model.Membership
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND wallet_address = ?", groupID, wallet).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByID 不存在返回 (nil, nil)。
func (s *MemberStore) FindByID(ctx context.Context, id string) (*model.Membership, error) {
	var m model.Membership
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) ListByGroup(ctx context.Context, groupID string) ([]model.Membership, error) {
	members := []model.Membership{}
	if err := s.db.WithContext(ctx).Where("group_id = ?", groupID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MemberStore) ListByWallet(ctx context.Context, wallet string) ([]model.Membership, error) {
	members := []model.Membership{}
	if err := s.db.WithContext(ctx).Where("wallet_address = ?", wallet).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// InsertIfAbsent 插入成员，已存在时返回 false。
func (s *MemberStore) InsertIfAbsent(ctx context.Context, m *model.Membership) (bool, error) {
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Membership{}).
			Where("group_id = ? AND wallet_address = ?", m.GroupID, m.WalletAddress).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Update 保存角色、权限与活跃时间。
func (s *MemberStore) Update(ctx context.Context, m *model.Membership) error {
	return s.db.WithContext(ctx).Model(m).
		Select("role", "permissions", "last_active_at").
		Updates(m).Error
}

func (s *MemberStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Membership{}).Error
}
