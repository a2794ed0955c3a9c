package store

import (
	"context"
	"errors"
	"time"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

// UserStore 用户表访问。
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByWallet 按钱包地址查找，不存在返回 (nil, nil)。
func (s *UserStore) FindByWallet(ctx context.Context, wallet string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("wallet_address = ?", wallet).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID 按 ID 查找，不存在返回 (nil, nil)。
func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Create 插入新用户。钱包地址重复时返回 gorm.ErrDuplicatedKey。
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// Update 保存可修改字段。
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Model(user).
		Select("display_name", "avatar_url", "preferences", "updated_at").
		Updates(user).Error
}

func (s *UserStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
