package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/model"
)

// GroupService 负责群组与成员管理。
//
// 群组的修改与删除只允许创建者钱包执行，不会委托给 admin；
// 成员相关操作依据调用方在该群组中的当前角色实时判定。
type GroupService struct {
	groups  GroupStore
	members MemberStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewGroupService(groups GroupStore, members MemberStore, logger *slog.Logger) *GroupService {
	return &GroupService{
		groups:  groups,
		members: members,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateGroupInput 创建群组参数。
type CreateGroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
	JoinPolicy  string `json:"join_policy"`
}

// GroupPatch 群组可修改字段，nil 表示不修改。
type GroupPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
	JoinPolicy  *string `json:"join_policy"`
}

// ListGroupsQuery 群组列表查询参数。
type ListGroupsQuery struct {
	WalletAddress   string
	WalletAddresses []string
	IsPublic        *bool
}

// CreateGroup 创建群组，并在同一事务中写入创建者的 owner 成员记录。
func (s *GroupService) CreateGroup(ctx context.Context, actor Actor, in CreateGroupInput) (*model.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.JoinPolicy == "" {
		in.JoinPolicy = model.JoinPolicyInviteOnly
	}
	if err := validateGroupFields(in.Name, in.Description, in.JoinPolicy); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	group := &model.Group{
		GroupID:       newID("grp_"),
		WalletAddress: actor.WalletAddress,
		Name:          in.Name,
		Description:   in.Description,
		IsPublic:      in.IsPublic,
		JoinPolicy:    in.JoinPolicy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	owner := &model.Membership{
		ID:            newID("mem_"),
		GroupID:       group.GroupID,
		UserID:        actor.UserID,
		WalletAddress: actor.WalletAddress,
		Role:          model.RoleOwner,
		Permissions:   PermissionsForRole(model.RoleOwner),
		JoinedAt:      group.CreatedAt,
		LastActiveAt:  now,
	}
	if err := s.groups.CreateWithOwner(ctx, group, owner); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.logger.Info("group created", slog.String("group_id", group.GroupID), slog.String("owner", actor.WalletAddress))
	return group, nil
}

// GetGroup 按 ID 查询群组。
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}
	if group == nil {
		return nil, fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}
	return group, nil
}

// ListGroups 按条件列出群组。
//
// is_public=true 时只按公开过滤；未给出任何钱包条件时使用调用方钱包。
func (s *GroupService) ListGroups(ctx context.Context, actor Actor, q ListGroupsQuery) ([]model.Group, error) {
	filter := model.GroupFilter{IsPublic: q.IsPublic}
	if q.IsPublic == nil || !*q.IsPublic {
		wallets := make([]string, 0, len(q.WalletAddresses)+1)
		if q.WalletAddress != "" {
			wallets = append(wallets, q.WalletAddress)
		}
		wallets = append(wallets, q.WalletAddresses...)
		if len(wallets) == 0 {
			wallets = append(wallets, actor.WalletAddress)
		}
		for i := range wallets {
			wallets[i] = NormalizeWallet(wallets[i])
		}
		filter.WalletAddresses = wallets
	}
	groups, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// UpdateGroup 仅创建者可修改。
func (s *GroupService) UpdateGroup(ctx context.Context, actor Actor, groupID string, patch GroupPatch) (*model.Group, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.WalletAddress != actor.WalletAddress {
		return nil, fmt.Errorf("%w: only owner can update group", ErrForbidden)
	}

	if patch.Name != nil {
		group.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		group.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		group.IsPublic = *patch.IsPublic
	}
	if patch.JoinPolicy != nil {
		group.JoinPolicy = *patch.JoinPolicy
	}
	if err := validateGroupFields(group.Name, group.Description, group.JoinPolicy); err != nil {
		return nil, err
	}
	group.UpdatedAt = s.now().UTC()

	if err := s.groups.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	return group, nil
}

// DeleteGroup 仅创建者可删除，成员记录一并删除。
func (s *GroupService) DeleteGroup(ctx context.Context, actor Actor, groupID string) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.WalletAddress != actor.WalletAddress {
		return fmt.Errorf("%w: only owner can delete group", ErrForbidden)
	}
	if err := s.groups.DeleteCascade(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	s.logger.Info("group deleted", slog.String("group_id", groupID))
	return nil
}

func validateGroupFields(name, description, joinPolicy string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return fmt.Errorf("%w: name must be 1-100 characters", ErrValidation)
	}
	if utf8.RuneCountInString(description) > 500 {
		return fmt.Errorf("%w: description must be at most 500 characters", ErrValidation)
	}
	switch joinPolicy {
	case model.JoinPolicyInviteOnly, model.JoinPolicyRequestToJoin, model.JoinPolicyOpen:
	default:
		return fmt.Errorf("%w: invalid join_policy %q", ErrValidation, joinPolicy)
	}
	return nil
}
