package service

import (
	"context"
	"fmt"
	"log/slog"

	"taskhub/internal/model"
)

// AddMemberInput 邀请成员参数。
type AddMemberInput struct {
	GroupID       string `json:"group_id"`
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
}

// MemberPatch 成员可修改字段。
type MemberPatch struct {
	Role *string `json:"role"`
}

// AddMember 邀请成员加入群组。
//
// 调用方需具备 invite_member 权限；不能添加 owner；
// 非公开群组不能以 guest 身份加入；同一钱包重复加入返回 ErrConflict。
func (s *GroupService) AddMember(ctx context.Context, actor Actor, in AddMemberInput) (*model.Membership, error) {
	in.WalletAddress = NormalizeWallet(in.WalletAddress)
	if in.WalletAddress == "" {
		return nil, fmt.Errorf("%w: wallet_address is required", ErrValidation)
	}
	if in.Role == "" {
		in.Role = model.RoleMember
	}
	if !ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, in.Role)
	}
	if in.Role == model.RoleOwner {
		return nil, fmt.Errorf("%w: a group has exactly one owner", ErrValidation)
	}

	group, err := s.GetGroup(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	caller, err := s.members.Find(ctx, group.GroupID, actor.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if !Can(caller, PermInviteMember) {
		return nil, fmt.Errorf("%w: invite_member permission required", ErrForbidden)
	}
	if in.Role == model.RoleGuest && !group.IsPublic {
		return nil, fmt.Errorf("%w: cannot join as guest: group is private", ErrForbidden)
	}

	now := s.now().UTC()
	m := &model.Membership{
		ID:            newID("mem_"),
		GroupID:       group.GroupID,
		UserID:        in.UserID,
		WalletAddress: in.WalletAddress,
		Role:          in.Role,
		Permissions:   PermissionsForRole(in.Role),
		JoinedAt:      now,
		LastActiveAt:  now,
	}
	return s.insertMember(ctx, m)
}

// JoinGroup 自助加入公开群组，角色固定为 guest（不参考 join_policy）。
func (s *GroupService) JoinGroup(ctx context.Context, actor Actor, groupID string) (*model.Membership, error) {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsPublic {
		return nil, fmt.Errorf("%w: group is private, cannot join directly", ErrForbidden)
	}

	now := s.now().UTC()
	m := &model.Membership{
		ID:            newID("mem_"),
		GroupID:       group.GroupID,
		UserID:        actor.UserID,
		WalletAddress: actor.WalletAddress,
		Role:          model.RoleGuest,
		Permissions:   PermissionsForRole(model.RoleGuest),
		JoinedAt:      now,
		LastActiveAt:  now,
	}
	return s.insertMember(ctx, m)
}

func (s *GroupService) insertMember(ctx context.Context, m *model.Membership) (*model.Membership, error) {
	inserted, err := s.members.InsertIfAbsent(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	if !inserted {
		return nil, fmt.Errorf("%w: wallet is already a member of this group", ErrConflict)
	}
	s.logger.Info("member added",
		slog.String("group_id", m.GroupID),
		slog.String("wallet", m.WalletAddress),
		slog.String("role", m.Role))
	return m, nil
}

// ListMembers 列出群组成员。
func (s *GroupService) ListMembers(ctx context.Context, groupID string) ([]model.Membership, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.members.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// UpdateMember 按 (group_id, wallet) 更新成员。
//
// 每次更新都刷新 last_active_at；修改角色需要 change_role 权限并重新计算权限集。
// owner 的角色不可修改，也不能把成员提升为 owner。
func (s *GroupService) UpdateMember(ctx context.Context, actor Actor, groupID, wallet string, patch MemberPatch) (*model.Membership, error) {
	wallet = NormalizeWallet(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet_address is required", ErrValidation)
	}
	m, err := s.members.Find(ctx, groupID, wallet)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: member not found", ErrNotFound)
	}

	if patch.Role != nil && *patch.Role != m.Role {
		role := *patch.Role
		if !ValidRole(role) {
			return nil, fmt.Errorf("%w: invalid role %q", ErrValidation, role)
		}
		caller, err := s.members.Find(ctx, groupID, actor.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("load membership: %w", err)
		}
		if !Can(caller, PermChangeRole) {
			return nil, fmt.Errorf("%w: change_role permission required", ErrForbidden)
		}
		if m.Role == model.RoleOwner || role == model.RoleOwner {
			return nil, fmt.Errorf("%w: owner role cannot be transferred", ErrForbidden)
		}
		m.Role = role
	} else if m.WalletAddress != actor.WalletAddress {
		// 不改角色时只允许本人或有 change_role 权限者刷新
		caller, err := s.members.Find(ctx, groupID, actor.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("load membership: %w", err)
		}
		if !Can(caller, PermChangeRole) {
			return nil, fmt.Errorf("%w: cannot update another member", ErrForbidden)
		}
	}

	m.Permissions = PermissionsForRole(m.Role)
	m.LastActiveAt = s.now().UTC()
	if err := s.members.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return m, nil
}

// RemoveMember 移除成员：需要 remove_member 权限，或本人退出。owner 不可移除。
func (s *GroupService) RemoveMember(ctx context.Context, actor Actor, memberID string) error {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return fmt.Errorf("%w: member not found", ErrNotFound)
	}
	if m.Role == model.RoleOwner {
		return fmt.Errorf("%w: owner membership cannot be removed", ErrForbidden)
	}
	if m.WalletAddress != actor.WalletAddress {
		caller, err := s.members.Find(ctx, m.GroupID, actor.WalletAddress)
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if !Can(caller, PermRemoveMember) {
			return fmt.Errorf("%w: remove_member permission required", ErrForbidden)
		}
	}
	if err := s.members.Delete(ctx, memberID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.logger.Info("member removed", slog.String("group_id", m.GroupID), slog.String("wallet", m.WalletAddress))
	return nil
}
