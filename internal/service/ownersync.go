package service

import (
	"context"
	"fmt"
	"log/slog"

	"taskhub/internal/model"
)

// OwnerSync 补齐缺失的 owner 成员记录。
//
// 早期数据中部分群组只写了 groups 表，创建者在 group_members 中没有记录，
// 导致其无法通过成员权限检查。该工具离线运行，可重复执行。
type OwnerSync struct {
	groups  GroupStore
	members MemberStore
	users   UserStore
	logger  *slog.Logger
}

func NewOwnerSync(groups GroupStore, members MemberStore, users UserStore, logger *slog.Logger) *OwnerSync {
	return &OwnerSync{groups: groups, members: members, users: users, logger: logger}
}

// SyncReport 一次同步的结果。
type SyncReport struct {
	Scanned  int      `json:"scanned"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	GroupIDs []string `json:"group_ids"`
}

// Run 为每个缺少 owner 成员记录的群组插入一条，joined_at 取群组创建时间。
// dryRun 为 true 时只报告不写入。
func (s *OwnerSync) Run(ctx context.Context, dryRun bool) (*SyncReport, error) {
	groups, err := s.groups.ListWithoutOwnerMembership(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups without owner: %w", err)
	}

	report := &SyncReport{Scanned: len(groups), GroupIDs: []string{}}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		wallet := NormalizeWallet(g.WalletAddress)
		if wallet == "" {
			s.logger.Warn("group has no owner wallet", slog.String("group_id", g.GroupID))
			report.Skipped++
			continue
		}
		if dryRun {
			report.GroupIDs = append(report.GroupIDs, g.GroupID)
			continue
		}

		userID := ""
		if u, err := s.users.FindByWallet(ctx, wallet); err != nil {
			return report, fmt.Errorf("load owner user: %w", err)
		} else if u != nil {
			userID = u.ID
		}

		m := &model.Membership{
			ID:            newID("mem_"),
			GroupID:       g.GroupID,
			UserID:        userID,
			WalletAddress: wallet,
			Role:          model.RoleOwner,
			Permissions:   PermissionsForRole(model.RoleOwner),
			JoinedAt:      g.CreatedAt,
			LastActiveAt:  g.CreatedAt,
		}
		inserted, err := s.members.InsertIfAbsent(ctx, m)
		if err != nil {
			return report, fmt.Errorf("insert owner membership for %s: %w", g.GroupID, err)
		}
		if !inserted {
			report.Skipped++
			continue
		}
		report.Inserted++
		report.GroupIDs = append(report.GroupIDs, g.GroupID)
		s.logger.Info("owner membership inserted", slog.String("group_id", g.GroupID), slog.String("wallet", wallet))
	}
	return report, nil
}
