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

// UserService 提供用户资料查询、修改与个人任务统计。
type UserService struct {
	users    UserStore
	groups   GroupStore
	members  MemberStore
	tasks    TaskStore
	evidence EvidenceStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewUserService(users UserStore, groups GroupStore, members MemberStore, tasks TaskStore, evidence EvidenceStore, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		groups:   groups,
		members:  members,
		tasks:    tasks,
		evidence: evidence,
		logger:   logger,
		now:      time.Now,
	}
}

// UserPatch 用户可修改字段。钱包地址、角色与创建时间不可修改。
type UserPatch struct {
	DisplayName *string           `json:"display_name"`
	AvatarURL   *string           `json:"avatar_url"`
	Preferences *PreferencesPatch `json:"preferences"`
}

// PreferencesPatch 偏好的部分更新，与现有值合并。
type PreferencesPatch struct {
	Theme          *string `json:"theme"`
	Notifications  *bool   `json:"notifications"`
	WebPushEnabled *bool   `json:"web_push_enabled"`
	Language       *string `json:"language"`
}

func (p PreferencesPatch) apply(dst *model.Preferences) {
	if p.Theme != nil {
		dst.Theme = *p.Theme
	}
	if p.Notifications != nil {
		dst.Notifications = *p.Notifications
	}
	if p.WebPushEnabled != nil {
		dst.WebPushEnabled = *p.WebPushEnabled
	}
	if p.Language != nil {
		dst.Language = *p.Language
	}
}

// GetUser 返回用户资料及其所在全部群组的任务统计。
func (s *UserService) GetUser(ctx context.Context, wallet string) (*model.UserProfile, error) {
	user, err := s.loadByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

// ListUsers 返回所有用户及各自的统计。
func (s *UserService) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]model.UserProfile, 0, len(users))
	for i := range users {
		p, err := s.buildProfile(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// UpdateUser 修改本人资料，preferences 与现有值合并。
func (s *UserService) UpdateUser(ctx context.Context, actor Actor, wallet string, patch UserPatch) (*model.User, error) {
	user, err := s.loadOwn(ctx, actor, wallet)
	if err != nil {
		return nil, err
	}
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if utf8.RuneCountInString(name) > 50 {
			return nil, fmt.Errorf("%w: display_name must be at most 50 characters", ErrValidation)
		}
		user.DisplayName = name
	}
	if patch.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*patch.AvatarURL)
	}
	if patch.Preferences != nil {
		patch.Preferences.apply(&user.Preferences)
	}
	return s.save(ctx, user)
}

// UpdatePreferences 只修改偏好。
func (s *UserService) UpdatePreferences(ctx context.Context, actor Actor, wallet string, patch PreferencesPatch) (*model.User, error) {
	user, err := s.loadOwn(ctx, actor, wallet)
	if err != nil {
		return nil, err
	}
	patch.apply(&user.Preferences)
	return s.save(ctx, user)
}

func (s *UserService) save(ctx context.Context, user *model.User) (*model.User, error) {
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *UserService) loadOwn(ctx context.Context, actor Actor, wallet string) (*model.User, error) {
	wallet = NormalizeWallet(wallet)
	if wallet != actor.WalletAddress {
		return nil, fmt.Errorf("%w: can only update your own profile", ErrForbidden)
	}
	return s.loadByWallet(ctx, wallet)
}

func (s *UserService) loadByWallet(ctx context.Context, wallet string) (*model.User, error) {
	wallet = NormalizeWallet(wallet)
	user, err := s.users.FindByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, wallet)
	}
	return user, nil
}

// buildProfile 汇总用户所在群组的任务。
//
// 有附件的任务在统计中按已完成计，只影响返回的副本，不回写存储。
func (s *UserService) buildProfile(ctx context.Context, user *model.User) (*model.UserProfile, error) {
	profile := &model.UserProfile{
		User:           *user,
		GroupsOverview: []model.GroupOverview{},
		UserTasks:      []model.Task{},
	}
	profile.ProfileSummary.LastUpdatedSummary = s.now().UTC().Format(time.RFC3339)

	memberships, err := s.members.ListByWallet(ctx, user.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return profile, nil
	}

	groupIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}
	groups, err := s.groups.FindByIDs(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	groupByID := make(map[string]*model.Group, len(groups))
	for i := range groups {
		groupByID[groups[i].GroupID] = &groups[i]
	}

	var liveGroups []string
	for _, m := range memberships {
		if groupByID[m.GroupID] != nil {
			liveGroups = append(liveGroups, m.GroupID)
		}
	}
	if len(liveGroups) == 0 {
		return profile, nil
	}

	tasks, err := s.tasks.List(ctx, model.TaskFilter{GroupIDs: liveGroups})
	if err != nil {
		return nil, fmt.Errorf("list group tasks: %w", err)
	}
	countByGroup := make(map[string]int)
	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		countByGroup[t.GroupID]++
		taskIDs = append(taskIDs, t.TaskID)
	}
	withAttachments, err := s.evidence.TasksWithAttachments(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}

	for _, m := range memberships {
		g := groupByID[m.GroupID]
		if g == nil {
			continue
		}
		profile.GroupsOverview = append(profile.GroupsOverview, model.GroupOverview{
			GroupID:   g.GroupID,
			GroupName: g.Name,
			Role:      m.Role,
			TaskCount: countByGroup[g.GroupID],
		})
	}

	now := s.now()
	summary := &profile.ProfileSummary
	for _, t := range tasks {
		DeriveTaskFields(&t, now)
		switch {
		case t.Status == model.TaskStatusCompleted || t.IsCompleted:
			summary.CompletedTasks++
		case withAttachments[t.TaskID]:
			summary.CompletedTasks++
			t.IsCompleted = true
		case t.Status == model.TaskStatusInProgress:
			summary.InProgressTasks++
		default:
			summary.PendingTasks++
		}
		profile.UserTasks = append(profile.UserTasks, t)
	}
	summary.TotalTasks = len(tasks)
	if summary.TotalTasks > 0 {
		summary.ProductivityScore = float64(summary.CompletedTasks) / float64(summary.TotalTasks) * 100
	}
	profile.TotalGroupTasks = summary.TotalTasks
	return profile, nil
}
