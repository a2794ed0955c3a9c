package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"taskhub/internal/model"
	"taskhub/internal/pkg/metrics"

	"gorm.io/datatypes"
)

// ColorForPriority 按优先级返回颜色编码，是优先级的纯函数。
func ColorForPriority(priority string) string {
	switch priority {
	case model.PriorityHigh:
		return "#ef4444"
	case model.PriorityMedium:
		return "#f59e0b"
	case model.PriorityLow:
		return "#10b981"
	default:
		return "#6b7280"
	}
}

// DeriveTaskFields 重新计算派生字段。completed_at 首次完成时写入，之后保留。
func DeriveTaskFields(t *model.Task, now time.Time) {
	t.IsCompleted = t.Status == model.TaskStatusCompleted
	if t.IsCompleted && t.CompletedAt == nil {
		at := now.UTC()
		t.CompletedAt = &at
	}
	t.ColorCode = ColorForPriority(t.Priority)
}

// TaskService 负责任务的增删改查、授权和完成闸门。
//
// 个人任务只有其 user_id 可读写；群组任务任何成员可读，
// owner/admin 可创建和修改，只有 owner 可删除。
type TaskService struct {
	tasks    TaskStore
	members  MemberStore
	evidence EvidenceStore
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewTaskService(tasks TaskStore, members MemberStore, evidence EvidenceStore, audit AuditRecorder, logger *slog.Logger) *TaskService {
	if audit == nil {
		audit = noopAudit{}
	}
	return &TaskService{
		tasks:    tasks,
		members:  members,
		evidence: evidence,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateTaskInput 创建任务参数。GroupID 为空时创建个人任务，归属取自调用方令牌。
type CreateTaskInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Priority    string         `json:"priority"`
	Tags        []string       `json:"tags"`
	DueDate     *time.Time     `json:"due_date"`
	Metadata    datatypes.JSON `json:"metadata"`
	GroupID     string         `json:"group_id"`
}

// TaskPatch 任务可修改字段。归属、ID 与时间戳不在其中。
type TaskPatch struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	Priority    *string        `json:"priority"`
	Tags        *[]string      `json:"tags"`
	DueDate     *time.Time     `json:"due_date"`
	Metadata    datatypes.JSON `json:"metadata"`
}

// ListTasksQuery 列表过滤条件，均为空时返回调用方的个人任务。
type ListTasksQuery struct {
	WalletAddress string
	UserID        string
	GroupID       string
}

// CreateTask 创建个人或群组任务。
func (s *TaskService) CreateTask(ctx context.Context, actor Actor, in CreateTaskInput) (*model.Task, error) {
	now := s.now().UTC()
	task := &model.Task{
		TaskID:      newID("task_"),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Tags:        normalizeTags(in.Tags),
		DueDate:     utcPtr(in.DueDate),
		Metadata:    in.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if in.GroupID != "" {
		m, err := s.members.Find(ctx, in.GroupID, actor.WalletAddress)
		if err != nil {
			return nil, fmt.Errorf("load membership: %w", err)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: not a member of this group", ErrForbidden)
		}
		if m.Role != model.RoleOwner && m.Role != model.RoleAdmin {
			return nil, fmt.Errorf("%w: only owner or admin can create group tasks", ErrForbidden)
		}
		task.GroupID = in.GroupID
	} else {
		if actor.UserID == "" || actor.WalletAddress == "" {
			return nil, fmt.Errorf("%w: user_id and wallet_address required for personal tasks", ErrValidation)
		}
		task.UserID = actor.UserID
		task.WalletAddress = actor.WalletAddress
	}

	// 新任务没有任何凭证，不能直接以 completed 创建
	if task.Status == model.TaskStatusCompleted {
		metrics.TaskCompletionsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: attachment and verification required before completion", ErrPreconditionFailed)
	}

	DeriveTaskFields(task, now)
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.audit.Record(actor.audit("create_task", task.TaskID))
	return task, nil
}

// GetTask 读取任务并校验读权限。
func (s *TaskService) GetTask(ctx context.Context, actor Actor, taskID string) (*model.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, task); err != nil {
		return nil, err
	}
	DeriveTaskFields(task, s.now())
	return task, nil
}

// ListTasks 按字段过滤（AND），只返回调用方有读权限的任务。
func (s *TaskService) ListTasks(ctx context.Context, actor Actor, q ListTasksQuery) ([]model.Task, error) {
	filter := model.TaskFilter{
		WalletAddress: NormalizeWallet(q.WalletAddress),
		UserID:        q.UserID,
		GroupID:       q.GroupID,
	}
	if filter.WalletAddress == "" && filter.UserID == "" && filter.GroupID == "" {
		filter.UserID = actor.UserID
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	now := s.now()
	memberOf := make(map[string]bool)
	visible := make([]model.Task, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if t.IsGroupTask() {
			ok, seen := memberOf[t.GroupID]
			if !seen {
				m, err := s.members.Find(ctx, t.GroupID, actor.WalletAddress)
				if err != nil {
					return nil, fmt.Errorf("load membership: %w", err)
				}
				ok = m != nil
				memberOf[t.GroupID] = ok
			}
			if !ok {
				continue
			}
		} else if t.UserID != actor.UserID {
			continue
		}
		DeriveTaskFields(t, now)
		visible = append(visible, *t)
	}
	return visible, nil
}

// UpdateTask 部分更新任务。
//
// 将状态设为 completed 时，调用方本人必须已在该任务上提交至少一个附件和一条验证记录。
func (s *TaskService) UpdateTask(ctx context.Context, actor Actor, taskID string, patch TaskPatch) (*model.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(ctx, actor, task); err != nil {
		return nil, err
	}

	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Tags != nil {
		task.Tags = normalizeTags(*patch.Tags)
	}
	if patch.DueDate != nil {
		task.DueDate = utcPtr(patch.DueDate)
	}
	if patch.Metadata != nil {
		task.Metadata = patch.Metadata
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status == model.TaskStatusCompleted {
		if err := s.checkCompletionEvidence(ctx, actor, task.TaskID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	task.UpdatedAt = now
	DeriveTaskFields(task, now)
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.audit.Record(actor.audit("update_task", task.TaskID))
	return task, nil
}

// DeleteTask 删除任务，附件、验证记录与评论一并删除。
func (s *TaskService) DeleteTask(ctx context.Context, actor Actor, taskID string) error {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.authorizeDelete(ctx, actor, task); err != nil {
		return err
	}
	if err := s.tasks.DeleteCascade(ctx, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.audit.Record(actor.audit("delete_task", taskID))
	s.logger.Info("task deleted", slog.String("task_id", taskID), slog.String("user_id", actor.UserID))
	return nil
}

func (s *TaskService) checkCompletionEvidence(ctx context.Context, actor Actor, taskID string) error {
	attachments, err := s.evidence.CountAttachments(ctx, taskID, actor.UserID)
	if err != nil {
		return fmt.Errorf("count attachments: %w", err)
	}
	verifications, err := s.evidence.CountVerifications(ctx, taskID, actor.UserID)
	if err != nil {
		return fmt.Errorf("count verifications: %w", err)
	}
	if attachments == 0 || verifications == 0 {
		metrics.TaskCompletionsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: attachment and verification required before completion", ErrPreconditionFailed)
	}
	metrics.TaskCompletionsTotal.WithLabelValues("accepted").Inc()
	return nil
}

func (s *TaskService) load(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return task, nil
}

func (s *TaskService) groupRole(ctx context.Context, actor Actor, groupID string) (string, error) {
	m, err := s.members.Find(ctx, groupID, actor.WalletAddress)
	if err != nil {
		return "", fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return "", fmt.Errorf("%w: not a member of this group", ErrForbidden)
	}
	return m.Role, nil
}

func (s *TaskService) authorizeRead(ctx context.Context, actor Actor, task *model.Task) error {
	if !task.IsGroupTask() {
		if task.UserID != actor.UserID {
			return fmt.Errorf("%w: not the owner of this task", ErrForbidden)
		}
		return nil
	}
	_, err := s.groupRole(ctx, actor, task.GroupID)
	return err
}

func (s *TaskService) authorizeWrite(ctx context.Context, actor Actor, task *model.Task) error {
	if !task.IsGroupTask() {
		return s.authorizeRead(ctx, actor, task)
	}
	role, err := s.groupRole(ctx, actor, task.GroupID)
	if err != nil {
		return err
	}
	if role != model.RoleOwner && role != model.RoleAdmin {
		return fmt.Errorf("%w: only owner or admin can update group tasks", ErrForbidden)
	}
	return nil
}

func (s *TaskService) authorizeDelete(ctx context.Context, actor Actor, task *model.Task) error {
	if !task.IsGroupTask() {
		return s.authorizeRead(ctx, actor, task)
	}
	role, err := s.groupRole(ctx, actor, task.GroupID)
	if err != nil {
		return err
	}
	if role != model.RoleOwner {
		return fmt.Errorf("%w: only the group owner can delete group tasks", ErrForbidden)
	}
	return nil
}

func validateTask(t *model.Task) error {
	if n := utf8.RuneCountInString(t.Title); n < 1 || n > 200 {
		return fmt.Errorf("%w: title must be 1-200 characters", ErrValidation)
	}
	if utf8.RuneCountInString(t.Description) > 1000 {
		return fmt.Errorf("%w: description must be at most 1000 characters", ErrValidation)
	}
	switch t.Status {
	case model.TaskStatusPending, model.TaskStatusInProgress, model.TaskStatusCompleted, model.TaskStatusArchived:
	default:
		return fmt.Errorf("%w: invalid status %q", ErrValidation, t.Status)
	}
	switch t.Priority {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, t.Priority)
	}
	if len(t.Tags) < 1 || len(t.Tags) > 5 {
		return fmt.Errorf("%w: tags must contain 1-5 entries", ErrValidation)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
