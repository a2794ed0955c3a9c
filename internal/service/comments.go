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

// CommentService 管理任务评论。
//
// 读写评论需要对父任务有访问权：群组任务看实时成员关系，
// 个人任务要求 user_id 与钱包同时匹配。
type CommentService struct {
	comments CommentStore
	tasks    TaskStore
	members  MemberStore
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewCommentService(comments CommentStore, tasks TaskStore, members MemberStore, audit AuditRecorder, logger *slog.Logger) *CommentService {
	if audit == nil {
		audit = noopAudit{}
	}
	return &CommentService{
		comments: comments,
		tasks:    tasks,
		members:  members,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateCommentInput 发表评论参数。
type CreateCommentInput struct {
	TaskID             string  `json:"task_id"`
	Content            string  `json:"content"`
	RepliesToCommentID *string `json:"replies_to_comment_id"`
}

// CommentPatch 评论可修改字段。
type CommentPatch struct {
	Content *string `json:"content"`
}

// CreateComment 在任务下发表评论或回复。
func (s *CommentService) CreateComment(ctx context.Context, actor Actor, in CreateCommentInput) (*model.Comment, error) {
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	task, err := s.loadTask(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, actor, task); err != nil {
		return nil, err
	}

	var replyTo *string
	if in.RepliesToCommentID != nil && *in.RepliesToCommentID != "" {
		parent, err := s.comments.FindByID(ctx, *in.RepliesToCommentID)
		if err != nil {
			return nil, fmt.Errorf("load parent comment: %w", err)
		}
		if parent == nil || parent.TaskID != task.TaskID {
			return nil, fmt.Errorf("%w: replied comment not found on this task", ErrNotFound)
		}
		id := parent.ID
		replyTo = &id
	}

	now := s.now().UTC()
	c := &model.Comment{
		ID:                 newID("cmt_"),
		TaskID:             task.TaskID,
		UserID:             actor.UserID,
		WalletAddress:      actor.WalletAddress,
		Content:            content,
		RepliesToCommentID: replyTo,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.audit.Record(actor.audit("create_comment", c.ID))
	return c, nil
}

// ListComments 按创建时间倒序列出任务评论。
func (s *CommentService) ListComments(ctx context.Context, actor Actor, taskID string) ([]model.Comment, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, actor, task); err != nil {
		return nil, err
	}
	items, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return items, nil
}

// GetComment 读取单条评论。
func (s *CommentService) GetComment(ctx context.Context, actor Actor, commentID string) (*model.Comment, error) {
	c, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	task, err := s.loadTask(ctx, c.TaskID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccess(ctx, actor, task); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateComment 仅作者可编辑，编辑后 is_edited 置为 true。
func (s *CommentService) UpdateComment(ctx context.Context, actor Actor, commentID string, patch CommentPatch) (*model.Comment, error) {
	c, err := s.load(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: only the author can edit this comment", ErrForbidden)
	}
	if patch.Content != nil {
		content, err := validateContent(*patch.Content)
		if err != nil {
			return nil, err
		}
		c.Content = content
	}
	c.IsEdited = true
	c.UpdatedAt = s.now().UTC()
	if err := s.comments.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	s.audit.Record(actor.audit("update_comment", c.ID))
	return c, nil
}

// DeleteComment 作者或群组 owner 可删除，admin 不行。
func (s *CommentService) DeleteComment(ctx context.Context, actor Actor, commentID string) error {
	c, err := s.load(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID != actor.UserID {
		task, err := s.loadTask(ctx, c.TaskID)
		if err != nil {
			return err
		}
		if !task.IsGroupTask() {
			return fmt.Errorf("%w: only the author can delete this comment", ErrForbidden)
		}
		m, err := s.members.Find(ctx, task.GroupID, actor.WalletAddress)
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if m == nil || m.Role != model.RoleOwner {
			return fmt.Errorf("%w: only the author or group owner can delete this comment", ErrForbidden)
		}
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	s.audit.Record(actor.audit("delete_comment", commentID))
	return nil
}

func (s *CommentService) checkAccess(ctx context.Context, actor Actor, task *model.Task) error {
	if task.IsGroupTask() {
		m, err := s.members.Find(ctx, task.GroupID, actor.WalletAddress)
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if m == nil {
			return fmt.Errorf("%w: not a member of this group", ErrForbidden)
		}
		return nil
	}
	if task.UserID != actor.UserID || task.WalletAddress != actor.WalletAddress {
		return fmt.Errorf("%w: no access to this task", ErrForbidden)
	}
	return nil
}

func (s *CommentService) load(ctx context.Context, id string) (*model.Comment, error) {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load comment: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: comment %s", ErrNotFound, id)
	}
	return c, nil
}

func (s *CommentService) loadTask(ctx context.Context, taskID string) (*model.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("%w: task_id is required", ErrValidation)
	}
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return task, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < 1 || n > 2000 {
		return "", fmt.Errorf("%w: content must be 1-2000 characters", ErrValidation)
	}
	return content, nil
}
