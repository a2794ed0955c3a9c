package service

import (
	"context"
	"strings"
	"time"

	"taskhub/internal/model"

	"github.com/google/uuid"
)

// 以下接口由 internal/store 与 internal/pkg 中的实现满足。
// 查找类方法在记录不存在时返回 (nil, nil)。

type UserStore interface {
	FindByWallet(ctx context.Context, wallet string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type GroupStore interface {
	CreateWithOwner(ctx context.Context, group *model.Group, owner *model.Membership) error
	FindByID(ctx context.Context, id string) (*model.Group, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Group, error)
	List(ctx context.Context, filter model.GroupFilter) ([]model.Group, error)
	Update(ctx context.Context, group *model.Group) error
	DeleteCascade(ctx context.Context, id string) error
	ListWithoutOwnerMembership(ctx context.Context) ([]model.Group, error)
}

type MemberStore interface {
	Find(ctx context.Context, groupID, wallet string) (*model.Membership, error)
	FindByID(ctx context.Context, id string) (*model.Membership, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.Membership, error)
	ListByWallet(ctx context.Context, wallet string) ([]model.Membership, error)
	InsertIfAbsent(ctx context.Context, m *model.Membership) (bool, error)
	Update(ctx context.Context, m *model.Membership) error
	Delete(ctx context.Context, id string) error
}

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task) error
	DeleteCascade(ctx context.Context, id string) error
}

type EvidenceStore interface {
	AddAttachment(ctx context.Context, a *model.Attachment) error
	ListAttachments(ctx context.Context, taskID string) ([]model.Attachment, error)
	AddVerification(ctx context.Context, v *model.Verification) error
	ListVerifications(ctx context.Context, taskID string) ([]model.Verification, error)
	CountAttachments(ctx context.Context, taskID, userID string) (int64, error)
	CountVerifications(ctx context.Context, taskID, userID string) (int64, error)
	TasksWithAttachments(ctx context.Context, taskIDs []string) (map[string]bool, error)
}

type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id string) (*model.Comment, error)
	ListByTask(ctx context.Context, taskID string) ([]model.Comment, error)
	Update(ctx context.Context, c *model.Comment) error
	Delete(ctx context.Context, id string) error
}

type ChallengeStore interface {
	Issue(ctx context.Context, wallet string) (*model.Challenge, error)
	Get(ctx context.Context, wallet string) (*model.Challenge, error)
	Consume(ctx context.Context, wallet, nonce string) (bool, error)
}

// SignatureVerifier 从 personal_sign 签名恢复签名地址。
type SignatureVerifier interface {
	Recover(message, signature string) (string, error)
}

type TokenIssuer interface {
	Issue(userID, walletAddress string) (string, error)
}

// Deduper 时间窗口内的重复提交检测。
type Deduper interface {
	Claim(ctx context.Context, scope, value string) (bool, error)
	Release(ctx context.Context, scope, value string) error
}

// AuditRecorder 尽力而为的审计写入，不返回错误。
type AuditRecorder interface {
	Record(entry model.AuditEntry) bool
}

// Actor 是当前请求的调用方身份与客户端信息。
type Actor struct {
	UserID        string
	WalletAddress string
	IP            string
	UserAgent     string
}

func (a Actor) audit(action, targetID string) model.AuditEntry {
	return model.AuditEntry{
		UserID:        a.UserID,
		WalletAddress: a.WalletAddress,
		Action:        action,
		TargetID:      targetID,
		IPAddress:     a.IP,
		UserAgent:     a.UserAgent,
	}
}

// NormalizeWallet 统一钱包地址格式（去空白、小写）。
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type noopAudit struct{}

func (noopAudit) Record(model.AuditEntry) bool { return false }
