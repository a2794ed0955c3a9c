package model

import (
	"time"

	"gorm.io/datatypes"
)

// 任务状态。
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusArchived   = "archived"
)

// 任务优先级。
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task 表示个人任务或群组任务。
//
// 个人任务设置 UserID + WalletAddress，群组任务设置 GroupID，二者互斥。
// IsCompleted 与 ColorCode 是派生字段，每次读写都会重新计算。
type Task struct {
	TaskID      string         `gorm:"primaryKey;type:varchar(64)" json:"task_id"` // 任务 ID (task_xxx)
	Title       string         `gorm:"type:varchar(200);not null" json:"title"`
	Description string         `gorm:"type:varchar(1000)" json:"description,omitempty"`
	Status      string         `gorm:"type:varchar(16);default:pending;index" json:"status"`
	Priority    string         `gorm:"type:varchar(16);default:medium" json:"priority"`
	Tags        []string       `gorm:"serializer:json" json:"tags"`
	DueDate     *time.Time     `json:"due_date"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"` // 自由结构的扩展信息

	UserID        string `gorm:"type:varchar(64);index" json:"user_id,omitempty"`        // 个人任务所属用户
	WalletAddress string `gorm:"type:varchar(64);index" json:"wallet_address,omitempty"` // 个人任务所属钱包
	GroupID       string `gorm:"type:varchar(64);index" json:"group_id,omitempty"`       // 群组任务所属群组

	IsCompleted bool       `json:"is_completed"`
	ColorCode   string     `gorm:"type:varchar(8)" json:"color_code"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"` // 首次完成时间，之后状态变化也不清空
}

// IsGroupTask 判断是否为群组任务。
func (t *Task) IsGroupTask() bool {
	return t.GroupID != ""
}

// TaskFilter 任务列表查询条件（AND 语义，空字段忽略）。
type TaskFilter struct {
	WalletAddress string
	UserID        string
	GroupID       string
	GroupIDs      []string
}

// Attachment 任务附件（完成凭证之一）。
type Attachment struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"_id"`
	TaskID        string    `gorm:"type:varchar(64);index:idx_attachment_task_user;not null" json:"task_id"`
	UserID        string    `gorm:"type:varchar(64);index:idx_attachment_task_user;not null" json:"user_id"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"file_name"`
	FileURL       string    `gorm:"type:varchar(1024);not null" json:"file_url"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	MimeType      string    `gorm:"type:varchar(128)" json:"mime_type"`
	UploadedAt    time.Time `json:"uploaded_at"`

	User *User `gorm:"-" json:"user"` // 上传者信息（查询时填充）
}

// Verification 任务完成签名凭证（完成凭证之二）。
type Verification struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)" json:"_id"`
	TaskID          string    `gorm:"type:varchar(64);index:idx_verification_task_user;not null" json:"task_id"`
	UserID          string    `gorm:"type:varchar(64);index:idx_verification_task_user;not null" json:"user_id"`
	WalletAddress   string    `gorm:"type:varchar(64);not null" json:"wallet_address"`
	Message         string    `gorm:"type:text;not null" json:"message"`
	Signature       string    `gorm:"type:varchar(256);not null" json:"signature"`
	VerifiedOnChain bool      `gorm:"default:false" json:"verified_on_chain"`
	TxHash          *string   `gorm:"type:varchar(128)" json:"tx_hash"`
	VerifiedAt      time.Time `json:"verified_at"`
}
