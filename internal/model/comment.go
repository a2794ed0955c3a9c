package model

import "time"

// Comment 任务评论，只有作者可以编辑。
type Comment struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)" json:"_id"`
	TaskID             string    `gorm:"type:varchar(64);index;not null" json:"task_id"`
	UserID             string    `gorm:"type:varchar(64);not null" json:"user_id"`
	WalletAddress      string    `gorm:"type:varchar(64);not null" json:"wallet_address"`
	Content            string    `gorm:"type:text;not null" json:"content"`
	RepliesToCommentID *string   `gorm:"type:varchar(64)" json:"replies_to_comment_id"`
	IsEdited           bool      `gorm:"default:false" json:"is_edited"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AuditEntry 追加写入的操作审计记录，核心逻辑从不读取。
type AuditEntry struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"_id"`
	UserID        string    `gorm:"type:varchar(64);index" json:"user_id"`
	WalletAddress string    `gorm:"type:varchar(64)" json:"wallet_address"`
	Action        string    `gorm:"type:varchar(64);not null" json:"action"`
	TargetID      string    `gorm:"type:varchar(64)" json:"target_id"`
	IPAddress     string    `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent     string    `gorm:"type:varchar(512)" json:"user_agent"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 固定审计表名。
func (AuditEntry) TableName() string {
	return "audit_logs"
}
