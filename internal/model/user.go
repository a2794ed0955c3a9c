package model

import "time"

// User 表示通过钱包签名登录的系统用户。
//
// WalletAddress 是用户的唯一身份标识，首次验证成功时创建，之后不可修改。
type User struct {
	ID            string      `gorm:"primaryKey;type:varchar(64)" json:"_id"`                      // 用户 ID (user_xxx)
	WalletAddress string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"wallet_address"` // 钱包地址（小写）
	DisplayName   string      `gorm:"type:varchar(50)" json:"display_name"`                        // 昵称
	AvatarURL     string      `gorm:"type:varchar(512)" json:"avatar_url,omitempty"`               // 头像链接
	Roles         []string    `gorm:"serializer:json" json:"roles"`                                // 系统角色，默认 ["user"]
	Preferences   Preferences `gorm:"serializer:json" json:"preferences"`                          // 个人偏好
	CreatedAt     time.Time   `json:"created_at"`                                                  // 创建时间
	UpdatedAt     time.Time   `json:"updated_at"`                                                  // 更新时间
	LastLoginAt   *time.Time  `json:"last_login,omitempty"`                                        // 最近一次登录时间
}

// Preferences 用户界面偏好。
type Preferences struct {
	Theme          string `json:"theme"`
	Notifications  bool   `json:"notifications"`
	WebPushEnabled bool   `json:"web_push_enabled"`
	Language       string `json:"language"`
}

// DefaultPreferences 返回新用户的默认偏好。
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:          "light",
		Notifications:  true,
		WebPushEnabled: true,
		Language:       "vi",
	}
}

// ProfileSummary 是按需计算的用户任务统计，不落库。
type ProfileSummary struct {
	TotalTasks         int     `json:"total_tasks"`
	CompletedTasks     int     `json:"completed_tasks"`
	InProgressTasks    int     `json:"in_progress_tasks"`
	PendingTasks       int     `json:"pending_tasks"`
	ProductivityScore  float64 `json:"productivity_score"`
	LastUpdatedSummary string  `json:"last_updated_summary"`
}

// GroupOverview 用户所在群组的概要信息。
type GroupOverview struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
	Role      string `json:"role"`
	TaskCount int    `json:"task_count"`
}

// UserProfile 是 GET /users/:wallet 返回的聚合视图。
type UserProfile struct {
	User
	ProfileSummary  ProfileSummary  `json:"profile_summary"`
	GroupsOverview  []GroupOverview `json:"groups_overview"`
	TotalGroupTasks int             `json:"total_group_tasks"`
	UserTasks       []Task          `json:"user_tasks"`
}
