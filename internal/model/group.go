package model

import "time"

// 群组加入策略。
const (
	JoinPolicyInviteOnly    = "invite_only"
	JoinPolicyRequestToJoin = "request_to_join"
	JoinPolicyOpen          = "open"
)

// 成员角色。
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

// Group 表示一个协作群组。
//
// WalletAddress 是创建者（owner）的钱包地址，只有该地址可以修改或删除群组。
type Group struct {
	GroupID       string    `gorm:"primaryKey;type:varchar(64)" json:"group_id"`           // 群组 ID (grp_xxx)
	WalletAddress string    `gorm:"type:varchar(64);index;not null" json:"wallet_address"` // 创建者钱包
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Description   string    `gorm:"type:varchar(500)" json:"description"`
	IsPublic      bool      `gorm:"default:false;index" json:"is_public"`
	JoinPolicy    string    `gorm:"type:varchar(32);default:invite_only" json:"join_policy"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GroupFilter 群组列表查询条件（AND 语义）。
type GroupFilter struct {
	WalletAddresses []string
	IsPublic        *bool
}

// Membership 是用户与群组之间的关联记录。
//
// 同一 (GroupID, WalletAddress) 至多一条记录；Permissions 由 Role 推导，
// 角色变化时必须重新计算。
type Membership struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"_id"`                                                    // 成员记录 ID (mem_xxx)
	GroupID       string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_member_group_wallet" json:"group_id"`             // 群组 ID
	UserID        string    `gorm:"type:varchar(64);index" json:"user_id"`                                                     // 用户 ID
	WalletAddress string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_member_group_wallet;index" json:"wallet_address"` // 成员钱包
	Role          string    `gorm:"type:varchar(16);not null" json:"role"`                                                     // owner / admin / member / guest
	Permissions   []string  `gorm:"serializer:json" json:"permissions"`                                                        // 由角色推导的权限集
	JoinedAt      time.Time `json:"joined_at"`
	LastActiveAt  time.Time `json:"last_active_at"`
}

// TableName 避开 MySQL 8 保留字 groups。
func (Group) TableName() string {
	return "task_groups"
}

// TableName 固定成员表名。
func (Membership) TableName() string {
	return "group_members"
}
