package service

import "taskhub/internal/model"

// 群组权限。
const (
	PermAll                = "*"
	PermCreateTask         = "create_task"
	PermEditTask           = "edit_task"
	PermDeleteTask         = "delete_task"
	PermAssignTask         = "assign_task"
	PermInviteMember       = "invite_member"
	PermRemoveMember       = "remove_member"
	PermUpdateGroupInfo    = "update_group_info"
	PermChangeRole         = "change_role"
	PermViewTask           = "view_task"
	PermCreateAnnouncement = "create_announcement"
	PermPinTask            = "pin_task"
	PermArchiveTask        = "archive_task"
)

var rolePermissions = map[string][]string{
	model.RoleOwner: {PermAll},
	model.RoleAdmin: {
		PermCreateTask, PermEditTask, PermDeleteTask, PermAssignTask,
		PermInviteMember, PermRemoveMember, PermUpdateGroupInfo, PermChangeRole,
		PermViewTask, PermCreateAnnouncement, PermPinTask, PermArchiveTask,
	},
	model.RoleMember: {PermCreateTask, PermEditTask, PermViewTask, PermAssignTask},
	model.RoleGuest:  {PermViewTask},
}

// PermissionsForRole 返回角色对应的权限集合，未知角色只有 view_task。
func PermissionsForRole(role string) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = rolePermissions[model.RoleGuest]
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Can 判断成员是否具备某权限。总是依据当前角色计算，不信任已存储的权限数组。
func Can(m *model.Membership, perm string) bool {
	if m == nil {
		return false
	}
	for _, p := range PermissionsForRole(m.Role) {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// ValidRole 判断角色是否合法。
func ValidRole(role string) bool {
	switch role {
	case model.RoleOwner, model.RoleAdmin, model.RoleMember, model.RoleGuest:
		return true
	}
	return false
}
