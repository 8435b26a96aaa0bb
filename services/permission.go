package services

import (
	"forumchat/models"
)

// PermissionSet 某个用户在某个论坛上的权限快照
// 权限是纯函数计算结果，不做缓存，每个请求基于当前数据重新求值
type PermissionSet struct {
	UserID        uint
	CreatorID     uint
	IsSystemAdmin bool
	IsForumAdmin  bool
	IsMember      bool
}

// EvaluatePermissions 根据用户全局角色和论坛成员数据计算权限
func EvaluatePermissions(userID uint, role models.UserRole, forum *models.Forum, members []models.ForumMember) PermissionSet {
	p := PermissionSet{
		UserID:        userID,
		CreatorID:     forum.CreatorID,
		IsSystemAdmin: role.IsSystemAdmin(),
	}

	for _, m := range members {
		if m.UserID != userID {
			continue
		}
		p.IsMember = true
		if m.IsAdmin {
			p.IsForumAdmin = true
		}
		break
	}

	// 系统管理员默认是所有论坛的管理员
	if p.IsSystemAdmin {
		p.IsForumAdmin = true
	}

	return p
}

// CanSendMessage 成员或管理员可以发消息
func (p PermissionSet) CanSendMessage() bool {
	return p.IsForumAdmin || p.IsMember
}

// CanManageMembers 管理员可以增删成员
func (p PermissionSet) CanManageMembers() bool {
	return p.IsForumAdmin
}

// CanManageSettings 管理员可以修改论坛设置
func (p PermissionSet) CanManageSettings() bool {
	return p.IsForumAdmin
}

// CanDeleteForum 管理员可以删除论坛
func (p PermissionSet) CanDeleteForum() bool {
	return p.IsForumAdmin
}

// CanDeleteMessage 消息发送者本人或管理员可以删除消息
func (p PermissionSet) CanDeleteMessage(msg *models.Message) bool {
	return msg.UserID == p.UserID || p.IsForumAdmin
}

// CanRemoveMember 管理员可以移除成员，但创建者永远不能被移除
func (p PermissionSet) CanRemoveMember(targetID uint) bool {
	if targetID == p.CreatorID {
		return false
	}
	return p.IsForumAdmin
}
