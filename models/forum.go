package models

import (
	"time"
)

// Forum 论坛模型
type Forum struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	CreatorID   uint      `json:"creator_id" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ForumMember 论坛成员关联表
// 管理员列表的顺序由JoinedAt决定，创建者永远排在第一位
type ForumMember struct {
	ForumID  uint      `gorm:"primaryKey"`
	UserID   uint      `gorm:"primaryKey"`
	IsAdmin  bool      `json:"is_admin" gorm:"default:false"`
	JoinedAt time.Time `json:"joined_at"`
}

// ForumResponse 论坛响应模型
// Members和Admins返回用户ID列表，Admins[0]固定为创建者
type ForumResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   uint      `json:"creator_id"`
	Members     []uint    `json:"members"`
	Admins      []uint    `json:"admins"`
	MemberCount int       `json:"member_count"`
	IsMember    bool      `json:"is_member"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ForumCreateRequest 创建论坛请求模型
type ForumCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Members     []uint `json:"members"`
}

// ForumUpdateRequest 更新论坛请求模型
type ForumUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ForumMemberRequest 添加成员请求模型
type ForumMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}
