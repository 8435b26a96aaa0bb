package models

import (
	"time"
)

// UserRole 全局角色
type UserRole string

const (
	RoleAdmin UserRole = "admin" // 系统管理员，默认拥有所有论坛的管理权限
	RoleUser  UserRole = "user"  // 普通用户
)

// IsSystemAdmin 判断是否为系统管理员
func (r UserRole) IsSystemAdmin() bool {
	return r == RoleAdmin
}

// User 用户模型
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"unique;not null"`
	Password  string    `json:"-" gorm:"not null"` // 密码不返回给前端
	Email     string    `json:"email" gorm:"unique;not null"`
	Avatar    string    `json:"avatar"`
	Role      UserRole  `json:"role" gorm:"default:user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserResponse 用户响应模型（不包含敏感信息）
type UserResponse struct {
	ID       uint     `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Avatar   string   `json:"avatar"`
	Role     UserRole `json:"role"`
}
