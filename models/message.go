package models

import (
	"time"
)

// MessageType 消息类型
type MessageType string

const (
	TextMessage     MessageType = "text"     // 文本消息
	StickerMessage  MessageType = "sticker"  // 表情贴纸，Content为贴纸URL
	ImageMessage    MessageType = "image"    // 图片附件
	DocumentMessage MessageType = "document" // 文档附件（pdf/office）
	FileMessage     MessageType = "file"     // 其他附件
)

// IsAttachment 判断该类型是否携带附件
func (t MessageType) IsAttachment() bool {
	return t == ImageMessage || t == DocumentMessage || t == FileMessage
}

// Message 消息模型
// 消息只增不改，ID自增保证可按创建顺序排序
type Message struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	ForumID       uint        `json:"forum_id" gorm:"not null;index"`
	UserID        uint        `json:"user_id" gorm:"not null"`
	Type          MessageType `json:"type" gorm:"not null"`
	Content       string      `json:"content"`
	ReplyToID     uint        `json:"reply_to_id,omitempty"` // 被回复消息ID，0表示非回复
	AttachmentURL string      `json:"attachment_url,omitempty"`
	FileName      string      `json:"file_name,omitempty"`
	FileSize      int64       `json:"file_size,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// MessageCreateRequest 发送消息请求模型
type MessageCreateRequest struct {
	ForumID   uint        `json:"forum_id" binding:"required"`
	Type      MessageType `json:"type" binding:"required"`
	Content   string      `json:"content"`
	ReplyToID uint        `json:"reply_to_id,omitempty"`
}

// MessageResponse 消息响应模型
type MessageResponse struct {
	ID            uint        `json:"id"`
	ForumID       uint        `json:"forum_id"`
	UserID        uint        `json:"user_id"`
	Username      string      `json:"username"`
	UserAvatar    string      `json:"user_avatar"`
	Type          MessageType `json:"type"`
	Content       string      `json:"content"`
	ReplyToID     uint        `json:"reply_to_id,omitempty"`
	AttachmentURL string      `json:"attachment_url,omitempty"`
	FileName      string      `json:"file_name,omitempty"`
	FileSize      int64       `json:"file_size,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Sticker 贴纸模型
type Sticker struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}
