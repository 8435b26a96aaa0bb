package client

import (
	"forumchat/models"
)

// replyPreviewLimit 回复预览截断长度（按字符计）
const replyPreviewLimit = 50

// ResolveReplyPreview 在一批消息中查找被回复的消息并生成预览文本
// 被回复的消息已删除或不在本批消息内时返回false，界面只显示普通消息
func ResolveReplyPreview(msg models.MessageResponse, batch []models.MessageResponse) (string, bool) {
	if msg.ReplyToID == 0 {
		return "", false
	}

	for _, m := range batch {
		if m.ID == msg.ReplyToID {
			return PreviewText(m), true
		}
	}
	return "", false
}

// PreviewText 生成单条消息的预览文本
// 文本消息截断到50个字符，附件类消息显示类型标签
func PreviewText(msg models.MessageResponse) string {
	switch msg.Type {
	case models.StickerMessage:
		return "[贴纸]"
	case models.ImageMessage:
		return "[图片] " + msg.FileName
	case models.DocumentMessage:
		return "[文档] " + msg.FileName
	case models.FileMessage:
		return "[文件] " + msg.FileName
	}

	runes := []rune(msg.Content)
	if len(runes) > replyPreviewLimit {
		return string(runes[:replyPreviewLimit]) + "..."
	}
	return msg.Content
}
