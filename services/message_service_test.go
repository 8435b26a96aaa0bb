package services

import (
	"fmt"
	"testing"

	"forumchat/models"
)

// newMessageTestEnv 建立消息测试环境：一个论坛，创建者和一个普通成员
func newMessageTestEnv(t *testing.T) (*MessageService, *ForumService, *models.Forum, *models.User, *models.User) {
	t.Helper()

	db := setupTestDB(t)
	forumSvc := NewForumService(db, nil, nil)
	userSvc := NewUserService(db, nil)
	msgSvc := NewMessageService(db, nil, userSvc, nil)

	creator := createTestUser(t, db, "creator", models.RoleAdmin)
	alice := createTestUser(t, db, "alice", models.RoleUser)
	forum := createTestForum(t, forumSvc, creator.ID, "测试论坛", alice.ID)

	return msgSvc, forumSvc, forum, creator, alice
}

func TestSendAndListMessages(t *testing.T) {
	msgSvc, _, forum, creator, alice := newMessageTestEnv(t)

	first, err := msgSvc.SendMessage(alice.ID, forum.ID, "你好", 0)
	if err != nil {
		t.Fatalf("发送消息失败: %v", err)
	}
	second, err := msgSvc.SendMessage(creator.ID, forum.ID, "你好，alice", first.ID)
	if err != nil {
		t.Fatalf("发送回复失败: %v", err)
	}

	messages, err := msgSvc.ListMessages(forum.ID, 10)
	if err != nil {
		t.Fatalf("获取消息失败: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("消息数 = %d, 期望 2", len(messages))
	}

	// 按创建顺序升序返回
	if messages[0].ID != first.ID || messages[1].ID != second.ID {
		t.Errorf("消息顺序错误: got [%d %d], 期望 [%d %d]",
			messages[0].ID, messages[1].ID, first.ID, second.ID)
	}

	// 回复引用和发送者信息
	if messages[1].ReplyToID != first.ID {
		t.Errorf("ReplyToID = %d, 期望 %d", messages[1].ReplyToID, first.ID)
	}
	if messages[0].Username != "alice" {
		t.Errorf("Username = %s, 期望 alice", messages[0].Username)
	}
}

func TestListMessagesLimit(t *testing.T) {
	msgSvc, _, forum, _, alice := newMessageTestEnv(t)

	var lastID uint
	for i := 0; i < 10; i++ {
		msg, err := msgSvc.SendMessage(alice.ID, forum.ID, fmt.Sprintf("消息%d", i), 0)
		if err != nil {
			t.Fatalf("发送消息失败: %v", err)
		}
		lastID = msg.ID
	}

	// 只返回最近的N条，且仍按升序排列
	messages, err := msgSvc.ListMessages(forum.ID, 3)
	if err != nil {
		t.Fatalf("获取消息失败: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("消息数 = %d, 期望 3", len(messages))
	}
	if messages[2].ID != lastID {
		t.Errorf("最后一条消息ID = %d, 期望最新的%d", messages[2].ID, lastID)
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].ID <= messages[i-1].ID {
			t.Errorf("消息未按升序排列: %d <= %d", messages[i].ID, messages[i-1].ID)
		}
	}
}

func TestSendMessageEmptyContent(t *testing.T) {
	msgSvc, _, forum, _, alice := newMessageTestEnv(t)

	for _, content := range []string{"", "   ", "\n\t"} {
		if _, err := msgSvc.SendMessage(alice.ID, forum.ID, content, 0); err == nil {
			t.Errorf("内容%q应当发送失败", content)
		}
	}
}

func TestReplyValidation(t *testing.T) {
	msgSvc, forumSvc, forum, creator, alice := newMessageTestEnv(t)

	// 回复不存在的消息
	if _, err := msgSvc.SendMessage(alice.ID, forum.ID, "回复谁？", 9999); err == nil {
		t.Error("回复不存在的消息应当失败")
	}

	// 不能跨论坛回复
	other := createTestForum(t, forumSvc, creator.ID, "另一个论坛", alice.ID)
	otherMsg, err := msgSvc.SendMessage(alice.ID, other.ID, "别处的消息", 0)
	if err != nil {
		t.Fatalf("发送消息失败: %v", err)
	}
	if _, err := msgSvc.SendMessage(alice.ID, forum.ID, "跨论坛回复", otherMsg.ID); err == nil {
		t.Error("跨论坛回复应当失败")
	}
}

func TestDeleteMessageLeavesDanglingReply(t *testing.T) {
	msgSvc, _, forum, creator, alice := newMessageTestEnv(t)

	target, err := msgSvc.SendMessage(alice.ID, forum.ID, "即将被删除", 0)
	if err != nil {
		t.Fatalf("发送消息失败: %v", err)
	}
	reply, err := msgSvc.SendMessage(creator.ID, forum.ID, "回复一下", target.ID)
	if err != nil {
		t.Fatalf("发送回复失败: %v", err)
	}

	if _, err := msgSvc.DeleteMessage(target); err != nil {
		t.Fatalf("删除消息失败: %v", err)
	}

	// 回复消息保留，reply_to_id不做清理，由客户端降级显示
	messages, err := msgSvc.ListMessages(forum.ID, 10)
	if err != nil {
		t.Fatalf("获取消息失败: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("消息数 = %d, 期望 1", len(messages))
	}
	if messages[0].ID != reply.ID || messages[0].ReplyToID != target.ID {
		t.Errorf("回复消息的reply_to_id应保留悬空引用%d, 得到 %+v", target.ID, messages[0])
	}
}

func TestSendSticker(t *testing.T) {
	msgSvc, _, forum, _, alice := newMessageTestEnv(t)

	msg, err := msgSvc.SendSticker(alice.ID, forum.ID, "/stickers/smile.png", 0)
	if err != nil {
		t.Fatalf("发送贴纸失败: %v", err)
	}
	if msg.Type != models.StickerMessage || msg.Content != "/stickers/smile.png" {
		t.Errorf("贴纸消息 = %+v", msg)
	}

	if _, err := msgSvc.SendSticker(alice.ID, forum.ID, "  ", 0); err == nil {
		t.Error("空贴纸URL应当发送失败")
	}
}

func TestSaveFileMessage(t *testing.T) {
	msgSvc, _, forum, _, alice := newMessageTestEnv(t)

	msg, err := msgSvc.SaveFileMessage(alice.ID, forum.ID, models.DocumentMessage, 0, "chat_forum/report.pdf", "report.pdf", 2048)
	if err != nil {
		t.Fatalf("保存附件消息失败: %v", err)
	}
	if msg.AttachmentURL != "chat_forum/report.pdf" || msg.FileName != "report.pdf" || msg.FileSize != 2048 {
		t.Errorf("附件消息 = %+v", msg)
	}

	// 按附件路径反查
	found, err := msgSvc.GetMessageByAttachment("chat_forum/report.pdf")
	if err != nil {
		t.Fatalf("按附件路径查询失败: %v", err)
	}
	if found.ID != msg.ID {
		t.Errorf("查到消息ID = %d, 期望 %d", found.ID, msg.ID)
	}

	// 文本类型不能走附件接口
	if _, err := msgSvc.SaveFileMessage(alice.ID, forum.ID, models.TextMessage, 0, "x", "x", 1); err == nil {
		t.Error("文本类型保存为附件消息应当失败")
	}
}

func TestDeleteMessageReturnsAttachmentPath(t *testing.T) {
	msgSvc, _, forum, _, alice := newMessageTestEnv(t)

	msg, err := msgSvc.SaveFileMessage(alice.ID, forum.ID, models.ImageMessage, 0, "chat_forum/pic.png", "pic.png", 512)
	if err != nil {
		t.Fatalf("保存附件消息失败: %v", err)
	}

	path, err := msgSvc.DeleteMessage(msg)
	if err != nil {
		t.Fatalf("删除消息失败: %v", err)
	}
	if path != "chat_forum/pic.png" {
		t.Errorf("附件路径 = %s, 期望 chat_forum/pic.png", path)
	}
}

func TestMessageEvents(t *testing.T) {
	db := setupTestDB(t)
	forumSvc := NewForumService(db, nil, nil)
	userSvc := NewUserService(db, nil)

	var events []ForumEvent
	sink := &LocalEventSink{Handler: func(event ForumEvent) {
		events = append(events, event)
	}}
	msgSvc := NewMessageService(db, nil, userSvc, sink)

	creator := createTestUser(t, db, "creator", models.RoleAdmin)
	forum := createTestForum(t, forumSvc, creator.ID, "测试论坛")

	msg, err := msgSvc.SendMessage(creator.ID, forum.ID, "你好", 0)
	if err != nil {
		t.Fatalf("发送消息失败: %v", err)
	}
	if _, err := msgSvc.DeleteMessage(msg); err != nil {
		t.Fatalf("删除消息失败: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("事件数 = %d, 期望 2", len(events))
	}
	if events[0].Type != EventMessageCreated || events[0].MessageID != msg.ID {
		t.Errorf("events[0] = %+v, 期望message_created", events[0])
	}
	if events[1].Type != EventMessageDeleted || events[1].MessageID != msg.ID {
		t.Errorf("events[1] = %+v, 期望message_deleted", events[1])
	}
}
