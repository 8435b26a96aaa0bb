package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"forumchat/config"
	"forumchat/models"
)

// MessageService 处理消息的存储和检索
type MessageService struct {
	db          *gorm.DB
	rdb         *redis.Client
	userService *UserService
	events      EventSink
}

// NewMessageService 创建一个新的消息服务
// rdb和events均允许为nil
func NewMessageService(db *gorm.DB, rdb *redis.Client, userService *UserService, events EventSink) *MessageService {
	return &MessageService{
		db:          db,
		rdb:         rdb,
		userService: userService,
		events:      events,
	}
}

// ListMessages 获取某论坛最近的N条消息，按创建顺序升序返回
// 轮询客户端每3秒调用一次，结果短暂缓存并在写入时失效
func (s *MessageService) ListMessages(forumID uint, limit int) ([]models.MessageResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = config.AppConfig.MessageFetchLimit
	}

	ctx := context.Background()
	key := fmt.Sprintf("recent:forum:%d:%d", forumID, limit)

	// 先尝试从缓存获取
	if s.rdb != nil {
		batchJSON, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			var responses []models.MessageResponse
			if err := json.Unmarshal([]byte(batchJSON), &responses); err == nil {
				return responses, nil
			}
		}
	}

	// 缓存未命中，从数据库获取最新的N条再反转为升序
	var messages []models.Message
	if err := s.db.Where("forum_id = ?", forumID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	responses := make([]models.MessageResponse, len(messages))
	for i := range messages {
		responses[i] = s.buildResponse(&messages[i])
	}

	// 更新缓存
	if s.rdb != nil {
		batchBytes, _ := json.Marshal(responses)
		s.rdb.Set(ctx, key, batchBytes, time.Duration(config.AppConfig.CacheExpiration)*time.Second)
	}

	return responses, nil
}

// SendMessage 发送文本消息
func (s *MessageService) SendMessage(userID, forumID uint, content string, replyToID uint) (*models.Message, error) {
	// 文本消息内容去除空白后不能为空
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("消息内容不能为空")
	}

	msg := &models.Message{
		ForumID:   forumID,
		UserID:    userID,
		Type:      models.TextMessage,
		Content:   content,
		ReplyToID: replyToID,
		CreatedAt: time.Now(),
	}

	return msg, s.create(msg)
}

// SendSticker 发送贴纸消息，内容为贴纸URL
func (s *MessageService) SendSticker(userID, forumID uint, stickerURL string, replyToID uint) (*models.Message, error) {
	if strings.TrimSpace(stickerURL) == "" {
		return nil, errors.New("贴纸URL不能为空")
	}

	msg := &models.Message{
		ForumID:   forumID,
		UserID:    userID,
		Type:      models.StickerMessage,
		Content:   stickerURL,
		ReplyToID: replyToID,
		CreatedAt: time.Now(),
	}

	return msg, s.create(msg)
}

// SaveFileMessage 保存附件消息，附件本体已写入对象存储
func (s *MessageService) SaveFileMessage(userID, forumID uint, msgType models.MessageType, replyToID uint, attachmentPath, fileName string, fileSize int64) (*models.Message, error) {
	if !msgType.IsAttachment() {
		return nil, errors.New("无效的附件消息类型")
	}

	msg := &models.Message{
		ForumID:       forumID,
		UserID:        userID,
		Type:          msgType,
		Content:       fileName,
		ReplyToID:     replyToID,
		AttachmentURL: attachmentPath,
		FileName:      fileName,
		FileSize:      fileSize,
		CreatedAt:     time.Now(),
	}

	return msg, s.create(msg)
}

// GetMessageByID 根据ID获取消息
func (s *MessageService) GetMessageByID(id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("消息不存在")
		}
		return nil, err
	}
	return &msg, nil
}

// GetMessageByAttachment 根据附件存储路径反查消息
func (s *MessageService) GetMessageByAttachment(attachmentPath string) (*models.Message, error) {
	var msg models.Message
	if err := s.db.Where("attachment_url = ?", attachmentPath).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("附件不存在")
		}
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage 删除消息，权限由调用方校验
// 其他消息指向该消息的reply_to_id不做清理，客户端对悬空引用静默降级
// 返回附件路径，由调用方清理对象存储
func (s *MessageService) DeleteMessage(msg *models.Message) (string, error) {
	if err := s.db.Delete(&models.Message{}, msg.ID).Error; err != nil {
		return "", err
	}

	s.invalidateRecentCache(msg.ForumID)
	s.publishEvent(ForumEvent{Type: EventMessageDeleted, ForumID: msg.ForumID, MessageID: msg.ID})

	return msg.AttachmentURL, nil
}

// create 持久化消息，回复目标必须在发送时存在于同一论坛
func (s *MessageService) create(msg *models.Message) error {
	if msg.ReplyToID != 0 {
		var target models.Message
		if err := s.db.First(&target, msg.ReplyToID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("被回复的消息不存在")
			}
			return err
		}
		if target.ForumID != msg.ForumID {
			return errors.New("不能回复其他论坛的消息")
		}
	}

	if err := s.db.Create(msg).Error; err != nil {
		log.Printf("保存消息失败: %v", err)
		return err
	}

	s.invalidateRecentCache(msg.ForumID)
	s.publishEvent(ForumEvent{Type: EventMessageCreated, ForumID: msg.ForumID, MessageID: msg.ID})

	return nil
}

// buildResponse 构建消息响应，附带发送者信息
func (s *MessageService) buildResponse(msg *models.Message) models.MessageResponse {
	resp := models.MessageResponse{
		ID:            msg.ID,
		ForumID:       msg.ForumID,
		UserID:        msg.UserID,
		Type:          msg.Type,
		Content:       msg.Content,
		ReplyToID:     msg.ReplyToID,
		AttachmentURL: msg.AttachmentURL,
		FileName:      msg.FileName,
		FileSize:      msg.FileSize,
		CreatedAt:     msg.CreatedAt,
	}

	// 发送者可能已被移出论坛甚至注销，查不到时保留占位名
	if sender, err := s.userService.GetUserByID(msg.UserID); err == nil {
		resp.Username = sender.Username
		resp.UserAvatar = sender.Avatar
	} else {
		resp.Username = fmt.Sprintf("用户%d", msg.UserID)
	}

	return resp
}

// InvalidateRecentCache 删除最近消息缓存，由事件消费者调用
func (s *MessageService) InvalidateRecentCache(forumID uint) {
	s.invalidateRecentCache(forumID)
}

// invalidateRecentCache 删除该论坛所有limit档位的消息缓存
func (s *MessageService) invalidateRecentCache(forumID uint) {
	if s.rdb == nil {
		return
	}
	ctx := context.Background()

	pattern := fmt.Sprintf("recent:forum:%d:*", forumID)
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	s.rdb.Del(ctx, keys...)
}

// publishEvent 发布论坛事件，失败只记录日志不影响请求
func (s *MessageService) publishEvent(event ForumEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(event); err != nil {
		log.Printf("发布论坛事件失败: %v", err)
	}
}
