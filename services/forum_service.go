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

// EventSink 论坛事件出口，Kafka可用时为KafkaService，否则为本地直发
type EventSink interface {
	PublishEvent(event ForumEvent) error
}

// LocalEventSink 单实例部署时的事件直发，绕过消息队列
type LocalEventSink struct {
	Handler EventHandler
}

// PublishEvent 直接调用事件处理函数
func (s *LocalEventSink) PublishEvent(event ForumEvent) error {
	if s.Handler != nil {
		event.CreatedAt = time.Now()
		s.Handler(event)
	}
	return nil
}

// ForumService 论坛注册表服务
type ForumService struct {
	db     *gorm.DB
	rdb    *redis.Client
	events EventSink
}

// NewForumService 创建论坛服务实例
// rdb和events均允许为nil
func NewForumService(db *gorm.DB, rdb *redis.Client, events EventSink) *ForumService {
	return &ForumService{
		db:     db,
		rdb:    rdb,
		events: events,
	}
}

// CreateForum 创建新论坛，创建者自动成为第一个管理员和成员
func (s *ForumService) CreateForum(creatorID uint, name, description string, memberIDs []uint) (*models.Forum, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("论坛名称不能为空")
	}

	// 初始成员必须是已注册用户
	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		if err := s.checkUserExists(memberID); err != nil {
			return nil, err
		}
	}

	forum := &models.Forum{
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	// 开启事务
	tx := s.db.Begin()
	if err := tx.Create(forum).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 创建者自动加入论坛并成为管理员
	creatorMember := models.ForumMember{
		ForumID:  forum.ID,
		UserID:   creatorID,
		IsAdmin:  true,
		JoinedAt: time.Now(),
	}
	if err := tx.Create(&creatorMember).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 创建时附带的初始成员
	for _, memberID := range memberIDs {
		if memberID == creatorID {
			continue
		}
		member := models.ForumMember{
			ForumID:  forum.ID,
			UserID:   memberID,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return forum, nil
}

// checkUserExists 校验成员ID指向已注册用户，防止幽灵成员
func (s *ForumService) checkUserExists(userID uint) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("用户%d不存在", userID)
	}
	return nil
}

// GetForumByID 根据ID获取论坛
func (s *ForumService) GetForumByID(id uint) (*models.Forum, error) {
	var forum models.Forum
	if err := s.db.First(&forum, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("论坛不存在")
		}
		return nil, err
	}
	return &forum, nil
}

// GetForumMembers 获取论坛成员列表，创建者排在第一位
func (s *ForumService) GetForumMembers(forumID uint) ([]models.ForumMember, error) {
	ctx := context.Background()
	key := fmt.Sprintf("forum:members:%d", forumID)

	// 先尝试从缓存获取
	if s.rdb != nil {
		membersJSON, err := s.rdb.Get(ctx, key).Result()
		if err == nil {
			var members []models.ForumMember
			if err := json.Unmarshal([]byte(membersJSON), &members); err == nil {
				return members, nil
			}
		}
	}

	// 缓存未命中，从数据库获取
	var members []models.ForumMember
	if err := s.db.Where("forum_id = ?", forumID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	// 更新缓存
	if s.rdb != nil {
		memberBytes, _ := json.Marshal(members)
		s.rdb.Set(ctx, key, memberBytes, time.Duration(config.AppConfig.CacheExpiration)*time.Second)
	}

	return members, nil
}

// BuildForumResponse 构建论坛响应，按调用者视角标注成员/管理员身份
func (s *ForumService) BuildForumResponse(forum *models.Forum, members []models.ForumMember, perm PermissionSet) models.ForumResponse {
	memberIDs := make([]uint, 0, len(members))
	adminIDs := make([]uint, 0, 4)

	// 创建者永远排在管理员列表第一位
	adminIDs = append(adminIDs, forum.CreatorID)
	for _, m := range members {
		memberIDs = append(memberIDs, m.UserID)
		if m.IsAdmin && m.UserID != forum.CreatorID {
			adminIDs = append(adminIDs, m.UserID)
		}
	}

	return models.ForumResponse{
		ID:          forum.ID,
		Name:        forum.Name,
		Description: forum.Description,
		CreatorID:   forum.CreatorID,
		Members:     memberIDs,
		Admins:      adminIDs,
		MemberCount: len(memberIDs),
		IsMember:    perm.IsMember,
		IsAdmin:     perm.IsForumAdmin,
		CreatedAt:   forum.CreatedAt,
		UpdatedAt:   forum.UpdatedAt,
	}
}

// ListForums 获取论坛列表
// 系统管理员可以看到所有论坛，普通用户只能看到自己加入的论坛
func (s *ForumService) ListForums(userID uint, role models.UserRole) ([]models.ForumResponse, error) {
	var forums []models.Forum

	if role.IsSystemAdmin() {
		if err := s.db.Order("created_at DESC").Find(&forums).Error; err != nil {
			return nil, err
		}
	} else {
		var forumIDs []uint
		if err := s.db.Model(&models.ForumMember{}).
			Where("user_id = ?", userID).
			Pluck("forum_id", &forumIDs).Error; err != nil {
			return nil, err
		}
		if err := s.db.Where("id IN ?", forumIDs).
			Order("created_at DESC").
			Find(&forums).Error; err != nil {
			return nil, err
		}
	}

	responses := make([]models.ForumResponse, 0, len(forums))
	for i := range forums {
		members, err := s.GetForumMembers(forums[i].ID)
		if err != nil {
			return nil, err
		}
		perm := EvaluatePermissions(userID, role, &forums[i], members)
		responses = append(responses, s.BuildForumResponse(&forums[i], members, perm))
	}

	return responses, nil
}

// UpdateForum 更新论坛名称和描述，权限由调用方校验
func (s *ForumService) UpdateForum(forumID uint, name, description string) (*models.Forum, error) {
	forum, err := s.GetForumByID(forumID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		forum.Name = strings.TrimSpace(name)
		if forum.Name == "" {
			return nil, errors.New("论坛名称不能为空")
		}
	}
	if description != "" {
		forum.Description = description
	}
	forum.UpdatedAt = time.Now()

	if err := s.db.Save(forum).Error; err != nil {
		return nil, err
	}

	return forum, nil
}

// AddMember 添加论坛成员，重复添加视为成功（幂等）
func (s *ForumService) AddMember(forumID, userID uint) error {
	if _, err := s.GetForumByID(forumID); err != nil {
		return err
	}
	if err := s.checkUserExists(userID); err != nil {
		return err
	}

	// 检查用户是否已在论坛中
	var count int64
	if err := s.db.Model(&models.ForumMember{}).
		Where("forum_id = ? AND user_id = ?", forumID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	member := models.ForumMember{
		ForumID:  forumID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	if err := s.db.Create(&member).Error; err != nil {
		return err
	}

	s.invalidateMemberCache(forumID)
	s.publishEvent(ForumEvent{Type: EventMembershipChanged, ForumID: forumID})

	return nil
}

// RemoveMember 移除论坛成员，创建者不能被移除
func (s *ForumService) RemoveMember(forumID, targetID uint) error {
	forum, err := s.GetForumByID(forumID)
	if err != nil {
		return err
	}

	if targetID == forum.CreatorID {
		return errors.New("不能移除论坛创建者")
	}

	// 检查目标用户是否在论坛中
	var count int64
	if err := s.db.Model(&models.ForumMember{}).
		Where("forum_id = ? AND user_id = ?", forumID, targetID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("目标用户不是论坛成员")
	}

	// 移除成员，该用户已发送的消息保留
	if err := s.db.Where("forum_id = ? AND user_id = ?", forumID, targetID).
		Delete(&models.ForumMember{}).Error; err != nil {
		return err
	}

	s.invalidateMemberCache(forumID)
	s.publishEvent(ForumEvent{Type: EventMembershipChanged, ForumID: forumID})

	return nil
}

// SetForumAdmin 设置论坛管理员，只有创建者或系统管理员可以调用
func (s *ForumService) SetForumAdmin(forumID, targetID uint, isAdmin bool) error {
	forum, err := s.GetForumByID(forumID)
	if err != nil {
		return err
	}

	// 创建者的管理员身份不可撤销
	if targetID == forum.CreatorID && !isAdmin {
		return errors.New("不能撤销论坛创建者的管理员身份")
	}

	var count int64
	if err := s.db.Model(&models.ForumMember{}).
		Where("forum_id = ? AND user_id = ?", forumID, targetID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("目标用户不是论坛成员")
	}

	if err := s.db.Model(&models.ForumMember{}).
		Where("forum_id = ? AND user_id = ?", forumID, targetID).
		Update("is_admin", isAdmin).Error; err != nil {
		return err
	}

	s.invalidateMemberCache(forumID)
	s.publishEvent(ForumEvent{Type: EventMembershipChanged, ForumID: forumID})

	return nil
}

// DeleteForum 删除论坛，级联删除成员和消息
// 返回所有附件的存储路径，由调用方负责清理对象存储
func (s *ForumService) DeleteForum(forumID uint) ([]string, error) {
	if _, err := s.GetForumByID(forumID); err != nil {
		return nil, err
	}

	// 收集待清理的附件路径
	var attachmentPaths []string
	if err := s.db.Model(&models.Message{}).
		Where("forum_id = ? AND attachment_url != ''", forumID).
		Pluck("attachment_url", &attachmentPaths).Error; err != nil {
		return nil, err
	}

	// 开启事务
	tx := s.db.Begin()

	// 删除所有消息
	if err := tx.Where("forum_id = ?", forumID).Delete(&models.Message{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 删除所有成员
	if err := tx.Where("forum_id = ?", forumID).Delete(&models.ForumMember{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 删除论坛
	if err := tx.Delete(&models.Forum{}, forumID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	s.invalidateMemberCache(forumID)
	s.invalidateRecentCache(forumID)
	s.publishEvent(ForumEvent{Type: EventForumDeleted, ForumID: forumID})

	return attachmentPaths, nil
}

// InvalidateCaches 删除该论坛的全部缓存，由事件消费者调用
func (s *ForumService) InvalidateCaches(forumID uint) {
	s.invalidateMemberCache(forumID)
	s.invalidateRecentCache(forumID)
}

// invalidateMemberCache 删除成员列表缓存
func (s *ForumService) invalidateMemberCache(forumID uint) {
	if s.rdb == nil {
		return
	}
	ctx := context.Background()
	s.rdb.Del(ctx, fmt.Sprintf("forum:members:%d", forumID))
}

// invalidateRecentCache 删除该论坛所有limit档位的消息缓存
// 键的模式必须和MessageService的缓存写入保持一致
func (s *ForumService) invalidateRecentCache(forumID uint) {
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
func (s *ForumService) publishEvent(event ForumEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(event); err != nil {
		log.Printf("发布论坛事件失败: %v", err)
	}
}
