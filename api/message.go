package api

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"forumchat/config"
	"forumchat/models"
	"forumchat/services"
)

// MessageController 消息控制器
type MessageController struct {
	MessageService *services.MessageService
	ForumService   *services.ForumService
	StorageService *services.StorageService
}

// NewMessageController 创建消息控制器
func NewMessageController(messageService *services.MessageService, forumService *services.ForumService, storageService *services.StorageService) *MessageController {
	return &MessageController{
		MessageService: messageService,
		ForumService:   forumService,
		StorageService: storageService,
	}
}

// GetMessages 获取论坛消息列表，按创建顺序升序返回
// 轮询客户端在论坛打开期间每3秒调用一次
func (c *MessageController) GetMessages(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "forumId")
	if !ok {
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if !perm.IsMember && !perm.IsSystemAdmin {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "你不是该论坛的成员"})
		return
	}

	limitStr := ctx.DefaultQuery("limit", strconv.Itoa(config.AppConfig.MessageFetchLimit))
	limit, _ := strconv.Atoi(limitStr)

	messages, err := c.MessageService.ListMessages(forumID, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"total":    len(messages),
	})
}

// SendMessage 发送文本或贴纸消息
func (c *MessageController) SendMessage(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req models.MessageCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, req.ForumID)
	if !ok {
		return
	}

	if !perm.CanSendMessage() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "你不是该论坛的成员"})
		return
	}

	var msg *models.Message
	var err error

	switch req.Type {
	case models.TextMessage:
		msg, err = c.MessageService.SendMessage(userID, req.ForumID, req.Content, req.ReplyToID)
	case models.StickerMessage:
		msg, err = c.MessageService.SendSticker(userID, req.ForumID, req.Content, req.ReplyToID)
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "该接口只支持文本和贴纸消息"})
		return
	}

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "消息发送成功",
		"data":    msg,
	})
}

// SendFile 上传附件并发送附件消息
// 附件按MIME类型归类：图片/文档/普通文件，无法识别的按普通文件处理
func (c *MessageController) SendFile(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		return
	}

	if c.StorageService == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "附件存储未配置"})
		return
	}

	forumIDStr := ctx.PostForm("forum_id")
	forumID64, err := strconv.ParseUint(forumIDStr, 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的论坛ID"})
		return
	}
	forumID := uint(forumID64)

	var replyToID uint
	if replyStr := ctx.PostForm("reply_to_id"); replyStr != "" {
		reply64, err := strconv.ParseUint(replyStr, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的回复消息ID"})
			return
		}
		replyToID = uint(reply64)
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if !perm.CanSendMessage() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "你不是该论坛的成员"})
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "未上传文件"})
		return
	}

	if file.Size > config.AppConfig.MaxUploadSize {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("文件过大，上限%dMB", config.AppConfig.MaxUploadSize>>20)})
		return
	}

	// 按MIME类型划分消息类型，客户端声明的类型不可信
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = services.ContentTypeForExt(filepath.Ext(file.Filename))
	}
	msgType := services.ClassifyFileType(contentType)

	// 先写对象存储，再落消息行，落库失败时回收对象
	objectPath, err := c.StorageService.SaveFile(ctx.Request.Context(), file)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	msg, err := c.MessageService.SaveFileMessage(userID, forumID, msgType, replyToID, objectPath, file.Filename, file.Size)
	if err != nil {
		if delErr := c.StorageService.DeleteFile(objectPath); delErr != nil {
			log.Printf("回收附件失败 %s: %v", objectPath, delErr)
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "文件发送成功",
		"data":    msg,
	})
}

// DeleteMessage 删除消息，发送者本人或论坛管理员可操作
func (c *MessageController) DeleteMessage(ctx *gin.Context) {
	messageID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	msg, err := c.MessageService.GetMessageByID(messageID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, msg.ForumID)
	if !ok {
		return
	}

	if !perm.CanDeleteMessage(msg) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "没有权限删除该消息"})
		return
	}

	attachmentPath, err := c.MessageService.DeleteMessage(msg)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 清理附件，失败只记录日志
	if attachmentPath != "" && c.StorageService != nil {
		if err := c.StorageService.DeleteFile(attachmentPath); err != nil {
			log.Printf("清理附件失败 %s: %v", attachmentPath, err)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "消息删除成功",
	})
}

// DownloadFile 下载附件，经后端转发以便逐请求校验权限
func (c *MessageController) DownloadFile(ctx *gin.Context) {
	messageID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	msg, err := c.MessageService.GetMessageByID(messageID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// path参数保留兼容，但必须和消息记录一致
	if path := ctx.Query("path"); path != "" && path != msg.AttachmentURL {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "附件路径与消息不匹配"})
		return
	}

	data, fileName, contentType, ok := c.fetchAttachment(ctx, msg)
	if !ok {
		return
	}

	ctx.Header("Content-Description", "File Transfer")
	ctx.Header("Content-Transfer-Encoding", "binary")
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", fileName))
	ctx.Data(http.StatusOK, contentType, data)
}

// ProxyFile 内嵌渲染附件（图片/PDF预览）
// 按存储路径反查消息记录，再按论坛成员身份校验
func (c *MessageController) ProxyFile(ctx *gin.Context) {
	path := ctx.Query("path")
	if path == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "缺少path参数"})
		return
	}

	msg, err := c.MessageService.GetMessageByAttachment(path)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	data, fileName, contentType, ok := c.fetchAttachment(ctx, msg)
	if !ok {
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s", fileName))
	ctx.Header("Cache-Control", "public, max-age=3600")
	ctx.Data(http.StatusOK, contentType, data)
}

// fetchAttachment 校验成员权限后从对象存储读取附件
// 附件路径以消息记录为准，不信任请求参数
func (c *MessageController) fetchAttachment(ctx *gin.Context, msg *models.Message) ([]byte, string, string, bool) {
	if c.StorageService == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "附件存储未配置"})
		return nil, "", "", false
	}

	if msg.AttachmentURL == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "该消息没有附件"})
		return nil, "", "", false
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, msg.ForumID)
	if !ok {
		return nil, "", "", false
	}

	if !perm.IsMember && !perm.IsSystemAdmin {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "你不是该论坛的成员"})
		return nil, "", "", false
	}

	data, err := c.StorageService.DownloadFile(ctx.Request.Context(), msg.AttachmentURL)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, "", "", false
	}

	fileName := msg.FileName
	if fileName == "" {
		fileName = filepath.Base(msg.AttachmentURL)
	}
	contentType := services.ContentTypeForExt(filepath.Ext(msg.AttachmentURL))

	return data, fileName, contentType, true
}
