package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"forumchat/models"
	"forumchat/services"
)

// ForumController 论坛控制器
type ForumController struct {
	ForumService   *services.ForumService
	StorageService *services.StorageService
}

// NewForumController 创建论坛控制器
func NewForumController(forumService *services.ForumService, storageService *services.StorageService) *ForumController {
	return &ForumController{
		ForumService:   forumService,
		StorageService: storageService,
	}
}

// ListForums 获取论坛列表
// 系统管理员看到所有论坛，普通用户看到自己加入的论坛
func (c *ForumController) ListForums(ctx *gin.Context) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		return
	}

	forums, err := c.ForumService.ListForums(userID, role)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"forums": forums,
		"total":  len(forums),
	})
}

// GetForum 获取论坛详情
func (c *ForumController) GetForum(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	forum, members, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	// 非成员且非系统管理员不能查看详情
	if !perm.IsMember && !perm.IsSystemAdmin {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "你不是该论坛的成员"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"forum": c.ForumService.BuildForumResponse(forum, members, perm),
	})
}

// CreateForum 创建论坛，仅限系统管理员（由AdminRequired中间件保证）
func (c *ForumController) CreateForum(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		return
	}

	var req models.ForumCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	forum, err := c.ForumService.CreateForum(userID, req.Name, req.Description, req.Members)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	members, err := c.ForumService.GetForumMembers(forum.ID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	perm := services.EvaluatePermissions(userID, models.RoleAdmin, forum, members)
	ctx.JSON(http.StatusOK, gin.H{
		"message": "论坛创建成功",
		"forum":   c.ForumService.BuildForumResponse(forum, members, perm),
	})
}

// UpdateForum 更新论坛名称和描述，仅限论坛管理员
func (c *ForumController) UpdateForum(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if !perm.CanManageSettings() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "只有论坛管理员可以修改论坛设置"})
		return
	}

	var req models.ForumUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	forum, err := c.ForumService.UpdateForum(forumID, req.Name, req.Description)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	members, err := c.ForumService.GetForumMembers(forumID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "论坛更新成功",
		"forum":   c.ForumService.BuildForumResponse(forum, members, perm),
	})
}

// DeleteForum 删除论坛，级联删除消息和附件，仅限论坛管理员
func (c *ForumController) DeleteForum(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if !perm.CanDeleteForum() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "只有论坛管理员可以删除论坛"})
		return
	}

	attachmentPaths, err := c.ForumService.DeleteForum(forumID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 清理对象存储中的附件，失败只记录日志
	if c.StorageService != nil {
		for _, path := range attachmentPaths {
			if err := c.StorageService.DeleteFile(path); err != nil {
				log.Printf("清理附件失败 %s: %v", path, err)
			}
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "论坛删除成功",
	})
}

// AddMember 添加论坛成员，仅限论坛管理员，重复添加幂等
func (c *ForumController) AddMember(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if !perm.CanManageMembers() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "只有论坛管理员可以添加成员"})
		return
	}

	var req models.ForumMemberRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	if err := c.ForumService.AddMember(forumID, req.UserID); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	forum, members, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "成员添加成功",
		"forum":   c.ForumService.BuildForumResponse(forum, members, perm),
	})
}

// RemoveMember 移除论坛成员，仅限论坛管理员，创建者不能被移除
func (c *ForumController) RemoveMember(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	targetID, ok := parseIDParam(ctx, "memberId")
	if !ok {
		return
	}

	_, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if !perm.CanRemoveMember(targetID) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "没有权限移除该成员"})
		return
	}

	if err := c.ForumService.RemoveMember(forumID, targetID); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	forum, members, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "成员移除成功",
		"forum":   c.ForumService.BuildForumResponse(forum, members, perm),
	})
}

// SetAdmin 设置或撤销论坛管理员，仅限创建者或系统管理员
func (c *ForumController) SetAdmin(ctx *gin.Context) {
	forumID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	forum, _, perm, ok := loadForumPermissions(ctx, c.ForumService, forumID)
	if !ok {
		return
	}

	if perm.UserID != forum.CreatorID && !perm.IsSystemAdmin {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "只有创建者可以设置管理员"})
		return
	}

	var req struct {
		UserID  uint `json:"user_id" binding:"required"`
		IsAdmin bool `json:"is_admin"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	if err := c.ForumService.SetForumAdmin(forumID, req.UserID, req.IsAdmin); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "设置管理员成功",
	})
}
