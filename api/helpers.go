package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"forumchat/models"
	"forumchat/services"
)

// currentUser 从上下文中取出认证用户，未认证时直接返回401
func currentUser(ctx *gin.Context) (uint, models.UserRole, bool) {
	userID, exists := ctx.Get("userID")
	if !exists {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
		return 0, "", false
	}

	role := models.RoleUser
	if r, ok := ctx.Get("role"); ok {
		role = models.UserRole(r.(string))
	}

	return userID.(uint), role, true
}

// parseIDParam 解析路径中的ID参数
func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	idStr := ctx.Param(name)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "无效的ID参数"})
		return 0, false
	}
	return uint(id), true
}

// loadForumPermissions 加载论坛及成员并计算调用者的权限
// 权限每个请求重新计算，不做缓存，成员变更立刻生效
func loadForumPermissions(ctx *gin.Context, forumService *services.ForumService, forumID uint) (*models.Forum, []models.ForumMember, services.PermissionSet, bool) {
	userID, role, ok := currentUser(ctx)
	if !ok {
		return nil, nil, services.PermissionSet{}, false
	}

	forum, err := forumService.GetForumByID(forumID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, nil, services.PermissionSet{}, false
	}

	members, err := forumService.GetForumMembers(forumID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, services.PermissionSet{}, false
	}

	perm := services.EvaluatePermissions(userID, role, forum, members)
	return forum, members, perm, true
}
