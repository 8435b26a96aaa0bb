package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"forumchat/models"
	"forumchat/services"
)

// UserController 用户控制器
type UserController struct {
	UserService *services.UserService
}

// NewUserController 创建用户控制器
func NewUserController(userService *services.UserService) *UserController {
	return &UserController{
		UserService: userService,
	}
}

// GetAllUsers 获取所有用户，供成员选择器使用
func (c *UserController) GetAllUsers(ctx *gin.Context) {
	// 支持按用户名/邮箱搜索
	if query := ctx.Query("q"); query != "" {
		users, err := c.UserService.SearchUsers(query)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"users": users})
		return
	}

	users, err := c.UserService.GetAllUsers()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUserByID 根据ID获取用户
func (c *UserController) GetUserByID(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	user, err := c.UserService.GetUserResponse(userID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUser 更新用户资料，只能修改自己，系统管理员可以修改任何人
func (c *UserController) UpdateUser(ctx *gin.Context) {
	targetID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	callerID, role, ok := currentUser(ctx)
	if !ok {
		return
	}

	if callerID != targetID && !role.IsSystemAdmin() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "只能修改自己的资料"})
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Avatar   string `json:"avatar"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误: " + err.Error()})
		return
	}

	user, err := c.UserService.UpdateUser(targetID, req.Username, req.Email, req.Avatar)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "用户信息更新成功",
		"user": models.UserResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Avatar:   user.Avatar,
			Role:     user.Role,
		},
	})
}
