package api

import (
	"github.com/gin-gonic/gin"

	"forumchat/middleware"
	"forumchat/services"
)

// RegisterRoutes 注册API路由
func RegisterRoutes(r *gin.Engine, userService *services.UserService, forumService *services.ForumService, messageService *services.MessageService, storageService *services.StorageService, kafkaService *services.KafkaService, notifier *services.Notifier) {
	// 创建控制器
	authController := NewAuthController(userService)
	userController := NewUserController(userService)
	forumController := NewForumController(forumService, storageService)
	messageController := NewMessageController(messageService, forumService, storageService)
	stickerController := NewStickerController()
	notifyController := NewNotifyController(notifier)
	monitorController := NewMonitorController(notifier, kafkaService)

	// 健康检查
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok", "service": "forum-chat"})
	})

	// 公开路由
	public := r.Group("/api")
	{
		// 认证相关
		public.POST("/register", authController.Register)
		public.POST("/login", authController.Login)
	}

	// 需要认证的路由
	api := r.Group("/api")
	{
		// 用户相关
		api.GET("/users", userController.GetAllUsers)
		api.GET("/users/:id", userController.GetUserByID)
		api.PUT("/users/:id", userController.UpdateUser)

		// 论坛相关
		forums := api.Group("/forums")
		{
			forums.GET("", forumController.ListForums)
			forums.GET("/:id", forumController.GetForum)
			forums.POST("", middleware.AdminRequired(), forumController.CreateForum)
			forums.PUT("/:id", forumController.UpdateForum)
			forums.DELETE("/:id", forumController.DeleteForum)
			forums.POST("/:id/members", forumController.AddMember)
			forums.DELETE("/:id/members/:memberId", forumController.RemoveMember)
			forums.PUT("/:id/admins", forumController.SetAdmin)
		}

		// 消息相关
		messages := api.Group("/messages")
		{
			messages.GET("/forum/:forumId", messageController.GetMessages)
			messages.POST("", messageController.SendMessage)
			messages.POST("/file", messageController.SendFile)
			messages.DELETE("/:id", messageController.DeleteMessage)
			messages.GET("/:id/download", messageController.DownloadFile)
			messages.GET("/proxy", messageController.ProxyFile)
		}

		// 贴纸相关
		api.GET("/stickers", stickerController.GetStickers)

		// WebSocket拉取提示
		api.GET("/ws", notifyController.HandleWebSocket)

		// 监控相关
		api.GET("/monitor/system", monitorController.GetSystemStatus)
	}
}
