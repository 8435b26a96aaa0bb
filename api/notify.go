package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"forumchat/services"
)

// upgrader WebSocket升级器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotifyController WebSocket提示控制器
// 提示只告知论坛有新动态，消息内容仍由轮询接口拉取
type NotifyController struct {
	Notifier *services.Notifier
}

// NewNotifyController 创建提示控制器
func NewNotifyController(notifier *services.Notifier) *NotifyController {
	return &NotifyController{
		Notifier: notifier,
	}
}

// HandleWebSocket 升级连接并交给提示中心
func (c *NotifyController) HandleWebSocket(ctx *gin.Context) {
	userID, _, ok := currentUser(ctx)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Printf("WebSocket升级失败: %v", err)
		return
	}

	c.Notifier.HandleConnection(conn, userID)
}
