package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"forumchat/models"
)

// StickerController 贴纸控制器
// 贴纸目前是内置目录，消息只保存贴纸URL
type StickerController struct{}

// NewStickerController 创建贴纸控制器
func NewStickerController() *StickerController {
	return &StickerController{}
}

// stickerCatalog 内置贴纸目录
var stickerCatalog = []models.Sticker{
	{ID: "happy1", URL: "https://media.tenor.com/images/da23cb5e1e514204a85d2a91ce5edb5a/tenor.gif", Name: "开心"},
	{ID: "cute1", URL: "https://media.tenor.com/images/f9c4e4a8d5e84f2db8e27f1b8fb9c9a0/tenor.gif", Name: "可爱"},
	{ID: "excited1", URL: "https://media.tenor.com/images/7a2e5a3f5e8f4e2db8e27f1b8fb9c9a0/tenor.gif", Name: "兴奋"},
	{ID: "shy1", URL: "https://media.tenor.com/images/5b3c6d4f5e8f4e2db8e27f1b8fb9c9a0/tenor.gif", Name: "害羞"},
	{ID: "laugh1", URL: "https://media.tenor.com/images/9e4f5d3f5e8f4e2db8e27f1b8fb9c9a0/tenor.gif", Name: "大笑"},
	{ID: "love1", URL: "https://media.tenor.com/images/1a2b3c4d5e6f7g8h9i0j1k2l3m4n5o6p/tenor.gif", Name: "爱心"},
	{ID: "cry1", URL: "https://media.tenor.com/images/2b3c4d5e6f7g8h9i0j1k2l3m4n5o6p7q/tenor.gif", Name: "哭泣"},
	{ID: "angry1", URL: "https://media.tenor.com/images/3c4d5e6f7g8h9i0j1k2l3m4n5o6p7q8r/tenor.gif", Name: "生气"},
}

// GetStickers 获取可用贴纸列表
func (c *StickerController) GetStickers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"stickers": stickerCatalog,
		"total":    len(stickerCatalog),
	})
}
