package services

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"forumchat/config"
)

// StartServer 在后台启动HTTP服务器并返回句柄，由main负责优雅关闭
// 写超时要容纳附件代理下载，按上传上限放宽
func StartServer(r *gin.Engine, port string) *http.Server {
	writeTimeout := 30 * time.Second
	if config.AppConfig.MaxUploadSize > 10<<20 {
		writeTimeout = 2 * time.Minute
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  2 * time.Minute, // 附件上传可能较慢
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("论坛服务监听失败: %v", err)
		}
	}()

	log.Printf("论坛服务启动在端口 %s", port)
	return srv
}
