package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"forumchat/config"
)

func TestTokenRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateToken(42, "alice", "user")
	if err != nil {
		t.Fatalf("生成令牌失败: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("解析令牌失败: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Role != "user" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenInvalid(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	if _, err := ParseToken("not-a-token"); err == nil {
		t.Error("解析非法令牌应当失败")
	}

	// 密钥不匹配
	token, _ := GenerateToken(1, "bob", "user")
	config.AppConfig.JWTSecret = "another-secret"
	if _, err := ParseToken(token); err == nil {
		t.Error("密钥不匹配时解析应当失败")
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "test-secret"

	r := gin.New()
	r.Use(JWTAuth())
	r.GET("/api/ping", func(ctx *gin.Context) {
		userID, _ := ctx.Get("userID")
		ctx.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	r.POST("/api/login", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{})
	})

	// 无令牌被拒绝
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("无令牌状态码 = %d, 期望 401", w.Code)
	}

	// 带合法令牌放行
	token, _ := GenerateToken(7, "alice", "user")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("合法令牌状态码 = %d, 期望 200", w.Code)
	}

	// 登录接口不需要令牌
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/login", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("登录接口状态码 = %d, 期望 200", w.Code)
	}
}
