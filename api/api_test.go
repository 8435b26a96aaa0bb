package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"forumchat/config"
	"forumchat/middleware"
	"forumchat/models"
	"forumchat/services"
)

// testEnv 接口测试环境：完整路由 + 内存数据库
type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	users    *services.UserService
	forums   *services.ForumService
	messages *services.MessageService
}

// setupTestEnv 搭建带认证中间件的完整路由
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.CacheExpiration = 300
	config.AppConfig.MessageFetchLimit = 100

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Forum{}, &models.ForumMember{}, &models.Message{}); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}

	userService := services.NewUserService(db, nil)
	forumService := services.NewForumService(db, nil, nil)
	messageService := services.NewMessageService(db, nil, userService, nil)

	r := gin.New()
	r.Use(middleware.JWTAuth())
	RegisterRoutes(r, userService, forumService, messageService, nil, nil, services.NewNotifier())

	return &testEnv{
		router:   r,
		db:       db,
		users:    userService,
		forums:   forumService,
		messages: messageService,
	}
}

// createUser 插入测试用户
func (e *testEnv) createUser(t *testing.T, username string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Password: "hashed",
		Email:    fmt.Sprintf("%s@test.com", username),
		Role:     role,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

// doJSON 以某用户身份发起JSON请求
func (e *testEnv) doJSON(t *testing.T, user *models.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := middleware.GenerateToken(user.ID, user.Username, string(user.Role))
		if err != nil {
			t.Fatalf("生成令牌失败: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestSendMessageRequiresMembership(t *testing.T) {
	env := setupTestEnv(t)

	creator := env.createUser(t, "creator", models.RoleAdmin)
	outsider := env.createUser(t, "outsider", models.RoleUser)

	forum, err := env.forums.CreateForum(creator.ID, "成员限定论坛", "", nil)
	if err != nil {
		t.Fatalf("创建论坛失败: %v", err)
	}

	// 非成员发消息被拒绝
	w := env.doJSON(t, outsider, http.MethodPost, "/api/messages", models.MessageCreateRequest{
		ForumID: forum.ID,
		Type:    models.TextMessage,
		Content: "我不是成员",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("非成员发消息状态码 = %d, 期望 403", w.Code)
	}

	// 消息不落库
	var count int64
	env.db.Model(&models.Message{}).Where("forum_id = ?", forum.ID).Count(&count)
	if count != 0 {
		t.Errorf("被拒绝的消息不应当落库, 消息数 = %d", count)
	}

	// 成员正常发送作为对照
	w = env.doJSON(t, creator, http.MethodPost, "/api/messages", models.MessageCreateRequest{
		ForumID: forum.ID,
		Type:    models.TextMessage,
		Content: "我是创建者",
	})
	if w.Code != http.StatusOK {
		t.Errorf("成员发消息状态码 = %d, 期望 200, 响应: %s", w.Code, w.Body.String())
	}
	env.db.Model(&models.Message{}).Where("forum_id = ?", forum.ID).Count(&count)
	if count != 1 {
		t.Errorf("消息数 = %d, 期望 1", count)
	}
}

func TestUpdateUserRoute(t *testing.T) {
	env := setupTestEnv(t)

	alice := env.createUser(t, "alice", models.RoleUser)
	bob := env.createUser(t, "bob", models.RoleUser)
	sysadmin := env.createUser(t, "root", models.RoleAdmin)

	// 修改自己的资料
	w := env.doJSON(t, alice, http.MethodPut, fmt.Sprintf("/api/users/%d", alice.ID), map[string]string{
		"avatar": "https://example.com/alice.png",
	})
	if w.Code != http.StatusOK {
		t.Errorf("修改自己资料状态码 = %d, 期望 200, 响应: %s", w.Code, w.Body.String())
	}
	var updated models.User
	env.db.First(&updated, alice.ID)
	if updated.Avatar != "https://example.com/alice.png" {
		t.Errorf("头像未更新: %s", updated.Avatar)
	}

	// 修改别人的资料被拒绝
	w = env.doJSON(t, bob, http.MethodPut, fmt.Sprintf("/api/users/%d", alice.ID), map[string]string{
		"avatar": "https://example.com/hacked.png",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("修改别人资料状态码 = %d, 期望 403", w.Code)
	}

	// 系统管理员可以修改任何人
	w = env.doJSON(t, sysadmin, http.MethodPut, fmt.Sprintf("/api/users/%d", bob.ID), map[string]string{
		"email": "bob@corp.com",
	})
	if w.Code != http.StatusOK {
		t.Errorf("系统管理员修改资料状态码 = %d, 期望 200, 响应: %s", w.Code, w.Body.String())
	}
	updated = models.User{}
	env.db.First(&updated, bob.ID)
	if updated.Email != "bob@corp.com" {
		t.Errorf("邮箱未更新: %s", updated.Email)
	}
}
