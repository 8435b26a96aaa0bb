package services

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"forumchat/config"
	"forumchat/models"
)

// setupTestDB 创建内存数据库并迁移表结构
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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

	return db
}

// setupTestRedis 启动内存Redis并返回客户端
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}

// createTestUser 插入测试用户
func createTestUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Password: "hashed",
		Email:    fmt.Sprintf("%s@test.com", username),
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

// createTestForum 插入测试论坛及初始成员
func createTestForum(t *testing.T, svc *ForumService, creatorID uint, name string, memberIDs ...uint) *models.Forum {
	t.Helper()

	forum, err := svc.CreateForum(creatorID, name, "测试论坛", memberIDs)
	if err != nil {
		t.Fatalf("创建测试论坛失败: %v", err)
	}
	return forum
}
