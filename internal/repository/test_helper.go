package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/figurine-hub/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建内存SQLite测试数据库
// 只保留一个连接，保证并发测试中的goroutine访问的是同一个内存库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SeedUser 创建测试用户
func SeedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	user := &models.User{Email: email, DisplayName: email}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

// SeedCharacter 创建测试角色
func SeedCharacter(t *testing.T, db *gorm.DB, ownerID, name string) *models.Character {
	character := &models.Character{OwnerID: ownerID, Name: name, Class: "Wizard", Level: 3}
	require.NoError(t, NewCharacterRepository(db).Create(context.Background(), character))
	return character
}
