package database

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/figurine-hub/internal/lock"
	"github.com/wfunc/figurine-hub/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationLockKey = "schema:migrate"
	migrationLockTTL = 2 * time.Minute
)

// AutoMigrate 自动迁移表结构
// locker 不为空时先获取分布式锁，避免多个实例同时迁移
func AutoMigrate(ctx context.Context, db *gorm.DB, locker lock.Locker, log *zap.Logger) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	if locker != nil {
		waitCtx, cancel := context.WithTimeout(ctx, migrationLockTTL)
		defer cancel()

		token, err := lock.Wait(waitCtx, locker, migrationLockKey, migrationLockTTL, 500*time.Millisecond)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer func() {
			if _, err := locker.Release(context.Background(), migrationLockKey, token); err != nil {
				log.Warn("释放迁移锁失败", zap.Error(err))
			}
		}()
	}

	log.Info("开始数据库迁移...")

	for _, model := range models.All() {
		if err := db.WithContext(ctx).AutoMigrate(model); err != nil {
			log.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		log.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	if err := createIndexes(ctx, db, log); err != nil {
		return err
	}

	log.Info("数据库迁移完成")
	return nil
}

// compositeIndexes 模型标签之外的组合索引
var compositeIndexes = []struct {
	name    string
	table   string
	columns string
}{
	{"idx_figurines_owner_created", "figurines", "owner_id, created_at"},
	{"idx_audit_logs_figurine_time", "audit_logs", "figurine_id, created_at"},
}

// createIndexes 创建组合索引，失败只记录警告
func createIndexes(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	for _, idx := range compositeIndexes {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s(%s)", idx.name, idx.table, idx.columns)
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			log.Warn("创建索引失败", zap.String("index", idx.name), zap.Error(err))
		}
	}
	return nil
}
