package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	txManager TransactionManager

	// 仓储实例（懒加载）
	figurineOnce sync.Once
	figurine     FigurineRepository

	characterOnce sync.Once
	character     CharacterRepository

	auditLogOnce sync.Once
	auditLog     AuditLogRepository

	userOnce sync.Once
	user     UserRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		txManager: NewTransactionManager(db),
	}
}

// DB 获取数据库实例
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Figurine 手办仓储
func (m *Manager) Figurine() FigurineRepository {
	m.figurineOnce.Do(func() {
		m.figurine = NewFigurineRepository(m.db)
	})
	return m.figurine
}

// Character 角色仓储
func (m *Manager) Character() CharacterRepository {
	m.characterOnce.Do(func() {
		m.character = NewCharacterRepository(m.db)
	})
	return m.character
}

// AuditLog 审计日志仓储
func (m *Manager) AuditLog() AuditLogRepository {
	m.auditLogOnce.Do(func() {
		m.auditLog = NewAuditLogRepository(m.db)
	})
	return m.auditLog
}

// User 用户仓储
func (m *Manager) User() UserRepository {
	m.userOnce.Do(func() {
		m.user = NewUserRepository(m.db)
	})
	return m.user
}

// WithTransaction 在事务中执行函数
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransaction(ctx, fn)
}

// Ping 检查数据库连接
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
