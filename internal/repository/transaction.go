package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TransactionManager 事务管理器接口
type TransactionManager interface {
	// Begin 开始事务
	Begin(ctx context.Context) (*Transaction, error)
	// WithTransaction 在事务中执行函数，fn 返回错误或发生panic时整体回滚
	WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error
}

// Transaction 事务包装器
type Transaction struct {
	tx         *gorm.DB
	ctx        context.Context
	committed  bool
	rolledback bool

	// 事务中的仓储实例
	figurine  FigurineRepository
	character CharacterRepository
	auditLog  AuditLogRepository
	user      UserRepository
}

// txManager 事务管理器实现
type txManager struct {
	db *gorm.DB
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

// Begin 开始事务
func (m *txManager) Begin(ctx context.Context) (*Transaction, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	return &Transaction{
		tx:  tx,
		ctx: ctx,
	}, nil
}

// WithTransaction 在事务中执行函数
func (m *txManager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) (err error) {
	tx, err := m.Begin(ctx)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	// 确保事务被处理
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if !tx.committed && !tx.rolledback {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Commit 提交事务
func (t *Transaction) Commit() error {
	if t.committed {
		return fmt.Errorf("事务已提交")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Commit().Error; err != nil {
		return err
	}

	t.committed = true
	return nil
}

// Rollback 回滚事务
func (t *Transaction) Rollback() error {
	if t.committed {
		return fmt.Errorf("事务已提交，无法回滚")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Rollback().Error; err != nil {
		return err
	}

	t.rolledback = true
	return nil
}

// GetDB 获取事务中的数据库实例
func (t *Transaction) GetDB() *gorm.DB {
	return t.tx
}

// Figurine 获取事务中的手办仓储
func (t *Transaction) Figurine() FigurineRepository {
	if t.figurine == nil {
		t.figurine = &figurineRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.figurine
}

// Character 获取事务中的角色仓储
func (t *Transaction) Character() CharacterRepository {
	if t.character == nil {
		t.character = &characterRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.character
}

// AuditLog 获取事务中的审计日志仓储
func (t *Transaction) AuditLog() AuditLogRepository {
	if t.auditLog == nil {
		t.auditLog = &auditLogRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.auditLog
}

// User 获取事务中的用户仓储
func (t *Transaction) User() UserRepository {
	if t.user == nil {
		t.user = &userRepo{BaseRepo: &BaseRepo{db: t.tx}}
	}
	return t.user
}
