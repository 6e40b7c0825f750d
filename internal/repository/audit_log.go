package repository

import (
	"context"

	"github.com/wfunc/figurine-hub/internal/models"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口（只追加）
type AuditLogRepository interface {
	BaseRepository
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByFigurine(ctx context.Context, figurineID string, pagination *Pagination) ([]*models.AuditLog, error)
	CountByFigurine(ctx context.Context, figurineID string) (int64, error)
}

// auditLogRepo 审计日志仓储实现
type auditLogRepo struct {
	*BaseRepo
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 写入审计日志
func (r *auditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByFigurine 手办的审计记录，最新在前
func (r *auditLogRepo) ListByFigurine(ctx context.Context, figurineID string, pagination *Pagination) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	scope := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("figurine_id = ?", figurineID)
	}
	query := scope()

	if pagination != nil {
		if err := scope().Count(&pagination.Total).Error; err != nil {
			return nil, err
		}
		query = query.Scopes(Paginate(pagination))
	}

	err := query.Order("created_at DESC").Find(&entries).Error
	return entries, err
}

// CountByFigurine 统计手办的审计记录数
func (r *auditLogRepo) CountByFigurine(ctx context.Context, figurineID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("figurine_id = ?", figurineID).Count(&count).Error
	return count, err
}
