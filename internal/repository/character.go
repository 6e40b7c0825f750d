package repository

import (
	"context"

	"github.com/wfunc/figurine-hub/internal/models"
	"gorm.io/gorm"
)

// CharacterRepository 角色仓储接口
type CharacterRepository interface {
	BaseRepository
	Create(ctx context.Context, character *models.Character) error
	FindByID(ctx context.Context, id string) (*models.Character, error)
	ListByOwner(ctx context.Context, ownerID string, pagination *Pagination) ([]*models.Character, error)
}

// characterRepo 角色仓储实现
type characterRepo struct {
	*BaseRepo
}

// NewCharacterRepository 创建角色仓储
func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建角色
func (r *characterRepo) Create(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

// FindByID 根据ID查找角色，同时加载已关联的手办
func (r *characterRepo) FindByID(ctx context.Context, id string) (*models.Character, error) {
	var character models.Character
	if err := r.db.WithContext(ctx).Preload("Figurine").First(&character, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &character, nil
}

// ListByOwner 用户的角色列表
func (r *characterRepo) ListByOwner(ctx context.Context, ownerID string, pagination *Pagination) ([]*models.Character, error) {
	var characters []*models.Character
	scope := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Character{}).Where("owner_id = ?", ownerID)
	}
	query := scope()

	if pagination != nil {
		if err := scope().Count(&pagination.Total).Error; err != nil {
			return nil, err
		}
		query = query.Scopes(Paginate(pagination))
	}

	err := query.Preload("Figurine").Order("created_at DESC").Find(&characters).Error
	return characters, err
}
