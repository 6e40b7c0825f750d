package repository

import (
	"context"
	"strings"

	"github.com/wfunc/figurine-hub/internal/models"
	"gorm.io/gorm"
)

// FigurineRepository 手办仓储接口
type FigurineRepository interface {
	BaseRepository
	Create(ctx context.Context, figurine *models.Figurine) error
	FindByID(ctx context.Context, id string) (*models.Figurine, error)
	FindByIDWithRelations(ctx context.Context, id string) (*models.Figurine, error)
	FindByNfcUID(ctx context.Context, nfcUID string) (*models.Figurine, error)
	FindByNfcUIDWithRelations(ctx context.Context, nfcUID string) (*models.Figurine, error)
	FindByLinkedCharacter(ctx context.Context, characterID string) (*models.Figurine, error)
	ListByOwner(ctx context.Context, ownerID string, pagination *Pagination) ([]*models.Figurine, error)
	LinkCharacter(ctx context.Context, figurineID, characterID string) error
	UnlinkCharacter(ctx context.Context, figurineID, characterID string) error
}

// figurineRepo 手办仓储实现
type figurineRepo struct {
	*BaseRepo
}

// NewFigurineRepository 创建手办仓储
func NewFigurineRepository(db *gorm.DB) FigurineRepository {
	return &figurineRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建手办，唯一约束冲突转换为对应的仓储错误
func (r *figurineRepo) Create(ctx context.Context, figurine *models.Figurine) error {
	err := r.db.WithContext(ctx).Create(figurine).Error
	if isDuplicateKey(err) {
		if strings.Contains(err.Error(), "linked_character") {
			return ErrCharacterTaken
		}
		return ErrDuplicateNfcUID
	}
	return err
}

// FindByID 根据ID查找
func (r *figurineRepo) FindByID(ctx context.Context, id string) (*models.Figurine, error) {
	var figurine models.Figurine
	if err := r.db.WithContext(ctx).First(&figurine, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &figurine, nil
}

// FindByIDWithRelations 根据ID查找并加载所有者与关联角色
func (r *figurineRepo) FindByIDWithRelations(ctx context.Context, id string) (*models.Figurine, error) {
	var figurine models.Figurine
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("LinkedCharacter").
		First(&figurine, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &figurine, nil
}

// FindByNfcUID 根据NFC UID查找
func (r *figurineRepo) FindByNfcUID(ctx context.Context, nfcUID string) (*models.Figurine, error) {
	var figurine models.Figurine
	if err := r.db.WithContext(ctx).Where("nfc_uid = ?", nfcUID).First(&figurine).Error; err != nil {
		return nil, notFound(err)
	}
	return &figurine, nil
}

// FindByNfcUIDWithRelations 根据NFC UID查找并加载所有者与关联角色
func (r *figurineRepo) FindByNfcUIDWithRelations(ctx context.Context, nfcUID string) (*models.Figurine, error) {
	var figurine models.Figurine
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("LinkedCharacter").
		Where("nfc_uid = ?", nfcUID).
		First(&figurine).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &figurine, nil
}

// FindByLinkedCharacter 查找关联了指定角色的手办
func (r *figurineRepo) FindByLinkedCharacter(ctx context.Context, characterID string) (*models.Figurine, error) {
	var figurine models.Figurine
	if err := r.db.WithContext(ctx).Where("linked_character_id = ?", characterID).First(&figurine).Error; err != nil {
		return nil, notFound(err)
	}
	return &figurine, nil
}

// ListByOwner 用户的手办列表，按创建时间倒序
func (r *figurineRepo) ListByOwner(ctx context.Context, ownerID string, pagination *Pagination) ([]*models.Figurine, error) {
	var figurines []*models.Figurine
	scope := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Figurine{}).Where("owner_id = ?", ownerID)
	}
	query := scope()

	if pagination != nil {
		if err := scope().Count(&pagination.Total).Error; err != nil {
			return nil, err
		}
		query = query.Scopes(Paginate(pagination))
	}

	err := query.
		Preload("LinkedCharacter").
		Order("created_at DESC").
		Order("id DESC").
		Find(&figurines).Error
	return figurines, err
}

// LinkCharacter 仅当手办当前未关联角色时写入关联
// 未命中返回 ErrConflict，角色已被其他手办关联返回 ErrCharacterTaken
func (r *figurineRepo) LinkCharacter(ctx context.Context, figurineID, characterID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Figurine{}).
		Where("id = ? AND linked_character_id IS NULL", figurineID).
		Update("linked_character_id", characterID)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return ErrCharacterTaken
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// UnlinkCharacter 仅当手办当前关联的是 characterID 时解除关联
func (r *figurineRepo) UnlinkCharacter(ctx context.Context, figurineID, characterID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Figurine{}).
		Where("id = ? AND linked_character_id = ?", figurineID, characterID).
		Update("linked_character_id", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
