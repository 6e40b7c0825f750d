package service

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/repository"
	"go.uber.org/zap"
)

// characterService 角色卡查询服务实现
type characterService struct {
	repo repository.CharacterRepository
	log  *zap.Logger
}

// NewCharacterService 创建角色卡查询服务
func NewCharacterService(repo repository.CharacterRepository, log *zap.Logger) CharacterService {
	return &characterService{
		repo: repo,
		log:  log,
	}
}

// ListCharactersForUser 用户的角色列表，附带已关联的手办ID
func (s *characterService) ListCharactersForUser(ctx context.Context, userID string, page, pageSize int) ([]*CharacterSummary, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.New(apperrors.ErrInvalidInput, "用户ID不能为空")
	}

	pagination := repository.NewPagination(page, pageSize)
	characters, err := s.repo.ListByOwner(ctx, userID, pagination)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	result := make([]*CharacterSummary, 0, len(characters))
	for _, c := range characters {
		result = append(result, toCharacterSummary(c))
	}
	return result, pagination.Total, nil
}

// GetCharacter 获取角色详情
func (s *characterService) GetCharacter(ctx context.Context, userID, characterID string) (*CharacterSummary, error) {
	if userID == "" || characterID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "用户ID和角色ID不能为空")
	}

	character, err := s.repo.FindByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "角色不存在")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if character.OwnerID != userID {
		return nil, apperrors.New(apperrors.ErrNotOwner)
	}
	return toCharacterSummary(character), nil
}
