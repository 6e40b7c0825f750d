package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/figurine-hub/internal/service"
	"go.uber.org/zap"
)

// CharacterHandler 角色卡处理器
type CharacterHandler struct {
	characterService service.CharacterService
	log              *zap.Logger
}

// NewCharacterHandler 创建角色卡处理器
func NewCharacterHandler(characterService service.CharacterService, log *zap.Logger) *CharacterHandler {
	return &CharacterHandler{
		characterService: characterService,
		log:              log,
	}
}

// List 当前用户的角色列表
// @Summary 角色列表
// @Tags Character
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} SuccessResponse{data=PageData}
// @Router /api/v1/characters [get]
func (h *CharacterHandler) List(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	page, pageSize := q.normalized()

	items, total, err := h.characterService.ListCharactersForUser(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondPage(c, items, total, page, pageSize)
}

// Get 角色详情
// @Summary 角色详情
// @Tags Character
// @Security Bearer
// @Produce json
// @Param id path string true "角色ID"
// @Success 200 {object} SuccessResponse{data=service.CharacterSummary}
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /api/v1/characters/{id} [get]
func (h *CharacterHandler) Get(c *gin.Context) {
	character, err := h.characterService.GetCharacter(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, character)
}
