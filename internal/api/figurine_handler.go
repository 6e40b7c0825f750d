package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/service"
	"go.uber.org/zap"
)

// FigurineHandler 手办绑定处理器
type FigurineHandler struct {
	figurineService service.FigurineService
	log             *zap.Logger
}

// NewFigurineHandler 创建手办处理器
func NewFigurineHandler(figurineService service.FigurineService, log *zap.Logger) *FigurineHandler {
	return &FigurineHandler{
		figurineService: figurineService,
		log:             log,
	}
}

// Bind 绑定NFC手办
// @Summary 绑定NFC手办
// @Description 将NFC标签绑定到当前用户，可同时关联一个角色
// @Tags Figurine
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body service.BindFigurineRequest true "绑定信息"
// @Success 201 {object} SuccessResponse{data=service.FigurineSummary}
// @Failure 400 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse "标签已绑定或正在绑定"
// @Failure 503 {object} apperrors.ErrorResponse "锁服务不可用"
// @Router /api/v1/figurines/bind [post]
func (h *FigurineHandler) Bind(c *gin.Context) {
	var req service.BindFigurineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	summary, err := h.figurineService.BindFigurine(c.Request.Context(), currentUser(c), req.NfcUID, req.CharacterID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondOK(c, http.StatusCreated, summary)
}

// List 当前用户的手办列表
// @Summary 手办列表
// @Tags Figurine
// @Security Bearer
// @Produce json
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} SuccessResponse{data=PageData}
// @Router /api/v1/figurines [get]
func (h *FigurineHandler) List(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	page, pageSize := q.normalized()

	items, total, err := h.figurineService.ListFigurinesForUser(c.Request.Context(), currentUser(c), page, pageSize)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	respondPage(c, items, total, page, pageSize)
}

// Get 手办详情
// @Summary 手办详情
// @Tags Figurine
// @Security Bearer
// @Produce json
// @Param id path string true "手办ID"
// @Success 200 {object} SuccessResponse{data=service.FigurineDetail}
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /api/v1/figurines/{id} [get]
func (h *FigurineHandler) Get(c *gin.Context) {
	detail, err := h.figurineService.GetFigurine(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, detail)
}

// LinkCharacter 关联角色
// @Summary 关联角色
// @Tags Figurine
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "手办ID"
// @Param request body service.LinkCharacterRequest true "角色"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} apperrors.ErrorResponse
// @Failure 404 {object} apperrors.ErrorResponse
// @Failure 409 {object} apperrors.ErrorResponse "手办或角色已存在关联"
// @Router /api/v1/figurines/{id}/link-character [post]
func (h *FigurineHandler) LinkCharacter(c *gin.Context) {
	var req service.LinkCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	if err := h.figurineService.LinkCharacter(c.Request.Context(), currentUser(c), c.Param("id"), req.CharacterID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "角色关联成功"})
}

// UnlinkCharacter 解除角色关联
// @Summary 解除角色关联
// @Tags Figurine
// @Security Bearer
// @Produce json
// @Param id path string true "手办ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} apperrors.ErrorResponse "手办未关联角色"
// @Router /api/v1/figurines/{id}/unlink-character [delete]
func (h *FigurineHandler) UnlinkCharacter(c *gin.Context) {
	if err := h.figurineService.UnbindCharacter(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "已解除角色关联"})
}

// AuditLog 手办审计日志
// @Summary 审计日志
// @Tags Figurine
// @Security Bearer
// @Produce json
// @Param id path string true "手办ID"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} SuccessResponse{data=PageData}
// @Router /api/v1/figurines/{id}/audit [get]
func (h *FigurineHandler) AuditLog(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}
	page, pageSize := q.normalized()

	entries, total, err := h.figurineService.ListAuditLog(c.Request.Context(), currentUser(c), c.Param("id"), page, pageSize)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondPage(c, entries, total, page, pageSize)
}

// Scan 扫描NFC标签（公开接口）
// 只有关联了角色的手办才会返回详情，响应中不包含所有者邮箱
// @Summary 扫描NFC标签
// @Tags Figurine
// @Produce json
// @Param nfcUid path string true "NFC UID"
// @Success 200 {object} SuccessResponse{data=service.FigurineDetail}
// @Failure 404 {object} apperrors.ErrorResponse
// @Router /api/v1/figurines/nfc/{nfcUid} [get]
func (h *FigurineHandler) Scan(c *gin.Context) {
	detail, found, err := h.figurineService.GetFigurineByNfcUID(c.Request.Context(), c.Param("nfcUid"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !found {
		respondError(c, h.log, apperrors.New(apperrors.ErrNotFound, "未找到该NFC标签对应的手办"))
		return
	}
	if detail.LinkedCharacterID == nil {
		respondError(c, h.log, apperrors.New(apperrors.ErrNotFound, "该手办尚未关联角色"))
		return
	}

	public := *detail
	public.Owner = nil
	respondOK(c, http.StatusOK, &public)
}
