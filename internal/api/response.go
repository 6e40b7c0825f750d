package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/middleware"
	"github.com/wfunc/figurine-hub/internal/service"
	"go.uber.org/zap"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData 分页数据
type PageData struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// PageQuery 分页查询参数
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// normalized 填充默认值
func (q PageQuery) normalized() (int, int) {
	page, size := q.Page, q.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return page, size
}

// RegisterValidators 注册自定义校验规则
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("不支持的校验引擎")
	}
	return v.RegisterValidation("nfcuid", func(fl validator.FieldLevel) bool {
		return service.ValidNfcUID(fl.Field().String())
	})
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{Success: true, Data: data})
}

func respondPage(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	respondOK(c, http.StatusOK, PageData{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// respondError 将错误转换为统一的错误响应
func respondError(c *gin.Context, log *zap.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrInternal)
	}

	status := appErr.HTTPStatus()
	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.Int("code", int(appErr.Code)),
		zap.Error(err),
	}
	switch {
	case apperrors.IsCritical(appErr):
		log.Error("请求处理失败", append(fields, zap.String("stack", appErr.GetStack()))...)
	case status >= http.StatusInternalServerError:
		log.Warn("请求处理失败", fields...)
	}
	if apperrors.IsRetryable(appErr) {
		c.Header("Retry-After", "1")
	}

	c.AbortWithStatusJSON(status, apperrors.NewErrorResponse(appErr, c.GetString(middleware.ContextRequestID)))
}

// bindError 请求参数绑定失败
func bindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+":"+fe.Tag())
		}
		return apperrors.New(apperrors.ErrInvalidInput, "字段校验失败 "+strings.Join(fields, ", "))
	}
	return apperrors.Wrap(err, apperrors.ErrInvalidInput, "请求体格式错误")
}

// currentUser 当前用户ID，路由挂载了认证中间件时总是存在
func currentUser(c *gin.Context) string {
	userID, _ := middleware.GetUserID(c)
	return userID
}
