package service

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/utils"
	"go.uber.org/zap"
)

// authService 认证服务实现
// 账号和登录由外部认证服务负责，这里只校验共享密钥签发的访问令牌
type authService struct {
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(jwtManager *utils.JWTManager, log *zap.Logger) AuthService {
	return &authService{
		jwtManager: jwtManager,
		log:        log,
	}
}

// ValidateToken 验证访问令牌
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌")
	}

	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, apperrors.New(apperrors.ErrTokenExpired)
		}
		s.log.Debug("令牌校验失败", zap.Error(err))
		return nil, apperrors.New(apperrors.ErrTokenInvalid)
	}
	return claims, nil
}

// IssueToken 签发访问令牌
func (s *authService) IssueToken(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, "用户ID不能为空")
	}
	token, err := s.jwtManager.GenerateAccessToken(userID, email)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal, "生成令牌失败")
	}
	return token, nil
}
