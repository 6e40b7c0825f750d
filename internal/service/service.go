package service

import (
	"time"

	"github.com/wfunc/figurine-hub/internal/config"
	"github.com/wfunc/figurine-hub/internal/lock"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/repository"
	"github.com/wfunc/figurine-hub/internal/utils"
	"go.uber.org/zap"
)

// Config 服务配置
type Config struct {
	JWTSecret   string
	JWTIssuer   string
	TokenExpiry time.Duration
	LockTTL     time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:   "change-me-in-production",
		JWTIssuer:   "figurine-hub",
		TokenExpiry: 24 * time.Hour,
		LockTTL:     lock.DefaultTTL,
	}
}

// ConfigFrom 从全局配置构造服务配置
func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		JWTSecret:   cfg.Security.JWT.Secret,
		JWTIssuer:   cfg.Security.JWT.Issuer,
		TokenExpiry: time.Duration(cfg.Security.JWT.ExpireHours) * time.Hour,
		LockTTL:     cfg.Binding.LockTTL,
	}
}

// Services 服务集合
type Services struct {
	Auth      AuthService
	Figurine  FigurineService
	Character CharacterService

	// Repos 供健康检查使用
	Repos *repository.Manager
}

// NewServices 创建服务集合
// m 和 publisher 可以为 nil
func NewServices(
	repos *repository.Manager,
	locker lock.Locker,
	cfg *Config,
	m *metrics.Metrics,
	publisher EventPublisher,
	log *zap.Logger,
) *Services {
	jwtManager := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenExpiry)

	return &Services{
		Auth:      NewAuthService(jwtManager, log.Named("auth")),
		Figurine:  NewFigurineService(repos, locker, cfg.LockTTL, m, publisher, log.Named("binding")),
		Character: NewCharacterService(repos.Character(), log.Named("character")),
		Repos:     repos,
	}
}
