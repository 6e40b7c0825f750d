package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
)

// TestLoad_Defaults 测试默认配置
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Binding.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.Binding.LockTTL)
	assert.Equal(t, "lock:", cfg.Binding.LockKeyPrefix)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.NFC.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

// TestLoad_File 测试从YAML文件读取
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
binding:
  lock_backend: memory
  lock_ttl: 10s
redis:
  addr: redis.internal:6380
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Binding.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.Binding.LockTTL)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

// TestLoad_Env 测试环境变量覆盖
func TestLoad_Env(t *testing.T) {
	t.Setenv("FIGURINE_HUB_BINDING_LOCK_TTL", "5s")
	t.Setenv("FIGURINE_HUB_DATABASE_DRIVER", "postgres")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Binding.LockTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

// TestLoad_Invalid 测试非法配置
func TestLoad_Invalid(t *testing.T) {
	t.Setenv("FIGURINE_HUB_BINDING_LOCK_BACKEND", "etcd")

	_, err := Load("")
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigValidate))
}

// TestLoad_BadFile 测试配置文件格式错误
func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigLoad))
	assert.True(t, apperrors.IsCritical(err))
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "mysql"},
		Binding:  BindingConfig{LockBackend: "memory", LockTTL: time.Second},
		Security: SecurityConfig{JWT: JWTConfig{Secret: "s"}},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Binding.LockTTL = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrConfigValidate, apperrors.GetCode(err))

	cfg.Binding.LockTTL = time.Second
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())
}
