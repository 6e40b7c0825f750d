package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/wfunc/figurine-hub/internal/config"
	"go.uber.org/zap"
)

// Client 锁后端使用的Redis客户端，由进程启动时创建、关闭时释放
type Client struct {
	rdb *goredis.Client
	cfg *config.RedisConfig
	log *zap.Logger
}

// NewClient 创建Redis客户端并检测连通性
func NewClient(ctx context.Context, cfg *config.RedisConfig, log *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	c := &Client{rdb: rdb, cfg: cfg, log: log}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	log.Info("Redis连接成功", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return c, nil
}

// Redis 返回底层go-redis客户端
func (c *Client) Redis() *goredis.Client {
	return c.rdb
}

// Ping 检测连通性
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis连接测试失败: %w", err)
	}
	return nil
}

// Close 关闭连接池
func (c *Client) Close() error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}
	c.log.Info("Redis连接已关闭")
	return nil
}

// PoolStats 连接池统计，用于导出指标
func (c *Client) PoolStats() *goredis.PoolStats {
	return c.rdb.PoolStats()
}
