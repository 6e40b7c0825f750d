package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/figurine-hub/internal/api"
	"github.com/wfunc/figurine-hub/internal/config"
	"github.com/wfunc/figurine-hub/internal/database"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/lock"
	"github.com/wfunc/figurine-hub/internal/logger"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/nfc"
	"github.com/wfunc/figurine-hub/internal/redis"
	"github.com/wfunc/figurine-hub/internal/repository"
	"github.com/wfunc/figurine-hub/internal/service"
	"github.com/wfunc/figurine-hub/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *gorm.DB
	redis    *redis.Client
	locker   lock.Locker
	metrics  *metrics.Metrics
	hub      *websocket.Hub
	services *service.Services
	router   *api.Router
	reader   *nfc.Reader
	http     *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Error("服务器启动失败", zap.Error(err))
		server.closeComponents()
		logger.Sync()
		os.Exit(1)
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 初始化组件并开始监听
func (s *Server) Start() error {
	s.logger.Info("正在启动手办绑定服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return err
	}
	s.startServices()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新", zap.String("log_level", newCfg.Log.Level))
		logger.SetLevel(newCfg.Log.Level)
	})

	s.logger.Info("服务器启动成功", zap.String("http", s.cfg.Server.Addr()))
	return nil
}

// initComponents 按依赖顺序初始化组件
func (s *Server) initComponents() error {
	var err error

	s.db, err = database.Open(&s.cfg.Database, logger.WithModule("database"))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if err := s.initLocker(); err != nil {
		return err
	}

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(s.ctx, s.db, s.locker, logger.WithModule("database")); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	s.metrics = metrics.New()
	if s.redis != nil {
		s.metrics.RegisterRedisPool(s.redis.PoolStats)
	}
	s.hub = websocket.NewHub(s.metrics, logger.WithModule("websocket"))

	s.services = service.NewServices(
		repository.NewManager(s.db),
		s.locker,
		service.ConfigFrom(s.cfg),
		s.metrics,
		s.hub,
		logger.GetLogger(),
	)

	var lockHealth api.HealthChecker
	if s.redis != nil {
		lockHealth = s.redis.Ping
	}

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = api.NewRouter(api.Options{
		Services:   s.services,
		Hub:        s.hub,
		Metrics:    s.metrics,
		Config:     s.cfg,
		LockHealth: lockHealth,
		Log:        logger.WithModule("api"),
	})

	if s.cfg.NFC.Enabled {
		s.reader = nfc.NewReader(&s.cfg.NFC, s.services.Figurine, s.hub, s.metrics, logger.WithModule("nfc"))
	}

	s.http = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return nil
}

// initLocker 创建绑定锁
func (s *Server) initLocker() error {
	switch s.cfg.Binding.LockBackend {
	case "memory":
		s.logger.Warn("使用进程内存锁，仅适用于单实例部署")
		s.locker = lock.NewMemoryLocker()
		return nil
	default:
		client, err := redis.NewClient(s.ctx, &s.cfg.Redis, logger.WithModule("redis"))
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrLockUnavailable, "连接Redis失败")
		}
		s.redis = client
		s.locker = lock.NewRedisLocker(client.Redis(), s.cfg.Binding.LockKeyPrefix)
		return nil
	}
}

// startServices 启动后台任务和HTTP服务
func (s *Server) startServices() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	if s.reader != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reader.Run(s.ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			s.cancel()
		}
	}()
}

// WaitForShutdown 等待退出信号或服务异常退出
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 先停止接收新请求，再停止后台任务
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		err = apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Printf("同步日志失败: %v\n", syncErr)
	}
	return err
}

// closeComponents 释放连接
func (s *Server) closeComponents() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("关闭Redis失败", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("关闭数据库失败", zap.Error(err))
		}
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("手办绑定服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
