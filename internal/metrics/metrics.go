package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
)

// Namespace 指标命名空间
const Namespace = "figurine_hub"

// 锁获取结果
const (
	LockAcquired   = "acquired"
	LockContention = "contention"
	LockError      = "error"
)

// Metrics 绑定服务指标
//
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	// 业务操作总数（按操作、结果）
	OperationsTotal *prometheus.CounterVec
	// 锁获取次数（按结果）
	LockAcquireTotal *prometheus.CounterVec
	// 锁持有时长
	LockHoldDuration prometheus.Histogram
	// 锁释放时令牌已不匹配的次数
	LockLostTotal prometheus.Counter

	// HTTP 请求总数（按方法、路由、状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求延迟
	HTTPRequestDuration *prometheus.HistogramVec
	// 当前 WebSocket 连接数
	WebSocketConnections prometheus.Gauge
	// NFC 读卡器扫描次数（按结果）
	NFCScansTotal *prometheus.CounterVec
}

// New 创建指标并注册到独立的 Registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "绑定相关操作总数",
			},
			[]string{"operation", "result"}, // result: ok 或错误码
		),
		LockAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "lock_acquire_total",
				Help:      "绑定锁获取次数",
			},
			[]string{"result"},
		),
		LockHoldDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "lock_hold_seconds",
				Help:      "绑定锁持有时长（秒）",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		LockLostTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "lock_lost_total",
				Help:      "释放时锁已过期或被他人持有的次数",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP请求总数",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP请求延迟（秒）",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		WebSocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "websocket_connections",
				Help:      "当前WebSocket连接数",
			},
		),
		NFCScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "nfc_scans_total",
				Help:      "NFC读卡器扫描次数",
			},
			[]string{"result"}, // linked / unlinked / unknown / invalid / error
		),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.LockAcquireTotal,
		m.LockHoldDuration,
		m.LockLostTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebSocketConnections,
		m.NFCScansTotal,
	)

	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterRedisPool 导出锁后端Redis连接池状态，每次采集时调用 stats
func (m *Metrics) RegisterRedisPool(stats func() *goredis.PoolStats) {
	if m == nil || stats == nil {
		return
	}
	gauge := func(name, help string, value func(*goredis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "redis_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats())) })
	}
	counter := func(name, help string, value func(*goredis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "redis_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(stats())) })
	}

	m.registry.MustRegister(
		gauge("total_conns", "连接池连接总数", func(s *goredis.PoolStats) uint32 { return s.TotalConns }),
		gauge("idle_conns", "连接池空闲连接数", func(s *goredis.PoolStats) uint32 { return s.IdleConns }),
		counter("timeouts_total", "等待连接超时次数", func(s *goredis.PoolStats) uint32 { return s.Timeouts }),
	)
}

// ObserveOperation 记录一次业务操作的结果
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

// ObserveLockAcquire 记录一次锁获取
func (m *Metrics) ObserveLockAcquire(result string) {
	if m == nil {
		return
	}
	m.LockAcquireTotal.WithLabelValues(result).Inc()
}

// ObserveLockRelease 记录锁持有时长，released=false 表示释放时锁已不属于自己
func (m *Metrics) ObserveLockRelease(held time.Duration, released bool) {
	if m == nil {
		return
	}
	m.LockHoldDuration.Observe(held.Seconds())
	if !released {
		m.LockLostTotal.Inc()
	}
}

// ObserveHTTPRequest 记录一次HTTP请求
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}

// WebSocketConnected WebSocket 连接数变化
func (m *Metrics) WebSocketConnected(delta int) {
	if m == nil {
		return
	}
	m.WebSocketConnections.Add(float64(delta))
}

// ObserveNFCScan 记录一次读卡结果
func (m *Metrics) ObserveNFCScan(result string) {
	if m == nil {
		return
	}
	m.NFCScansTotal.WithLabelValues(result).Inc()
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strconv.Itoa(int(apperrors.GetCode(err)))
}
