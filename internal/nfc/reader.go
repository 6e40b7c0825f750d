package nfc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/figurine-hub/internal/config"
	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/service"
	"go.uber.org/zap"
)

// 扫描结果，同时作为指标标签
const (
	ScanLinked   = "linked"
	ScanUnlinked = "unlinked"
	ScanUnknown  = "unknown"
	ScanInvalid  = "invalid"
	ScanError    = "error"
)

const (
	// 标签停留在读卡器上时会被重复上报
	defaultDebounce   = 2 * time.Second
	maxReconnectDelay = 30 * time.Second
	idlePollInterval  = 20 * time.Millisecond
)

// Lookup 按标签查询手办
type Lookup interface {
	GetFigurineByNfcUID(ctx context.Context, nfcUID string) (*service.FigurineDetail, bool, error)
}

// Reader 串口NFC读卡器
//
// 读卡器每读到一张标签输出一行UID，字节之间可以用空格或冒号分隔。
// 已绑定的标签会向所有者推送 figurine_scanned 事件。
type Reader struct {
	cfg       *config.NFCConfig
	lookup    Lookup
	publisher service.EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	open     func() (io.ReadCloser, error)
	debounce time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewReader 创建读卡器，publisher 和 m 可以为 nil
func NewReader(cfg *config.NFCConfig, lookup Lookup, publisher service.EventPublisher, m *metrics.Metrics, logger *zap.Logger) *Reader {
	r := &Reader{
		cfg:       cfg,
		lookup:    lookup,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		debounce:  defaultDebounce,
		now:       time.Now,
		lastSeen:  make(map[string]time.Time),
	}
	r.open = r.openSerial
	return r
}

// SerialPortExists 检查串口设备是否存在
func SerialPortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (r *Reader) openSerial() (io.ReadCloser, error) {
	if !SerialPortExists(r.cfg.Port) {
		return nil, apperrors.Newf(apperrors.ErrSerialPortOpen, "串口设备不存在: %s", r.cfg.Port)
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        r.cfg.Port,
		Baud:        r.cfg.BaudRate,
		ReadTimeout: r.cfg.ReadTimeout,
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "打开串口 %s 失败", r.cfg.Port)
	}
	return port, nil
}

// Run 连接串口并持续读卡，断开后按退避间隔重连，直到ctx结束
func (r *Reader) Run(ctx context.Context) {
	interval := r.cfg.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	delay := interval

	for {
		port, err := r.open()
		if err == nil {
			r.logger.Info("NFC读卡器已连接", zap.String("port", r.cfg.Port))
			delay = interval

			err = r.Process(ctx, port)
			port.Close()
			if ctx.Err() != nil {
				r.logger.Info("NFC读卡器已停止")
				return
			}
			r.logger.Warn("NFC读卡器断开", zap.String("port", r.cfg.Port), zap.Error(err))
		} else {
			r.logger.Warn("NFC读卡器连接失败，等待重试",
				zap.String("port", r.cfg.Port),
				zap.Error(err),
				zap.Duration("interval", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		// 逐渐增加重连间隔
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Process 从 src 逐行读取UID并处理，直到读取出错或ctx结束
func (r *Reader) Process(ctx context.Context, src io.Reader) error {
	scanner := bufio.NewScanner(&pollingReader{ctx: ctx, r: src})
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.HandleScan(ctx, line)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrSerialPortRead, r.cfg.Port)
	}
	return io.ErrUnexpectedEOF
}

// HandleScan 处理一次读卡，返回扫描结果
func (r *Reader) HandleScan(ctx context.Context, raw string) string {
	uid := NormalizeUID(raw)
	if !service.ValidNfcUID(uid) {
		r.metrics.ObserveNFCScan(ScanInvalid)
		r.logger.Warn("忽略无效的NFC UID", zap.String("raw", raw))
		return ScanInvalid
	}
	if !r.accept(uid) {
		return ""
	}

	detail, found, err := r.lookup.GetFigurineByNfcUID(ctx, uid)
	result := ScanUnknown
	switch {
	case err != nil:
		result = ScanError
		r.logger.Error("查询NFC标签失败", zap.String("nfc_uid", uid), zap.Error(err))
	case !found:
		r.logger.Info("扫描到未绑定的NFC标签", zap.String("nfc_uid", uid))
	case detail.LinkedCharacterID == nil:
		result = ScanUnlinked
	default:
		result = ScanLinked
	}
	r.metrics.ObserveNFCScan(result)

	if found && err == nil && r.publisher != nil {
		r.publisher.PublishBindingEvent(&service.BindingEvent{
			Type:        service.EventFigurineScanned,
			UserID:      detail.OwnerID,
			FigurineID:  detail.ID,
			NfcUID:      detail.NfcUID,
			CharacterID: detail.LinkedCharacterID,
			Timestamp:   r.now(),
		})
	}
	return result
}

// accept 同一标签在去抖窗口内只处理一次
func (r *Reader) accept(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.lastSeen[uid]; ok && now.Sub(last) < r.debounce {
		return false
	}
	r.lastSeen[uid] = now

	// 清理过期记录
	for k, t := range r.lastSeen {
		if now.Sub(t) >= r.debounce {
			delete(r.lastSeen, k)
		}
	}
	return true
}

// NormalizeUID 去掉字节分隔符并转为大写，例如 "04:a2:2b:1c" -> "04A22B1C"
func NormalizeUID(raw string) string {
	replacer := strings.NewReplacer(":", "", " ", "", "\t", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(raw)))
}

// pollingReader 串口读超时没有数据时返回 (0, nil) 或 (0, io.EOF)，
// 都视为空闲，继续等待直到有数据、读取出错或ctx结束
type pollingReader struct {
	ctx context.Context
	r   io.Reader
}

func (p *pollingReader) Read(b []byte) (int, error) {
	for {
		if err := p.ctx.Err(); err != nil {
			return 0, io.EOF
		}
		n, err := p.r.Read(b)
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}

		select {
		case <-p.ctx.Done():
			return 0, io.EOF
		case <-time.After(idlePollInterval):
		}
	}
}
