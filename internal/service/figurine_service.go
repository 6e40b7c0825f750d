package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	apperrors "github.com/wfunc/figurine-hub/internal/errors"
	"github.com/wfunc/figurine-hub/internal/lock"
	"github.com/wfunc/figurine-hub/internal/logger"
	"github.com/wfunc/figurine-hub/internal/metrics"
	"github.com/wfunc/figurine-hub/internal/models"
	"github.com/wfunc/figurine-hub/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BindLockPrefix 绑定锁键前缀，完整键为 前缀+nfcUID
const BindLockPrefix = "figurine:bind:"

// MaxNfcUIDLength NFC UID 最大长度，与数据库列宽一致
const MaxNfcUIDLength = 128

// releaseTimeout 释放锁的超时时间，请求上下文取消后仍需释放
const releaseTimeout = 3 * time.Second

var nfcUIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidNfcUID 校验NFC UID格式：非空，只包含字母、数字、下划线和短横线
func ValidNfcUID(uid string) bool {
	return len(uid) <= MaxNfcUIDLength && nfcUIDPattern.MatchString(uid)
}

// figurineService 手办绑定服务实现
type figurineService struct {
	repos     *repository.Manager
	locker    lock.Locker
	lockTTL   time.Duration
	metrics   *metrics.Metrics
	publisher EventPublisher
	log       *zap.Logger
}

// NewFigurineService 创建手办绑定服务
// metrics 和 publisher 可以为 nil
func NewFigurineService(
	repos *repository.Manager,
	locker lock.Locker,
	lockTTL time.Duration,
	m *metrics.Metrics,
	publisher EventPublisher,
	log *zap.Logger,
) FigurineService {
	if lockTTL <= 0 {
		lockTTL = lock.DefaultTTL
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &figurineService{
		repos:     repos,
		locker:    locker,
		lockTTL:   lockTTL,
		metrics:   m,
		publisher: publisher,
		log:       log,
	}
}

// BindFigurine 绑定NFC标签
//
// 同一个标签的绑定通过分布式锁串行化，锁内复查标签是否已被绑定。
// 锁过期后慢持有者的写入由 nfc_uid 唯一约束兜底，同样返回 AlreadyBound。
func (s *figurineService) BindFigurine(ctx context.Context, userID, nfcUID string, characterID *string) (summary *FigurineSummary, err error) {
	defer func() { s.metrics.ObserveOperation("bind", err) }()

	if userID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "用户ID不能为空")
	}
	if !ValidNfcUID(nfcUID) {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "nfcUid只能包含字母、数字、下划线和短横线")
	}
	if characterID != nil && *characterID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "characterId不能为空字符串")
	}

	key := BindLockPrefix + nfcUID
	token, ok, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		s.metrics.ObserveLockAcquire(metrics.LockError)
		logger.LogLockEvent(s.log, "acquire_failed", key, err)
		return nil, apperrors.Wrap(err, apperrors.ErrLockUnavailable)
	}
	if !ok {
		s.metrics.ObserveLockAcquire(metrics.LockContention)
		logger.LogLockEvent(s.log, "contention", key, nil)
		return nil, apperrors.New(apperrors.ErrLockContention)
	}
	s.metrics.ObserveLockAcquire(metrics.LockAcquired)
	defer s.releaseLock(ctx, key, token, time.Now())

	// 锁内复查
	if _, err := s.repos.Figurine().FindByNfcUID(ctx, nfcUID); err == nil {
		return nil, apperrors.New(apperrors.ErrAlreadyBound)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	if characterID != nil {
		character, err := s.repos.Character().FindByID(ctx, *characterID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.New(apperrors.ErrNotFound, "角色不存在")
			}
			return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
		}
		if character.OwnerID != userID {
			return nil, apperrors.New(apperrors.ErrNotOwner, "角色不属于当前用户")
		}
		if character.Figurine != nil {
			return nil, apperrors.New(apperrors.ErrAlreadyLinked, "角色已关联其他手办")
		}
	}

	figurine := &models.Figurine{
		NfcUID:            nfcUID,
		OwnerID:           userID,
		LinkedCharacterID: characterID,
	}
	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		if err := tx.Figurine().Create(ctx, figurine); err != nil {
			return err
		}
		return tx.AuditLog().Create(ctx, &models.AuditLog{
			Action:      models.AuditActionBind,
			UserID:      userID,
			FigurineID:  figurine.ID,
			CharacterID: characterID,
			Metadata:    models.JSONMap{"nfcUid": nfcUID},
		})
	})
	if err != nil {
		return nil, s.translateWriteError(err)
	}

	logger.LogBindingEvent(s.log, string(models.AuditActionBind), userID, figurine.ID, characterID)
	s.publisher.PublishBindingEvent(&BindingEvent{
		Type:        EventFigurineBound,
		UserID:      userID,
		FigurineID:  figurine.ID,
		NfcUID:      nfcUID,
		CharacterID: characterID,
		Timestamp:   time.Now(),
	})

	return &FigurineSummary{
		ID:      figurine.ID,
		NfcUID:  figurine.NfcUID,
		TokenID: figurine.TokenID,
	}, nil
}

// releaseLock 用获取时的令牌释放锁，失败只记录日志
func (s *figurineService) releaseLock(ctx context.Context, key, token string, acquiredAt time.Time) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	released, err := s.locker.Release(releaseCtx, key, token)
	s.metrics.ObserveLockRelease(time.Since(acquiredAt), released)
	if err != nil {
		logger.LogLockEvent(s.log, "release_failed", key, err)
		return
	}
	if !released {
		s.log.Warn("释放锁时锁已过期或被他人持有", zap.String("key", key), zap.Duration("held", time.Since(acquiredAt)))
	}
}

// LinkCharacter 为手办关联角色
func (s *figurineService) LinkCharacter(ctx context.Context, userID, figurineID, characterID string) (err error) {
	defer func() { s.metrics.ObserveOperation("link", err) }()

	if userID == "" || figurineID == "" || characterID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "用户ID、手办ID和角色ID不能为空")
	}

	var (
		figurine  *models.Figurine
		character *models.Character
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := s.repos.Figurine().FindByID(gctx, figurineID)
		if err != nil {
			return err
		}
		figurine = f
		return nil
	})
	g.Go(func() error {
		c, err := s.repos.Character().FindByID(gctx, characterID)
		if err != nil {
			return err
		}
		character = c
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.New(apperrors.ErrNotFound, "手办或角色不存在")
		}
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	if figurine.OwnerID != userID || character.OwnerID != userID {
		return apperrors.New(apperrors.ErrNotOwner)
	}
	if figurine.IsLinked() {
		return apperrors.New(apperrors.ErrAlreadyLinked, "手办已关联角色")
	}
	if character.Figurine != nil {
		return apperrors.New(apperrors.ErrAlreadyLinked, "角色已关联其他手办")
	}

	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		// 条件更新，读取之后被并发关联时不会覆盖
		if err := tx.Figurine().LinkCharacter(ctx, figurineID, characterID); err != nil {
			return err
		}
		return tx.AuditLog().Create(ctx, &models.AuditLog{
			Action:      models.AuditActionBind,
			UserID:      userID,
			FigurineID:  figurineID,
			CharacterID: &characterID,
			Metadata:    models.JSONMap{"nfcUid": figurine.NfcUID},
		})
	})
	if err != nil {
		return s.translateWriteError(err)
	}

	logger.LogBindingEvent(s.log, string(models.AuditActionBind), userID, figurineID, &characterID)
	s.publisher.PublishBindingEvent(&BindingEvent{
		Type:        EventCharacterLinked,
		UserID:      userID,
		FigurineID:  figurineID,
		NfcUID:      figurine.NfcUID,
		CharacterID: &characterID,
		Timestamp:   time.Now(),
	})
	return nil
}

// UnbindCharacter 解除手办与角色的关联
func (s *figurineService) UnbindCharacter(ctx context.Context, userID, figurineID string) (err error) {
	defer func() { s.metrics.ObserveOperation("unlink", err) }()

	if userID == "" || figurineID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "用户ID和手办ID不能为空")
	}

	figurine, err := s.repos.Figurine().FindByID(ctx, figurineID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.New(apperrors.ErrNotFound, "手办不存在")
		}
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if figurine.OwnerID != userID {
		return apperrors.New(apperrors.ErrNotOwner)
	}
	if !figurine.IsLinked() {
		return apperrors.New(apperrors.ErrNotLinked)
	}

	previous := *figurine.LinkedCharacterID
	err = s.repos.WithTransaction(ctx, func(tx *repository.Transaction) error {
		if err := tx.Figurine().UnlinkCharacter(ctx, figurineID, previous); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return apperrors.New(apperrors.ErrNotLinked)
			}
			return err
		}
		return tx.AuditLog().Create(ctx, &models.AuditLog{
			Action:      models.AuditActionUnbind,
			UserID:      userID,
			FigurineID:  figurineID,
			CharacterID: &previous,
			Metadata:    models.JSONMap{"nfcUid": figurine.NfcUID},
		})
	})
	if err != nil {
		return s.translateWriteError(err)
	}

	logger.LogBindingEvent(s.log, string(models.AuditActionUnbind), userID, figurineID, &previous)
	s.publisher.PublishBindingEvent(&BindingEvent{
		Type:        EventCharacterUnlinked,
		UserID:      userID,
		FigurineID:  figurineID,
		NfcUID:      figurine.NfcUID,
		CharacterID: &previous,
		Timestamp:   time.Now(),
	})
	return nil
}

// GetFigurineByNfcUID 按标签查找手办及其所有者和关联角色
func (s *figurineService) GetFigurineByNfcUID(ctx context.Context, nfcUID string) (*FigurineDetail, bool, error) {
	if !ValidNfcUID(nfcUID) {
		return nil, false, apperrors.New(apperrors.ErrInvalidInput, "nfcUid格式不正确")
	}

	figurine, err := s.repos.Figurine().FindByNfcUIDWithRelations(ctx, nfcUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return toFigurineDetail(figurine), true, nil
}

// ListFigurinesForUser 用户的手办列表
func (s *figurineService) ListFigurinesForUser(ctx context.Context, userID string, page, pageSize int) ([]*FigurineDetail, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.New(apperrors.ErrInvalidInput, "用户ID不能为空")
	}

	pagination := repository.NewPagination(page, pageSize)
	figurines, err := s.repos.Figurine().ListByOwner(ctx, userID, pagination)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	details := make([]*FigurineDetail, 0, len(figurines))
	for _, f := range figurines {
		details = append(details, toFigurineDetail(f))
	}
	return details, pagination.Total, nil
}

// GetFigurine 获取手办详情，只有所有者可以查看
func (s *figurineService) GetFigurine(ctx context.Context, userID, figurineID string) (*FigurineDetail, error) {
	figurine, err := s.ownedFigurine(ctx, userID, figurineID, true)
	if err != nil {
		return nil, err
	}
	return toFigurineDetail(figurine), nil
}

// ListAuditLog 手办的审计日志，最新在前
func (s *figurineService) ListAuditLog(ctx context.Context, userID, figurineID string, page, pageSize int) ([]*AuditEntry, int64, error) {
	if _, err := s.ownedFigurine(ctx, userID, figurineID, false); err != nil {
		return nil, 0, err
	}

	pagination := repository.NewPagination(page, pageSize)
	entries, err := s.repos.AuditLog().ListByFigurine(ctx, figurineID, pagination)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	result := make([]*AuditEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, toAuditEntry(e))
	}
	return result, pagination.Total, nil
}

func (s *figurineService) ownedFigurine(ctx context.Context, userID, figurineID string, withRelations bool) (*models.Figurine, error) {
	if userID == "" || figurineID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "用户ID和手办ID不能为空")
	}

	var (
		figurine *models.Figurine
		err      error
	)
	if withRelations {
		figurine, err = s.repos.Figurine().FindByIDWithRelations(ctx, figurineID)
	} else {
		figurine, err = s.repos.Figurine().FindByID(ctx, figurineID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "手办不存在")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	if figurine.OwnerID != userID {
		return nil, apperrors.New(apperrors.ErrNotOwner)
	}
	return figurine, nil
}

// translateWriteError 将事务中的仓储错误映射为业务错误码
func (s *figurineService) translateWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateNfcUID):
		return apperrors.New(apperrors.ErrAlreadyBound)
	case errors.Is(err, repository.ErrCharacterTaken):
		return apperrors.New(apperrors.ErrAlreadyLinked, "角色已关联其他手办")
	case errors.Is(err, repository.ErrConflict):
		return apperrors.New(apperrors.ErrAlreadyLinked, "手办已关联角色")
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}
	s.log.Error("绑定事务失败", zap.Error(err))
	return apperrors.Wrap(err, apperrors.ErrTransaction)
}

type noopPublisher struct{}

func (noopPublisher) PublishBindingEvent(*BindingEvent) {}
