package service

import (
	"context"
	"time"

	"github.com/wfunc/figurine-hub/internal/models"
	"github.com/wfunc/figurine-hub/internal/utils"
)

// FigurineService 手办绑定服务接口
type FigurineService interface {
	// BindFigurine 将NFC标签绑定到用户，可选同时关联角色
	BindFigurine(ctx context.Context, userID, nfcUID string, characterID *string) (*FigurineSummary, error)
	// LinkCharacter 为已绑定的手办关联角色
	LinkCharacter(ctx context.Context, userID, figurineID, characterID string) error
	// UnbindCharacter 解除手办与角色的关联，手办仍属于原用户
	UnbindCharacter(ctx context.Context, userID, figurineID string) error
	// GetFigurineByNfcUID 按标签查找手办，不存在时 found=false 且 err=nil
	GetFigurineByNfcUID(ctx context.Context, nfcUID string) (detail *FigurineDetail, found bool, err error)
	// ListFigurinesForUser 用户的手办列表，按创建时间倒序
	ListFigurinesForUser(ctx context.Context, userID string, page, pageSize int) ([]*FigurineDetail, int64, error)
	// GetFigurine 获取用户自己的手办详情
	GetFigurine(ctx context.Context, userID, figurineID string) (*FigurineDetail, error)
	// ListAuditLog 获取用户自己的手办的审计日志
	ListAuditLog(ctx context.Context, userID, figurineID string, page, pageSize int) ([]*AuditEntry, int64, error)
}

// CharacterService 角色卡查询服务接口
type CharacterService interface {
	ListCharactersForUser(ctx context.Context, userID string, page, pageSize int) ([]*CharacterSummary, int64, error)
	GetCharacter(ctx context.Context, userID, characterID string) (*CharacterSummary, error)
}

// AuthService 认证服务接口（只负责校验外部签发的访问令牌）
type AuthService interface {
	// ValidateToken 验证访问令牌
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
	// IssueToken 签发访问令牌，供联调与测试使用
	IssueToken(ctx context.Context, userID, email string) (string, error)
}

// EventPublisher 绑定事件发布者，在事务提交后调用
type EventPublisher interface {
	PublishBindingEvent(event *BindingEvent)
}

// 绑定事件类型
const (
	EventFigurineBound     = "figurine_bound"
	EventCharacterLinked   = "character_linked"
	EventCharacterUnlinked = "character_unlinked"
	EventFigurineScanned   = "figurine_scanned"
)

// BindingEvent 绑定事件
type BindingEvent struct {
	Type        string    `json:"type"`
	UserID      string    `json:"userId"`
	FigurineID  string    `json:"figurineId"`
	NfcUID      string    `json:"nfcUid"`
	CharacterID *string   `json:"characterId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// BindFigurineRequest 绑定请求
type BindFigurineRequest struct {
	NfcUID      string  `json:"nfcUid" binding:"required,nfcuid"`
	CharacterID *string `json:"characterId" binding:"omitempty,min=1"`
}

// LinkCharacterRequest 关联角色请求
type LinkCharacterRequest struct {
	CharacterID string `json:"characterId" binding:"required"`
}

// FigurineSummary 绑定结果
type FigurineSummary struct {
	ID      string  `json:"id"`
	NfcUID  string  `json:"nfcUid"`
	TokenID *string `json:"tokenId"`
}

// FigurineDetail 手办详情
type FigurineDetail struct {
	ID                string            `json:"id"`
	NfcUID            string            `json:"nfcUid"`
	OwnerID           string            `json:"ownerId"`
	LinkedCharacterID *string           `json:"linkedCharacterId"`
	TokenID           *string           `json:"tokenId"`
	ContractAddress   *string           `json:"contractAddress"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	Owner             *OwnerSummary     `json:"owner,omitempty"`
	LinkedCharacter   *CharacterSummary `json:"linkedCharacter"`
}

// OwnerSummary 所有者展示信息
type OwnerSummary struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	WalletAddress *string `json:"walletAddress"`
}

// CharacterSummary 角色展示信息
type CharacterSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Class      string  `json:"class"`
	Race       string  `json:"race,omitempty"`
	Level      int     `json:"level"`
	FigurineID *string `json:"figurineId,omitempty"`
}

// AuditEntry 审计日志条目
type AuditEntry struct {
	ID          string                 `json:"id"`
	Action      models.AuditAction     `json:"action"`
	UserID      string                 `json:"userId"`
	FigurineID  string                 `json:"figurineId"`
	CharacterID *string                `json:"characterId"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

func toFigurineDetail(f *models.Figurine) *FigurineDetail {
	detail := &FigurineDetail{
		ID:                f.ID,
		NfcUID:            f.NfcUID,
		OwnerID:           f.OwnerID,
		LinkedCharacterID: f.LinkedCharacterID,
		TokenID:           f.TokenID,
		ContractAddress:   f.ContractAddress,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
	if f.Owner != nil {
		detail.Owner = &OwnerSummary{
			ID:            f.Owner.ID,
			Email:         f.Owner.Email,
			WalletAddress: f.Owner.WalletAddress,
		}
	}
	if f.LinkedCharacter != nil {
		detail.LinkedCharacter = toCharacterSummary(f.LinkedCharacter)
	}
	return detail
}

func toCharacterSummary(c *models.Character) *CharacterSummary {
	summary := &CharacterSummary{
		ID:    c.ID,
		Name:  c.Name,
		Class: c.Class,
		Race:  c.Race,
		Level: c.Level,
	}
	if c.Figurine != nil {
		id := c.Figurine.ID
		summary.FigurineID = &id
	}
	return summary
}

func toAuditEntry(a *models.AuditLog) *AuditEntry {
	return &AuditEntry{
		ID:          a.ID,
		Action:      a.Action,
		UserID:      a.UserID,
		FigurineID:  a.FigurineID,
		CharacterID: a.CharacterID,
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt,
	}
}
