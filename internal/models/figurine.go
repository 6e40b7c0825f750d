package models

// Figurine 手办：一个NFC标签与用户账号之间的绑定
type Figurine struct {
	BaseModel
	// NfcUID 标签UID，全局唯一且创建后不可修改
	NfcUID            string  `gorm:"uniqueIndex:idx_figurines_nfc_uid;size:128;not null" json:"nfcUid"`
	OwnerID           string  `gorm:"index;size:36;not null" json:"ownerId"`
	LinkedCharacterID *string `gorm:"uniqueIndex:idx_figurines_linked_character;size:36" json:"linkedCharacterId"`
	// 铸造服务回写，绑定流程只负责保留
	TokenID         *string `gorm:"size:100" json:"tokenId"`
	ContractAddress *string `gorm:"size:100" json:"contractAddress"`

	Owner           *User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	LinkedCharacter *Character `gorm:"foreignKey:LinkedCharacterID" json:"linkedCharacter,omitempty"`
}

// TableName 表名
func (Figurine) TableName() string {
	return "figurines"
}

// IsLinked 是否已关联角色
func (f *Figurine) IsLinked() bool {
	return f.LinkedCharacterID != nil
}

// Character 角色卡（由导入服务写入，绑定流程只读）
type Character struct {
	BaseModel
	OwnerID    string  `gorm:"index;size:36;not null" json:"ownerId"`
	Name       string  `gorm:"size:100;not null" json:"name"`
	Class      string  `gorm:"size:50" json:"class"`
	Race       string  `gorm:"size:50" json:"race"`
	Level      int     `gorm:"default:1" json:"level"`
	ExternalID string  `gorm:"size:64;index" json:"externalId,omitempty"`
	Stats      JSONMap `gorm:"type:json" json:"stats,omitempty"`

	Figurine *Figurine `gorm:"foreignKey:LinkedCharacterID" json:"figurine,omitempty"`
}

// TableName 表名
func (Character) TableName() string {
	return "characters"
}

// User 用户（认证服务维护，这里只读取展示字段）
type User struct {
	BaseModel
	Email         string  `gorm:"uniqueIndex;size:100" json:"email"`
	DisplayName   string  `gorm:"size:100" json:"displayName"`
	WalletAddress *string `gorm:"size:64" json:"walletAddress"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}
