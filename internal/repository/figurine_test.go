package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/figurine-hub/internal/models"
	"gorm.io/gorm"
)

// FigurineRepositoryTestSuite 手办仓储测试套件
type FigurineRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo FigurineRepository
	ctx  context.Context
	user *models.User
}

func (suite *FigurineRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.repo = NewFigurineRepository(suite.db)
	suite.ctx = context.Background()
	suite.user = SeedUser(suite.T(), suite.db, "owner@example.com")
}

func (suite *FigurineRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *FigurineRepositoryTestSuite) newFigurine(nfcUID string) *models.Figurine {
	figurine := &models.Figurine{NfcUID: nfcUID, OwnerID: suite.user.ID}
	suite.Require().NoError(suite.repo.Create(suite.ctx, figurine))
	return figurine
}

// TestCreate 测试创建手办并生成ID
func (suite *FigurineRepositoryTestSuite) TestCreate() {
	figurine := suite.newFigurine("TAG-001")
	assert.NotEmpty(suite.T(), figurine.ID)
	assert.Nil(suite.T(), figurine.LinkedCharacterID)
	assert.Nil(suite.T(), figurine.TokenID)

	found, err := suite.repo.FindByNfcUID(suite.ctx, "TAG-001")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), figurine.ID, found.ID)
}

// TestCreate_DuplicateNfcUID 测试NFC UID唯一约束
func (suite *FigurineRepositoryTestSuite) TestCreate_DuplicateNfcUID() {
	suite.newFigurine("TAG-001")

	err := suite.repo.Create(suite.ctx, &models.Figurine{NfcUID: "TAG-001", OwnerID: suite.user.ID})
	assert.ErrorIs(suite.T(), err, ErrDuplicateNfcUID)

	var count int64
	suite.db.Model(&models.Figurine{}).Where("nfc_uid = ?", "TAG-001").Count(&count)
	assert.Equal(suite.T(), int64(1), count)
}

// TestCreate_DuplicateCharacter 测试同一角色不能被两个手办关联
func (suite *FigurineRepositoryTestSuite) TestCreate_DuplicateCharacter() {
	character := SeedCharacter(suite.T(), suite.db, suite.user.ID, "Gandalf")

	first := &models.Figurine{NfcUID: "TAG-001", OwnerID: suite.user.ID, LinkedCharacterID: &character.ID}
	suite.Require().NoError(suite.repo.Create(suite.ctx, first))

	second := &models.Figurine{NfcUID: "TAG-002", OwnerID: suite.user.ID, LinkedCharacterID: &character.ID}
	assert.ErrorIs(suite.T(), suite.repo.Create(suite.ctx, second), ErrCharacterTaken)
}

// TestFindNotFound 测试查询不存在的记录
func (suite *FigurineRepositoryTestSuite) TestFindNotFound() {
	_, err := suite.repo.FindByID(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	_, err = suite.repo.FindByNfcUID(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	_, err = suite.repo.FindByNfcUIDWithRelations(suite.ctx, "missing")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

// TestFindWithRelations 测试加载所有者和关联角色
func (suite *FigurineRepositoryTestSuite) TestFindWithRelations() {
	character := SeedCharacter(suite.T(), suite.db, suite.user.ID, "Gandalf")
	figurine := suite.newFigurine("TAG-001")
	suite.Require().NoError(suite.repo.LinkCharacter(suite.ctx, figurine.ID, character.ID))

	found, err := suite.repo.FindByNfcUIDWithRelations(suite.ctx, "TAG-001")
	suite.Require().NoError(err)
	suite.Require().NotNil(found.Owner)
	assert.Equal(suite.T(), "owner@example.com", found.Owner.Email)
	suite.Require().NotNil(found.LinkedCharacter)
	assert.Equal(suite.T(), "Gandalf", found.LinkedCharacter.Name)

	byID, err := suite.repo.FindByIDWithRelations(suite.ctx, figurine.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), character.ID, byID.LinkedCharacter.ID)

	byCharacter, err := suite.repo.FindByLinkedCharacter(suite.ctx, character.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), figurine.ID, byCharacter.ID)
}

// TestLinkCharacter_Conditional 测试条件更新
func (suite *FigurineRepositoryTestSuite) TestLinkCharacter_Conditional() {
	c1 := SeedCharacter(suite.T(), suite.db, suite.user.ID, "Gandalf")
	c2 := SeedCharacter(suite.T(), suite.db, suite.user.ID, "Frodo")
	figurine := suite.newFigurine("TAG-001")

	suite.Require().NoError(suite.repo.LinkCharacter(suite.ctx, figurine.ID, c1.ID))

	// 已关联的手办不会被覆盖
	assert.ErrorIs(suite.T(), suite.repo.LinkCharacter(suite.ctx, figurine.ID, c2.ID), ErrConflict)
	found, _ := suite.repo.FindByID(suite.ctx, figurine.ID)
	assert.Equal(suite.T(), c1.ID, *found.LinkedCharacterID)

	// 角色已被其他手办关联
	other := suite.newFigurine("TAG-002")
	assert.ErrorIs(suite.T(), suite.repo.LinkCharacter(suite.ctx, other.ID, c1.ID), ErrCharacterTaken)

	// 手办不存在
	assert.ErrorIs(suite.T(), suite.repo.LinkCharacter(suite.ctx, "missing", c2.ID), ErrConflict)
}

// TestUnlinkCharacter 测试解除关联
func (suite *FigurineRepositoryTestSuite) TestUnlinkCharacter() {
	character := SeedCharacter(suite.T(), suite.db, suite.user.ID, "Gandalf")
	figurine := suite.newFigurine("TAG-001")

	assert.ErrorIs(suite.T(), suite.repo.UnlinkCharacter(suite.ctx, figurine.ID, character.ID), ErrConflict)

	suite.Require().NoError(suite.repo.LinkCharacter(suite.ctx, figurine.ID, character.ID))
	suite.Require().NoError(suite.repo.UnlinkCharacter(suite.ctx, figurine.ID, character.ID))

	found, _ := suite.repo.FindByID(suite.ctx, figurine.ID)
	assert.Nil(suite.T(), found.LinkedCharacterID)

	// 解除后角色可以再次关联
	assert.NoError(suite.T(), suite.repo.LinkCharacter(suite.ctx, figurine.ID, character.ID))
}

// TestLinkPreservesMintFields 测试关联操作保留链上字段
func (suite *FigurineRepositoryTestSuite) TestLinkPreservesMintFields() {
	tokenID := "42"
	contract := "0xabc"
	figurine := &models.Figurine{NfcUID: "TAG-001", OwnerID: suite.user.ID, TokenID: &tokenID, ContractAddress: &contract}
	suite.Require().NoError(suite.repo.Create(suite.ctx, figurine))
	character := SeedCharacter(suite.T(), suite.db, suite.user.ID, "Gandalf")

	suite.Require().NoError(suite.repo.LinkCharacter(suite.ctx, figurine.ID, character.ID))
	suite.Require().NoError(suite.repo.UnlinkCharacter(suite.ctx, figurine.ID, character.ID))

	found, err := suite.repo.FindByID(suite.ctx, figurine.ID)
	suite.Require().NoError(err)
	suite.Require().NotNil(found.TokenID)
	assert.Equal(suite.T(), "42", *found.TokenID)
	assert.Equal(suite.T(), "0xabc", *found.ContractAddress)
}

// TestListByOwner 测试列表按创建时间倒序并分页
func (suite *FigurineRepositoryTestSuite) TestListByOwner() {
	base := time.Now().Add(-time.Hour)
	for i, uid := range []string{"TAG-A", "TAG-B", "TAG-C"} {
		f := &models.Figurine{NfcUID: uid, OwnerID: suite.user.ID}
		f.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		suite.Require().NoError(suite.repo.Create(suite.ctx, f))
	}
	other := SeedUser(suite.T(), suite.db, "other@example.com")
	suite.Require().NoError(suite.repo.Create(suite.ctx, &models.Figurine{NfcUID: "TAG-X", OwnerID: other.ID}))

	list, err := suite.repo.ListByOwner(suite.ctx, suite.user.ID, nil)
	suite.Require().NoError(err)
	suite.Require().Len(list, 3)
	assert.Equal(suite.T(), "TAG-C", list[0].NfcUID)
	assert.Equal(suite.T(), "TAG-A", list[2].NfcUID)

	page := NewPagination(2, 2)
	list, err = suite.repo.ListByOwner(suite.ctx, suite.user.ID, page)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(3), page.Total)
	suite.Require().Len(list, 1)
	assert.Equal(suite.T(), "TAG-A", list[0].NfcUID)
}

func TestFigurineRepositorySuite(t *testing.T) {
	suite.Run(t, new(FigurineRepositoryTestSuite))
}
