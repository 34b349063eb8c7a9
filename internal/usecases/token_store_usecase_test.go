package usecases_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/usecases"
)

func TestTokenStore_BootstrapIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.store.Bootstrap(ctx))
	require.NoError(t, fx.store.Bootstrap(ctx))

	created, err := fx.store.EnsureNativeAsset(ctx, 1)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, fx.db.Table("tokens").Where("chain_id = ? AND type = ?", 1, "nativeCryptocurrency").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	native, err := fx.store.Get(ctx, key(entities.NativeCryptoAddress, 137))
	require.NoError(t, err)
	require.NotNil(t, native)
	assert.Equal(t, "POL", native.Symbol)
	assert.True(t, native.Visible)
}

func TestTokenStore_EnsureNativeAssetSkipsPopulatedNetwork(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.store.AddCustom(ctx, []entities.ERCToken{fungible(tokenA, 1, "AAA")}, false)
	require.NoError(t, err)

	created, err := fx.store.EnsureNativeAsset(ctx, 1)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = fx.store.EnsureNativeAsset(ctx, 99)
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

func TestTokenStore_GetCanonicalizesAndReportsAbsence(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	missing, err := fx.store.Get(ctx, key(usdtLower, 1))
	require.NoError(t, err)
	assert.Nil(t, missing)

	stored, err := fx.store.AddCustom(ctx, []entities.ERCToken{fungible(usdtLower, 1, "USDT")}, false)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, usdtChecksum, stored[0].Contract)
	assert.True(t, stored[0].IsCustom)

	got, err := fx.store.Get(ctx, key("DAC17F958D2EE523A2206206994597C13D831EC7", 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "USDT", got.Symbol)

	byContract, err := fx.store.GetByContract(ctx, usdtLower)
	require.NoError(t, err)
	require.NotNil(t, byContract)
	assert.Equal(t, int64(1), byContract.ChainID)

	_, err = fx.store.Get(ctx, key("not-an-address", 1))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestTokenStore_UpsertIdempotenceAndStickyOrdering(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	tokens := []entities.ERCToken{fungible(tokenA, 1, "AAA"), fungible(tokenB, 1, "BBB"), fungible(tokenC, 1, "CCC")}

	_, err := fx.store.AddCustom(ctx, tokens, false)
	require.NoError(t, err)
	require.NoError(t, fx.store.Reorder(ctx, []entities.Key{key(tokenC, 1), key(tokenB, 1), key(tokenA, 1)}))
	_, _, err = fx.store.UpdateField(ctx, key(tokenA, 1), entities.SetHidden{Hidden: true})
	require.NoError(t, err)

	// same content twice
	_, err = fx.store.AddCustom(ctx, tokens, false)
	require.NoError(t, err)
	_, err = fx.store.AddCustom(ctx, tokens, false)
	require.NoError(t, err)

	var count int64
	require.NoError(t, fx.db.Table("tokens").Count(&count).Error)
	assert.Equal(t, int64(3), count)

	renamed := fungible(tokenC, 1, "CCC")
	renamed.Name = "Renamed"
	_, err = fx.store.AddCustom(ctx, []entities.ERCToken{renamed}, false)
	require.NoError(t, err)

	c, err := fx.store.Get(ctx, key(tokenC, 1))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Name)
	assert.Equal(t, null.IntFrom(0), c.SortIndex)

	a, err := fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	assert.False(t, a.Visible)
	assert.False(t, a.SortIndex.Valid)
}

func TestTokenStore_ReorderCompleteness(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.store.AddCustom(ctx, []entities.ERCToken{fungible(tokenA, 1, "K1"), fungible(tokenB, 1, "K2"), fungible(tokenC, 1, "K3")}, false)
	require.NoError(t, err)
	require.NoError(t, fx.store.Reorder(ctx, []entities.Key{key(tokenC, 1)}))

	require.NoError(t, fx.store.Reorder(ctx, []entities.Key{key(tokenB, 1), key(tokenA, 1)}))

	k1, _ := fx.store.Get(ctx, key(tokenA, 1))
	k2, _ := fx.store.Get(ctx, key(tokenB, 1))
	k3, _ := fx.store.Get(ctx, key(tokenC, 1))
	assert.Equal(t, null.IntFrom(1), k1.SortIndex)
	assert.Equal(t, null.IntFrom(0), k2.SortIndex)
	assert.False(t, k3.SortIndex.Valid)

	require.NoError(t, fx.store.Reorder(ctx, nil))
	k2, _ = fx.store.Get(ctx, key(tokenB, 1))
	assert.Equal(t, null.IntFrom(0), k2.SortIndex)
}

func TestTokenStore_FungibleNoOp(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.store.AddCustom(ctx, []entities.ERCToken{fungible(tokenA, 1, "AAA")}, false)
	require.NoError(t, err)

	changed, err := fx.store.UpdateBalance(ctx, key(tokenA, 1), big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = fx.store.UpdateBalance(ctx, key(tokenA, 1), big.NewInt(100))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = fx.store.UpdateBalance(ctx, key(tokenB, 1), big.NewInt(100))
	require.NoError(t, err)
	assert.False(t, changed, "absent token is not an error")
}

func TestTokenStore_NonFungibleReconciliation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	nft := entities.ERCToken{Contract: tokenA, ChainID: 1, Name: "Tickets", Symbol: "TIX", Type: entities.TokenTypeERC875, Balance: []string{"1", "2", "3"}}
	_, err := fx.store.AddCustom(ctx, []entities.ERCToken{nft}, true)
	require.NoError(t, err)

	changed, err := fx.store.UpdateNonFungibleBalance(ctx, key(tokenA, 1), []string{"2", "3", "4"})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "3", "4"}, got.Balance)

	changed, err = fx.store.UpdateNonFungibleBalance(ctx, key(tokenA, 1), []string{"2", "3", "4"})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTokenStore_UpdateField(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	changed, found, err := fx.store.UpdateField(ctx, key(tokenA, 1), entities.SetName{Name: "x"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, found)

	_, err = fx.store.AddCustom(ctx, []entities.ERCToken{fungible(tokenA, 1, "AAA")}, false)
	require.NoError(t, err)

	changed, found, err = fx.store.UpdateField(ctx, key(tokenA, 1), entities.SetDisabled{Disabled: false})
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, changed, "already enabled")

	changed, _, err = fx.store.UpdateField(ctx, key(tokenA, 1), entities.SetDisabled{Disabled: true})
	require.NoError(t, err)
	assert.True(t, changed)

	_, _, err = fx.store.UpdateField(ctx, key(tokenA, 1), entities.SetValue{Value: big.NewInt(-1)})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, _, err = fx.store.UpdateField(ctx, key(tokenA, 1), nil)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestTokenStore_ListEnabledMasksMirroredNative(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Bootstrap(ctx))

	_, err := fx.store.AddCustom(ctx, []entities.ERCToken{
		fungible(polygonMirror, 137, "POL"),
		fungible(tokenA, 137, "AAA"),
		fungible(tokenB, 1, "BBB"),
	}, false)
	require.NoError(t, err)

	polygon, err := fx.store.ListEnabled(ctx, []int64{137})
	require.NoError(t, err)
	assert.Equal(t, []string{polygonMirror, tokenA}, contracts(polygon))

	all, err := fx.store.ListEnabled(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{entities.NativeCryptoAddress, tokenB, polygonMirror, tokenA}, contracts(all),
		"the unmirrored network keeps its placeholder")

	_, _, err = fx.store.UpdateField(ctx, key(tokenB, 1), entities.SetDisabled{Disabled: true})
	require.NoError(t, err)
	eth, err := fx.store.ListEnabled(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, []string{entities.NativeCryptoAddress}, contracts(eth))

	_, err = fx.store.ListEnabled(ctx, []int64{1, 42})
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

func TestTokenStore_UpsertMetadata(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	stored, err := fx.store.UpsertMetadata(ctx, []entities.TokenUpdate{{Contract: usdtLower, ChainID: 1, Name: "Tether", Symbol: "USDT", Decimals: 6, Type: entities.TokenTypeERC20}})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, usdtChecksum, stored[0].Contract)
	assert.Equal(t, "0", stored[0].Value)

	_, err = fx.store.UpsertMetadata(ctx, []entities.TokenUpdate{{Contract: tokenA, ChainID: 1, Type: "bogus"}})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = fx.store.UpsertMetadata(ctx, []entities.TokenUpdate{{Contract: tokenA, ChainID: 5, Type: entities.TokenTypeERC20}})
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

func TestTokenStore_ContractMarkers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.store.AddHiddenContracts(ctx, []entities.ContractRef{{Contract: usdtLower, ChainID: 1}}))
	require.NoError(t, fx.store.AddHiddenContracts(ctx, nil))

	hidden, err := fx.store.ListHidden(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []entities.ContractRef{{Contract: usdtChecksum, ChainID: 1}}, hidden)

	removed, err := fx.store.ListRemoved(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, removed)

	delegates, err := fx.store.ListDelegates(ctx, 137)
	require.NoError(t, err)
	assert.Empty(t, delegates)

	_, err = fx.store.ListHidden(ctx, 7)
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

func TestTokenStore_DeleteForTesting(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.store.Bootstrap(ctx))

	n, err := fx.store.DeleteForTesting(ctx, []entities.Key{key(entities.NativeCryptoAddress, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := fx.store.Get(ctx, key(entities.NativeCryptoAddress, 1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenStore_PropagatesEngineFailure(t *testing.T) {
	uow := new(MockUnitOfWork)
	tokenRepo := new(MockTokenRepository)
	markerRepo := new(MockContractMarkerRepository)
	uc := usecases.NewTokenStoreUsecase(uow, tokenRepo, markerRepo, entities.NewNetworkCatalog(testNetworks))

	engineErr := domainerrors.EngineFailure("update token", errors.New("disk I/O error"))
	uow.On("Do", mock.Anything, mock.Anything).Return(nil)
	tokenRepo.On("UpdateField", mock.Anything, key(tokenA, 1), entities.SetName{Name: "x"}).Return(false, engineErr).Once()

	changed, found, err := uc.UpdateField(context.Background(), key(tokenA, 1), entities.SetName{Name: "x"})
	assert.ErrorIs(t, err, domainerrors.ErrEngineFailure)
	assert.False(t, changed)
	assert.False(t, found)

	uow.On("Read", mock.Anything, mock.Anything).Return(nil)
	markerRepo.On("ListByChain", mock.Anything, entities.MarkerRemoved, int64(1)).Return(nil, engineErr).Once()
	_, err = uc.ListRemoved(context.Background(), 1)
	assert.ErrorIs(t, err, domainerrors.ErrEngineFailure)

	tokenRepo.AssertExpectations(t)
	markerRepo.AssertExpectations(t)
}
