package usecases_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/usecases"
)

func TestBatch_AppliesMixedOperationsInOrder(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ops := []entities.BatchOperation{
		entities.AddDetectedToken{Token: entities.ERCToken{Contract: usdtLower, ChainID: 1, Name: "Tether", Symbol: "USDT", Decimals: 6, Type: entities.TokenTypeERC20}},
		entities.AddDetectedToken{Token: entities.ERCToken{Contract: tokenA, ChainID: 1, Name: "Tickets", Symbol: "TIX", Type: entities.TokenTypeERC875, Balance: []string{"7", "8"}}, CopyBalance: true},
		entities.AddDelegateContract{Contract: entities.ContractRef{Contract: tokenB, ChainID: 1}},
		entities.AddRemovedContract{Contract: entities.ContractRef{Contract: tokenC, ChainID: 137}},
		entities.AddHiddenContract{Contract: entities.ContractRef{Contract: tokenC, ChainID: 1}},
		entities.AddToken{Token: entities.Token{Contract: tokenB, ChainID: 137, Name: "Plain", Symbol: "PLN", Type: entities.TokenTypeERC20, Value: "42", Visible: true}},
		entities.UpdateToken{Key: key(usdtLower, 1), Action: entities.SetValue{Value: big.NewInt(1000)}},
		entities.UpdateToken{Key: key(tokenC, 137), Action: entities.SetName{Name: "absent"}},
	}

	result, err := fx.batch.ApplyBatch(ctx, ops)
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.Len(t, result.Items, len(ops))
	assert.True(t, result.Changed())

	assert.Equal(t, "addDetectedToken", result.Items[0].Kind)
	assert.Equal(t, usdtChecksum, result.Items[0].Key.Contract)
	assert.Equal(t, []string{"7", "8"}, result.Items[1].Token.Balance)
	assert.True(t, result.Items[6].Found)
	assert.True(t, result.Items[6].Changed)
	assert.False(t, result.Items[7].Found)
	assert.False(t, result.Items[7].Changed)

	usdt, err := fx.store.Get(ctx, key(usdtLower, 1))
	require.NoError(t, err)
	assert.Equal(t, "1000", usdt.Value)

	delegates, err := fx.store.ListDelegates(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []entities.ContractRef{{Contract: tokenB, ChainID: 1}}, delegates)

	removed, err := fx.store.ListRemoved(ctx, 137)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	hidden, err := fx.store.ListHidden(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, hidden, 1)

	plain, err := fx.store.Get(ctx, key(tokenB, 137))
	require.NoError(t, err)
	assert.Equal(t, "42", plain.Value)

	expected := `
# HELP token_registry_batch_operations_total Total number of batch operations processed by kind
# TYPE token_registry_batch_operations_total counter
token_registry_batch_operations_total{kind="addDelegateContract"} 1
token_registry_batch_operations_total{kind="addDetectedToken"} 2
token_registry_batch_operations_total{kind="addHiddenContract"} 1
token_registry_batch_operations_total{kind="addRemovedContract"} 1
token_registry_batch_operations_total{kind="addToken"} 1
token_registry_batch_operations_total{kind="updateToken"} 2
`
	require.NoError(t, testutil.GatherAndCompare(fx.metrics.Registry(), strings.NewReader(expected), "token_registry_batch_operations_total"))
}

func TestBatch_ConditionalFungibleAdd(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.store.AddCustom(ctx, []entities.ERCToken{fungible(tokenA, 1, "AAA")}, false)
	require.NoError(t, err)
	_, err = fx.store.UpdateBalance(ctx, key(tokenA, 1), big.NewInt(5))
	require.NoError(t, err)

	result, err := fx.batch.ApplyBatch(ctx, []entities.BatchOperation{
		entities.AddFungibleIfAbsent{Name: "Renamed", Symbol: "AAA", Decimals: 18, Key: key(tokenA, 1), OnlyIfNoExistingBalance: true},
		entities.AddFungibleIfAbsent{Name: "Bee", Symbol: "BBB", Decimals: 8, Key: key(tokenB, 1), OnlyIfNoExistingBalance: true},
	})
	require.NoError(t, err)
	require.True(t, result.Applied)

	assert.True(t, result.Items[0].Skipped)
	assert.True(t, result.Items[0].Found)
	assert.False(t, result.Items[0].Changed)
	a, err := fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	assert.Equal(t, "AAA Token", a.Name, "skipped operation leaves the record alone")
	assert.Equal(t, "5", a.Value)

	assert.False(t, result.Items[1].Skipped)
	assert.True(t, result.Items[1].Changed)
	b, err := fx.store.Get(ctx, key(tokenB, 1))
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "0", b.Value)
	assert.Equal(t, entities.TokenTypeERC20, b.Type)
	assert.Equal(t, 8, b.Decimals)

	// without the flag the metadata is refreshed and the amount kept
	_, err = fx.batch.ApplyBatch(ctx, []entities.BatchOperation{
		entities.AddFungibleIfAbsent{Name: "Renamed", Symbol: "AAA", Decimals: 18, Key: key(tokenA, 1)},
	})
	require.NoError(t, err)
	a, err = fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", a.Name)
	assert.Equal(t, "5", a.Value)
}

func TestBatch_InvalidOperationRejectsWholeBatch(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	result, err := fx.batch.ApplyBatch(ctx, []entities.BatchOperation{
		entities.AddDetectedToken{Token: fungible(tokenA, 1, "AAA")},
		entities.AddDetectedToken{Token: entities.ERCToken{Contract: tokenB, ChainID: 1, Type: "bogus"}},
		entities.AddHiddenContract{Contract: entities.ContractRef{Contract: "0xnothex", ChainID: 1}},
		entities.AddDelegateContract{Contract: entities.ContractRef{Contract: tokenC, ChainID: 999}},
		nil,
	})
	require.ErrorIs(t, err, usecases.ErrBatchRejected)
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	require.False(t, result.Applied)

	assert.Empty(t, result.Items[0].Error)
	assert.NotEmpty(t, result.Items[1].Error)
	assert.NotEmpty(t, result.Items[2].Error)
	assert.Contains(t, result.Items[3].Error, "unsupported chain")
	assert.Equal(t, "missing operation", result.Items[4].Error)

	got, err := fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	assert.Nil(t, got, "the valid operation is not applied either")
}

func TestBatch_EngineFailureRollsBack(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.db.Exec("DROP TABLE hidden_contracts").Error)

	result, err := fx.batch.ApplyBatch(ctx, []entities.BatchOperation{
		entities.AddDetectedToken{Token: fungible(tokenA, 1, "AAA")},
		entities.AddHiddenContract{Contract: entities.ContractRef{Contract: tokenB, ChainID: 1}},
	})
	require.ErrorIs(t, err, domainerrors.ErrEngineFailure)
	require.False(t, result.Applied)
	assert.False(t, result.Items[0].Changed)

	got, err := fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	assert.Nil(t, got, "earlier operations roll back with the failing one")
}

func TestBatch_Empty(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.batch.ApplyBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Empty(t, result.Items)
	assert.False(t, result.Changed())
}

func TestBatch_AddTokenKeepsCallerVisibility(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.batch.ApplyBatch(ctx, []entities.BatchOperation{
		entities.AddToken{Token: entities.Token{Contract: tokenA, ChainID: 1, Name: "Quiet", Symbol: "QT", Type: entities.TokenTypeERC20, Value: "1"}},
	})
	require.NoError(t, err)

	got, err := fx.store.Get(ctx, key(tokenA, 1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Visible)
}
