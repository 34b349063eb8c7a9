package usecases_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"token-registry.backend/internal/domain/entities"
	"token-registry.backend/internal/domain/predicates"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

func (m *MockUnitOfWork) Read(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

// Mock TokenRepository
type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Get(ctx context.Context, key entities.Key) (*entities.Token, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Token), args.Error(1)
}

func (m *MockTokenRepository) GetByContract(ctx context.Context, contract string) (*entities.Token, error) {
	args := m.Called(ctx, contract)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Token), args.Error(1)
}

func (m *MockTokenRepository) List(ctx context.Context, filter predicates.Filter) ([]*entities.Token, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Token), args.Error(1)
}

func (m *MockTokenRepository) Upsert(ctx context.Context, token *entities.Token) (*entities.Token, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Token), args.Error(1)
}

func (m *MockTokenRepository) UpsertMetadata(ctx context.Context, update entities.TokenUpdate) (*entities.Token, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Token), args.Error(1)
}

func (m *MockTokenRepository) UpdateField(ctx context.Context, key entities.Key, action entities.UpdateAction) (bool, error) {
	args := m.Called(ctx, key, action)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) Reorder(ctx context.Context, orderedKeys []entities.Key) error {
	args := m.Called(ctx, orderedKeys)
	return args.Error(0)
}

func (m *MockTokenRepository) Delete(ctx context.Context, keys []entities.Key) (int64, error) {
	args := m.Called(ctx, keys)
	return args.Get(0).(int64), args.Error(1)
}

// Mock ContractMarkerRepository
type MockContractMarkerRepository struct {
	mock.Mock
}

func (m *MockContractMarkerRepository) Add(ctx context.Context, kind entities.MarkerKind, refs ...entities.ContractRef) error {
	args := m.Called(ctx, kind, refs)
	return args.Error(0)
}

func (m *MockContractMarkerRepository) ListByChain(ctx context.Context, kind entities.MarkerKind, chainID int64) ([]entities.ContractRef, error) {
	args := m.Called(ctx, kind, chainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ContractRef), args.Error(1)
}
