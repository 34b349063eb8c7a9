package repositories

import (
	"context"

	"token-registry.backend/internal/domain/entities"
	"token-registry.backend/internal/domain/predicates"
)

// TokenRepository defines token data operations. Callers serialize access through UnitOfWork.
type TokenRepository interface {
	Get(ctx context.Context, key entities.Key) (*entities.Token, error)
	GetByContract(ctx context.Context, contract string) (*entities.Token, error)
	List(ctx context.Context, filter predicates.Filter) ([]*entities.Token, error)
	Upsert(ctx context.Context, token *entities.Token) (*entities.Token, error)
	UpsertMetadata(ctx context.Context, update entities.TokenUpdate) (*entities.Token, error)
	UpdateField(ctx context.Context, key entities.Key, action entities.UpdateAction) (changed bool, err error)
	Reorder(ctx context.Context, orderedKeys []entities.Key) error
	Delete(ctx context.Context, keys []entities.Key) (int64, error)
}

// ContractMarkerRepository defines operations on the removed, delegate and hidden contract sets
type ContractMarkerRepository interface {
	Add(ctx context.Context, kind entities.MarkerKind, refs ...entities.ContractRef) error
	ListByChain(ctx context.Context, kind entities.MarkerKind, chainID int64) ([]entities.ContractRef, error)
}
