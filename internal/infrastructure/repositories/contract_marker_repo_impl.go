package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/infrastructure/models"
)

// ContractMarkerRepository implements the removed, delegate and hidden contract sets
type ContractMarkerRepository struct {
	db *gorm.DB
}

// NewContractMarkerRepository creates a new contract marker repository
func NewContractMarkerRepository(db *gorm.DB) *ContractMarkerRepository {
	return &ContractMarkerRepository{db: db}
}

// Add inserts the references into the kind's set. References already present are left alone.
func (r *ContractMarkerRepository) Add(ctx context.Context, kind entities.MarkerKind, refs ...entities.ContractRef) error {
	if !kind.IsValid() {
		return domainerrors.NewError(fmt.Sprintf("unknown contract marker kind %q", kind), domainerrors.ErrInvalidInput)
	}
	db := GetDB(ctx, r.db)
	now := time.Now()
	for _, ref := range refs {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(markerModel(kind, ref, now)).Error; err != nil {
			return domainerrors.EngineFailure("add "+string(kind)+" contract", err)
		}
	}
	return nil
}

// ListByChain lists the kind's references on one chain in insertion order
func (r *ContractMarkerRepository) ListByChain(ctx context.Context, kind entities.MarkerKind, chainID int64) ([]entities.ContractRef, error) {
	if !kind.IsValid() {
		return nil, domainerrors.NewError(fmt.Sprintf("unknown contract marker kind %q", kind), domainerrors.ErrInvalidInput)
	}
	refs := make([]entities.ContractRef, 0)
	err := GetDB(ctx, r.db).
		Model(markerModel(kind, entities.ContractRef{}, time.Time{})).
		Select("contract", "chain_id").
		Where("chain_id = ?", chainID).
		Order("created_at, contract").
		Scan(&refs).Error
	if err != nil {
		return nil, domainerrors.EngineFailure("list "+string(kind)+" contracts", err)
	}
	return refs, nil
}

func markerModel(kind entities.MarkerKind, ref entities.ContractRef, now time.Time) interface{} {
	switch kind {
	case entities.MarkerRemoved:
		return &models.RemovedContract{Contract: ref.Contract, ChainID: ref.ChainID, CreatedAt: now}
	case entities.MarkerDelegate:
		return &models.DelegateContract{Contract: ref.Contract, ChainID: ref.ChainID, CreatedAt: now}
	default:
		return &models.HiddenContract{Contract: ref.Contract, ChainID: ref.ChainID, CreatedAt: now}
	}
}
