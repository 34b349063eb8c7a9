package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/domain/predicates"
	"token-registry.backend/internal/domain/repositories"
	"token-registry.backend/internal/infrastructure/metrics"
	"token-registry.backend/pkg/logger"
)

// ErrBatchRejected is returned when at least one operation failed validation. Nothing was written.
var ErrBatchRejected = fmt.Errorf("batch rejected: %w", domainerrors.ErrInvalidInput)

// BatchUsecase applies producer batches
type BatchUsecase struct {
	uow        repositories.UnitOfWork
	tokenRepo  repositories.TokenRepository
	markerRepo repositories.ContractMarkerRepository
	networks   *entities.NetworkCatalog
	metrics    *metrics.Collector
}

// NewBatchUsecase creates a new batch usecase. collector may be nil.
func NewBatchUsecase(
	uow repositories.UnitOfWork,
	tokenRepo repositories.TokenRepository,
	markerRepo repositories.ContractMarkerRepository,
	networks *entities.NetworkCatalog,
	collector *metrics.Collector,
) *BatchUsecase {
	return &BatchUsecase{
		uow:        uow,
		tokenRepo:  tokenRepo,
		markerRepo: markerRepo,
		networks:   networks,
		metrics:    collector,
	}
}

// ApplyBatch runs every operation in order inside one transaction. The batch is all-or-nothing:
// any invalid operation rejects the whole batch before the transaction opens, and any engine
// failure rolls it back. The returned result carries one item per operation in both cases.
func (u *BatchUsecase) ApplyBatch(ctx context.Context, ops []entities.BatchOperation) (*entities.BatchResult, error) {
	result := &entities.BatchResult{Items: make([]entities.BatchItemResult, len(ops))}

	normalized := make([]entities.BatchOperation, len(ops))
	rejected := 0
	for i, op := range ops {
		item := &result.Items[i]
		item.Index = i
		if op == nil {
			item.Error = "missing operation"
			rejected++
			continue
		}
		item.Kind = op.Kind()

		n, err := u.normalize(op)
		if err != nil {
			item.Error = err.Error()
			rejected++
			continue
		}
		normalized[i] = n
	}
	if rejected > 0 {
		logger.Warn(ctx, "Batch rejected", zap.Int("operations", len(ops)), zap.Int("invalid", rejected))
		return result, ErrBatchRejected
	}
	if len(ops) == 0 {
		result.Applied = true
		return result, nil
	}

	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		for i, op := range normalized {
			if err := u.apply(txCtx, op, &result.Items[i]); err != nil {
				return fmt.Errorf("operation %d (%s): %w", i, op.Kind(), err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "Batch aborted", zap.Int("operations", len(ops)), zap.Error(err))
		for i := range result.Items {
			result.Items[i].Changed = false
			result.Items[i].Token = nil
		}
		return result, err
	}

	result.Applied = true
	for _, op := range normalized {
		u.metrics.BatchOperation(op.Kind())
	}
	logger.Info(ctx, "Batch applied", zap.Int("operations", len(ops)), zap.Bool("changed", result.Changed()))
	return result, nil
}

// normalize validates the operation and rewrites its addresses to canonical form
func (u *BatchUsecase) normalize(op entities.BatchOperation) (entities.BatchOperation, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	switch o := op.(type) {
	case entities.AddDelegateContract:
		ref, err := u.ref(o.Contract)
		o.Contract = ref
		return o, err
	case entities.AddRemovedContract:
		ref, err := u.ref(o.Contract)
		o.Contract = ref
		return o, err
	case entities.AddHiddenContract:
		ref, err := u.ref(o.Contract)
		o.Contract = ref
		return o, err
	case entities.AddDetectedToken:
		key, err := u.key(entities.Key{Contract: o.Token.Contract, ChainID: o.Token.ChainID})
		o.Token.Contract = key.Contract
		return o, err
	case entities.AddToken:
		key, err := u.key(o.Token.Key())
		o.Token.Contract = key.Contract
		o.Token.Balance = append([]string(nil), o.Token.Balance...)
		return o, err
	case entities.AddFungibleIfAbsent:
		key, err := u.key(o.Key)
		o.Key = key
		return o, err
	case entities.UpdateToken:
		key, err := u.key(o.Key)
		o.Key = key
		return o, err
	}
	return nil, fmt.Errorf("unsupported operation %q", op.Kind())
}

func (u *BatchUsecase) key(k entities.Key) (entities.Key, error) {
	if _, ok := u.networks.Get(k.ChainID); !ok {
		return k, unsupportedChain(k.ChainID)
	}
	return predicates.CanonicalKey(k.Contract, k.ChainID)
}

func (u *BatchUsecase) ref(r entities.ContractRef) (entities.ContractRef, error) {
	k, err := u.key(r.Key())
	return entities.ContractRef{Contract: k.Contract, ChainID: k.ChainID}, err
}

func (u *BatchUsecase) apply(ctx context.Context, op entities.BatchOperation, item *entities.BatchItemResult) error {
	switch o := op.(type) {
	case entities.AddDelegateContract:
		item.Key = keyPtr(o.Contract.Key())
		item.Changed = true
		return u.markerRepo.Add(ctx, entities.MarkerDelegate, o.Contract)
	case entities.AddRemovedContract:
		item.Key = keyPtr(o.Contract.Key())
		item.Changed = true
		return u.markerRepo.Add(ctx, entities.MarkerRemoved, o.Contract)
	case entities.AddHiddenContract:
		item.Key = keyPtr(o.Contract.Key())
		item.Changed = true
		return u.markerRepo.Add(ctx, entities.MarkerHidden, o.Contract)
	case entities.AddDetectedToken:
		return u.upsert(ctx, o.Token.ToToken(o.CopyBalance), item)
	case entities.AddToken:
		token := o.Token
		return u.upsert(ctx, &token, item)
	case entities.AddFungibleIfAbsent:
		return u.addFungibleIfAbsent(ctx, o, item)
	case entities.UpdateToken:
		item.Key = keyPtr(o.Key)
		changed, err := u.tokenRepo.UpdateField(ctx, o.Key, o.Action)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		item.Found = true
		item.Changed = changed
		return nil
	}
	return fmt.Errorf("unsupported operation %q", op.Kind())
}

func (u *BatchUsecase) upsert(ctx context.Context, token *entities.Token, item *entities.BatchItemResult) error {
	item.Key = keyPtr(token.Key())
	saved, err := u.tokenRepo.Upsert(ctx, token)
	if err != nil {
		return err
	}
	item.Found = true
	item.Changed = true
	item.Token = saved
	return nil
}

// addFungibleIfAbsent reads the stored amount first. The read and the write share the batch
// transaction, so no other writer can interleave.
func (u *BatchUsecase) addFungibleIfAbsent(ctx context.Context, o entities.AddFungibleIfAbsent, item *entities.BatchItemResult) error {
	item.Key = keyPtr(o.Key)

	existing, err := u.tokenRepo.Get(ctx, o.Key)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}
	if existing != nil {
		item.Found = true
		if o.OnlyIfNoExistingBalance && hasBalance(existing.Value) {
			item.Skipped = true
			return nil
		}
	}

	token := &entities.Token{
		Contract: o.Key.Contract,
		ChainID:  o.Key.ChainID,
		Name:     o.Name,
		Symbol:   o.Symbol,
		Decimals: o.Decimals,
		Type:     entities.TokenTypeERC20,
		Value:    "0",
		Visible:  true,
	}
	if existing != nil {
		token.Value = existing.Value
		token.IsCustom = existing.IsCustom
		token.IsDisabled = existing.IsDisabled
	}
	saved, err := u.tokenRepo.Upsert(ctx, token)
	if err != nil {
		return err
	}
	item.Changed = true
	item.Token = saved
	return nil
}

func hasBalance(value string) bool {
	if value == "" {
		return false
	}
	v, ok := math.ParseBig256(value)
	return !ok || v.Sign() != 0
}

func keyPtr(k entities.Key) *entities.Key {
	return &k
}
