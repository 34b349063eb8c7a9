package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/domain/predicates"
	"token-registry.backend/internal/domain/repositories"
	"token-registry.backend/pkg/logger"
)

// TokenStoreUsecase is the token store's read and write surface. Every call runs through the
// unit of work, so callers never observe a half-applied write.
type TokenStoreUsecase struct {
	uow        repositories.UnitOfWork
	tokenRepo  repositories.TokenRepository
	markerRepo repositories.ContractMarkerRepository
	networks   *entities.NetworkCatalog
}

// NewTokenStoreUsecase creates a new token store usecase
func NewTokenStoreUsecase(
	uow repositories.UnitOfWork,
	tokenRepo repositories.TokenRepository,
	markerRepo repositories.ContractMarkerRepository,
	networks *entities.NetworkCatalog,
) *TokenStoreUsecase {
	return &TokenStoreUsecase{
		uow:        uow,
		tokenRepo:  tokenRepo,
		markerRepo: markerRepo,
		networks:   networks,
	}
}

// Networks returns the configured network catalog
func (u *TokenStoreUsecase) Networks() []entities.Network {
	return u.networks.All()
}

// Bootstrap ensures the native currency record of every configured network
func (u *TokenStoreUsecase) Bootstrap(ctx context.Context) error {
	for _, n := range u.networks.All() {
		created, err := u.EnsureNativeAsset(ctx, n.ChainID)
		if err != nil {
			return fmt.Errorf("bootstrap chain %d: %w", n.ChainID, err)
		}
		if created {
			logger.Info(ctx, "Native asset created", zap.Int64("chain_id", n.ChainID), zap.String("symbol", n.Symbol))
		}
	}
	return nil
}

// EnsureNativeAsset writes the network's native currency placeholder unless the network already
// holds any record. It reports whether the placeholder was written.
func (u *TokenStoreUsecase) EnsureNativeAsset(ctx context.Context, chainID int64) (bool, error) {
	network, ok := u.networks.Get(chainID)
	if !ok {
		return false, unsupportedChain(chainID)
	}

	created := false
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		existing, err := u.tokenRepo.List(txCtx, predicates.NonEmptyContractOn(chainID))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}
		if _, err := u.tokenRepo.Upsert(txCtx, entities.NewNativeToken(network)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Get returns the token at the key, or nil when absent
func (u *TokenStoreUsecase) Get(ctx context.Context, key entities.Key) (*entities.Token, error) {
	key, err := canonicalKey(key)
	if err != nil {
		return nil, err
	}

	var token *entities.Token
	err = u.uow.Read(ctx, func(ctx context.Context) error {
		token, err = u.tokenRepo.Get(ctx, key)
		return err
	})
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// GetByContract returns the first token with the contract on any network, or nil when absent
func (u *TokenStoreUsecase) GetByContract(ctx context.Context, contract string) (*entities.Token, error) {
	canonical, err := predicates.CanonicalAddress(contract)
	if err != nil {
		return nil, domainerrors.NewError(err.Error(), domainerrors.ErrInvalidInput)
	}

	var token *entities.Token
	err = u.uow.Read(ctx, func(ctx context.Context) error {
		token, err = u.tokenRepo.GetByContract(ctx, canonical)
		return err
	})
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ListEnabled lists the enabled tokens of the given networks, every configured network when
// chainIDs is empty, with mirrored native placeholders masked.
func (u *TokenStoreUsecase) ListEnabled(ctx context.Context, chainIDs []int64) ([]*entities.Token, error) {
	networks, err := u.resolve(chainIDs)
	if err != nil {
		return nil, err
	}

	var tokens []*entities.Token
	err = u.uow.Read(ctx, func(ctx context.Context) error {
		tokens, err = u.tokenRepo.List(ctx, predicates.FilterEnabled(entities.ChainIDs(networks), false))
		return err
	})
	if err != nil {
		return nil, err
	}
	return predicates.MaskNativeWhenMirrored(networks, tokens), nil
}

// UpdateField applies one field mutation. found is false when no token is stored at the key,
// which is not an error.
func (u *TokenStoreUsecase) UpdateField(ctx context.Context, key entities.Key, action entities.UpdateAction) (changed bool, found bool, err error) {
	if err := entities.ValidateAction(action); err != nil {
		return false, false, domainerrors.NewError(err.Error(), domainerrors.ErrInvalidInput)
	}
	key, err = canonicalKey(key)
	if err != nil {
		return false, false, err
	}

	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		changed, err = u.tokenRepo.UpdateField(txCtx, key, action)
		return err
	})
	if errors.Is(err, domainerrors.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		logger.Error(ctx, "Failed to update token",
			zap.Int64("chain_id", key.ChainID),
			zap.String("contract", key.Contract),
			zap.String("operation", action.Field()),
			zap.Error(err),
		)
		return false, false, err
	}
	return changed, true, nil
}

// UpdateBalance sets a fungible amount. An absent token reports no change.
func (u *TokenStoreUsecase) UpdateBalance(ctx context.Context, key entities.Key, value *big.Int) (bool, error) {
	changed, _, err := u.UpdateField(ctx, key, entities.SetValue{Value: value})
	return changed, err
}

// UpdateNonFungibleBalance reconciles the held item ids. An absent token reports no change.
func (u *TokenStoreUsecase) UpdateNonFungibleBalance(ctx context.Context, key entities.Key, balance []string) (bool, error) {
	changed, _, err := u.UpdateField(ctx, key, entities.SetNonFungibleBalance{Balance: balance})
	return changed, err
}

// AddCustom stores user-added tokens in one transaction
func (u *TokenStoreUsecase) AddCustom(ctx context.Context, tokens []entities.ERCToken, copyBalance bool) ([]*entities.Token, error) {
	normalized := make([]entities.ERCToken, 0, len(tokens))
	for i, t := range tokens {
		contract, err := predicates.CanonicalAddress(t.Contract)
		if err != nil {
			return nil, domainerrors.NewError(fmt.Sprintf("token %d: %v", i, err), domainerrors.ErrInvalidInput)
		}
		t.Contract = contract
		if err := (entities.AddDetectedToken{Token: t}).Validate(); err != nil {
			return nil, domainerrors.NewError(fmt.Sprintf("token %d: %v", i, err), domainerrors.ErrInvalidInput)
		}
		if _, ok := u.networks.Get(t.ChainID); !ok {
			return nil, unsupportedChain(t.ChainID)
		}
		normalized = append(normalized, t)
	}

	stored := make([]*entities.Token, 0, len(normalized))
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		for _, t := range normalized {
			saved, err := u.tokenRepo.Upsert(txCtx, t.ToToken(copyBalance))
			if err != nil {
				return err
			}
			stored = append(stored, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// UpsertMetadata creates or refreshes token metadata, leaving balances, flags and order alone
func (u *TokenStoreUsecase) UpsertMetadata(ctx context.Context, updates []entities.TokenUpdate) ([]*entities.Token, error) {
	normalized := make([]entities.TokenUpdate, 0, len(updates))
	for i, up := range updates {
		key, err := canonicalKey(up.Key())
		if err != nil {
			return nil, domainerrors.NewError(fmt.Sprintf("update %d: %v", i, err), domainerrors.ErrInvalidInput)
		}
		if !up.Type.IsValid() {
			return nil, domainerrors.NewError(fmt.Sprintf("update %d: unknown token type %q", i, up.Type), domainerrors.ErrInvalidInput)
		}
		if _, ok := u.networks.Get(key.ChainID); !ok {
			return nil, unsupportedChain(key.ChainID)
		}
		up.Contract = key.Contract
		normalized = append(normalized, up)
	}

	stored := make([]*entities.Token, 0, len(normalized))
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		for _, up := range normalized {
			saved, err := u.tokenRepo.UpsertMetadata(txCtx, up)
			if err != nil {
				return err
			}
			stored = append(stored, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// AddHiddenContracts marks contracts the user hid
func (u *TokenStoreUsecase) AddHiddenContracts(ctx context.Context, refs []entities.ContractRef) error {
	normalized, err := canonicalRefs(refs)
	if err != nil {
		return err
	}
	if len(normalized) == 0 {
		return nil
	}
	return u.uow.Do(ctx, func(txCtx context.Context) error {
		return u.markerRepo.Add(txCtx, entities.MarkerHidden, normalized...)
	})
}

// ListRemoved lists removed contracts of one network
func (u *TokenStoreUsecase) ListRemoved(ctx context.Context, chainID int64) ([]entities.ContractRef, error) {
	return u.listMarkers(ctx, entities.MarkerRemoved, chainID)
}

// ListDelegates lists delegate contracts of one network
func (u *TokenStoreUsecase) ListDelegates(ctx context.Context, chainID int64) ([]entities.ContractRef, error) {
	return u.listMarkers(ctx, entities.MarkerDelegate, chainID)
}

// ListHidden lists hidden contracts of one network
func (u *TokenStoreUsecase) ListHidden(ctx context.Context, chainID int64) ([]entities.ContractRef, error) {
	return u.listMarkers(ctx, entities.MarkerHidden, chainID)
}

func (u *TokenStoreUsecase) listMarkers(ctx context.Context, kind entities.MarkerKind, chainID int64) ([]entities.ContractRef, error) {
	if _, ok := u.networks.Get(chainID); !ok {
		return nil, unsupportedChain(chainID)
	}
	var refs []entities.ContractRef
	err := u.uow.Read(ctx, func(ctx context.Context) error {
		var err error
		refs, err = u.markerRepo.ListByChain(ctx, kind, chainID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Reorder gives every stored token the position of its key in orderedKeys. Tokens left out lose
// their position. An empty list changes nothing.
func (u *TokenStoreUsecase) Reorder(ctx context.Context, orderedKeys []entities.Key) error {
	keys := make([]entities.Key, 0, len(orderedKeys))
	for i, k := range orderedKeys {
		key, err := canonicalKey(k)
		if err != nil {
			return domainerrors.NewError(fmt.Sprintf("key %d: %v", i, err), domainerrors.ErrInvalidInput)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	return u.uow.Do(ctx, func(txCtx context.Context) error {
		return u.tokenRepo.Reorder(txCtx, keys)
	})
}

// DeleteForTesting removes tokens outright. Production paths hide tokens instead.
func (u *TokenStoreUsecase) DeleteForTesting(ctx context.Context, keys []entities.Key) (int64, error) {
	normalized := make([]entities.Key, 0, len(keys))
	for i, k := range keys {
		key, err := canonicalKey(k)
		if err != nil {
			return 0, domainerrors.NewError(fmt.Sprintf("key %d: %v", i, err), domainerrors.ErrInvalidInput)
		}
		normalized = append(normalized, key)
	}

	var deleted int64
	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		var err error
		deleted, err = u.tokenRepo.Delete(txCtx, normalized)
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Warn(ctx, "Tokens deleted", zap.Int64("count", deleted))
	return deleted, nil
}

func (u *TokenStoreUsecase) resolve(chainIDs []int64) ([]entities.Network, error) {
	networks, missing := u.networks.Resolve(chainIDs)
	if len(missing) > 0 {
		return nil, unsupportedChain(missing[0])
	}
	return networks, nil
}

func canonicalKey(key entities.Key) (entities.Key, error) {
	if key.ChainID <= 0 {
		return key, domainerrors.NewError("chain id is required", domainerrors.ErrInvalidInput)
	}
	k, err := predicates.CanonicalKey(key.Contract, key.ChainID)
	if err != nil {
		return key, domainerrors.NewError(err.Error(), domainerrors.ErrInvalidInput)
	}
	return k, nil
}

func canonicalRefs(refs []entities.ContractRef) ([]entities.ContractRef, error) {
	out := make([]entities.ContractRef, 0, len(refs))
	for i, r := range refs {
		key, err := canonicalKey(r.Key())
		if err != nil {
			return nil, domainerrors.NewError(fmt.Sprintf("contract %d: %v", i, err), domainerrors.ErrInvalidInput)
		}
		out = append(out, entities.ContractRef{Contract: key.Contract, ChainID: key.ChainID})
	}
	return out, nil
}

func unsupportedChain(chainID int64) error {
	return fmt.Errorf("chain %d: %w", chainID, domainerrors.ErrUnsupportedChain)
}
