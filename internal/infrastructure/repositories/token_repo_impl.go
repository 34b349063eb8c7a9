package repositories

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/domain/predicates"
	"token-registry.backend/internal/infrastructure/models"
)

// TokenRepository implements token data operations
type TokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get gets a token by key
func (r *TokenRepository) Get(ctx context.Context, key entities.Key) (*entities.Token, error) {
	db := GetDB(ctx, r.db)
	m, err := findToken(db, key)
	if err != nil {
		return nil, err
	}
	balances, err := loadBalances(db, []models.Token{*m})
	if err != nil {
		return nil, err
	}
	return toEntity(m, balances[key]), nil
}

// GetByContract gets the first token with the contract on any chain
func (r *TokenRepository) GetByContract(ctx context.Context, contract string) (*entities.Token, error) {
	db := GetDB(ctx, r.db)
	var m models.Token
	if err := db.Where("contract = ?", contract).Order("chain_id").First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, domainerrors.EngineFailure("get token by contract", err)
	}
	balances, err := loadBalances(db, []models.Token{m})
	if err != nil {
		return nil, err
	}
	return toEntity(&m, balances[keyOf(&m)]), nil
}

// List gets every token matching the filter, ordered by chain id then contract
func (r *TokenRepository) List(ctx context.Context, filter predicates.Filter) ([]*entities.Token, error) {
	db := GetDB(ctx, r.db)
	var ms []models.Token
	if err := applyFilter(db.Model(&models.Token{}), filter).Order("chain_id, contract").Find(&ms).Error; err != nil {
		return nil, domainerrors.EngineFailure("list tokens", err)
	}

	balances, err := loadBalances(db, ms)
	if err != nil {
		return nil, err
	}

	tokens := make([]*entities.Token, 0, len(ms))
	for i := range ms {
		tokens = append(tokens, toEntity(&ms[i], balances[keyOf(&ms[i])]))
	}
	predicates.Sort(tokens)
	return tokens, nil
}

// Upsert writes the token at its key. An existing record's sort index and visibility are carried
// over; every other field, the balance included, is replaced.
func (r *TokenRepository) Upsert(ctx context.Context, token *entities.Token) (*entities.Token, error) {
	db := GetDB(ctx, r.db)
	key := token.Key()

	existing, err := findToken(db, key)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	m := toModel(token)
	if existing != nil {
		m.SortIndex = existing.SortIndex
		m.Visible = existing.Visible
		m.CreatedAt = existing.CreatedAt
		if err := db.Save(m).Error; err != nil {
			return nil, domainerrors.EngineFailure("update token", err)
		}
	} else {
		if err := db.Create(m).Error; err != nil {
			return nil, domainerrors.EngineFailure("create token", err)
		}
	}

	if err := replaceBalances(db, key, token.Balance); err != nil {
		return nil, err
	}

	recordUpsert(ctx, key)
	return toEntity(m, token.Balance), nil
}

// UpsertMetadata creates the token or rewrites only its name, symbol, decimals and type
func (r *TokenRepository) UpsertMetadata(ctx context.Context, update entities.TokenUpdate) (*entities.Token, error) {
	db := GetDB(ctx, r.db)
	key := update.Key()

	existing, err := findToken(db, key)
	if err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		m := &models.Token{
			Contract: key.Contract,
			ChainID:  key.ChainID,
			Name:     update.Name,
			Symbol:   update.Symbol,
			Decimals: update.Decimals,
			Type:     string(update.Type),
			Value:    "0",
			Visible:  true,
		}
		if err := db.Create(m).Error; err != nil {
			return nil, domainerrors.EngineFailure("create token", err)
		}
		recordUpsert(ctx, key)
		return toEntity(m, nil), nil
	}

	if err := updateColumns(db, key, map[string]interface{}{
		"name":     update.Name,
		"symbol":   update.Symbol,
		"decimals": update.Decimals,
		"type":     string(update.Type),
	}); err != nil {
		return nil, err
	}
	recordUpsert(ctx, key)
	return r.Get(ctx, key)
}

// UpdateField applies one field mutation and reports whether stored state changed.
// A missing token yields ErrNotFound. A balance action that does not match the token's kind is a no-op.
func (r *TokenRepository) UpdateField(ctx context.Context, key entities.Key, action entities.UpdateAction) (bool, error) {
	db := GetDB(ctx, r.db)
	m, err := findToken(db, key)
	if err != nil {
		return false, err
	}

	// a balance update of the wrong kind has nothing to change
	kind := entities.TokenType(m.Type)
	var changed bool
	switch a := action.(type) {
	case entities.SetValue:
		if kind.IsFungible() {
			changed, err = updateFungibleBalance(db, m, a.Value)
		}
	case entities.SetNonFungibleBalance:
		if kind.IsNonFungible() {
			changed, err = updateNonFungibleBalance(db, key, a.Balance)
		}
	case entities.SetName:
		if m.Name != a.Name {
			changed, err = true, updateColumns(db, key, map[string]interface{}{"name": a.Name})
		}
	case entities.SetType:
		if m.Type != string(a.Type) {
			changed, err = true, updateColumns(db, key, map[string]interface{}{"type": string(a.Type)})
		}
	case entities.SetDisabled:
		if m.IsDisabled != a.Disabled {
			changed, err = true, updateColumns(db, key, map[string]interface{}{"is_disabled": a.Disabled})
		}
	case entities.SetHidden:
		visible := !a.Hidden
		cols := map[string]interface{}{}
		if m.Visible != visible {
			cols["visible"] = visible
		}
		if a.Hidden && m.SortIndex != nil {
			cols["sort_index"] = gorm.Expr("NULL")
		}
		if len(cols) > 0 {
			changed, err = true, updateColumns(db, key, cols)
		}
	default:
		return false, domainerrors.NewError("unsupported update action", domainerrors.ErrInvalidInput)
	}
	if err != nil {
		return false, err
	}

	if changed {
		recordUpsert(ctx, key)
	}
	return changed, nil
}

// Reorder assigns every stored token the position of its key in orderedKeys, or no position when absent.
// An empty orderedKeys is a no-op.
func (r *TokenRepository) Reorder(ctx context.Context, orderedKeys []entities.Key) error {
	if len(orderedKeys) == 0 {
		return nil
	}
	db := GetDB(ctx, r.db)

	positions := make(map[entities.Key]int64, len(orderedKeys))
	for i, k := range orderedKeys {
		if _, dup := positions[k]; !dup {
			positions[k] = int64(i)
		}
	}

	var ms []models.Token
	if err := db.Select("contract", "chain_id", "sort_index").Find(&ms).Error; err != nil {
		return domainerrors.EngineFailure("list tokens for reorder", err)
	}

	for i := range ms {
		key := keyOf(&ms[i])
		pos, ordered := positions[key]

		var value interface{} = gorm.Expr("NULL")
		if ordered {
			if ms[i].SortIndex != nil && *ms[i].SortIndex == pos {
				continue
			}
			value = pos
		} else if ms[i].SortIndex == nil {
			continue
		}

		if err := updateColumns(db, key, map[string]interface{}{"sort_index": value}); err != nil {
			return err
		}
		recordUpsert(ctx, key)
	}
	return nil
}

// Delete removes tokens and their balances. Only used by test and debug paths.
func (r *TokenRepository) Delete(ctx context.Context, keys []entities.Key) (int64, error) {
	db := GetDB(ctx, r.db)
	var deleted int64
	for _, key := range keys {
		if err := db.Where("contract = ? AND chain_id = ?", key.Contract, key.ChainID).Delete(&models.TokenBalance{}).Error; err != nil {
			return deleted, domainerrors.EngineFailure("delete token balances", err)
		}
		res := db.Where("contract = ? AND chain_id = ?", key.Contract, key.ChainID).Delete(&models.Token{})
		if res.Error != nil {
			return deleted, domainerrors.EngineFailure("delete token", res.Error)
		}
		if res.RowsAffected > 0 {
			deleted++
			recordDelete(ctx, key)
		}
	}
	return deleted, nil
}

func updateFungibleBalance(db *gorm.DB, m *models.Token, value *big.Int) (bool, error) {
	if stored, ok := math.ParseBig256(m.Value); ok && stored.Cmp(value) == 0 {
		return false, nil
	}
	return true, updateColumns(db, keyOf(m), map[string]interface{}{"value": value.String()})
}

// updateNonFungibleBalance reconciles item ids: rows no longer held are removed first, then new ids
// are appended. Unchanged rows keep their position.
func updateNonFungibleBalance(db *gorm.DB, key entities.Key, balance []string) (bool, error) {
	var rows []models.TokenBalance
	if err := db.Where("contract = ? AND chain_id = ?", key.Contract, key.ChainID).Order("position, id").Find(&rows).Error; err != nil {
		return false, domainerrors.EngineFailure("load token balances", err)
	}

	wanted := make(map[string]struct{}, len(balance))
	for _, b := range balance {
		wanted[b] = struct{}{}
	}
	held := make(map[string]struct{}, len(rows))
	var toRemove []uint
	nextPosition := 0
	for _, row := range rows {
		held[row.Item] = struct{}{}
		if _, ok := wanted[row.Item]; !ok {
			toRemove = append(toRemove, row.ID)
		}
		if row.Position >= nextPosition {
			nextPosition = row.Position + 1
		}
	}
	var toAdd []models.TokenBalance
	for _, b := range balance {
		if _, ok := held[b]; ok {
			continue
		}
		held[b] = struct{}{}
		toAdd = append(toAdd, models.TokenBalance{Contract: key.Contract, ChainID: key.ChainID, Position: nextPosition, Item: b})
		nextPosition++
	}

	if len(toRemove) == 0 && len(toAdd) == 0 {
		return false, nil
	}
	if len(toRemove) > 0 {
		if err := db.Where("id IN ?", toRemove).Delete(&models.TokenBalance{}).Error; err != nil {
			return false, domainerrors.EngineFailure("remove token balances", err)
		}
	}
	if len(toAdd) > 0 {
		if err := db.Create(&toAdd).Error; err != nil {
			return false, domainerrors.EngineFailure("add token balances", err)
		}
	}
	return true, updateColumns(db, key, map[string]interface{}{"updated_at": time.Now()})
}

func replaceBalances(db *gorm.DB, key entities.Key, balance []string) error {
	if err := db.Where("contract = ? AND chain_id = ?", key.Contract, key.ChainID).Delete(&models.TokenBalance{}).Error; err != nil {
		return domainerrors.EngineFailure("clear token balances", err)
	}
	if len(balance) == 0 {
		return nil
	}
	rows := make([]models.TokenBalance, 0, len(balance))
	for i, b := range balance {
		rows = append(rows, models.TokenBalance{Contract: key.Contract, ChainID: key.ChainID, Position: i, Item: b})
	}
	if err := db.Create(&rows).Error; err != nil {
		return domainerrors.EngineFailure("write token balances", err)
	}
	return nil
}

// updateColumns writes the given columns and bumps updated_at
func updateColumns(db *gorm.DB, key entities.Key, cols map[string]interface{}) error {
	err := db.Model(&models.Token{}).
		Where("contract = ? AND chain_id = ?", key.Contract, key.ChainID).
		Updates(cols).Error
	if err != nil {
		return domainerrors.EngineFailure("update token", err)
	}
	return nil
}

func applyFilter(db *gorm.DB, f predicates.Filter) *gorm.DB {
	if f.ChainIDs != nil {
		if len(f.ChainIDs) == 0 {
			db = db.Where("1 = 0")
		} else {
			db = db.Where("chain_id IN ?", f.ChainIDs)
		}
	}
	if f.IsDisabled != nil {
		db = db.Where("is_disabled = ?", *f.IsDisabled)
	}
	if f.NonEmptyContract {
		db = db.Where("contract <> ''")
	}
	if f.Contract != "" {
		db = db.Where("contract = ?", f.Contract)
	}
	return db
}

func findToken(db *gorm.DB, key entities.Key) (*models.Token, error) {
	var m models.Token
	if err := db.Where("contract = ? AND chain_id = ?", key.Contract, key.ChainID).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, domainerrors.EngineFailure("get token", err)
	}
	return &m, nil
}

// loadTokens returns the after-images of the given keys, skipping keys no longer stored
func loadTokens(db *gorm.DB, keys []entities.Key) ([]*entities.Token, error) {
	tokens := make([]*entities.Token, 0, len(keys))
	for _, key := range keys {
		m, err := findToken(db, key)
		if errors.Is(err, domainerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		balances, err := loadBalances(db, []models.Token{*m})
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, toEntity(m, balances[key]))
	}
	return tokens, nil
}

func loadBalances(db *gorm.DB, ms []models.Token) (map[entities.Key][]string, error) {
	out := make(map[entities.Key][]string)
	wanted := make(map[entities.Key]struct{})
	chainSet := make(map[int64]struct{})
	contractSet := make(map[string]struct{})
	for i := range ms {
		if !entities.TokenType(ms[i].Type).IsNonFungible() {
			continue
		}
		wanted[keyOf(&ms[i])] = struct{}{}
		chainSet[ms[i].ChainID] = struct{}{}
		contractSet[ms[i].Contract] = struct{}{}
	}
	if len(wanted) == 0 {
		return out, nil
	}

	chainIDs := make([]int64, 0, len(chainSet))
	for id := range chainSet {
		chainIDs = append(chainIDs, id)
	}
	contracts := make([]string, 0, len(contractSet))
	for c := range contractSet {
		contracts = append(contracts, c)
	}

	var rows []models.TokenBalance
	if err := db.Where("chain_id IN ? AND contract IN ?", chainIDs, contracts).Order("position, id").Find(&rows).Error; err != nil {
		return nil, domainerrors.EngineFailure("load token balances", err)
	}
	for _, row := range rows {
		k := entities.Key{Contract: row.Contract, ChainID: row.ChainID}
		if _, ok := wanted[k]; ok {
			out[k] = append(out[k], row.Item)
		}
	}
	return out, nil
}

func keyOf(m *models.Token) entities.Key {
	return entities.Key{Contract: m.Contract, ChainID: m.ChainID}
}

func toEntity(m *models.Token, balance []string) *entities.Token {
	t := &entities.Token{
		Contract:   m.Contract,
		ChainID:    m.ChainID,
		Name:       m.Name,
		Symbol:     m.Symbol,
		Decimals:   m.Decimals,
		Type:       entities.TokenType(m.Type),
		Value:      m.Value,
		IsCustom:   m.IsCustom,
		IsDisabled: m.IsDisabled,
		Visible:    m.Visible,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.SortIndex != nil {
		t.SortIndex = null.IntFrom(int(*m.SortIndex))
	}
	if len(balance) > 0 {
		t.Balance = append([]string(nil), balance...)
	}
	return t
}

func toModel(t *entities.Token) *models.Token {
	m := &models.Token{
		Contract:   t.Contract,
		ChainID:    t.ChainID,
		Name:       t.Name,
		Symbol:     t.Symbol,
		Decimals:   t.Decimals,
		Type:       string(t.Type),
		Value:      t.Value,
		IsCustom:   t.IsCustom,
		IsDisabled: t.IsDisabled,
		Visible:    t.Visible,
		CreatedAt:  t.CreatedAt,
	}
	if m.Value == "" {
		m.Value = "0"
	}
	if t.SortIndex.Valid {
		v := int64(t.SortIndex.Int)
		m.SortIndex = &v
	}
	return m
}
