package repositories

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/infrastructure/metrics"
)

type contextKey string

const (
	txKey      contextKey = "tx_db"
	changesKey contextKey = "tx_changes"
	heldKey    contextKey = "store_held"
)

var (
	beginTx  = func(db *gorm.DB) *gorm.DB { return db.Begin() }
	commitTx = func(tx *gorm.DB) error { return tx.Commit().Error }
)

// CommitPublisher receives what every committed transaction changed
type CommitPublisher interface {
	Publish(ev *entities.CommitEvent)
}

// UnitOfWorkImpl is the token store's record store. All work runs one caller at a time:
// a call blocks until prior work completes, reads included. Nested calls on a context that
// already holds the store run inline.
type UnitOfWorkImpl struct {
	db        *gorm.DB
	mu        sync.Mutex
	publisher CommitPublisher
	metrics   *metrics.Collector
}

// NewUnitOfWork creates a new UnitOfWork. publisher and collector may be nil.
func NewUnitOfWork(db *gorm.DB, publisher CommitPublisher, collector *metrics.Collector) *UnitOfWorkImpl {
	return &UnitOfWorkImpl{db: db, publisher: publisher, metrics: collector}
}

// Do executes the given function within a write transaction
func (u *UnitOfWorkImpl) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if isHeld(ctx) {
		if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
			return fn(ctx)
		}
		return u.transact(ctx, fn)
	}

	start := time.Now()
	u.mu.Lock()
	defer u.mu.Unlock()

	err := u.transact(context.WithValue(ctx, heldKey, true), fn)
	outcome := metrics.OutcomeCommitted
	if err != nil {
		outcome = metrics.OutcomeRolledBack
		if domainerrors.IsEngineFailure(err) {
			outcome = metrics.OutcomeFailed
		}
	}
	u.metrics.ObserveTransaction(outcome, time.Since(start))
	return err
}

// Read executes the given function with exclusive access and no transaction
func (u *UnitOfWorkImpl) Read(ctx context.Context, fn func(ctx context.Context) error) error {
	if isHeld(ctx) {
		return fn(ctx)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return fn(context.WithValue(ctx, heldKey, true))
}

func (u *UnitOfWorkImpl) transact(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := beginTx(u.db.WithContext(ctx))
	if tx.Error != nil {
		return domainerrors.EngineFailure("failed to begin transaction", tx.Error)
	}

	changes := &txChanges{index: make(map[entities.Key]int)}
	txCtx := context.WithValue(context.WithValue(ctx, txKey, tx), changesKey, changes)

	if err := fn(txCtx); err != nil {
		tx.Rollback()
		return err
	}

	ev, err := changes.event(tx)
	if err != nil {
		tx.Rollback()
		return domainerrors.EngineFailure("failed to load committed tokens", err)
	}

	if err := commitTx(tx); err != nil {
		tx.Rollback()
		return domainerrors.EngineFailure("failed to commit transaction", err)
	}

	if ev != nil && u.publisher != nil {
		u.publisher.Publish(ev)
	}
	return nil
}

// GetDB extracts the Transaction DB from context if present, otherwise returns standard DB
func (u *UnitOfWorkImpl) GetDB(ctx context.Context) *gorm.DB {
	return GetDB(ctx, u.db)
}

// GetDB is the helper repositories in this package use to join the caller's transaction
func GetDB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

func isHeld(ctx context.Context) bool {
	held, _ := ctx.Value(heldKey).(bool)
	return held
}

// txChanges collects the keys a transaction wrote, last write per key wins
type txChanges struct {
	keys    []entities.Key
	deleted []bool
	index   map[entities.Key]int
}

func (c *txChanges) record(key entities.Key, deleted bool) {
	if i, ok := c.index[key]; ok {
		c.deleted[i] = deleted
		return
	}
	c.index[key] = len(c.keys)
	c.keys = append(c.keys, key)
	c.deleted = append(c.deleted, deleted)
}

func (c *txChanges) event(tx *gorm.DB) (*entities.CommitEvent, error) {
	if len(c.keys) == 0 {
		return nil, nil
	}
	ev := &entities.CommitEvent{}
	var upserted []entities.Key
	for i, k := range c.keys {
		if c.deleted[i] {
			ev.Deleted = append(ev.Deleted, k)
		} else {
			upserted = append(upserted, k)
		}
	}
	if len(upserted) > 0 {
		tokens, err := loadTokens(tx, upserted)
		if err != nil {
			return nil, err
		}
		ev.Upserted = tokens
	}
	return ev, nil
}

func recordUpsert(ctx context.Context, key entities.Key) {
	if c, ok := ctx.Value(changesKey).(*txChanges); ok {
		c.record(key, false)
	}
}

func recordDelete(ctx context.Context, key entities.Key) {
	if c, ok := ctx.Value(changesKey).(*txChanges); ok {
		c.record(key, true)
	}
}
