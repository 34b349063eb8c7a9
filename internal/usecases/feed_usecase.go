package usecases

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/domain/predicates"
	"token-registry.backend/internal/domain/repositories"
	"token-registry.backend/internal/infrastructure/feed"
	"token-registry.backend/internal/infrastructure/metrics"
	"token-registry.backend/pkg/logger"
)

const (
	feedKindEnabled = "enabled"
	feedKindToken   = "token"

	closeReasonCancelled = "cancelled"
	closeReasonDeleted   = "deleted"
	closeReasonNotFound  = "not_found"
	closeReasonError     = "error"
)

// FeedUsecase serves change feeds. A feed takes its snapshot under the store's serialization, so
// every later commit reaches it exactly once through the hub.
type FeedUsecase struct {
	uow       repositories.UnitOfWork
	tokenRepo repositories.TokenRepository
	hub       *feed.Hub
	networks  *entities.NetworkCatalog
	metrics   *metrics.Collector
}

// NewFeedUsecase creates a new feed usecase. collector may be nil.
func NewFeedUsecase(
	uow repositories.UnitOfWork,
	tokenRepo repositories.TokenRepository,
	hub *feed.Hub,
	networks *entities.NetworkCatalog,
	collector *metrics.Collector,
) *FeedUsecase {
	return &FeedUsecase{
		uow:       uow,
		tokenRepo: tokenRepo,
		hub:       hub,
		networks:  networks,
		metrics:   collector,
	}
}

// SubscribeEnabled streams the enabled tokens of the given networks, every configured network when
// chainIDs is empty. The first change set is the initial snapshot; later ones are index-addressed
// deltas. Deletions index the previous snapshot, insertions and modifications the new one.
// The channel closes when ctx is cancelled or after a terminal error change set.
func (u *FeedUsecase) SubscribeEnabled(ctx context.Context, chainIDs []int64) (<-chan entities.ChangeSet, error) {
	networks, missing := u.networks.Resolve(chainIDs)
	if len(missing) > 0 {
		return nil, unsupportedChain(missing[0])
	}
	filter := predicates.FilterEnabled(entities.ChainIDs(networks), false)

	var (
		sub    *feed.Subscription
		seq    uint64
		tokens []*entities.Token
	)
	err := u.uow.Read(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = u.hub.Subscribe(); err != nil {
			return err
		}
		seq = u.hub.Seq()
		tokens, err = u.tokenRepo.List(ctx, filter)
		return err
	})
	if err != nil {
		if sub != nil {
			sub.Close()
		}
		return nil, err
	}

	out := make(chan entities.ChangeSet)
	u.metrics.SubscriptionOpened(feedKindEnabled)
	go u.runEnabled(ctx, sub, seq, filter, networks, tokens, out)
	return out, nil
}

func (u *FeedUsecase) runEnabled(
	ctx context.Context,
	sub *feed.Subscription,
	seq uint64,
	filter predicates.Filter,
	networks []entities.Network,
	tokens []*entities.Token,
	out chan<- entities.ChangeSet,
) {
	reason := closeReasonCancelled
	defer func() {
		sub.Close()
		close(out)
		u.metrics.SubscriptionClosed(feedKindEnabled, reason)
	}()

	state := make(map[entities.Key]*entities.Token, len(tokens))
	for _, t := range tokens {
		state[t.Key()] = t
	}
	chains := filter.ChainSet()

	view := maskedView(networks, state)
	if !send(ctx, out, entities.ChangeSet{Kind: entities.ChangeInitial, Tokens: view}) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				reason = closeReasonError
				err := sub.Err()
				if err == nil {
					err = domainerrors.ErrStoreClosed
				}
				logger.Warn(ctx, "Token feed terminated", zap.Error(err))
				send(ctx, out, entities.ChangeSet{Kind: entities.ChangeError, Err: err})
				return
			}
			if ev.Seq <= seq || !ev.Touches(chains) {
				continue
			}

			touched := make(map[entities.Key]struct{}, len(ev.Upserted))
			for _, k := range ev.Deleted {
				delete(state, k)
			}
			for _, t := range ev.Upserted {
				k := t.Key()
				if filter.Matches(t) {
					state[k] = t
					touched[k] = struct{}{}
				} else {
					delete(state, k)
				}
			}

			next := maskedView(networks, state)
			cs := diffViews(view, next, touched)
			view = next
			if len(cs.Deletions) == 0 && len(cs.Insertions) == 0 && len(cs.Modifications) == 0 {
				continue
			}
			if !send(ctx, out, cs) {
				return
			}
		}
	}
}

// SubscribeOne streams one token. The first event carries the current value, or a terminal
// ErrNotFound when nothing is stored at the key. Each later commit to the key emits the new
// value; deletion ends the feed with ErrRecordDeleted.
func (u *FeedUsecase) SubscribeOne(ctx context.Context, key entities.Key) (<-chan entities.TokenEvent, error) {
	key, err := canonicalKey(key)
	if err != nil {
		return nil, err
	}

	var (
		sub     *feed.Subscription
		seq     uint64
		current *entities.Token
	)
	err = u.uow.Read(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = u.hub.Subscribe(); err != nil {
			return err
		}
		seq = u.hub.Seq()
		current, err = u.tokenRepo.Get(ctx, key)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		if sub != nil {
			sub.Close()
		}
		return nil, err
	}

	out := make(chan entities.TokenEvent, 1)
	u.metrics.SubscriptionOpened(feedKindToken)
	if current == nil {
		sub.Close()
		out <- entities.TokenEvent{Err: domainerrors.ErrNotFound}
		close(out)
		u.metrics.SubscriptionClosed(feedKindToken, closeReasonNotFound)
		return out, nil
	}

	go u.runOne(ctx, sub, seq, key, current, out)
	return out, nil
}

func (u *FeedUsecase) runOne(
	ctx context.Context,
	sub *feed.Subscription,
	seq uint64,
	key entities.Key,
	current *entities.Token,
	out chan<- entities.TokenEvent,
) {
	reason := closeReasonCancelled
	defer func() {
		sub.Close()
		close(out)
		u.metrics.SubscriptionClosed(feedKindToken, reason)
	}()

	if !send(ctx, out, entities.TokenEvent{Token: current}) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				reason = closeReasonError
				err := sub.Err()
				if err == nil {
					err = domainerrors.ErrStoreClosed
				}
				send(ctx, out, entities.TokenEvent{Err: err})
				return
			}
			if ev.Seq <= seq {
				continue
			}
			for _, k := range ev.Deleted {
				if k == key {
					reason = closeReasonDeleted
					send(ctx, out, entities.TokenEvent{Err: domainerrors.ErrRecordDeleted})
					return
				}
			}
			for _, t := range ev.Upserted {
				if t.Key() == key {
					if !send(ctx, out, entities.TokenEvent{Token: t.Clone()}) {
						return
					}
				}
			}
		}
	}
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func maskedView(networks []entities.Network, state map[entities.Key]*entities.Token) []*entities.Token {
	tokens := make([]*entities.Token, 0, len(state))
	for _, t := range state {
		tokens = append(tokens, t)
	}
	predicates.Sort(tokens)
	masked := predicates.MaskNativeWhenMirrored(networks, tokens)
	view := make([]*entities.Token, len(masked))
	for i, t := range masked {
		view[i] = t.Clone()
	}
	return view
}

// diffViews compares two sorted views. A token present in both is modified when the commit touched it.
func diffViews(prev, next []*entities.Token, touched map[entities.Key]struct{}) entities.ChangeSet {
	cs := entities.ChangeSet{Kind: entities.ChangeUpdate, Tokens: next}

	nextIdx := make(map[entities.Key]struct{}, len(next))
	for _, t := range next {
		nextIdx[t.Key()] = struct{}{}
	}
	prevIdx := make(map[entities.Key]struct{}, len(prev))
	for i, t := range prev {
		k := t.Key()
		prevIdx[k] = struct{}{}
		if _, ok := nextIdx[k]; !ok {
			cs.Deletions = append(cs.Deletions, i)
		}
	}
	for j, t := range next {
		k := t.Key()
		if _, ok := prevIdx[k]; !ok {
			cs.Insertions = append(cs.Insertions, j)
			continue
		}
		if _, ok := touched[k]; ok {
			cs.Modifications = append(cs.Modifications, j)
		}
	}
	return cs
}
