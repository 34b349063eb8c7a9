package usecases_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"token-registry.backend/internal/domain/entities"
	"token-registry.backend/internal/infrastructure/feed"
	"token-registry.backend/internal/infrastructure/metrics"
	"token-registry.backend/internal/infrastructure/models"
	"token-registry.backend/internal/infrastructure/repositories"
	"token-registry.backend/internal/usecases"
)

const (
	polygonMirror = "0x0000000000000000000000000000000000001010"
	tokenA        = "0x1111111111111111111111111111111111111111"
	tokenB        = "0x2222222222222222222222222222222222222222"
	tokenC        = "0x3333333333333333333333333333333333333333"
	usdtLower     = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	usdtChecksum  = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

var testNetworks = []entities.Network{
	{ChainID: 1, Name: "Ethereum", Symbol: "ETH", Decimals: 18},
	{ChainID: 137, Name: "Polygon", Symbol: "POL", Decimals: 18, MirrorContract: polygonMirror},
}

type storeFixture struct {
	db       *gorm.DB
	hub      *feed.Hub
	metrics  *metrics.Collector
	networks *entities.NetworkCatalog
	store    *usecases.TokenStoreUsecase
	batch    *usecases.BatchUsecase
	feeds    *usecases.FeedUsecase
}

func newFixture(t *testing.T) *storeFixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(models.All()...))

	hub := feed.NewHub()
	t.Cleanup(hub.Close)
	collector := metrics.NewCollector()
	networks := entities.NewNetworkCatalog(testNetworks)

	uow := repositories.NewUnitOfWork(db, hub, collector)
	tokenRepo := repositories.NewTokenRepository(db)
	markerRepo := repositories.NewContractMarkerRepository(db)

	return &storeFixture{
		db:       db,
		hub:      hub,
		metrics:  collector,
		networks: networks,
		store:    usecases.NewTokenStoreUsecase(uow, tokenRepo, markerRepo, networks),
		batch:    usecases.NewBatchUsecase(uow, tokenRepo, markerRepo, networks, collector),
		feeds:    usecases.NewFeedUsecase(uow, tokenRepo, hub, networks, collector),
	}
}

func key(contract string, chainID int64) entities.Key {
	return entities.Key{Contract: contract, ChainID: chainID}
}

func fungible(contract string, chainID int64, symbol string) entities.ERCToken {
	return entities.ERCToken{Contract: contract, ChainID: chainID, Name: symbol + " Token", Symbol: symbol, Decimals: 18, Type: entities.TokenTypeERC20}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func requireClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}

func contracts(tokens []*entities.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Contract)
	}
	return out
}
