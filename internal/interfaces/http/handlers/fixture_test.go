package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"token-registry.backend/internal/domain/entities"
	"token-registry.backend/internal/infrastructure/feed"
	"token-registry.backend/internal/infrastructure/metrics"
	"token-registry.backend/internal/infrastructure/models"
	"token-registry.backend/internal/infrastructure/repositories"
	"token-registry.backend/internal/interfaces/http/handlers"
	"token-registry.backend/internal/usecases"
)

const (
	polygonMirror = "0x0000000000000000000000000000000000001010"
	tokenA        = "0x1111111111111111111111111111111111111111"
	tokenB        = "0x2222222222222222222222222222222222222222"
	usdtLower     = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	usdtChecksum  = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

type apiFixture struct {
	db     *gorm.DB
	hub    *feed.Hub
	store  *usecases.TokenStoreUsecase
	router *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	hub := feed.NewHub()
	t.Cleanup(hub.Close)
	collector := metrics.NewCollector()
	networks := entities.NewNetworkCatalog([]entities.Network{
		{ChainID: 1, Name: "Ethereum", Symbol: "ETH", Decimals: 18},
		{ChainID: 137, Name: "Polygon", Symbol: "POL", Decimals: 18, MirrorContract: polygonMirror},
	})

	uow := repositories.NewUnitOfWork(db, hub, collector)
	tokenRepo := repositories.NewTokenRepository(db)
	markerRepo := repositories.NewContractMarkerRepository(db)
	store := usecases.NewTokenStoreUsecase(uow, tokenRepo, markerRepo, networks)
	batch := usecases.NewBatchUsecase(uow, tokenRepo, markerRepo, networks, collector)
	feeds := usecases.NewFeedUsecase(uow, tokenRepo, hub, networks, collector)

	networkHandler := handlers.NewNetworkHandler(store)
	tokenHandler := handlers.NewTokenHandler(store)
	batchHandler := handlers.NewBatchHandler(batch)
	contractHandler := handlers.NewContractHandler(store)
	streamHandler := handlers.NewStreamHandler(feeds, time.Minute)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/networks", networkHandler.ListNetworks)
	v1.POST("/networks/:chainId/native", networkHandler.EnsureNativeAsset)
	v1.GET("/tokens", tokenHandler.ListEnabled)
	v1.GET("/tokens/:key", tokenHandler.GetToken)
	v1.PATCH("/tokens/:key", tokenHandler.UpdateField)
	v1.POST("/tokens/custom", tokenHandler.AddCustomTokens)
	v1.POST("/tokens/metadata", tokenHandler.UpsertMetadata)
	v1.PUT("/tokens/order", tokenHandler.Reorder)
	v1.POST("/tokens/delete", tokenHandler.DeleteTokens)
	v1.GET("/lookup/:contract", tokenHandler.LookupByContract)
	v1.POST("/batch", batchHandler.ApplyBatch)
	v1.GET("/contracts/:kind", contractHandler.ListMarkers)
	v1.POST("/contracts/hidden", contractHandler.HideContracts)
	v1.GET("/streams/tokens", streamHandler.StreamEnabled)
	v1.GET("/streams/tokens/:key", streamHandler.StreamToken)

	return &apiFixture{db: db, hub: hub, store: store, router: r}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func erc20(contract string, chainID int64, symbol string) entities.ERCToken {
	return entities.ERCToken{Contract: contract, ChainID: chainID, Name: symbol, Symbol: symbol, Decimals: 18, Type: entities.TokenTypeERC20}
}

func tokenPath(contract string, chainID int64) string {
	return "/api/v1/tokens/" + entities.Key{Contract: contract, ChainID: chainID}.String()
}
