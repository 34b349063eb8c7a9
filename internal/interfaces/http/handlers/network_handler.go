package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"token-registry.backend/internal/interfaces/http/response"
	"token-registry.backend/internal/usecases"
)

// NetworkHandler handles network catalog endpoints
type NetworkHandler struct {
	storeUsecase *usecases.TokenStoreUsecase
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(storeUsecase *usecases.TokenStoreUsecase) *NetworkHandler {
	return &NetworkHandler{storeUsecase: storeUsecase}
}

// ListNetworks lists the configured networks
// GET /api/v1/networks
func (h *NetworkHandler) ListNetworks(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"networks": h.storeUsecase.Networks()})
}

// EnsureNativeAsset writes the native currency record of a network when it holds no tokens
// POST /api/v1/networks/:chainId/native
func (h *NetworkHandler) EnsureNativeAsset(c *gin.Context) {
	chainID, err := parseChainID(c.Param("chainId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.storeUsecase.EnsureNativeAsset(c.Request.Context(), chainID)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"created": created})
}
