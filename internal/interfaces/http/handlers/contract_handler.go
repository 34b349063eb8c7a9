package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"token-registry.backend/internal/domain/entities"
	"token-registry.backend/internal/interfaces/http/response"
	"token-registry.backend/internal/usecases"
)

// ContractHandler handles removed, delegate and hidden contract lists
type ContractHandler struct {
	storeUsecase *usecases.TokenStoreUsecase
}

// NewContractHandler creates a new contract handler
func NewContractHandler(storeUsecase *usecases.TokenStoreUsecase) *ContractHandler {
	return &ContractHandler{storeUsecase: storeUsecase}
}

// HideContractsRequest records hidden contracts
type HideContractsRequest struct {
	Contracts []entities.ContractRef `json:"contracts" binding:"required"`
}

// ListMarkers lists the contracts of one marker kind on a network
// GET /api/v1/contracts/:kind?chainId=1
func (h *ContractHandler) ListMarkers(c *gin.Context) {
	var list func(ctx context.Context, chainID int64) ([]entities.ContractRef, error)
	switch entities.MarkerKind(c.Param("kind")) {
	case entities.MarkerRemoved:
		list = h.storeUsecase.ListRemoved
	case entities.MarkerDelegate:
		list = h.storeUsecase.ListDelegates
	case entities.MarkerHidden:
		list = h.storeUsecase.ListHidden
	default:
		response.Error(c, invalid("unknown contract list "+c.Param("kind")))
		return
	}

	chainID, err := parseChainID(c.Query("chainId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	refs, err := list(c.Request.Context(), chainID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if refs == nil {
		refs = []entities.ContractRef{}
	}

	response.Success(c, http.StatusOK, gin.H{"contracts": refs})
}

// HideContracts records contracts the user hid
// POST /api/v1/contracts/hidden
func (h *ContractHandler) HideContracts(c *gin.Context) {
	var input HideContractsRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}

	if err := h.storeUsecase.AddHiddenContracts(c.Request.Context(), input.Contracts); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
