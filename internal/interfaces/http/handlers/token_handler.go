package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/interfaces/http/response"
	"token-registry.backend/internal/usecases"
)

// TokenHandler handles token endpoints
type TokenHandler struct {
	storeUsecase *usecases.TokenStoreUsecase
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(storeUsecase *usecases.TokenStoreUsecase) *TokenHandler {
	return &TokenHandler{storeUsecase: storeUsecase}
}

// AddCustomTokensRequest adds user tokens
type AddCustomTokensRequest struct {
	Tokens      []entities.ERCToken `json:"tokens" binding:"required"`
	CopyBalance bool                `json:"copyBalance"`
}

// UpsertMetadataRequest refreshes token metadata
type UpsertMetadataRequest struct {
	Tokens []entities.TokenUpdate `json:"tokens" binding:"required"`
}

// KeysRequest carries an ordered list of token keys
type KeysRequest struct {
	Keys []entities.Key `json:"keys"`
}

// ListEnabled lists enabled tokens
// GET /api/v1/tokens?chainIds=1,137
func (h *TokenHandler) ListEnabled(c *gin.Context) {
	chainIDs, err := parseChainIDs(c.Query("chainIds"))
	if err != nil {
		response.Error(c, err)
		return
	}

	tokens, err := h.storeUsecase.ListEnabled(c.Request.Context(), chainIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	if tokens == nil {
		tokens = []*entities.Token{}
	}

	response.Success(c, http.StatusOK, gin.H{"tokens": tokens})
}

// GetToken gets a token by key
// GET /api/v1/tokens/:key
func (h *TokenHandler) GetToken(c *gin.Context) {
	key, err := parseKey(c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.storeUsecase.Get(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	if token == nil {
		response.Error(c, domainerrors.NotFound("token not found"))
		return
	}

	response.Success(c, http.StatusOK, token)
}

// LookupByContract gets the first token with a contract on any network
// GET /api/v1/lookup/:contract
func (h *TokenHandler) LookupByContract(c *gin.Context) {
	token, err := h.storeUsecase.GetByContract(c.Request.Context(), c.Param("contract"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if token == nil {
		response.Error(c, domainerrors.NotFound("token not found"))
		return
	}

	response.Success(c, http.StatusOK, token)
}

// UpdateField applies a single field mutation
// PATCH /api/v1/tokens/:key
func (h *TokenHandler) UpdateField(c *gin.Context) {
	key, err := parseKey(c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}

	var input UpdateFieldRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}
	action, err := input.Action()
	if err != nil {
		response.Error(c, err)
		return
	}

	changed, found, err := h.storeUsecase.UpdateField(c.Request.Context(), key, action)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": changed, "found": found})
}

// AddCustomTokens adds user tokens
// POST /api/v1/tokens/custom
func (h *TokenHandler) AddCustomTokens(c *gin.Context) {
	var input AddCustomTokensRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}

	tokens, err := h.storeUsecase.AddCustom(c.Request.Context(), input.Tokens, input.CopyBalance)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"tokens": tokens})
}

// UpsertMetadata refreshes token metadata without touching balances
// POST /api/v1/tokens/metadata
func (h *TokenHandler) UpsertMetadata(c *gin.Context) {
	var input UpsertMetadataRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}

	tokens, err := h.storeUsecase.UpsertMetadata(c.Request.Context(), input.Tokens)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tokens": tokens})
}

// Reorder assigns display positions
// PUT /api/v1/tokens/order
func (h *TokenHandler) Reorder(c *gin.Context) {
	var input KeysRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}

	if err := h.storeUsecase.Reorder(c.Request.Context(), input.Keys); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteTokens removes tokens outright. Only routed in development.
// POST /api/v1/tokens/delete
func (h *TokenHandler) DeleteTokens(c *gin.Context) {
	var input KeysRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}

	deleted, err := h.storeUsecase.DeleteForTesting(c.Request.Context(), input.Keys)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}
