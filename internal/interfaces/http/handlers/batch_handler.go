package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
	"token-registry.backend/internal/interfaces/http/response"
	"token-registry.backend/internal/usecases"
)

// BatchHandler handles batch writes from balance producers
type BatchHandler struct {
	batchUsecase *usecases.BatchUsecase
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batchUsecase *usecases.BatchUsecase) *BatchHandler {
	return &BatchHandler{batchUsecase: batchUsecase}
}

// ApplyBatch applies an ordered list of operations in one transaction
// POST /api/v1/batch
func (h *BatchHandler) ApplyBatch(c *gin.Context) {
	var input BatchRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, invalid(err.Error()))
		return
	}

	ops := make([]entities.BatchOperation, 0, len(input.Operations))
	for i, req := range input.Operations {
		op, err := req.Operation()
		if err != nil {
			response.Error(c, invalid(fmt.Sprintf("operation %d: %v", i, err)))
			return
		}
		ops = append(ops, op)
	}

	result, err := h.batchUsecase.ApplyBatch(c.Request.Context(), ops)
	if err != nil {
		if errors.Is(err, usecases.ErrBatchRejected) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    domainerrors.CodeInvalidInput,
				"message": err.Error(),
				"result":  result,
			})
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}
