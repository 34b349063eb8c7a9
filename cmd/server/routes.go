package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"token-registry.backend/internal/interfaces/http/handlers"
)

const (
	serviceName    = "token-registry"
	serviceVersion = "0.1.0"
)

type routeDeps struct {
	networkHandler  *handlers.NetworkHandler
	tokenHandler    *handlers.TokenHandler
	batchHandler    *handlers.BatchHandler
	contractHandler *handlers.ContractHandler
	streamHandler   *handlers.StreamHandler
	readAuth        gin.HandlerFunc
	writeAuth       gin.HandlerFunc
	idempotency     gin.HandlerFunc
	exposeDebug     bool
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
			"version": serviceVersion,
		})
	})
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		read := v1.Group("")
		read.Use(d.readAuth)
		{
			read.GET("/networks", d.networkHandler.ListNetworks)
			read.GET("/tokens", d.tokenHandler.ListEnabled)
			read.GET("/tokens/:key", d.tokenHandler.GetToken)
			read.GET("/lookup/:contract", d.tokenHandler.LookupByContract)
			read.GET("/contracts/:kind", d.contractHandler.ListMarkers)
			read.GET("/streams/tokens", d.streamHandler.StreamEnabled)
			read.GET("/streams/tokens/:key", d.streamHandler.StreamToken)
		}

		write := v1.Group("")
		write.Use(d.writeAuth, d.idempotency)
		{
			write.POST("/batch", d.batchHandler.ApplyBatch)
			write.POST("/networks/:chainId/native", d.networkHandler.EnsureNativeAsset)
			write.POST("/tokens/custom", d.tokenHandler.AddCustomTokens)
			write.POST("/tokens/metadata", d.tokenHandler.UpsertMetadata)
			write.PUT("/tokens/order", d.tokenHandler.Reorder)
			write.PATCH("/tokens/:key", d.tokenHandler.UpdateField)
			write.POST("/contracts/hidden", d.contractHandler.HideContracts)

			if d.exposeDebug {
				write.POST("/tokens/delete", d.tokenHandler.DeleteTokens)
			}
		}
	}
}
