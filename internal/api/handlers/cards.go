package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

type CardHandler struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

func NewCardHandler(catalog *services.CatalogService, logger *zap.Logger) *CardHandler {
	return &CardHandler{catalog: catalog, logger: logger}
}

// ListSets returns every set, newest release first
func (h *CardHandler) ListSets(c *gin.Context) {
	sets, err := h.catalog.ListSets(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, "list sets", err)
		return
	}
	c.JSON(http.StatusOK, sets)
}

// ListCards returns one page of cards matching the query filters
func (h *CardHandler) ListCards(c *gin.Context) {
	var filters models.CardFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var page models.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.catalog.ListCards(c.Request.Context(), filters, page)
	if err != nil {
		internalError(c, h.logger, "list cards", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *CardHandler) GetCard(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}

	card, err := h.catalog.GetCard(c.Request.Context(), uint(id))
	if err != nil {
		internalError(c, h.logger, "get card", err)
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}

func internalError(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Error("Request failed", zap.String("op", op), zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
