package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/models"
	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/services"
)

type CollectionHandler struct {
	collection *services.CollectionService
	logger     *zap.Logger
}

func NewCollectionHandler(collection *services.CollectionService, logger *zap.Logger) *CollectionHandler {
	return &CollectionHandler{collection: collection, logger: logger}
}

func (h *CollectionHandler) GetCollection(c *gin.Context) {
	entries, err := h.collection.List(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, "list collection", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *CollectionHandler) GetCollectionItem(c *gin.Context) {
	id, ok := collectionID(c)
	if !ok {
		return
	}

	entry, err := h.collection.Get(c.Request.Context(), id)
	if err != nil {
		internalError(c, h.logger, "get collection item", err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *CollectionHandler) AddToCollection(c *gin.Context) {
	var req models.AddToCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.collection.Add(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "add to collection", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *CollectionHandler) UpdateCollectionItem(c *gin.Context) {
	id, ok := collectionID(c)
	if !ok {
		return
	}

	var req models.UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.collection.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, "update collection item", err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CollectionHandler) DeleteCollectionItem(c *gin.Context) {
	id, ok := collectionID(c)
	if !ok {
		return
	}

	removed, err := h.collection.Remove(c.Request.Context(), id)
	if err != nil {
		internalError(c, h.logger, "delete collection item", err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// GetCompletion reports per-set ownership
func (h *CollectionHandler) GetCompletion(c *gin.Context) {
	summary, err := h.collection.Completion(c.Request.Context())
	if err != nil {
		internalError(c, h.logger, "collection completion", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *CollectionHandler) writeError(c *gin.Context, op string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, services.ErrNoUpdateFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case database.KindOf(err) == database.ConflictUnique:
		c.JSON(http.StatusConflict, gin.H{"error": "this card, variant and condition is already in the collection"})
	case database.KindOf(err) == database.ConflictForeignKey:
		c.JSON(http.StatusBadRequest, gin.H{"error": "card not found"})
	default:
		internalError(c, h.logger, op, err)
	}
}

func collectionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
