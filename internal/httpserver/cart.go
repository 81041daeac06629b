package httpserver

import (
	"context"
	"log"
	"net/http"
	"strings"

	"cart-engine/internal/domain"
	cartsvc "cart-engine/internal/service/cart"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type addItemRequest struct {
	ProductID  string            `json:"productId" binding:"required"`
	Attributes domain.Attributes `json:"attributes"`
	Quantity   int               `json:"quantity" binding:"required"`
	UnitPrice  decimal.Decimal   `json:"unitPrice"`
}

type updateItemRequest struct {
	Quantity  *int             `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
}

type moveRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

type cartResponse struct {
	domain.Cart
	IsEmpty bool              `json:"isEmpty"`
	Items   []domain.LineItem `json:"items"`
}

type cartHandlers struct {
	svc    *cartsvc.Service
	logger *log.Logger
}

func (h *cartHandlers) current(c *gin.Context) (*cartsvc.Cart, bool) {
	cart, err := h.svc.Current(c.Request.Context(), scopeFrom(c), c.Param("instance"))
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	return cart, true
}

func (h *cartHandlers) render(c *gin.Context, status int, cart *cartsvc.Cart) {
	items, err := cart.Items(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	snap := cart.Snapshot()
	c.JSON(status, cartResponse{Cart: snap, IsEmpty: snap.IsEmpty(), Items: items})
}

func (h *cartHandlers) getCurrent(c *gin.Context) {
	cart, ok := h.current(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, cart)
}

func (h *cartHandlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	cart, ok := h.current(c)
	if !ok {
		return
	}
	if _, err := cart.AddItem(c.Request.Context(), req.ProductID, req.Attributes, req.Quantity, req.UnitPrice); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.render(c, http.StatusCreated, cart)
}

func (h *cartHandlers) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if req.Quantity == nil && req.UnitPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity or unitPrice required"})
		return
	}
	cart, ok := h.current(c)
	if !ok {
		return
	}
	line, err := cart.UpdateItem(c.Request.Context(), cartsvc.ByID(c.Param("lineId")), cartsvc.LineValues{
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if line == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "line item not found"})
		return
	}
	h.render(c, http.StatusOK, cart)
}

func (h *cartHandlers) removeItem(c *gin.Context) {
	cart, ok := h.current(c)
	if !ok {
		return
	}
	removed, err := cart.RemoveItem(c.Request.Context(), cartsvc.ByID(c.Param("lineId")))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "line item not found"})
		return
	}
	h.render(c, http.StatusOK, cart)
}

func (h *cartHandlers) clear(c *gin.Context) {
	cart, ok := h.current(c)
	if !ok {
		return
	}
	if err := cart.Clear(c.Request.Context()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.render(c, http.StatusOK, cart)
}

func (h *cartHandlers) checkout(c *gin.Context) {
	cart, ok := h.current(c)
	if !ok {
		return
	}
	if err := cart.Checkout(c.Request.Context()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.render(c, http.StatusOK, cart)
}

func (h *cartHandlers) byID(c *gin.Context) (*cartsvc.Cart, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart id"})
		return nil, false
	}
	cart, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	return cart, true
}

func (h *cartHandlers) adminGet(c *gin.Context) {
	cart, ok := h.byID(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, cart)
}

func (h *cartHandlers) adminDelete(c *gin.Context) {
	cart, ok := h.byID(c)
	if !ok {
		return
	}
	if err := cart.Delete(c.Request.Context()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *cartHandlers) adminMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if _, err := uuid.Parse(req.TargetID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target cart id"})
		return
	}
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart id"})
		return
	}
	moved, err := h.svc.MoveItems(c.Request.Context(), c.Param("id"), req.TargetID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

func (h *cartHandlers) adminComplete(c *gin.Context) {
	h.adminApply(c, (*cartsvc.Cart).Complete)
}

func (h *cartHandlers) adminExpire(c *gin.Context) {
	h.adminApply(c, (*cartsvc.Cart).Expire)
}

func (h *cartHandlers) adminRefresh(c *gin.Context) {
	h.adminApply(c, (*cartsvc.Cart).Refresh)
}

func (h *cartHandlers) adminApply(c *gin.Context, op func(*cartsvc.Cart, context.Context) error) {
	cart, ok := h.byID(c)
	if !ok {
		return
	}
	if err := op(cart, c.Request.Context()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.render(c, http.StatusOK, cart)
}
