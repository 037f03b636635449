package api

import (
	"net/http"

	"order-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation requests
func (h *Handler) createOrder(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	orderID, err := h.orderService.CreateOrder(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order_id": orderID})
}

// getOrder handles get order requests
func (h *Handler) getOrder(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	orderID, ok := idParam(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), principal.UserID, orderID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// updateOrder handles client changes to a pending order
func (h *Handler) updateOrder(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	orderID, ok := idParam(c)
	if !ok {
		return
	}

	var req service.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.orderService.UpdateOrder(c.Request.Context(), principal.UserID, orderID, &req); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// listOrders handles paginated order history
func (h *Handler) listOrders(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var q service.ListOrdersQuery
	if !bindQuery(c, &q) {
		return
	}

	page, err := h.orderService.ListOrders(c.Request.Context(), principal.UserID, &q)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}
