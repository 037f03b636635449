package api

import (
	"net/http"

	"order-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listAddresses(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	addresses, err := h.catalogService.ListAddresses(c.Request.Context(), principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, addresses)
}

func (h *Handler) createAddress(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var req service.AddressRequest
	if !bindJSON(c, &req) {
		return
	}

	address, err := h.catalogService.CreateAddress(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) updateAddress(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req service.AddressUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	address, err := h.catalogService.UpdateAddress(c.Request.Context(), principal.UserID, id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, address)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.catalogService.DeleteAddress(c.Request.Context(), principal.UserID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) listCards(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	cards, err := h.catalogService.ListCards(c.Request.Context(), principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *Handler) createCard(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var req service.CardRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.catalogService.CreateCard(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) updateCard(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req service.CardUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	card, err := h.catalogService.UpdateCard(c.Request.Context(), principal.UserID, id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) deleteCard(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.catalogService.DeleteCard(c.Request.Context(), principal.UserID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// listShops is admin only, like every shop route
func (h *Handler) listShops(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	shops, err := h.catalogService.ListShops(c.Request.Context(), principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, shops)
}

func (h *Handler) getShop(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	shop, err := h.catalogService.GetShop(c.Request.Context(), principal.UserID, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

func (h *Handler) createShop(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var req service.ShopRequest
	if !bindJSON(c, &req) {
		return
	}

	shop, err := h.catalogService.CreateShop(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

func (h *Handler) updateShop(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var req service.ShopUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	shop, err := h.catalogService.UpdateShop(c.Request.Context(), principal.UserID, id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

func (h *Handler) deleteShop(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.catalogService.DeleteShop(c.Request.Context(), principal.UserID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) getProfile(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	user, err := h.catalogService.GetProfile(c.Request.Context(), principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateProfile(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var req service.ProfileUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.catalogService.UpdateProfile(c.Request.Context(), principal.UserID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}
