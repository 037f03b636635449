package api

import (
	"errors"
	"net/http"
	"time"

	"order-gateway/internal/apperr"
	"order-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

type deactivateSessionRequest struct {
	RefreshID string `json:"refresh_id" binding:"required"`
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Agent:     c.GetHeader("X-Agent"),
		Platform:  c.GetHeader("X-Platform"),
	}
}

// setAuthCookies stores the issued pair as HttpOnly cookies
func (h *Handler) setAuthCookies(c *gin.Context, result *service.LoginResult) {
	now := time.Now()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, result.Tokens.AccessToken,
		int(result.Tokens.AccessExpiresAt.Sub(now).Seconds()), "/", "", h.opts.CookieSecure, true)
	c.SetCookie(refreshCookie, result.Tokens.RefreshToken,
		int(result.Tokens.RefreshExpiresAt.Sub(now).Seconds()), "/", "", h.opts.CookieSecure, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	c.SetCookie(accessCookie, "", -1, "/", "", h.opts.CookieSecure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", h.opts.CookieSecure, true)
}

// sendCode handles SMS code requests
func (h *Handler) sendCode(c *gin.Context) {
	var req service.SendCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.SendCode(c.Request.Context(), req.Phone); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// login exchanges an SMS code for a token pair
func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, result)

	body := gin.H{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"agent":         result.Agent,
		"platform":      result.Platform,
	}
	if h.opts.Debug {
		body["user_id"] = result.UserID
	}
	c.JSON(http.StatusOK, body)
}

// refresh rotates the token pair. A Bearer token that is rejected (an
// access token sent alongside the refresh cookie) falls back to the cookie.
func (h *Handler) refresh(c *gin.Context) {
	bearer := bearerToken(c)
	cookie, _ := c.Cookie(refreshCookie)

	token := bearer
	if token == "" {
		token = cookie
	}

	result, err := h.authService.Refresh(c.Request.Context(), token, clientInfo(c))
	if err != nil && bearer != "" && cookie != "" && cookie != bearer && errors.Is(err, apperr.ErrAuthRequired) {
		result, err = h.authService.Refresh(c.Request.Context(), cookie, clientInfo(c))
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, result)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
	})
}

// logout revokes the caller's tokens
func (h *Handler) logout(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), principal); err != nil {
		_ = c.Error(err)
		return
	}

	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{})
}

// listSessions handles active session listing
func (h *Handler) listSessions(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	sessions, err := h.authService.ActiveSessions(c.Request.Context(), principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// deactivateSession revokes one of the caller's sessions
func (h *Handler) deactivateSession(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		return
	}

	var req deactivateSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.DeactivateSession(c.Request.Context(), principal.UserID, req.RefreshID); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
