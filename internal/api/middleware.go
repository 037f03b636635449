package api

import (
	"context"
	"strings"
	"time"

	"order-gateway/internal/apperr"
	"order-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	accessCookie  = "access_token_cookie"
	refreshCookie = "refresh_token_cookie"
	principalKey  = "principal"
)

// requestTimeout bounds the request context
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authRequired resolves the access token from the Authorization header or
// the access cookie and stores the caller on the context
func authRequired(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(accessCookie)
		}

		principal, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// currentPrincipal returns the caller set by authRequired
func currentPrincipal(c *gin.Context) *service.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*service.Principal); ok {
			return p
		}
	}
	_ = c.Error(apperr.Unauthorized("no principal"))
	return nil
}
