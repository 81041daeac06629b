package httpserver

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"github.com/gin-gonic/gin"
)

const (
	headerSessionKey = "X-Session-Key"
	headerVisitorID  = "X-Visitor-ID"
	headerUserID     = "X-User-ID"
	headerAdminToken = "X-Admin-Token"

	scopeCtxKey = "cartScope"
)

// identityMiddleware builds the caller identity from the request headers and
// opens one cart scope per request. Authentication happens upstream; the
// user id header is trusted as is. Guests without a session key get a new
// one, echoed in the response header.
//
// The guest cart is only merged at login when the client sends the same
// X-Visitor-ID before and after authenticating. Authenticated requests
// without it are logged, since any guest cart they had is left behind.
func identityMiddleware(logger *log.Logger, slots session.Slots) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionKey := strings.TrimSpace(c.GetHeader(headerSessionKey))
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		visitorID := strings.TrimSpace(c.GetHeader(headerVisitorID))
		if userID != "" && visitorID == "" {
			logger.Printf("httpserver: user=%s without %s, guest cart will not be merged", userID, headerVisitorID)
		}
		if sessionKey == "" && userID == "" {
			key, err := session.NewSessionKey()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			sessionKey = key
		}
		if sessionKey != "" {
			c.Header(headerSessionKey, sessionKey)
		}
		visitor := session.NewVisitor(slots, visitorID, sessionKey, userID)
		c.Set(scopeCtxKey, cartsvc.NewScope(visitor))
		c.Next()
	}
}

func scopeFrom(c *gin.Context) *cartsvc.Scope {
	return c.MustGet(scopeCtxKey).(*cartsvc.Scope)
}

func adminMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(headerAdminToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}
