package httpserver

import (
	"errors"
	"log"
	"slices"
	"time"

	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps holds the collaborators the handlers need.
type Deps struct {
	Carts *cartsvc.Service
	Slots session.Slots
	// AdminToken guards the /admin routes. They are not mounted when empty.
	AdminToken     string
	AllowedOrigins []string
}

// buildRouter wires routes for the API. Cart routes read the caller from
// X-Session-Key, X-User-ID and X-Visitor-ID; clients must keep X-Visitor-ID
// stable across login for their guest cart to be merged.
func buildRouter(logger *log.Logger, db Pinger, deps Deps) (*gin.Engine, error) {
	if deps.Carts == nil {
		return nil, errors.New("httpserver: cart service required")
	}
	if deps.Slots == nil {
		return nil, errors.New("httpserver: session slots required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &cartHandlers{svc: deps.Carts, logger: logger}

	carts := router.Group("/carts/:instance", identityMiddleware(logger, deps.Slots))
	carts.GET("", h.getCurrent)
	carts.POST("/items", h.addItem)
	carts.PATCH("/items/:lineId", h.updateItem)
	carts.DELETE("/items/:lineId", h.removeItem)
	carts.DELETE("/items", h.clear)
	carts.POST("/checkout", h.checkout)

	if deps.AdminToken != "" {
		admin := router.Group("/admin/carts", adminMiddleware(deps.AdminToken))
		admin.GET("/:id", h.adminGet)
		admin.DELETE("/:id", h.adminDelete)
		admin.POST("/:id/move", h.adminMove)
		admin.POST("/:id/complete", h.adminComplete)
		admin.POST("/:id/expire", h.adminExpire)
		admin.POST("/:id/refresh", h.adminRefresh)
	} else {
		logger.Printf("httpserver: ADMIN_TOKEN not set, admin routes disabled")
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", headerSessionKey, headerVisitorID, headerUserID},
		ExposeHeaders: []string{"Retry-After", headerSessionKey},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
