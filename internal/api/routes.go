package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.GET("/pfp", h.pfpHandler)
		api.GET("/pfp.png", h.pfpHandler)
	}
}

// SetupRouter builds the engine with recovery and request logging.
func SetupRouter(mode string, h *Handler) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	RegisterRoutes(r, h)

	log.Info().Str("module", "api").Str("mode", mode).Msg("router setup")
	return r
}
