package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/youruser/pfpapp/internal/apperror"
	"github.com/youruser/pfpapp/internal/pfp"
	"github.com/youruser/pfpapp/internal/render"
)

type Renderer interface {
	Render(ctx context.Context, req pfp.RenderRequest) (*render.Result, error)
}

type Handler struct {
	renderer Renderer
	assets   pfp.Assets
}

func New(r Renderer, assets pfp.Assets) *Handler {
	return &Handler{renderer: r, assets: assets}
}

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// pfpHandler renders the composed profile picture described by the query.
func (h *Handler) pfpHandler(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		userID = c.Query("uid")
	}
	params := pfp.Params{
		UserID:       userID,
		AvatarHash:   c.Query("avatar"),
		DecorationID: c.Query("decor"),
		FallbackURL:  c.Query("def"),
		Size:         c.Query("size"),
		Scale:        c.Query("avatarScale"),
		OffsetY:      c.Query("avatarDy"),
		Round:        c.Query("round"),
	}

	req, err := pfp.Resolve(params, h.assets)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.renderer.Render(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", cacheControl(res.MaxAge))
	c.Data(http.StatusOK, res.ContentType, res.Body)
}

func cacheControl(maxAge time.Duration) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
}

// statusFor maps a render error to its HTTP status and client-facing message.
func statusFor(err error) (int, string) {
	var appErr *apperror.AppError
	msg := "error"
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	switch {
	case errors.Is(err, apperror.ErrMissingAvatar):
		return http.StatusBadRequest, msg
	case errors.Is(err, apperror.ErrAvatarUnavailable):
		return http.StatusBadGateway, msg
	case appErr != nil:
		return http.StatusInternalServerError, msg
	}
	return http.StatusInternalServerError, "error"
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	logger := log.Ctx(c.Request.Context())
	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Str("module", "api").Int("status", status).Err(err).Msg("render failed")
	c.JSON(status, gin.H{"error": msg})
}
