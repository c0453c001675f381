package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/youruser/pfpapp/internal/api"
	"github.com/youruser/pfpapp/internal/config"
	imagepkg "github.com/youruser/pfpapp/internal/image"
	"github.com/youruser/pfpapp/internal/pfp"
	"github.com/youruser/pfpapp/internal/render"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.DefaultContextLogger = &log.Logger

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	fetcher := imagepkg.NewHTTPFetcher(cfg.FetchTimeout, cfg.UserAgent, cfg.MaxAssetBytes)
	renderer := render.NewRenderer(fetcher, cfg.DefaultFrameDelay, cfg.CacheMaxAge)
	h := api.New(renderer, pfp.Assets{
		CDNBase:               cfg.CDNBase,
		DefaultAvatarURL:      cfg.DefaultAvatarURL,
		DecorationPassthrough: cfg.DecorationPassthrough,
	})

	r := api.SetupRouter(cfg.Mode, h)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("pfp server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// setupLogger uses a human-friendly console writer in debug mode and JSON
// otherwise.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "debug" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
