package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// payloads are short QR strings, anything bigger is not a card
const maxBodyBytes = 64 << 10

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	addr := ":" + getEnv("SCANNER_PORT", getEnv("PORT", "8081"))
	handler := NewHandler()
	log.Info().Str("addr", addr).Str("scanner_id", handler.scannerID).Msg("starting identity scanner")

	srv := &http.Server{
		Addr:              addr,
		Handler:           http.MaxBytesHandler(SetupRouter(handler), maxBodyBytes),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		log.Fatal().Err(err).Msg("scanner listener failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("scanner shutdown timed out")
		return
	}
	log.Info().
		Int64("scanned", handler.scanned.Load()).
		Int64("rejected", handler.rejected.Load()).
		Msg("scanner stopped")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
