package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/auth"
	"github.com/example/rekognizer/internal/config"
	"github.com/example/rekognizer/internal/grpcclient"
	"github.com/example/rekognizer/internal/handlers"
	"github.com/example/rekognizer/internal/usecase"
)

// EnrollScope is the token scope required by the enrollment routes.
const EnrollScope = "enroll"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	repo, closeDB, err := openRepository(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	redisClient, err := openRedis(startCtx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	users, conn, err := grpcclient.DialUserDirectory(startCtx, cfg.Users.Addr, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	dispatcher := usecase.NewRedisDispatcher(redisClient, cfg.Redis.EventChannel, logger)
	defer dispatcher.Wait()

	pipeline, embedder, matcher := newFaceStack(cfg, logger)
	svc := handlers.Services{
		Verifier:   usecase.NewVerificationUseCase(pipeline, embedder, matcher, logger),
		Identifier: usecase.NewIdentificationUseCase(pipeline, embedder, matcher, repo, users, dispatcher, logger),
		Enroller:   usecase.NewEnrollmentUseCase(pipeline, embedder, repo, logger),
	}

	router := newRouter(cfg, svc, logger)
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTP.Addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("rekognizer listening", zap.String("addr", listener.Addr().String()))
	return runServer(ctx, server, listener, cfg.HTTP.ShutdownTimeout, logger)
}

func newRouter(cfg *config.Config, svc handlers.Services, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(logger), cors.New(corsConfig(cfg.HTTP.AllowedOrigins)))

	authMiddleware := auth.JWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience, EnrollScope)
	handlers.RegisterRoutes(router, svc, authMiddleware)
	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", handlers.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	return c
}

// runServer serves on listener until ctx is done, then stops accepting connections and
// waits up to shutdownTimeout for in-flight requests.
func runServer(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration, logger *zap.Logger) error {
	served := make(chan error, 1)
	go func() {
		served <- server.Serve(listener)
	}()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-served; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
