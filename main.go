package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"educhat/backend/config"
	"educhat/backend/database"
	"educhat/backend/handlers"
	"educhat/backend/mailer"
	"educhat/backend/middleware"
	"educhat/backend/services"
	"educhat/backend/websocket"

	"github.com/rs/cors"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if cfg.UsesDefaultSecret() && cfg.Env != envLocal {
		log.Warn("JWT_SECRET is not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := database.ConnectMongoDB(ctx, cfg.MongoDBURI)
	if err != nil {
		return err
	}
	defer database.DisconnectMongoDB(mongoClient, log)
	log.Info("connected to MongoDB", slog.String("db", cfg.DBName))

	store, err := database.NewStore(mongoClient.Database(cfg.DBName))
	if err != nil {
		return err
	}
	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if cfg.SeedData {
		if err := store.Seed(ctx, log); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var mail services.Mailer = mailer.NewLogMailer(log)
	if cfg.SMTP.Enabled() {
		mail = mailer.NewSMTPMailer(ctx, cfg.SMTP, log)
	}

	hub := websocket.NewHub(websocket.NewRooms(), log)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	users := services.NewUserService(store, database.NewOTPStore(redisClient), mail, services.UserServiceConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		OTPTTL:    cfg.OTPTTL,
	}, log)
	chats := services.NewChatService(store, store, store, log)
	messages := services.NewMessageService(store, store, store, store, hub, log)
	auth := middleware.NewAuthenticator(cfg.JWTSecret, store, log)

	router := handlers.NewRouter(handlers.Routes{
		Users:    handlers.NewUserHandler(users, cfg.CookieSecure, log),
		Chats:    handlers.NewChatHandler(chats, log),
		Messages: handlers.NewMessageHandler(messages, cfg.MaxUploadBytes, log),
		Auth:     auth,
		Realtime: websocket.NewHandler(hub, auth, chats, messages, cfg.AllowedOrigins, log),
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	serverAddr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           c.Handler(middleware.RequestLogger(log)(router)),
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("addr", serverAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen on %s: %w", serverAddr, err)
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	stopHub()

	log.Info("server exited gracefully")
	return nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	slog.SetDefault(log)
	return log
}
