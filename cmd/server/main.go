package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-relay/internal/api/routes"
	"chat-relay/internal/config"
	"chat-relay/internal/database"
	"chat-relay/internal/gateway"
	"chat-relay/internal/room"
	"chat-relay/internal/websocket"
	"chat-relay/pkg/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "chat-relay",
	Short: "Relay chat sessions between the messaging gateway and websocket clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnvFile(envFile)

		cfg, err := config.LoadConfig(viper.GetViper())
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		logger.Setup(cfg.Log.Level, os.Stdout)

		return run(cmd.Context(), cfg)
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("port", "", "HTTP listen port")
	flags.String("host", "", "HTTP listen host")
	flags.String("gateway-url", "", "base URL of the messaging gateway")
	flags.String("redis-url", "", "Redis URL for the cross-instance relay; empty disables it")
	flags.String("log-level", "", "debug, info, warn or error")

	viper.BindPFlag(config.KeyPort, flags.Lookup("port"))
	viper.BindPFlag(config.KeyHost, flags.Lookup("host"))
	viper.BindPFlag(config.KeyGatewayBaseURL, flags.Lookup("gateway-url"))
	viper.BindPFlag(config.KeyRedisURL, flags.Lookup("redis-url"))
	viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting chat relay", "addr", cfg.Server.Addr(), "gateway", cfg.Gateway.BaseURL)

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	hub := websocket.NewHub()
	mux := websocket.NewMultiplexer(hub, room.NewRegistry(), gw)

	opts := routes.Options{
		FrontendURL:         cfg.Server.FrontendURL,
		WebhookMessageEvent: cfg.Gateway.MessageEvent,
	}

	var relay *websocket.RedisRelay
	if cfg.Redis.Enabled() {
		redisClient, err := database.NewRedisConnection(cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		relay = websocket.NewRedisRelay(redisClient.GetClient(), hub)
		mux.SetRelay(relay)

		opts.Limiter = redisClient
		opts.Redis = redisClient
		opts.WSRateLimit = cfg.Redis.WSRateLimit
		opts.WebhookRateLimit = cfg.Redis.WebhookRateLimit
	} else {
		slog.Info("REDIS_URL not set, running single instance")
	}

	router := routes.NewRouter(mux, gw, opts)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	if relay != nil {
		eg.Go(func() error { return relay.Run(egCtx) })
	}

	eg.Go(func() error {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("Server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
		if err := mux.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Gateway actions still running at shutdown", "error", err)
		}

		slog.Info("Server stopped")
		return nil
	})

	return eg.Wait()
}
