package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/duybaohuynhtan/CareerAgent/internal/api"
	"github.com/duybaohuynhtan/CareerAgent/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address, overrides server.addr")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}
	if config == nil {
		log.Fatal("config is required")
	}

	level := zap.NewAtomicLevelAt(logger.LevelFor(viper.GetBool("debug")))
	logger, err := logger.NewWithLevel(viper.GetBool("json"), level, &logger.FileOptions{
		Path:       config.Log.File,
		MaxSizeMB:  config.Log.MaxSizeMB,
		MaxBackups: config.Log.MaxBackups,
		MaxAgeDays: config.Log.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting the career-agent", zap.String("version", version))

	// secrets are tagged json:"-" so the dump is safe
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := config.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	watchLogLevel(level, logger)

	handler, err := buildHandler(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY and CUSTOM_SEARCH_API_KEY/GOOGLE_SEARCH_ENGINE_ID (or HH_TOKEN_FILE for the headhunter provider)"),
		)
	}

	srv := &http.Server{
		Addr: config.Server.Addr,
		Handler: api.NewRouter(handler, api.RouterOptions{
			AllowedOrigins: config.Server.AllowedOrigins,
		}),
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down", zap.Duration("timeout", config.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// watchLogLevel follows the debug key of the config file. Other settings need
// a restart.
func watchLogLevel(level zap.AtomicLevel, log *zap.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		next := logger.LevelFor(viper.GetBool("debug"))
		if next == level.Level() {
			return
		}
		level.SetLevel(next)
		log.Info("log level changed", zap.String("file", e.Name), zap.Stringer("level", next))
	})
	viper.WatchConfig()
}
