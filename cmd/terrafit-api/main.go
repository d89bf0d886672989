package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TerraFitLab/terrafit/backend/internal/activity"
	"github.com/TerraFitLab/terrafit/backend/internal/auth"
	"github.com/TerraFitLab/terrafit/backend/internal/community"
	"github.com/TerraFitLab/terrafit/backend/internal/config"
	"github.com/TerraFitLab/terrafit/backend/internal/database"
	"github.com/TerraFitLab/terrafit/backend/internal/logging"
	"github.com/TerraFitLab/terrafit/backend/internal/notify"
	"github.com/TerraFitLab/terrafit/backend/internal/scoring"
	"github.com/TerraFitLab/terrafit/backend/internal/server"
	"github.com/TerraFitLab/terrafit/backend/internal/stats"
)

const (
	serviceTokenIssuer   = "terrafit-engine"
	serviceTokenAudience = "terrafit-api"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "terrafit-api",
		Short: "TerraFit group leaderboard and statistics engine",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("trigger-secret", "", "Shared secret for the periodic trigger (overrides env)")
	cmd.PersistentFlags().String("signing-secret", "", "Service token signing secret (overrides env)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Service token TTL in minutes")
	cmd.PersistentFlags().Int("stats-cache-ttl-minutes", defaults.GetInt("stats.cache_ttl_minutes"), "Group stats cache TTL in minutes")
	cmd.PersistentFlags().Int("group-timeout-seconds", defaults.GetInt("engine.group_timeout_seconds"), "Per-group processing timeout in seconds")
	cmd.PersistentFlags().Int("max-concurrent-groups", defaults.GetInt("engine.max_concurrent_groups"), "Maximum groups processed in parallel")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "trigger.shared_secret", "trigger-secret")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "stats.cache_ttl_minutes", "stats-cache-ttl-minutes")
	bindFlag(cmd, "engine.group_timeout_seconds", "group-timeout-seconds")
	bindFlag(cmd, "engine.max_concurrent_groups", "max-concurrent-groups")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// newTokenCommand mints a service token for a read-API consumer.
func newTokenCommand() *cobra.Command {
	var subject string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a service token for a read-API consumer",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			tokens := auth.NewServiceTokens(auth.ServiceTokensConfig{
				SigningSecret: []byte(appConfig.SigningSecret),
				Issuer:        serviceTokenIssuer,
				Audience:      serviceTokenAudience,
				TokenTTL:      appConfig.TokenTTL,
			})
			signed, expiresIn, err := tokens.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires_in=%d\n", signed, expiresIn)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "", "Token subject (consumer identity)")
	_ = tokenCmd.MarkFlagRequired("subject")
	return tokenCmd
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	communityService, err := community.NewService(community.ServiceConfig{Database: db})
	if err != nil {
		return err
	}
	collector, err := activity.NewCollector(activity.CollectorConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	snapshotStore, err := scoring.NewSnapshotStore(scoring.SnapshotStoreConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	notifier, err := notify.NewNotifier(notify.NotifierConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	defer notifier.Close()

	engine, err := scoring.NewEngine(scoring.EngineConfig{
		Community:           communityService,
		Collector:           collector,
		Store:               snapshotStore,
		Notifier:            notifier,
		Logger:              logger,
		GroupTimeout:        appConfig.GroupTimeout,
		MaxConcurrentGroups: appConfig.MaxConcurrentGroups,
	})
	if err != nil {
		return err
	}

	statsService, err := stats.NewService(stats.ServiceConfig{
		Database:  db,
		Community: communityService,
		Logger:    logger,
		CacheTTL:  appConfig.StatsCacheTTL,
	})
	if err != nil {
		return err
	}

	triggerGuard, err := auth.NewSharedSecretGuard(appConfig.TriggerSecret)
	if err != nil {
		return err
	}
	serviceTokens := auth.NewServiceTokens(auth.ServiceTokensConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        serviceTokenIssuer,
		Audience:      serviceTokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TriggerGuard: triggerGuard,
		Tokens:       serviceTokens,
		Engine:       engine,
		Leaderboards: snapshotStore,
		Stats:        statsService,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
