package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/giftledger/internal/daemon"
	"github.com/MarkoPoloResearchLab/giftledger/internal/httpapi"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagConfig         = "config"
	flagDatabaseURL    = "database-url"
	flagStoreBackend   = "store-backend"
	flagGRPCListenAddr = "grpc-listen-addr"
	flagHTTPListenAddr = "http-listen-addr"
	flagAllowedOrigins = "allowed-origins"
	flagRequestTimeout = "request-timeout"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagJWTCookieName  = "jwt-cookie-name"
	flagStartingGrant  = "starting-grant"
	flagTokenPrice     = "token-price"
	flagCurrency       = "currency"
	flagHistoryLimit   = "wallet-history-limit"
	flagLogLevel       = "log-level"
	flagLogDevelopment = "log-development"
	flagLogFile        = "log-file"
	flagLogMaxSizeMB   = "log-max-size-mb"
	flagLogMaxBackups  = "log-max-backups"
	flagLogMaxAgeDays  = "log-max-age-days"
	flagNATSURL        = "nats-url"
	flagRedisAddr      = "redis-addr"
	flagRedisPassword  = "redis-password"
	flagRedisDB        = "redis-db"
	flagKafkaBrokers   = "kafka-brokers"
	flagKafkaTopic     = "kafka-topic"
	flagLogEvents      = "log-events"
	flagMetrics        = "metrics"
	configKeyCatalog   = "catalog"
	envPrefix          = "GIFTLEDGER"
)

var boundFlags = []string{
	flagDatabaseURL, flagStoreBackend, flagGRPCListenAddr, flagHTTPListenAddr, flagAllowedOrigins,
	flagRequestTimeout, flagJWTSigningKey, flagJWTIssuer, flagJWTCookieName, flagStartingGrant,
	flagTokenPrice, flagCurrency, flagHistoryLimit, flagLogLevel, flagLogDevelopment, flagLogFile,
	flagLogMaxSizeMB, flagLogMaxBackups, flagLogMaxAgeDays, flagNATSURL, flagRedisAddr,
	flagRedisPassword, flagRedisDB, flagKafkaBrokers, flagKafkaTopic, flagLogEvents, flagMetrics,
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "giftledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &daemon.Config{}
	cmd := &cobra.Command{
		Use:           "giftledgerd",
		Short:         "Gift and token ledger for live-stream rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagConfig, "", "optional config file (yaml, toml or json)")
	flags.String(flagDatabaseURL, "", "postgres:// or sqlite:// database url")
	flags.String(flagStoreBackend, daemon.StoreBackendGorm, "store implementation: gorm or pgx")
	flags.String(flagGRPCListenAddr, "", "gRPC listen address")
	flags.String(flagHTTPListenAddr, "", "HTTP listen address")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.Duration(flagRequestTimeout, 0, "per-request ledger timeout for HTTP handlers")
	flags.String(flagJWTSigningKey, "", "TAuth JWT signing key (required for serve)")
	flags.String(flagJWTIssuer, "", "expected JWT issuer")
	flags.String(flagJWTCookieName, "", "JWT cookie name")
	flags.Int64(flagStartingGrant, 0, "tokens granted to newly opened accounts")
	flags.String(flagTokenPrice, "", "fiat price of one token, e.g. 0.10")
	flags.String(flagCurrency, "", "ISO 4217 currency of top-up payments")
	flags.Int(flagHistoryLimit, 0, "transactions returned with the wallet")
	flags.String(flagLogLevel, "info", "log level")
	flags.Bool(flagLogDevelopment, false, "human-readable development logging")
	flags.String(flagLogFile, "", "optional rotated log file")
	flags.Int(flagLogMaxSizeMB, 0, "log file size before rotation")
	flags.Int(flagLogMaxBackups, 0, "rotated log files to keep")
	flags.Int(flagLogMaxAgeDays, 0, "days to keep rotated log files")
	flags.String(flagNATSURL, "", "NATS url for gift events")
	flags.String(flagRedisAddr, "", "Redis address for gift events")
	flags.String(flagRedisPassword, "", "Redis password")
	flags.Int(flagRedisDB, 0, "Redis database")
	flags.String(flagKafkaBrokers, "", "comma-separated Kafka brokers for gift events")
	flags.String(flagKafkaTopic, "", "Kafka topic for gift events")
	flags.Bool(flagLogEvents, false, "also write gift events to the log")
	flags.Bool(flagMetrics, true, "expose Prometheus metrics on /metrics")

	cmd.AddCommand(newServeCommand(cfg), newMigrateCommand(cfg))
	return cmd
}

func newServeCommand(cfg *daemon.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the gRPC and HTTP APIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx, *cfg)
		},
	}
}

func newMigrateCommand(cfg *daemon.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemon.Migrate(cmd.Context(), *cfg)
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *daemon.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := cmd.Flags()
	for _, flagName := range boundFlags {
		if err := v.BindPFlag(flagName, flags.Lookup(flagName)); err != nil {
			return err
		}
	}
	if configPath, _ := flags.GetString(flagConfig); strings.TrimSpace(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.StoreBackend = v.GetString(flagStoreBackend)
	cfg.GRPCListenAddr = strings.TrimSpace(v.GetString(flagGRPCListenAddr))
	cfg.StartingGrant = v.GetInt64(flagStartingGrant)
	cfg.Metrics = v.GetBool(flagMetrics)

	cfg.HTTP = httpapi.Config{
		ListenAddr:         strings.TrimSpace(v.GetString(flagHTTPListenAddr)),
		AllowedOrigins:     httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		RequestTimeout:     v.GetDuration(flagRequestTimeout),
		SessionSigningKey:  v.GetString(flagJWTSigningKey),
		SessionIssuer:      strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName:  strings.TrimSpace(v.GetString(flagJWTCookieName)),
		Currency:           strings.TrimSpace(v.GetString(flagCurrency)),
		WalletHistoryLimit: v.GetInt(flagHistoryLimit),
	}
	if rawPrice := strings.TrimSpace(v.GetString(flagTokenPrice)); rawPrice != "" {
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return fmt.Errorf("%s: %w", flagTokenPrice, err)
		}
		cfg.HTTP.TokenPrice = price
	}

	cfg.Log.Level = v.GetString(flagLogLevel)
	cfg.Log.Development = v.GetBool(flagLogDevelopment)
	cfg.Log.FilePath = strings.TrimSpace(v.GetString(flagLogFile))
	cfg.Log.MaxSizeMB = v.GetInt(flagLogMaxSizeMB)
	cfg.Log.MaxBackups = v.GetInt(flagLogMaxBackups)
	cfg.Log.MaxAgeDays = v.GetInt(flagLogMaxAgeDays)

	cfg.Events = daemon.EventsConfig{
		NATSURL:       strings.TrimSpace(v.GetString(flagNATSURL)),
		RedisAddr:     strings.TrimSpace(v.GetString(flagRedisAddr)),
		RedisPassword: v.GetString(flagRedisPassword),
		RedisDB:       v.GetInt(flagRedisDB),
		KafkaBrokers:  splitList(v.GetString(flagKafkaBrokers)),
		KafkaTopic:    strings.TrimSpace(v.GetString(flagKafkaTopic)),
		LogEvents:     v.GetBool(flagLogEvents),
	}

	cfg.Catalog = nil
	if err := v.UnmarshalKey(configKeyCatalog, &cfg.Catalog); err != nil {
		return fmt.Errorf("%s: %w", configKeyCatalog, err)
	}

	if cmd.Name() == "migrate" {
		return cfg.ValidateStorage()
	}
	return cfg.Validate()
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
