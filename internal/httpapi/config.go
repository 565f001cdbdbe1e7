package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultListenAddr         = ":8080"
	defaultAllowedOrigin      = "http://localhost:8000"
	defaultSessionIssuer      = "tauth"
	defaultSessionCookie      = "app_session"
	defaultRequestTimeout     = 3 * time.Second
	defaultTokenPrice         = "0.10"
	defaultCurrency           = "USD"
	defaultWalletHistoryLimit = 10
	authClaimsKey             = "auth_claims"
)

// Config aggregates runtime settings for the HTTP API.
type Config struct {
	ListenAddr         string
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	SessionSigningKey  string
	SessionIssuer      string
	SessionCookieName  string
	TokenPrice         decimal.Decimal
	Currency           string
	WalletHistoryLimit int
}

// Validate applies defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if cfg.TokenPrice.IsZero() {
		cfg.TokenPrice = decimal.RequireFromString(defaultTokenPrice)
	}
	cfg.Currency = strings.ToUpper(defaultIfEmpty(cfg.Currency, defaultCurrency))
	if cfg.WalletHistoryLimit <= 0 {
		cfg.WalletHistoryLimit = defaultWalletHistoryLimit
	}
	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("jwt signing key is required")
	}
	if cfg.TokenPrice.IsNegative() {
		return fmt.Errorf("token price must not be negative")
	}
	if len(cfg.Currency) != 3 {
		return fmt.Errorf("currency must be a three-letter code")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
