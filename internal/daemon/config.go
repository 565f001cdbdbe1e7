package daemon

import (
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/giftledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/giftledger/internal/logging"
	"github.com/MarkoPoloResearchLab/giftledger/pkg/ledger"
)

const (
	StoreBackendGorm = "gorm"
	StoreBackendPGX  = "pgx"

	defaultDatabaseURL    = "sqlite:///tmp/giftledger.db"
	defaultGRPCListenAddr = ":7000"
	defaultStartingGrant  = 100
	defaultKafkaTopic     = "gift-events"
)

// Config aggregates every setting of giftledgerd.
type Config struct {
	DatabaseURL    string
	StoreBackend   string
	GRPCListenAddr string
	StartingGrant  int64
	HTTP           httpapi.Config
	Log            logging.Config
	Events         EventsConfig
	Metrics        bool
	Catalog        []GiftConfig
}

// EventsConfig selects the brokers gift-received events fan out to. Empty fields are skipped.
type EventsConfig struct {
	NATSURL       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KafkaBrokers  []string
	KafkaTopic    string
	LogEvents     bool
}

// GiftConfig is a catalog entry seeded at startup.
type GiftConfig struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Price  int64  `mapstructure:"price"`
	Active *bool  `mapstructure:"active"`
}

// Validate applies defaults and checks every setting serve needs.
func (cfg *Config) Validate() error {
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	if err := cfg.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// ValidateStorage applies defaults and checks the settings migrate needs.
func (cfg *Config) ValidateStorage() error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = StoreBackendGorm
	}
	if strings.TrimSpace(cfg.GRPCListenAddr) == "" {
		cfg.GRPCListenAddr = defaultGRPCListenAddr
	}
	if cfg.StartingGrant == 0 {
		cfg.StartingGrant = defaultStartingGrant
	}
	if strings.TrimSpace(cfg.Events.KafkaTopic) == "" {
		cfg.Events.KafkaTopic = defaultKafkaTopic
	}

	switch cfg.StoreBackend {
	case StoreBackendGorm:
	case StoreBackendPGX:
		if driver, _, err := resolveDriver(cfg.DatabaseURL); err != nil || driver != driverPostgres {
			return fmt.Errorf("store backend %q requires a postgres database url", StoreBackendPGX)
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if cfg.StartingGrant < 0 {
		return fmt.Errorf("starting grant must not be negative")
	}
	_, err := cfg.GiftDefinitions()
	return err
}

// GiftDefinitions converts the configured catalog into validated definitions.
// Entries without an explicit active flag are active.
func (cfg *Config) GiftDefinitions() ([]ledger.GiftDefinition, error) {
	definitions := make([]ledger.GiftDefinition, 0, len(cfg.Catalog))
	seen := make(map[string]struct{}, len(cfg.Catalog))
	for index, gift := range cfg.Catalog {
		giftID, err := ledger.NewGiftID(gift.ID)
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: %w", index, err)
		}
		if _, duplicate := seen[giftID.String()]; duplicate {
			return nil, fmt.Errorf("catalog[%d]: duplicate gift id %q", index, giftID.String())
		}
		seen[giftID.String()] = struct{}{}
		price, err := ledger.NewPositiveTokenAmount(gift.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: %w", index, err)
		}
		active := true
		if gift.Active != nil {
			active = *gift.Active
		}
		definition, err := ledger.NewGiftDefinition(giftID, gift.Name, price, active)
		if err != nil {
			return nil, fmt.Errorf("catalog[%d]: %w", index, err)
		}
		definitions = append(definitions, definition)
	}
	return definitions, nil
}
