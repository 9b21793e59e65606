package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SettlementConfig is the business configuration of the payout engine.
type SettlementConfig struct {
	Fees   FeeConfig
	Batch  BatchConfig
	Store  StoreConfig
	Payout PayoutConfig
}

// FeeConfig holds the two platform fee rates as fractions (0.15 is 15%).
type FeeConfig struct {
	CrowdpenRate    decimal.Decimal
	StartbuttonRate decimal.Decimal
}

type BatchConfig struct {
	DefaultLimit int
	MaxLimit     int
	Concurrency  int
}

type StoreConfig struct {
	StatementTimeout time.Duration
}

type PayoutConfig struct {
	DefaultCurrency string
}

// settlementFile mirrors settlement.yml. Rates are read as strings so they
// reach decimal without a float64 round trip.
type settlementFile struct {
	Fees struct {
		CrowdpenRate    string `mapstructure:"crowdpen_rate"`
		StartbuttonRate string `mapstructure:"startbutton_rate"`
	} `mapstructure:"fees"`
	Batch struct {
		DefaultLimit int `mapstructure:"default_limit"`
		MaxLimit     int `mapstructure:"max_limit"`
		Concurrency  int `mapstructure:"concurrency"`
	} `mapstructure:"batch"`
	Store struct {
		StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	} `mapstructure:"store"`
	Payout struct {
		DefaultCurrency string `mapstructure:"default_currency"`
	} `mapstructure:"payout"`
}

func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		Fees: FeeConfig{
			CrowdpenRate:    decimal.RequireFromString("0.15"),
			StartbuttonRate: decimal.RequireFromString("0.05"),
		},
		Batch: BatchConfig{
			DefaultLimit: 50,
			MaxLimit:     250,
			Concurrency:  4,
		},
		Store: StoreConfig{
			StatementTimeout: 500 * time.Millisecond,
		},
		Payout: PayoutConfig{
			DefaultCurrency: "USD",
		},
	}
}

type SettlementConfigHolder struct {
	current atomic.Value // holds SettlementConfig
}

// NewStaticSettlementConfig returns a holder that never reloads.
func NewStaticSettlementConfig(cfg SettlementConfig) *SettlementConfigHolder {
	holder := &SettlementConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewSettlementConfigHolder(appCfg Config, log *zap.Logger) (*SettlementConfigHolder, error) {
	v := viper.New()

	if appCfg.SettlementConfigFile != "" {
		v.SetConfigFile(appCfg.SettlementConfigFile)
	} else {
		v.SetConfigName("settlement")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/settlement")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SETTLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSettlementConfig()
	v.SetDefault("fees.crowdpen_rate", defaults.Fees.CrowdpenRate.String())
	v.SetDefault("fees.startbutton_rate", defaults.Fees.StartbuttonRate.String())
	v.SetDefault("batch.default_limit", defaults.Batch.DefaultLimit)
	v.SetDefault("batch.max_limit", defaults.Batch.MaxLimit)
	v.SetDefault("batch.concurrency", defaults.Batch.Concurrency)
	v.SetDefault("store.statement_timeout", defaults.Store.StatementTimeout)
	v.SetDefault("payout.default_currency", defaults.Payout.DefaultCurrency)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeSettlementConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticSettlementConfig(cfg)
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("settlement.config")

	if fileFound && appCfg.SettlementConfigWatch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeSettlementConfig(v)
			if err != nil {
				log.Warn("invalid settlement config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("settlement config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *SettlementConfigHolder) Get() SettlementConfig {
	return h.current.Load().(SettlementConfig)
}

func decodeSettlementConfig(v *viper.Viper) (SettlementConfig, error) {
	var raw settlementFile
	if err := v.Unmarshal(&raw); err != nil {
		return SettlementConfig{}, err
	}

	crowdpen, err := decimal.NewFromString(strings.TrimSpace(raw.Fees.CrowdpenRate))
	if err != nil {
		return SettlementConfig{}, fmt.Errorf("fees.crowdpen_rate: %w", err)
	}
	startbutton, err := decimal.NewFromString(strings.TrimSpace(raw.Fees.StartbuttonRate))
	if err != nil {
		return SettlementConfig{}, fmt.Errorf("fees.startbutton_rate: %w", err)
	}

	cfg := SettlementConfig{
		Fees: FeeConfig{
			CrowdpenRate:    crowdpen,
			StartbuttonRate: startbutton,
		},
		Batch: BatchConfig{
			DefaultLimit: raw.Batch.DefaultLimit,
			MaxLimit:     raw.Batch.MaxLimit,
			Concurrency:  raw.Batch.Concurrency,
		},
		Store: StoreConfig{
			StatementTimeout: raw.Store.StatementTimeout,
		},
		Payout: PayoutConfig{
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(raw.Payout.DefaultCurrency)),
		},
	}
	if err := ValidateSettlementConfig(cfg); err != nil {
		return SettlementConfig{}, err
	}
	return cfg, nil
}

func ValidateSettlementConfig(cfg SettlementConfig) error {
	one := decimal.NewFromInt(1)
	for name, rate := range map[string]decimal.Decimal{
		"fees.crowdpen_rate":    cfg.Fees.CrowdpenRate,
		"fees.startbutton_rate": cfg.Fees.StartbuttonRate,
	} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s must be in [0,1)", name)
		}
	}
	if cfg.Fees.CrowdpenRate.Add(cfg.Fees.StartbuttonRate).GreaterThanOrEqual(one) {
		return errors.New("fee rates must sum to less than 1")
	}
	if cfg.Batch.DefaultLimit < 1 || cfg.Batch.MaxLimit < cfg.Batch.DefaultLimit {
		return errors.New("batch limits require 1 <= default_limit <= max_limit")
	}
	if cfg.Batch.Concurrency < 1 {
		return errors.New("batch.concurrency must be positive")
	}
	if cfg.Store.StatementTimeout <= 0 {
		return errors.New("store.statement_timeout must be positive")
	}
	if cfg.Payout.DefaultCurrency == "" {
		return errors.New("payout.default_currency cannot be empty")
	}
	return nil
}
