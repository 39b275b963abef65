package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AccountingConfig is the association-level accounting policy. A snapshot
// is taken once per reconciliation or calculation call; the engine never
// reads mutable process state mid-run.
type AccountingConfig struct {
	// AccountingStart is the date bookkeeping begins. Dues before it are
	// neither generated nor considered posted. Nil means unbounded.
	AccountingStart *time.Time

	// LiabilityIntervalMonths is the legal collection window used by the
	// statute-of-limitations calculator.
	LiabilityIntervalMonths int
}

func DefaultAccountingConfig() AccountingConfig {
	return AccountingConfig{
		AccountingStart:         nil,
		LiabilityIntervalMonths: 36,
	}
}

type accountingFile struct {
	Start                   string `mapstructure:"start"`
	LiabilityIntervalMonths int    `mapstructure:"liabilityIntervalMonths"`
}

// AccountingConfigHolder keeps the current accounting policy and hot
// reloads it when the config file changes. Readers always get a complete,
// validated value.
type AccountingConfigHolder struct {
	current atomic.Value // holds AccountingConfig
}

func NewAccountingConfigHolder() (*AccountingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("accounting")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kassenwart/config")
	v.AddConfigPath("/etc/kassenwart")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KASSENWART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultAccountingConfig()
		v.SetDefault("accounting.start", "")
		v.SetDefault("accounting.liabilityIntervalMonths", defaults.LiabilityIntervalMonths)
	}

	cfg, err := unmarshalAccounting(v)
	if err != nil {
		return nil, err
	}

	holder := &AccountingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalAccounting(v)
		if err != nil {
			log.Printf("[accounting-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[accounting-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *AccountingConfigHolder) Get() AccountingConfig {
	return h.current.Load().(AccountingConfig)
}

// NewStaticAccountingConfigHolder wraps a fixed policy; used by tests and
// one-shot tooling.
func NewStaticAccountingConfigHolder(cfg AccountingConfig) *AccountingConfigHolder {
	holder := &AccountingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func unmarshalAccounting(v *viper.Viper) (AccountingConfig, error) {
	var raw accountingFile
	if err := v.UnmarshalKey("accounting", &raw); err != nil {
		return AccountingConfig{}, err
	}

	cfg := AccountingConfig{
		LiabilityIntervalMonths: raw.LiabilityIntervalMonths,
	}
	if start := strings.TrimSpace(raw.Start); start != "" {
		parsed, err := time.ParseInLocation("2006-01-02", start, time.UTC)
		if err != nil {
			return AccountingConfig{}, err
		}
		cfg.AccountingStart = &parsed
	}

	if err := validateAccountingConfig(cfg); err != nil {
		return AccountingConfig{}, err
	}
	return cfg, nil
}

func validateAccountingConfig(cfg AccountingConfig) error {
	if cfg.LiabilityIntervalMonths <= 0 {
		return errors.New("accounting.liabilityIntervalMonths must be positive")
	}
	return nil
}
