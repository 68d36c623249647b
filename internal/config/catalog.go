package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CatalogConfig is the file-backed slot catalog seed.
type CatalogConfig struct {
	Placements []PlacementConfig `mapstructure:"placements"`
}

type PlacementConfig struct {
	Name     string        `mapstructure:"name"`
	Capacity int           `mapstructure:"capacity"`
	Prices   []PriceConfig `mapstructure:"prices"`
}

type PriceConfig struct {
	DurationDays int   `mapstructure:"durationDays"`
	CreditCost   int64 `mapstructure:"creditCost"`
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Placements: []PlacementConfig{
			{Name: "homepage", Capacity: 2, Prices: []PriceConfig{
				{DurationDays: 7, CreditCost: 3},
				{DurationDays: 14, CreditCost: 5},
				{DurationDays: 15, CreditCost: 5},
				{DurationDays: 21, CreditCost: 7},
				{DurationDays: 28, CreditCost: 9},
				{DurationDays: 30, CreditCost: 10},
			}},
			{Name: "results", Capacity: 4, Prices: []PriceConfig{
				{DurationDays: 7, CreditCost: 1},
				{DurationDays: 14, CreditCost: 2},
				{DurationDays: 15, CreditCost: 2},
				{DurationDays: 21, CreditCost: 3},
				{DurationDays: 28, CreditCost: 4},
				{DurationDays: 30, CreditCost: 4},
			}},
			{Name: "detail", Capacity: 6, Prices: []PriceConfig{
				{DurationDays: 7, CreditCost: 1},
				{DurationDays: 14, CreditCost: 1},
				{DurationDays: 15, CreditCost: 1},
				{DurationDays: 21, CreditCost: 2},
				{DurationDays: 28, CreditCost: 2},
				{DurationDays: 30, CreditCost: 3},
			}},
		},
	}
}

type CatalogConfigHolder struct {
	current atomic.Value // holds CatalogConfig

	mu        sync.Mutex
	listeners []func(CatalogConfig)
}

// NewCatalogConfigHolderFrom returns a holder without file watching.
func NewCatalogConfigHolderFrom(cfg CatalogConfig) *CatalogConfigHolder {
	holder := &CatalogConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCatalogConfigHolder(appCfg Config, log *zap.Logger) (*CatalogConfigHolder, error) {
	log = log.Named("config.catalog")
	v := viper.New()

	if path := strings.TrimSpace(appCfg.CatalogPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yml")
		v.AddConfigPath("/var/lib/spotlight/config")
		v.AddConfigPath("/etc/spotlight")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SPOTLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
		v.SetDefault("catalog.placements", DefaultCatalogConfig().Placements)
	}

	var cfg CatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateCatalogConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewCatalogConfigHolderFrom(cfg)
	if !fileLoaded {
		log.Info("catalog config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CatalogConfig
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Warn("catalog reload failed", zap.Error(err))
			return
		}
		if err := ValidateCatalogConfig(updated); err != nil {
			log.Warn("invalid catalog config ignored", zap.Error(err))
			return
		}
		holder.store(updated)
		log.Info("catalog config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CatalogConfigHolder) Get() CatalogConfig {
	return h.current.Load().(CatalogConfig)
}

// OnChange registers fn to run after every successful reload.
func (h *CatalogConfigHolder) OnChange(fn func(CatalogConfig)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *CatalogConfigHolder) store(cfg CatalogConfig) {
	h.current.Store(cfg)
	h.mu.Lock()
	listeners := append([]func(CatalogConfig){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

func ValidateCatalogConfig(cfg CatalogConfig) error {
	if len(cfg.Placements) == 0 {
		return errors.New("catalog.placements cannot be empty")
	}
	seen := map[string]struct{}{}
	for _, p := range cfg.Placements {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return errors.New("catalog placement name cannot be empty")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("catalog placement %q declared twice", name)
		}
		seen[name] = struct{}{}
		if p.Capacity < 0 {
			return fmt.Errorf("catalog placement %q capacity must be >= 0", name)
		}
		for _, price := range p.Prices {
			if price.DurationDays <= 0 || price.CreditCost <= 0 {
				return fmt.Errorf("catalog placement %q has invalid price %d/%d", name, price.DurationDays, price.CreditCost)
			}
		}
	}
	return nil
}
