package config

import (
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RuntimeConfig holds settings that may change without a restart.
type RuntimeConfig struct {
	LogLevel string `mapstructure:"logLevel"`
}

type RuntimeHolder struct {
	current atomic.Value // holds RuntimeConfig

	mu        sync.Mutex
	listeners []func(RuntimeConfig)
}

// NewRuntimeHolder reads the optional runtime file and watches it for
// changes. Without a file the holder serves values derived from cfg.
func NewRuntimeHolder(cfg Config) (*RuntimeHolder, error) {
	holder := &RuntimeHolder{}
	holder.current.Store(RuntimeConfig{LogLevel: cfg.LogLevel})

	path := strings.TrimSpace(cfg.RuntimeConfigPath)
	if path == "" {
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	initial, err := decodeRuntime(v, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	holder.current.Store(initial)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRuntime(v, cfg.LogLevel)
		if err != nil {
			log.Printf("[runtime-config] invalid config ignored: %v", err)
			return
		}
		holder.set(updated)
		log.Printf("[runtime-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RuntimeHolder) Get() RuntimeConfig {
	return h.current.Load().(RuntimeConfig)
}

// OnChange registers fn to run after every successful reload.
func (h *RuntimeHolder) OnChange(fn func(RuntimeConfig)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *RuntimeHolder) set(cfg RuntimeConfig) {
	h.current.Store(cfg)

	h.mu.Lock()
	listeners := append([]func(RuntimeConfig){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(cfg)
	}
}

func decodeRuntime(v *viper.Viper, fallbackLevel string) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, err
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = fallbackLevel
	}
	if err := validateRuntime(cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

func validateRuntime(cfg RuntimeConfig) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return errors.New("runtime logLevel must be one of debug, info, warn, error")
	}
}
