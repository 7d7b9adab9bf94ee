package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/siteguard/internal/guard/domain"
)

// AppConfig holds configuration values parsed from defaults and environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log         LoggingConfig     `koanf:"log"`
	Store       StoreConfig       `koanf:"store"`
	Engine      EngineConfig      `koanf:"engine"`
	Enforcement EnforcementConfig `koanf:"enforcement"`
}

type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig selects where policy and usage live.
type StoreConfig struct {
	// Backend is one of "bolt", "file", "memory" or "redis".
	Backend string `koanf:"backend" validate:"required,oneof=bolt file memory redis"`

	// Path is the bbolt database for "bolt" or the policy file for "file".
	Path string `koanf:"path" validate:"required"`

	// Watch reloads the policy file when it changes on disk.
	Watch bool `koanf:"watch"`

	RedisAddr      string `koanf:"redis_addr" validate:"required,hostname_port"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db" validate:"gte=0"`
	RedisNamespace string `koanf:"redis_namespace" validate:"required"`
}

// EngineConfig tunes evaluation and rebuild scheduling.
type EngineConfig struct {
	// PatternCacheSize bounds compiled patterns kept; 0 disables the cache.
	PatternCacheSize int `koanf:"pattern_cache_size" validate:"gte=0"`

	DebounceMS     int `koanf:"debounce_ms" validate:"duration_ms"`
	SnoozeBufferMS int `koanf:"snooze_buffer_ms" validate:"duration_ms"`

	// TickSeconds rebuilds periodically so schedule boundaries take effect; 0 disables.
	TickSeconds int `koanf:"tick_seconds" validate:"gte=0"`

	// WindowMode is "calendar" or "rolling".
	WindowMode string `koanf:"window_mode" validate:"required,window_mode"`

	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

// EnforcementConfig controls where directive sets are written.
type EnforcementConfig struct {
	// Output is the ruleset file; empty keeps directives in memory only.
	Output string `koanf:"output"`

	RedirectTarget string `koanf:"redirect_target" validate:"required"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings for the guard.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Store: StoreConfig{
		Backend:        "bolt",
		Path:           "/var/lib/siteguard/siteguard.db",
		Watch:          true,
		RedisAddr:      "localhost:6379",
		RedisDB:        0,
		RedisNamespace: "siteguard",
	},
	Engine: EngineConfig{
		PatternCacheSize: 512,
		DebounceMS:       250,
		SnoozeBufferMS:   3000,
		TickSeconds:      60,
		WindowMode:       "calendar",
		BloomFPRate:      0.01,
	},
	Enforcement: EnforcementConfig{
		Output:         "",
		RedirectTarget: "/blocked.html",
	},
}

// maxDurationMS caps millisecond settings at one hour.
const maxDurationMS = 60 * 60 * 1000

func (e EngineConfig) Debounce() time.Duration {
	return time.Duration(e.DebounceMS) * time.Millisecond
}

func (e EngineConfig) SnoozeBuffer() time.Duration {
	return time.Duration(e.SnoozeBufferMS) * time.Millisecond
}

func (e EngineConfig) Tick() time.Duration {
	return time.Duration(e.TickSeconds) * time.Second
}

// Window returns the parsed window mode. Load has already validated it.
func (e EngineConfig) Window() domain.WindowMode {
	m, _ := domain.ParseWindowMode(e.WindowMode)
	return m
}

// validDurationMS accepts integer millisecond values in (0, 1h].
func validDurationMS(fl validator.FieldLevel) bool {
	ms := fl.Field().Int()
	return ms > 0 && ms <= maxDurationMS
}

func validWindowMode(fl validator.FieldLevel) bool {
	_, err := domain.ParseWindowMode(fl.Field().String())
	return err == nil
}

// sections are the nested config groups. An env key whose first segment
// names one is split there, so GUARD_STORE_REDIS_ADDR becomes store.redis_addr.
var sections = map[string]bool{
	"log":         true,
	"store":       true,
	"engine":      true,
	"enforcement": true,
}

func envKey(raw string) string {
	key := strings.ToLower(strings.TrimPrefix(raw, "GUARD_"))
	head, rest, ok := strings.Cut(key, "_")
	if ok && sections[head] {
		return head + "." + rest
	}
	return key
}

// envLoader loads environment variables with the prefix "GUARD_" and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "GUARD_",
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "duration_ms" and "window_mode" tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("duration_ms", validDurationMS); err != nil {
		return err
	}
	return v.RegisterValidation("window_mode", validWindowMode)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
