package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CALLS"

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	StaticPath    string        `mapstructure:"static_path"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	WriteWait     time.Duration `mapstructure:"write_wait"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	Backpressure  string        `mapstructure:"backpressure"`
	SessionSecret string        `mapstructure:"session_secret"`
	AdminSecret   string        `mapstructure:"admin_secret"`
	APISecret     string        `mapstructure:"api_secret"`
	LogLevel      string        `mapstructure:"log_level"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
	ValidateSDP   bool          `mapstructure:"validate_sdp"`
	ICEServers    []ICEServer   `mapstructure:"ice_servers"`

	Calls    CallsConfig    `mapstructure:"calls"`
	Store    StoreConfig    `mapstructure:"store"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type CallsConfig struct {
	WarnBefore    time.Duration `mapstructure:"warn_before"`
	CodeAttempts  int           `mapstructure:"code_attempts"`
	PruneAfter    time.Duration `mapstructure:"prune_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LimitsConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	MessageBurst      int     `mapstructure:"message_burst"`
	JoinsPerMinute    int     `mapstructure:"joins_per_minute"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("session_secret", "change-me")
	v.SetDefault("admin_secret", "")
	v.SetDefault("api_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("validate_sdp", true)
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	v.SetDefault("calls.warn_before", "5m")
	v.SetDefault("calls.code_attempts", 10)
	v.SetDefault("calls.prune_after", "24h")
	v.SetDefault("calls.sweep_interval", "30s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	v.SetDefault("limits.messages_per_second", 20.0)
	v.SetDefault("limits.message_burst", 40)
	v.SetDefault("limits.joins_per_minute", 10)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
}

// Load reads, in increasing priority: defaults, the YAML file, CALLS_* env
// vars and command line flags.
func Load(args []string) (*Config, *viper.Viper, error) {
	fs := pflag.NewFlagSet("calls", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to the YAML config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("mode", "release", "gin mode: debug, release or test")
	fs.String("log-level", "info", "zerolog level")
	fs.String("store-driver", "memory", "call store: memory, sqlite or postgres")
	fs.String("store-dsn", "", "sqlite path or postgres DSN")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	for key, flag := range map[string]string{
		"port":         "port",
		"mode":         "mode",
		"log_level":    "log-level",
		"store.driver": "store-driver",
		"store.dsn":    "store-dsn",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, nil, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		if *configFile != "" {
			return nil, nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("store", cfg.Store.Driver).
		Msg("config ready")
	return cfg, v, nil
}

func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.Backpressure != "kick" && c.Backpressure != "drop" {
		errs = append(errs, fmt.Errorf("backpressure %q: want kick or drop", c.Backpressure))
	}
	if c.PingPeriod <= 0 || c.WriteWait <= 0 {
		errs = append(errs, errors.New("ping_period and write_wait must be positive"))
	}
	if c.Calls.SweepInterval <= 0 {
		errs = append(errs, errors.New("calls.sweep_interval must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level is the configured zerolog level, info when unparsable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Watch re-decodes the file on every change. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, onChange func(*Config)) {
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Decode(v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload rejected")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Msg("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}
