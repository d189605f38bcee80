package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Game     GameConfig     `mapstructure:"game"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Verifier VerifierConfig `mapstructure:"verifier"`
	Treasury TreasuryConfig `mapstructure:"treasury"`
	Cron     CronConfig     `mapstructure:"cron"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GameConfig carries the timing protocol knobs: a fixed armed wait that
// makes countdown-end guessing useless, then a random delay before the
// green light, then a bounded tap window.
type GameConfig struct {
	MandatoryWait    time.Duration `mapstructure:"mandatory_wait"`
	SignalDelayMinMs int           `mapstructure:"signal_delay_min_ms"`
	SignalDelayMaxMs int           `mapstructure:"signal_delay_max_ms"`
	TapWindow        time.Duration `mapstructure:"tap_window"`
	StakeDeadline    time.Duration `mapstructure:"stake_deadline"`
}

type FeesConfig struct {
	PlatformFeeBps int64 `mapstructure:"platform_fee_bps"`
	GasFeeBps      int64 `mapstructure:"gas_fee_bps"`
}

type VerifierConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	AppID        string        `mapstructure:"app_id"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInitial  time.Duration `mapstructure:"poll_initial"`
	PollMax      time.Duration `mapstructure:"poll_max"`
	PollAttempts int           `mapstructure:"poll_attempts"`
}

type TreasuryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GatewayConfig controls the bearer guard in front of the API.
// AuthDisabled drops the guard entirely for local development;
// RequireUserHeader additionally insists on the gateway-verified
// player id header.
type GatewayConfig struct {
	AuthDisabled      bool `mapstructure:"auth_disabled"`
	RequireUserHeader bool `mapstructure:"require_user_header"`
}

type CronConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ReconcileSpec string `mapstructure:"reconcile_spec"`
	ExpireSpec    string `mapstructure:"expire_spec"`
	BatchSize     int    `mapstructure:"batch_size"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("game.mandatory_wait", "2s")
	v.SetDefault("game.signal_delay_min_ms", 2000)
	v.SetDefault("game.signal_delay_max_ms", 5000)
	v.SetDefault("game.tap_window", "5s")
	v.SetDefault("game.stake_deadline", "10m")
	v.SetDefault("fees.platform_fee_bps", 300)
	v.SetDefault("fees.gas_fee_bps", 300)
	v.SetDefault("verifier.base_url", "https://developer.worldcoin.org")
	v.SetDefault("verifier.timeout", "15s")
	v.SetDefault("verifier.poll_initial", "1s")
	v.SetDefault("verifier.poll_max", "30s")
	v.SetDefault("verifier.poll_attempts", 10)
	v.SetDefault("treasury.timeout", "30s")
	v.SetDefault("gateway.auth_disabled", false)
	v.SetDefault("gateway.require_user_header", false)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.reconcile_spec", "@every 1m")
	v.SetDefault("cron.expire_spec", "@every 5m")
	v.SetDefault("cron.batch_size", 100)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
