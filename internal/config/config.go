package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Event    EventConfig    `mapstructure:"event"`
	Import   ImportConfig   `mapstructure:"import"`
}

type ServerConfig struct {
	Port         int             `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout time.Duration   `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration   `mapstructure:"idleTimeout"`
	RateLimit    RateLimitConfig `mapstructure:"rateLimit"`
	Auth         AuthConfig      `mapstructure:"auth"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	RPS     int  `mapstructure:"rps"`
	Burst   int  `mapstructure:"burst"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwtSecret"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type MetricsConfig struct {
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

type BatchConfig struct {
	ActiveFlagRefreshSchedule string        `mapstructure:"activeFlagRefreshSchedule"`
	ActiveFlagRefreshTimeout  time.Duration `mapstructure:"activeFlagRefreshTimeout"`
}

type EventConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type ImportConfig struct {
	AutoLoad     bool   `mapstructure:"autoLoad"`
	CustomerFile string `mapstructure:"customerFile"`
	LoanFile     string `mapstructure:"loanFile"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if url := v.GetString("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if port := v.GetInt("SERVER_PORT"); port != 0 {
		cfg.Server.Port = port
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 15*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("server.idleTimeout", 60*time.Second)
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.rps", 50)
	v.SetDefault("server.rateLimit.burst", 100)
	v.SetDefault("server.auth.enabled", false)
	v.SetDefault("server.auth.jwtSecret", "")

	v.SetDefault("database.url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("batch.activeFlagRefreshSchedule", "0 1 * * *")
	v.SetDefault("batch.activeFlagRefreshTimeout", 10*time.Minute)

	v.SetDefault("event.enabled", false)
	v.SetDefault("event.url", "")
	v.SetDefault("event.exchange", "credit-engine")

	v.SetDefault("import.autoLoad", false)
	v.SetDefault("import.customerFile", "data/customer_data.csv")
	v.SetDefault("import.loanFile", "data/loan_data.csv")
}
