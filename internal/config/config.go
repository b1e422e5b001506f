package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Mail      MailConfig
	Crypto    CryptoConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MailConfig holds the service-wide default mailbox account. API keys may
// carry their own credentials; keys without them fall back to this account.
type MailConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	SMTPHost string `mapstructure:"smtpHost"`
	SMTPPort int    `mapstructure:"smtpPort"`
	IMAPHost string `mapstructure:"imapHost"`
	IMAPPort int    `mapstructure:"imapPort"`
}

// CryptoConfig carries the key used to encrypt per-key mailbox passwords
// at rest. Must be 32 bytes, base64url encoded.
type CryptoConfig struct {
	EncryptionKey string `mapstructure:"encryptionKey"`
}

// RateLimitConfig sets limiter defaults applied to newly issued keys and
// the sweep cadence for idle window state.
type RateLimitConfig struct {
	DefaultPerMinute int           `mapstructure:"defaultPerMinute"`
	DefaultPerHour   int           `mapstructure:"defaultPerHour"`
	SweepInterval    time.Duration `mapstructure:"sweepInterval"`
}

type AuditConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.readTimeout", 5*time.Second)
	viper.SetDefault("server.writeTimeout", 10*time.Second)
	viper.SetDefault("server.idleTimeout", 120*time.Second)
	viper.SetDefault("server.shutdownPeriod", 15*time.Second)

	viper.SetDefault("database.maxOpenConns", 25)
	viper.SetDefault("database.maxIdleConns", 25)
	viper.SetDefault("database.connMaxLifetime", 5*time.Minute)

	viper.SetDefault("redis.db", "0")

	viper.SetDefault("mail.smtpHost", "smtp.gmail.com")
	viper.SetDefault("mail.smtpPort", 587)
	viper.SetDefault("mail.imapHost", "imap.gmail.com")
	viper.SetDefault("mail.imapPort", 993)

	viper.SetDefault("ratelimit.defaultPerMinute", 60)
	viper.SetDefault("ratelimit.defaultPerHour", 1000)
	viper.SetDefault("ratelimit.sweepInterval", 5*time.Minute)

	viper.SetDefault("audit.retention", 30*24*time.Hour)

	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AllowEmptyEnv(true)

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
