package config

import (
	"time"

	"github.com/clientflow/mailsync/internal/logger"
	"github.com/clientflow/mailsync/internal/tracing"
)

type Config struct {
	AppConfig      *AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *DatabaseConfig
	SyncConfig     *SyncConfig
}

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12230"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

type SyncConfig struct {
	BatchSize             int `env:"SYNC_BATCH_SIZE" envDefault:"50"`
	ControlTimeoutSeconds int `env:"SYNC_CONTROL_TIMEOUT_SECONDS" envDefault:"30"`
	FetchTimeoutSeconds   int `env:"SYNC_FETCH_TIMEOUT_SECONDS" envDefault:"60"`
	LogoutTimeoutSeconds  int `env:"SYNC_LOGOUT_TIMEOUT_SECONDS" envDefault:"5"`
	MaxResponseBytes      int `env:"SYNC_MAX_RESPONSE_BYTES" envDefault:"10485760"`
}

func (c *SyncConfig) ControlTimeout() time.Duration {
	return time.Duration(c.ControlTimeoutSeconds) * time.Second
}

func (c *SyncConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c *SyncConfig) LogoutTimeout() time.Duration {
	return time.Duration(c.LogoutTimeoutSeconds) * time.Second
}
