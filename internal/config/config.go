// Package config загружает конфигурацию процесса и backend-инстансов.
//
// Настройки процесса читаются из переменных окружения (caarlos0/env).
// Backend-инстансы описываются в YAML-файле (INSTANCES_FILE) и, если
// задан DB_URL, дополняются строками таблицы backend_instances.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config — настройки процесса.
type Config struct {
	// HTTP
	APIPort string `env:"API_PORT" envDefault:"8080"`

	// Request token
	TokenSecret string        `env:"TOKEN_SECRET"`
	TokenPrefix string        `env:"TOKEN_PREFIX" envDefault:"req"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Backend-инстансы
	InstancesFile string `env:"INSTANCES_FILE" envDefault:"instances.yaml"`

	// Внешняя инфраструктура (опционально)
	DBURL        string `env:"DB_URL"`
	DBMaxConns   int32  `env:"DB_MAX_CONNS" envDefault:"4"`
	DBInitSchema bool   `env:"DB_INIT_SCHEMA" envDefault:"false"`
	RabbitMQURL  string `env:"RABBITMQ_URL"`

	// Executor
	ExecutorBaseDelay time.Duration `env:"EXECUTOR_BASE_DELAY" envDefault:"1s"`
	ExecutorMaxDelay  time.Duration `env:"EXECUTOR_MAX_DELAY" envDefault:"0s"`
	ExecutorPoolSize  int           `env:"EXECUTOR_POOL_SIZE" envDefault:"8"`
	ExecutorQueueSize int           `env:"EXECUTOR_QUEUE_SIZE" envDefault:"64"`

	// Параметры команд по умолчанию
	CommandRetryAttempts int           `env:"COMMAND_RETRY_ATTEMPTS" envDefault:"2"`
	CommandTimeout       time.Duration `env:"COMMAND_TIMEOUT" envDefault:"30s"`

	// Membership
	AWXInstance           string `env:"AWX_INSTANCE"`
	AWXWorkflowTemplateID int    `env:"AWX_WORKFLOW_TEMPLATE_ID"`
	UiPathInstance        string `env:"UIPATH_INSTANCE"`
	UiPathQueueName       string `env:"UIPATH_QUEUE_NAME" envDefault:"ProjectMembership"`

	// Tracing (opt-in)
	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load читает Config из окружения.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Secret возвращает ключ подписи token.
// Значение с префиксом "base64:" декодируется, иначе берутся байты строки.
func (c *Config) Secret() ([]byte, error) {
	raw := strings.TrimSpace(c.TokenSecret)
	if raw == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}
	if encoded, ok := strings.CutPrefix(raw, "base64:"); ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode TOKEN_SECRET: %w", err)
		}
		return key, nil
	}
	return []byte(raw), nil
}
