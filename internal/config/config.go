package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config - конфигурация процесса. Значения читаются из config.yaml
// и переопределяются переменными окружения с префиксом FORUM_
// (FORUM_DATABASE_URL, FORUM_JWT_SECRET и т.д.).
type Config struct {
	Port        string `mapstructure:"port"`
	Storage     string `mapstructure:"storage"` // in-memory или postgres
	DatabaseURL string `mapstructure:"database_url"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	LogLevel    string `mapstructure:"log_level"`
}

// Load читает конфигурацию. Отсутствие файла не ошибка: достаточно
// значений по умолчанию и окружения.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("storage", "in-memory")
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "dev-secret")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("FORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Storage != "in-memory" && cfg.Storage != "postgres" {
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage)
	}
	if cfg.Storage == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url must be set for postgres storage")
	}

	return &cfg, nil
}
