package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Token            string        `env:"TOKEN,required,notEmpty"`
	AllowedUsers     []int64       `env:"ALLOWED_USERS"`
	DBPath           string        `env:"DB_PATH"           envDefault:"db.sqlite"`
	SummaryEndpoint  string        `env:"SUMMARY_ENDPOINT"  envDefault:"http://localhost:8000/upload-pdf"`
	SummaryTimeout   time.Duration `env:"SUMMARY_TIMEOUT"   envDefault:"0s"`
	MaxFileSize      int64         `env:"MAX_FILE_SIZE"     envDefault:"20971520"`
	SessionIdleTTL   time.Duration `env:"SESSION_IDLE_TTL"  envDefault:"24h"`
	HistoryRetention time.Duration `env:"HISTORY_RETENTION" envDefault:"720h"`
	HealthAddr       string        `env:"HEALTH_ADDR"`
	LogLevel         slog.Level    `env:"LOG_LEVEL"         envDefault:"INFO"`
}

// Load reads an optional .env file from dotenvPath (empty means ".env") and
// then parses the environment. Variables already set win over the file.
func Load(dotenvPath string) (Config, error) {
	if dotenvPath == "" {
		dotenvPath = ".env"
	}

	if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv file: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.SummaryTimeout < 0 {
		errs = append(errs, errors.New("SUMMARY_TIMEOUT must not be negative"))
	}

	if c.MaxFileSize < 0 {
		errs = append(errs, errors.New("MAX_FILE_SIZE must not be negative"))
	}

	if c.SessionIdleTTL <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TTL must be positive"))
	}

	if c.HistoryRetention <= 0 {
		errs = append(errs, errors.New("HISTORY_RETENTION must be positive"))
	}

	return errors.Join(errs...)
}
