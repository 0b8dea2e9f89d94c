package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
)

type Config struct {
	Port        string `json:"port" validate:"required,numeric"`
	CatalogPath string `json:"catalogPath"` // "" — встроенный каталог
	ReportsDir  string `json:"reportsDir"`  // "" — встроенные отчёты

	DBDriver     string `json:"dbDriver" validate:"oneof=pgx sqlite"`
	DBURL        string `json:"dbUrl" validate:"required"`
	AutoMigrate  bool   `json:"autoMigrate"`
	MaxOpenConns int    `json:"maxOpenConns" validate:"gte=0,lte=100"`

	LogLevel       string `json:"logLevel" validate:"oneof=debug info warn error"`
	LogDevelopment bool   `json:"logDevelopment"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		DBDriver:     "sqlite",
		DBURL:        "file:dogovor.db?_pragma=foreign_keys(1)",
		AutoMigrate:  false,
		MaxOpenConns: 10,
		LogLevel:     "info",
	}
}

func loadJSON(path string) (Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) int {
	if v, ok := os.LookupEnv(k); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Load: дефолты → JSON (если файл есть) → ENV DOGOVOR_*
func Load(jsonPath string) (Config, error) {
	cfg := Default()

	if jsonPath != "" {
		if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
			c2, err := loadJSON(jsonPath)
			if err != nil {
				return cfg, fmt.Errorf("config %s: %w", jsonPath, err)
			}
			cfg = c2
		}
	}

	cfg.Port = getenv("DOGOVOR_PORT", cfg.Port)
	cfg.CatalogPath = getenv("DOGOVOR_CATALOG", cfg.CatalogPath)
	cfg.ReportsDir = getenv("DOGOVOR_REPORTS_DIR", cfg.ReportsDir)
	cfg.DBDriver = getenv("DOGOVOR_DB_DRIVER", cfg.DBDriver)
	cfg.DBURL = getenv("DOGOVOR_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("DOGOVOR_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.MaxOpenConns = getenvInt("DOGOVOR_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.LogLevel = getenv("DOGOVOR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogDevelopment = getenvBool("DOGOVOR_LOG_DEVELOPMENT", cfg.LogDevelopment)

	return cfg, nil
}

// RegisterFlags объявляет флаги; значения по умолчанию — из Default()
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "config.json", "Path to config JSON")
	fs.String("port", d.Port, "HTTP port")
	fs.String("catalog", d.CatalogPath, "Path to .dsl file or directory (empty = built-in)")
	fs.String("reports", d.ReportsDir, "Path to reports YAML directory (empty = built-in)")
	fs.String("db-driver", d.DBDriver, "Database driver (pgx/sqlite)")
	fs.String("db", d.DBURL, "Database URL / DSN")
	fs.Bool("auto-migrate", d.AutoMigrate, "Create tables on start")
	fs.Int("max-open-conns", d.MaxOpenConns, "Max open DB connections (pgx)")
	fs.String("log-level", d.LogLevel, "Log level (debug/info/warn/error)")
	fs.Bool("log-dev", d.LogDevelopment, "Human-readable development logs")
}

// ApplyFlags переносит явно заданные флаги поверх cfg
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	str := map[string]*string{
		"port":      &cfg.Port,
		"catalog":   &cfg.CatalogPath,
		"reports":   &cfg.ReportsDir,
		"db-driver": &cfg.DBDriver,
		"db":        &cfg.DBURL,
		"log-level": &cfg.LogLevel,
	}
	for name, dst := range str {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(v)
	}
	bools := map[string]*bool{
		"auto-migrate": &cfg.AutoMigrate,
		"log-dev":      &cfg.LogDevelopment,
	}
	for name, dst := range bools {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if fs.Lookup("max-open-conns") != nil && fs.Changed("max-open-conns") {
		v, err := fs.GetInt("max-open-conns")
		if err != nil {
			return err
		}
		cfg.MaxOpenConns = v
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет итоговую конфигурацию
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FromFlags — Load(--config) + флаги + проверка
func FromFlags(fs *pflag.FlagSet) (Config, error) {
	path := "config.json"
	if fs.Lookup("config") != nil {
		p, err := fs.GetString("config")
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyFlags(fs, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
