package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bisection/internal/solver"
)

// Config — настройки сервиса и CLI
type Config struct {
	// Addr — адрес HTTP-сервера
	Addr string `yaml:"addr"`

	// LogLevel — debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// LogFormat — text или json
	LogFormat string `yaml:"log_format"`

	// Evaluator — движок выражений: govaluate или expr
	Evaluator string `yaml:"evaluator"`

	// DefaultEps — допуск, если пользователь его не задал
	DefaultEps float64 `yaml:"default_eps"`

	// DBPath — путь к sqlite с историей; пустая строка отключает историю
	DBPath string `yaml:"db_path"`

	// ExportDir — каталог для выгрузки трасс из CLI
	ExportDir string `yaml:"export_dir"`

	// BatchConcurrency — сколько задач пакета решается одновременно
	BatchConcurrency int `yaml:"batch_concurrency"`

	// PlotPoints — число точек графика f на отрезке для /start
	PlotPoints int `yaml:"plot_points"`

	// MaxRuns — сколько фоновых запусков сервер держит в памяти
	MaxRuns int `yaml:"max_runs"`
}

// DefaultMaxRuns — значение MaxRuns по умолчанию
const DefaultMaxRuns = 256

// DefaultConfig возвращает настройки по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Addr:             ":8080",
		LogLevel:         "info",
		LogFormat:        "text",
		Evaluator:        string(solver.BackendGovaluate),
		DefaultEps:       solver.DefaultEps,
		DBPath:           ".bisect/history.db",
		ExportDir:        "exports",
		BatchConcurrency: 4,
		PlotPoints:       400,
		MaxRuns:          DefaultMaxRuns,
	}
}

// LoadConfig читает YAML поверх значений по умолчанию.
// Отсутствующий файл — не ошибка, битый файл — ошибка.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// указатели, чтобы отличить "не задано" от нуля
	var raw struct {
		Addr             *string  `yaml:"addr"`
		LogLevel         *string  `yaml:"log_level"`
		LogFormat        *string  `yaml:"log_format"`
		Evaluator        *string  `yaml:"evaluator"`
		DefaultEps       *float64 `yaml:"default_eps"`
		DBPath           *string  `yaml:"db_path"`
		ExportDir        *string  `yaml:"export_dir"`
		BatchConcurrency *int     `yaml:"batch_concurrency"`
		PlotPoints       *int     `yaml:"plot_points"`
		MaxRuns          *int     `yaml:"max_runs"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if raw.Addr != nil {
		cfg.Addr = *raw.Addr
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.LogFormat != nil {
		cfg.LogFormat = *raw.LogFormat
	}
	if raw.Evaluator != nil {
		cfg.Evaluator = *raw.Evaluator
	}
	if raw.DefaultEps != nil {
		cfg.DefaultEps = *raw.DefaultEps
	}
	// пустой db_path явно отключает историю
	if raw.DBPath != nil {
		cfg.DBPath = *raw.DBPath
	}
	if raw.ExportDir != nil {
		cfg.ExportDir = *raw.ExportDir
	}
	if raw.BatchConcurrency != nil {
		cfg.BatchConcurrency = *raw.BatchConcurrency
	}
	if raw.PlotPoints != nil {
		cfg.PlotPoints = *raw.PlotPoints
	}
	if raw.MaxRuns != nil {
		cfg.MaxRuns = *raw.MaxRuns
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch solver.Backend(strings.ToLower(c.Evaluator)) {
	case solver.BackendGovaluate, solver.BackendExpr:
	default:
		return fmt.Errorf("invalid evaluator %q: want govaluate or expr", c.Evaluator)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: want text or json", c.LogFormat)
	}
	if !(c.DefaultEps > 0) {
		return fmt.Errorf("default_eps must be positive, got %v", c.DefaultEps)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.PlotPoints < 2 {
		return fmt.Errorf("plot_points must be at least 2, got %d", c.PlotPoints)
	}
	if c.MaxRuns < 1 {
		return fmt.Errorf("max_runs must be at least 1, got %d", c.MaxRuns)
	}
	return nil
}

// Backend — выбранный движок выражений
func (c *Config) Backend() solver.Backend {
	return solver.Backend(strings.ToLower(c.Evaluator))
}
