package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del análisis de cartera.
type Config struct {
	Optimizer  OptimizerConfig  `yaml:"optimizer"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Flex       FlexConfig       `yaml:"flex"`
	Storage    StorageConfig    `yaml:"storage"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`
}

// OptimizerConfig controla la búsqueda Monte Carlo.
type OptimizerConfig struct {
	Trials              int     `yaml:"trials"`
	AnnualizationFactor float64 `yaml:"annualization_factor"` // periodos por año (252 diario)
	Seed                uint64  `yaml:"seed"`                 // 0 = semilla del reloj
	RetainTrials        bool    `yaml:"retain_trials"`
}

// MarketDataConfig controla el cliente de precios históricos.
type MarketDataConfig struct {
	BaseURL           string  `yaml:"base_url"` // vacío = hosts públicos de Yahoo
	Range             string  `yaml:"range"`
	Interval          string  `yaml:"interval"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Concurrency       int     `yaml:"concurrency"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// AnalysisConfig controla el analista externo.
type AnalysisConfig struct {
	Provider       string `yaml:"provider"` // gemini | openai
	Model          string `yaml:"model"`
	PromptFile     string `yaml:"prompt_file"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxFileBytes   int    `yaml:"max_file_bytes"`
	BaseURL        string `yaml:"base_url"`

	GeminiAPIKey string `yaml:"-"`
	OpenAIAPIKey string `yaml:"-"`
}

// FlexConfig contiene las credenciales del Flex Web Service de IB.
type FlexConfig struct {
	Token   string `yaml:"token"`
	QueryID string `yaml:"query_id"`
	BaseURL string `yaml:"base_url"`
}

// StorageConfig controla dónde se persiste el historial.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, ":memory:", o vacío para desactivar
}

// OutputConfig controla dónde se escriben los informes.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`   // opcional, además de stdout
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Si path no existe se usan solo entorno y defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

// Validate rechaza valores que harían fallar la optimización o el análisis.
func (c *Config) Validate() error {
	if c.Optimizer.Trials <= 0 {
		return fmt.Errorf("config: optimizer.trials must be positive, got %d", c.Optimizer.Trials)
	}
	if c.Optimizer.AnnualizationFactor <= 0 {
		return fmt.Errorf("config: optimizer.annualization_factor must be positive, got %g", c.Optimizer.AnnualizationFactor)
	}
	switch c.Analysis.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config: unknown analysis.provider %q", c.Analysis.Provider)
	}
	return nil
}

// APIKey devuelve la clave del proveedor de análisis configurado.
func (c *Config) APIKey() string {
	if c.Analysis.Provider == "openai" {
		return c.Analysis.OpenAIAPIKey
	}
	return c.Analysis.GeminiAPIKey
}

// MarketDataTimeout devuelve el timeout HTTP como time.Duration.
func (c *Config) MarketDataTimeout() time.Duration {
	return time.Duration(c.MarketData.TimeoutSeconds) * time.Second
}

// AnalysisTimeout devuelve el timeout del analista como time.Duration.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Analysis.GeminiAPIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Analysis.GeminiAPIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Analysis.OpenAIAPIKey = v
	}
	if v := os.Getenv("IB_FLEX_TOKEN"); v != "" {
		cfg.Flex.Token = v
	}
	if v := os.Getenv("IB_FLEX_QUERY_ID"); v != "" {
		cfg.Flex.QueryID = v
	}
	if v := os.Getenv("PORTFOLIO_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PORTFOLIO_SEED: %w", err)
		}
		cfg.Optimizer.Seed = seed
	}
	return nil
}

// setDefaults asegura que los valores no configurados tengan valores sensatos.
// Los negativos se dejan para que Validate los rechace.
func setDefaults(cfg *Config) {
	if cfg.Optimizer.Trials == 0 {
		cfg.Optimizer.Trials = 1000
	}
	if cfg.Optimizer.AnnualizationFactor == 0 {
		cfg.Optimizer.AnnualizationFactor = 252
	}
	if cfg.MarketData.Range == "" {
		cfg.MarketData.Range = "1y"
	}
	if cfg.MarketData.Interval == "" {
		cfg.MarketData.Interval = "1d"
	}
	if cfg.MarketData.RequestsPerSecond <= 0 {
		cfg.MarketData.RequestsPerSecond = 2
	}
	if cfg.MarketData.Concurrency <= 0 {
		cfg.MarketData.Concurrency = 4
	}
	if cfg.MarketData.TimeoutSeconds <= 0 {
		cfg.MarketData.TimeoutSeconds = 15
	}
	if cfg.Analysis.Provider == "" {
		cfg.Analysis.Provider = "gemini"
	}
	if cfg.Analysis.Model == "" && cfg.Analysis.Provider == "gemini" {
		cfg.Analysis.Model = "gemini-2.5-flash"
	}
	if cfg.Analysis.TimeoutSeconds <= 0 {
		cfg.Analysis.TimeoutSeconds = 300
	}
	if cfg.Analysis.MaxFileBytes <= 0 {
		cfg.Analysis.MaxFileBytes = 256 << 10
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
