package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the scribe API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// ExtractionConfig holds document extraction settings.
type ExtractionConfig struct {
	// Parallelism caps concurrent PDF parses per request.
	Parallelism int `yaml:"parallelism"`
	// MaxDocuments caps the number of content documents per request.
	MaxDocuments int `yaml:"max_documents"`
}

// BudgetConfig holds embedding token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	TimeoutSec int          `yaml:"timeout_sec"`
	Budget     BudgetConfig `yaml:"budget"`
}

// RetrievalConfig holds chunking and lookup settings for per-request indexes.
type RetrievalConfig struct {
	ChunkChars int    `yaml:"chunk_chars"`
	TopK       int    `yaml:"top_k"`
	Query      string `yaml:"query"`
}

// ModelConfig binds a public model identifier to a generation provider.
// Upstream overrides the model name sent to the provider; empty means the
// public identifier is used as-is.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Upstream string `yaml:"upstream"`
}

// OpenAIProviderConfig holds OpenAI-compatible chat completion settings.
type OpenAIProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// VertexProviderConfig holds Google Vertex AI settings.
type VertexProviderConfig struct {
	ProjectID string `yaml:"project_id"`
	Region    string `yaml:"region"`
}

// GenerationConfig holds generation provider and pipeline settings.
type GenerationConfig struct {
	OpenAI             OpenAIProviderConfig   `yaml:"openai"`
	Vertex             VertexProviderConfig   `yaml:"vertex"`
	Models             map[string]ModelConfig `yaml:"models"`
	DefaultTemplate    string                 `yaml:"default_template"`
	DefaultTemperature float32                `yaml:"default_temperature"`
	TimeoutSec         int                    `yaml:"timeout_sec"`
	MaxRetries         int                    `yaml:"max_retries"`
}

// DefaultTemplate is the prompt used when the caller does not edit it. It
// carries the two placeholders every template must have.
const DefaultTemplate = `Write an article using the style of this document {style}. ` +
	`Replicate its approach to generating titles and subheading. Ensure that the subheadings ` +
	`relate to the content that follows to be as helpful as possible to the reader.  Think ` +
	`carefully about the principles of a good headline and apply these principles to make the ` +
	`headline as relevant, catchy and compelling as you can to encourage readership. Put a ` +
	`newline after each title and subheading. For the article base it only on the following ` +
	`content: {context}. Use only the content do not publish the names of the people ` +
	`responsible for the research.`

// DefaultRetrievalQuery seeds similarity lookup in both indexes.
const DefaultRetrievalQuery = "Please write an article in this style"

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Generation calls are slow; the write timeout must outlive them.
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 64
	}
	if c.Extraction.Parallelism <= 0 {
		c.Extraction.Parallelism = 4
	}
	if c.Extraction.MaxDocuments <= 0 {
		c.Extraction.MaxDocuments = 16
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Retrieval.ChunkChars <= 0 {
		c.Retrieval.ChunkChars = 1200
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.Query == "" {
		c.Retrieval.Query = DefaultRetrievalQuery
	}
	if c.Generation.DefaultTemplate == "" {
		c.Generation.DefaultTemplate = DefaultTemplate
	}
	if c.Generation.DefaultTemperature <= 0 {
		c.Generation.DefaultTemperature = 0.7
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 120
	}
	if c.Generation.MaxRetries < 0 {
		c.Generation.MaxRetries = 0
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Generation.Models) == 0 {
		return fmt.Errorf("generation.models must list at least one model")
	}
	for name, m := range c.Generation.Models {
		switch m.Provider {
		case "openai", "vertex":
			// ok
		default:
			return fmt.Errorf(
				"generation.models.%s.provider must be \"openai\" or \"vertex\", got %q",
				name, m.Provider,
			)
		}
	}
	if c.Generation.DefaultTemperature < 0 || c.Generation.DefaultTemperature > 1 {
		return fmt.Errorf(
			"generation.default_temperature must be in [0, 1], got %f",
			c.Generation.DefaultTemperature,
		)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	if !strings.Contains(c.Generation.DefaultTemplate, "{style}") ||
		!strings.Contains(c.Generation.DefaultTemplate, "{context}") {
		return fmt.Errorf("generation.default_template must contain {style} and {context}")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
