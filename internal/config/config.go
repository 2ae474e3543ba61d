package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigName is looked up in the working directory when no --config is given
	DefaultConfigName = "resume-matcher.yaml"
	// EnvPrefix prefixes every environment override, e.g. RESUME_MATCHER_SCORER_BACKEND
	EnvPrefix = "RESUME_MATCHER"
)

// Scorer backend names
const (
	BackendSimilarity = "similarity"
	BackendVertex     = "vertex"
	BackendGemini     = "gemini"
)

// Config holds application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Scorer     ScorerConfig     `mapstructure:"scorer"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Vertex     VertexConfig     `mapstructure:"vertex"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	MaxUploadMB  int64         `mapstructure:"max-upload-mb" validate:"min=1"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
}

type PathsConfig struct {
	UploadsDir string `mapstructure:"uploads-dir" validate:"required"`
	OutputDir  string `mapstructure:"output-dir" validate:"required"`
	DataDir    string `mapstructure:"data-dir" validate:"required"`
}

type ScorerConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=similarity vertex gemini"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SimilarityConfig configures the similarity backend. An empty Command selects
// the built-in cosine similarity; otherwise the command is run with the resume
// and job description text file paths appended.
type SimilarityConfig struct {
	Command []string `mapstructure:"command"`
}

type VertexConfig struct {
	Project         string `mapstructure:"project"`
	Location        string `mapstructure:"location"`
	Model           string `mapstructure:"model"`
	CredentialsFile string `mapstructure:"credentials-file"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api-key"`
	Model  string `mapstructure:"model"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":5000",
			MaxUploadMB:  64,
			ReadTimeout:  time.Minute,
			WriteTimeout: 30 * time.Minute,
		},
		Paths: PathsConfig{
			UploadsDir: "uploads",
			OutputDir:  "output",
			DataDir:    "data",
		},
		Scorer: ScorerConfig{
			Backend: BackendSimilarity,
		},
		Vertex: VertexConfig{
			Location: "us-central1",
			Model:    "gemini-1.5-flash",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
	}
}

// setDefaults registers every key so environment overrides are picked up by Unmarshal
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max-upload-mb", d.Server.MaxUploadMB)
	v.SetDefault("server.read-timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write-timeout", d.Server.WriteTimeout)
	v.SetDefault("paths.uploads-dir", d.Paths.UploadsDir)
	v.SetDefault("paths.output-dir", d.Paths.OutputDir)
	v.SetDefault("paths.data-dir", d.Paths.DataDir)
	v.SetDefault("scorer.backend", d.Scorer.Backend)
	v.SetDefault("scorer.timeout", d.Scorer.Timeout)
	v.SetDefault("similarity.command", []string{})
	v.SetDefault("vertex.project", "")
	v.SetDefault("vertex.location", d.Vertex.Location)
	v.SetDefault("vertex.model", d.Vertex.Model)
	v.SetDefault("vertex.credentials-file", "")
	v.SetDefault("gemini.api-key", "")
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

// Load reads configuration from path (or DefaultConfigName in the working
// directory when path is empty), a .env file and RESUME_MATCHER_* variables.
// A missing default config file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if _, err := os.Stat(DefaultConfigName); err == nil {
		v.SetConfigFile(DefaultConfigName)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Gemini tooling conventionally reads the key from GEMINI_API_KEY
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Vertex.Project == "" {
		cfg.Vertex.Project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config value for %s: failed %q check", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Scorer.Backend {
	case BackendVertex:
		if c.Vertex.Project == "" {
			return fmt.Errorf("vertex.project is required for the vertex backend")
		}
		if c.Vertex.Location == "" {
			return fmt.Errorf("vertex.location is required for the vertex backend")
		}
		if c.Vertex.CredentialsFile != "" {
			if _, err := os.Stat(c.Vertex.CredentialsFile); err != nil {
				return fmt.Errorf("vertex credentials file not found: %w", err)
			}
		}
	case BackendGemini:
		if strings.TrimSpace(c.Gemini.APIKey) == "" {
			return fmt.Errorf("gemini.api-key is required for the gemini backend")
		}
	}

	if c.Scorer.Timeout < 0 {
		return fmt.Errorf("scorer.timeout must not be negative")
	}

	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
