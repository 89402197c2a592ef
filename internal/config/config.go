package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (ALIGNCV_AI_APIKEY, GOOGLE_API_KEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Similarity    SimilarityConfig    `mapstructure:"similarity"`
	Matching      MatchingConfig      `mapstructure:"matching"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds generative AI configuration
type AIConfig struct {
	// Global/fallback configuration
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	APIKey         string        `mapstructure:"apiKey"`
	Temperature    float32       `mapstructure:"temperature"`
	TopP           float32       `mapstructure:"topP"`
	TopK           float32       `mapstructure:"topK"`
	CandidateCount int32         `mapstructure:"candidateCount"`
	CustomPrompts  PromptConfig  `mapstructure:"customPrompts"`

	// WatchPromptFiles reloads prompt files on change while serving
	WatchPromptFiles bool `mapstructure:"watchPromptFiles"`

	// Operation-specific configuration
	Optimize OperationAIConfig `mapstructure:"optimize"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for a specific operation.
// Nil pointers fall back to the global AIConfig values.
type OperationAIConfig struct {
	Provider       string               `mapstructure:"provider"`
	Model          string               `mapstructure:"model"`
	Timeout        *time.Duration       `mapstructure:"timeout"`
	APIKey         string               `mapstructure:"apiKey"`
	Temperature    *float32             `mapstructure:"temperature"`
	TopP           *float32             `mapstructure:"topP"`
	TopK           *float32             `mapstructure:"topK"`
	CandidateCount *int32               `mapstructure:"candidateCount"`
	CustomPrompts  PromptConfig         `mapstructure:"customPrompts"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig holds configuration for customizable prompts
type PromptConfig struct {
	SystemPrompt       string `mapstructure:"systemPrompt"`
	SystemPromptFile   string `mapstructure:"systemPromptFile"`
	OptimizeResume     string `mapstructure:"optimizeResume"`
	OptimizeResumeFile string `mapstructure:"optimizeResumeFile"`
}

// SimilarityConfig selects the sentence-embedding backend
type SimilarityConfig struct {
	Provider string        `mapstructure:"provider"` // "auto", "gemini", "tei" or "none"
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"` // TEI base URL, or a Gemini API base URL override
	APIKey   string        `mapstructure:"apiKey"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ResolvedProvider returns the backend to load. "auto" picks gemini when an
// API key is available and none otherwise.
func (s SimilarityConfig) ResolvedProvider() string {
	if s.Provider != "" && s.Provider != "auto" {
		return s.Provider
	}
	if s.APIKey != "" {
		return "gemini"
	}
	return "none"
}

// MatchingConfig holds scoring thresholds and vocabularies.
// Empty vocabularies fall back to the built-in lists.
type MatchingConfig struct {
	ExperienceTolerance   int           `mapstructure:"experienceTolerance"`
	RoleMismatchThreshold int           `mapstructure:"roleMismatchThreshold"`
	SuggestionCount       int           `mapstructure:"suggestionCount"`
	SuggestionMinWeight   float64       `mapstructure:"suggestionMinWeight"`
	DefaultMinMatch       float64       `mapstructure:"defaultMinMatch"`
	DefaultRequiredMatch  float64       `mapstructure:"defaultRequiredMatch"`
	RoleKeywords          []string      `mapstructure:"roleKeywords"`
	SuggestionBlocklist   []string      `mapstructure:"suggestionBlocklist"`
	VocabularyFile        string        `mapstructure:"vocabularyFile"`
	WatchVocabulary       bool          `mapstructure:"watchVocabulary"`
	DebounceDelay         time.Duration `mapstructure:"debounceDelay"`
}

// PrivacyConfig holds PII detection configuration
type PrivacyConfig struct {
	Detector         string            `mapstructure:"detector"` // "regex", "presidio" or "composite"
	Language         string            `mapstructure:"language"`
	PresidioEndpoint string            `mapstructure:"presidioEndpoint"`
	ScoreThreshold   float64           `mapstructure:"scoreThreshold"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	Entities         []string          `mapstructure:"entities"`       // enabled built-in regex entities, empty = all
	CustomPatterns   map[string]string `mapstructure:"customPatterns"` // entity type -> regex
	RequireDetection bool              `mapstructure:"requireDetection"`
}

// StorageConfig selects where optimized resumes and worker results are written
type StorageConfig struct {
	Backend      string `mapstructure:"backend"` // "file", "s3" or "none"
	Directory    string `mapstructure:"directory"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"accessKey"`
	SecretKey    string `mapstructure:"secretKey"`
	Prefix       string `mapstructure:"prefix"`
	UsePathStyle bool   `mapstructure:"usePathStyle"`
}

// QueueConfig holds RabbitMQ worker configuration
type QueueConfig struct {
	URL      string `mapstructure:"url"`
	Queue    string `mapstructure:"queue"`
	Exchange string `mapstructure:"exchange"`
	Workers  int    `mapstructure:"workers"`
	Prefetch int    `mapstructure:"prefetch"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`
	CORSOrigins    []string      `mapstructure:"corsOrigins"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for authentication

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
	Window         time.Duration `mapstructure:"window"`         // Rate limiting window duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig   `mapstructure:"healthCheck"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	AIOperations    AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig holds AI operation metrics configuration
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
	TrackModelInfo  bool `mapstructure:"trackModelInfo"`
}

// BusinessMetricsConfig holds business metrics configuration
type BusinessMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackSuccessRates bool `mapstructure:"trackSuccessRates"`
	TrackContentSizes bool `mapstructure:"trackContentSizes"`
	TrackMatchScores  bool `mapstructure:"trackMatchScores"`
	TrackPIIEntities  bool `mapstructure:"trackPIIEntities"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("ALIGNCV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'ALIGNCV'")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/aligncv/")
	v.AddConfigPath("$HOME/.aligncv")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/aligncv/, $HOME/.aligncv, .")

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.applyVocabularyFile(); err != nil {
		return nil, fmt.Errorf("failed to load vocabulary file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid. A missing AI key is not an
// error: analysis works without it and optimization reports it per request.
func (c *Config) Validate() error {
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.validateMatching(); err != nil {
		return fmt.Errorf("matching configuration error: %w", err)
	}

	switch c.Similarity.Provider {
	case "", "auto", "gemini", "tei", "none":
	default:
		return fmt.Errorf("invalid similarity provider: %s (must be 'auto', 'gemini', 'tei' or 'none')", c.Similarity.Provider)
	}
	if c.Similarity.Provider == "tei" && c.Similarity.Endpoint == "" {
		return fmt.Errorf("similarity endpoint is required for the tei provider")
	}

	switch c.Privacy.Detector {
	case "regex":
	case "presidio", "composite":
		if c.Privacy.PresidioEndpoint == "" {
			return fmt.Errorf("privacy.presidioEndpoint is required for the %s detector", c.Privacy.Detector)
		}
	default:
		return fmt.Errorf("invalid PII detector: %s (must be 'regex', 'presidio' or 'composite')", c.Privacy.Detector)
	}

	switch c.Storage.Backend {
	case "none":
	case "file":
		if c.Storage.Directory == "" {
			return fmt.Errorf("storage directory is required for the file backend")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be 'file', 's3' or 'none')", c.Storage.Backend)
	}

	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.ExperienceTolerance < 0 {
		return fmt.Errorf("experienceTolerance must not be negative")
	}
	if m.RoleMismatchThreshold < 1 {
		return fmt.Errorf("roleMismatchThreshold must be at least 1")
	}
	if m.SuggestionCount < 0 {
		return fmt.Errorf("suggestionCount must not be negative")
	}
	for name, value := range map[string]float64{
		"defaultMinMatch":      m.DefaultMinMatch,
		"defaultRequiredMatch": m.DefaultRequiredMatch,
		"suggestionMinWeight":  m.SuggestionMinWeight,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, value)
		}
	}
	return nil
}
