package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"aligncv/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	// Secret paths
	Secrets VaultSecrets `mapstructure:"secrets"`

	// Watcher polls the API keys secret and swaps keys in the running server
	Watcher VaultWatcherConfig `mapstructure:"watcher"`
}

// VaultWatcherConfig holds configuration for polling Vault for key rotation
type VaultWatcherConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// VaultSecrets defines where to find secrets in Vault
type VaultSecrets struct {
	// APIKeys expects a single string with comma-separated values in Vault
	// Example format: "key1,key2,key3"
	// The first key will be used as the primary key, others as fallbacks
	APIKeys   string `mapstructure:"apiKeys"`   // Path to API keys secret
	GeminiKey string `mapstructure:"geminiKey"` // Path to Gemini API key
	Storage   string `mapstructure:"storage"`   // Path to object storage credentials (access_key, secret_key)
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	client *api.Client
	config VaultConfig
	logger *errors.Logger
}

// NewVaultClient creates a new Vault client from configuration. It returns
// nil when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if !config.Enabled {
		logger.Debug("Vault integration disabled")
		return nil, nil
	}

	logger.Debug("Initializing Vault client",
		"address", config.Address,
		"namespace", config.Namespace,
		"token_file", config.TokenFile,
		"has_token", config.Token != "")

	apiConfig := api.DefaultConfig()
	if config.Address != "" {
		apiConfig.Address = config.Address
	}
	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config, logger)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		logger.LogError(err, "Failed to connect to Vault", "address", config.Address)
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	logger.Info("Successfully connected to Vault",
		"address", config.Address,
		"version", health.Version,
		"sealed", health.Sealed)

	return &VaultClient{client: client, config: config, logger: logger}, nil
}

// resolveVaultToken prefers the configured token over the token file.
func resolveVaultToken(config VaultConfig, logger *errors.Logger) (string, error) {
	token := config.Token
	if token == "" && config.TokenFile != "" {
		logger.Debug("Reading Vault token from file", "file", config.TokenFile)
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}
	vc.logger.Debug("Reading secret from Vault", "path", path)

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}
	return kvSecret(secret, path)
}

// kvSecret unwraps the data and metadata envelope of a KVv2 read.
func kvSecret(secret *api.Secret, path string) (*VaultSecret, error) {
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	versionRaw, ok := metadata["version"]
	if !ok {
		return nil, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	version, err := parseVersionValue(versionRaw, path)
	if err != nil {
		return nil, err
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// String returns the string stored under key.
func (s *VaultSecret) String(key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret", key)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string", key)
	}
	return str, nil
}

// secretLoader copies one Vault secret into the config.
type secretLoader struct {
	name  string
	path  func(VaultSecrets) string
	apply func(*Config, *VaultSecret, *errors.Logger) error
}

var secretLoaders = []secretLoader{
	{name: "API keys", path: func(s VaultSecrets) string { return s.APIKeys }, apply: applyAPIKeys},
	{name: "Gemini API key", path: func(s VaultSecrets) string { return s.GeminiKey }, apply: applyGeminiKey},
	{name: "storage credentials", path: func(s VaultSecrets) string { return s.Storage }, apply: applyStorageCredentials},
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if !config.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}

	logger.Info("Loading secrets from Vault",
		"api_keys_path", config.Vault.Secrets.APIKeys,
		"gemini_key_path", config.Vault.Secrets.GeminiKey,
		"storage_path", config.Vault.Secrets.Storage)

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		logger.LogError(err, "Failed to initialize Vault client")
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	if client == nil {
		return nil
	}

	for _, loader := range secretLoaders {
		path := loader.path(config.Vault.Secrets)
		if path == "" {
			continue
		}
		secret, err := client.GetSecretV2(path)
		if err == nil {
			err = loader.apply(config, secret, logger)
		}
		if err != nil {
			logger.LogError(err, "Failed to load "+loader.name+" from Vault", "path", path)
			return fmt.Errorf("failed to load %s from vault: %w", loader.name, err)
		}
	}

	logger.Info("Successfully completed applying secrets from Vault")
	return nil
}

// applyAPIKeys expects a comma-separated "keys" field.
func applyAPIKeys(config *Config, secret *VaultSecret, logger *errors.Logger) error {
	value, err := secret.String("keys")
	if err != nil {
		return err
	}
	var keys []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keys = append(keys, part)
		}
	}
	if len(keys) == 0 {
		logger.Warn("No API keys found in Vault")
		return nil
	}
	config.Server.APIKeys = keys
	logger.Info("API keys loaded from Vault", "count", len(keys))
	return nil
}

func applyGeminiKey(config *Config, secret *VaultSecret, logger *errors.Logger) error {
	key, err := secret.String("api_key")
	if err != nil {
		return err
	}
	if key == "" {
		logger.Warn("Empty Gemini API key found in Vault")
		return nil
	}
	applyGeminiKeyToConfig(config, key)
	logger.Info("Gemini API key loaded from Vault and applied to AI and embedding configurations")
	return nil
}

// applyGeminiKeyToConfig applies the Gemini API key to the AI and embedding configurations
func applyGeminiKeyToConfig(config *Config, geminiKey string) {
	config.AI.APIKey = geminiKey
	if config.AI.Optimize.APIKey == "" {
		config.AI.Optimize.APIKey = geminiKey
	}
	if config.Similarity.APIKey == "" {
		config.Similarity.APIKey = geminiKey
	}
}

// applyStorageCredentials copies whichever credential fields the secret holds.
func applyStorageCredentials(config *Config, secret *VaultSecret, logger *errors.Logger) error {
	fields := map[string]*string{
		"access_key": &config.Storage.AccessKey,
		"secret_key": &config.Storage.SecretKey,
		"bucket":     &config.Storage.Bucket,
		"endpoint":   &config.Storage.Endpoint,
	}
	count := 0
	for key, target := range fields {
		if content, ok := secret.Data[key].(string); ok && content != "" {
			*target = content
			count++
		}
	}
	logger.Info("Storage credentials loaded from Vault", "fields_loaded", count)
	return nil
}
