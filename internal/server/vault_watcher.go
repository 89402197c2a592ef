package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"aligncv/internal/config"
	"aligncv/internal/errors"
)

// VaultClientInterface defines the interface for Vault operations
type VaultClientInterface interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// APIKeysCallback receives the API keys of a new secret version
type APIKeysCallback func(keys []string, err error)

// VaultWatcher polls the API keys secret and reports new versions. Keys
// are stored under "keys", either as a list or a comma-separated string.
type VaultWatcher struct {
	mu sync.RWMutex

	client       VaultClientInterface
	secretPath   string
	pollInterval time.Duration
	onKeys       APIKeysCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	lastCheck   time.Time
}

// NewVaultWatcher creates a new VaultWatcher
func NewVaultWatcher(client VaultClientInterface, secretPath string, pollInterval time.Duration, onKeys APIKeysCallback, logger *errors.Logger) *VaultWatcher {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &VaultWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onKeys:       onKeys,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start records the current secret version and begins polling
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}
	if vw.pollInterval <= 0 {
		return fmt.Errorf("vault watcher poll interval must be positive")
	}

	if secret, err := vw.client.GetSecretV2(vw.secretPath); err == nil && secret != nil {
		vw.lastVersion = secret.Version
	}

	vw.running = true
	go vw.pollLoop()
	vw.logger.Info("Vault watcher started", "secret_path", vw.secretPath, "poll_interval", vw.pollInterval)
	return nil
}

// Stop stops the Vault watcher
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	vw.logger.Info("Vault watcher stopped")
	return nil
}

func (vw *VaultWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vw.poll()
		case <-vw.stopChan:
			return
		}
	}
}

// poll fetches the secret once and reports its keys if the version moved
func (vw *VaultWatcher) poll() {
	secret, changed, err := vw.checkForUpdates()
	if err != nil {
		vw.logger.LogError(err, "Failed to check Vault for updates", "secret_path", vw.secretPath)
		return
	}
	if !changed {
		return
	}

	keys, err := apiKeysFromSecret(secret)
	if err != nil {
		vw.logger.LogError(err, "New API keys secret is unusable", "secret_path", vw.secretPath)
		vw.onKeys(nil, err)
		return
	}
	vw.logger.Info("API keys rotated in Vault", "version", secret.Version, "count", len(keys))
	vw.onKeys(keys, nil)
}

// checkForUpdates reads the secret and reports whether its version is newer
// than the last one seen
func (vw *VaultWatcher) checkForUpdates() (*config.VaultSecret, bool, error) {
	secret, err := vw.client.GetSecretV2(vw.secretPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return nil, false, fmt.Errorf("secret %s not found", vw.secretPath)
	}

	vw.mu.Lock()
	defer vw.mu.Unlock()
	vw.lastCheck = time.Now()
	if secret.Version > vw.lastVersion {
		vw.lastVersion = secret.Version
		return secret, true, nil
	}
	return secret, false, nil
}

func apiKeysFromSecret(secret *config.VaultSecret) ([]string, error) {
	var keys []string
	switch raw := secret.Data["keys"].(type) {
	case string:
		keys = strings.Split(raw, ",")
	case []string:
		keys = raw
	case []any:
		for _, v := range raw {
			if s, ok := v.(string); ok {
				keys = append(keys, s)
			}
		}
	default:
		return nil, fmt.Errorf("secret has no usable \"keys\" field")
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("secret defines no API keys")
	}
	return out, nil
}

// Status returns the current status of the VaultWatcher for stats reporting
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"secret_path":   vw.secretPath,
		"last_version":  vw.lastVersion,
		"last_check":    vw.lastCheck,
	}
}

// startVaultWatcher keeps the server's API keys in sync with Vault
func (s *Server) startVaultWatcher(client VaultClientInterface) error {
	vault := s.AppConfig.Vault
	if client == nil || !vault.Watcher.Enabled || vault.Secrets.APIKeys == "" {
		return nil
	}

	s.vaultWatcher = NewVaultWatcher(client, vault.Secrets.APIKeys, vault.Watcher.PollInterval,
		func(keys []string, err error) {
			if err != nil {
				return
			}
			s.SetAPIKeys(keys)
		}, s.Logger)
	return s.vaultWatcher.Start()
}
