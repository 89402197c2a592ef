package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LoadedPrompts holds the content of prompts loaded from files
type LoadedPrompts struct {
	SystemPrompt   string
	OptimizeResume string
}

// AllLoadedPrompts holds the global and per-operation prompt files
type AllLoadedPrompts struct {
	Global   LoadedPrompts
	Optimize LoadedPrompts
}

var (
	loadedPrompts   AllLoadedPrompts
	loadedPromptsMu sync.RWMutex
)

// GetPromptsForOperation returns a copy of the loaded prompts for an
// operation, falling back to the global files for unset entries
func GetPromptsForOperation(operationType string) LoadedPrompts {
	loadedPromptsMu.RLock()
	defer loadedPromptsMu.RUnlock()

	global := loadedPrompts.Global
	if operationType != "optimize" {
		return global
	}

	result := loadedPrompts.Optimize
	if result.SystemPrompt == "" {
		result.SystemPrompt = global.SystemPrompt
	}
	if result.OptimizeResume == "" {
		result.OptimizeResume = global.OptimizeResume
	}
	return result
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	var loaded AllLoadedPrompts
	if err := c.loadPromptSet(&c.AI.CustomPrompts, &loaded.Global, "global"); err != nil {
		return fmt.Errorf("failed to load global prompts: %w", err)
	}
	if err := c.loadPromptSet(&c.AI.Optimize.CustomPrompts, &loaded.Optimize, "optimize"); err != nil {
		return fmt.Errorf("failed to load optimize prompts: %w", err)
	}

	loadedPromptsMu.Lock()
	loadedPrompts = loaded
	loadedPromptsMu.Unlock()

	c.logPromptLoadingSummary(loaded)
	return nil
}

func (c *Config) loadPromptSet(prompts *PromptConfig, target *LoadedPrompts, scope string) error {
	if prompts.SystemPromptFile != "" {
		content, err := loadPromptFromFile(prompts.SystemPromptFile, "system", scope)
		if err != nil {
			return err
		}
		target.SystemPrompt = content
	}
	if prompts.OptimizeResumeFile != "" {
		content, err := loadPromptFromFile(prompts.OptimizeResumeFile, "user", scope)
		if err != nil {
			return err
		}
		target.OptimizeResume = content
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, scope string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", scope, promptType, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", scope, promptType, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", scope, promptType, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", scope, promptType, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		scope, promptType, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// PromptFiles lists the configured prompt files.
func (c *Config) PromptFiles() []string {
	var files []string
	for _, f := range []string{
		c.AI.CustomPrompts.SystemPromptFile,
		c.AI.CustomPrompts.OptimizeResumeFile,
		c.AI.Optimize.CustomPrompts.SystemPromptFile,
		c.AI.Optimize.CustomPrompts.OptimizeResumeFile,
	} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// ReloadPrompts re-reads the prompt files. The previously loaded prompts stay
// in effect when any file fails to load.
func (c *Config) ReloadPrompts() error {
	return c.loadPromptsFromFiles()
}

// validatePromptFiles validates that prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, description string) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s prompt: %s", description, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s prompt file not found: %s", description, absPath))
		}
	}

	validateFile(c.AI.CustomPrompts.SystemPromptFile, "global system")
	validateFile(c.AI.CustomPrompts.OptimizeResumeFile, "global user")
	validateFile(c.AI.Optimize.CustomPrompts.SystemPromptFile, "optimize system")
	validateFile(c.AI.Optimize.CustomPrompts.OptimizeResumeFile, "optimize user")

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}

func (c *Config) logPromptLoadingSummary(loaded AllLoadedPrompts) {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	count := 0
	for _, check := range []struct {
		content string
		message string
	}{
		{loaded.Global.SystemPrompt, "[CONFIG] Global system prompt: loaded from file"},
		{loaded.Global.OptimizeResume, "[CONFIG] Global optimize prompt: loaded from file"},
		{loaded.Optimize.SystemPrompt, "[CONFIG] Optimize-specific system prompt: loaded from file"},
		{loaded.Optimize.OptimizeResume, "[CONFIG] Optimize-specific user prompt: loaded from file"},
	} {
		if check.content != "" {
			log.Println(check.message)
			count++
		}
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
	log.Println("[CONFIG] ==========================================")
}
