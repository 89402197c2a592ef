package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemPromptContent := "Test system prompt for optimization"
	userPromptContent := "Rewrite %s for %s"

	systemPromptFile := filepath.Join(tempDir, "system.optimize.md")
	userPromptFile := filepath.Join(tempDir, "user.optimize.md")

	if err := os.WriteFile(systemPromptFile, []byte(systemPromptContent), 0600); err != nil {
		t.Fatalf("Failed to create test system prompt file: %v", err)
	}
	if err := os.WriteFile(userPromptFile, []byte(userPromptContent), 0600); err != nil {
		t.Fatalf("Failed to create test user prompt file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			Optimize: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPromptFile:   systemPromptFile,
					OptimizeResumeFile: userPromptFile,
				},
			},
		},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	loaded := GetPromptsForOperation("optimize")
	if loaded.SystemPrompt != systemPromptContent {
		t.Errorf("Expected loaded system prompt content '%s', got '%s'", systemPromptContent, loaded.SystemPrompt)
	}
	if loaded.OptimizeResume != userPromptContent {
		t.Errorf("Expected loaded user prompt content '%s', got '%s'", userPromptContent, loaded.OptimizeResume)
	}

	if config.AI.Optimize.CustomPrompts.SystemPromptFile != systemPromptFile {
		t.Error("Expected system prompt file path to be preserved")
	}
}

func TestGetPromptsForOperationFallsBackToGlobal(t *testing.T) {
	tempDir := t.TempDir()
	globalFile := filepath.Join(tempDir, "global.md")
	if err := os.WriteFile(globalFile, []byte("global template"), 0600); err != nil {
		t.Fatalf("Failed to create prompt file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{OptimizeResumeFile: globalFile},
		},
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	if got := GetPromptsForOperation("optimize").OptimizeResume; got != "global template" {
		t.Errorf("Expected optimize prompt to fall back to global file, got '%s'", got)
	}
	if got := GetPromptsForOperation("optimize").SystemPrompt; got != "" {
		t.Errorf("Expected no system prompt, got '%s'", got)
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()

	validFile := filepath.Join(tempDir, "valid.md")
	if err := os.WriteFile(validFile, []byte("Valid content"), 0600); err != nil {
		t.Fatalf("Failed to create valid test file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			Optimize: OperationAIConfig{
				CustomPrompts: PromptConfig{SystemPromptFile: validFile},
			},
		},
	}

	if err := config.validatePromptFiles(); err != nil {
		t.Errorf("Expected validation to pass for valid file, got error: %v", err)
	}

	config.AI.Optimize.CustomPrompts.SystemPromptFile = filepath.Join(tempDir, "nonexistent.md")
	if err := config.validatePromptFiles(); err == nil {
		t.Error("Expected validation to fail for non-existent file")
	}
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()

	content := "Test prompt content"
	testFile := filepath.Join(tempDir, "test.md")
	if err := os.WriteFile(testFile, []byte("  "+content+"\n"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	loadedContent, err := loadPromptFromFile(testFile, "system", "optimize")
	if err != nil {
		t.Fatalf("Failed to load prompt from file: %v", err)
	}
	if loadedContent != content {
		t.Errorf("Expected content '%s', got '%s'", content, loadedContent)
	}

	emptyFile := filepath.Join(tempDir, "empty.md")
	if err := os.WriteFile(emptyFile, []byte(""), 0600); err != nil {
		t.Fatalf("Failed to create empty test file: %v", err)
	}
	if _, err := loadPromptFromFile(emptyFile, "system", "optimize"); err == nil {
		t.Error("Expected error for empty file")
	}

	if _, err := loadPromptFromFile(filepath.Join(tempDir, "nonexistent.md"), "system", "optimize"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestGetOptimizeConfigFallbacks(t *testing.T) {
	timeout := 30 * time.Second
	temperature := float32(0.2)
	config := &Config{
		AI: AIConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			Timeout:        90 * time.Second,
			APIKey:         "global-key",
			Temperature:    0.7,
			TopP:           0.9,
			TopK:           40,
			CandidateCount: 1,
			Optimize: OperationAIConfig{
				Timeout:     &timeout,
				Temperature: &temperature,
			},
		},
	}

	opCfg := config.GetOptimizeConfig()
	if opCfg.Model != "gemini-2.5-flash" || opCfg.APIKey != "global-key" {
		t.Errorf("Expected global model and key, got %s / %s", opCfg.Model, opCfg.APIKey)
	}
	if *opCfg.Timeout != timeout {
		t.Errorf("Expected operation timeout %v, got %v", timeout, *opCfg.Timeout)
	}
	if *opCfg.Temperature != 0.2 || *opCfg.TopP != 0.9 || *opCfg.TopK != 40 || *opCfg.CandidateCount != 1 {
		t.Errorf("Unexpected sampling config: temp=%v topP=%v topK=%v candidates=%v",
			*opCfg.Temperature, *opCfg.TopP, *opCfg.TopK, *opCfg.CandidateCount)
	}
	if !config.HasAICredentials() {
		t.Error("Expected credentials to be reported as present")
	}
}

func TestReloadPromptsKeepsPreviousOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	promptFile := filepath.Join(tempDir, "user.md")
	if err := os.WriteFile(promptFile, []byte("first %s %s"), 0600); err != nil {
		t.Fatalf("Failed to create prompt file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			Optimize: OperationAIConfig{
				CustomPrompts: PromptConfig{OptimizeResumeFile: promptFile},
			},
		},
	}
	if got := config.PromptFiles(); len(got) != 1 || got[0] != promptFile {
		t.Fatalf("Expected prompt files [%s], got %v", promptFile, got)
	}

	if err := config.ReloadPrompts(); err != nil {
		t.Fatalf("Failed to reload prompts: %v", err)
	}
	if got := GetPromptsForOperation("optimize").OptimizeResume; got != "first %s %s" {
		t.Fatalf("Expected first prompt, got '%s'", got)
	}

	if err := os.WriteFile(promptFile, []byte("   "), 0600); err != nil {
		t.Fatalf("Failed to rewrite prompt file: %v", err)
	}
	if err := config.ReloadPrompts(); err == nil {
		t.Fatal("Expected an error for an empty prompt file")
	}
	if got := GetPromptsForOperation("optimize").OptimizeResume; got != "first %s %s" {
		t.Errorf("Expected previous prompt to stay in effect, got '%s'", got)
	}
}
