package config

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	if opCfg.TopP == nil {
		opCfg.TopP = &c.AI.TopP
	}
	if opCfg.TopK == nil {
		opCfg.TopK = &c.AI.TopK
	}
	if opCfg.CandidateCount == nil {
		opCfg.CandidateCount = &c.AI.CandidateCount
	}
}

// GetOptimizeConfig returns the AI configuration for resume optimization with
// fallback to the global config
func (c *Config) GetOptimizeConfig() OperationAIConfig {
	config := c.AI.Optimize

	c.applyOperationDefaults(&config)

	if config.CustomPrompts.SystemPrompt == "" {
		config.CustomPrompts.SystemPrompt = c.AI.CustomPrompts.SystemPrompt
	}
	if config.CustomPrompts.OptimizeResume == "" {
		config.CustomPrompts.OptimizeResume = c.AI.CustomPrompts.OptimizeResume
	}
	if config.CustomPrompts.SystemPromptFile == "" {
		config.CustomPrompts.SystemPromptFile = c.AI.CustomPrompts.SystemPromptFile
	}
	if config.CustomPrompts.OptimizeResumeFile == "" {
		config.CustomPrompts.OptimizeResumeFile = c.AI.CustomPrompts.OptimizeResumeFile
	}

	return config
}

// HasAICredentials reports whether an API key is available for optimization.
func (c *Config) HasAICredentials() bool {
	return c.GetOptimizeConfig().APIKey != ""
}
