package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config represents the application configuration
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Jira       JiraConfig       `yaml:"jira"`
	Processing ProcessingConfig `yaml:"processing"`
}

// AnthropicConfig represents Anthropic API configuration
type AnthropicConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxTokens         int    `yaml:"max_tokens"`
	RetryCount        int    `yaml:"retry_count"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`
}

// JiraConfig represents JIRA API configuration
type JiraConfig struct {
	BaseURL    string `yaml:"base_url"`
	Username   string `yaml:"username"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
	Timeout    int    `yaml:"timeout_seconds"`
}

// ProcessingConfig represents document processing configuration
type ProcessingConfig struct {
	StorageDir       string `yaml:"storage_dir"`
	MaxRunHistory    int    `yaml:"max_run_history"`
	SaveIntermediate bool   `yaml:"save_intermediate"`
	TeamSize         int    `yaml:"team_size"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Anthropic.TimeoutSeconds == 0 {
		c.Anthropic.TimeoutSeconds = 120
	}
	if c.Anthropic.MaxTokens == 0 {
		c.Anthropic.MaxTokens = 16000
	}
	if c.Anthropic.RetryCount == 0 {
		c.Anthropic.RetryCount = 3
	}
	if c.Anthropic.RetryDelaySeconds == 0 {
		c.Anthropic.RetryDelaySeconds = 2
	}
	if c.Jira.Timeout == 0 {
		c.Jira.Timeout = 30
	}
	if c.Processing.StorageDir == "" {
		c.Processing.StorageDir = "./storage/runs"
	}
	if c.Processing.MaxRunHistory == 0 {
		c.Processing.MaxRunHistory = 50
	}
	if c.Processing.TeamSize == 0 {
		c.Processing.TeamSize = 3
	}
}

// Validate validates the configuration needed by every command
func (c *Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic API key is required")
	}

	return nil
}

// ValidateJira validates the JIRA settings, required only for sync
func (c *Config) ValidateJira() error {
	if c.Jira.BaseURL == "" {
		return fmt.Errorf("JIRA base URL is required")
	}

	if c.Jira.Username == "" {
		return fmt.Errorf("JIRA username is required")
	}

	if c.Jira.APIToken == "" {
		return fmt.Errorf("JIRA API token is required")
	}

	if c.Jira.ProjectKey == "" {
		return fmt.Errorf("JIRA project key is required")
	}

	return nil
}
