package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"swampbot/internal/llm"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Bot struct {
		Name          string `yaml:"name"`
		ID            string `yaml:"id"`
		Timezone      string `yaml:"timezone"`
		CommandPrefix string `yaml:"command_prefix"`
	} `yaml:"bot"`

	RingCentral struct {
		ServerURL         string `yaml:"server_url"`
		ClientID          string `yaml:"client_id"`
		ClientSecret      string `yaml:"client_secret"`
		TokenFile         string `yaml:"token_file"`
		WebhookURL        string `yaml:"webhook_url"`
		VerificationToken string `yaml:"verification_token"`
	} `yaml:"ringcentral"`

	LLM struct {
		Providers               []llm.ProviderConfig `yaml:"providers"`
		MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`
	} `yaml:"llm"`

	OpenAI struct {
		APIKey             string `yaml:"api_key"`
		EmbeddingModel     string `yaml:"embedding_model"`
		EmbeddingDimension int    `yaml:"embedding_dimension"`
	} `yaml:"openai"`

	AutoAnswer struct {
		LookbackDays        int     `yaml:"lookback_days"`
		MinConfidence       float64 `yaml:"min_confidence"`
		MaxCandidates       int     `yaml:"max_candidates"`
		HistoryItems        int     `yaml:"history_items"`
		RecallStrategy      string  `yaml:"recall_strategy"`
		SemanticTopK        int     `yaml:"semantic_top_k"`
		SemanticMinScore    float64 `yaml:"semantic_min_score"`
		ClassifyMaxTokens   int     `yaml:"classify_max_tokens"`
		ClassifyTemperature float64 `yaml:"classify_temperature"`
		AnswerMaxTokens     int     `yaml:"answer_max_tokens"`
		AnswerTemperature   float64 `yaml:"answer_temperature"`
	} `yaml:"autoanswer"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Store struct {
		FlushInterval time.Duration `yaml:"flush_interval"`
		MaxBatch      int           `yaml:"max_batch"`
		MaxQueue      int           `yaml:"max_queue"`
	} `yaml:"store"`

	Admin struct {
		JWTSecret    string        `yaml:"jwt_secret"`
		PasswordHash string        `yaml:"password_hash"`
		TokenTTL     time.Duration `yaml:"token_ttl"`
	} `yaml:"admin"`

	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

// LoadConfig loads the optional .env file, then the YAML file at configPath.
// ${VAR} references in the YAML are expanded from the environment.
func LoadConfig(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := &Config{}
	// Thresholds where zero is a valid setting are preset before decoding,
	// so only keys absent from the file keep the default.
	config.AutoAnswer.MinConfidence = 0.6
	config.AutoAnswer.SemanticMinScore = 0.83
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	if c.Bot.Name == "" {
		c.Bot.Name = "swampbot"
	}
	if c.Bot.Timezone == "" {
		c.Bot.Timezone = "America/Chicago"
	}
	if c.Bot.CommandPrefix == "" {
		c.Bot.CommandPrefix = "!"
	}

	if c.RingCentral.ServerURL == "" {
		c.RingCentral.ServerURL = "https://platform.ringcentral.com"
	}
	if c.RingCentral.TokenFile == "" {
		c.RingCentral.TokenFile = "./data/tokens.json"
	}

	if c.LLM.MaxFailuresBeforeSwitch == 0 {
		c.LLM.MaxFailuresBeforeSwitch = 3
	}

	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}

	a := &c.AutoAnswer
	if a.LookbackDays == 0 {
		a.LookbackDays = 7
	}
	if a.MaxCandidates == 0 {
		a.MaxCandidates = 40
	}
	if a.HistoryItems == 0 {
		a.HistoryItems = 8
	}
	if a.RecallStrategy == "" {
		a.RecallStrategy = "recency"
	}
	if a.SemanticTopK == 0 {
		a.SemanticTopK = 5
	}
	if a.ClassifyMaxTokens == 0 {
		a.ClassifyMaxTokens = 96
	}
	if a.AnswerMaxTokens == 0 {
		a.AnswerMaxTokens = 384
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/history.sqlite"
	}

	if c.Store.FlushInterval == 0 {
		c.Store.FlushInterval = 120 * time.Millisecond
	}
	if c.Store.MaxBatch == 0 {
		c.Store.MaxBatch = 25
	}
	if c.Store.MaxQueue == 0 {
		c.Store.MaxQueue = 1000
	}

	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 24 * time.Hour
	}

	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
}

// Validate rejects values the bot cannot run with.
func (c *Config) Validate() error {
	a := c.AutoAnswer
	switch a.RecallStrategy {
	case "recency", "semantic":
	default:
		return fmt.Errorf("autoanswer.recall_strategy must be recency or semantic, got %q", a.RecallStrategy)
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return fmt.Errorf("autoanswer.min_confidence must be within [0,1], got %v", a.MinConfidence)
	}
	if a.SemanticMinScore < -1 || a.SemanticMinScore > 1 {
		return fmt.Errorf("autoanswer.semantic_min_score must be within [-1,1], got %v", a.SemanticMinScore)
	}
	if a.ClassifyTemperature < 0 || a.ClassifyTemperature > 2 || a.AnswerTemperature < 0 || a.AnswerTemperature > 2 {
		return errors.New("autoanswer temperatures must be within [0,2]")
	}
	if a.LookbackDays < 0 || a.MaxCandidates < 0 || a.HistoryItems < 0 || a.SemanticTopK < 0 {
		return errors.New("autoanswer counts must not be negative")
	}

	for i, p := range c.LLM.Providers {
		if !llm.Supported(p.Type) {
			return fmt.Errorf("llm.providers[%d]: unsupported type %q", i, p.Type)
		}
	}

	if c.Admin.PasswordHash != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin.password_hash requires admin.jwt_secret")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Log.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("log.mode must be development or production, got %q", c.Log.Mode)
	}
	return nil
}

// Location returns the bot timezone used to render history timestamps.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Bot.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid bot.timezone %q: %w", c.Bot.Timezone, err)
	}
	return loc, nil
}
