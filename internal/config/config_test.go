package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"swampbot/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "swampbot", cfg.Bot.Name)
	assert.Equal(t, "America/Chicago", cfg.Bot.Timezone)
	assert.Equal(t, "!", cfg.Bot.CommandPrefix)
	assert.Equal(t, 7, cfg.AutoAnswer.LookbackDays)
	assert.Equal(t, 0.6, cfg.AutoAnswer.MinConfidence)
	assert.Equal(t, 40, cfg.AutoAnswer.MaxCandidates)
	assert.Equal(t, 8, cfg.AutoAnswer.HistoryItems)
	assert.Equal(t, "recency", cfg.AutoAnswer.RecallStrategy)
	assert.Equal(t, 0.83, cfg.AutoAnswer.SemanticMinScore)
	assert.Equal(t, 96, cfg.AutoAnswer.ClassifyMaxTokens)
	assert.Equal(t, 384, cfg.AutoAnswer.AnswerMaxTokens)
	assert.Equal(t, "./data/history.sqlite", cfg.Database.Path)
	assert.Equal(t, 120*time.Millisecond, cfg.Store.FlushInterval)
	assert.Equal(t, 25, cfg.Store.MaxBatch)
	assert.Equal(t, 1000, cfg.Store.MaxQueue)
	assert.Equal(t, 3, cfg.LLM.MaxFailuresBeforeSwitch)
	assert.Equal(t, "development", cfg.Log.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Admin.TokenTTL)
}

func TestParse_Values(t *testing.T) {
	cfg, err := Parse([]byte(`
bot:
  id: "4865606044"
  timezone: UTC
llm:
  providers:
    - type: openai
      api_key: sk-test
      model_name: gpt-4o-mini
      retry_delay: 2s
      requests_per_minute: 30
    - type: gemini
      api_key: g-test
autoanswer:
  recall_strategy: semantic
  min_confidence: 0.75
store:
  flush_interval: 250ms
`))
	require.NoError(t, err)

	assert.Equal(t, "4865606044", cfg.Bot.ID)
	require.Len(t, cfg.LLM.Providers, 2)
	assert.Equal(t, llm.ProviderOpenAI, cfg.LLM.Providers[0].Type)
	assert.Equal(t, 2*time.Second, cfg.LLM.Providers[0].RetryDelay)
	assert.Equal(t, 30, cfg.LLM.Providers[0].RequestsPerMinute)
	assert.Equal(t, "semantic", cfg.AutoAnswer.RecallStrategy)
	assert.Equal(t, 0.75, cfg.AutoAnswer.MinConfidence)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.FlushInterval)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestParse_ZeroThresholdsAreKept(t *testing.T) {
	cfg, err := Parse([]byte(`
autoanswer:
  min_confidence: 0
  semantic_min_score: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.AutoAnswer.MinConfidence)
	assert.Equal(t, 0.0, cfg.AutoAnswer.SemanticMinScore)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"strategy":   "autoanswer: {recall_strategy: hybrid}",
		"confidence": "autoanswer: {min_confidence: 1.5}",
		"score":      "autoanswer: {semantic_min_score: 2}",
		"provider":   "llm: {providers: [{type: claude}]}",
		"timezone":   "bot: {timezone: Mars/Olympus}",
		"log mode":   "log: {mode: loud}",
		"login":      "admin: {password_hash: x}",
		"yaml":       "bot: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_ExpandsEnvFromDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	cfgPath := filepath.Join(dir, "config.yml")

	require.NoError(t, os.WriteFile(envPath, []byte("SWAMPBOT_TEST_KEY=sk-from-env\n"), 0o600))
	require.NoError(t, os.WriteFile(cfgPath, []byte("openai:\n  api_key: ${SWAMPBOT_TEST_KEY}\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SWAMPBOT_TEST_KEY") })

	cfg, err := LoadConfig(cfgPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
}

func TestLoadConfig_MissingEnvFileIsFine(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server: {port: \"9000\"}\n"), 0o600))

	cfg, err := LoadConfig(cfgPath, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)

	_, err = LoadConfig(filepath.Join(dir, "absent.yml"), "")
	assert.Error(t, err)
}
