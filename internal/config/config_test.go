package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PIPELINE_MAX_RETRIES", "")
	t.Setenv("PIPELINE_VALIDATION_BACKOFF", "")
	t.Setenv("PIPELINE_ERROR_BACKOFF", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	policy := cfg.RetryPolicy()
	if policy.MaxRetries != 2 || policy.ValidationBackoff != 2*time.Second || policy.ErrorBackoff != 3*time.Second {
		t.Fatalf("unexpected default policy: %+v", policy)
	}
	if cfg.NATSSubject != "documents.process" {
		t.Fatalf("unexpected default subject %q", cfg.NATSSubject)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PIPELINE_MAX_RETRIES", "4")
	t.Setenv("PIPELINE_ERROR_BACKOFF", "500ms")
	t.Setenv("ORACLE_RPS", "0.5")
	t.Setenv("OLLAMA_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PipelineMaxRetries != 4 || cfg.PipelineErrorBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected pipeline overrides: %+v", cfg.RetryPolicy())
	}
	if cfg.OracleRPS != 0.5 {
		t.Fatalf("expected oracle rps 0.5, got %v", cfg.OracleRPS)
	}
	if cfg.OllamaTimeout != 120*time.Second {
		t.Fatalf("invalid duration must fall back to default, got %v", cfg.OllamaTimeout)
	}
}

func TestLoadAppliesFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := `
pipeline:
  max_retries: 3
  validation_backoff: 1s
oracle:
  model: qwen2.5:7b
  requests_per_second: 4
resilience:
  breaker_enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PIPELINE_MAX_RETRIES", "")
	t.Setenv("PIPELINE_VALIDATION_BACKOFF", "")
	t.Setenv("ORACLE_RPS", "")
	t.Setenv("OLLAMA_GEN_MODEL", "llama3.2")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PipelineMaxRetries != 3 || cfg.PipelineValidationBackoff != time.Second {
		t.Fatalf("file overlay not applied: %+v", cfg.RetryPolicy())
	}
	if cfg.OracleRPS != 4 || cfg.BreakerEnabled {
		t.Fatalf("unexpected oracle/resilience values: rps=%v breaker=%v", cfg.OracleRPS, cfg.BreakerEnabled)
	}
	if cfg.OllamaGenModel != "llama3.2" {
		t.Fatalf("env must override file, got %q", cfg.OllamaGenModel)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("pipeline: [1, 2"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
