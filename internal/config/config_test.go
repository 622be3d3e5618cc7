package config

import (
	"testing"
)

// memBackend is an in-memory ConfigBackend for tests.
type memBackend struct {
	data map[string]any
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, _ := v.(int)
	return i, true, nil
}

func (b *memBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *memBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 8100 {
		t.Errorf("Server.Port = %d, want 8100", cfg.Server.Port)
	}
	if cfg.Smartling.BaseURL != "https://api.smartling.com" {
		t.Errorf("Smartling.BaseURL = %q", cfg.Smartling.BaseURL)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Server.AdminToken != "" {
		t.Errorf("AdminToken = %q, want empty default", cfg.Server.AdminToken)
	}
}

func TestBackendOverridesDefaults(t *testing.T) {
	b := &memBackend{data: map[string]any{
		"server.port":        9000,
		"smartling.base_url": "http://localhost:9999",
		"ollama.model":       "llama3",
	}}
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Smartling.BaseURL != "http://localhost:9999" {
		t.Errorf("Smartling.BaseURL = %q", cfg.Smartling.BaseURL)
	}
	if cfg.Ollama.Model != "llama3" {
		t.Errorf("Ollama.Model = %q, want llama3", cfg.Ollama.Model)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("PENDOSMART_SERVER_PORT", "7777")
	t.Setenv("PENDOSMART_ADMIN_TOKEN", "tok")

	b := &memBackend{data: map[string]any{"server.port": 9000}}
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Server.AdminToken != "tok" {
		t.Errorf("AdminToken = %q, want tok", cfg.Server.AdminToken)
	}
}

func TestEnvOverrides_BadInt(t *testing.T) {
	t.Setenv("PENDOSMART_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 8100 {
		t.Errorf("Server.Port = %d, want default on parse failure", cfg.Server.Port)
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "server.admin_token" {
			t.Errorf("secret key %q listed as settable", k)
		}
	}

	if err := SetKey("server.admin_token", "x"); err == nil {
		t.Error("SetKey on secret should fail")
	}
}
