package config

import (
	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
)

type Config struct {
	Server    ServerConfig
	Smartling SmartlingConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port       int
	AdminToken string
}

type SmartlingConfig struct {
	BaseURL string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8100,
		},
		Smartling: SmartlingConfig{
			BaseURL: smartling.DefaultBaseURL,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5:7b",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, then applies
// environment variable overrides.
//
// On macOS the backend is UserDefaults (domain: com.pendosmart.app). On
// Linux it is a JSON file at $XDG_CONFIG_HOME/pendosmart/config.json.
// Environment variables (PENDOSMART_*) override backend values on all
// platforms. The admin token is secret and comes from the environment only.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
