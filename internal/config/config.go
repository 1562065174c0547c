package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	Auction  AuctionConfig
	Bridge   BridgeConfig
	History  HistoryConfig
	Partners PartnersConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
	Token   string
}

type OllamaConfig struct {
	BaseURL      string
	ExtractModel string
}

type StorageConfig struct {
	DataDir string
}

type AuctionConfig struct {
	Window            string
	ConnectorDeadline string
}

type BridgeConfig struct {
	Deadline string
}

type HistoryConfig struct {
	MaxTurns int
}

type PartnersConfig struct {
	CouponNetworkURL string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Ollama: OllamaConfig{
			BaseURL:      "http://localhost:11434",
			ExtractModel: "phi3.5",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Auction: AuctionConfig{
			Window:            "250ms",
			ConnectorDeadline: "200ms",
		},
		Bridge: BridgeConfig{
			Deadline: "8s",
		},
		History: HistoryConfig{
			MaxTurns: 4,
		},
		Partners: PartnersConfig{
			CouponNetworkURL: "http://localhost:4600/mock-partners/coupon-network",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.yalor.ace) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/ace/config.json
// and secrets must be provided via environment variables.
//
// Environment variables (ACE_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for the API token if still empty.
	if cfg.Server.Token == "" {
		if key, err := kc.Get("ace", "api_token"); err == nil && key != "" {
			cfg.Server.Token = key
		}
	}

	if cfg.Server.Token == "" {
		msg := "missing required config: API token. " +
			"Set it via environment variable ACE_API_TOKEN" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// DurationOr parses a config duration string, falling back when it is empty
// or malformed.
func DurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// keychainReader reads from macOS Keychain via the security CLI.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
