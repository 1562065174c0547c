package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ACE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "ACE_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.api_token", typ: kString, env: "ACE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "ollama.base_url", typ: kString, env: "ACE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.extract_model", typ: kString, env: "ACE_OLLAMA_EXTRACT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ExtractModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ExtractModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ACE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "auction.window", typ: kString, env: "ACE_AUCTION_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Auction.Window = v.(string) },
		extract: func(cfg Config) any { return cfg.Auction.Window },
	},
	{
		key: "auction.connector_deadline", typ: kString, env: "ACE_AUCTION_CONNECTOR_DEADLINE",
		apply:   func(cfg *Config, v any) { cfg.Auction.ConnectorDeadline = v.(string) },
		extract: func(cfg Config) any { return cfg.Auction.ConnectorDeadline },
	},
	{
		key: "bridge.deadline", typ: kString, env: "ACE_BRIDGE_DEADLINE",
		apply:   func(cfg *Config, v any) { cfg.Bridge.Deadline = v.(string) },
		extract: func(cfg Config) any { return cfg.Bridge.Deadline },
	},
	{
		key: "history.max_turns", typ: kInt, env: "ACE_HISTORY_MAX_TURNS",
		apply:   func(cfg *Config, v any) { cfg.History.MaxTurns = v.(int) },
		extract: func(cfg Config) any { return cfg.History.MaxTurns },
	},
	{
		key: "partners.coupon_network_url", typ: kString, env: "ACE_PARTNERS_COUPON_NETWORK_URL",
		apply:   func(cfg *Config, v any) { cfg.Partners.CouponNetworkURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Partners.CouponNetworkURL },
	},
	{
		key: "log.level", typ: kString, env: "ACE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
