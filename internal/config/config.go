package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all aventura configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	LLM       LLMConfig       `toml:"llm"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Chapters  ChaptersConfig  `toml:"chapters"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LLMConfig struct {
	Provider     string  `toml:"provider"` // "anthropic", "ollama", "openai"
	Model        string  `toml:"model"`
	JudgeModel   string  `toml:"judge_model"` // cheaper model for relevance calls
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	AnthropicKey string  `toml:"anthropic_key"`
	OpenAIKey    string  `toml:"openai_key"`
	OpenAIURL    string  `toml:"openai_url"`
	OllamaURL    string  `toml:"ollama_url"`
	OllamaModel  string  `toml:"ollama_model"`
}

// RetrievalConfig tunes the tiered entry-retrieval engine.
type RetrievalConfig struct {
	// JudgeEnabled gates Tier 3. With it off, retrieval is fully
	// deterministic and makes no network calls.
	JudgeEnabled bool `toml:"judge_enabled"`
	// Tier3Cap limits how many judge-selected entries are kept. 0 = unlimited.
	Tier3Cap int `toml:"tier3_cap"`
	// RecentWindow is how many transcript turns feed the keyword corpus.
	RecentWindow int `toml:"recent_window"`
	// Stickiness windows, in turns, per entry type.
	Stickiness map[string]int `toml:"stickiness"`
}

// ChaptersConfig tunes the chapter memory engine.
type ChaptersConfig struct {
	// TokenThreshold is the estimated token count of un-summarized turns
	// (outside the recent buffer) that triggers a chapter cut.
	TokenThreshold int `toml:"token_threshold"`
	// RecentBuffer is how many trailing turns are never folded into a chapter.
	RecentBuffer int `toml:"recent_buffer"`
	// MaxRecalled caps how many past chapters a retrieval decision may select.
	MaxRecalled int `toml:"max_recalled"`
}

// Default returns a Config with the engine's documented defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 48150,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			JudgeModel:  "claude-haiku-4-5",
			Temperature: 0.3,
			MaxTokens:   1024,
		},
		Retrieval: RetrievalConfig{
			JudgeEnabled: true,
			Tier3Cap:     0,
			RecentWindow: 4,
			Stickiness: map[string]int{
				"concept":   5,
				"faction":   4,
				"character": 3,
				"location":  3,
				"event":     2,
				"item":      2,
			},
		},
		Chapters: ChaptersConfig{
			TokenThreshold: 24000,
			RecentBuffer:   10,
			MaxRecalled:    3,
		},
	}
}

// DefaultPath returns the default config location: ~/.aventura/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".aventura", "config.toml"), nil
}

// Load reads a TOML config file layered over Default(). A missing file is not
// an error — defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
