// Package config resolves runtime settings from their four sources, in
// precedence order: CLI flag, environment variable, config file, built-in
// default. Each resolved value remembers where it came from, so the CLI can
// explain its effective configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/chatmine/internal/ingest"
	"github.com/hurttlocker/chatmine/internal/qa"
	"github.com/hurttlocker/chatmine/internal/segment"
	"github.com/hurttlocker/chatmine/internal/store"
)

type ValueSource string

const (
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting together with its provenance.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath string

	CLIDBPath     string
	CLIPolicyPath string
	CLIOutDir     string

	// CLITimeout and CLIThreshold override when positive.
	CLITimeout   time.Duration
	CLIThreshold float64
}

// ResolvedConfig is the effective runtime configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath     ResolvedValue `json:"db_path"`
	PolicyPath ResolvedValue `json:"policy_path"`
	OutDir     ResolvedValue `json:"out_dir"`

	Timeout        time.Duration  `json:"session_timeout"`
	MatchThreshold float64        `json:"match_threshold"`
	Columns        ingest.Columns `json:"columns"`
}

type fileConfig struct {
	DBPath     string `yaml:"db_path"`
	PolicyPath string `yaml:"policy_path"`
	OutDir     string `yaml:"out_dir"`

	SessionTimeoutMinutes int     `yaml:"session_timeout_minutes"`
	MatchThreshold        float64 `yaml:"match_threshold"`

	Columns ingest.Columns `yaml:"columns"`
}

// DefaultConfigPath is where the config file lives unless CHATMINE_CONFIG
// says otherwise.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatmine", "config.yaml")
}

// Resolve builds the effective configuration. A missing config file is
// fine; a present but unreadable one is an error.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CHATMINE_CONFIG"))
	}
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:     path,
		DBPath:         ResolvedValue{Value: store.DefaultDBPath, Source: SourceDefault, From: "built-in default"},
		OutDir:         ResolvedValue{Value: "output", Source: SourceDefault, From: "built-in default"},
		Timeout:        segment.DefaultTimeout,
		MatchThreshold: qa.DefaultMatchThreshold,
		Columns:        ingest.DefaultColumns(),
	}

	cfg, err := loadFile(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.PolicyPath, cfg.PolicyPath, SourceConfig, path)
		apply(&out.OutDir, cfg.OutDir, SourceConfig, path)
		if cfg.SessionTimeoutMinutes > 0 {
			out.Timeout = time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
		}
		if cfg.MatchThreshold > 0 {
			out.MatchThreshold = cfg.MatchThreshold
		}
		applyColumn(&out.Columns.Time, cfg.Columns.Time)
		applyColumn(&out.Columns.Sender, cfg.Columns.Sender)
		applyColumn(&out.Columns.Content, cfg.Columns.Content)
		applyColumn(&out.Columns.SessionKey, cfg.Columns.SessionKey)
	}

	applyEnv(&out.DBPath, "CHATMINE_DB")
	applyEnv(&out.PolicyPath, "CHATMINE_POLICY")
	applyEnv(&out.OutDir, "CHATMINE_OUT")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.PolicyPath, opts.CLIPolicyPath, SourceCLI, "--policy")
	apply(&out.OutDir, opts.CLIOutDir, SourceCLI, "--out")
	if opts.CLITimeout > 0 {
		out.Timeout = opts.CLITimeout
	}
	if opts.CLIThreshold > 0 {
		out.MatchThreshold = opts.CLIThreshold
	}

	return out, nil
}

func loadFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, key string) {
	apply(dst, os.Getenv(key), SourceEnv, key)
}

func applyColumn(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}
