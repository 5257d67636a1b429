package config

import (
	"fmt"
	"log/slog"
	"os"

	"path/filepath"
	"strings"

	cenv "github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	kraw "github.com/knadh/koanf/providers/rawbytes"
	kfn "github.com/knadh/koanf/v2"
)

const defaultConfigPath = "/etc/bakky/config.yaml"

func LoadConfig() (cfg *Config, err error) {
	envCfg, err := loadEnvConfig()
	if err != nil {
		return nil, err
	}

	if envCfg.ConfigContent != "" {
		slog.Info("loading configuration from content", "format", envCfg.ConfigFormat)
		return loadConfigContent(envCfg.ConfigContent, envCfg.ConfigFormat)
	}

	slog.Info("loading configuration file", "path", envCfg.ConfigFilePath)
	return loadConfigFile(envCfg.ConfigFilePath)
}

func loadEnvConfig() (*EnvConfig, error) {
	envCfg := EnvConfig{}
	if err := cenv.Parse(&envCfg); err != nil {
		return nil, err
	}

	applyCLIOverrides(&envCfg)

	if envCfg.ConfigFilePath == "" && envCfg.ConfigContent == "" {
		envCfg.ConfigFilePath = defaultConfigPath
	}

	validate := validator.New()
	if err := validate.Struct(&envCfg); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}
	return &envCfg, nil
}

// applyCLIOverrides lets command line flags take precedence over environment
// variables. Both "--flag value" and "--flag=value" forms are accepted.
func applyCLIOverrides(envCfg *EnvConfig) {
	args := os.Args[1:]
	flags := map[string]*string{
		"--config-file-path": &envCfg.ConfigFilePath,
		"--config-content":   &envCfg.ConfigContent,
		"--config-format":    &envCfg.ConfigFormat,
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, value, found := strings.Cut(arg, "="); found {
			if dst, ok := flags[name]; ok {
				*dst = value
			}
			continue
		}
		if dst, ok := flags[arg]; ok && i+1 < len(args) {
			*dst = args[i+1]
			i++
		}
	}
}

// loadConfigFile loads configuration from a file (YAML or JSON) and merges environment overrides.
// Environment variables use the prefix "BAKKY_" and map to keys by:
// - trimming the prefix
// - lowercasing
// - replacing "__" with "." (double underscore denotes nesting)
func loadConfigFile(path string) (cfg *Config, err error) {
	absPath, e := filepath.Abs(path)
	if e != nil {
		return nil, e
	}

	if _, e = os.Stat(absPath); e != nil {
		return nil, fmt.Errorf("error opening config file: %w", e)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	var parser kfn.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return nil, &UnsupportedExtensionError{Extension: ext}
	}

	k := kfn.New(".")
	if e = k.Load(kfile.Provider(absPath), parser); e != nil {
		return nil, fmt.Errorf("error loading config file: %w", e)
	}

	return unmarshalConfig(k)
}

// loadConfigContent loads configuration from raw YAML/JSON content and merges environment overrides.
// If format is empty, attempts to auto-detect (JSON if trimmed content starts with '{').
func loadConfigContent(content string, format string) (cfg *Config, err error) {
	trimmed := strings.TrimSpace(content)
	f := strings.ToLower(strings.TrimSpace(format))
	var parser kfn.Parser
	switch f {
	case "yaml", "yml":
		parser = kyaml.Parser()
	case "json":
		parser = kjson.Parser()
	case "":
		if strings.HasPrefix(trimmed, "{") {
			parser = kjson.Parser()
		} else {
			parser = kyaml.Parser()
		}
	default:
		return nil, &UnsupportedExtensionError{Extension: f}
	}

	k := kfn.New(".")
	if err = k.Load(kraw.Provider([]byte(content)), parser); err != nil {
		return nil, fmt.Errorf("error loading config content: %w", err)
	}

	return unmarshalConfig(k)
}

func unmarshalConfig(k *kfn.Koanf) (*Config, error) {
	// Env overrides (optional, prefix BAKKY_)
	loadEnv(k)

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("error applying config defaults: %w", err)
	}
	if err := k.UnmarshalWithConf("", cfg, kfn.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(k *kfn.Koanf) {
	// Allow overriding config via environment variables with prefix BAKKY_.
	// Example: BAKKY_POSTGRES__HOST=db.internal
	const prefix = "BAKKY_"
	_ = k.Load(kenv.Provider(prefix, ".", func(s string) string {
		// Transform: BAKKY_FOO__BAR__BAZ -> foo.bar.baz
		noPrefix := strings.TrimPrefix(s, prefix)
		noPrefix = strings.ToLower(noPrefix)
		// Double underscore becomes dot for nesting
		noPrefix = strings.ReplaceAll(noPrefix, "__", ".")
		return noPrefix
	}), nil)
}

type UnsupportedExtensionError struct {
	Extension string
}

func (e *UnsupportedExtensionError) Error() string {
	return "unsupported config file extension: " + e.Extension
}
