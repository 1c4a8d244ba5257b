package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PKGFORGE_"
)

// DefaultPaths lists the files LoadWithFile tries when no path is given.
func DefaultPaths() []string {
	paths := []string{"pkgforge.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pkgforge", "config.yaml"))
	}
	return paths
}

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Precedence (highest first):
//  1. PKGFORGE_* environment variables
//  2. the YAML file (configPath, or the first existing DefaultPaths entry)
//  3. defaults
//
// Environment variables map onto keys by stripping the prefix and splitting on
// the first underscore:
//
//	PKGFORGE_BUILD_MAX_CONCURRENT_BUILDS -> build.max_concurrent_builds
//	PKGFORGE_AGENT_API_KEY               -> agent.api_key
//
// An explicit configPath that does not exist is an error; missing default
// paths are not.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	path, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps PKGFORGE_SECTION_FIELD_NAME to section.field_name. The S3
// report settings are nested one level deeper.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	if section == "reports" && strings.HasPrefix(field, "s3_") {
		return "reports.s3." + strings.TrimPrefix(field, "s3_")
	}
	return section + "." + field
}

func resolvePath(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return configPath, nil
	}
	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties rejects world-writable and oversized files.
// The file may carry registry and agent credentials.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
