package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from a file with ENV interpolation.
// If configPath is empty, it searches default locations.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	cfg, _, err := LoadWithPath(configPath, getenv)
	return cfg, err
}

// LoadWithPath reads configuration and returns both the config and the
// resolved path. When no path is given and no file is found in the default
// locations, it returns Defaults() and an empty path.
func LoadWithPath(configPath string, getenv func(string) string) (*Config, string, error) {
	path, err := resolveConfigPath(configPath, getenv)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg := Defaults()
		cfg.BaseDir, _ = os.Getwd()
		return cfg, "", nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.BaseDir = baseDir
	resolvePaths(cfg)

	if err := Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, absPath, nil
}

// resolvePaths makes file paths in cfg relative to the config file
func resolvePaths(cfg *Config) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(cfg.BaseDir, *p)
		}
	}
	for i := range cfg.Watch.Dirs {
		abs(&cfg.Watch.Dirs[i])
	}
	abs(&cfg.DevLog.Path)
	if strings.ContainsRune(cfg.Render.Engine, filepath.Separator) || strings.Contains(cfg.Render.Engine, "/") {
		abs(&cfg.Render.Engine)
	}
	if cfg.Logging.Output != "stderr" && cfg.Logging.Output != "stdout" {
		abs(&cfg.Logging.Output)
	}
}

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Server.Transport {
	case "stdio":
	case "websocket":
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid port: %d (must be 1-65535)", cfg.Server.Port))
		}
		if !strings.HasPrefix(cfg.Server.Path, "/") {
			errs = append(errs, fmt.Sprintf("invalid websocket path: %q (must start with /)", cfg.Server.Path))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid transport: %s (must be stdio or websocket)", cfg.Server.Transport))
	}

	if cfg.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Sprintf("invalid max_connections: %d", cfg.Server.MaxConnections))
	}

	validCompression := map[string]bool{"fastest": true, "default": true, "best": true, "none": true}
	if !validCompression[cfg.Compression.Level] {
		errs = append(errs, fmt.Sprintf("invalid compression level: %s (must be fastest, default, best, or none)", cfg.Compression.Level))
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, fmt.Sprintf("invalid cors max_age: %d", cfg.CORS.MaxAge))
	}

	if _, err := filepath.Match(cfg.Analysis.FilePattern, ""); err != nil || cfg.Analysis.FilePattern == "" {
		errs = append(errs, fmt.Sprintf("invalid file_pattern: %q", cfg.Analysis.FilePattern))
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("invalid watch debounce: %s", cfg.Watch.Debounce))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be json or text)", cfg.Logging.Format))
	}

	switch cfg.DevLog.Driver {
	case "sqlite":
	case "postgres", "mysql":
		if cfg.DevLog.Enabled && cfg.DevLog.DSN == "" {
			errs = append(errs, fmt.Sprintf("devlog.dsn is required for the %s driver", cfg.DevLog.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid devlog driver: %s (must be sqlite, postgres, or mysql)", cfg.DevLog.Driver))
	}
	if h := cfg.DevLog.TokenHash; h != "" && !strings.HasPrefix(h, "$2") {
		errs = append(errs, "devlog.token_hash must be a bcrypt hash")
	}
	if _, err := ParseSize(cfg.DevLog.MaxSize); err != nil {
		errs = append(errs, fmt.Sprintf("devlog.max_size: %v", err))
	}
	if cfg.DevLog.TruncatePct < 1 || cfg.DevLog.TruncatePct > 99 {
		errs = append(errs, fmt.Sprintf("devlog.truncate_pct: %d (must be 1-99)", cfg.DevLog.TruncatePct))
	}

	args := cfg.Render.Arguments
	if args.Width < 0 || args.Height < 0 || args.Bounces < 0 {
		errs = append(errs, "render.arguments: width, height and bounces must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings returns non-fatal configuration issues that should be reported to the user.
func Warnings(cfg *Config) []string {
	var warnings []string

	if cfg.Server.Transport == "stdio" && cfg.Logging.Output == "stdout" {
		warnings = append(warnings, "logging.output is stdout while the server speaks on stdio - log lines will corrupt the protocol stream")
	}
	if cfg.Watch.Enabled && len(cfg.Watch.Dirs) == 0 {
		warnings = append(warnings, "watch enabled but no dirs configured - nothing will be watched")
	}
	if cfg.Render.Engine == "" {
		warnings = append(warnings, "render.engine is empty - scenec render will fail")
	}

	return warnings
}

// resolveConfigPath finds the config file to use.
// Search order: explicit path > SCENERY_CONFIG env > ./scenery.yaml >
// ./scenery.toml > ~/.config/scenery/scenery.yaml
func resolveConfigPath(explicit string, getenv func(string) string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	if envPath := getenv("SCENERY_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("SCENERY_CONFIG file not found: %s", envPath)
		}
		return envPath, nil
	}

	for _, name := range []string{"scenery.yaml", "scenery.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "scenery", "scenery.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", nil
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		value := getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

// ParseSize parses a size string like "10MB", "1GB", "500KB" to bytes.
// Supports: B, KB, MB, GB (case insensitive). Returns 0 for empty string.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSpace(strings.ToUpper(s))

	suffixes := []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}
	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.suffix))
			var num int64
			if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			return num * sf.mult, nil
		}
	}

	var num int64
	if _, err := fmt.Sscanf(s, "%d", &num); err != nil {
		return 0, fmt.Errorf("invalid size format: %s (use B, KB, MB, or GB suffix)", s)
	}
	return num, nil
}
