package config

import (
	"time"

	"github.com/sambeau/scenery/pkg/render"
)

// Config represents the complete scenery configuration
type Config struct {
	BaseDir     string            `yaml:"-" toml:"-"` // Directory containing config file, for resolving relative paths
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Compression CompressionConfig `yaml:"compression" toml:"compression"`
	CORS        CORSConfig        `yaml:"cors" toml:"cors"`
	Analysis    AnalysisConfig    `yaml:"analysis" toml:"analysis"`
	Watch       WatchConfig       `yaml:"watch" toml:"watch"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
	DevLog      DevLogConfig      `yaml:"devlog" toml:"devlog"`
	Render      RenderConfig      `yaml:"render" toml:"render"`
}

// ServerConfig holds language server settings
type ServerConfig struct {
	Transport string `yaml:"transport" toml:"transport"` // stdio or websocket
	Host      string `yaml:"host" toml:"host"`
	Port      int    `yaml:"port" toml:"port"`
	Path      string `yaml:"path" toml:"path"` // websocket endpoint

	MaxConnections int `yaml:"max_connections" toml:"max_connections"` // 0 means unlimited
}

// CompressionConfig holds response compression settings for the HTTP endpoints
type CompressionConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`   // default: true
	Level   string `yaml:"level" toml:"level"`       // "fastest", "default", "best", "none"
	MinSize int    `yaml:"min_size" toml:"min_size"` // bytes (default: 1024)
}

// CORSConfig controls which browser origins may call the HTTP endpoints and
// open the websocket. No origins means same-origin only.
type CORSConfig struct {
	Origins []string `yaml:"origins" toml:"origins"` // "*" allows any origin
	Methods []string `yaml:"methods" toml:"methods"` // preflight Allow-Methods (default GET, HEAD, DELETE)
	Headers []string `yaml:"headers" toml:"headers"` // preflight Allow-Headers (default: echo request)
	MaxAge  int      `yaml:"max_age" toml:"max_age"` // preflight cache seconds
}

// AllowsOrigin reports whether origin may make cross-origin requests.
func (c CORSConfig) AllowsOrigin(origin string) bool {
	for _, o := range c.Origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// AnalysisConfig controls how scenes are checked
type AnalysisConfig struct {
	StrictCounts bool   `yaml:"strict_counts" toml:"strict_counts"` // check numLights/numMaterials/numObjects
	FilePattern  string `yaml:"file_pattern" toml:"file_pattern"`   // base names treated as scene files
}

// WatchConfig holds file watcher settings
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	Dirs     []string      `yaml:"dirs" toml:"dirs"`
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json or text
	Output string `yaml:"output" toml:"output"` // stderr, stdout, or file path
}

// DevLogConfig holds the analysis log database settings
type DevLogConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Driver      string `yaml:"driver" toml:"driver"`             // sqlite, postgres or mysql
	Path        string `yaml:"path" toml:"path"`                 // sqlite database file
	DSN         string `yaml:"dsn" toml:"dsn"`                   // postgres or mysql connection string
	TokenHash   string `yaml:"token_hash" toml:"token_hash"`     // bcrypt hash of the bearer token for /devlog
	MaxSize     string `yaml:"max_size" toml:"max_size"`         // e.g. "10MB"
	TruncatePct int    `yaml:"truncate_pct" toml:"truncate_pct"` // share of rows dropped when full
}

// RenderConfig holds the render engine and its default arguments
type RenderConfig struct {
	Engine    string           `yaml:"engine" toml:"engine"`
	Arguments render.Arguments `yaml:"arguments" toml:"arguments"`
}

// Defaults returns a Config with sensible default values
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "stdio",
			Host:      "localhost",
			Port:      7777,
			Path:      "/lsp",
		},
		Compression: CompressionConfig{
			Enabled: true,
			Level:   "default",
			MinSize: 1024,
		},
		Analysis: AnalysisConfig{
			FilePattern: "scene*.txt",
		},
		Watch: WatchConfig{
			Dirs:     []string{"."},
			Debounce: 200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		DevLog: DevLogConfig{
			Driver:      "sqlite",
			Path:        ".scenery/devlog.db",
			MaxSize:     "10MB",
			TruncatePct: 25,
		},
		Render: RenderConfig{
			Engine:    "raytracer",
			Arguments: render.Defaults(),
		},
	}
}
