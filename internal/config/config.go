package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

const envPrefix = "CODEBASE"

// Config is the frozen configuration supplied to the pipeline at
// construction. Load resolves it once; nothing mutates it afterwards.
type Config struct {
	WorkspacePath     string   `yaml:"workspacePath" split_words:"true"`
	AllowedExtensions []string `yaml:"allowedExtensions" split_words:"true"`
	IgnoreGlobs       []string `yaml:"ignoreGlobs" split_words:"true"`
	IgnoredDirs       []string `yaml:"ignoredDirs" split_words:"true"`
	MaxFileSize       int64    `yaml:"maxFileSize" split_words:"true"`
	LinesPerChunk     int      `yaml:"linesPerChunk" split_words:"true"`
	MaxChunkBytes     int      `yaml:"maxChunkBytes" split_words:"true"`
	Concurrency       int      `yaml:"concurrency"`
	BatchSize         int      `yaml:"batchSize" split_words:"true"`
	FileTimeoutMs     int      `yaml:"fileTimeoutMs" split_words:"true"`
	LogLevel          string   `yaml:"logLevel" split_words:"true"`

	Cache CacheConfig `yaml:"cache"`
	Sink  SinkConfig  `yaml:"sink"`

	flags *pflag.FlagSet `ignored:"true" yaml:"-"`
}

// CacheConfig controls the durable chunk cache.
type CacheConfig struct {
	DBPath       string `yaml:"dbPath" split_words:"true"`
	MaxSizeBytes int64  `yaml:"maxSizeBytes" split_words:"true"`
	MaxEntries   int    `yaml:"maxEntries" split_words:"true"`
	TTLHours     int    `yaml:"ttlHours" envconfig:"TTL_HOURS"`
	Compression  bool   `yaml:"compression"`
}

// SinkConfig describes the external embedding endpoint.
type SinkConfig struct {
	EndpointEmbed     string  `yaml:"endpointEmbed" split_words:"true"`
	EndpointUpsert    string  `yaml:"endpointUpsert" split_words:"true"`
	EndpointSearch    string  `yaml:"endpointSearch" split_words:"true"`
	Token             string  `yaml:"token" split_words:"true"`
	TimeoutMs         int     `yaml:"timeoutMs" split_words:"true"`
	MaxRetries        int     `yaml:"maxRetries" split_words:"true"`
	RetryDelayMs      int     `yaml:"retryDelayMs" split_words:"true"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier" split_words:"true"`
	PollIntervalMs    int     `yaml:"pollIntervalMs" split_words:"true"`
	MaxPollAttempts   int     `yaml:"maxPollAttempts" split_words:"true"`
}

// Usage prints flag usage to stderr.
func (c *Config) Usage() {
	if c.flags != nil {
		fmt.Fprint(os.Stderr, c.flags.FlagUsages())
	}
}

// Defaults returns the baseline configuration. Cache TTL and size caps here
// are the production values; presets never override them implicitly — only
// an explicit config file, environment, or flag does.
func Defaults() Config {
	return Config{
		AllowedExtensions: []string{
			"py", "pyi", "java", "js", "jsx", "mjs", "cjs", "ts", "tsx",
			"c", "h", "cpp", "cc", "hpp", "cs", "go", "rs", "php",
			"json", "yaml", "yml", "xml", "html", "css", "md", "txt", "sh", "sql",
		},
		IgnoredDirs: []string{
			".git", ".svn", ".hg", "node_modules", "vendor", "__pycache__",
			".idea", ".vscode", "dist", "build", "target", ".codebase",
		},
		MaxFileSize:   2 << 20, // 2 MiB
		LinesPerChunk: 50,
		MaxChunkBytes: types.MaxChunkBytes,
		Concurrency:   1,
		BatchSize:     100,
		FileTimeoutMs: 60_000,
		LogLevel:      "info",
		Cache: CacheConfig{
			MaxSizeBytes: 500 << 20, // 500 MB
			MaxEntries:   50_000,
			TTLHours:     7 * 24,
			Compression:  true,
		},
		Sink: SinkConfig{
			TimeoutMs:         30_000,
			MaxRetries:        3,
			RetryDelayMs:      1_000,
			BackoffMultiplier: 2.0,
			PollIntervalMs:    2_000,
			MaxPollAttempts:   30,
		},
	}
}

// BindFlags registers the CLI flags Load applies as the final override
// layer. Call it before parsing the flag set.
func BindFlags(fs *pflag.FlagSet) {
	defaults := Defaults()
	fs.String("workspace", "", "workspace root to process")
	fs.String("db", "", "chunk cache database path")
	fs.Int("concurrency", defaults.Concurrency, "parallel file workers")
	fs.Int("batch-size", defaults.BatchSize, "chunks per sink batch")
	fs.String("log-level", defaults.LogLevel, "log level (trace|debug|info|warn|error)")
}

// Load resolves the configuration: defaults < YAML < env < flags. The flag
// set, when given, must have been bound via BindFlags and parsed already.
// configPath may be ""; if so it is auto-discovered.
func Load(configPath string, fs *pflag.FlagSet) (Config, error) {
	cfg := Defaults()
	cfg.flags = fs

	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/codebase.yaml",
				"./codebase.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Config{}, fmt.Errorf("%w: config file not found: %s", types.ErrConfig, path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: load yaml %s: %v", types.ErrConfig, path, err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: env override: %v", types.ErrConfig, err)
	}

	if fs != nil {
		applyFlags(fs, &cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.MaxChunkBytes <= 0 {
		return fmt.Errorf("%w: maxChunkBytes must be positive", types.ErrConfig)
	}
	if c.LinesPerChunk <= 0 {
		return fmt.Errorf("%w: linesPerChunk must be positive", types.ErrConfig)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("%w: maxFileSize must be positive", types.ErrConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0", types.ErrConfig)
	}
	if c.Concurrency > runtime.NumCPU() {
		c.Concurrency = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batchSize must be positive", types.ErrConfig)
	}
	if c.Cache.TTLHours <= 0 {
		return fmt.Errorf("%w: cache.ttlHours must be positive", types.ErrConfig)
	}
	if c.Cache.MaxEntries <= 0 || c.Cache.MaxSizeBytes <= 0 {
		return fmt.Errorf("%w: cache size caps must be positive", types.ErrConfig)
	}
	return nil
}

func applyFlags(fs *pflag.FlagSet, cfg *Config) {
	if v, err := fs.GetString("workspace"); err == nil && v != "" {
		cfg.WorkspacePath = v
	}
	if v, err := fs.GetString("db"); err == nil && v != "" {
		cfg.Cache.DBPath = v
	}
	if fs.Changed("concurrency") {
		if v, err := fs.GetInt("concurrency"); err == nil {
			cfg.Concurrency = v
		}
	}
	if fs.Changed("batch-size") {
		if v, err := fs.GetInt("batch-size"); err == nil {
			cfg.BatchSize = v
		}
	}
	if fs.Changed("log-level") {
		if v, err := fs.GetString("log-level"); err == nil {
			cfg.LogLevel = v
		}
	}
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
