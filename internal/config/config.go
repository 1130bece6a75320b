package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"kv-migrator/internal/logs"
	"kv-migrator/internal/migrate"
	"kv-migrator/internal/redisstore"
	"kv-migrator/internal/retry"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from a Go duration string ("250ms").
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Endpoint is one side of the migration.
type Endpoint struct {
	// URL is a redis:// URI. It wins over Host and Port.
	URL      string `yaml:"url" toml:"url"`
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	DB       int    `yaml:"db" toml:"db"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`

	DialTimeout  Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	ReadTimeout  Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout"`
}

// Retry mirrors retry.Policy without the callbacks.
type Retry struct {
	MaxRetries  int      `yaml:"max_retries" toml:"max_retries"`
	BaseBackoff Duration `yaml:"base_backoff" toml:"base_backoff"`
	MaxBackoff  Duration `yaml:"max_backoff" toml:"max_backoff"`
}

type Log struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// Config is everything a migration run needs.
type Config struct {
	Source Endpoint `yaml:"source" toml:"source"`
	Target Endpoint `yaml:"target" toml:"target"`

	Workers     int     `yaml:"workers" toml:"workers"`
	MaxFailures int     `yaml:"max_failures" toml:"max_failures"`
	Enumeration string  `yaml:"enumeration" toml:"enumeration"`
	ScanCount   int64   `yaml:"scan_count" toml:"scan_count"`
	Rate        float64 `yaml:"rate" toml:"rate"`
	Retry       Retry   `yaml:"retry" toml:"retry"`
	DryRun      bool    `yaml:"dry_run" toml:"dry_run"`

	AdminAddr string `yaml:"admin_addr" toml:"admin_addr"`
	Log       Log    `yaml:"log" toml:"log"`
}

// Default returns the configuration used when neither a file nor a flag
// sets a value.
func Default() Config {
	def := retry.DefaultPolicy()
	return Config{
		Source:      Endpoint{Port: redisstore.DefaultPort},
		Target:      Endpoint{Port: redisstore.DefaultPort},
		Workers:     1,
		MaxFailures: migrate.DefaultOptions().MaxFailureDetails,
		Enumeration: string(redisstore.EnumerateScan),
		ScanCount:   1000,
		Retry: Retry{
			BaseBackoff: Duration(def.BaseBackoff),
			MaxBackoff:  Duration(def.MaxBackoff),
		},
		Log: Log{Level: string(logs.INFO)},
	}
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return cfg, errors.Errorf("config %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Source.URL == "" && c.Source.Host == "" {
		return errors.New("source endpoint is required")
	}
	if c.Target.URL == "" && c.Target.Host == "" && !c.DryRun {
		return errors.New("target endpoint is required")
	}
	if c.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxFailures < 0 {
		return errors.Errorf("max_failures must not be negative, got %d", c.MaxFailures)
	}
	if c.ScanCount < 1 {
		return errors.Errorf("scan_count must be at least 1, got %d", c.ScanCount)
	}
	if c.Rate < 0 {
		return errors.Errorf("rate must not be negative, got %v", c.Rate)
	}
	if c.Retry.MaxRetries < 0 {
		return errors.Errorf("retry.max_retries must not be negative, got %d", c.Retry.MaxRetries)
	}
	if _, err := redisstore.ParseEnumeration(c.Enumeration); err != nil {
		return err
	}
	if _, err := logs.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// RedisEndpoint converts e for redisstore.Dial.
func (e Endpoint) RedisEndpoint(name string) redisstore.Endpoint {
	return redisstore.Endpoint{
		URL:          e.URL,
		Host:         e.Host,
		Port:         e.Port,
		DB:           e.DB,
		Username:     e.Username,
		Password:     e.Password,
		Name:         name,
		DialTimeout:  time.Duration(e.DialTimeout),
		ReadTimeout:  time.Duration(e.ReadTimeout),
		WriteTimeout: time.Duration(e.WriteTimeout),
	}
}

// RetryPolicy builds the driver retry policy. Zero MaxRetries disables
// retries.
func (c Config) RetryPolicy() retry.Policy {
	if c.Retry.MaxRetries == 0 {
		return retry.None()
	}
	p := retry.DefaultPolicy()
	p.MaxRetries = c.Retry.MaxRetries
	if c.Retry.BaseBackoff > 0 {
		p.BaseBackoff = time.Duration(c.Retry.BaseBackoff)
	}
	if c.Retry.MaxBackoff > 0 {
		p.MaxBackoff = time.Duration(c.Retry.MaxBackoff)
	}
	return p
}

// DriverOptions builds migrate.Options. The clock is left to the driver.
func (c Config) DriverOptions() migrate.Options {
	opts := migrate.DefaultOptions()
	opts.Workers = c.Workers
	opts.MaxFailureDetails = c.MaxFailures
	opts.Retry = c.RetryPolicy()
	opts.Rate = c.Rate
	return opts
}
