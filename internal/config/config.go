// Package config contains the configuration file structure.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the configuration file structure.
type Config struct {
	// Log configures logging.
	Log *LogConfig `yaml:"log" validate:"required"`

	// Cache configures the compiled filters cache.
	Cache *CacheConfig `yaml:"cache" validate:"required"`

	// UserRules configures the storage of the user rules.
	UserRules *UserRulesConfig `yaml:"user_rules" validate:"required"`

	// Engine configures matching.
	Engine *EngineConfig `yaml:"engine" validate:"required"`

	// Proxy configures the filtering proxy.
	Proxy *ProxyConfig `yaml:"proxy" validate:"required"`

	// DNS configures the DNS filter.
	DNS *DNSConfig `yaml:"dns" validate:"required"`

	// API configures the HTTP API.
	API *APIConfig `yaml:"api" validate:"required"`

	// Lists are the filter lists in the order of precedence.
	Lists []ListConfig `yaml:"lists" validate:"required,min=1,unique=ID,dive"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// Format is the format of the log entries, see slogutil.Format.
	Format string `yaml:"format" validate:"oneof=adguard_legacy default json jsonhybrid text"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// CacheConfig is the compiled filters cache configuration.
type CacheConfig struct {
	// Path is the cache file.  It's required if the cache is enabled.
	Path string `yaml:"path" validate:"required_if=Enabled true"`

	// Enabled tells if the compiled filters are saved to and loaded from
	// Path.
	Enabled bool `yaml:"enabled"`
}

// UserRulesConfig is the user rules storage configuration.
type UserRulesConfig struct {
	// Path is the SQLite database file.  If it's empty, the rules are kept
	// in memory only.
	Path string `yaml:"path"`
}

// EngineConfig is the matching configuration.
type EngineConfig struct {
	// DecisionCacheSize is the number of cached decisions.  Zero disables the
	// cache.
	DecisionCacheSize int `yaml:"decision_cache_size" validate:"gte=0"`

	// ReloadInterval is the period of recompiling the lists.  Zero disables
	// the periodic reloads, the lists are still reloaded on SIGHUP.
	ReloadInterval time.Duration `yaml:"reload_interval" validate:"gte=0"`

	// Mining enables the built-in protection against mining scripts.
	Mining bool `yaml:"mining"`
}

// ProxyConfig is the filtering proxy configuration.
type ProxyConfig struct {
	// ListenAddr is the host:port address to listen on.
	ListenAddr string `yaml:"listen_addr" validate:"hostname_port"`

	// InjectionHost is the hostname for the injected stylesheets.
	InjectionHost string `yaml:"injection_host" validate:"required,fqdn"`

	// CertPath is the path to the PEM-encoded CA certificate for MITM.  If
	// it's empty, HTTPS traffic is tunneled without filtering.
	CertPath string `yaml:"cert_path" validate:"required_with=KeyPath"`

	// KeyPath is the path to the PEM-encoded private key of the CA.
	KeyPath string `yaml:"key_path" validate:"required_with=CertPath"`

	// Enabled tells if the proxy is started.
	Enabled bool `yaml:"enabled"`
}

// DNSConfig is the DNS filter configuration.
type DNSConfig struct {
	// ListenAddr is the host:port address to listen on.
	ListenAddr string `yaml:"listen_addr" validate:"hostname_port"`

	// Upstream is the host:port address of the upstream server.
	Upstream string `yaml:"upstream" validate:"hostname_port"`

	// BlockingMode is the way blocked hostnames are answered.
	BlockingMode string `yaml:"blocking_mode" validate:"oneof=null_ip nxdomain"`

	// BlockedTTL is the TTL of the answers for blocked hostnames.
	BlockedTTL time.Duration `yaml:"blocked_ttl" validate:"gte=0"`

	// Timeout is the time limit of the upstream exchanges.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// Enabled tells if the DNS server is started.
	Enabled bool `yaml:"enabled"`
}

// APIConfig is the HTTP API configuration.
type APIConfig struct {
	// ListenAddr is the host:port address to listen on.
	ListenAddr string `yaml:"listen_addr" validate:"hostname_port"`

	// Enabled tells if the API is started.
	Enabled bool `yaml:"enabled"`
}

// ListConfig is a filter list.
type ListConfig struct {
	// Path is the file with the rules.
	Path string `yaml:"path" validate:"required"`

	// Format is the syntax of the rules, see [filterlist.ParseFormat].
	Format string `yaml:"format" validate:"omitempty,oneof=abp legacy hosts"`

	// ID is the unique identifier of the list.
	ID int `yaml:"id" validate:"gte=0"`

	// IgnoreCosmetic drops the element hiding rules of the list.
	IgnoreCosmetic bool `yaml:"ignore_cosmetic"`
}

// Open returns the rule list the configuration describes.
func (c *ListConfig) Open() (l *filterlist.FileRuleList, err error) {
	f, err := filterlist.ParseFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("list %d: %w", c.ID, err)
	}

	l, err = filterlist.NewFileRuleList(c.ID, c.Path, f, c.IgnoreCosmetic)
	if err != nil {
		return nil, fmt.Errorf("list %d: %w", c.ID, err)
	}

	return l, nil
}

// Default returns the configuration with the default values and no lists.
func Default() (c *Config) {
	return &Config{
		Log: &LogConfig{
			Format: "default",
		},
		Cache: &CacheConfig{
			Path:    "filters.bin",
			Enabled: true,
		},
		UserRules: &UserRulesConfig{},
		Engine: &EngineConfig{
			DecisionCacheSize: 10_000,
			Mining:            true,
		},
		Proxy: &ProxyConfig{
			ListenAddr:    "127.0.0.1:8080",
			InjectionHost: "injections.contentfilter.local",
			Enabled:       true,
		},
		DNS: &DNSConfig{
			ListenAddr:   "127.0.0.1:5353",
			Upstream:     "1.1.1.1:53",
			BlockingMode: "null_ip",
			BlockedTTL:   10 * time.Second,
			Timeout:      5 * time.Second,
		},
		API: &APIConfig{
			ListenAddr: "127.0.0.1:8081",
		},
	}
}

// Parse returns the configuration from the YAML data.  The sections missing
// from data are taken from [Default].
func Parse(data []byte) (c *Config, err error) {
	c = Default()
	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Read reads and parses the configuration file at path.
func Read(path string) (c *Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return Parse(data)
}

// Validate returns an error if c is not valid.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	err = v.Struct(c)
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	return nil
}
