package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type contextKey string

func (c contextKey) String() string {
	return "cascade/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultSelector       = "default"
	DefaultLanguage       = "en"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultExpiryDuration = time.Second
)

// ToContext adds service configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts service configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

// LoadFile reads configuration from the environment and then overlays the
// yaml document at path. Keys present in the file win over the environment.
func LoadFile[T any](path string) (T, error) {
	cfg, err := FromEnv[T]()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	TraceRequests bool `envDefault:"false" env:"TRACE_REQUESTS" yaml:"trace_requests"`

	OpenTelemetryDisable bool `envDefault:"false" env:"OPENTELEMETRY_DISABLE" yaml:"opentelemetry_disable"`

	BucketURL    string `envDefault:"mem://" env:"CASCADE_BUCKET_URL"    yaml:"bucket_url"`
	BucketPrefix string `envDefault:""       env:"CASCADE_BUCKET_PREFIX" yaml:"bucket_prefix"`

	HTTPBaseURL string `envDefault:""    env:"CASCADE_HTTP_BASE_URL" yaml:"http_base_url"`
	HTTPTimeout string `envDefault:"30s" env:"CASCADE_HTTP_TIMEOUT"  yaml:"http_timeout"`

	DefaultLanguageValue string `envDefault:"en"      env:"CASCADE_DEFAULT_LANGUAGE"  yaml:"default_language"`
	DefaultPersonaValue  string `envDefault:"default" env:"CASCADE_DEFAULT_PERSONA"   yaml:"default_persona"`
	DefaultModeValue     string `envDefault:"default" env:"CASCADE_DEFAULT_MODE"      yaml:"default_mode"`
	DefaultUserTypeValue string `envDefault:"default" env:"CASCADE_DEFAULT_USER_TYPE" yaml:"default_user_type"`

	CacheMaxEntries int    `envDefault:"0"  env:"CASCADE_CACHE_MAX_ENTRIES" yaml:"cache_max_entries"`
	SharedCacheURI  string `envDefault:""   env:"CASCADE_SHARED_CACHE_URI"  yaml:"shared_cache_uri"`
	SharedCacheTTL  string `envDefault:"1h" env:"CASCADE_SHARED_CACHE_TTL"  yaml:"shared_cache_ttl"`

	// Worker pool settings
	WorkerPoolCPUFactorForWorkerCount int    `envDefault:"10"  env:"WORKER_POOL_CPU_FACTOR_FOR_WORKER_COUNT" yaml:"worker_pool_cpu_factor_for_worker_count"`
	WorkerPoolCapacity                int    `envDefault:"100" env:"WORKER_POOL_CAPACITY"                    yaml:"worker_pool_capacity"`
	WorkerPoolCount                   int    `envDefault:"1"   env:"WORKER_POOL_COUNT"                       yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration          string `envDefault:"1s"  env:"WORKER_POOL_EXPIRY_DURATION"             yaml:"worker_pool_expiry_duration"`
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

// ConfigurationSource locates the translation files.
type ConfigurationSource interface {
	GetBucketURL() string
	GetBucketPrefix() string
	GetHTTPBaseURL() string
	GetHTTPTimeout() time.Duration
}

var _ ConfigurationSource = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetBucketURL() string {
	if c.BucketURL == "" {
		return "mem://"
	}
	return c.BucketURL
}

func (c *ConfigurationDefault) GetBucketPrefix() string {
	return c.BucketPrefix
}

func (c *ConfigurationDefault) GetHTTPBaseURL() string {
	return c.HTTPBaseURL
}

func (c *ConfigurationDefault) GetHTTPTimeout() time.Duration {
	return parseDuration(c.HTTPTimeout, DefaultHTTPTimeout)
}

// ConfigurationSelection holds the selectors an engine starts with.
type ConfigurationSelection interface {
	DefaultLanguage() string
	DefaultPersona() string
	DefaultMode() string
	DefaultUserType() string
}

var _ ConfigurationSelection = new(ConfigurationDefault)

func (c *ConfigurationDefault) DefaultLanguage() string {
	return orDefault(c.DefaultLanguageValue, DefaultLanguage)
}

func (c *ConfigurationDefault) DefaultPersona() string {
	return orDefault(c.DefaultPersonaValue, DefaultSelector)
}

func (c *ConfigurationDefault) DefaultMode() string {
	return orDefault(c.DefaultModeValue, DefaultSelector)
}

func (c *ConfigurationDefault) DefaultUserType() string {
	return orDefault(c.DefaultUserTypeValue, DefaultSelector)
}

type ConfigurationCache interface {
	GetCacheMaxEntries() int
	GetSharedCacheURI() string
	GetSharedCacheTTL() time.Duration
}

var _ ConfigurationCache = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCacheMaxEntries() int {
	return max(c.CacheMaxEntries, 0)
}

func (c *ConfigurationDefault) GetSharedCacheURI() string {
	return c.SharedCacheURI
}

func (c *ConfigurationDefault) GetSharedCacheTTL() time.Duration {
	return parseDuration(c.SharedCacheTTL, time.Hour)
}

type ConfigurationWorkerPool interface {
	GetCPUFactor() int
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCPUFactor() int {
	return c.WorkerPoolCPUFactorForWorkerCount
}

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	return parseDuration(c.WorkerPoolExpiryDuration, DefaultExpiryDuration)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return fallback
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
