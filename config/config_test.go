package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestContextHelpersAndKeyString() {
	ctx := context.Background()
	cfg := ConfigurationDefault{BucketURL: "file:///srv/i18n"}

	s.Equal("cascade/config/configurationKey", ctxKeyConfiguration.String())

	ctx = ToContext(ctx, cfg)
	fromCtx := FromContext[ConfigurationDefault](ctx)
	s.Equal("file:///srv/i18n", fromCtx.BucketURL)

	missing := FromContext[*ConfigurationDefault](context.Background())
	s.Nil(missing)
}

func (s *ConfigSuite) TestFromEnvAndFillEnv() {
	type envCfg struct {
		Value string `env:"CASCADE_TEST_VALUE"`
	}

	s.T().Setenv("CASCADE_TEST_VALUE", "abc")

	fromEnv, err := FromEnv[envCfg]()
	s.Require().NoError(err)
	s.Equal("abc", fromEnv.Value)

	var target envCfg
	s.Require().NoError(FillEnv(&target))
	s.Equal("abc", target.Value)
}

func (s *ConfigSuite) TestDefaultsFromEnv() {
	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.Equal("info", cfg.LoggingLevel())
	s.Equal("mem://", cfg.GetBucketURL())
	s.Empty(cfg.GetHTTPBaseURL())
	s.Equal(DefaultHTTPTimeout, cfg.GetHTTPTimeout())
	s.Equal("en", cfg.DefaultLanguage())
	s.Equal("default", cfg.DefaultPersona())
	s.Equal("default", cfg.DefaultMode())
	s.Equal("default", cfg.DefaultUserType())
	s.Equal(0, cfg.GetCacheMaxEntries())
	s.Empty(cfg.GetSharedCacheURI())
	s.Equal(time.Hour, cfg.GetSharedCacheTTL())
	s.Equal(time.Second, cfg.GetExpiryDuration())
}

func (s *ConfigSuite) TestEnvOverrides() {
	s.T().Setenv("CASCADE_BUCKET_URL", "file:///srv/i18n")
	s.T().Setenv("CASCADE_DEFAULT_LANGUAGE", "ta")
	s.T().Setenv("CASCADE_DEFAULT_MODE", "zen")
	s.T().Setenv("CASCADE_CACHE_MAX_ENTRIES", "256")
	s.T().Setenv("CASCADE_SHARED_CACHE_URI", "valkey://localhost:6379")
	s.T().Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.Equal("file:///srv/i18n", cfg.GetBucketURL())
	s.Equal("ta", cfg.DefaultLanguage())
	s.Equal("zen", cfg.DefaultMode())
	s.Equal(256, cfg.GetCacheMaxEntries())
	s.Equal("valkey://localhost:6379", cfg.GetSharedCacheURI())
	s.True(cfg.LoggingLevelIsDebug())
}

func (s *ConfigSuite) TestCoreGettersAndBooleans() {
	cfg := &ConfigurationDefault{
		LogLevel:                          "trace",
		LogTimeFormat:                     time.RFC3339,
		LogColored:                        true,
		LogShowStackTrace:                 true,
		TraceRequests:                     true,
		OpenTelemetryDisable:              true,
		BucketPrefix:                      "i18n/",
		WorkerPoolCPUFactorForWorkerCount: 3,
		WorkerPoolCapacity:                64,
		WorkerPoolCount:                   8,
		WorkerPoolExpiryDuration:          "2s",
	}

	s.Equal("trace", cfg.LoggingLevel())
	s.Equal(time.RFC3339, cfg.LoggingTimeFormat())
	s.True(cfg.LoggingColored())
	s.True(cfg.LoggingShowStackTrace())
	s.True(cfg.LoggingLevelIsDebug())
	s.True(cfg.TraceReq())
	s.True(cfg.DisableOpenTelemetry())
	s.Equal("i18n/", cfg.GetBucketPrefix())
	s.Equal(3, cfg.GetCPUFactor())
	s.Equal(64, cfg.GetCapacity())
	s.Equal(8, cfg.GetCount())
	s.Equal(2*time.Second, cfg.GetExpiryDuration())
}

func (s *ConfigSuite) TestFallbacksTable() {
	testCases := []struct {
		name        string
		cfg         ConfigurationDefault
		wantBucket  string
		wantLang    string
		wantTimeout time.Duration
		wantTTL     time.Duration
		wantMax     int
	}{
		{
			name:        "zero value",
			cfg:         ConfigurationDefault{},
			wantBucket:  "mem://",
			wantLang:    "en",
			wantTimeout: DefaultHTTPTimeout,
			wantTTL:     time.Hour,
			wantMax:     0,
		},
		{
			name: "invalid durations and negative bound",
			cfg: ConfigurationDefault{
				HTTPTimeout:     "soon",
				SharedCacheTTL:  "later",
				CacheMaxEntries: -4,
			},
			wantBucket:  "mem://",
			wantLang:    "en",
			wantTimeout: DefaultHTTPTimeout,
			wantTTL:     time.Hour,
			wantMax:     0,
		},
		{
			name: "explicit values",
			cfg: ConfigurationDefault{
				BucketURL:            "s3://translations",
				DefaultLanguageValue: "fr",
				HTTPTimeout:          "5s",
				SharedCacheTTL:       "10m",
				CacheMaxEntries:      32,
			},
			wantBucket:  "s3://translations",
			wantLang:    "fr",
			wantTimeout: 5 * time.Second,
			wantTTL:     10 * time.Minute,
			wantMax:     32,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.wantBucket, tc.cfg.GetBucketURL())
			s.Equal(tc.wantLang, tc.cfg.DefaultLanguage())
			s.Equal(tc.wantTimeout, tc.cfg.GetHTTPTimeout())
			s.Equal(tc.wantTTL, tc.cfg.GetSharedCacheTTL())
			s.Equal(tc.wantMax, tc.cfg.GetCacheMaxEntries())
		})
	}
}

func (s *ConfigSuite) TestLoadFile() {
	s.T().Setenv("CASCADE_DEFAULT_PERSONA", "student")
	s.T().Setenv("CASCADE_BUCKET_URL", "mem://")

	path := filepath.Join(s.T().TempDir(), "cascade.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("bucket_url: file:///srv/i18n\ndefault_mode: zen\n"), 0o600))

	cfg, err := LoadFile[ConfigurationDefault](path)
	s.Require().NoError(err)

	s.Equal("file:///srv/i18n", cfg.GetBucketURL())
	s.Equal("zen", cfg.DefaultMode())
	s.Equal("student", cfg.DefaultPersona())

	_, err = LoadFile[ConfigurationDefault](filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Require().Error(err)

	bad := filepath.Join(s.T().TempDir(), "bad.yaml")
	s.Require().NoError(os.WriteFile(bad, []byte("bucket_url: [unterminated"), 0o600))
	_, err = LoadFile[ConfigurationDefault](bad)
	s.Require().Error(err)
}
