// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quiz-recommender/internal/recommend/terms"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // test/e2e
		"../../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills credentials that are conventionally provided as bare env vars.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Provider.APIKey == "" {
		if val := os.Getenv("YELP_API_KEY"); val != "" {
			cfg.Provider.APIKey = val
		}
	}
	if cfg.Cache.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDR"); val != "" {
			cfg.Cache.Redis.Address = val
		}
	}
	if cfg.Cache.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Cache.Redis.Password = val
		}
	}
	if cfg.Camunda.BrokerAddress == "" {
		if val := os.Getenv("ZEEBE_ADDRESS"); val != "" {
			cfg.Camunda.BrokerAddress = val
		}
	}
}

// Defaults returns a fully defaulted configuration, used by tests and embedders.
func Defaults() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "quiz-recommender"
	}
	if cfg.App.HealthAddr == "" {
		cfg.App.HealthAddr = ":8080"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	applyProviderDefaults(cfg)
	applySearchDefaults(&cfg.Search)
	applyCacheDefaults(&cfg.Cache)
}

func applyProviderDefaults(cfg *Config) {
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.yelp.com/v3"
	}
	if cfg.Provider.Timeout == 0 {
		cfg.Provider.Timeout = 8000
	}
	if cfg.Provider.RateLimit == 0 {
		cfg.Provider.RateLimit = 5
	}
	if cfg.Provider.Burst == 0 {
		cfg.Provider.Burst = 5
	}

	if cfg.Gateway.SearchURL == "" {
		cfg.Gateway.SearchURL = "http://localhost:8081/search"
	}
	if cfg.Gateway.DetailsURL == "" {
		cfg.Gateway.DetailsURL = "http://localhost:8081/details"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 8000
	}
	if cfg.Gateway.MaxAttempts == 0 {
		cfg.Gateway.MaxAttempts = 3
	}
	if cfg.Gateway.Backoff == 0 {
		cfg.Gateway.Backoff = 250
	}
	if cfg.Gateway.Breaker.ConsecutiveFailures == 0 {
		cfg.Gateway.Breaker.ConsecutiveFailures = 5
	}
	if cfg.Gateway.Breaker.OpenTimeout == 0 {
		cfg.Gateway.Breaker.OpenTimeout = 30000
	}
	if cfg.Gateway.Breaker.HalfOpenRequests == 0 {
		cfg.Gateway.Breaker.HalfOpenRequests = 1
	}

	if cfg.Proxy.Address == "" {
		cfg.Proxy.Address = ":8081"
	}
	if len(cfg.Proxy.AllowedOrigins) == 0 {
		cfg.Proxy.AllowedOrigins = []string{"*"}
	}
	if cfg.Proxy.DefaultLocation == "" {
		cfg.Proxy.DefaultLocation = "San Angelo, TX"
	}
	if cfg.Proxy.MaxRadius == 0 {
		cfg.Proxy.MaxRadius = 40000
	}
	if cfg.Proxy.DefaultLimit == 0 {
		cfg.Proxy.DefaultLimit = 20
	}
	if cfg.Proxy.MaxLimit == 0 {
		cfg.Proxy.MaxLimit = 50
	}
	if cfg.Proxy.RequestsPerMinute == 0 {
		cfg.Proxy.RequestsPerMinute = 120
	}
}

func applySearchDefaults(s *SearchConfig) {
	if len(s.RadiusLadder) == 0 {
		s.RadiusLadder = []int{800, 3000, 8000, 16000}
	}
	if s.DefaultRadius == 0 {
		s.DefaultRadius = 8000
	}
	if s.MaxRadius == 0 {
		s.MaxRadius = 40000
	}
	if s.TargetSize == 0 {
		s.TargetSize = 20
	}
	if s.DefaultLimit == 0 {
		s.DefaultLimit = 20
	}
	if len(s.RelaxTerms) == 0 {
		s.RelaxTerms = []string{"food", "dinner", "lunch", "dessert"}
	}
	if s.FallbackLocation == "" {
		s.FallbackLocation = "San Angelo, TX"
	}
	if s.GeolocationTimeout == 0 {
		s.GeolocationTimeout = 3000
	}
	if s.VerifyLimit == 0 {
		s.VerifyLimit = 10
	}
	if s.KeywordCap == 0 {
		s.KeywordCap = 8
	}
	if s.CategoryCap == 0 {
		s.CategoryCap = 8
	}
	if s.MinRating == 0 {
		s.MinRating = 4.5
	}
	if s.BudgetMaxTier == 0 {
		s.BudgetMaxTier = 2
	}
	if len(s.ChainNames) == 0 {
		s.ChainNames = terms.ChainNames()
	}
	if s.RollJitter == 0 {
		s.RollJitter = 0.025
	}
}

func applyCacheDefaults(c *CacheConfig) {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "recommender"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.Redis.Address == "" {
			return fmt.Errorf("cache.redis.address is required for the redis backend")
		}
	case "badger":
		if !cfg.Cache.Badger.InMemory && cfg.Cache.Badger.Path == "" {
			return fmt.Errorf("cache.badger.path is required unless cache.badger.in_memory is set")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of memory, redis, badger", cfg.Cache.Backend)
	}

	if err := validateSearch(&cfg.Search); err != nil {
		return err
	}

	if cfg.Proxy.DefaultLimit > cfg.Proxy.MaxLimit {
		return fmt.Errorf("proxy.default_limit %d exceeds proxy.max_limit %d", cfg.Proxy.DefaultLimit, cfg.Proxy.MaxLimit)
	}
	return nil
}

func validateSearch(s *SearchConfig) error {
	if !sort.IntsAreSorted(s.RadiusLadder) {
		return fmt.Errorf("search.radius_ladder must be ascending")
	}
	for _, r := range s.RadiusLadder {
		if r <= 0 || r > s.MaxRadius {
			return fmt.Errorf("search.radius_ladder value %d outside (0, %d]", r, s.MaxRadius)
		}
	}
	found := false
	for _, r := range s.RadiusLadder {
		if r == s.DefaultRadius {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("search.default_radius %d is not a radius_ladder rung", s.DefaultRadius)
	}
	if s.TargetSize <= 0 {
		return fmt.Errorf("search.target_size must be positive")
	}
	if s.BudgetMaxTier < 1 || s.BudgetMaxTier > 4 {
		return fmt.Errorf("search.budget_max_tier must be between 1 and 4")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
