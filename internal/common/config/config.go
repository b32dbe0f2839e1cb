// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Provider ProviderConfig          `mapstructure:"provider"`
	Gateway  GatewayConfig           `mapstructure:"gateway"`
	Proxy    ProxyConfig             `mapstructure:"proxy"`
	Search   SearchConfig            `mapstructure:"search"`
	Cache    CacheConfig             `mapstructure:"cache"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HealthAddr  string `mapstructure:"health_addr"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// --- Recommender Sections ---

// ProviderConfig is the upstream business search API the proxy forwards to.
type ProviderConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	APIKey    string  `mapstructure:"api_key"`
	Timeout   int     `mapstructure:"timeout"`    // milliseconds
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second
	Burst     int     `mapstructure:"burst"`
}

// GatewayConfig is the pipeline's view of the proxy.
type GatewayConfig struct {
	SearchURL   string        `mapstructure:"search_url"`
	DetailsURL  string        `mapstructure:"details_url"`
	Timeout     int           `mapstructure:"timeout"` // milliseconds, per call
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     int           `mapstructure:"backoff"` // milliseconds, multiplied by attempt
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	ConsecutiveFailures int  `mapstructure:"consecutive_failures"`
	OpenTimeout         int  `mapstructure:"open_timeout"` // milliseconds
	HalfOpenRequests    int  `mapstructure:"half_open_requests"`
}

type ProxyConfig struct {
	Address         string   `mapstructure:"address"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	DefaultLocation string   `mapstructure:"default_location"`
	MaxRadius       int      `mapstructure:"max_radius"`
	DefaultLimit    int      `mapstructure:"default_limit"`
	MaxLimit        int      `mapstructure:"max_limit"`
	// per client IP; negative disables the limiter
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// SearchConfig carries the pipeline defaults that vary between deployments.
type SearchConfig struct {
	RadiusLadder       []int    `mapstructure:"radius_ladder"`
	DefaultRadius      int      `mapstructure:"default_radius"`
	MaxRadius          int      `mapstructure:"max_radius"`
	TargetSize         int      `mapstructure:"target_size"`
	DefaultLimit       int      `mapstructure:"default_limit"`
	RelaxTerms         []string `mapstructure:"relax_terms"`
	DefaultOpenNow     bool     `mapstructure:"default_open_now"`
	FallbackLocation   string   `mapstructure:"fallback_location"`
	GeolocationTimeout int      `mapstructure:"geolocation_timeout"` // milliseconds
	Parallel           bool     `mapstructure:"parallel"`
	VerifyLimit        int      `mapstructure:"verify_limit"`
	KeywordCap         int      `mapstructure:"keyword_cap"`
	CategoryCap        int      `mapstructure:"category_cap"`
	MinRating          float64  `mapstructure:"min_rating"`
	BudgetMaxTier      int      `mapstructure:"budget_max_tier"`
	ChainNames         []string `mapstructure:"chain_names"`
	RollJitter         float64  `mapstructure:"roll_jitter"`
}

type CacheConfig struct {
	Backend   string       `mapstructure:"backend"` // redis | badger | memory
	KeyPrefix string       `mapstructure:"key_prefix"`
	MaxAge    int          `mapstructure:"max_age"` // milliseconds, 0 keeps entries forever
	Redis     RedisConfig  `mapstructure:"redis"`
	Badger    BadgerConfig `mapstructure:"badger"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BadgerConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}
