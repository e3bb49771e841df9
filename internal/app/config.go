package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Catalog backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SALESVOICE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL for the postgres catalog backend" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for the redis catalog backend" flag:"redis-url"`
	Catalog     CatalogConfig
	LLM         LLMConfig
	LiveKit     LiveKitConfig
	AMQP        AMQPConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CatalogConfig selects where products and stock live.
type CatalogConfig struct {
	Backend  string `default:"file" usage:"Catalog backend: file, redis or postgres"`
	Path     string `default:"data/products.json" usage:"Catalog file for the file backend"`
	RedisKey string `default:"salesvoice:catalog" usage:"Key holding the catalog for the redis backend" flag:"catalog-redis-key"`
}

// LLMConfig configures the OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL       string        `default:"https://api.groq.com/openai/v1" usage:"Chat completion API base URL" flag:"llm-base-url"`
	APIKey        string        `usage:"Chat completion API key (or GROQ_API_KEY)" flag:"llm-api-key"`
	Model         string        `default:"llama-3.3-70b-versatile" usage:"Model name"`
	MaxTokens     int           `default:"1024" usage:"Completion token limit" flag:"llm-max-tokens"`
	Timeout       time.Duration `default:"30s" usage:"Completion request timeout" flag:"llm-timeout"`
	MaxToolRounds int           `default:"1" usage:"Completions that may request tool calls per turn" flag:"llm-max-tool-rounds"`
}

// LiveKitConfig holds the credentials used to mint session access tokens.
type LiveKitConfig struct {
	APIKey    string        `usage:"LiveKit API key (or LIVEKIT_API_KEY)" flag:"livekit-api-key"`
	APISecret string        `usage:"LiveKit API secret (or LIVEKIT_API_SECRET)" flag:"livekit-api-secret"`
	URL       string        `usage:"LiveKit server URL returned to clients (or LIVEKIT_URL)" flag:"livekit-url"`
	Room      string        `default:"salesvoice-room" usage:"Room granted in access tokens" flag:"livekit-room"`
	TokenTTL  time.Duration `default:"6h" usage:"Access token lifetime" flag:"livekit-token-ttl"`
}

// AMQPConfig enables publishing session events to a broker.
type AMQPConfig struct {
	URL      string `usage:"AMQP broker URL; empty disables broker publishing" flag:"amqp-url"`
	Exchange string `default:"salesvoice.events" usage:"Topic exchange for session events" flag:"amqp-exchange"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SALESVOICE",
		Files:     []string{"config.yaml", "/etc/salesvoice/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected catalog backend has what it needs.
// Missing LLM or LiveKit credentials are not errors: the affected endpoints
// answer with a configuration error instead.
func (c *Config) Validate() error {
	switch c.Catalog.Backend {
	case BackendFile:
		if c.Catalog.Path == "" {
			return errors.New("catalog path is required for the file backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis URL is required: set SALESVOICE_REDIS_URL or REDIS_URL")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SALESVOICE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown catalog backend %q", c.Catalog.Backend)
	}
	if c.LLM.MaxToolRounds < 0 {
		return errors.New("llm max tool rounds must not be negative")
	}
	return nil
}

// applyPlatformDefaults maps conventional environment variables (PORT,
// DATABASE_URL, provider credentials) onto unset fields.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	fallback := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.RedisURL, "REDIS_URL")
	fallback(&c.LLM.APIKey, "GROQ_API_KEY")
	fallback(&c.LiveKit.APIKey, "LIVEKIT_API_KEY")
	fallback(&c.LiveKit.APISecret, "LIVEKIT_API_SECRET")
	fallback(&c.LiveKit.URL, "LIVEKIT_URL")

	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
