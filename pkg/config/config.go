package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Scraper   ScraperConfig
	Retrieval RetrievalConfig
	RateLimit RateLimitConfig
	Uploads   UploadsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float32
	MaxTokens    int
	TimeoutSec   int
	SystemPrompt string
}

type ScraperConfig struct {
	TimeoutSec   int
	UserAgent    string
	MaxBodyBytes int64
}

type RetrievalConfig struct {
	SearchLimit int
}

type RateLimitConfig struct {
	Backend              string
	MaxRequestsPerMinute int
	Burst                int
}

type UploadsConfig struct {
	Dir         string
	MaxFileSize int64
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads .env (if present), the YAML config file and CHATBOT_* environment
// overrides, in ascending order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/chatbot-admin")

	return load(v)
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CHATBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// multipartOverhead is the room left for multipart framing and form fields on
// top of the largest accepted upload.
const multipartOverhead = 1 << 20

// RequestBodyLimit is the server body cap: server.bodyLimit, raised so that a
// file of exactly uploads.maxFileSize still fits in a multipart request.
func (c *Config) RequestBodyLimit() int {
	limit := c.Server.BodyLimit
	if upload := int(c.Uploads.MaxFileSize) + multipartOverhead; upload > limit {
		limit = upload
	}
	return limit
}

func (c *Config) validate() error {
	switch c.RateLimit.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("invalid rateLimit.backend %q: must be memory, redis or none", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && !c.Redis.Enabled {
		return errors.New("rateLimit.backend is redis but redis.enabled is false")
	}
	if c.Retrieval.SearchLimit <= 0 {
		return fmt.Errorf("retrieval.searchLimit must be positive, got %d", c.Retrieval.SearchLimit)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/chatbot.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.baseURL", "https://api.deepseek.com/v1")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.model", "deepseek-chat")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.maxTokens", 1000)
	v.SetDefault("llm.timeoutSec", 30)
	v.SetDefault("llm.systemPrompt", "You are a helpful assistant.")

	v.SetDefault("scraper.timeoutSec", 10)
	v.SetDefault("scraper.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scraper.maxBodyBytes", 5242880)

	v.SetDefault("retrieval.searchLimit", 5)

	v.SetDefault("rateLimit.backend", "memory")
	v.SetDefault("rateLimit.maxRequestsPerMinute", 60)
	v.SetDefault("rateLimit.burst", 10)

	v.SetDefault("uploads.dir", "./public")
	v.SetDefault("uploads.maxFileSize", 10485760)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
