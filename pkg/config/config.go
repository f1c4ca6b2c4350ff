package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Qdrant   QdrantConfig
	LLM      LLMConfig
	Chunking ChunkingConfig
	Limits   LimitsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type QdrantConfig struct {
	Endpoint  string
	VectorDim int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	StubMode       bool
	TimeoutSec     int
}

type ChunkingConfig struct {
	Size         int
	OverlapWords int
}

type LimitsConfig struct {
	RatePerMinute         int
	CacheTTLSeconds       int
	IdempotencyTTLSeconds int
	TopK                  int
	ScoreThreshold        float32
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/knowledge-assistant")

	viper.SetEnvPrefix("KA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/assistant.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("qdrant.endpoint", "localhost:6334")
	viper.SetDefault("qdrant.vectorDim", 1536)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.stubMode", true)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("chunking.size", 500)
	viper.SetDefault("chunking.overlapWords", 50)

	viper.SetDefault("limits.ratePerMinute", 60)
	viper.SetDefault("limits.cacheTTLSeconds", 3600)
	viper.SetDefault("limits.idempotencyTTLSeconds", 3600)
	viper.SetDefault("limits.topK", 5)
	viper.SetDefault("limits.scoreThreshold", 0.3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
