package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Analysis AnalysisConfig
	Jobs     JobsConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type AnalysisConfig struct {
	SampleSize        int
	TypeMatchRatio    float64
	CategoricalRatio  float64
	TopK              int
	CorrelationCutoff float64
	GroupingMinCard   int
	GroupingMaxCard   int
	MaxPairColumns    int
	MaxCharts         int
	ScoreFloor        float64
	DiversityCap      float64
	MaxRows           int
}

type JobsConfig struct {
	StageTimeout   time.Duration
	RetentionHours int
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
	viper.AddConfigPath("/etc/dashgen")

	viper.SetEnvPrefix("DASHGEN")
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
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("sqlite.path", "./data/dashgen.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("analysis.sampleSize", 1000)
	viper.SetDefault("analysis.typeMatchRatio", 0.9)
	viper.SetDefault("analysis.categoricalRatio", 0.5)
	viper.SetDefault("analysis.topK", 20)
	viper.SetDefault("analysis.correlationCutoff", 0.3)
	viper.SetDefault("analysis.groupingMinCard", 2)
	viper.SetDefault("analysis.groupingMaxCard", 50)
	viper.SetDefault("analysis.maxPairColumns", 25)
	viper.SetDefault("analysis.maxCharts", 12)
	viper.SetDefault("analysis.scoreFloor", 0.2)
	viper.SetDefault("analysis.diversityCap", 0.4)
	viper.SetDefault("analysis.maxRows", 500000)

	viper.SetDefault("jobs.stageTimeout", "60s")
	viper.SetDefault("jobs.retentionHours", 168)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
