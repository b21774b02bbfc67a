package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Models    ModelsConfig
	Ingestion IngestionConfig
	Retrieval RetrievalConfig
	Language  LanguageConfig
	Prompt    PromptConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    int
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
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
	TTLSec   int
}

// ModelsConfig points every model invocation at a single OpenAI-compatible
// inference gateway. The gateway serves the embedding model, the generator
// and the two directional translation models under distinct model names.
type ModelsConfig struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	EmbeddingDim   int
	Generator      GeneratorConfig
	Translator     TranslatorConfig
}

type GeneratorConfig struct {
	Model              string
	Temperature        float32
	MaxTokens          int
	TimeoutSec         int
	MaxAnswerSentences int
	NoAnswerPhrases    []string
}

type TranslatorConfig struct {
	ModelTREN  string
	ModelENTR  string
	TimeoutSec int
}

type IngestionConfig struct {
	DataDir         string
	DocsDir         string
	ChunkSize       int
	MinChunkSize    int
	OverlapFraction float64
	Sites           []SiteConfig
}

// SiteConfig describes one page to scrape: the container the content lives
// in and, when the site publishes in a single language, its language tag.
type SiteConfig struct {
	URL      string
	Selector string
	Lang     string
}

type RetrievalConfig struct {
	TopK int
}

type LanguageConfig struct {
	Fallback            string
	ConfidenceThreshold float64
}

type PromptConfig struct {
	MaxChars int
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
	viper.AddConfigPath("/etc/agu-rag")

	viper.SetEnvPrefix("AGU_RAG")
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
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.rateLimit", 60)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "college_rag")

	viper.SetDefault("sqlite.path", "./data/agurag.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSec", 3600)

	viper.SetDefault("models.baseURL", "http://localhost:8000/v1")
	viper.SetDefault("models.embeddingModel", "bge-m3")
	viper.SetDefault("models.embeddingDim", 1024)
	viper.SetDefault("models.generator.model", "qwen2.5-1.5b-instruct")
	viper.SetDefault("models.generator.temperature", 0.0)
	viper.SetDefault("models.generator.maxTokens", 96)
	viper.SetDefault("models.generator.timeoutSec", 30)
	viper.SetDefault("models.generator.maxAnswerSentences", 3)
	viper.SetDefault("models.generator.noAnswerPhrases", []string{
		"I don't have that information",
		"bu bilgi bilgi taban",
	})
	viper.SetDefault("models.translator.modelTREN", "opus-mt-tr-en")
	viper.SetDefault("models.translator.modelENTR", "opus-mt-en-tr")
	viper.SetDefault("models.translator.timeoutSec", 20)

	viper.SetDefault("ingestion.dataDir", "./data")
	viper.SetDefault("ingestion.docsDir", "./data/faq_docs")
	viper.SetDefault("ingestion.chunkSize", 1000)
	viper.SetDefault("ingestion.minChunkSize", 50)
	viper.SetDefault("ingestion.overlapFraction", 0.2)

	viper.SetDefault("retrieval.topK", 5)

	viper.SetDefault("language.fallback", "en")
	viper.SetDefault("language.confidenceThreshold", 0.6)

	viper.SetDefault("prompt.maxChars", 6000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
