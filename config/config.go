package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultPath = "./config/config.yaml"

type Server struct {
	Port      int    `mapstructure:"port"`
	Host      string `mapstructure:"host"`
	StaticDir string `mapstructure:"staticDir"`
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OpenAI struct {
	APIKey  string `mapstructure:"apiKey"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"baseUrl"`
}

type Ollama struct {
	Host  string `mapstructure:"host"`
	Port  string `mapstructure:"port"`
	Model string `mapstructure:"model"`
}

func (o *Ollama) Address() string {
	return fmt.Sprintf("http://%s:%s", o.Host, o.Port)
}

type LLM struct {
	Provider    string  `mapstructure:"provider"`
	Temperature float64 `mapstructure:"temperature"`
	OpenAI      OpenAI  `mapstructure:"openai"`
	Ollama      Ollama  `mapstructure:"ollama"`
}

type Yelp struct {
	APIKey  string        `mapstructure:"apiKey"`
	BaseURL string        `mapstructure:"baseUrl"`
	Limit   int           `mapstructure:"limit"`
	SortBy  string        `mapstructure:"sortBy"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Chat struct {
	// ContextMessages is how many trailing transcript turns are sent with each completion.
	ContextMessages int    `mapstructure:"contextMessages"`
	Extraction      string `mapstructure:"extraction"`
	Greeting        string `mapstructure:"greeting"`
}

type Session struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type Nats struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	Subject string `mapstructure:"subject"`
}

func (n Nats) ConnStr() string {
	return fmt.Sprintf("nats://%s:%s", n.Host, n.Port)
}

// Watcher tunes the search activity consumer.
type Watcher struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queueSize"`
	ReportInterval time.Duration `mapstructure:"reportInterval"`
	TopN           int           `mapstructure:"topN"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMb"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
}

type Telemetry struct {
	Enabled     bool   `mapstructure:"enabled"`
	Dir         string `mapstructure:"dir"`
	ServiceName string `mapstructure:"serviceName"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	LLM       LLM       `mapstructure:"llm"`
	Yelp      Yelp      `mapstructure:"yelp"`
	Chat      Chat      `mapstructure:"chat"`
	Session   Session   `mapstructure:"session"`
	Nats      Nats      `mapstructure:"nats"`
	Watcher   Watcher   `mapstructure:"watcher"`
	Log       Log       `mapstructure:"log"`
	Telemetry Telemetry `mapstructure:"telemetry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.staticDir", "web")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.openai.apiKey", "")
	v.SetDefault("llm.openai.model", "gpt-3.5-turbo")
	v.SetDefault("llm.openai.baseUrl", "")
	v.SetDefault("llm.ollama.host", "localhost")
	v.SetDefault("llm.ollama.port", "11434")
	v.SetDefault("llm.ollama.model", "llama3.1")

	v.SetDefault("yelp.apiKey", "")
	v.SetDefault("yelp.baseUrl", "https://api.yelp.com/v3")
	v.SetDefault("yelp.limit", 5)
	v.SetDefault("yelp.sortBy", "rating")
	v.SetDefault("yelp.timeout", time.Duration(0))

	v.SetDefault("chat.contextMessages", 1)
	v.SetDefault("chat.extraction", "brace")
	v.SetDefault("chat.greeting", "Hi! I can help you find restaurants. Try something like 'Find me spicy food in Chicago' or 'Italian restaurants in New York open now'")

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.sweepInterval", time.Minute)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.host", "localhost")
	v.SetDefault("nats.port", "4222")
	v.SetDefault("nats.subject", "tastefinder.searches")

	v.SetDefault("watcher.workers", 2)
	v.SetDefault("watcher.queueSize", 100)
	v.SetDefault("watcher.reportInterval", time.Minute)
	v.SetDefault("watcher.topN", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSizeMb", 10)
	v.SetDefault("log.maxBackups", 3)
	v.SetDefault("log.maxAgeDays", 28)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dir", "logs")
	v.SetDefault("telemetry.serviceName", "taste-finder")
}

// Load reads the yaml file at path (a missing file is fine) and overlays the environment.
// Both provider credentials are read from their conventional variable names.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.BindEnv("llm.openai.apiKey", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("yelp.apiKey", "YELP_API_KEY"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &config, nil
}

func LoadConfig() *Config {
	cfg, err := Load(DefaultPath)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}
