package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Memory   MemoryConfig   `yaml:"memory"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Qdrant QdrantConfig `yaml:"qdrant"`
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
	VectorSize uint64 `yaml:"vector_size"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type AIConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
}

type EmbeddingConfig struct {
	Model string `yaml:"model"`
}

type MemoryConfig struct {
	RecallLimit          int `yaml:"recall_limit"`
	LocationHistoryLimit int `yaml:"location_history_limit"`
	RecentSceneCount     int `yaml:"recent_scene_count"`
}

type TasksConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file and applies env overrides for
// secrets so they never have to live on disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.AI.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("QDRANT_API_KEY"); apiKey != "" {
		cfg.Database.Qdrant.APIKey = apiKey
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Database.Neo4j.Password = password
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.AI.LLM.Model == "" {
		c.AI.LLM.Model = "gpt-4o-mini"
	}
	if c.AI.LLM.MaxRetries == 0 {
		c.AI.LLM.MaxRetries = 3
	}
	if c.AI.Embedding.Model == "" {
		c.AI.Embedding.Model = "text-embedding-3-small"
	}
	if c.Database.Qdrant.Collection == "" {
		c.Database.Qdrant.Collection = "once_scenes"
	}
	if c.Database.Qdrant.VectorSize == 0 {
		c.Database.Qdrant.VectorSize = 1536
	}
	if c.Memory.RecallLimit == 0 {
		c.Memory.RecallLimit = 5
	}
	if c.Memory.LocationHistoryLimit == 0 {
		c.Memory.LocationHistoryLimit = 5
	}
	if c.Memory.RecentSceneCount == 0 {
		c.Memory.RecentSceneCount = 5
	}
	if c.Tasks.Workers == 0 {
		c.Tasks.Workers = 4
	}
	if c.Tasks.QueueSize == 0 {
		c.Tasks.QueueSize = 256
	}
	if c.Tasks.TaskTimeout == 0 {
		c.Tasks.TaskTimeout = 2 * time.Minute
	}
}
