package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	AI        AIConfig        `mapstructure:"ai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RAG       RagConfig       `mapstructure:"rag"`
	Upload    UploadConfig    `mapstructure:"upload"`
	WebSearch WebSearchConfig `mapstructure:"websearch"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig AI 模型配置
type AIConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig OpenAI 生成模型配置
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`  // local, openai
	Model     string `mapstructure:"model"`     // openai provider 的模型名
	Dimension int    `mapstructure:"dimension"` // local provider 的向量维度
	APIKey    string `mapstructure:"api_key"`   // 为空时复用 ai.openai.api_key
	BaseURL   string `mapstructure:"base_url"`
}

// RedisConfig Redis 配置,仅用作向量缓存的二级存储
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr 返回 Redis 连接地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RagConfig 检索与知识库配置
type RagConfig struct {
	StorePath           string  `mapstructure:"store_path"`           // 向量库持久化目录
	ChunkSize           int     `mapstructure:"chunk_size"`           // 分块大小（字符）
	ChunkOverlap        int     `mapstructure:"chunk_overlap"`        // 块间重叠（字符）
	MaxChunks           int     `mapstructure:"max_chunks"`           // 单次检索最大返回块数
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"` // 严格相似度阈值
	RelaxedThreshold    float64 `mapstructure:"relaxed_threshold"`    // 放宽重试阈值
	RelaxedTrigger      float64 `mapstructure:"relaxed_trigger"`      // 触发放宽重试的阈值下限
	WebMinDocs          int     `mapstructure:"web_min_docs"`         // 触发网络搜索的文档结果下限
	WebResults          int     `mapstructure:"web_results"`          // 网络搜索请求结果条数
}

// UploadConfig 上传限制配置
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"` // 单文件大小限制（字节）
}

// WebSearchConfig 网络搜索配置
type WebSearchConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // 为空时使用官方端点
	Timeout int    `mapstructure:"timeout"`  // 秒
}

var globalConfig *Config

// Load 加载配置并解析为 Config
// env 为环境名(dev, prod, test),configPath 非空时直接读取该文件
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 按环境名在常用相对路径下查找 dev.yaml / prod.yaml
		v.SetConfigName(env)
		for _, dir := range []string{"./config", "../config", "../../config"} {
			v.AddConfigPath(dir)
		}
	}

	// 环境变量优先于配置文件,嵌套键用下划线展开,如 APP_RAG_CHUNK_SIZE
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// EmbeddingAPIKey 返回向量化使用的 API Key,未单独配置时复用生成模型的 Key
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	return c.AI.OpenAI.APIKey
}
