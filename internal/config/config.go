// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// Config 应用配置根结构，启动时构造一次并注入各组件
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	VCS           VCSConfig           `yaml:"vcs" mapstructure:"vcs"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Preview       PreviewConfig       `yaml:"preview" mapstructure:"preview"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

// DSN 返回 PostgreSQL 连接串
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ProjectTTL   time.Duration `yaml:"project_ttl" mapstructure:"project_ttl"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	S3 S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config S3 兼容对象存储配置，预览地址为 {scheme}://{bucket}.{website_endpoint}/{slug}
type S3Config struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Region          string `yaml:"region" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	// Endpoint 非空时使用自定义 API 端点（如 MinIO），并启用 path-style
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	WebsiteScheme   string `yaml:"website_scheme" mapstructure:"website_scheme"`
	WebsiteEndpoint string `yaml:"website_endpoint" mapstructure:"website_endpoint"`
}

// VCSConfig 源码托管配置
type VCSConfig struct {
	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`
}

// GitHubConfig GitHub 发布配置
type GitHubConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Token          string        `yaml:"token" mapstructure:"token"`
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	RepoPrefix     string        `yaml:"repo_prefix" mapstructure:"repo_prefix"`
	Private        bool          `yaml:"private" mapstructure:"private"`
	Branch         string        `yaml:"branch" mapstructure:"branch"`
	StabilizeDelay time.Duration `yaml:"stabilize_delay" mapstructure:"stabilize_delay"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	// Type 提供商协议：openai（默认，含兼容接口）或 anthropic
	Type        string        `yaml:"type" mapstructure:"type"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GenerationConfig 生成流水线配置
type GenerationConfig struct {
	// Provider 为空时使用 llm.default_provider
	Provider       string        `yaml:"provider" mapstructure:"provider"`
	SlugMaxLength  int           `yaml:"slug_max_length" mapstructure:"slug_max_length"`
	ExcerptLimits  ExcerptLimits `yaml:"excerpt_limits" mapstructure:"excerpt_limits"`
	LockTTL        time.Duration `yaml:"lock_ttl" mapstructure:"lock_ttl"`
	PreviewChars   int           `yaml:"preview_chars" mapstructure:"preview_chars"`
	// AsyncEnabled 为 false 时 async 请求返回 501
	AsyncEnabled   bool          `yaml:"async_enabled" mapstructure:"async_enabled"`
	StreamName     string        `yaml:"stream_name" mapstructure:"stream_name"`
	ConsumerGroup  string        `yaml:"consumer_group" mapstructure:"consumer_group"`
	WorkerPoolSize int           `yaml:"worker_pool_size" mapstructure:"worker_pool_size"`
}

// ExcerptLimits 上游文档传递给下游阶段时的截断长度（字符数）
type ExcerptLimits struct {
	ResearchForPRD  int `yaml:"research_for_prd" mapstructure:"research_for_prd"`
	PRDForTechSpec  int `yaml:"prd_for_tech_spec" mapstructure:"prd_for_tech_spec"`
	PRDForCode      int `yaml:"prd_for_code" mapstructure:"prd_for_code"`
	TechSpecForCode int `yaml:"tech_spec_for_code" mapstructure:"tech_spec_for_code"`
}

// PreviewConfig 在线预览配置
type PreviewConfig struct {
	ReactURL    string        `yaml:"react_url" mapstructure:"react_url"`
	ReactDOMURL string        `yaml:"react_dom_url" mapstructure:"react_dom_url"`
	BabelURL    string        `yaml:"babel_url" mapstructure:"babel_url"`
	TailwindURL string        `yaml:"tailwind_url" mapstructure:"tailwind_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen        int64         `yaml:"max_len" mapstructure:"max_len"`
	BlockTimeout  time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	ClaimMinIdle  time.Duration `yaml:"claim_min_idle" mapstructure:"claim_min_idle"`
	RetryLimit    int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff  BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
}

// JWTConfig 外部认证服务令牌校验配置
type JWTConfig struct {
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`
}

// RateLimitConfig 生成接口限流配置
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// WebhookConfig 支付回调配置
type WebhookConfig struct {
	PaymentSecret string `yaml:"payment_secret" mapstructure:"payment_secret"`
}
