// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Transcription TranscriptionConfig `yaml:"transcription" mapstructure:"transcription"`
	Ingest        IngestConfig        `yaml:"ingest" mapstructure:"ingest"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
	// DataDir 数据目录（sqlite 文件、索引快照、缩略图的默认父目录）
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
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

// DatabaseConfig 关系库配置
type DatabaseConfig struct {
	// Driver sqlite | postgres
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// SQLiteConfig SQLite 配置
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	LogSQL          bool          `yaml:"log_sql" mapstructure:"log_sql"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
	// QueryEmbeddingTTL 查询向量缓存时长，0 表示不缓存
	QueryEmbeddingTTL time.Duration `yaml:"query_embedding_ttl" mapstructure:"query_embedding_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量索引配置
type VectorConfig struct {
	// Backend flat | milvus | pgvector
	Backend   string       `yaml:"backend" mapstructure:"backend"`
	Dimension int          `yaml:"dimension" mapstructure:"dimension"`
	// SnapshotPath flat 索引快照路径（id 映射写入 <path>.ids）
	SnapshotPath string       `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	Milvus       MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host             string `yaml:"host" mapstructure:"host"`
	Port             int    `yaml:"port" mapstructure:"port"`
	User             string `yaml:"user" mapstructure:"user"`
	Password         string `yaml:"password" mapstructure:"password"`
	CollectionPrefix string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	// ThumbnailDir 本地缩略图目录
	ThumbnailDir string   `yaml:"thumbnail_dir" mapstructure:"thumbnail_dir"`
	S3           S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config S3 兼容存储配置（MinIO / R2）
type S3Config struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL          bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	PublicURL       string `yaml:"public_url" mapstructure:"public_url"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	// Provider clip（图文同空间 HTTP 服务）| openai（文本走 OpenAI 兼容接口）
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size"`
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TranscriptionConfig 语音转写配置
type TranscriptionConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// UseSidecarSRT 存在同名 .srt 时优先使用
	UseSidecarSRT bool `yaml:"use_sidecar_srt" mapstructure:"use_sidecar_srt"`
}

// IngestConfig 摄取配置
type IngestConfig struct {
	Workers          int           `yaml:"workers" mapstructure:"workers"`
	KeyframeInterval float64       `yaml:"keyframe_interval" mapstructure:"keyframe_interval"`
	MaxFrames        int           `yaml:"max_frames" mapstructure:"max_frames"`
	EmbedBatchSize   int           `yaml:"embed_batch_size" mapstructure:"embed_batch_size"`
	StageTimeout     time.Duration `yaml:"stage_timeout" mapstructure:"stage_timeout"`
	FFmpegPath       string        `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath      string        `yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	DefaultTopK  int     `yaml:"default_top_k" mapstructure:"default_top_k"`
	MaxTopK      int     `yaml:"max_top_k" mapstructure:"max_top_k"`
	VisualWeight float64 `yaml:"visual_weight" mapstructure:"visual_weight"`
	TextWeight   float64 `yaml:"text_weight" mapstructure:"text_weight"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	Enabled     bool              `yaml:"enabled" mapstructure:"enabled"`
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen        int           `yaml:"max_len" mapstructure:"max_len"`
	BlockTimeout  time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
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
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
