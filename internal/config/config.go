// Package config 负责加载和管理控制台的配置。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个控制台的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// ServerConfig 存储本地控制台 API 的配置。
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`

	// AllowedOrigins 额外允许连接事件流的浏览器来源，例如 "https://kiosk.example"。同源请求总是允许。
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// BackendConfig 存储医院助手后端的连接配置。
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// WorkflowConfig 控制会话、快捷操作与上传进度的节奏。
type WorkflowConfig struct {
	QuickActionThreshold   int           `mapstructure:"quick_action_threshold"`
	UploadProgressInterval time.Duration `mapstructure:"upload_progress_interval"`
	UploadProgressStep     int           `mapstructure:"upload_progress_step"`
	UploadProgressCap      int           `mapstructure:"upload_progress_cap"`
	UploadSettleDelay      time.Duration `mapstructure:"upload_settle_delay"`
}

// AuthConfig 存储可选的操作员登录（JWT）配置。
type AuthConfig struct {
	Enabled                bool             `mapstructure:"enabled"`
	JWTSecret              string           `mapstructure:"jwt_secret"`
	AccessTokenExpireHours int              `mapstructure:"access_token_expire_hours"`
	Operators              []OperatorConfig `mapstructure:"operators"`
}

// OperatorConfig 描述一个可以登录 staff/admin 角色的操作员账号。
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// DatabaseConfig 存储本地审计库与 Redis 的配置。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig 存储知识库 PDF 暂存桶的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储工作流事件投递的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// Default 返回所有字段都有合理取值的配置，YAML 与环境变量在其之上覆盖。
func Default() Config {
	return Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: "8090", Mode: "release"},
		Backend: BackendConfig{BaseURL: "http://localhost:8000", Timeout: 60 * time.Second},
		Log:     LogConfig{Level: "info", Format: "console"},
		Workflow: WorkflowConfig{
			QuickActionThreshold:   3,
			UploadProgressInterval: 300 * time.Millisecond,
			UploadProgressStep:     10,
			UploadProgressCap:      90,
			UploadSettleDelay:      1500 * time.Millisecond,
		},
		Auth:     AuthConfig{AccessTokenExpireHours: 12},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "./data/console.db"},
		Kafka:    KafkaConfig{Topic: "hospital-console-events"},
	}
}

// Load 读取并校验配置，不修改全局变量。configPath 为空时只使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HOSPITAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults 注册默认值，这样 AutomaticEnv 才能覆盖 YAML 中缺失的键。
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_path", d.Log.OutputPath)
	v.SetDefault("workflow.quick_action_threshold", d.Workflow.QuickActionThreshold)
	v.SetDefault("workflow.upload_progress_interval", d.Workflow.UploadProgressInterval)
	v.SetDefault("workflow.upload_progress_step", d.Workflow.UploadProgressStep)
	v.SetDefault("workflow.upload_progress_cap", d.Workflow.UploadProgressCap)
	v.SetDefault("workflow.upload_settle_delay", d.Workflow.UploadSettleDelay)
	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.access_token_expire_hours", d.Auth.AccessTokenExpireHours)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.redis.enabled", d.Database.Redis.Enabled)
	v.SetDefault("database.redis.addr", d.Database.Redis.Addr)
	v.SetDefault("database.redis.password", d.Database.Redis.Password)
	v.SetDefault("database.redis.db", d.Database.Redis.DB)
	v.SetDefault("minio.enabled", d.MinIO.Enabled)
	v.SetDefault("minio.endpoint", d.MinIO.Endpoint)
	v.SetDefault("minio.access_key_id", d.MinIO.AccessKeyID)
	v.SetDefault("minio.secret_access_key", d.MinIO.SecretAccessKey)
	v.SetDefault("minio.use_ssl", d.MinIO.UseSSL)
	v.SetDefault("minio.bucket_name", d.MinIO.BucketName)
	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
}

// Validate 检查必填字段与取值范围。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.base_url cannot be empty")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be > 0")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	w := c.Workflow
	if w.QuickActionThreshold <= 0 {
		return errors.New("workflow.quick_action_threshold must be > 0")
	}
	if w.UploadProgressStep <= 0 {
		return errors.New("workflow.upload_progress_step must be > 0")
	}
	if w.UploadProgressCap <= 0 || w.UploadProgressCap >= 100 {
		return errors.New("workflow.upload_progress_cap must be in (0, 100)")
	}
	if w.UploadProgressInterval <= 0 {
		return errors.New("workflow.upload_progress_interval must be > 0")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	if c.MinIO.Enabled && c.MinIO.BucketName == "" {
		return errors.New("minio.bucket_name is required when minio is enabled")
	}
	if c.Kafka.Enabled && (c.Kafka.Brokers == "" || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}
