package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 支持的数据库驱动。
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app" yaml:"app"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Audit    AuditConfig    `json:"audit" yaml:"audit"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env         string `json:"env" yaml:"env"`                   // 运行环境: local / prod
	LogLevel    string `json:"log_level" yaml:"log_level"`       // 日志级别: debug / info / warn / error
	HTTPAddr    string `json:"http_addr" yaml:"http_addr"`       // API 服务监听地址
	DedupWindow int    `json:"dedup_window" yaml:"dedup_window"` // 验证签名去重窗口（秒）
}

// DatabaseConfig 数据库配置。
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"` // mysql / postgres
	DSN    string `json:"dsn" yaml:"dsn"`       // 数据库连接字符串
}

// RedisConfig Redis 配置（挑战存储、限流、去重）。
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`         // Redis 地址 (host:port)
	Password string `json:"password" yaml:"password"` // Redis 密码
	DB       int    `json:"db" yaml:"db"`             // Redis DB 编号
}

// AuthConfig 钱包登录与令牌配置。
type AuthConfig struct {
	JWTSecret      string        `json:"jwt_secret" yaml:"jwt_secret"`           // JWT 签名密钥
	TokenTTL       time.Duration `json:"token_ttl" yaml:"token_ttl"`             // 访问令牌有效期（如 "168h"）
	ChallengeTTL   time.Duration `json:"challenge_ttl" yaml:"challenge_ttl"`     // 挑战有效期（如 "5m"）
	ChallengeRate  float64       `json:"challenge_rate" yaml:"challenge_rate"`   // 挑战签发限流速率（token/s）
	ChallengeBurst float64       `json:"challenge_burst" yaml:"challenge_burst"` // 挑战签发限流桶容量
}

// AuditConfig 审计日志异步写入配置。
type AuditConfig struct {
	Workers  int `json:"workers" yaml:"workers"`   // 写入 worker 数量
	Capacity int `json:"capacity" yaml:"capacity"` // 缓冲队列容量，满时丢弃
}

// StorageConfig S3 兼容对象存储配置（附件直传）。Bucket 为空表示未启用。
type StorageConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	PublicBaseURL   string `json:"public_base_url" yaml:"public_base_url"`         // 附件公开访问前缀
	PresignTTL      int    `json:"presign_ttl_seconds" yaml:"presign_ttl_seconds"` // 预签名链接有效期（秒）
}

// Enabled 判断对象存储是否已配置。
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

// Load 从配置文件加载配置。
//
// 默认读取 configs/config.json；扩展名为 .yaml / .yml 时按 YAML 解析。
// 文件不存在时使用默认值，环境变量始终优先。
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:         "local",
			LogLevel:    "info",
			HTTPAddr:    ":8080",
			DedupWindow: 86400,
		},
		Database: DatabaseConfig{
			Driver: DriverMySQL,
			DSN:    "root:password@tcp(localhost:3306)/taskhub?parseTime=true&loc=UTC",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Auth: AuthConfig{
			JWTSecret:      "dev_secret_change_me",
			TokenTTL:       7 * 24 * time.Hour,
			ChallengeTTL:   5 * time.Minute,
			ChallengeRate:  1,
			ChallengeBurst: 5,
		},
		Audit: AuditConfig{
			Workers:  2,
			Capacity: 1000,
		},
		Storage: StorageConfig{
			Region:     "auto",
			PresignTTL: 900,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverMySQL {
		cfg.Database.DSN = defaults.Database.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = defaults.Auth.JWTSecret
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = defaults.Auth.TokenTTL
	}
	if cfg.Auth.ChallengeTTL == 0 {
		cfg.Auth.ChallengeTTL = defaults.Auth.ChallengeTTL
	}
	if cfg.Auth.ChallengeRate == 0 {
		cfg.Auth.ChallengeRate = defaults.Auth.ChallengeRate
	}
	if cfg.Auth.ChallengeBurst == 0 {
		cfg.Auth.ChallengeBurst = defaults.Auth.ChallengeBurst
	}
	if cfg.Audit.Workers == 0 {
		cfg.Audit.Workers = defaults.Audit.Workers
	}
	if cfg.Audit.Capacity == 0 {
		cfg.Audit.Capacity = defaults.Audit.Capacity
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = defaults.Storage.Region
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = defaults.Storage.PresignTTL
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("s3_access_key_id", "S3_ACCESS_KEY_ID")
	_ = viper.BindEnv("s3_secret_access_key", "S3_SECRET_ACCESS_KEY")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.DedupWindow = i
		}
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("AUTH_CHALLENGE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.ChallengeTTL = d
		}
	}
	if v := os.Getenv("AUTH_CHALLENGE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Auth.ChallengeRate = f
		}
	}
	if v := os.Getenv("AUTH_CHALLENGE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Auth.ChallengeBurst = f
		}
	}

	if v := os.Getenv("AUDIT_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Audit.Workers = i
		}
	}
	if v := os.Getenv("AUDIT_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Audit.Capacity = i
		}
	}

	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	} else if cfg.Database.Driver == DriverMySQL &&
		(hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "") {
		parsed := parseMySQLDSN(cfg.Database.DSN)
		if v := viper.GetString("db_host"); v != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = v + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.Database.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = i
		}
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("S3_PUBLIC_BASE_URL"); v != "" {
		cfg.Storage.PublicBaseURL = v
	}
	if v := viper.GetString("s3_access_key_id"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := viper.GetString("s3_secret_access_key"); v != "" {
		cfg.Storage.SecretAccessKey = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func defaultMySQLConfig() *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = "root"
	cfg.Net = "tcp"
	cfg.Addr = "localhost:3306"
	cfg.DBName = "taskhub"
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg
}

func parseMySQLDSN(dsn string) *mysql.Config {
	if dsn == "" {
		return defaultMySQLConfig()
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return defaultMySQLConfig()
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AuthConfig) UnmarshalJSON(data []byte) error {
	type Alias AuthConfig
	aux := &struct {
		TokenTTL     string `json:"token_ttl"`
		ChallengeTTL string `json:"challenge_ttl"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TokenTTL != "" {
		duration, err := time.ParseDuration(aux.TokenTTL)
		if err != nil {
			return fmt.Errorf("invalid token_ttl format: %w", err)
		}
		a.TokenTTL = duration
	}
	if aux.ChallengeTTL != "" {
		duration, err := time.ParseDuration(aux.ChallengeTTL)
		if err != nil {
			return fmt.Errorf("invalid challenge_ttl format: %w", err)
		}
		a.ChallengeTTL = duration
	}

	return nil
}
