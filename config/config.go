// Package config 从环境变量 (以及可选的 .env 文件) 读取运行配置
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret 未设置 JWT_SECRET 时使用, 只适合开发环境
const DefaultJWTSecret = "change-me-in-production"

// 地图来源
const (
	SourceFiles = "files"
	SourceDB    = "db"
)

// Config 服务配置
type Config struct {
	Addr       string // HTTP 监听地址
	PointsFile string // 点文件路径
	RoutesFile string // 路线文件路径
	MapSource  string // files 或 db

	DB DBConfig

	JWTSecret     string
	JWTTTL        time.Duration
	AdminUser     string // 启动时确保存在的管理员账号, 为空时不创建
	AdminPassword string

	PathCacheSize int           // 路径缓存条数, 0 表示不缓存
	PathCacheTTL  time.Duration // 路径缓存有效期

	GinMode string
}

// DBConfig PostgreSQL 连接配置
type DBConfig struct {
	Enabled    bool
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	MaxRetries int
	RetryWait  time.Duration
}

// DSN 返回 PostgreSQL 连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

// Load 读取 .env (如果存在) 和环境变量
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件, 使用环境变量")
	}
	return FromEnv()
}

// FromEnv 只从环境变量读取配置
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:       getEnvOrDefault("HTTP_ADDR", ":8080"),
		PointsFile: getEnvOrDefault("POINTS_FILE", "data/pontos.csv"),
		RoutesFile: getEnvOrDefault("ROUTES_FILE", "data/rotas.csv"),
		MapSource:  getEnvOrDefault("MAP_SOURCE", SourceFiles),
		DB: DBConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "planner"),
			Password: getEnvOrDefault("DB_PASSWORD", "planner"),
			Name:     getEnvOrDefault("DB_NAME", "routeplanner"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		JWTSecret:     getEnvOrDefault("JWT_SECRET", DefaultJWTSecret),
		AdminUser:     os.Getenv("ADMIN_USER"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		GinMode:       getEnvOrDefault("GIN_MODE", "debug"),
	}

	var err error
	if cfg.DB.Enabled, err = envBool("DB_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.DB.MaxRetries, err = envInt("DB_MAX_RETRIES", 30); err != nil {
		return nil, err
	}
	if cfg.DB.RetryWait, err = envDuration("DB_RETRY_WAIT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = envDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PathCacheSize, err = envInt("PATH_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.PathCacheTTL, err = envDuration("PATH_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.MapSource {
	case SourceFiles:
	case SourceDB:
		if !cfg.DB.Enabled {
			return nil, fmt.Errorf("MAP_SOURCE=%s 需要 DB_ENABLED=true", SourceDB)
		}
	default:
		return nil, fmt.Errorf("MAP_SOURCE 只能是 %s 或 %s: %q", SourceFiles, SourceDB, cfg.MapSource)
	}
	if cfg.JWTSecret == DefaultJWTSecret {
		if cfg.GinMode == "release" {
			return nil, fmt.Errorf("GIN_MODE=release 时必须设置 JWT_SECRET")
		}
		log.Println("警告: 未设置 JWT_SECRET, 使用默认密钥")
	}
	if cfg.AdminUser != "" && len(cfg.AdminPassword) < 6 {
		return nil, fmt.Errorf("ADMIN_PASSWORD 至少需要 6 个字符")
	}
	if cfg.PathCacheSize < 0 {
		return nil, fmt.Errorf("PATH_CACHE_SIZE 不能为负数: %d", cfg.PathCacheSize)
	}

	return cfg, nil
}

// getEnvOrDefault 获取环境变量，如果不存在则返回默认值
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("环境变量 %s 不是整数: %w", key, err)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("环境变量 %s 不是布尔值: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("环境变量 %s 不是有效的时长: %w", key, err)
	}
	return d, nil
}
