package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Log      LogConfig      `json:"log"`
	Upload   UploadConfig   `json:"upload"`
	PM       PMConfig       `json:"pm"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	HTTPPort int    `json:"http_port"` // HTTP端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// AuthConfig 鉴权配置。
// RBAC 为可选的 route -> roles 附加限制；为空表示“只鉴权，不限权”，
// 操作级别的角色门禁由领域层的 guard 统一执行。
type AuthConfig struct {
	Enabled     bool                `json:"enabled"`
	JWTSecret   string              `json:"jwt_secret"`
	Issuer      string              `json:"issuer"`
	Audience    string              `json:"audience"`
	TTLMinutes  int                 `json:"ttl_minutes"`  // access token 有效期（分钟）
	PublicPaths []string            `json:"public_paths"` // 免鉴权路由，如 "POST /auth/login"
	RBAC        map[string][]string `json:"rbac"`
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

// UploadConfig 照片等二进制文件的本地存储配置
type UploadConfig struct {
	Dir string `json:"dir"` // 上传目录
}

// PMConfig 预防性保养（PM）相关配置
type PMConfig struct {
	OilDueSoonMiles     int64  `json:"oil_due_soon_miles"`     // 机油保养提前告警里程
	ChassisDueSoonMiles int64  `json:"chassis_due_soon_miles"` // 底盘保养提前告警里程
	AlertSweepSpec      string `json:"alert_sweep_spec"`       // cron 表达式，定时扫描告警
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		// 如果配置文件不存在，使用默认配置
		if _, err = os.Stat(configPath); os.IsNotExist(err) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			err = nil
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}

		applyDefaults(globalConfig)
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// applyDefaults 对未填写的关键字段补默认值。
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "dvcr-service"
	}
	if cfg.Server.HTTPPort <= 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Auth.TTLMinutes <= 0 {
		cfg.Auth.TTLMinutes = 43200 // 30 天
	}
	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = "uploads"
	}
	if cfg.PM.OilDueSoonMiles <= 0 {
		cfg.PM.OilDueSoonMiles = 5000
	}
	if cfg.PM.ChassisDueSoonMiles <= 0 {
		cfg.PM.ChassisDueSoonMiles = 3000
	}
	if cfg.PM.AlertSweepSpec == "" {
		cfg.PM.AlertSweepSpec = "0 6 * * *"
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "dvcr-service",
			Host:     "0.0.0.0",
			HTTPPort: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "root",
			Password: "root",
			Database: "fleetdvcr",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Auth: AuthConfig{
			Enabled:    true,
			JWTSecret:  "dev-secret-change-me",
			Issuer:     "fleetdvcr",
			Audience:   "fleetdvcr",
			TTLMinutes: 43200,
			PublicPaths: []string{
				"POST /auth/login",
				"GET /health",
			},
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "http://localhost:14268/api/traces",
			Sampler:  1.0,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
		Upload: UploadConfig{
			Dir: "uploads",
		},
		PM: PMConfig{
			OilDueSoonMiles:     5000,
			ChassisDueSoonMiles: 3000,
			AlertSweepSpec:      "0 6 * * *",
		},
	}
}
