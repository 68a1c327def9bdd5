package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/autobuzz/autobuzz/pkg/logger"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logger   logger.Config  `yaml:"logger"`
	Ayrshare AyrshareConfig `yaml:"ayrshare"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

// AyrshareConfig holds credentials for the Ayrshare publishing API.
// Domain and PrivateKey are only needed for the Business Plan social-linking
// flow; publishing itself needs just the API key and a profile key.
type AyrshareConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Domain     string `yaml:"domain"`
	PrivateKey string `yaml:"private_key"`
	Timeout    string `yaml:"timeout"`
	AppURL     string `yaml:"app_url"`
}

type DispatchConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Interval     string   `yaml:"interval"`
	CronSecret   string   `yaml:"cron_secret"`
	BatchLimit   int      `yaml:"batch_limit"`
	ClaimTimeout string   `yaml:"claim_timeout"`
	AdminUserIDs []string `yaml:"admin_user_ids"`
}

type AuthConfig struct {
	TOTPSecret string `yaml:"totp_secret"`
	SessionTTL string `yaml:"session_ttl"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills in unset fields. Exposed so tests can build a Config
// by hand without a YAML file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5380
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Ayrshare.BaseURL == "" {
		cfg.Ayrshare.BaseURL = "https://api.ayrshare.com"
	}
	if cfg.Ayrshare.Timeout == "" {
		cfg.Ayrshare.Timeout = "30s"
	}
	if cfg.Ayrshare.AppURL == "" {
		cfg.Ayrshare.AppURL = "http://localhost:3000"
	}
	if cfg.Dispatch.Interval == "" {
		cfg.Dispatch.Interval = "1m"
	}
	if cfg.Dispatch.BatchLimit == 0 {
		cfg.Dispatch.BatchLimit = 50
	}
	if cfg.Dispatch.ClaimTimeout == "" {
		cfg.Dispatch.ClaimTimeout = "5m"
	}
	if cfg.Auth.SessionTTL == "" {
		cfg.Auth.SessionTTL = "12h"
	}
}
