package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	Log        LogConfig      `yaml:"log"`
	PolicyPath string         `yaml:"policy_path"`
	Analysis   AnalysisConfig `yaml:"analysis"`
	Storage    StorageConfig  `yaml:"storage"`
	Redis      RedisConfig    `yaml:"redis"`
	Database   DatabaseConfig `yaml:"database"`
	Bedrock    BedrockConfig  `yaml:"bedrock"`
	Sources    SourcesConfig  `yaml:"sources"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// AnalysisConfig controls the optimization cycle
type AnalysisConfig struct {
	WindowDays      int      `yaml:"window_days"`
	Level           string   `yaml:"level"`      // ad, ad_set or campaign
	Dimensions      []string `yaml:"dimensions"` // creative attributes to cluster on
	IntervalSeconds int      `yaml:"interval_seconds"`
	GenerateBriefs  bool     `yaml:"generate_briefs"`
}

// Interval returns the cycle interval as a duration
func (c AnalysisConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type          string `yaml:"type"`
	LocalPath     string `yaml:"local_path"`
	S3Bucket      string `yaml:"s3_bucket"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig holds the redis connection used for cycle locks and brief caching
type RedisConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig holds the Postgres connection used as the lock fallback
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// BedrockConfig holds brief generation settings
type BedrockConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ModelID         string `yaml:"model_id"`
	Region          string `yaml:"region"`
	MaxTokens       int    `yaml:"max_tokens"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// CacheTTL returns the brief cache lifetime
func (c BedrockConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// SourcesConfig lists the performance data sources merged into each snapshot
type SourcesConfig struct {
	CSV       CSVSourceConfig       `yaml:"csv"`
	S3CSV     S3CSVSourceConfig     `yaml:"s3_csv"`
	Sheets    SheetsSourceConfig    `yaml:"sheets"`
	Meta      MetaSourceConfig      `yaml:"meta"`
	Snowflake SnowflakeSourceConfig `yaml:"snowflake"`
}

// CSVSourceConfig reads a local CSV export
type CSVSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// S3CSVSourceConfig reads CSV exports from a bucket prefix
type S3CSVSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

// SheetsSourceConfig reads a Google Sheets range with a service account
type SheetsSourceConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Range         string `yaml:"range"`
	ClientEmail   string `yaml:"client_email"`
	PrivateKey    string `yaml:"private_key"`
	BaseURL       string `yaml:"base_url"`
}

// MetaSourceConfig reads ad-level insights from the Meta Graph API
type MetaSourceConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	APIVersion     string `yaml:"api_version"`
	AccountID      string `yaml:"account_id"`
	AccessToken    string `yaml:"access_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	LookbackDays   int    `yaml:"lookback_days"`
}

// Timeout returns the configured timeout as a duration
func (c MetaSourceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SnowflakeSourceConfig reads the ad performance table from the warehouse
type SnowflakeSourceConfig struct {
	Enabled          bool   `yaml:"enabled"`
	ConnectionString string `yaml:"connection_string"`
	Account          string `yaml:"account"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	Schema           string `yaml:"schema"`
	Warehouse        string `yaml:"warehouse"`
	Table            string `yaml:"table"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.PolicyPath == "" {
		cfg.PolicyPath = "policy.yaml"
	}
	if cfg.Analysis.WindowDays == 0 {
		cfg.Analysis.WindowDays = 7
	}
	if cfg.Analysis.Level == "" {
		cfg.Analysis.Level = "ad"
	}
	if cfg.Analysis.IntervalSeconds == 0 {
		cfg.Analysis.IntervalSeconds = 3600
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-west-2"
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = cfg.Storage.AWSRegion
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 1024
	}
	if cfg.Bedrock.CacheTTLMinutes == 0 {
		cfg.Bedrock.CacheTTLMinutes = 60
	}
	if cfg.Sources.S3CSV.Region == "" {
		cfg.Sources.S3CSV.Region = cfg.Storage.AWSRegion
	}
	if cfg.Sources.Sheets.Range == "" {
		cfg.Sources.Sheets.Range = "Sheet1"
	}
	if cfg.Sources.Meta.BaseURL == "" {
		cfg.Sources.Meta.BaseURL = "https://graph.facebook.com"
	}
	if cfg.Sources.Meta.APIVersion == "" {
		cfg.Sources.Meta.APIVersion = "v19.0"
	}
	if cfg.Sources.Meta.TimeoutSeconds == 0 {
		cfg.Sources.Meta.TimeoutSeconds = 30
	}
	if cfg.Sources.Meta.LookbackDays == 0 {
		cfg.Sources.Meta.LookbackDays = cfg.Analysis.WindowDays
	}
	if cfg.Sources.Snowflake.Table == "" {
		cfg.Sources.Snowflake.Table = "AD_PERFORMANCE_DAILY"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("POLICY_PATH"); v != "" {
		cfg.PolicyPath = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	// Database override (critical for ECS deployment where config.yaml has local defaults)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("META_ACCESS_TOKEN"); v != "" {
		cfg.Sources.Meta.AccessToken = v
	}
	if v := os.Getenv("SHEETS_PRIVATE_KEY"); v != "" {
		// .env files usually carry the PEM with escaped newlines
		cfg.Sources.Sheets.PrivateKey = strings.ReplaceAll(v, `\n`, "\n")
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Sources.Snowflake.Password = v
	}

	return cfg, nil
}
