package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/classifier"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/escalation"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/generator"
	"github.com/NeuralTrust/ReplyGuard/pkg/orchestrator"
	"github.com/NeuralTrust/ReplyGuard/pkg/ratelimit"
	"github.com/NeuralTrust/ReplyGuard/pkg/validator"
)

type Config struct {
	Server       ServerConfig           `mapstructure:"server"`
	Redis        RedisConfig            `mapstructure:"redis"`
	Database     DatabaseConfig         `mapstructure:"database"`
	Policy       PolicyConfig           `mapstructure:"policy"`
	RateLimit    ratelimit.Config       `mapstructure:"rate_limit"`
	Input        validator.InputConfig  `mapstructure:"input"`
	Output       validator.OutputConfig `mapstructure:"output"`
	Orchestrator orchestrator.Config    `mapstructure:"orchestrator"`
	Classifier   classifier.Config      `mapstructure:"classifier"`
	Generator    generator.Config       `mapstructure:"generator"`
	Escalation   escalation.Config      `mapstructure:"escalation"`
	Audit        AuditConfig            `mapstructure:"audit"`
	Log          LogConfig              `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type PolicyConfig struct {
	// Source is "file" or "redis".
	Source         string        `mapstructure:"source"`
	FilePath       string        `mapstructure:"file_path"`
	RedisKey       string        `mapstructure:"redis_key"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

type AuditConfig struct {
	FilePath string `mapstructure:"file_path"`
	// Postgres enables the database sink alongside the file sink.
	Postgres bool `mapstructure:"postgres"`
	Workers  int  `mapstructure:"workers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load config file: %w", err)
	}
	setDefaultValues()
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues() {
	if globalConfig.Server.Port == 0 {
		globalConfig.Server.Port = 8080
	}
	if globalConfig.Database.SSLMode == "" {
		globalConfig.Database.SSLMode = "disable"
	}
	if globalConfig.Policy.Source == "" {
		globalConfig.Policy.Source = "file"
	}
	if globalConfig.Policy.FilePath == "" {
		globalConfig.Policy.FilePath = "config/policy.yaml"
	}
	if globalConfig.Audit.FilePath == "" {
		globalConfig.Audit.FilePath = "logs/audit.jsonl"
	}
	if globalConfig.Log.Level == "" {
		globalConfig.Log.Level = "info"
	}
}

func GetConfig() *Config {
	return &globalConfig
}
