package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
// 这里只放进程级静态配置；汇率、手续费等运营可改配置在 setting 表里
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Explorer ExplorerConfig `mapstructure:"explorer"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	OperatorToken string `mapstructure:"operator_token"` // 运营接口 Bearer Token
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OperatorNotify string `mapstructure:"operator_notify"` // 运营提醒
	ReferralNotify string `mapstructure:"referral_notify"` // 返佣通知
}

type ExplorerConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // 区块浏览器 API 地址
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单次请求超时
	FetchLimit     int    `mapstructure:"fetch_limit"`     // 每次拉取的转账条数上限
}

type BusinessConfig struct {
	OrderTimeoutMinutes      int `mapstructure:"order_timeout_minutes"`      // 订单有效期（30分钟）
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds"` // 对账周期（30秒）
	MaxRetryCount            int `mapstructure:"max_retry_count"`            // 通知最大重试次数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
