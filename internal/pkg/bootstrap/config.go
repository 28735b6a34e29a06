// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置。先取默认值，再叠加 YAML 文件，最后由环境变量覆盖。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	LogLevel string        `yaml:"logLevel" env:"LOG_LEVEL"`
	Loyalty  LoyaltyConfig `yaml:"loyalty"`
	Returns  ReturnsConfig `yaml:"returns"`
	Export   ExportConfig  `yaml:"export"`
}

type LoyaltyConfig struct {
	// RewardExpression 是 CEL 表达式，可用变量 total_amount (double) 和 item_count (int)。
	RewardExpression string `yaml:"rewardExpression" env:"LOYALTY_REWARD_EXPRESSION"`
}

type ReturnsConfig struct {
	// RefundPolicy: keep_delivered | mark_returned
	RefundPolicy string `yaml:"refundPolicy" env:"RETURNS_REFUND_POLICY"`
}

type ExportConfig struct {
	OutputDir string        `yaml:"outputDir" env:"EXPORT_OUTPUT_DIR"`
	Lookback  time.Duration `yaml:"lookback" env:"EXPORT_LOOKBACK"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Services  ServicesConfig  `yaml:"services"`
}

type MySQLConfig struct {
	Addr     string `yaml:"addr" env:"MYSQL_ADDR"`
	User     string `yaml:"user" env:"MYSQL_USER"`
	Password string `yaml:"password" env:"MYSQL_PASSWORD"`
	Database string `yaml:"database" env:"MYSQL_DATABASE"`
}

// DSN 交给驱动拼接，避免手写转义。
func (c MySQLConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = c.Addr
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Database
	mc.ParseTime = true
	// 守卫更新依赖 RowsAffected，值未变化的行也要计入
	mc.ClientFoundRows = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	ChangeFeedTopic string   `yaml:"changeFeedTopic" env:"KAFKA_CHANGE_FEED_TOPIC"`
	PaymentTopic    string   `yaml:"paymentTopic" env:"KAFKA_PAYMENT_TOPIC"`
	PaymentGroupID  string   `yaml:"paymentGroupId" env:"KAFKA_PAYMENT_GROUP_ID"`
	PaymentDLTTopic string   `yaml:"paymentDltTopic" env:"KAFKA_PAYMENT_DLT_TOPIC"`
	FeedGroupID     string   `yaml:"feedGroupId" env:"KAFKA_FEED_GROUP_ID"`
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs" env:"REDIS_ADDRS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled" env:"NACOS_ENABLED"`
	ServerAddrs string `yaml:"serverAddrs" env:"NACOS_SERVER_ADDRS"`
	Namespace   string `yaml:"namespace" env:"NACOS_NAMESPACE"`
	Group       string `yaml:"group" env:"NACOS_GROUP"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers" env:"ZOOKEEPER_SERVERS" envSeparator:","`
	SessionTimeout time.Duration `yaml:"sessionTimeout" env:"ZOOKEEPER_SESSION_TIMEOUT"`
}

type ServicesConfig struct {
	// Inventory 为空时通过 Nacos 发现 inventory-service。
	Inventory string `yaml:"inventory" env:"INVENTORY_SERVICE_URL"`
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: "info",
			Loyalty:  LoyaltyConfig{RewardExpression: "int(total_amount / 100.0)"},
			Returns:  ReturnsConfig{RefundPolicy: "keep_delivered"},
			Export:   ExportConfig{OutputDir: "/tmp/order-export", Lookback: 24 * time.Hour},
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{Addr: "localhost:3306", User: "root", Database: "ordercore"},
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				ChangeFeedTopic: "order-change-feed",
				PaymentTopic:    "payment-events",
				PaymentGroupID:  "order-service-payment-events",
				PaymentDLTTopic: "payment-events-dlt",
				FeedGroupID:     "feed-gateway",
			},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
		},
	}
}

var current atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次 Load 的结果，未加载时返回默认值。
func GetCurrentConfig() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	return Default()
}

func SetCurrentConfig(c *Config) {
	current.Store(c)
}

// Load 读取 path 指向的 YAML（为空时读 CONFIG_FILE，文件不存在则跳过），再应用环境变量。
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env 只用于本地开发

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}
	SetCurrentConfig(cfg)
	return cfg, nil
}
