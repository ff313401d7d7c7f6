// internal/pkg/config/config.go
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 汇总了所有服务共享的基础设施与业务配置。
// 配置来源优先级: 环境变量 > YAML 文件 > 默认值。
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Payment   PaymentConfig   `yaml:"payment"`
	Order     OrderConfig     `yaml:"order"`
}

type ServiceConfig struct {
	LogLevel string `yaml:"logLevel"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	NotificationTopic string   `yaml:"notificationTopic"`
}

type ZookeeperConfig struct {
	Addrs          []string      `yaml:"addrs"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type PaymentConfig struct {
	// 支付服务商创建支付链接的接口地址
	Endpoint string `yaml:"endpoint"`
}

// OrderConfig 定义了订单生命周期相关的业务参数。
type OrderConfig struct {
	// 临时订单的保留时长，超时未结算的订单会被后台清扫任务删除
	ExpireAfter time.Duration `yaml:"expireAfter"`
	// 清扫任务的执行间隔
	SweepInterval time.Duration `yaml:"sweepInterval"`
	// 创建订单(含库存分配)这类重事务的执行预算
	HeavyTxBudget time.Duration `yaml:"heavyTxBudget"`
	// 普通状态流转事务的执行预算
	LightTxBudget time.Duration `yaml:"lightTxBudget"`
}

// Default 返回一份可以直接在本地跑起来的默认配置。
func Default() *Config {
	return &Config{
		Service: ServiceConfig{LogLevel: "info"},
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/atlas?charset=utf8mb4&parseTime=True&loc=Local",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{Addr: "localhost:6379", CacheTTL: 30 * time.Second},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			NotificationTopic: "order-notifications",
		},
		Zookeeper: ZookeeperConfig{Addrs: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second},
		Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Payment:   PaymentConfig{Endpoint: "http://localhost:9090/v2/payment-requests"},
		Order: OrderConfig{
			ExpireAfter:   20 * time.Minute,
			SweepInterval: time.Minute,
			HeavyTxBudget: 15 * time.Second,
			LightTxBudget: 5 * time.Second,
		},
	}
}

// Load 读取配置。path 为空时只使用默认值和环境变量。
// .env 文件若存在会先被加载进环境变量(本地开发用)。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv 用环境变量覆盖部署相关的配置项。
func (c *Config) applyEnv() {
	c.MySQL.DSN = GetEnv("MYSQL_DSN", c.MySQL.DSN)
	c.Redis.Addr = GetEnv("REDIS_ADDR", c.Redis.Addr)
	if brokers := GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if addrs := GetEnv("ZOOKEEPER_ADDRS", ""); addrs != "" {
		c.Zookeeper.Addrs = strings.Split(addrs, ",")
	}
	c.Nacos.ServerAddrs = GetEnv("NACOS_SERVER_ADDRS", c.Nacos.ServerAddrs)
	c.Nacos.Namespace = GetEnv("NACOS_NAMESPACE", c.Nacos.Namespace)
	c.Nacos.Group = GetEnv("NACOS_GROUP", c.Nacos.Group)
	c.Jaeger.Endpoint = GetEnv("JAEGER_ENDPOINT", c.Jaeger.Endpoint)
	c.Payment.Endpoint = GetEnv("PAYMENT_ENDPOINT", c.Payment.Endpoint)
	c.Service.LogLevel = GetEnv("LOG_LEVEL", c.Service.LogLevel)
}

// GetEnv 从环境变量中读取配置，不存在时返回默认值。
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
