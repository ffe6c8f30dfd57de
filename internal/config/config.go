// Package config предоставялет структуры и функции для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator"
	"github.com/ilyakaznacheev/cleanenv"
)

// Режимы доставки писем.
const (
	DeliverySMTP  = "smtp"
	DeliveryQueue = "queue"
)

// Виды защиты от параллельных тиков.
const (
	GuardLocal = "local"
	GuardRedis = "redis"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" validate:"required"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	SMTP                    `yaml:"smtp"`
	RabbitMQ                `yaml:"rabbitmq"`
	Reminder                `yaml:"reminder"`
}

// HTTPServer структура для настройки диагностического сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":5544"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// SMTP структура для настройки почтового транспорта
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USER"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
}

// RabbitMQ структура для настройки очереди писем
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// LeadTime задаёт, за сколько дней до продления отправлять напоминание,
// и метку, которая подставляется в тему и текст письма.
type LeadTime struct {
	Days  int    `yaml:"days" validate:"gte=0"`
	Label string `yaml:"label"`
}

// Reminder структура для настройки планировщика напоминаний.
// DayKeyMarkersOnly сравнивает маркер только по ключу дня, без срока напоминания.
type Reminder struct {
	LeadTimes           []LeadTime    `yaml:"lead_times" validate:"required,min=1,dive"`
	Timezone            string        `yaml:"timezone" env:"REMINDER_TIMEZONE" env-default:"Asia/Kolkata"`
	CronSpec            string        `yaml:"cron_spec" env:"REMINDER_CRON_SPEC" env-default:"0 9 * * *"`
	RunOnStart          bool          `yaml:"run_on_start" env:"REMINDER_RUN_ON_START"`
	HonorStatusFilter   bool          `yaml:"honor_status_filter" env:"REMINDER_HONOR_STATUS_FILTER"`
	DayKeyMarkersOnly   bool          `yaml:"day_key_markers_only" env:"REMINDER_DAY_KEY_MARKERS_ONLY"`
	From                string        `yaml:"from" env:"REMINDER_FROM" env-default:"Smart Subscription Manager <onboarding@resend.dev>"`
	SenderName          string        `yaml:"sender_name" env-default:"Smart Subscription Manager"`
	CurrencySymbol      string        `yaml:"currency_symbol" env-default:"₹"`
	SendRate            float64       `yaml:"send_rate" env-default:"2" validate:"gt=0"`
	SendBurst           int           `yaml:"send_burst" env-default:"1" validate:"gte=1"`
	Delivery            string        `yaml:"delivery" env:"REMINDER_DELIVERY" env-default:"smtp" validate:"oneof=smtp queue"`
	Guard               string        `yaml:"guard" env:"REMINDER_GUARD" env-default:"local" validate:"oneof=local redis"`
	GuardTTL            time.Duration `yaml:"guard_ttl" env-default:"30m"`
	TickTimeout         time.Duration `yaml:"tick_timeout" env-default:"10m"`
}

// DefaultLeadTimes повторяет исходный порядок обработки: сначала за три дня, затем в день продления.
func DefaultLeadTimes() []LeadTime {
	return []LeadTime{
		{Days: 3, Label: "3"},
		{Days: 0, Label: "0"},
	}
}

// Location возвращает часовой пояс, в котором считаются границы дня.
func (r Reminder) Location() (*time.Location, error) {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config.Location: %w", err)
	}
	return loc, nil
}

// Load читает конфиг из файла, применяет значения по умолчанию и валидирует результат.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(cfg.LeadTimes) == 0 {
		cfg.LeadTimes = DefaultLeadTimes()
	}
	for i := range cfg.LeadTimes {
		if cfg.LeadTimes[i].Label == "" {
			cfg.LeadTimes[i].Label = strconv.Itoa(cfg.LeadTimes[i].Days)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.Delivery == DeliveryQueue && cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is required for queue delivery", op)
	}
	if cfg.Guard == GuardRedis && cfg.AddressRedis == "" {
		return nil, fmt.Errorf("%s: redis address is required for redis guard", op)
	}
	return &cfg, nil
}

// MustLoad функция для загрузки конфига из CONFIG_PATH, завершает процесс при ошибке
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: ***\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"SMTP:\n"+
			"  Host: %s:%s\n"+
			"  User: %s\n"+
			"Reminder:\n"+
			"  LeadTimes: %v\n"+
			"  Timezone: %s\n"+
			"  CronSpec: %s\n"+
			"  HonorStatusFilter: %t\n"+
			"  Delivery: %s\n"+
			"  Guard: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.SMTPHost,
		c.SMTPPort,
		c.SMTPUser,
		c.LeadTimes,
		c.Timezone,
		c.CronSpec,
		c.HonorStatusFilter,
		c.Delivery,
		c.Guard,
	)
}
