package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Warsaw"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Discord struct {
		Token string `envconfig:"DISCORD_BOT_TOKEN"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Scraper struct {
		BaseURL     string `envconfig:"PEPPER_BASE_URL" default:"https://www.pepper.pl"`
		UserAgent   string `envconfig:"PEPPER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
		TimeoutSec  int    `envconfig:"PEPPER_TIMEOUT_SEC" default:"15"`
		SearchLimit int    `envconfig:"PEPPER_SEARCH_LIMIT" default:"7"`
	} `envconfig:""`

	Watcher struct {
		IntervalMin  int `envconfig:"WATCH_INTERVAL_MINUTES" default:"15"`
		QueryPauseMS int `envconfig:"WATCH_QUERY_PAUSE_MS" default:"1500"`
	} `envconfig:""`

	// Flights — унаследованная ежедневная подборка билетов в один канал.
	// Выключена, пока не задан FLIGHT_CHANNEL_ID.
	Flights struct {
		ChannelID int64  `envconfig:"FLIGHT_CHANNEL_ID"`
		Slug      string `envconfig:"FLIGHT_CATEGORY_SLUG" default:"bilety-lotnicze"`
		Hour      int    `envconfig:"FLIGHT_SCHEDULE_HOUR" default:"8"`
	} `envconfig:""`

	Retention struct {
		SentDealsDays int `envconfig:"SENT_DEALS_RETENTION_DAYS" default:"30"`
	} `envconfig:""`

	Queues struct {
		Driver       string `envconfig:"NOTIFY_QUEUE_DRIVER" default:"redis"`
		Notification string `envconfig:"NOTIFY_QUEUE_KEY" default:"notification_jobs"`
		AMQPURL      string `envconfig:"AMQP_URL"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
