package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"pepper-deal-bot/internal/adapters/bot"
	"pepper-deal-bot/internal/adapters/repo"
	"pepper-deal-bot/internal/adapters/scraper"
	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/infra/cache"
	"pepper-deal-bot/internal/infra/config"
	"pepper-deal-bot/internal/infra/db"
	httpinfra "pepper-deal-bot/internal/infra/http"
	"pepper-deal-bot/internal/infra/log"
	"pepper-deal-bot/internal/infra/metrics"
	"pepper-deal-bot/internal/infra/queue"
	"pepper-deal-bot/internal/usecase/alerts"
	"pepper-deal-bot/internal/usecase/categories"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("бот: нет подключения к БД")
	}
	defer pool.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := db.MigrateUp(migrateCtx, pool); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("бот: миграции не применились")
	}
	cancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	repoAdapter := repo.NewPostgres(pool)
	pepperScraper := scraper.NewPepper(cfg.Scraper.BaseURL, cfg.Scraper.UserAgent, time.Duration(cfg.Scraper.TimeoutSec)*time.Second, logger)
	notifyQueue, closeQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("бот: очередь недоступна")
	}
	defer closeQueue()

	alertsService := alerts.NewService(repoAdapter, pepperScraper, notifyQueue, logger, time.Duration(cfg.Watcher.QueryPauseMS)*time.Millisecond)
	categoriesService := categories.NewService(repoAdapter, repoAdapter, pepperScraper, cache.NewRedis(redisClient), logger)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("бот: не удалось создать сессию")
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	handler := bot.NewHandler(session, logger, alertsService, categoriesService, pepperScraper, cfg.Scraper.SearchLimit)
	session.AddHandler(handler.HandleInteraction)

	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("бот: не удалось подключиться к Discord")
	}
	defer session.Close()

	if err := handler.Register(session.State.User.ID, ""); err != nil {
		logger.Fatal().Err(err).Msg("бот: не удалось зарегистрировать команды")
	}
	logger.Info().Str("user", session.State.User.Username).Msg("бот запущен")

	srv := httpinfra.NewServer(logger)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.NotificationQueue, func(), error) {
	switch cfg.Queues.Driver {
	case "rabbitmq":
		q, err := queue.NewRabbitNotificationQueue(cfg.Queues.AMQPURL, cfg.Queues.Notification)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		return queue.NewRedisNotificationQueue(redisClient, cfg.Queues.Notification), func() {}, nil
	}
}
