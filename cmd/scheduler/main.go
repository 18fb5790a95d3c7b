package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

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
	"pepper-deal-bot/internal/usecase/runs"
)

// cleanupHour — час ночной уборки дедупликации.
const cleanupHour = 4

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	location, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("scheduler: неизвестная таймзона")
	}

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	guard := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)
	pepperScraper := scraper.NewPepper(cfg.Scraper.BaseURL, cfg.Scraper.UserAgent, time.Duration(cfg.Scraper.TimeoutSec)*time.Second, logger)
	notifyQueue, closeQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: очередь недоступна")
	}
	defer closeQueue()

	alertsService := alerts.NewService(repoAdapter, pepperScraper, notifyQueue, logger, time.Duration(cfg.Watcher.QueryPauseMS)*time.Millisecond)
	runsService := runs.NewService(repoAdapter, repoAdapter, repoAdapter, pepperScraper, notifyQueue, guard, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
		<-stop
		logger.Info().Msg("остановка планировщика")
		cancel()
	}()

	srv := httpinfra.NewServer(logger)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	watchInterval := time.Duration(cfg.Watcher.IntervalMin) * time.Minute
	retention := time.Duration(cfg.Retention.SentDealsDays) * 24 * time.Hour

	minuteTicker := time.NewTicker(time.Minute)
	defer minuteTicker.Stop()
	watchTicker := time.NewTicker(watchInterval)
	defer watchTicker.Stop()

	logger.Info().
		Dur("watch_interval", watchInterval).
		Str("tz", cfg.TZ).
		Msg("планировщик запущен")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-minuteTicker.C:
			local := now.In(location)
			if err := runsService.RunDue(ctx, local); err != nil {
				logger.Error().Err(err).Msg("scheduler: прогон категорий не удался")
			}
			if cfg.Flights.ChannelID != 0 && local.Hour() == cfg.Flights.Hour && local.Minute() == 0 {
				key := fmt.Sprintf("flight_watch:%s", local.Format("20060102"))
				err := guard.Once(key, 25*time.Hour, func() error {
					_, err := runsService.RunDailyWatch(ctx, cfg.Flights.Slug, cfg.Flights.ChannelID)
					return err
				})
				if err != nil {
					logger.Error().Err(err).Msg("scheduler: ежедневная подборка не удалась")
				}
			}
			if local.Hour() == cleanupHour && local.Minute() == 0 {
				key := fmt.Sprintf("cleanup:%s", local.Format("20060102"))
				err := guard.Once(key, 25*time.Hour, func() error {
					return runsService.Cleanup(ctx, retention)
				})
				if err != nil {
					logger.Error().Err(err).Msg("scheduler: уборка не удалась")
				}
			}
		case now := <-watchTicker.C:
			slot := now.Truncate(watchInterval).Format("200601021504")
			err := guard.Once(fmt.Sprintf("alert_check:%s", slot), watchInterval, func() error {
				_, err := alertsService.CheckAlerts(ctx)
				return err
			})
			if err != nil {
				logger.Error().Err(err).Msg("scheduler: проверка алертов не удалась")
			}
		}
	}
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
