package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"pepper-deal-bot/internal/adapters/bot"
	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/infra/config"
	httpinfra "pepper-deal-bot/internal/infra/http"
	"pepper-deal-bot/internal/infra/log"
	"pepper-deal-bot/internal/infra/metrics"
	"pepper-deal-bot/internal/infra/queue"
	"pepper-deal-bot/internal/usecase/delivery"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось создать сессию")
	}
	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось подключиться к Discord")
	}
	defer session.Close()

	notifyQueue, closeQueue, err := buildQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: очередь недоступна")
	}
	defer closeQueue()

	notifier := bot.NewNotifier(session, logger)
	worker := delivery.NewService(notifyQueue, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
		<-stop
		logger.Info().Msg("остановка доставщика")
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

	logger.Info().Msg("доставщик запущен")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("notifier: цикл доставки завершился с ошибкой")
	}
}

func buildQueue(cfg config.AppConfig) (domain.NotificationQueue, func(), error) {
	switch cfg.Queues.Driver {
	case "rabbitmq":
		q, err := queue.NewRabbitNotificationQueue(cfg.Queues.AMQPURL, cfg.Queues.Notification)
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return queue.NewRedisNotificationQueue(client, cfg.Queues.Notification), func() { _ = client.Close() }, nil
	}
}
