package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/infra/metrics"
)

const (
	groupScrapeLimit = 20
	runGuardTTL      = 2 * time.Hour
	// runSlotLayout — минута запуска, общая для всех реплик планировщика.
	runSlotLayout = "200601021504"
)

// Service выполняет плановые прогоны категорий и уборку истории.
type Service struct {
	categories domain.CategoryRepo
	dedup      domain.DedupRepo
	stats      domain.StatsRepo
	scraper    domain.Scraper
	queue      domain.NotificationQueue
	cache      domain.Cache
	log        zerolog.Logger
}

// NewService создаёт сервис прогонов.
func NewService(
	categories domain.CategoryRepo,
	dedup domain.DedupRepo,
	stats domain.StatsRepo,
	scraper domain.Scraper,
	queue domain.NotificationQueue,
	cache domain.Cache,
	logger zerolog.Logger,
) *Service {
	return &Service{
		categories: categories,
		dedup:      dedup,
		stats:      stats,
		scraper:    scraper,
		queue:      queue,
		cache:      cache,
		log:        logger,
	}
}

// RunDue запускает все категории, чьё расписание попадает в указанную минуту.
// Защёлка в кэше не даёт нескольким репликам выполнить один слот дважды.
func (s *Service) RunDue(ctx context.Context, now time.Time) error {
	categories, err := s.categories.ListActiveCategories()
	if err != nil {
		return fmt.Errorf("выборка активных категорий: %w", err)
	}

	for _, cfg := range categories {
		if !cfg.Schedule.DueAt(now, cfg.LastRun) {
			continue
		}

		key := fmt.Sprintf("category_run:%d:%s", cfg.ID, now.Format(runSlotLayout))
		err := s.cache.Once(key, runGuardTTL, func() error {
			return s.RunCategory(ctx, cfg)
		})
		if err != nil {
			s.log.Error().Err(err).Int64("category_id", cfg.ID).Str("slug", cfg.Slug).Msg("прогоны: категория не выполнилась")
		}
	}
	return nil
}

// RunCategory скрейпит группу категории, фильтрует и рассылает новые
// предложения в канал, после чего фиксирует статистику и время запуска.
func (s *Service) RunCategory(ctx context.Context, cfg domain.CategoryConfig) error {
	start := time.Now()
	defer func() {
		metrics.CategoryRunSeconds.Observe(time.Since(start).Seconds())
	}()

	deals, err := s.scraper.GroupDeals(ctx, cfg.Slug, groupScrapeLimit)
	if err != nil {
		if statsErr := s.stats.AddCategoryStats(cfg.ID, 0, 0, 1); statsErr != nil {
			s.log.Error().Err(statsErr).Int64("category_id", cfg.ID).Msg("прогоны: ошибка записи статистики")
		}
		return fmt.Errorf("скрейп категории %q: %w", cfg.Slug, err)
	}

	sent := 0
	var sentBatch []domain.CategorySent
	for _, deal := range deals {
		if cfg.MinTemp > 0 && deal.Temperature < cfg.MinTemp {
			continue
		}
		if cfg.MaxPrice != nil {
			if price := domain.ParsePrice(deal.Price); price > *cfg.MaxPrice {
				continue
			}
		}

		already, err := s.dedup.IsCategoryDealSent(cfg.ID, deal.ID)
		if err != nil {
			return fmt.Errorf("проверка дедупликации: %w", err)
		}
		if already {
			continue
		}

		job := domain.NotificationJob{
			ID:         uuid.NewString(),
			Kind:       domain.NotifyChannel,
			ChannelID:  cfg.ChannelID,
			GuildID:    cfg.GuildID,
			Category:   cfg.DisplayName(),
			Deal:       deal,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("постановка уведомления: %w", err)
		}
		sent++
		sentBatch = append(sentBatch, domain.CategorySent{CategoryID: cfg.ID, DealID: deal.ID})
	}

	if err := s.dedup.MarkCategorySentBatch(sentBatch); err != nil {
		return fmt.Errorf("пометка отправленных: %w", err)
	}
	if err := s.stats.AddCategoryStats(cfg.ID, len(deals), sent, 0); err != nil {
		return fmt.Errorf("запись статистики: %w", err)
	}
	if err := s.categories.UpdateCategoryLastRun(cfg.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("фиксация запуска: %w", err)
	}

	s.log.Info().
		Int64("category_id", cfg.ID).
		Str("slug", cfg.Slug).
		Int("found", len(deals)).
		Int("sent", sent).
		Msg("прогоны: категория выполнена")
	return nil
}

// RunDailyWatch публикует свежие предложения фиксированной группы в
// выделенный канал. Дедупликация глобальная, через sent_deals, потому
// что канал один на всю инсталляцию.
func (s *Service) RunDailyWatch(ctx context.Context, slug string, channelID int64) (int, error) {
	deals, err := s.scraper.GroupDeals(ctx, slug, groupScrapeLimit)
	if err != nil {
		return 0, fmt.Errorf("скрейп группы %q: %w", slug, err)
	}

	sent := 0
	for _, deal := range deals {
		already, err := s.dedup.IsDealSent(deal.ID)
		if err != nil {
			return sent, fmt.Errorf("проверка дедупликации: %w", err)
		}
		if already {
			continue
		}

		job := domain.NotificationJob{
			ID:         uuid.NewString(),
			Kind:       domain.NotifyChannel,
			ChannelID:  channelID,
			Category:   slug,
			Deal:       deal,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return sent, fmt.Errorf("постановка уведомления: %w", err)
		}
		if err := s.dedup.AddSentDeal(deal.ID); err != nil {
			return sent, fmt.Errorf("пометка отправленного: %w", err)
		}
		sent++
	}

	s.log.Info().Str("slug", slug).Int("found", len(deals)).Int("sent", sent).Msg("прогоны: ежедневная подборка выполнена")
	return sent, nil
}

// Cleanup удаляет записи дедупликации старше периода хранения.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) error {
	removedDeals, err := s.dedup.CleanupSentDeals(retention)
	if err != nil {
		return fmt.Errorf("уборка sent_deals: %w", err)
	}
	removedCategory, err := s.dedup.CleanupCategorySentDeals(retention)
	if err != nil {
		return fmt.Errorf("уборка category_sent_deals: %w", err)
	}
	s.log.Info().
		Int64("sent_deals", removedDeals).
		Int64("category_sent_deals", removedCategory).
		Msg("прогоны: уборка завершена")
	return nil
}
