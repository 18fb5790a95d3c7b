package categories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
)

var (
	// ErrInvalidSlug возвращается, если слаг не похож на слаг группы Pepper.pl.
	ErrInvalidSlug = errors.New("некорректный слаг категории")
	// ErrSlugNotLive возвращается, если страница группы не отдаёт предложений.
	ErrSlugNotLive = errors.New("категория не существует на Pepper.pl")
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// slugCacheTTL — срок, в течение которого проверенный слаг не
// перепроверяется на Pepper.pl.
const slugCacheTTL = 24 * time.Hour

// Service управляет подписками гильдий на категории.
type Service struct {
	repo    domain.CategoryRepo
	stats   domain.StatsRepo
	scraper domain.Scraper
	cache   domain.Cache
	log     zerolog.Logger
}

// NewService создаёт сервис категорий.
func NewService(repo domain.CategoryRepo, stats domain.StatsRepo, scraper domain.Scraper, cache domain.Cache, logger zerolog.Logger) *Service {
	return &Service{repo: repo, stats: stats, scraper: scraper, cache: cache, log: logger}
}

// NormalizeSlug приводит пользовательский ввод к слагу группы.
func NormalizeSlug(input string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(input))
	slug = strings.TrimPrefix(slug, "https://www.pepper.pl/grupa/")
	slug = strings.Trim(slug, "/")
	if slug == "" || len(slug) > 100 || !slugRegex.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

// CreateParams — параметры новой подписки на категорию.
type CreateParams struct {
	GuildID   int64
	Slug      string
	Name      string
	ChannelID int64
	Frequency string
	TimeOfDay string
	Day       string
	Date      int
	MinTemp   int
	MaxPrice  *float64
}

// Create проверяет слаг на Pepper.pl, разбирает расписание и сохраняет
// конфигурацию категории.
func (s *Service) Create(ctx context.Context, params CreateParams) (domain.CategoryConfig, error) {
	slug, err := NormalizeSlug(params.Slug)
	if err != nil {
		return domain.CategoryConfig{}, err
	}

	schedule, err := domain.ParseSchedule(params.Frequency, params.TimeOfDay, params.Day, params.Date)
	if err != nil {
		return domain.CategoryConfig{}, err
	}

	if err := s.checkSlugLive(ctx, slug); err != nil {
		return domain.CategoryConfig{}, err
	}

	cfg := domain.CategoryConfig{
		GuildID:   params.GuildID,
		Slug:      slug,
		Name:      strings.TrimSpace(params.Name),
		ChannelID: params.ChannelID,
		Schedule:  schedule,
		Status:    domain.StatusActive,
		MinTemp:   params.MinTemp,
		MaxPrice:  params.MaxPrice,
	}

	created, err := s.repo.CreateCategory(cfg)
	if err != nil {
		return domain.CategoryConfig{}, err
	}
	s.log.Info().Int64("guild_id", created.GuildID).Str("slug", created.Slug).Msg("категории: подписка создана")
	return created, nil
}

// checkSlugLive проверяет, что группа существует на Pepper.pl.
// Результат кэшируется, чтобы не скрейпить сайт на каждую попытку.
func (s *Service) checkSlugLive(ctx context.Context, slug string) error {
	cacheKey := "slug_live:" + slug
	if _, err := s.cache.Get(cacheKey); err == nil {
		return nil
	}

	deals, err := s.scraper.GroupDeals(ctx, slug, 1)
	if err != nil {
		return fmt.Errorf("проверка слага %q: %w", slug, err)
	}
	if len(deals) == 0 {
		return ErrSlugNotLive
	}
	if err := s.cache.Set(cacheKey, []byte("1"), slugCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("slug", slug).Msg("категории: слаг не закэшировался")
	}
	return nil
}

// Remove удаляет подписку гильдии вместе с её историей и статистикой.
func (s *Service) Remove(ctx context.Context, guildID int64, slug string) error {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return err
	}
	removed, err := s.repo.RemoveCategory(guildID, normalized)
	if err != nil {
		return fmt.Errorf("удаление категории: %w", err)
	}
	if !removed {
		return domain.ErrCategoryNotFound
	}
	s.log.Info().Int64("guild_id", guildID).Str("slug", normalized).Msg("категории: подписка удалена")
	return nil
}

// List возвращает подписки гильдии, опционально по статусу.
func (s *Service) List(ctx context.Context, guildID int64, status domain.CategoryStatus) ([]domain.CategoryConfig, error) {
	return s.repo.ListGuildCategories(guildID, status)
}

// SetStatus переключает статус подписки.
func (s *Service) SetStatus(ctx context.Context, guildID int64, slug string, status domain.CategoryStatus) error {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return err
	}
	updated, err := s.repo.UpdateCategoryStatus(guildID, normalized, status)
	if err != nil {
		return fmt.Errorf("смена статуса: %w", err)
	}
	if !updated {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// Stats возвращает конфигурацию и дневную статистику категории за период.
func (s *Service) Stats(ctx context.Context, guildID int64, slug string, days int) (domain.CategoryConfig, []domain.CategoryStats, error) {
	normalized, err := NormalizeSlug(slug)
	if err != nil {
		return domain.CategoryConfig{}, nil, err
	}
	cfg, err := s.repo.GetCategoryBySlug(guildID, normalized)
	if err != nil {
		return domain.CategoryConfig{}, nil, err
	}
	if days <= 0 {
		days = 7
	}
	fromDate := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := s.stats.ListCategoryStats(cfg.ID, fromDate)
	if err != nil {
		return domain.CategoryConfig{}, nil, fmt.Errorf("статистика категории: %w", err)
	}
	return cfg, stats, nil
}
