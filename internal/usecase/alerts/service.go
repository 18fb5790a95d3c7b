package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
)

var (
	// ErrEmptyQuery возвращается на пустой поисковый запрос.
	ErrEmptyQuery = errors.New("пустой поисковый запрос")
	// ErrQueryTooLong возвращается на слишком длинный запрос.
	ErrQueryTooLong = errors.New("слишком длинный поисковый запрос")
)

const (
	maxQueryLength   = 100
	searchBatchLimit = 5
)

// Service реализует алерты пользователей по поисковым запросам.
type Service struct {
	repo       domain.AlertRepo
	scraper    domain.Scraper
	queue      domain.NotificationQueue
	log        zerolog.Logger
	queryPause time.Duration
}

// NewService создаёт сервис алертов.
func NewService(repo domain.AlertRepo, scraper domain.Scraper, queue domain.NotificationQueue, logger zerolog.Logger, queryPause time.Duration) *Service {
	return &Service{repo: repo, scraper: scraper, queue: queue, log: logger, queryPause: queryPause}
}

// NormalizeQuery приводит пользовательский ввод к каноничному запросу.
func NormalizeQuery(input string) (string, error) {
	query := strings.ToLower(strings.TrimSpace(input))
	if query == "" {
		return "", ErrEmptyQuery
	}
	if len(query) > maxQueryLength {
		return "", ErrQueryTooLong
	}
	return query, nil
}

// AddAlert добавляет алерт или обновляет его максимальную цену.
func (s *Service) AddAlert(ctx context.Context, userID int64, query string, maxPrice *float64) (domain.Alert, error) {
	normalized, err := NormalizeQuery(query)
	if err != nil {
		return domain.Alert{}, err
	}
	alert, err := s.repo.UpsertAlert(userID, normalized, maxPrice)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("сохранение алерта: %w", err)
	}
	return alert, nil
}

// RemoveAlert удаляет алерт пользователя.
func (s *Service) RemoveAlert(ctx context.Context, userID int64, query string) (bool, error) {
	normalized, err := NormalizeQuery(query)
	if err != nil {
		return false, err
	}
	return s.repo.RemoveAlert(userID, normalized)
}

// ListAlerts возвращает алерты пользователя.
func (s *Service) ListAlerts(ctx context.Context, userID int64) ([]domain.Alert, error) {
	return s.repo.ListUserAlerts(userID)
}

// CheckAlerts прогоняет все уникальные запросы и ставит в очередь
// уведомления подписчикам. Возвращает число поставленных уведомлений.
func (s *Service) CheckAlerts(ctx context.Context) (int, error) {
	queries, err := s.repo.ListUniqueQueries()
	if err != nil {
		return 0, fmt.Errorf("выборка запросов: %w", err)
	}
	s.log.Info().Int("queries", len(queries)).Msg("алерты: старт цикла проверки")

	type seenKey struct {
		alertID int64
		dealID  string
	}
	seenInCycle := make(map[seenKey]struct{})
	var batchSeen []domain.AlertSeen
	notified := 0

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return notified, err
		}

		deals, err := s.scraper.SearchDeals(ctx, query, searchBatchLimit)
		if err != nil {
			s.log.Warn().Err(err).Str("query", query).Msg("алерты: запрос не собрался")
			continue
		}

		subscribers, err := s.repo.ListAlertsByQuery(query)
		if err != nil {
			return notified, fmt.Errorf("подписчики запроса %q: %w", query, err)
		}
		if len(subscribers) == 0 {
			continue
		}

		for _, deal := range deals {
			price := domain.ParsePrice(deal.Price)
			for _, sub := range subscribers {
				key := seenKey{alertID: sub.ID, dealID: deal.ID}
				if _, ok := seenInCycle[key]; ok {
					continue
				}

				seen, err := s.repo.WasSeenByAlert(sub.ID, deal.ID)
				if err != nil {
					return notified, fmt.Errorf("история алерта %d: %w", sub.ID, err)
				}
				if seen {
					seenInCycle[key] = struct{}{}
					continue
				}

				if sub.MaxPrice != nil && price > *sub.MaxPrice {
					continue
				}

				job := domain.NotificationJob{
					ID:         uuid.NewString(),
					Kind:       domain.NotifyDM,
					UserID:     sub.UserID,
					Query:      query,
					Deal:       deal,
					EnqueuedAt: time.Now().UTC(),
				}
				if err := s.queue.Enqueue(ctx, job); err != nil {
					return notified, fmt.Errorf("постановка уведомления: %w", err)
				}
				notified++
				batchSeen = append(batchSeen, domain.AlertSeen{AlertID: sub.ID, DealID: deal.ID})
				seenInCycle[key] = struct{}{}
			}
		}

		// Пауза между запросами, чтобы не перегружать источник.
		if len(queries) > 5 && s.queryPause > 0 {
			select {
			case <-ctx.Done():
				return notified, ctx.Err()
			case <-time.After(s.queryPause):
			}
		}
	}

	if err := s.repo.MarkSeenBatch(batchSeen); err != nil {
		return notified, fmt.Errorf("пометка истории: %w", err)
	}

	s.log.Info().Int("notifications", notified).Int("cached_checks", len(seenInCycle)).Msg("алерты: цикл проверки завершён")
	return notified, nil
}
