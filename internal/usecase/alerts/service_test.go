package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
)

type stubAlertRepo struct {
	alerts     []domain.Alert
	seen       map[string]bool
	marked     []domain.AlertSeen
	upserted   []domain.Alert
	removedFor []string
}

func (s *stubAlertRepo) UpsertAlert(userID int64, query string, maxPrice *float64) (domain.Alert, error) {
	alert := domain.Alert{ID: int64(len(s.upserted) + 1), UserID: userID, Query: query, MaxPrice: maxPrice}
	s.upserted = append(s.upserted, alert)
	return alert, nil
}

func (s *stubAlertRepo) RemoveAlert(userID int64, query string) (bool, error) {
	s.removedFor = append(s.removedFor, query)
	return true, nil
}

func (s *stubAlertRepo) ListUserAlerts(userID int64) ([]domain.Alert, error) {
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAlertRepo) ListUniqueQueries() ([]string, error) {
	uniq := map[string]struct{}{}
	var out []string
	for _, a := range s.alerts {
		if _, ok := uniq[a.Query]; !ok {
			uniq[a.Query] = struct{}{}
			out = append(out, a.Query)
		}
	}
	return out, nil
}

func (s *stubAlertRepo) ListAlertsByQuery(query string) ([]domain.Alert, error) {
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.Query == query {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAlertRepo) WasSeenByAlert(alertID int64, dealID string) (bool, error) {
	return s.seen[dealID], nil
}

func (s *stubAlertRepo) MarkSeenBatch(seen []domain.AlertSeen) error {
	s.marked = append(s.marked, seen...)
	return nil
}

type stubScraper struct {
	deals map[string][]domain.Deal
	err   error
}

func (s *stubScraper) SearchDeals(ctx context.Context, query string, limit int) ([]domain.Deal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.deals[query], nil
}

func (s *stubScraper) GroupDeals(ctx context.Context, slug string, limit int) ([]domain.Deal, error) {
	return nil, nil
}

type stubQueue struct {
	jobs []domain.NotificationJob
}

func (s *stubQueue) Enqueue(ctx context.Context, job domain.NotificationJob) error {
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *stubQueue) Pop(ctx context.Context) (domain.NotificationJob, error) {
	return domain.NotificationJob{}, errors.New("не реализовано")
}

func TestNormalizeQuery(t *testing.T) {
	got, err := NormalizeQuery("  PlayStation 5  ")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got != "playstation 5" {
		t.Fatalf("ожидали нормализованный запрос, получили %q", got)
	}

	if _, err := NormalizeQuery("   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("ожидали ErrEmptyQuery, получили %v", err)
	}
	if _, err := NormalizeQuery(strings.Repeat("x", 150)); !errors.Is(err, ErrQueryTooLong) {
		t.Fatalf("ожидали ErrQueryTooLong, получили %v", err)
	}
}

func TestAddAlertNormalizesQuery(t *testing.T) {
	repo := &stubAlertRepo{}
	svc := NewService(repo, &stubScraper{}, &stubQueue{}, zerolog.Nop(), 0)

	alert, err := svc.AddAlert(context.Background(), 42, "  RTX 4080  ", nil)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if alert.Query != "rtx 4080" {
		t.Fatalf("запрос не нормализован: %q", alert.Query)
	}
}

func TestCheckAlertsEnqueuesAndMarksSeen(t *testing.T) {
	maxPrice := 100.0
	repo := &stubAlertRepo{
		alerts: []domain.Alert{
			{ID: 1, UserID: 10, Query: "ssd"},
			{ID: 2, UserID: 20, Query: "ssd", MaxPrice: &maxPrice},
		},
		seen: map[string]bool{},
	}
	scraper := &stubScraper{deals: map[string][]domain.Deal{
		"ssd": {
			{ID: "deal-1", Title: "SSD 1TB", Link: "deal-1", Price: "89,99 zł"},
			{ID: "deal-2", Title: "SSD 2TB", Link: "deal-2", Price: "199 zł"},
		},
	}}
	queue := &stubQueue{}
	svc := NewService(repo, scraper, queue, zerolog.Nop(), 0)

	notified, err := svc.CheckAlerts(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Пользователь без лимита получает оба предложения, с лимитом 100 — одно.
	if notified != 3 {
		t.Fatalf("ожидали 3 уведомления, получили %d", notified)
	}
	if len(queue.jobs) != 3 {
		t.Fatalf("ожидали 3 задачи в очереди, получили %d", len(queue.jobs))
	}
	for _, job := range queue.jobs {
		if job.Kind != domain.NotifyDM {
			t.Fatalf("ожидали личное уведомление, получили %q", job.Kind)
		}
		if job.ID == "" {
			t.Fatal("у задачи нет идентификатора")
		}
	}
	if len(repo.marked) != 3 {
		t.Fatalf("ожидали 3 записи истории, получили %d", len(repo.marked))
	}
}

func TestCheckAlertsSkipsSeenDeals(t *testing.T) {
	repo := &stubAlertRepo{
		alerts: []domain.Alert{{ID: 1, UserID: 10, Query: "laptop"}},
		seen:   map[string]bool{"deal-old": true},
	}
	scraper := &stubScraper{deals: map[string][]domain.Deal{
		"laptop": {{ID: "deal-old", Title: "Stary laptop", Link: "deal-old", Price: "999 zł"}},
	}}
	queue := &stubQueue{}
	svc := NewService(repo, scraper, queue, zerolog.Nop(), 0)

	notified, err := svc.CheckAlerts(context.Background())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if notified != 0 {
		t.Fatalf("виденное предложение не должно рассылаться, получили %d", notified)
	}
	if len(repo.marked) != 0 {
		t.Fatalf("история не должна пополняться, получили %d записей", len(repo.marked))
	}
}

func TestCheckAlertsSurvivesScrapeError(t *testing.T) {
	repo := &stubAlertRepo{
		alerts: []domain.Alert{{ID: 1, UserID: 10, Query: "gpu"}},
		seen:   map[string]bool{},
	}
	scraper := &stubScraper{err: errors.New("таймаут")}
	queue := &stubQueue{}
	svc := NewService(repo, scraper, queue, zerolog.Nop(), time.Millisecond)

	notified, err := svc.CheckAlerts(context.Background())
	if err != nil {
		t.Fatalf("ошибка скрейпа не должна ронять цикл: %v", err)
	}
	if notified != 0 {
		t.Fatalf("ожидали 0 уведомлений, получили %d", notified)
	}
}
