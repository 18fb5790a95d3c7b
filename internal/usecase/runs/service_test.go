package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
)

type stubCategoryRepo struct {
	active   []domain.CategoryConfig
	lastRuns map[int64]time.Time
}

func (s *stubCategoryRepo) CreateCategory(cfg domain.CategoryConfig) (domain.CategoryConfig, error) {
	return cfg, nil
}

func (s *stubCategoryRepo) RemoveCategory(guildID int64, slug string) (bool, error) {
	return false, nil
}

func (s *stubCategoryRepo) GetCategoryBySlug(guildID int64, slug string) (domain.CategoryConfig, error) {
	return domain.CategoryConfig{}, domain.ErrCategoryNotFound
}

func (s *stubCategoryRepo) ListGuildCategories(guildID int64, status domain.CategoryStatus) ([]domain.CategoryConfig, error) {
	return nil, nil
}

func (s *stubCategoryRepo) ListActiveCategories() ([]domain.CategoryConfig, error) {
	return s.active, nil
}

func (s *stubCategoryRepo) UpdateCategoryStatus(guildID int64, slug string, status domain.CategoryStatus) (bool, error) {
	return false, nil
}

func (s *stubCategoryRepo) UpdateCategoryLastRun(categoryID int64, at time.Time) error {
	if s.lastRuns == nil {
		s.lastRuns = map[int64]time.Time{}
	}
	s.lastRuns[categoryID] = at
	return nil
}

type stubDedupRepo struct {
	categorySent map[string]bool
	globalSent   map[string]bool
	marked       []domain.CategorySent
	cleanedDeals int64
	cleanedCats  int64
}

func (s *stubDedupRepo) AddSentDeal(dealID string) error {
	if s.globalSent == nil {
		s.globalSent = map[string]bool{}
	}
	s.globalSent[dealID] = true
	return nil
}

func (s *stubDedupRepo) IsDealSent(dealID string) (bool, error) {
	return s.globalSent[dealID], nil
}

func (s *stubDedupRepo) IsCategoryDealSent(categoryID int64, dealID string) (bool, error) {
	return s.categorySent[dealID], nil
}

func (s *stubDedupRepo) MarkCategorySentBatch(records []domain.CategorySent) error {
	s.marked = append(s.marked, records...)
	return nil
}

func (s *stubDedupRepo) CleanupSentDeals(olderThan time.Duration) (int64, error) {
	return s.cleanedDeals, nil
}

func (s *stubDedupRepo) CleanupCategorySentDeals(olderThan time.Duration) (int64, error) {
	return s.cleanedCats, nil
}

type statsRecord struct {
	categoryID                int64
	found, sent, scrapeErrors int
}

type stubStatsRepo struct {
	records []statsRecord
}

func (s *stubStatsRepo) AddCategoryStats(categoryID int64, found, sent, scrapeErrors int) error {
	s.records = append(s.records, statsRecord{categoryID, found, sent, scrapeErrors})
	return nil
}

func (s *stubStatsRepo) ListCategoryStats(categoryID int64, fromDate time.Time) ([]domain.CategoryStats, error) {
	return nil, nil
}

type stubScraper struct {
	deals []domain.Deal
	err   error
	calls int
}

func (s *stubScraper) SearchDeals(ctx context.Context, query string, limit int) ([]domain.Deal, error) {
	return nil, nil
}

func (s *stubScraper) GroupDeals(ctx context.Context, slug string, limit int) ([]domain.Deal, error) {
	s.calls++
	return s.deals, s.err
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

type stubCache struct {
	taken map[string]bool
}

func (s *stubCache) Once(key string, ttl time.Duration, fn func() error) error {
	if s.taken == nil {
		s.taken = map[string]bool{}
	}
	if s.taken[key] {
		return nil
	}
	s.taken[key] = true
	return fn()
}

func (s *stubCache) Set(key string, value []byte, ttl time.Duration) error { return nil }

func (s *stubCache) Get(key string) ([]byte, error) { return nil, errors.New("нет значения") }

func newTestService(repo *stubCategoryRepo, dedup *stubDedupRepo, stats *stubStatsRepo, scraper *stubScraper, queue *stubQueue, cache *stubCache) *Service {
	return NewService(repo, dedup, stats, scraper, queue, cache, zerolog.Nop())
}

func mustSchedule(t *testing.T, frequency, timeOfDay, day string, date int) domain.Schedule {
	t.Helper()
	s, err := domain.ParseSchedule(frequency, timeOfDay, day, date)
	if err != nil {
		t.Fatalf("не удалось собрать расписание: %v", err)
	}
	return s
}

func TestRunCategoryFiltersAndDedups(t *testing.T) {
	maxPrice := 150.0
	cfg := domain.CategoryConfig{
		ID:        5,
		GuildID:   77,
		Slug:      "elektronika",
		ChannelID: 900,
		MinTemp:   100,
		MaxPrice:  &maxPrice,
	}
	scraper := &stubScraper{deals: []domain.Deal{
		{ID: "hot-cheap", Title: "ok", Link: "hot-cheap", Price: "99 zł", Temperature: 250},
		{ID: "cold", Title: "za zimne", Link: "cold", Price: "50 zł", Temperature: 20},
		{ID: "expensive", Title: "za drogie", Link: "expensive", Price: "999 zł", Temperature: 300},
		{ID: "already-sent", Title: "było", Link: "already-sent", Price: "10 zł", Temperature: 500},
	}}
	dedup := &stubDedupRepo{categorySent: map[string]bool{"already-sent": true}}
	stats := &stubStatsRepo{}
	queue := &stubQueue{}
	repo := &stubCategoryRepo{}
	svc := newTestService(repo, dedup, stats, scraper, queue, &stubCache{})

	if err := svc.RunCategory(context.Background(), cfg); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if len(queue.jobs) != 1 || queue.jobs[0].Deal.ID != "hot-cheap" {
		t.Fatalf("ожидали одну задачу по hot-cheap, получили %+v", queue.jobs)
	}
	if queue.jobs[0].Kind != domain.NotifyChannel || queue.jobs[0].ChannelID != 900 {
		t.Fatalf("задача собрана неверно: %+v", queue.jobs[0])
	}
	if len(dedup.marked) != 1 || dedup.marked[0].DealID != "hot-cheap" {
		t.Fatalf("дедупликация помечена неверно: %+v", dedup.marked)
	}
	if len(stats.records) != 1 {
		t.Fatalf("ожидали одну запись статистики, получили %d", len(stats.records))
	}
	if rec := stats.records[0]; rec.found != 4 || rec.sent != 1 || rec.scrapeErrors != 0 {
		t.Fatalf("статистика записана неверно: %+v", rec)
	}
	if _, ok := repo.lastRuns[cfg.ID]; !ok {
		t.Fatal("время запуска не зафиксировано")
	}
}

func TestRunCategoryRecordsScrapeError(t *testing.T) {
	scraper := &stubScraper{err: errors.New("таймаут")}
	stats := &stubStatsRepo{}
	repo := &stubCategoryRepo{}
	svc := newTestService(repo, &stubDedupRepo{}, stats, scraper, &stubQueue{}, &stubCache{})

	err := svc.RunCategory(context.Background(), domain.CategoryConfig{ID: 5, Slug: "elektronika"})
	if err == nil {
		t.Fatal("ожидали ошибку скрейпа")
	}
	if len(stats.records) != 1 || stats.records[0].scrapeErrors != 1 {
		t.Fatalf("ошибка скрейпа не попала в статистику: %+v", stats.records)
	}
	if _, ok := repo.lastRuns[5]; ok {
		t.Fatal("время запуска не должно фиксироваться при ошибке")
	}
}

func TestRunDueHonorsScheduleAndGuard(t *testing.T) {
	// 2026-08-24 — понедельник.
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	due := domain.CategoryConfig{
		ID:       1,
		Slug:     "due",
		Schedule: mustSchedule(t, "weekly", "09:00", "monday", 0),
	}
	notDue := domain.CategoryConfig{
		ID:       2,
		Slug:     "not-due",
		Schedule: mustSchedule(t, "weekly", "09:00", "friday", 0),
	}

	scraper := &stubScraper{deals: []domain.Deal{{ID: "d1", Title: "x", Link: "d1", Temperature: 50}}}
	cache := &stubCache{}
	svc := newTestService(
		&stubCategoryRepo{active: []domain.CategoryConfig{due, notDue}},
		&stubDedupRepo{}, &stubStatsRepo{}, scraper, &stubQueue{}, cache,
	)

	if err := svc.RunDue(context.Background(), now); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if scraper.calls != 1 {
		t.Fatalf("должна выполниться только одна категория, выполнено %d", scraper.calls)
	}

	// Повтор того же слота гасится защёлкой.
	if err := svc.RunDue(context.Background(), now); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if scraper.calls != 1 {
		t.Fatalf("защёлка не сработала, выполнено %d запусков", scraper.calls)
	}
}

func TestRunDailyWatchDedupsGlobally(t *testing.T) {
	scraper := &stubScraper{deals: []domain.Deal{
		{ID: "fresh", Title: "Lot do Rzymu", Link: "fresh", Temperature: 150},
		{ID: "stale", Title: "Było wczoraj", Link: "stale", Temperature: 400},
	}}
	dedup := &stubDedupRepo{globalSent: map[string]bool{"stale": true}}
	queue := &stubQueue{}
	svc := newTestService(&stubCategoryRepo{}, dedup, &stubStatsRepo{}, scraper, queue, &stubCache{})

	sent, err := svc.RunDailyWatch(context.Background(), "bilety-lotnicze", 700)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if sent != 1 || len(queue.jobs) != 1 || queue.jobs[0].Deal.ID != "fresh" {
		t.Fatalf("ожидали одну задачу по fresh, получили %+v", queue.jobs)
	}
	if queue.jobs[0].ChannelID != 700 || queue.jobs[0].Kind != domain.NotifyChannel {
		t.Fatalf("задача собрана неверно: %+v", queue.jobs[0])
	}
	if !dedup.globalSent["fresh"] {
		t.Fatal("новое предложение не помечено в глобальном реестре")
	}

	// Повторный прогон ничего не шлёт.
	sent, err = svc.RunDailyWatch(context.Background(), "bilety-lotnicze", 700)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if sent != 0 || len(queue.jobs) != 1 {
		t.Fatalf("повтор не должен слать задачи, очередь: %+v", queue.jobs)
	}
}

func TestCleanup(t *testing.T) {
	dedup := &stubDedupRepo{cleanedDeals: 12, cleanedCats: 3}
	svc := newTestService(&stubCategoryRepo{}, dedup, &stubStatsRepo{}, &stubScraper{}, &stubQueue{}, &stubCache{})

	if err := svc.Cleanup(context.Background(), 30*24*time.Hour); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
}
