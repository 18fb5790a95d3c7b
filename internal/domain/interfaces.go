package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCategoryNotFound возвращается, если категория не найдена в гильдии.
	ErrCategoryNotFound = errors.New("категория не найдена")
	// ErrCategoryExists возвращается при нарушении уникальности (guild_id, slug).
	ErrCategoryExists = errors.New("категория уже существует")
)

// Scraper собирает предложения с Pepper.pl.
type Scraper interface {
	// SearchDeals ищет предложения по запросу.
	SearchDeals(ctx context.Context, query string, limit int) ([]Deal, error)
	// GroupDeals возвращает предложения категории по её слагу.
	GroupDeals(ctx context.Context, slug string, limit int) ([]Deal, error)
}

// AlertRepo управляет алертами пользователей и их историей.
type AlertRepo interface {
	UpsertAlert(userID int64, query string, maxPrice *float64) (Alert, error)
	RemoveAlert(userID int64, query string) (bool, error)
	ListUserAlerts(userID int64) ([]Alert, error)
	ListUniqueQueries() ([]string, error)
	ListAlertsByQuery(query string) ([]Alert, error)
	WasSeenByAlert(alertID int64, dealID string) (bool, error)
	MarkSeenBatch(records []AlertSeen) error
}

// AlertSeen — пара (алерт, предложение) для батчевой пометки.
type AlertSeen struct {
	AlertID int64
	DealID  string
}

// CategorySent — пара (категория, предложение) для батчевой пометки.
type CategorySent struct {
	CategoryID int64
	DealID     string
}

// CategoryRepo управляет конфигурациями категорий.
type CategoryRepo interface {
	CreateCategory(cfg CategoryConfig) (CategoryConfig, error)
	RemoveCategory(guildID int64, slug string) (bool, error)
	GetCategoryBySlug(guildID int64, slug string) (CategoryConfig, error)
	ListGuildCategories(guildID int64, status CategoryStatus) ([]CategoryConfig, error)
	ListActiveCategories() ([]CategoryConfig, error)
	UpdateCategoryStatus(guildID int64, slug string, status CategoryStatus) (bool, error)
	UpdateCategoryLastRun(categoryID int64, at time.Time) error
}

// DedupRepo управляет дедупликацией отправленных предложений.
type DedupRepo interface {
	AddSentDeal(dealID string) error
	IsDealSent(dealID string) (bool, error)
	IsCategoryDealSent(categoryID int64, dealID string) (bool, error)
	MarkCategorySentBatch(records []CategorySent) error
	CleanupSentDeals(olderThan time.Duration) (int64, error)
	CleanupCategorySentDeals(olderThan time.Duration) (int64, error)
}

// StatsRepo накапливает дневную статистику категорий.
type StatsRepo interface {
	AddCategoryStats(categoryID int64, found, sent, scrapeErrors int) error
	ListCategoryStats(categoryID int64, fromDate time.Time) ([]CategoryStats, error)
}

// NotificationQueue — очередь задач доставки.
type NotificationQueue interface {
	Enqueue(ctx context.Context, job NotificationJob) error
	Pop(ctx context.Context) (NotificationJob, error)
}

// Notifier доставляет предложение адресату в Discord.
type Notifier interface {
	Deliver(ctx context.Context, job NotificationJob) error
}

// Cache используется для простых TTL-хранилищ и защёлок.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
