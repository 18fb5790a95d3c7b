package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.AlertRepo    = (*Postgres)(nil)
	_ domain.CategoryRepo = (*Postgres)(nil)
	_ domain.DedupRepo    = (*Postgres)(nil)
	_ domain.StatsRepo    = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// UpsertAlert добавляет алерт или обновляет максимальную цену существующего.
func (p *Postgres) UpsertAlert(userID int64, query string, maxPrice *float64) (domain.Alert, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		alert    domain.Alert
		priceArg sql.NullFloat64
		priceOut sql.NullFloat64
	)
	if maxPrice != nil {
		priceArg = sql.NullFloat64{Float64: *maxPrice, Valid: true}
	}

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO alerts (user_id, query, max_price)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, query) DO UPDATE SET max_price = EXCLUDED.max_price
RETURNING id, user_id, query, max_price, created_at
`, userID, strings.TrimSpace(query), priceArg).Scan(&alert.ID, &alert.UserID, &alert.Query, &priceOut, &alert.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "alerts_upsert", "alerts", start, err)
	if err != nil {
		return domain.Alert{}, err
	}
	if priceOut.Valid {
		price := priceOut.Float64
		alert.MaxPrice = &price
	}
	return alert, nil
}

// RemoveAlert удаляет алерт пользователя.
func (p *Postgres) RemoveAlert(userID int64, query string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM alerts WHERE user_id=$1 AND query=$2`, userID, strings.TrimSpace(query))
	metrics.ObserveNetworkRequest("postgres", "alerts_delete", "alerts", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	defer rows.Close()
	var alerts []domain.Alert
	for rows.Next() {
		var (
			a     domain.Alert
			price sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Query, &price, &a.CreatedAt); err != nil {
			return nil, err
		}
		if price.Valid {
			v := price.Float64
			a.MaxPrice = &v
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ListUserAlerts возвращает алерты пользователя.
func (p *Postgres) ListUserAlerts(userID int64) ([]domain.Alert, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, query, max_price, created_at
FROM alerts WHERE user_id=$1
ORDER BY created_at
`, userID)
	metrics.ObserveNetworkRequest("postgres", "alerts_list_by_user", "alerts", start, err)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// ListUniqueQueries возвращает уникальные запросы для цикла проверки.
func (p *Postgres) ListUniqueQueries() ([]string, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT query FROM alerts`)
	metrics.ObserveNetworkRequest("postgres", "alerts_unique_queries", "alerts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// ListAlertsByQuery возвращает всех подписчиков запроса.
func (p *Postgres) ListAlertsByQuery(query string) ([]domain.Alert, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, query, max_price, created_at
FROM alerts WHERE query=$1
`, query)
	metrics.ObserveNetworkRequest("postgres", "alerts_list_by_query", "alerts", start, err)
	if err != nil {
		return nil, err
	}
	return scanAlerts(rows)
}

// WasSeenByAlert проверяет, показывали ли предложение этому алерту.
func (p *Postgres) WasSeenByAlert(alertID int64, dealID string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM alert_history WHERE alert_id=$1 AND deal_id=$2)
`, alertID, dealID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "alert_history_lookup", "alert_history", start, err)
	return exists, err
}

// MarkSeenBatch помечает пары (алерт, предложение) батчем.
func (p *Postgres) MarkSeenBatch(records []domain.AlertSeen) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
INSERT INTO alert_history (alert_id, deal_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, rec.AlertID, rec.DealID)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "alert_history_send_batch", "alert_history", start, nil)
	defer br.Close()
	for range records {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "alert_history_batch_exec", "alert_history", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

const categoryColumns = `id, guild_id, slug, name, channel_id, schedule_type, schedule_time, schedule_day, schedule_date, status, min_temperature, max_price, created_at, updated_at, last_run`

func scanCategory(row pgx.Row) (domain.CategoryConfig, error) {
	var (
		cfg          domain.CategoryConfig
		name         sql.NullString
		scheduleType string
		scheduleTime string
		scheduleDay  sql.NullString
		scheduleDate sql.NullInt32
		status       string
		maxPrice     sql.NullFloat64
		lastRun      sql.NullTime
	)
	err := row.Scan(&cfg.ID, &cfg.GuildID, &cfg.Slug, &name, &cfg.ChannelID,
		&scheduleType, &scheduleTime, &scheduleDay, &scheduleDate,
		&status, &cfg.MinTemp, &maxPrice, &cfg.CreatedAt, &cfg.UpdatedAt, &lastRun)
	if err != nil {
		return domain.CategoryConfig{}, err
	}
	if name.Valid {
		cfg.Name = name.String
	}
	if maxPrice.Valid {
		v := maxPrice.Float64
		cfg.MaxPrice = &v
	}
	if lastRun.Valid {
		ts := lastRun.Time
		cfg.LastRun = &ts
	}
	cfg.Status, err = domain.ParseCategoryStatus(status)
	if err != nil {
		return domain.CategoryConfig{}, fmt.Errorf("строка category_configs %d: %w", cfg.ID, err)
	}
	cfg.Schedule, err = domain.ScheduleFromStorage(scheduleType, scheduleTime, scheduleDay.String, int(scheduleDate.Int32))
	if err != nil {
		return domain.CategoryConfig{}, fmt.Errorf("строка category_configs %d: %w", cfg.ID, err)
	}
	return cfg, nil
}

// CreateCategory сохраняет новую категорию гильдии.
func (p *Postgres) CreateCategory(cfg domain.CategoryConfig) (domain.CategoryConfig, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		nameArg  sql.NullString
		dayArg   sql.NullString
		dateArg  sql.NullInt32
		priceArg sql.NullFloat64
	)
	if cfg.Name != "" {
		nameArg = sql.NullString{String: cfg.Name, Valid: true}
	}
	if cfg.Schedule.HasDay {
		dayArg = sql.NullString{String: cfg.Schedule.WeekdayName(), Valid: true}
	}
	if cfg.Schedule.Date > 0 {
		dateArg = sql.NullInt32{Int32: int32(cfg.Schedule.Date), Valid: true}
	}
	if cfg.MaxPrice != nil {
		priceArg = sql.NullFloat64{Float64: *cfg.MaxPrice, Valid: true}
	}
	status := cfg.Status
	if status == "" {
		status = domain.StatusActive
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO category_configs
    (guild_id, slug, name, channel_id, schedule_type, schedule_time, schedule_day, schedule_date, status, min_temperature, max_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+categoryColumns+`
`, cfg.GuildID, cfg.Slug, nameArg, cfg.ChannelID,
		string(cfg.Schedule.Type), cfg.Schedule.Time, dayArg, dateArg,
		string(status), cfg.MinTemp, priceArg)
	created, err := scanCategory(row)
	metrics.ObserveNetworkRequest("postgres", "category_configs_insert", "category_configs", start, err)
	if isUniqueViolation(err) {
		return domain.CategoryConfig{}, domain.ErrCategoryExists
	}
	return created, err
}

// RemoveCategory удаляет категорию; дочерние строки уходят каскадом.
func (p *Postgres) RemoveCategory(guildID int64, slug string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM category_configs WHERE guild_id=$1 AND slug=$2`, guildID, slug)
	metrics.ObserveNetworkRequest("postgres", "category_configs_delete", "category_configs", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetCategoryBySlug возвращает категорию гильдии по слагу.
func (p *Postgres) GetCategoryBySlug(guildID int64, slug string) (domain.CategoryConfig, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT `+categoryColumns+`
FROM category_configs WHERE guild_id=$1 AND slug=$2
`, guildID, slug)
	cfg, err := scanCategory(row)
	metrics.ObserveNetworkRequest("postgres", "category_configs_get_by_slug", "category_configs", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CategoryConfig{}, domain.ErrCategoryNotFound
	}
	return cfg, err
}

func (p *Postgres) listCategories(operation, query string, args ...any) ([]domain.CategoryConfig, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", operation, "category_configs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var configs []domain.CategoryConfig
	for rows.Next() {
		cfg, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// ListGuildCategories возвращает категории гильдии, опционально по статусу.
func (p *Postgres) ListGuildCategories(guildID int64, status domain.CategoryStatus) ([]domain.CategoryConfig, error) {
	if status == "" {
		return p.listCategories("category_configs_list_guild", `
SELECT `+categoryColumns+`
FROM category_configs WHERE guild_id=$1
ORDER BY slug
`, guildID)
	}
	return p.listCategories("category_configs_list_guild_status", `
SELECT `+categoryColumns+`
FROM category_configs WHERE guild_id=$1 AND status=$2
ORDER BY slug
`, guildID, string(status))
}

// ListActiveCategories возвращает активные категории всех гильдий для планировщика.
func (p *Postgres) ListActiveCategories() ([]domain.CategoryConfig, error) {
	return p.listCategories("category_configs_list_active", `
SELECT `+categoryColumns+`
FROM category_configs WHERE status='active'
ORDER BY guild_id, id
`)
}

// UpdateCategoryStatus переводит категорию в новый статус.
func (p *Postgres) UpdateCategoryStatus(guildID int64, slug string, status domain.CategoryStatus) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE category_configs
SET status=$3, updated_at=now()
WHERE guild_id=$1 AND slug=$2
`, guildID, slug, string(status))
	metrics.ObserveNetworkRequest("postgres", "category_configs_update_status", "category_configs", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateCategoryLastRun фиксирует время успешного запуска.
func (p *Postgres) UpdateCategoryLastRun(categoryID int64, at time.Time) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE category_configs SET last_run=$2 WHERE id=$1`, categoryID, at)
	metrics.ObserveNetworkRequest("postgres", "category_configs_update_last_run", "category_configs", start, err)
	return err
}

// AddSentDeal помечает предложение глобально отправленным.
func (p *Postgres) AddSentDeal(dealID string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO sent_deals (deal_id) VALUES ($1)
ON CONFLICT DO NOTHING
`, dealID)
	metrics.ObserveNetworkRequest("postgres", "sent_deals_insert", "sent_deals", start, err)
	return err
}

// IsDealSent проверяет глобальную отправку предложения.
func (p *Postgres) IsDealSent(dealID string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sent_deals WHERE deal_id=$1)`, dealID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "sent_deals_lookup", "sent_deals", start, err)
	return exists, err
}

// IsCategoryDealSent проверяет отправку предложения в рамках категории.
func (p *Postgres) IsCategoryDealSent(categoryID int64, dealID string) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM category_sent_deals WHERE category_id=$1 AND deal_id=$2)
`, categoryID, dealID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "category_sent_deals_lookup", "category_sent_deals", start, err)
	return exists, err
}

// MarkCategorySentBatch помечает пары (категория, предложение) батчем.
func (p *Postgres) MarkCategorySentBatch(records []domain.CategorySent) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
INSERT INTO category_sent_deals (category_id, deal_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, rec.CategoryID, rec.DealID)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "category_sent_deals_send_batch", "category_sent_deals", start, nil)
	defer br.Close()
	for range records {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "category_sent_deals_batch_exec", "category_sent_deals", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// CleanupSentDeals удаляет устаревшие глобальные пометки.
func (p *Postgres) CleanupSentDeals(olderThan time.Duration) (int64, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM sent_deals WHERE sent_at < now() - make_interval(secs => $1)`, olderThan.Seconds())
	metrics.ObserveNetworkRequest("postgres", "sent_deals_cleanup", "sent_deals", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CleanupCategorySentDeals удаляет устаревшие пометки категорий.
func (p *Postgres) CleanupCategorySentDeals(olderThan time.Duration) (int64, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM category_sent_deals WHERE sent_at < now() - make_interval(secs => $1)`, olderThan.Seconds())
	metrics.ObserveNetworkRequest("postgres", "category_sent_deals_cleanup", "category_sent_deals", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AddCategoryStats аддитивно накапливает дневную статистику категории.
func (p *Postgres) AddCategoryStats(categoryID int64, found, sent, scrapeErrors int) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO category_stats (category_id, date, deals_found, deals_sent, scrape_errors)
VALUES ($1, CURRENT_DATE, $2, $3, $4)
ON CONFLICT (category_id, date) DO UPDATE SET
    deals_found   = category_stats.deals_found + EXCLUDED.deals_found,
    deals_sent    = category_stats.deals_sent + EXCLUDED.deals_sent,
    scrape_errors = category_stats.scrape_errors + EXCLUDED.scrape_errors
`, categoryID, found, sent, scrapeErrors)
	metrics.ObserveNetworkRequest("postgres", "category_stats_upsert", "category_stats", start, err)
	return err
}

// ListCategoryStats возвращает историю статистики категории.
func (p *Postgres) ListCategoryStats(categoryID int64, fromDate time.Time) ([]domain.CategoryStats, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT category_id, date, deals_found, deals_sent, scrape_errors
FROM category_stats
WHERE category_id=$1 AND date >= $2
ORDER BY date DESC
`, categoryID, fromDate)
	metrics.ObserveNetworkRequest("postgres", "category_stats_list", "category_stats", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stats []domain.CategoryStats
	for rows.Next() {
		var s domain.CategoryStats
		if err := rows.Scan(&s.CategoryID, &s.Date, &s.DealsFound, &s.DealsSent, &s.ScrapeErrors); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
