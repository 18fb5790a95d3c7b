package domain

import "time"

// Deal описывает предложение, собранное с Pepper.pl.
// Идентификатором служит ссылка на страницу предложения.
type Deal struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Price         string    `json:"price"`
	NextBestPrice string    `json:"next_best_price,omitempty"`
	Merchant      string    `json:"merchant,omitempty"`
	Temperature   int       `json:"temperature"`
	VoucherCode   string    `json:"voucher_code,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	PostedAt      time.Time `json:"posted_at,omitempty"`
}

// Alert описывает подписку пользователя на поисковый запрос.
type Alert struct {
	ID        int64
	UserID    int64
	Query     string
	MaxPrice  *float64
	CreatedAt time.Time
}

// CategoryConfig описывает подписку гильдии на категорию Pepper.pl.
type CategoryConfig struct {
	ID        int64
	GuildID   int64
	Slug      string
	Name      string
	ChannelID int64
	Schedule  Schedule
	Status    CategoryStatus
	MinTemp   int
	MaxPrice  *float64
	CreatedAt time.Time
	UpdatedAt time.Time
	LastRun   *time.Time
}

// DisplayName возвращает имя категории для вывода пользователю.
func (c CategoryConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Slug
}

// CategoryStats содержит дневную сводку по категории.
type CategoryStats struct {
	CategoryID   int64
	Date         time.Time
	DealsFound   int
	DealsSent    int
	ScrapeErrors int
}

// NotificationKind определяет адресата уведомления.
type NotificationKind string

const (
	// NotifyDM — личное сообщение пользователю по его алерту.
	NotifyDM NotificationKind = "dm"
	// NotifyChannel — публикация в канал категории.
	NotifyChannel NotificationKind = "channel"
)

// NotificationJob описывает задачу доставки предложения в Discord.
type NotificationJob struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	UserID     int64            `json:"user_id,omitempty"`
	ChannelID  int64            `json:"channel_id,omitempty"`
	GuildID    int64            `json:"guild_id,omitempty"`
	Query      string           `json:"query,omitempty"`
	Category   string           `json:"category,omitempty"`
	Deal       Deal             `json:"deal"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}
