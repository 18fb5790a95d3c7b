package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/infra/metrics"
)

// Pepper собирает предложения со страниц Pepper.pl.
type Pepper struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	log       zerolog.Logger
}

var _ domain.Scraper = (*Pepper)(nil)

// NewPepper создаёт скрейпер.
func NewPepper(baseURL, userAgent string, timeout time.Duration, logger zerolog.Logger) *Pepper {
	return &Pepper{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
		log:       logger,
	}
}

// SearchDeals ищет предложения по запросу, свежие первыми.
func (p *Pepper) SearchDeals(ctx context.Context, query string, limit int) ([]domain.Deal, error) {
	target := fmt.Sprintf("%s/search?q=%s&sortBy=new", p.baseURL, url.QueryEscape(query))
	return p.collect(ctx, "search", target, limit)
}

// GroupDeals возвращает предложения категории по её слагу.
func (p *Pepper) GroupDeals(ctx context.Context, slug string, limit int) ([]domain.Deal, error) {
	target := fmt.Sprintf("%s/grupa/%s", p.baseURL, url.PathEscape(slug))
	return p.collect(ctx, "group", target, limit)
}

func (p *Pepper) collect(ctx context.Context, operation, target string, limit int) ([]domain.Deal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.UserAgent(p.userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(p.timeout)

	var (
		deals    []domain.Deal
		visitErr error
	)

	c.OnHTML("article.thread", func(e *colly.HTMLElement) {
		if limit > 0 && len(deals) >= limit {
			return
		}
		deal := p.parseThread(e)
		if deal.Link == "" || deal.Title == "" {
			return
		}
		deals = append(deals, deal)
	})

	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("запрос %s: %w", target, err)
	})

	start := time.Now()
	if err := c.Visit(target); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("запрос %s: %w", target, err)
	}
	c.Wait()
	metrics.ObserveNetworkRequest("pepper", operation, p.baseURL, start, visitErr)

	if visitErr != nil {
		metrics.ScrapeErrors.WithLabelValues(operation).Inc()
		return nil, visitErr
	}

	metrics.DealsScraped.WithLabelValues(operation).Add(float64(len(deals)))
	p.log.Debug().Str("target", target).Int("deals", len(deals)).Msg("скрейпер: страница разобрана")
	return deals, nil
}

func (p *Pepper) parseThread(e *colly.HTMLElement) domain.Deal {
	link := e.ChildAttr("a.thread-title--list, .thread-title a", "href")
	if link != "" && !strings.HasPrefix(link, "http") {
		link = p.baseURL + link
	}

	deal := domain.Deal{
		ID:            link,
		Title:         strings.TrimSpace(e.ChildText(".thread-title")),
		Link:          link,
		Price:         strings.TrimSpace(e.ChildText(".thread-price")),
		NextBestPrice: strings.TrimSpace(e.ChildText(".mute--text.text--lineThrough")),
		Merchant:      strings.TrimSpace(e.ChildText(".cept-merchant-name")),
		Temperature:   ParseTemperature(e.ChildText(".cept-vote-temp")),
		VoucherCode:   strings.TrimSpace(e.ChildText(".voucher .buttonWithCode-code")),
		ImageURL:      e.ChildAttr("img.thread-image", "src"),
	}
	return deal
}

var temperatureRegex = regexp.MustCompile(`(-?\d+)`)

// ParseTemperature извлекает числовой рейтинг из текста вида "250°".
func ParseTemperature(raw string) int {
	m := temperatureRegex.FindString(strings.ReplaceAll(raw, "\u00a0", " "))
	if m == "" {
		return 0
	}
	temp, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return temp
}
