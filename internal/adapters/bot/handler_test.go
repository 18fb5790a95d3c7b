package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/usecase/categories"
)

func TestTempEmoji(t *testing.T) {
	cases := map[int]string{
		750: "🌋",
		500: "🌋",
		250: "🔥",
		100: "🔥",
		50:  "👍",
		0:   "❄️",
		-20: "❄️",
	}
	for temp, expected := range cases {
		if got := tempEmoji(temp); got != expected {
			t.Fatalf("для %d ожидали %q, получили %q", temp, expected, got)
		}
	}
}

func TestDealEmbed(t *testing.T) {
	deal := domain.Deal{
		ID:            "https://www.pepper.pl/promocje/x-123",
		Title:         "Dysk SSD 1TB",
		Link:          "https://www.pepper.pl/promocje/x-123",
		Price:         "199,99 zł",
		NextBestPrice: "299 zł",
		Merchant:      "x-kom",
		Temperature:   320,
		VoucherCode:   "RABAT10",
		ImageURL:      "https://static.pepper.pl/x.jpg",
	}

	embed := DealEmbed(deal, "Elektronika • Pepper.pl")
	if embed.Color != colorPrimary {
		t.Fatalf("неверный цвет: %#x", embed.Color)
	}
	if embed.URL != deal.Link {
		t.Fatalf("неверная ссылка: %q", embed.URL)
	}
	if len(embed.Fields) != 4 {
		t.Fatalf("ожидали 4 поля, получили %d", len(embed.Fields))
	}
	if embed.Fields[0].Name != "💰 Cena" || !strings.Contains(embed.Fields[0].Value, "~~299 zł~~") {
		t.Fatalf("поле цены собрано неверно: %+v", embed.Fields[0])
	}
	if embed.Fields[2].Name != "🔥 Ocena" || embed.Fields[2].Value != "320°" {
		t.Fatalf("поле рейтинга собрано неверно: %+v", embed.Fields[2])
	}
	if !strings.Contains(embed.Fields[3].Value, "RABAT10") {
		t.Fatalf("код купона потерян: %+v", embed.Fields[3])
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != deal.ImageURL {
		t.Fatal("миниатюра потеряна")
	}
	if embed.Footer == nil || embed.Footer.Text != "Elektronika • Pepper.pl" {
		t.Fatalf("футер собран неверно: %+v", embed.Footer)
	}
}

func TestDealEmbedFreeAndEmpty(t *testing.T) {
	embed := DealEmbed(domain.Deal{Title: "Gratis", Link: "l", Price: "0 zł"}, "")
	if !strings.Contains(embed.Fields[0].Value, "Darmowa") {
		t.Fatalf("бесплатное предложение должно показываться как Darmowa: %+v", embed.Fields[0])
	}
	if embed.Fields[1].Value != "---" {
		t.Fatalf("пустой магазин должен показываться как ---: %+v", embed.Fields[1])
	}
	if embed.Footer == nil || embed.Footer.Text != "Pepper.pl" {
		t.Fatalf("футер по умолчанию собран неверно: %+v", embed.Footer)
	}
	if len(embed.Fields) != 3 {
		t.Fatalf("без купона должно быть 3 поля, получили %d", len(embed.Fields))
	}
}

func TestDealEmbedTruncatesTitleByRunes(t *testing.T) {
	title := strings.Repeat("ł", maxEmbedTitle+50)
	embed := DealEmbed(domain.Deal{Title: title, Link: "l", Price: "1 zł"}, "")

	runes := []rune(embed.Title)
	if len(runes) != maxEmbedTitle {
		t.Fatalf("ожидали %d рун, получили %d", maxEmbedTitle, len(runes))
	}
	for _, r := range runes {
		if r != 'ł' {
			t.Fatalf("обрезка разрезала руну: %q", embed.Title[len(embed.Title)-4:])
		}
	}
}

func TestCategoryErrorText(t *testing.T) {
	cases := map[error]string{
		categories.ErrInvalidSlug:     "Slug wygląda niepoprawnie. Użyj formy jak w adresie pepper.pl/grupa/…",
		categories.ErrSlugNotLive:     "Taka kategoria nie istnieje na Pepper.pl.",
		domain.ErrCategoryExists:      "Serwer już subskrybuje tę kategorię.",
		domain.ErrCategoryNotFound:    "Serwer nie subskrybuje tej kategorii.",
		domain.ErrInvalidScheduleTime: "Godzina musi być w formacie HH:MM.",
	}
	for err, expected := range cases {
		if got := categoryErrorText(err); got != expected {
			t.Fatalf("для %v ожидали %q, получили %q", err, expected, got)
		}
	}
}

func TestCommandsSurface(t *testing.T) {
	commands := Commands()
	byName := map[string]*discordgo.ApplicationCommand{}
	for _, cmd := range commands {
		byName[cmd.Name] = cmd
	}

	for _, name := range []string{"pepper", "alert", "category"} {
		if _, ok := byName[name]; !ok {
			t.Fatalf("нет команды %q", name)
		}
	}

	category := byName["category"]
	if category.DefaultMemberPermissions == nil {
		t.Fatal("управление категориями должно требовать прав")
	}
	subs := map[string]bool{}
	for _, opt := range category.Options {
		subs[opt.Name] = true
	}
	for _, name := range []string{"add", "remove", "list", "pause", "resume", "stats"} {
		if !subs[name] {
			t.Fatalf("нет подкоманды category %s", name)
		}
	}
}

func TestFindOption(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "slug", Type: discordgo.ApplicationCommandOptionString, Value: "elektronika"},
	}
	if got := optionString(options, "slug"); got != "elektronika" {
		t.Fatalf("ожидали elektronika, получили %q", got)
	}
	if got := optionString(options, "missing"); got != "" {
		t.Fatalf("для отсутствующей опции ожидали пустую строку, получили %q", got)
	}
}
