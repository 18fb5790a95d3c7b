package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"pepper-deal-bot/internal/domain"
)

const (
	colorPrimary = 0xFF6B35
	colorError   = 0xE74C3C

	pepperFaviconURL = "https://static.pepper.pl/assets/img/favicons/favicon-32x32.png"

	maxEmbedTitle = 250
)

// tempEmoji подбирает эмодзи под рейтинг предложения.
func tempEmoji(temp int) string {
	switch {
	case temp >= 500:
		return "🌋"
	case temp >= 100:
		return "🔥"
	case temp > 0:
		return "👍"
	default:
		return "❄️"
	}
}

// DealEmbed собирает карточку предложения в стиле Pepper.pl.
// Пользовательские строки — на польском, как и сам источник.
func DealEmbed(deal domain.Deal, footer string) *discordgo.MessageEmbed {
	title := deal.Title
	// Обрезаем по рунам, чтобы не разрезать польские буквы.
	if runes := []rune(title); len(runes) > maxEmbedTitle {
		title = string(runes[:maxEmbedTitle])
	}

	priceText := deal.Price
	if priceText == "" {
		priceText = "---"
	}
	if deal.Price == "0 zł" {
		priceText = "Darmowa"
	}
	if deal.NextBestPrice != "" {
		priceText += fmt.Sprintf("  ~~%s~~", deal.NextBestPrice)
	}

	merchant := deal.Merchant
	if merchant == "" {
		merchant = "---"
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		URL:   deal.Link,
		Color: colorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "💰 Cena", Value: fmt.Sprintf("**%s**", priceText), Inline: true},
			{Name: "🏪 Sklep", Value: merchant, Inline: true},
			{Name: fmt.Sprintf("%s Ocena", tempEmoji(deal.Temperature)), Value: fmt.Sprintf("%d°", deal.Temperature), Inline: true},
		},
	}

	if deal.VoucherCode != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🎫 Kod",
			Value: fmt.Sprintf("```\n%s\n```", deal.VoucherCode),
		})
	}
	if deal.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: deal.ImageURL}
	}
	if footer == "" {
		footer = "Pepper.pl"
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text:    footer,
		IconURL: pepperFaviconURL,
	}
	return embed
}

// errorEmbed собирает карточку ошибки для эфемерного ответа.
func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "❌ Błąd",
		Description: message,
		Color:       colorError,
	}
}
