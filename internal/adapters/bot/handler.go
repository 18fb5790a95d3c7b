package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/usecase/alerts"
	"pepper-deal-bot/internal/usecase/categories"
)

// Handler обслуживает слэш-команды бота и кнопки листалки.
type Handler struct {
	session      *discordgo.Session
	log          zerolog.Logger
	alertsUC     *alerts.Service
	categoriesUC *categories.Service
	scraper      domain.Scraper
	searchLimit  int
	mu           sync.Mutex
	pagers       map[string]*dealPager
}

// NewHandler создаёт обработчик слэш-команд.
func NewHandler(session *discordgo.Session, logger zerolog.Logger, alertsUC *alerts.Service, categoriesUC *categories.Service, scraper domain.Scraper, searchLimit int) *Handler {
	return &Handler{
		session:      session,
		log:          logger,
		alertsUC:     alertsUC,
		categoriesUC: categoriesUC,
		scraper:      scraper,
		searchLimit:  searchLimit,
		pagers:       make(map[string]*dealPager),
	}
}

// Commands возвращает описания слэш-команд для регистрации.
func Commands() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "pepper",
			Description: "Szukaj okazji na Pepper.pl",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Czego szukasz?",
					Required:    true,
				},
			},
		},
		{
			Name:        "alert",
			Description: "Alerty cenowe na wyszukiwania",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Dodaj alert na zapytanie",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "Zapytanie", Required: true},
						{Type: discordgo.ApplicationCommandOptionNumber, Name: "max_price", Description: "Maksymalna cena w zł"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Usuń alert",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "Zapytanie", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Pokaż twoje alerty",
				},
			},
		},
		{
			Name:                     "category",
			Description:              "Subskrypcje kategorii Pepper.pl",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Subskrybuj kategorię na kanale",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "slug", Description: "Slug grupy, np. elektronika", Required: true},
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Kanał docelowy", Required: true},
						{
							Type: discordgo.ApplicationCommandOptionString, Name: "frequency", Description: "Częstotliwość", Required: true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "daily", Value: "daily"},
								{Name: "weekly", Value: "weekly"},
								{Name: "biweekly", Value: "biweekly"},
								{Name: "monthly", Value: "monthly"},
							},
						},
						{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "Godzina HH:MM", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "day", Description: "Dzień tygodnia (weekly/biweekly)"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "date", Description: "Dzień miesiąca (monthly)"},
						{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Własna nazwa"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "min_temp", Description: "Minimalna temperatura"},
						{Type: discordgo.ApplicationCommandOptionNumber, Name: "max_price", Description: "Maksymalna cena w zł"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Usuń subskrypcję",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "slug", Description: "Slug grupy", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Pokaż subskrypcje serwera",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "pause",
					Description: "Wstrzymaj subskrypcję",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "slug", Description: "Slug grupy", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "resume",
					Description: "Wznów subskrypcję",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "slug", Description: "Slug grupy", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "stats",
					Description: "Statystyki subskrypcji",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "slug", Description: "Slug grupy", Required: true},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Okres w dniach (domyślnie 7)"},
					},
				},
			},
		},
	}
}

// Register регистрирует команды приложения.
func (h *Handler) Register(appID, guildID string) error {
	for _, cmd := range Commands() {
		if _, err := h.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return fmt.Errorf("регистрация команды %q: %w", cmd.Name, err)
		}
	}
	return nil
}

// HandleInteraction — точка входа для событий InteractionCreate.
func (h *Handler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type == discordgo.InteractionMessageComponent {
		h.handleComponent(i)
		return
	}
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data := i.ApplicationCommandData()
	switch data.Name {
	case "pepper":
		h.handleSearch(ctx, i, data)
	case "alert":
		h.handleAlert(ctx, i, data)
	case "category":
		h.handleCategory(ctx, i, data)
	default:
		h.replyError(i, "Nieznana komenda.")
	}
}

func (h *Handler) handleSearch(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	query := strings.TrimSpace(optionString(data.Options, "query"))
	if query == "" {
		h.replyError(i, "Podaj zapytanie.")
		return
	}

	// Скрейп может занять несколько секунд, поэтому ответ отложенный.
	if err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось отложить ответ")
		return
	}

	deals, err := h.scraper.SearchDeals(ctx, query, h.searchLimit)
	if err != nil {
		h.log.Warn().Err(err).Str("query", query).Msg("бот: поиск не удался")
		h.followupError(i, "Pepper.pl nie odpowiada, spróbuj później.")
		return
	}
	if len(deals) == 0 {
		h.followup(i, fmt.Sprintf("🤷 Brak wyników dla **%s**.", query), nil)
		return
	}

	// Листалка по одному предложению, закрытая на автора запроса.
	token := i.ID
	pager := newDealPager(deals, interactionUserRaw(i))
	h.storePager(token, pager)

	_, err = h.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content:    fmt.Sprintf("🔍 Wyniki dla **%s**:", query),
		Embeds:     []*discordgo.MessageEmbed{pager.embed()},
		Components: pager.components(token),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось отправить листалку")
	}
}

func (h *Handler) handleAlert(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID, err := interactionUserID(i)
	if err != nil {
		h.replyError(i, "Nie udało się ustalić użytkownika.")
		return
	}
	if len(data.Options) == 0 {
		h.replyError(i, "Brak podkomendy.")
		return
	}

	sub := data.Options[0]
	switch sub.Name {
	case "add":
		query := optionString(sub.Options, "query")
		var maxPrice *float64
		if opt := findOption(sub.Options, "max_price"); opt != nil {
			price := opt.FloatValue()
			maxPrice = &price
		}
		alert, err := h.alertsUC.AddAlert(ctx, userID, query, maxPrice)
		if err != nil {
			h.replyError(i, alertErrorText(err))
			return
		}
		text := fmt.Sprintf("🔔 Alert na **%s** dodany.", alert.Query)
		if alert.MaxPrice != nil {
			text = fmt.Sprintf("🔔 Alert na **%s** do **%.2f zł** dodany.", alert.Query, *alert.MaxPrice)
		}
		h.replyEphemeral(i, text)
	case "remove":
		query := optionString(sub.Options, "query")
		removed, err := h.alertsUC.RemoveAlert(ctx, userID, query)
		if err != nil {
			h.replyError(i, alertErrorText(err))
			return
		}
		if !removed {
			h.replyEphemeral(i, "🤷 Nie masz takiego alertu.")
			return
		}
		h.replyEphemeral(i, "🗑️ Alert usunięty.")
	case "list":
		list, err := h.alertsUC.ListAlerts(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("бот: список алертов не получен")
			h.replyError(i, "Nie udało się pobrać alertów.")
			return
		}
		if len(list) == 0 {
			h.replyEphemeral(i, "Nie masz żadnych alertów. Dodaj pierwszy przez `/alert add`.")
			return
		}
		var b strings.Builder
		b.WriteString("🔔 **Twoje alerty:**\n")
		for _, alert := range list {
			if alert.MaxPrice != nil {
				fmt.Fprintf(&b, "• **%s** (do %.2f zł)\n", alert.Query, *alert.MaxPrice)
			} else {
				fmt.Fprintf(&b, "• **%s**\n", alert.Query)
			}
		}
		h.replyEphemeral(i, b.String())
	default:
		h.replyError(i, "Nieznana podkomenda.")
	}
}

func (h *Handler) handleCategory(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if i.GuildID == "" {
		h.replyError(i, "Ta komenda działa tylko na serwerze.")
		return
	}
	guildID, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		h.replyError(i, "Nie udało się ustalić serwera.")
		return
	}
	if len(data.Options) == 0 {
		h.replyError(i, "Brak podkomendy.")
		return
	}

	sub := data.Options[0]
	switch sub.Name {
	case "add":
		h.handleCategoryAdd(ctx, i, guildID, sub)
	case "remove":
		if err := h.categoriesUC.Remove(ctx, guildID, optionString(sub.Options, "slug")); err != nil {
			h.replyError(i, categoryErrorText(err))
			return
		}
		h.replyEphemeral(i, "🗑️ Subskrypcja usunięta razem z historią.")
	case "list":
		h.handleCategoryList(ctx, i, guildID)
	case "pause":
		if err := h.categoriesUC.SetStatus(ctx, guildID, optionString(sub.Options, "slug"), domain.StatusPaused); err != nil {
			h.replyError(i, categoryErrorText(err))
			return
		}
		h.replyEphemeral(i, "⏸️ Subskrypcja wstrzymana.")
	case "resume":
		if err := h.categoriesUC.SetStatus(ctx, guildID, optionString(sub.Options, "slug"), domain.StatusActive); err != nil {
			h.replyError(i, categoryErrorText(err))
			return
		}
		h.replyEphemeral(i, "▶️ Subskrypcja wznowiona.")
	case "stats":
		h.handleCategoryStats(ctx, i, guildID, sub)
	default:
		h.replyError(i, "Nieznana podkomenda.")
	}
}

func (h *Handler) handleCategoryAdd(ctx context.Context, i *discordgo.InteractionCreate, guildID int64, sub *discordgo.ApplicationCommandInteractionDataOption) {
	channelOpt := findOption(sub.Options, "channel")
	if channelOpt == nil {
		h.replyError(i, "Podaj kanał docelowy.")
		return
	}
	channelID, err := strconv.ParseInt(channelOpt.ChannelValue(nil).ID, 10, 64)
	if err != nil {
		h.replyError(i, "Nie udało się ustalić kanału.")
		return
	}

	params := categories.CreateParams{
		GuildID:   guildID,
		Slug:      optionString(sub.Options, "slug"),
		Name:      optionString(sub.Options, "name"),
		ChannelID: channelID,
		Frequency: optionString(sub.Options, "frequency"),
		TimeOfDay: optionString(sub.Options, "time"),
		Day:       optionString(sub.Options, "day"),
	}
	if opt := findOption(sub.Options, "date"); opt != nil {
		params.Date = int(opt.IntValue())
	}
	if opt := findOption(sub.Options, "min_temp"); opt != nil {
		params.MinTemp = int(opt.IntValue())
	}
	if opt := findOption(sub.Options, "max_price"); opt != nil {
		price := opt.FloatValue()
		params.MaxPrice = &price
	}

	// Проверка слага ходит на Pepper.pl, поэтому ответ отложенный.
	if err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось отложить ответ")
		return
	}

	cfg, err := h.categoriesUC.Create(ctx, params)
	if err != nil {
		h.followupError(i, categoryErrorText(err))
		return
	}
	h.followup(i, fmt.Sprintf("✅ Subskrypcja **%s** dodana: %s, kanał <#%d>.", cfg.DisplayName(), cfg.Schedule.Format(), cfg.ChannelID), nil)
}

func (h *Handler) handleCategoryList(ctx context.Context, i *discordgo.InteractionCreate, guildID int64) {
	list, err := h.categoriesUC.List(ctx, guildID, "")
	if err != nil {
		h.log.Error().Err(err).Int64("guild_id", guildID).Msg("бот: список категорий не получен")
		h.replyError(i, "Nie udało się pobrać subskrypcji.")
		return
	}
	if len(list) == 0 {
		h.replyEphemeral(i, "Serwer nie ma subskrypcji. Dodaj pierwszą przez `/category add`.")
		return
	}

	var b strings.Builder
	b.WriteString("📋 **Subskrypcje serwera:**\n")
	for _, cfg := range list {
		status := map[domain.CategoryStatus]string{
			domain.StatusActive:   "🟢",
			domain.StatusPaused:   "⏸️",
			domain.StatusDisabled: "🔴",
		}[cfg.Status]
		fmt.Fprintf(&b, "%s **%s** → <#%d> • %s\n", status, cfg.DisplayName(), cfg.ChannelID, cfg.Schedule.Format())
	}
	h.replyEphemeral(i, b.String())
}

func (h *Handler) handleCategoryStats(ctx context.Context, i *discordgo.InteractionCreate, guildID int64, sub *discordgo.ApplicationCommandInteractionDataOption) {
	days := 0
	if opt := findOption(sub.Options, "days"); opt != nil {
		days = int(opt.IntValue())
	}
	cfg, rows, err := h.categoriesUC.Stats(ctx, guildID, optionString(sub.Options, "slug"), days)
	if err != nil {
		h.replyError(i, categoryErrorText(err))
		return
	}

	var found, sent, scrapeErrors int
	for _, row := range rows {
		found += row.DealsFound
		sent += row.DealsSent
		scrapeErrors += row.ScrapeErrors
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **%s** — %s\n", cfg.DisplayName(), cfg.Schedule.Format())
	fmt.Fprintf(&b, "Znalezione: **%d** • Wysłane: **%d** • Błędy: **%d**\n", found, sent, scrapeErrors)
	if cfg.LastRun != nil {
		fmt.Fprintf(&b, "Ostatni przebieg: <t:%d:R>\n", cfg.LastRun.Unix())
	}
	h.replyEphemeral(i, b.String())
}

func alertErrorText(err error) string {
	switch {
	case errors.Is(err, alerts.ErrEmptyQuery):
		return "Zapytanie nie może być puste."
	case errors.Is(err, alerts.ErrQueryTooLong):
		return "Zapytanie jest za długie (max 100 znaków)."
	default:
		return "Coś poszło nie tak, spróbuj później."
	}
}

func categoryErrorText(err error) string {
	switch {
	case errors.Is(err, categories.ErrInvalidSlug):
		return "Slug wygląda niepoprawnie. Użyj formy jak w adresie pepper.pl/grupa/…"
	case errors.Is(err, categories.ErrSlugNotLive):
		return "Taka kategoria nie istnieje na Pepper.pl."
	case errors.Is(err, domain.ErrCategoryExists):
		return "Serwer już subskrybuje tę kategorię."
	case errors.Is(err, domain.ErrCategoryNotFound):
		return "Serwer nie subskrybuje tej kategorii."
	case errors.Is(err, domain.ErrInvalidScheduleTime):
		return "Godzina musi być w formacie HH:MM."
	case errors.Is(err, domain.ErrInvalidScheduleType):
		return "Nieznana częstotliwość."
	case errors.Is(err, domain.ErrScheduleNeedsDay):
		return "Dla weekly/biweekly podaj dzień tygodnia."
	case errors.Is(err, domain.ErrScheduleNeedsDate):
		return "Dla monthly podaj dzień miesiąca od 1 do 31."
	case errors.Is(err, domain.ErrInvalidWeekday):
		return "Nieznany dzień tygodnia."
	default:
		return "Coś poszło nie tak, spróbuj później."
	}
}

func interactionUserRaw(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

func interactionUserID(i *discordgo.InteractionCreate) (int64, error) {
	raw := interactionUserRaw(i)
	if raw == "" {
		return 0, errors.New("в интеракции нет пользователя")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func findOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt := findOption(options, name); opt != nil {
		return opt.StringValue()
	}
	return ""
}

func (h *Handler) replyEphemeral(i *discordgo.InteractionCreate, text string) {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось ответить")
	}
}

func (h *Handler) replyError(i *discordgo.InteractionCreate, message string) {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{errorEmbed(message)},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось ответить")
	}
}

func (h *Handler) followup(i *discordgo.InteractionCreate, content string, embeds []*discordgo.MessageEmbed) {
	_, err := h.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Embeds:  embeds,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось отправить followup")
	}
}

func (h *Handler) followupError(i *discordgo.InteractionCreate, message string) {
	_, err := h.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{errorEmbed(message)},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось отправить followup")
	}
}
