package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"pepper-deal-bot/internal/domain"
)

// pagerTTL — срок жизни листалки, как у исходного меню.
const pagerTTL = 3 * time.Minute

const (
	pagerActionPrev  = "pager_prev"
	pagerActionNext  = "pager_next"
	pagerActionClose = "pager_close"
)

// dealPager хранит состояние листалки результатов /pepper: страницы
// по одному предложению, доступные только автору запроса.
type dealPager struct {
	deals     []domain.Deal
	authorID  string
	page      int
	createdAt time.Time
}

func newDealPager(deals []domain.Deal, authorID string) *dealPager {
	return &dealPager{deals: deals, authorID: authorID, createdAt: time.Now()}
}

func (p *dealPager) expired(now time.Time) bool {
	return now.Sub(p.createdAt) > pagerTTL
}

func (p *dealPager) embed() *discordgo.MessageEmbed {
	return DealEmbed(p.deals[p.page], fmt.Sprintf("Okazja %d z %d • Pepper.pl", p.page+1, len(p.deals)))
}

func (p *dealPager) components(token string) []discordgo.MessageComponent {
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "⬅️", Style: discordgo.SecondaryButton, CustomID: pagerActionPrev + ":" + token, Disabled: p.page == 0},
		discordgo.Button{Label: "➡️", Style: discordgo.PrimaryButton, CustomID: pagerActionNext + ":" + token, Disabled: p.page == len(p.deals)-1},
		discordgo.Button{Label: "🗑️", Style: discordgo.DangerButton, CustomID: pagerActionClose + ":" + token},
	}}
	if link := p.deals[p.page].Link; link != "" {
		row.Components = append(row.Components, discordgo.Button{Label: "🔗 Idź do okazji", Style: discordgo.LinkButton, URL: link})
	}
	return []discordgo.MessageComponent{row}
}

func (h *Handler) storePager(token string, pager *dealPager) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for key, p := range h.pagers {
		if p.expired(now) {
			delete(h.pagers, key)
		}
	}
	h.pagers[token] = pager
}

func (h *Handler) getPager(token string) *dealPager {
	h.mu.Lock()
	defer h.mu.Unlock()
	pager, ok := h.pagers[token]
	if !ok {
		return nil
	}
	if pager.expired(time.Now()) {
		delete(h.pagers, token)
		return nil
	}
	return pager
}

func (h *Handler) dropPager(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pagers, token)
}

func (h *Handler) handleComponent(i *discordgo.InteractionCreate) {
	action, token, ok := strings.Cut(i.MessageComponentData().CustomID, ":")
	if !ok {
		return
	}
	if action != pagerActionPrev && action != pagerActionNext && action != pagerActionClose {
		return
	}

	pager := h.getPager(token)
	if pager == nil {
		h.replyEphemeral(i, "⌛ To menu wygasło, poszukaj jeszcze raz.")
		return
	}
	if interactionUserRaw(i) != pager.authorID {
		h.replyEphemeral(i, "🚫 To nie jest twoje menu.")
		return
	}

	switch action {
	case pagerActionClose:
		h.dropPager(token)
		err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
		if err != nil {
			h.log.Error().Err(err).Msg("бот: не удалось подтвердить закрытие листалки")
			return
		}
		if err := h.session.ChannelMessageDelete(i.ChannelID, i.Message.ID); err != nil {
			h.log.Error().Err(err).Msg("бот: не удалось удалить листалку")
		}
		return
	case pagerActionPrev:
		if pager.page > 0 {
			pager.page--
		}
	case pagerActionNext:
		if pager.page < len(pager.deals)-1 {
			pager.page++
		}
	}

	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{pager.embed()},
			Components: pager.components(token),
		},
	})
	if err != nil {
		h.log.Error().Err(err).Msg("бот: не удалось перелистнуть")
	}
}
