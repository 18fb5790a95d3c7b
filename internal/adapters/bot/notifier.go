package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
	"pepper-deal-bot/internal/infra/metrics"
)

// Notifier доставляет уведомления очереди через сессию Discord.
type Notifier struct {
	session *discordgo.Session
	log     zerolog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт доставщик уведомлений.
func NewNotifier(session *discordgo.Session, logger zerolog.Logger) *Notifier {
	return &Notifier{session: session, log: logger}
}

// Deliver отправляет предложение адресату задачи: личным сообщением
// по алерту либо в канал категории.
func (n *Notifier) Deliver(ctx context.Context, job domain.NotificationJob) error {
	var err error
	switch job.Kind {
	case domain.NotifyDM:
		err = n.deliverDM(job)
	case domain.NotifyChannel:
		err = n.deliverChannel(job)
	default:
		err = fmt.Errorf("неизвестный тип уведомления %q", job.Kind)
	}

	if err != nil {
		metrics.BotSendErrors.Inc()
		return err
	}
	metrics.DealsSent.WithLabelValues(string(job.Kind)).Inc()
	return nil
}

func (n *Notifier) deliverDM(job domain.NotificationJob) error {
	channel, err := n.session.UserChannelCreate(strconv.FormatInt(job.UserID, 10))
	if err != nil {
		return fmt.Errorf("открытие личного канала: %w", err)
	}

	content := fmt.Sprintf("🔔 Nowa okazja dla **%s**!", job.Query)
	_, err = n.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{DealEmbed(job.Deal, "Alert • Pepper.pl")},
	})
	if err != nil {
		return fmt.Errorf("отправка личного сообщения: %w", err)
	}
	return nil
}

func (n *Notifier) deliverChannel(job domain.NotificationJob) error {
	footer := "Pepper.pl"
	if job.Category != "" {
		footer = fmt.Sprintf("%s • Pepper.pl", job.Category)
	}
	_, err := n.session.ChannelMessageSendComplex(strconv.FormatInt(job.ChannelID, 10), &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{DealEmbed(job.Deal, footer)},
	})
	if err != nil {
		return fmt.Errorf("отправка в канал %d: %w", job.ChannelID, err)
	}
	return nil
}
