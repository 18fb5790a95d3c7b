package delivery

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pepper-deal-bot/internal/domain"
)

// Service вычитывает очередь уведомлений и доставляет их в Discord.
type Service struct {
	queue    domain.NotificationQueue
	notifier domain.Notifier
	log      zerolog.Logger
}

// NewService создаёт воркер доставки.
func NewService(queue domain.NotificationQueue, notifier domain.Notifier, logger zerolog.Logger) *Service {
	return &Service{queue: queue, notifier: notifier, log: logger}
}

// Run крутит цикл доставки до отмены контекста. Ошибка доставки одной
// задачи логируется и не останавливает цикл.
func (s *Service) Run(ctx context.Context) error {
	for {
		job, err := s.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.log.Error().Err(err).Msg("доставка: очередь недоступна")
			continue
		}

		if err := s.notifier.Deliver(ctx, job); err != nil {
			s.log.Error().
				Err(err).
				Str("job_id", job.ID).
				Str("kind", string(job.Kind)).
				Msg("доставка: задача не доставлена")
			continue
		}
		s.log.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("доставка: задача доставлена")
	}
}
