package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/akramov/fleetpoll/telegram"
)

// Poller drives the long-polling transport mode: one sequential getUpdates
// loop, each update handled to completion before the next.
type Poller struct {
	client   *telegram.Client
	bot      *Bot
	interval time.Duration
	log      *zap.Logger
}

func NewPoller(client *telegram.Client, b *Bot, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{client: client, bot: b, interval: interval, log: log}
}

func (p *Poller) Run(ctx context.Context) error {
	var offset int64
	timeoutSeconds := int(p.interval / time.Second)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := p.client.GetUpdates(ctx, offset, timeoutSeconds, []string{"message", "callback_query"})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("getUpdates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.interval):
			}
			continue
		}

		for _, up := range updates {
			if up.UpdateID >= offset {
				offset = up.UpdateID + 1
			}
			if err := p.bot.HandleUpdate(ctx, up); err != nil {
				p.log.Error("update handling failed",
					zap.Int64("update_id", up.UpdateID), zap.Error(err))
			}
		}
	}
}
