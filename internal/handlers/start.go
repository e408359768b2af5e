package handlers

import (
	"context"

	"github.com/mr-linch/go-tg/tgb"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
)

// Start greets on /start and /help, including the deep link the group
// handler points to.
func Start(service *bot.Service) func(ctx context.Context, msg *tgb.MessageUpdate) error {
	return guarded(service, func(ctx context.Context, m bot.Message) error {
		return service.Start(ctx, m.ChatID, service.LangFor(m.LanguageCode))
	})
}
