package handlers

import (
	"context"

	"github.com/mr-linch/go-tg/tgb"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
)

func Reset(service *bot.Service) func(ctx context.Context, msg *tgb.MessageUpdate) error {
	return guarded(service, func(ctx context.Context, m bot.Message) error {
		return service.Reset(ctx, m.ChatID, service.LangFor(m.LanguageCode))
	})
}
