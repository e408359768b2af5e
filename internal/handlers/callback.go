package handlers

import (
	"context"

	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot")

func Callback(service *bot.Service) func(ctx context.Context, cbq *tgb.CallbackQueryUpdate) error {
	return func(ctx context.Context, cbq *tgb.CallbackQueryUpdate) error {
		ctx, cancel := context.WithTimeout(ctx, service.HandleTimeout)
		defer cancel()

		cb := bot.Callback{
			ID:           cbq.ID,
			ChatID:       int64(cbq.From.ID),
			UserID:       int64(cbq.From.ID),
			Data:         cbq.Data,
			LanguageCode: cbq.From.LanguageCode,
		}
		if cbq.Message != nil {
			cb.ChatID = int64(cbq.Message.Chat.ID)
		}

		err := service.HandleCallback(ctx, cb)
		if err == nil {
			return nil
		}
		apologize(ctx, service, cb.ChatID, cb.LanguageCode, err, log.Fields{
			"update_id":   UpdateID(ctx),
			"callback_id": cb.ID,
			"chat_id":     cb.ChatID,
		})
		return nil
	}
}
