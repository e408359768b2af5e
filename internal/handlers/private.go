package handlers

import (
	"context"
	"time"

	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
)

type messageFunc func(ctx context.Context, m bot.Message) error

// Private passes a private text message to the service.
func Private(service *bot.Service) func(ctx context.Context, msg *tgb.MessageUpdate) error {
	return guarded(service, service.HandleMessage)
}

// guarded bounds a message handler in time and apologizes when it fails.
func guarded(service *bot.Service, fn messageFunc) func(ctx context.Context, msg *tgb.MessageUpdate) error {
	return func(ctx context.Context, msg *tgb.MessageUpdate) error {
		ctx, cancel := context.WithTimeout(ctx, service.HandleTimeout)
		defer cancel()

		m := toMessage(ctx, msg)
		err := fn(ctx, m)
		if err == nil {
			return nil
		}
		apologize(ctx, service, m.ChatID, m.LanguageCode, err, log.Fields{
			"update_id": m.UpdateID,
			"chat_id":   m.ChatID,
		})
		return nil
	}
}

func toMessage(ctx context.Context, msg *tgb.MessageUpdate) bot.Message {
	m := bot.Message{
		UpdateID:   UpdateID(ctx),
		ChatID:     int64(msg.Chat.ID),
		Text:       msg.Text,
		ReceivedAt: time.Now(),
	}
	if msg.From != nil {
		m.UserID = int64(msg.From.ID)
		m.LanguageCode = msg.From.LanguageCode
		m.FirstName = msg.From.FirstName
		m.LastName = msg.From.LastName
		m.Username = string(msg.From.Username)
	}
	return m
}

func apologize(ctx context.Context, service *bot.Service, chatID int64, langCode string, err error, fields log.Fields) {
	log.WithError(err).WithFields(fields).Errorln("update handling failed")

	// the handler context may be what has expired
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	text := bot.Apology(err, service.LangFor(langCode))
	if sendErr := service.Sender.Send(ctx, chatID, text, bot.WithParseMode(bot.Plain)); sendErr != nil {
		log.WithError(sendErr).WithFields(fields).Warnln("cant deliver apology")
	}
}
