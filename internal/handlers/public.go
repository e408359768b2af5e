package handlers

import (
	"context"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
	"github.com/iamwavecut/telegram-assistant-bot/internal/i18n"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

// Public answers mentions in groups with a link to a private chat.
func Public(me *tg.User, service *bot.Service) func(ctx context.Context, msg *tgb.MessageUpdate) error {
	return func(ctx context.Context, msg *tgb.MessageUpdate) error {
		m := toMessage(ctx, msg)
		lang := service.LangFor(m.LanguageCode)

		keyboard := bot.Keyboard{{
			{Text: i18n.Get(consts.StrSwitchToPrivate, lang), URL: me.Username.Link() + "?start=start"},
		}}
		return service.Sender.Send(ctx, m.ChatID, i18n.Get(consts.StrNoPublic, lang), bot.WithKeyboard(keyboard))
	}
}
