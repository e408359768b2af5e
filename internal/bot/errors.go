package bot

import (
	"context"
	"errors"

	"github.com/iamwavecut/telegram-assistant-bot/internal/assistant"
	"github.com/iamwavecut/telegram-assistant-bot/internal/chat"
	"github.com/iamwavecut/telegram-assistant-bot/internal/i18n"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

// Apology picks the user-facing text for a failed request.
func Apology(err error, lang string) string {
	var key string
	switch {
	case errors.Is(err, assistant.ErrBusy):
		key = consts.StrBusy
	case errors.Is(err, assistant.ErrRunTimeout), errors.Is(err, context.DeadlineExceeded):
		key = consts.StrTimeout
	case errors.Is(err, assistant.ErrRunFailed):
		key = consts.StrRunFailed
	case errors.Is(err, assistant.ErrNoAnswer), errors.Is(err, chat.ErrNoAnswer):
		key = consts.StrNoAnswer
	case errors.Is(err, chat.ErrTooLongUserMessage):
		key = consts.StrTooLong
	default:
		key = consts.StrRequestError
	}
	return i18n.Get(key, lang)
}
