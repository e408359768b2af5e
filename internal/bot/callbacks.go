package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/i18n"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reminder"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

const maxButtonText = 32

func menuKeyboard(lang string) Keyboard {
	return Keyboard{
		{
			{Text: i18n.Get(consts.StrButtonMemory, lang), Data: consts.CallbackMemoryView},
			{Text: i18n.Get(consts.StrButtonClear, lang), Data: consts.CallbackMemoryClear},
		},
		{
			{Text: i18n.Get(consts.StrButtonTraining, lang), Data: consts.CallbackTrainingPlan},
			{Text: i18n.Get(consts.StrButtonReminders, lang), Data: consts.CallbackRemindersList},
		},
	}
}

// HandleCallback answers the query first so the client stops its spinner,
// then runs the menu action.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) error {
	if err := s.Sender.AnswerCallback(ctx, cb.ID, ""); err != nil {
		log.WithError(err).WithField("callback_id", cb.ID).Warnln("cant answer callback query")
	}
	lang := s.LangFor(cb.LanguageCode)

	switch {
	case cb.Data == consts.CallbackMemoryView:
		return s.viewMemory(ctx, cb.ChatID, lang)
	case cb.Data == consts.CallbackMemoryClear:
		return s.Reset(ctx, cb.ChatID, lang)
	case cb.Data == consts.CallbackTrainingPlan:
		return s.reply(ctx, cb.ChatID, lang, consts.StrTrainingPlan)
	case cb.Data == consts.CallbackRemindersList:
		return s.sendReminders(ctx, cb.ChatID, lang)
	case strings.HasPrefix(cb.Data, consts.CallbackReminderCancel):
		return s.cancelReminder(ctx, cb.ChatID, lang, strings.TrimPrefix(cb.Data, consts.CallbackReminderCancel))
	default:
		log.WithFields(log.Fields{"chat_id": cb.ChatID, "data": cb.Data}).Warnln("unknown callback data")
		return s.reply(ctx, cb.ChatID, lang, consts.StrUnknownCommand)
	}
}

func (s *Service) viewMemory(ctx context.Context, chatID int64, lang string) error {
	if s.Relay != nil {
		return s.ask(ctx, chatID, lang, i18n.Get(consts.StrMemoryQuestion, lang))
	}
	p := s.Memory.Get(chatID)
	unknown := i18n.Get(consts.StrToolUnknown, lang)
	name := p.Name
	if name == "" {
		name = unknown
	}
	offset := unknown
	if p.TimezoneOffset != nil {
		offset = reminder.FormatOffset(*p.TimezoneOffset)
	}
	return s.reply(ctx, chatID, lang, consts.StrToolMemory, name, offset, len(s.Scheduler.List(chatID)))
}

// Reset forgets the conversation, keeping the name and time zone.
func (s *Service) Reset(ctx context.Context, chatID int64, lang string) error {
	unlock := s.Memory.Lock(chatID)
	var err error
	if s.Relay != nil {
		err = s.Relay.Reset(ctx, chatID)
	} else {
		err = s.Memory.Clear(ctx, chatID)
	}
	unlock()
	if err != nil {
		return err
	}
	log.WithField("chat_id", chatID).Infoln("memory cleared")
	return s.reply(ctx, chatID, lang, consts.StrMemoryCleared)
}

// Forget drops everything stored for the chat. Scheduled reminders stay.
func (s *Service) Forget(ctx context.Context, chatID int64, lang string) error {
	unlock := s.Memory.Lock(chatID)
	err := s.Memory.Forget(ctx, chatID)
	unlock()
	if err != nil {
		return err
	}
	log.WithField("chat_id", chatID).Infoln("profile forgotten")
	return s.reply(ctx, chatID, lang, consts.StrForgotten)
}

func (s *Service) sendReminders(ctx context.Context, chatID int64, lang string) error {
	list := s.Scheduler.List(chatID)
	if len(list) == 0 {
		return s.reply(ctx, chatID, lang, consts.StrRemindersEmpty)
	}
	offset := s.Memory.Get(chatID).Offset()

	keyboard := make(Keyboard, 0, len(list))
	for _, r := range list {
		label := fmt.Sprintf("❌ %s %s", reminder.FormatClock(r.FireAt, offset), r.Text)
		if runes := []rune(label); len(runes) > maxButtonText {
			label = string(runes[:maxButtonText-1]) + "…"
		}
		keyboard = append(keyboard, []Button{{Text: label, Data: consts.CallbackReminderCancel + r.ID}})
	}
	text := i18n.Get(consts.StrRemindersHeader, lang) + "\n" + reminder.FormatList(list, offset)
	return s.Sender.Send(ctx, chatID, text, WithKeyboard(keyboard))
}

func (s *Service) cancelReminder(ctx context.Context, chatID int64, lang, id string) error {
	r, err := s.Scheduler.Cancel(ctx, chatID, id)
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		return s.reply(ctx, chatID, lang, consts.StrReminderNotFound)
	case err != nil:
		return err
	}
	return s.reply(ctx, chatID, lang, consts.StrReminderCanceled, r.Text)
}
