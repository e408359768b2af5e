package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/i18n"
	"github.com/iamwavecut/telegram-assistant-bot/internal/intent"
	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reminder"
	"github.com/iamwavecut/telegram-assistant-bot/internal/search"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

type Deps struct {
	Sender    Sender
	Memory    *memory.Store
	Scheduler *reminder.Scheduler
	// Relay is nil when no LLM is configured.
	Relay  Relay
	Search Searcher
	// Lang is used when the user's client reports no language.
	Lang string
	// RelayParseMode is how relay answers are formatted.
	RelayParseMode ParseMode
	// HandleTimeout bounds the handling of one update.
	HandleTimeout time.Duration
	Now           func() time.Time
}

type Service struct {
	Deps
}

func New(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HandleTimeout <= 0 {
		deps.HandleTimeout = consts.DurationHandleTimeout
	}
	return &Service{Deps: deps}
}

// LangFor picks the catalog language for a Telegram language_code such as
// "ru" or "pt-br", falling back to the default.
func (s *Service) LangFor(code string) string {
	code = strings.ToLower(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if code == "" || !tool.In(code, i18n.GetLanguagesList()) {
		return s.Lang
	}
	return code
}

// HandleMessage reacts to one text message. Relay failures are returned so
// the caller can apologize; everything else is answered here.
func (s *Service) HandleMessage(ctx context.Context, msg Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = s.Now()
	}
	lang := s.LangFor(msg.LanguageCode)
	in := intent.Classify(text)

	log.WithFields(log.Fields{
		"update_id": msg.UpdateID,
		"chat_id":   msg.ChatID,
		"intent":    in.Kind,
	}).Debugln("message classified")

	switch in.Kind {
	case intent.Start:
		return s.Start(ctx, msg.ChatID, lang)
	case intent.Menu:
		return s.Sender.Send(ctx, msg.ChatID, i18n.Get(consts.StrMenu, lang), WithKeyboard(menuKeyboard(lang)))
	case intent.Reminders:
		return s.sendReminders(ctx, msg.ChatID, lang)
	case intent.Search:
		return s.search(ctx, msg.ChatID, lang, in.Arg)
	case intent.AskName:
		if name := s.Memory.Get(msg.ChatID).Name; name != "" {
			return s.reply(ctx, msg.ChatID, lang, consts.StrYourNameIs, name)
		}
		return s.reply(ctx, msg.ChatID, lang, consts.StrNameUnknown)
	case intent.SetName:
		if _, err := s.Memory.Update(ctx, msg.ChatID, func(p *memory.Profile) { p.Name = in.Arg }); err != nil {
			return err
		}
		return s.reply(ctx, msg.ChatID, lang, consts.StrNiceToMeet, in.Arg)
	case intent.SetTimezone:
		return s.setTimezone(ctx, msg, lang, in.Arg)
	case intent.RemindIn:
		return s.remindIn(ctx, msg, lang, text)
	case intent.RemindAt:
		return s.remindAt(ctx, msg, lang, text)
	case intent.Forget:
		return s.Forget(ctx, msg.ChatID, lang)
	default:
		return s.ask(ctx, msg.ChatID, lang, text)
	}
}

func (s *Service) Start(ctx context.Context, chatID int64, lang string) error {
	if err := s.reply(ctx, chatID, lang, consts.StrHello); err != nil {
		return err
	}
	return s.reply(ctx, chatID, lang, consts.StrIntro)
}

func (s *Service) setTimezone(ctx context.Context, msg Message, lang, local string) error {
	offset, err := reminder.OffsetFromLocal(msg.ReceivedAt, local)
	if err != nil {
		return s.reply(ctx, msg.ChatID, lang, consts.StrTimeFormat)
	}
	if _, err := s.Memory.Update(ctx, msg.ChatID, func(p *memory.Profile) { p.TimezoneOffset = &offset }); err != nil {
		return err
	}
	log.WithFields(log.Fields{"chat_id": msg.ChatID, "offset": offset}).Infoln("timezone stored")
	return s.reply(ctx, msg.ChatID, lang, consts.StrTimezoneSaved)
}

func (s *Service) remindIn(ctx context.Context, msg Message, lang, text string) error {
	delay, _ := reminder.ParseRelative(text)
	what := tool.NonZero(reminder.ExtractMessage(text), i18n.Get(consts.StrReminderDefault, lang))

	_, err := s.Scheduler.Schedule(ctx, msg.ChatID, msg.ReceivedAt.Add(delay), what)
	if err != nil {
		return s.scheduleFailed(ctx, msg.ChatID, lang, err)
	}
	return s.reply(ctx, msg.ChatID, lang, consts.StrReminderIn, int(delay/time.Minute), what)
}

func (s *Service) remindAt(ctx context.Context, msg Message, lang, text string) error {
	hour, minute, _ := reminder.ParseAbsolute(text)
	offset := s.Memory.Get(msg.ChatID).Offset()
	fireAt := reminder.ResolveAbsolute(msg.ReceivedAt, hour, minute, offset)
	what := tool.NonZero(reminder.ExtractMessage(text), i18n.Get(consts.StrReminderDefault, lang))

	_, err := s.Scheduler.Schedule(ctx, msg.ChatID, fireAt, what)
	if err != nil {
		return s.scheduleFailed(ctx, msg.ChatID, lang, err)
	}
	return s.reply(ctx, msg.ChatID, lang, consts.StrReminderAt, reminder.FormatClock(fireAt, offset), what)
}

func (s *Service) scheduleFailed(ctx context.Context, chatID int64, lang string, err error) error {
	if errors.Is(err, reminder.ErrDuplicate) {
		return s.reply(ctx, chatID, lang, consts.StrReminderDuplicate)
	}
	log.WithError(err).WithField("chat_id", chatID).Errorln("cant schedule reminder")
	return s.reply(ctx, chatID, lang, consts.StrReminderError)
}

func (s *Service) search(ctx context.Context, chatID int64, lang, query string) error {
	if query == "" {
		return s.reply(ctx, chatID, lang, consts.StrSearchUsage)
	}
	if s.Search == nil || !s.Search.Enabled() {
		return s.reply(ctx, chatID, lang, consts.StrSearchDisabled)
	}
	results, err := s.Search.Search(ctx, query)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Errorln("search failed")
		return s.reply(ctx, chatID, lang, consts.StrSearchError)
	}
	if len(results) == 0 {
		return s.reply(ctx, chatID, lang, consts.StrSearchNothing)
	}
	return s.Sender.Send(ctx, chatID, search.Format(results))
}

// ask relays text to the LLM while holding the chat lock.
func (s *Service) ask(ctx context.Context, chatID int64, lang, text string) error {
	if s.Relay == nil {
		return s.reply(ctx, chatID, lang, consts.StrNotUnderstood)
	}
	unlock := s.Memory.Lock(chatID)
	defer unlock()

	stopTyping := s.keepTyping(ctx, chatID)
	answer, err := s.Relay.Ask(ctx, chatID, text)
	stopTyping()
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return s.Sender.Send(ctx, chatID, answer, WithParseMode(s.RelayParseMode))
}

func (s *Service) keepTyping(ctx context.Context, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(consts.DurationTyping)
		defer ticker.Stop()
		for {
			if err := s.Sender.Typing(ctx, chatID); err != nil && ctx.Err() == nil {
				log.WithError(err).Traceln("typing action failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Service) reply(ctx context.Context, chatID int64, lang, key string, args ...any) error {
	text := i18n.Get(key, lang)
	if len(args) > 0 {
		text = fmt.Sprintf(text, args...)
	}
	return s.Sender.Send(ctx, chatID, text)
}

// ReminderNotifier delivers fired reminders through sender.
func ReminderNotifier(sender Sender, lang string) reminder.Notifier {
	return func(ctx context.Context, r reminder.Reminder) error {
		return sender.Send(ctx, r.ChatID, fmt.Sprintf(i18n.Get(consts.StrReminderFire, lang), r.Text))
	}
}
