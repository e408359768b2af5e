package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/i18n"
	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reminder"
	"github.com/iamwavecut/telegram-assistant-bot/internal/search"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

const (
	ToolSetReminderDelay = "set_reminder_delay"
	ToolSetReminderTime  = "set_reminder_time"
	ToolGoogleSearch     = "google_search"
	ToolGetUserMemory    = "get_user_memory"
	ToolGetReminders     = "get_reminders_list"
)

var ErrUnknownTool = errors.New("unknown tool")

type ToolFunc func(ctx context.Context, chatID int64, args json.RawMessage) (string, error)

type Tools struct {
	mu       sync.RWMutex
	handlers map[string]ToolFunc
}

func NewTools() *Tools {
	return &Tools{handlers: map[string]ToolFunc{}}
}

func (t *Tools) Register(name string, fn ToolFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[name] = fn
}

func (t *Tools) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs every call and always yields one output per call. Failures
// are reported to the model as text so the run can go on.
func (t *Tools) Dispatch(ctx context.Context, chatID int64, calls []ToolCall) []ToolOutput {
	outputs := make([]ToolOutput, 0, len(calls))
	for _, call := range calls {
		logger := log.WithFields(log.Fields{"chat_id": chatID, "tool": call.Name, "tool_call_id": call.ID})

		t.mu.RLock()
		fn, ok := t.handlers[call.Name]
		t.mu.RUnlock()

		var (
			out string
			err error
		)
		if !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		} else {
			args := json.RawMessage(call.Arguments)
			if len(strings.TrimSpace(call.Arguments)) == 0 {
				args = json.RawMessage("{}")
			}
			out, err = fn(ctx, chatID, args)
		}
		if err != nil {
			logger.WithError(err).Warnln("tool call failed")
			out = "error: " + err.Error()
		} else {
			logger.Debugln("tool call done")
		}
		outputs = append(outputs, ToolOutput{ToolCallID: call.ID, Output: out})
	}
	return outputs
}

type ToolDeps struct {
	Scheduler *reminder.Scheduler
	Memory    *memory.Store
	Search    *search.Client
	Lang      string
	Now       func() time.Time
}

// RegisterDefaultTools wires the functions the hosted assistant is configured
// with.
func RegisterDefaultTools(t *Tools, deps ToolDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	tr := func(key string) string { return i18n.Get(key, deps.Lang) }

	t.Register(ToolSetReminderDelay, func(ctx context.Context, chatID int64, raw json.RawMessage) (string, error) {
		var args struct {
			DelayMinutes float64 `json:"delay_minutes"`
			ReminderText string  `json:"reminder_text"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
		if args.DelayMinutes > reminder.MaxDelay.Minutes() {
			return "", fmt.Errorf("delay_minutes is too large, got %v", args.DelayMinutes)
		}
		minutes := int(math.Round(args.DelayMinutes))
		if minutes <= 0 {
			return "", fmt.Errorf("delay_minutes must be positive, got %v", args.DelayMinutes)
		}
		text := tool.NonZero(strings.TrimSpace(args.ReminderText), tr(consts.StrReminderDefault))
		if _, err := deps.Scheduler.ScheduleIn(ctx, chatID, time.Duration(minutes)*time.Minute, text); err != nil && !errors.Is(err, reminder.ErrDuplicate) {
			return "", err
		}
		return fmt.Sprintf(tr(consts.StrToolReminderIn), minutes), nil
	})

	t.Register(ToolSetReminderTime, func(ctx context.Context, chatID int64, raw json.RawMessage) (string, error) {
		var args struct {
			ReminderText         string `json:"reminder_text"`
			ReminderTimeAbsolute string `json:"reminder_time_absolute"`
			UserLocalTime        string `json:"user_local_time"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
		now := deps.Now()
		delay, err := reminder.DelayUntilClock(args.UserLocalTime, args.ReminderTimeAbsolute)
		if err != nil {
			return "", err
		}
		if offset, err := reminder.OffsetFromLocal(now, args.UserLocalTime); err == nil {
			if _, err := deps.Memory.Update(ctx, chatID, func(p *memory.Profile) { p.TimezoneOffset = &offset }); err != nil {
				log.WithError(err).WithField("chat_id", chatID).Warnln("cant store timezone offset")
			}
		}
		text := tool.NonZero(strings.TrimSpace(args.ReminderText), tr(consts.StrReminderDefault))
		if _, err := deps.Scheduler.Schedule(ctx, chatID, now.Add(delay), text); err != nil && !errors.Is(err, reminder.ErrDuplicate) {
			return "", err
		}
		return fmt.Sprintf(tr(consts.StrToolReminderAt), args.ReminderTimeAbsolute), nil
	})

	t.Register(ToolGoogleSearch, func(ctx context.Context, _ int64, raw json.RawMessage) (string, error) {
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
		if strings.TrimSpace(args.Query) == "" {
			return tr(consts.StrToolMissingQuery), nil
		}
		results, err := deps.Search.Search(ctx, args.Query)
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			return tr(consts.StrSearchNothing), nil
		}
		return search.Format(results), nil
	})

	t.Register(ToolGetUserMemory, func(_ context.Context, chatID int64, _ json.RawMessage) (string, error) {
		p := deps.Memory.Get(chatID)
		name := tool.NonZero(strings.TrimSpace(p.Name), tr(consts.StrToolUnknown))
		offset := tr(consts.StrToolUnknown)
		if p.TimezoneOffset != nil {
			offset = reminder.FormatOffset(*p.TimezoneOffset)
		}
		return fmt.Sprintf(tr(consts.StrToolMemory), name, offset, len(deps.Scheduler.List(chatID))), nil
	})

	t.Register(ToolGetReminders, func(_ context.Context, chatID int64, _ json.RawMessage) (string, error) {
		list := deps.Scheduler.List(chatID)
		if len(list) == 0 {
			return tr(consts.StrRemindersEmpty), nil
		}
		offset := deps.Memory.Get(chatID).Offset()
		return reminder.FormatList(list, offset), nil
	})
}
