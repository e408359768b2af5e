// Package bot turns incoming chat events into replies, reminders and LLM
// requests. It knows nothing about the Telegram wire format.
package bot

import (
	"context"
	"time"

	"github.com/iamwavecut/telegram-assistant-bot/internal/search"
)

type Message struct {
	UpdateID     int
	ChatID       int64
	UserID       int64
	Text         string
	LanguageCode string
	FirstName    string
	LastName     string
	Username     string
	ReceivedAt   time.Time
}

type Callback struct {
	ID           string
	ChatID       int64
	UserID       int64
	Data         string
	LanguageCode string
}

type ParseMode int

const (
	Markdown ParseMode = iota
	HTML
	Plain
)

type Button struct {
	Text string
	// Data is the callback payload; URL makes a link button instead.
	Data string
	URL  string
}

type Keyboard [][]Button

type SendOptions struct {
	ParseMode ParseMode
	Keyboard  Keyboard
}

type SendOption func(*SendOptions)

func WithKeyboard(k Keyboard) SendOption {
	return func(o *SendOptions) { o.Keyboard = k }
}

func WithParseMode(mode ParseMode) SendOption {
	return func(o *SendOptions) { o.ParseMode = mode }
}

func ApplySendOptions(opts ...SendOption) SendOptions {
	var o SendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Sender interface {
	Send(ctx context.Context, chatID int64, text string, opts ...SendOption) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	Typing(ctx context.Context, chatID int64) error
}

// Relay is an LLM conversation keyed by chat.
type Relay interface {
	Ask(ctx context.Context, chatID int64, text string) (string, error)
	Reset(ctx context.Context, chatID int64) error
}

type Searcher interface {
	Enabled() bool
	Search(ctx context.Context, query string) ([]search.Result, error)
}
