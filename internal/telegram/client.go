// Package telegram delivers bot replies through the Bot API.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mr-linch/go-tg"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
	"github.com/iamwavecut/telegram-assistant-bot/internal/html"
)

// MaxMessageLength is the Bot API limit for a single text message.
const MaxMessageLength = 4096

type Client struct {
	api *tg.Client
}

func New(api *tg.Client) *Client {
	return &Client{api: api}
}

func (c *Client) API() *tg.Client {
	return c.api
}

// Send delivers text in as many messages as the length limit requires; the
// keyboard goes with the last one. Text Telegram cannot parse is resent
// without formatting.
func (c *Client) Send(ctx context.Context, chatID int64, text string, opts ...bot.SendOption) error {
	o := bot.ApplySendOptions(opts...)
	chunks := Split(text, MaxMessageLength)
	for i, chunk := range chunks {
		var keyboard bot.Keyboard
		if i == len(chunks)-1 {
			keyboard = o.Keyboard
		}
		if err := c.send(ctx, chatID, chunk, o.ParseMode, keyboard); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, chatID int64, text string, mode bot.ParseMode, keyboard bot.Keyboard) error {
	err := c.sendMessage(ctx, chatID, text, mode, keyboard)
	if err == nil || mode == bot.Plain || !isParseError(err) {
		return err
	}
	log.WithError(err).WithField("chat_id", chatID).Debugln("formatting rejected, resending as plain text")
	if mode == bot.HTML {
		text = html.Plain(text)
	}
	return c.sendMessage(ctx, chatID, text, bot.Plain, keyboard)
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text string, mode bot.ParseMode, keyboard bot.Keyboard) error {
	call := c.api.SendMessage(tg.ChatID(chatID), text)
	switch mode {
	case bot.Markdown:
		call = call.ParseMode(tg.MD)
	case bot.HTML:
		call = call.ParseMode(tg.HTML)
	}
	if len(keyboard) > 0 {
		call = call.ReplyMarkup(Markup(keyboard))
	}
	if err := call.DoVoid(ctx); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	call := c.api.AnswerCallbackQuery(callbackID)
	if text != "" {
		call = call.Text(text)
	}
	if err := call.DoVoid(ctx); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

func (c *Client) Typing(ctx context.Context, chatID int64) error {
	return c.api.SendChatAction(tg.ChatID(chatID), tg.ChatActionTyping).DoVoid(ctx)
}

// SetWebhook points Telegram at url; updates will carry secret in the
// X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	call := c.api.SetWebhook(url)
	if secret != "" {
		call = call.SecretToken(secret)
	}
	if err := call.DoVoid(ctx); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	if err := c.api.DeleteWebhook().DoVoid(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func Markup(keyboard bot.Keyboard) tg.InlineKeyboardMarkup {
	rows := make([][]tg.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tg.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tg.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tg.NewInlineKeyboardButtonCallback(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tg.NewInlineKeyboardMarkup(rows...)
}

func isParseError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "parse entities") || strings.Contains(msg, "can't find end")
}

// Split cuts text into chunks of at most limit runes, preferring line breaks.
func Split(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
