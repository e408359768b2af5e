// Package chat answers with plain chat completions, keeping a token-bounded
// per-chat history. It serves when no hosted assistant is configured.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	t "github.com/alexsergivan/transliterator"
	"github.com/iamwavecut/tool"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/telegram-assistant-bot/internal/html"
	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reg"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

const (
	openAIMaxTokens        = 1900 // 2048, but we need to leave some for the metadata
	openAITemperature      = 1
	openAITopP             = 0.1
	openAIN                = 1
	openAIPresencePenalty  = 0.2
	openAIFrequencyPenalty = 0.2

	openaiMaxNameLen = 64
)

var (
	ErrTooLongUserMessage = errors.New("too long message")
	ErrNoAnswer           = errors.New("no answer")

	nameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	names  = reg.New[string, string]()
)

type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Options struct {
	BotName string
	Lang    string
	// Version "4" selects GPT-4, anything else GPT-3.5.
	Version string
	Limiter *rate.Limiter
}

type Relay struct {
	client Completer
	store  *memory.Store
	opts   Options
}

func New(client Completer, store *memory.Store, opts Options) *Relay {
	return &Relay{client: client, store: store, opts: opts}
}

// Ask sends text with as much history as fits the token budget and returns
// the sanitized Telegram HTML answer.
func (r *Relay) Ask(ctx context.Context, chatID int64, text string) (string, error) {
	profile := r.store.Get(chatID)
	userName := sanitizeName(tool.NonZero(profile.Name, fmt.Sprintf("user%d", chatID)))
	instruction := r.instruction(userName)

	sumOfTokens := getTokensLength(instruction.Content) + getTokensLength(text)
	if sumOfTokens > openAIMaxTokens {
		return "", ErrTooLongUserMessage
	}

	history := trimHistory(profile.History, openAIMaxTokens-sumOfTokens)
	userTurn := memory.Turn{Role: openai.ChatMessageRoleUser, Name: userName, Content: text}
	history = append(history, userTurn)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, instruction)
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Name:    turn.Name,
			Content: turn.Content,
		})
	}

	if r.opts.Limiter != nil {
		if err := r.opts.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	var resp openai.ChatCompletionResponse
	err := tool.RetryFunc(consts.IntRetryAttempts, consts.DurationRetryRequest, func() (err error) {
		resp, err = r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:            r.model(),
			Messages:         messages,
			MaxTokens:        openAIMaxTokens,
			Temperature:      openAITemperature,
			TopP:             openAITopP,
			N:                openAIN,
			PresencePenalty:  openAIPresencePenalty,
			FrequencyPenalty: openAIFrequencyPenalty,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoAnswer
	}

	answer, err := html.SanitizeTelegram(resp.Choices[0].Message.Content)
	if err != nil {
		return "", fmt.Errorf("sanitize answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", ErrNoAnswer
	}

	_, err = r.store.Update(ctx, chatID, func(p *memory.Profile) {
		p.History = append(history, memory.Turn{
			Role:    openai.ChatMessageRoleAssistant,
			Name:    sanitizeName(r.opts.BotName),
			Content: answer,
		})
	})
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warnln("cant store chat history")
	}
	log.WithFields(log.Fields{"chat_id": chatID, "prompt_tokens": sumOfTokens}).Debugln("chat answered")
	return answer, nil
}

func (r *Relay) Reset(ctx context.Context, chatID int64) error {
	return r.store.Clear(ctx, chatID)
}

func (r *Relay) model() string {
	if r.opts.Version == "4" {
		return openai.GPT4
	}
	return openai.GPT3Dot5Turbo
}

func (r *Relay) instruction(userName string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem,
		Content: "Instruction:\n" +
			"You're AI assistant. Your name is " + sanitizeName(r.opts.BotName) + ". \n" +
			"You're chatting in an online chat with a human named " + userName +
			`, who's language code is "` + r.opts.Lang + `". \n` +
			"You should reply with valid Telegram HTML markup every time. " +
			"Use STRICTLY ONLY allowed tags, which are:\n" +
			"<b>, <i>, <u>, <s>, <code>, <pre>, <tg-spoiler>hidden text</tg-spoiler>.\n" +
			"All other HTML tags are forbidden. All <, > and & symbols that are not a part of a tag or an HTML entity " +
			"must be replaced with the corresponding HTML entities (< with &lt;, > with &gt; and & with &amp;).\n" +
			"Use naked newline instead of <br> tag.\n" +
			"Don't explain yourself. Do not introduce yourself, just answer the user concisely.\n\n",
	}
}

// trimHistory drops the oldest turns until the rest fits into budget tokens.
func trimHistory(history []memory.Turn, budget int) []memory.Turn {
	offset := 0
	for offset < len(history) {
		if calculateHistoryLength(history[offset:]) < budget {
			break
		}
		offset++
	}
	return append([]memory.Turn(nil), history[offset:]...)
}

func calculateHistoryLength(turns []memory.Turn) int {
	var sumOfTokens int
	for _, turn := range turns {
		sumOfTokens += getTokensLength(turn.Content)
	}
	return sumOfTokens
}

var encoder = sync.OnceValue(func() tokenizer.Codec {
	return tool.MustReturn(tokenizer.Get(tokenizer.Cl100kBase))
})

func getTokensLength(s string) int {
	tokenIds, _, err := encoder().Encode(s)
	tool.Try(err, true)
	return len(tokenIds)
}

func sanitizeName(name string) string {
	if cached, ok := names.Lookup(name); ok {
		return cached
	}
	clean := t.NewTransliterator(nil).Transliterate(strings.ToLower(name), "en")
	clean = nameRe.ReplaceAllString(clean, "")
	if len(clean) > openaiMaxNameLen {
		clean = clean[:openaiMaxNameLen]
	}
	names.Set(name, clean)
	return clean
}
