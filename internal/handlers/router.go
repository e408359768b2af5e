package handlers

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
	"github.com/iamwavecut/telegram-assistant-bot/internal/infra"
)

const submitRetryInterval = 100 * time.Millisecond

type updateIDKey struct{}

func WithUpdateID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, updateIDKey{}, id)
}

func UpdateID(ctx context.Context) int {
	id, _ := ctx.Value(updateIDKey{}).(int)
	return id
}

func NewRouter(me *tg.User, service *bot.Service) *tgb.Router {
	mention := regexp.MustCompile("(?mi)(" + regexp.QuoteMeta(me.FirstName) +
		"|" + regexp.QuoteMeta(me.Username.PeerID()) + "|/start)")

	return tgb.NewRouter().
		Message(
			Start(service),
			tgb.Command("start", tgb.WithCommandAlias("help")),
			tgb.ChatType(tg.ChatTypePrivate),
		).
		Message(
			Reset(service),
			tgb.Command("reset"),
			tgb.ChatType(tg.ChatTypePrivate),
		).
		Message(
			Private(service),
			tgb.ChatType(tg.ChatTypePrivate),
		).
		Message(
			Public(me, service),
			tgb.ChatType(tg.ChatTypeGroup, tg.ChatTypeSupergroup),
			tgb.Regexp(mention),
		).
		CallbackQuery(Callback(service))
}

// Dispatcher feeds updates to the router on a keyed pool, one queue per chat.
type Dispatcher struct {
	// ctx outlives the webhook request that delivered the update.
	ctx    context.Context
	router tgb.Handler
	client *tg.Client
	pool   *infra.KeyedPool
}

func NewDispatcher(ctx context.Context, router tgb.Handler, client *tg.Client, pool *infra.KeyedPool) *Dispatcher {
	return &Dispatcher{ctx: ctx, router: router, client: client, pool: pool}
}

func (d *Dispatcher) Dispatch(update *tg.Update) error {
	return d.pool.Submit(ChatKey(update), func() {
		ctx := WithUpdateID(d.ctx, update.ID)
		if err := d.router.Handle(ctx, &tgb.Update{Update: update, Client: d.client}); err != nil {
			log.WithError(err).WithField("update_id", update.ID).Errorln("update handling failed")
		}
	})
}

// Handle lets the long poller share the pool with the webhook. The poller
// never redelivers an update, so a full queue is waited out here.
func (d *Dispatcher) Handle(ctx context.Context, update *tgb.Update) error {
	ticker := time.NewTicker(submitRetryInterval)
	defer ticker.Stop()
	for {
		err := d.Dispatch(update.Update)
		if !errors.Is(err, infra.ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-ticker.C:
		}
	}
}

// ChatKey picks the chat an update belongs to, so its updates stay ordered.
func ChatKey(update *tg.Update) int64 {
	switch {
	case update.Message != nil:
		return int64(update.Message.Chat.ID)
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message != nil {
			return int64(update.CallbackQuery.Message.Chat.ID)
		}
		return int64(update.CallbackQuery.From.ID)
	default:
		return int64(update.ID)
	}
}
