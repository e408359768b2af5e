package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/mr-linch/go-tg"
	"github.com/mr-linch/go-tg/tgb"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/telegram-assistant-bot/internal/assistant"
	"github.com/iamwavecut/telegram-assistant-bot/internal/bot"
	"github.com/iamwavecut/telegram-assistant-bot/internal/chat"
	"github.com/iamwavecut/telegram-assistant-bot/internal/config"
	"github.com/iamwavecut/telegram-assistant-bot/internal/handlers"
	"github.com/iamwavecut/telegram-assistant-bot/internal/infra"
	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reminder"
	"github.com/iamwavecut/telegram-assistant-bot/internal/search"
	"github.com/iamwavecut/telegram-assistant-bot/internal/telegram"
	"github.com/iamwavecut/telegram-assistant-bot/internal/webhook"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

func main() {
	ctx := context.Background()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Get()
	config.SetupLogging(cfg.LogLevel)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg)
	}()

	select {
	case err := <-done:
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	case <-infra.MonitorExecutable(ctx):
		log.Errorln("executable file was modified")
		cancel()
		<-done
	}
}

func run(ctx context.Context, cfg config.Config) error {
	client := tg.New(cfg.TelegramAPIToken)
	me, err := client.GetMe().Do(ctx)
	if err != nil {
		return fmt.Errorf("get me: %w", err)
	}
	sender := telegram.New(client)

	tool.Must(os.MkdirAll(cfg.DataDir, 0o750))
	store, err := memory.Open(filepath.Join(cfg.DataDir, "memory.json"))
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}

	scheduler := reminder.NewScheduler(reminder.Options{
		Path:   filepath.Join(cfg.DataDir, "reminders.json"),
		Grace:  cfg.ReminderGrace,
		Notify: bot.ReminderNotifier(sender, cfg.DefaultLanguage),
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer scheduler.Stop()

	searcher := search.New(cfg.GoogleAPIKey, cfg.GoogleCSEID)

	deps := bot.Deps{
		Sender:        sender,
		Memory:        store,
		Scheduler:     scheduler,
		Search:        searcher,
		Lang:          cfg.DefaultLanguage,
		HandleTimeout: cfg.HandleTimeout(),
	}
	mode := cfg.Mode()
	switch mode {
	case config.ModeAssistant:
		tools := assistant.NewTools()
		assistant.RegisterDefaultTools(tools, assistant.ToolDeps{
			Scheduler: scheduler,
			Memory:    store,
			Search:    searcher,
			Lang:      cfg.DefaultLanguage,
		})
		backend := assistant.NewOpenAIBackend(openai.NewClient(cfg.OpenAIToken), cfg.AssistantID)
		deps.Relay = assistant.NewRelay(backend, tools, store, assistant.Options{
			PollInterval: cfg.RunPollInterval,
			Timeout:      cfg.RunTimeout,
			Limiter:      limiter(cfg.OpenAIRPM),
		})
		deps.RelayParseMode = bot.Markdown
		log.WithField("tools", tools.Names()).Debugln("assistant tools registered")
	case config.ModeChat:
		deps.Relay = chat.New(openai.NewClient(cfg.OpenAIToken), store, chat.Options{
			BotName: me.FirstName,
			Lang:    cfg.DefaultLanguage,
			Version: cfg.ChatGPTVersion,
			Limiter: limiter(cfg.OpenAIRPM),
		})
		deps.RelayParseMode = bot.HTML
	}
	log.WithFields(log.Fields{
		"mode":   mode,
		"search": searcher.Enabled(),
		"bot":    me.Username.PeerID(),
	}).Infoln("starting")

	service := bot.New(deps)
	router := handlers.NewRouter(&me, service)

	pool := infra.NewKeyedPool(cfg.Workers, cfg.QueueSize)
	defer pool.Close()
	dispatcher := handlers.NewDispatcher(ctx, router, client, pool)

	if cfg.WebhookURL == "" {
		if err := sender.DeleteWebhook(ctx); err != nil {
			log.WithError(err).Warnln("cant delete webhook")
		}
		err := tgb.NewPoller(
			dispatcher,
			client,
			tgb.WithPollerRetryAfter(time.Minute),
		).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	server := webhook.New(webhook.Options{
		Addr:   cfg.ListenAddr,
		Path:   cfg.WebhookPath,
		Secret: cfg.WebhookSecret,
	}, dispatcher)
	err = tool.RetryFunc(consts.IntRetryAttempts, consts.DurationRetryRequest, func() error {
		return sender.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret)
	})
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return server.Run(ctx)
}

func limiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}
