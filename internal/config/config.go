package config

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

const (
	ModeAuto      = "auto"
	ModeAssistant = "assistant"
	ModeChat      = "chat"
	ModeOff       = "off"
)

type Config struct {
	TelegramAPIToken string `env:"BOT_TOKEN,required"`
	OpenAIToken      string `env:"OPENAI_TOKEN"`
	AssistantID      string `env:"ASSISTANT_ID"`
	LLMMode          string `env:"LLM_MODE,default=auto"`
	ChatGPTVersion   string `env:"CHATGPT_VERSION,default=3"`
	DefaultLanguage  string `env:"LANG,default=ru"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`

	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	WebhookPath   string `env:"WEBHOOK_PATH,default=/webhook"`
	ListenAddr    string `env:"LISTEN_ADDR,default=:8080"`

	DataDir string `env:"DATA_DIR,default=data"`

	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GoogleCSEID  string `env:"GOOGLE_CSE_ID"`

	RunPollInterval time.Duration `env:"RUN_POLL_INTERVAL,default=1s"`
	RunTimeout      time.Duration `env:"RUN_TIMEOUT,default=2m"`
	Workers         int           `env:"WORKERS,default=8"`
	QueueSize       int           `env:"QUEUE_SIZE,default=64"`
	ReminderGrace   time.Duration `env:"REMINDER_GRACE,default=30s"`
	OpenAIRPM       int           `env:"OPENAI_RPM,default=60"`
}

var once sync.Once
var globalConfig = &Config{}

func Get() Config {
	once.Do(func() {
		_ = godotenv.Load()
		cfg := tool.MustReturn(Load(context.Background(), envconfig.OsLookuper()))
		globalConfig = cfg
	})
	return *globalConfig
}

func Load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, cfg, lookuper); err != nil {
		return nil, err
	}
	cfg.LLMMode = strings.ToLower(strings.TrimSpace(cfg.LLMMode))
	cfg.DefaultLanguage = strings.ToLower(cfg.DefaultLanguage)
	if i := strings.IndexAny(cfg.DefaultLanguage, "_."); i > 0 {
		// LANG may come as a POSIX locale, e.g. ru_RU.UTF-8
		cfg.DefaultLanguage = cfg.DefaultLanguage[:i]
	}
	if !strings.HasPrefix(cfg.WebhookPath, "/") {
		cfg.WebhookPath = "/" + cfg.WebhookPath
	}
	return cfg, nil
}

// Mode resolves LLM_MODE=auto against the configured credentials.
func (c Config) Mode() string {
	switch c.LLMMode {
	case ModeAssistant, ModeChat, ModeOff:
		if c.LLMMode != ModeOff && c.OpenAIToken == "" {
			return ModeOff
		}
		if c.LLMMode == ModeAssistant && c.AssistantID == "" {
			return ModeOff
		}
		return c.LLMMode
	}
	switch {
	case c.OpenAIToken == "":
		return ModeOff
	case c.AssistantID != "":
		return ModeAssistant
	default:
		return ModeChat
	}
}

// HandleTimeout bounds one update so the LLM run timeout fires first.
func (c Config) HandleTimeout() time.Duration {
	if c.RunTimeout <= 0 {
		return consts.DurationHandleTimeout
	}
	return c.RunTimeout + consts.DurationHandleMargin
}

func (c Config) SearchEnabled() bool {
	return c.GoogleAPIKey != "" && c.GoogleCSEID != ""
}
