// Package intent routes free text to what the bot should do with it.
package intent

import (
	"regexp"
	"strings"

	"github.com/iamwavecut/telegram-assistant-bot/internal/reminder"
)

type Kind int

const (
	Relay Kind = iota
	Start
	Menu
	Reminders
	Search
	AskName
	SetName
	SetTimezone
	RemindIn
	RemindAt
	Forget
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Menu:
		return "menu"
	case Reminders:
		return "reminders"
	case Search:
		return "search"
	case AskName:
		return "ask_name"
	case SetName:
		return "set_name"
	case SetTimezone:
		return "set_timezone"
	case RemindIn:
		return "remind_in"
	case RemindAt:
		return "remind_at"
	case Forget:
		return "forget"
	default:
		return "relay"
	}
}

// Intent is a classified message. Arg holds the command argument, the name
// or the local clock, depending on Kind.
type Intent struct {
	Kind Kind
	Arg  string
}

var (
	reCommand  = regexp.MustCompile(`^/([a-zA-Z_]+)(?:@\w+)?(?:\s+(.*))?$`)
	reSetName  = regexp.MustCompile(`(?is)меня\s+зовут\s+(.+)`)
	reTimezone = regexp.MustCompile(`(?i)сейчас\s+у\s+меня\s+(\S+)`)
)

const askNamePhrase = "как меня зовут"

func Classify(text string) Intent {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	if m := reCommand.FindStringSubmatch(text); m != nil {
		arg := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "start", "help":
			return Intent{Kind: Start}
		case "menu":
			return Intent{Kind: Menu}
		case "reminders":
			return Intent{Kind: Reminders}
		case "search":
			return Intent{Kind: Search, Arg: arg}
		case "forget":
			return Intent{Kind: Forget}
		}
	}

	if strings.Contains(lower, askNamePhrase) {
		return Intent{Kind: AskName}
	}
	if m := reSetName.FindStringSubmatch(text); m != nil {
		if name := cleanName(m[1]); name != "" {
			return Intent{Kind: SetName, Arg: name}
		}
	}
	if m := reTimezone.FindStringSubmatch(text); m != nil {
		return Intent{Kind: SetTimezone, Arg: strings.TrimRight(m[1], ".,!?")}
	}
	if _, ok := reminder.ParseRelative(text); ok {
		return Intent{Kind: RemindIn}
	}
	if _, _, ok := reminder.ParseAbsolute(text); ok {
		return Intent{Kind: RemindAt}
	}
	return Intent{Kind: Relay}
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\n.,!?"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
