package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/telegram-assistant-bot/internal/assistant"
	"github.com/iamwavecut/telegram-assistant-bot/internal/chat"
	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reminder"
	"github.com/iamwavecut/telegram-assistant-bot/internal/search"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

type sent struct {
	ChatID int64
	Text   string
	Opts   SendOptions
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sent
	answered []string
	typing   int
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string, opts ...SendOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sent{ChatID: chatID, Text: text, Opts: ApplySendOptions(opts...)})
	return nil
}

func (f *fakeSender) AnswerCallback(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeSender) Typing(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeSender) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

type fakeRelay struct {
	asked  []string
	answer string
	err    error
	resets int
}

func (f *fakeRelay) Ask(_ context.Context, _ int64, text string) (string, error) {
	f.asked = append(f.asked, text)
	return f.answer, f.err
}

func (f *fakeRelay) Reset(context.Context, int64) error {
	f.resets++
	return nil
}

type fakeSearcher struct {
	results []search.Result
	err     error
	query   string
}

func (f *fakeSearcher) Enabled() bool { return true }

func (f *fakeSearcher) Search(_ context.Context, q string) ([]search.Result, error) {
	f.query = q
	return f.results, f.err
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service   *Service
	sender    *fakeSender
	store     *memory.Store
	scheduler *reminder.Scheduler
}

func newFixture(t *testing.T, relay Relay, searcher Searcher) *fixture {
	t.Helper()
	store, err := memory.Open("")
	require.NoError(t, err)
	clock := func() time.Time { return testNow }
	scheduler := reminder.NewScheduler(reminder.Options{Now: clock})
	sender := &fakeSender{}
	service := New(Deps{
		Sender:    sender,
		Memory:    store,
		Scheduler: scheduler,
		Relay:     relay,
		Search:    searcher,
		Lang:      "en",
		Now:       clock,
	})
	return &fixture{service: service, sender: sender, store: store, scheduler: scheduler}
}

func (f *fixture) say(t *testing.T, text string) error {
	t.Helper()
	return f.service.HandleMessage(context.Background(), Message{ChatID: 10, UserID: 10, Text: text, ReceivedAt: testNow})
}

func TestHandleMessage_EmptyTextHasNoSideEffects(t *testing.T) {
	relay := &fakeRelay{answer: "x"}
	f := newFixture(t, relay, nil)

	require.NoError(t, f.say(t, ""))
	require.NoError(t, f.say(t, "   \n"))

	assert.Empty(t, f.sender.texts())
	assert.Empty(t, relay.asked)
	assert.Empty(t, f.scheduler.List(10))
	assert.Equal(t, memory.Profile{}, f.store.Get(10))
}

func TestHandleMessage_RelativeReminder(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.say(t, "напомни через 5 минут выпить воды"))

	list := f.scheduler.List(10)
	require.Len(t, list, 1)
	assert.Equal(t, testNow.Add(5*time.Minute), list[0].FireAt)
	assert.Equal(t, "выпить воды", list[0].Text)
	assert.Equal(t, []string{fmt.Sprintf(consts.StrReminderIn, 5, "выпить воды")}, f.sender.texts())

	require.NoError(t, f.say(t, "напомни через 5 минут выпить воды"))
	assert.Equal(t, consts.StrReminderDuplicate, f.sender.last().Text)
	assert.Len(t, f.scheduler.List(10), 1)
}

func TestHandleMessage_ReminderDefaultText(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.say(t, "через 2 часа"))
	list := f.scheduler.List(10)
	require.Len(t, list, 1)
	assert.Equal(t, consts.StrReminderDefault, list[0].Text)
	assert.Equal(t, testNow.Add(2*time.Hour), list[0].FireAt)
}

func TestHandleMessage_AbsoluteReminderUsesTimezone(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.NoError(t, f.say(t, "сейчас у меня 15:00"))
	assert.Equal(t, consts.StrTimezoneSaved, f.sender.last().Text)
	assert.Equal(t, 180, f.store.Get(10).Offset())

	require.NoError(t, f.say(t, "напомни в 18:30 позвонить маме"))
	list := f.scheduler.List(10)
	require.Len(t, list, 1)
	assert.Equal(t, time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC), list[0].FireAt)
	assert.Equal(t, fmt.Sprintf(consts.StrReminderAt, "18:30", "позвонить маме"), f.sender.last().Text)
}

func TestHandleMessage_BadTimezone(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.say(t, "сейчас у меня обед"))
	assert.Equal(t, consts.StrTimeFormat, f.sender.last().Text)
	assert.Nil(t, f.store.Get(10).TimezoneOffset)
}

func TestHandleMessage_Name(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.NoError(t, f.say(t, "как меня зовут?"))
	assert.Equal(t, consts.StrNameUnknown, f.sender.last().Text)

	require.NoError(t, f.say(t, "Меня зовут Анна"))
	assert.Equal(t, fmt.Sprintf(consts.StrNiceToMeet, "Анна"), f.sender.last().Text)

	require.NoError(t, f.say(t, "Как меня зовут?"))
	assert.Equal(t, fmt.Sprintf(consts.StrYourNameIs, "Анна"), f.sender.last().Text)
}

func TestHandleMessage_Forget(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.say(t, "Меня зовут Анна"))
	require.NoError(t, f.say(t, "сейчас у меня 15:00"))
	require.NoError(t, f.say(t, "напомни через 5 минут выпить воды"))

	require.NoError(t, f.say(t, "/forget"))
	assert.Equal(t, consts.StrForgotten, f.sender.last().Text)
	assert.Equal(t, memory.Profile{}, f.store.Get(10))
	assert.Len(t, f.scheduler.List(10), 1)

	require.NoError(t, f.say(t, "как меня зовут?"))
	assert.Equal(t, consts.StrNameUnknown, f.sender.last().Text)
}

func TestService_LangFor(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Equal(t, "ru", f.service.LangFor("ru"))
	assert.Equal(t, "ru", f.service.LangFor("RU"))
	assert.Equal(t, "en", f.service.LangFor("en-GB"))
	assert.Equal(t, "en", f.service.LangFor("de"), "languages without a catalog use the default")
	assert.Equal(t, "en", f.service.LangFor(""))
}

func TestHandleMessage_StartAndMenu(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.NoError(t, f.say(t, "/start"))
	assert.Equal(t, []string{consts.StrHello, consts.StrIntro}, f.sender.texts())

	require.NoError(t, f.say(t, "/menu"))
	menu := f.sender.last()
	assert.Equal(t, consts.StrMenu, menu.Text)
	require.Len(t, menu.Opts.Keyboard, 2)
	assert.Equal(t, consts.CallbackMemoryView, menu.Opts.Keyboard[0][0].Data)
	assert.Equal(t, consts.CallbackRemindersList, menu.Opts.Keyboard[1][1].Data)
}

func TestHandleMessage_Search(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{{Title: "Go", Link: "https://go.dev", Snippet: "lang"}}}
	f := newFixture(t, nil, searcher)

	require.NoError(t, f.say(t, "/search"))
	assert.Equal(t, consts.StrSearchUsage, f.sender.last().Text)

	require.NoError(t, f.say(t, "/search golang"))
	assert.Equal(t, "golang", searcher.query)
	assert.Equal(t, "*Go*\nlang\nhttps://go.dev", f.sender.last().Text)

	searcher.results = nil
	require.NoError(t, f.say(t, "/search nothing"))
	assert.Equal(t, consts.StrSearchNothing, f.sender.last().Text)

	searcher.err = errors.New("quota")
	require.NoError(t, f.say(t, "/search again"))
	assert.Equal(t, consts.StrSearchError, f.sender.last().Text)
}

func TestHandleMessage_SearchDisabled(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.say(t, "/search golang"))
	assert.Equal(t, consts.StrSearchDisabled, f.sender.last().Text)
}

func TestHandleMessage_Relay(t *testing.T) {
	relay := &fakeRelay{answer: "<b>ответ</b>"}
	f := newFixture(t, relay, nil)
	f.service.RelayParseMode = HTML

	require.NoError(t, f.say(t, "расскажи анекдот"))
	assert.Equal(t, []string{"расскажи анекдот"}, relay.asked)
	last := f.sender.last()
	assert.Equal(t, "<b>ответ</b>", last.Text)
	assert.Equal(t, HTML, last.Opts.ParseMode)
	assert.GreaterOrEqual(t, f.sender.typing, 1)
}

func TestHandleMessage_RelayErrorIsReturned(t *testing.T) {
	relay := &fakeRelay{err: assistant.ErrBusy}
	f := newFixture(t, relay, nil)

	err := f.say(t, "привет")
	require.ErrorIs(t, err, assistant.ErrBusy)
	assert.Empty(t, f.sender.texts())
}

func TestHandleMessage_NoRelay(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.say(t, "расскажи анекдот"))
	assert.Equal(t, consts.StrNotUnderstood, f.sender.last().Text)
}

func TestApology(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("relay: %w", assistant.ErrBusy), consts.StrBusy},
		{assistant.ErrRunTimeout, consts.StrTimeout},
		{context.DeadlineExceeded, consts.StrTimeout},
		{fmt.Errorf("%w: failed", assistant.ErrRunFailed), consts.StrRunFailed},
		{assistant.ErrNoAnswer, consts.StrNoAnswer},
		{chat.ErrNoAnswer, consts.StrNoAnswer},
		{chat.ErrTooLongUserMessage, consts.StrTooLong},
		{errors.New("boom"), consts.StrRequestError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, Apology(tc.err, "en"))
		})
	}
	assert.Equal(t, "⚠️ Пожалуйста, подождите, я ещё обрабатываю предыдущий запрос.", Apology(assistant.ErrBusy, "ru"))
}

func TestReminderNotifier(t *testing.T) {
	sender := &fakeSender{}
	notify := ReminderNotifier(sender, "ru")
	require.NoError(t, notify(context.Background(), reminder.Reminder{ChatID: 3, Text: "вода"}))
	assert.Equal(t, sent{ChatID: 3, Text: "⏰ Напоминание: вода"}, sender.last())
}
