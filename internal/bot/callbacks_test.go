package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

func (f *fixture) press(t *testing.T, data string) error {
	t.Helper()
	return f.service.HandleCallback(context.Background(), Callback{ID: "cb-" + data, ChatID: 10, UserID: 10, Data: data})
}

func TestHandleCallback_AnswersFirst(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.press(t, "garbage"))
	assert.Equal(t, []string{"cb-garbage"}, f.sender.answered)
	assert.Equal(t, consts.StrUnknownCommand, f.sender.last().Text)
}

func TestHandleCallback_TrainingPlan(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.press(t, consts.CallbackTrainingPlan))
	assert.Equal(t, consts.StrTrainingPlan, f.sender.last().Text)
}

func TestHandleCallback_MemoryViewAsksRelay(t *testing.T) {
	relay := &fakeRelay{answer: "Ты Анна"}
	f := newFixture(t, relay, nil)
	require.NoError(t, f.press(t, consts.CallbackMemoryView))
	assert.Equal(t, []string{consts.StrMemoryQuestion}, relay.asked)
	assert.Equal(t, "Ты Анна", f.sender.last().Text)
}

func TestHandleCallback_MemoryViewWithoutRelay(t *testing.T) {
	f := newFixture(t, nil, nil)
	offset := -300
	_, err := f.store.Update(context.Background(), 10, func(p *memory.Profile) {
		p.Name = "Ann"
		p.TimezoneOffset = &offset
	})
	require.NoError(t, err)

	require.NoError(t, f.press(t, consts.CallbackMemoryView))
	assert.Equal(t, fmt.Sprintf(consts.StrToolMemory, "Ann", "UTC-05:00", 0), f.sender.last().Text)
}

func TestHandleCallback_MemoryClear(t *testing.T) {
	t.Run("with relay", func(t *testing.T) {
		relay := &fakeRelay{}
		f := newFixture(t, relay, nil)
		require.NoError(t, f.press(t, consts.CallbackMemoryClear))
		assert.Equal(t, 1, relay.resets)
		assert.Equal(t, consts.StrMemoryCleared, f.sender.last().Text)
	})
	t.Run("without relay", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		_, err := f.store.Update(context.Background(), 10, func(p *memory.Profile) {
			p.Name = "Ann"
			p.ThreadID = "thread"
		})
		require.NoError(t, err)

		require.NoError(t, f.press(t, consts.CallbackMemoryClear))
		p := f.store.Get(10)
		assert.Empty(t, p.ThreadID)
		assert.Equal(t, "Ann", p.Name)
	})
}

func TestHandleCallback_RemindersListAndCancel(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.NoError(t, f.press(t, consts.CallbackRemindersList))
	assert.Equal(t, consts.StrRemindersEmpty, f.sender.last().Text)

	ctx := context.Background()
	water, err := f.scheduler.Schedule(ctx, 10, testNow.Add(time.Hour), "вода")
	require.NoError(t, err)
	_, err = f.scheduler.Schedule(ctx, 10, testNow.Add(2*time.Hour), strings.Repeat("очень длинный текст ", 5))
	require.NoError(t, err)

	require.NoError(t, f.press(t, consts.CallbackRemindersList))
	list := f.sender.last()
	assert.True(t, strings.HasPrefix(list.Text, consts.StrRemindersHeader+"\n1. 10.03 13:00 — вода\n2."))
	require.Len(t, list.Opts.Keyboard, 2)
	assert.Equal(t, "❌ 13:00 вода", list.Opts.Keyboard[0][0].Text)
	assert.Equal(t, consts.CallbackReminderCancel+water.ID, list.Opts.Keyboard[0][0].Data)
	assert.LessOrEqual(t, len([]rune(list.Opts.Keyboard[1][0].Text)), maxButtonText)

	require.NoError(t, f.press(t, consts.CallbackReminderCancel+water.ID))
	assert.Equal(t, fmt.Sprintf(consts.StrReminderCanceled, "вода"), f.sender.last().Text)
	assert.Len(t, f.scheduler.List(10), 1)

	require.NoError(t, f.press(t, consts.CallbackReminderCancel+water.ID))
	assert.Equal(t, consts.StrReminderNotFound, f.sender.last().Text)
}
