package consts

import (
	"time"
)

const (
	DurationRetryRequest = 2 * time.Second

	IntRetryAttempts = 3

	DurationTyping = 5 * time.Second

	DurationHandleTimeout = 3 * time.Minute
	// DurationHandleMargin is added on top of the LLM run timeout to leave
	// room for the reply and the apology.
	DurationHandleMargin = time.Minute

	DurationShutdown = 10 * time.Second
)

const (
	CallbackMemoryView     = "memory_view"
	CallbackMemoryClear    = "memory_clear"
	CallbackTrainingPlan   = "training_plan"
	CallbackRemindersList  = "reminders_list"
	CallbackReminderCancel = "reminder_cancel:"
)
