package consts

const (
	StrHello = "Hi! Glad you're here. What's your name?"
	StrIntro = "I remember what you tell me, set reminders " +
		"(\"remind me in 5 minutes ...\", \"remind me at 18:30 ...\"), " +
		"search the web with /search and simply chat. Type /menu for more."
	StrTimeout = "I'm sorry, but this takes an unacceptable " +
		"duration of time to answer. Request aborted."
	StrNoPublic = "Unfortunately, I work terrible in groups, " +
		"as I was designed to be used in dialogues. " +
		"Please message me in private."
	StrSwitchToPrivate = "Switch to private chat"
	StrRequestError    = "Unfortunately, there was an error during the request. " +
		"Please try again later. If it doesn't help, " +
		"please contact the maintainer."
	StrNotUnderstood = "Sorry, I didn't understand the request."
	StrTooLong       = "Your message is too long, please make it shorter."

	StrNiceToMeet      = "Nice to meet you, %s!"
	StrYourNameIs      = "Your name is %s!"
	StrNameUnknown     = "I don't know your name yet."
	StrTimezoneSaved   = "Got it, I'll take your time zone into account."
	StrTimeFormat      = "Please specify the time as HH:MM"
	StrMemoryQuestion  = "What do you remember about me?"
	StrMemoryCleared   = "🗑 Memory cleared."
	StrForgotten       = "I've forgotten your name, time zone and our conversation."
	StrTrainingPlan    = "🏋️‍♀ Your training plan will be here."
	StrUnknownCommand  = "⚠️ Unknown menu command."
	StrMenu            = "📍 Main menu:"
	StrButtonMemory    = "📋 Memory"
	StrButtonClear     = "🗑 Clear memory"
	StrButtonTraining  = "🏋️‍♀ Training plan"
	StrButtonReminders = "🗓 My reminders"

	StrReminderIn        = "⏳ Reminder set in %d min: %s"
	StrReminderAt        = "Reminder set for %s — %s"
	StrReminderDefault   = "something important"
	StrReminderFire      = "⏰ Reminder: %s"
	StrReminderDuplicate = "This reminder is already scheduled."
	StrReminderError     = "❌ Failed to set the reminder."
	StrRemindersEmpty    = "🗓 You have no reminders."
	StrRemindersHeader   = "🗓 Your reminders:"
	StrReminderCanceled  = "Reminder canceled: %s"
	StrReminderNotFound  = "Reminder not found."

	StrSearchUsage    = "Please specify a query after the /search command"
	StrSearchNothing  = "⚠️ Nothing found for your query."
	StrSearchError    = "❌ Search failed."
	StrSearchDisabled = "Search is not configured."

	StrBusy      = "⚠️ Please wait, I'm still processing the previous request."
	StrRunFailed = "❌ Request failed."
	StrNoAnswer  = "⚠️ Couldn't get an answer from the assistant."

	StrToolReminderIn   = "Reminder set in %d minutes."
	StrToolReminderAt   = "Reminder set for %s."
	StrToolMissingQuery = "❌ Missing 'query' parameter."
	StrToolMemory       = "Name: %s. Time zone offset: %s. Pending reminders: %d."
	StrToolUnknown      = "unknown"
)
