// Package assistant relays a user's message to a hosted assistant thread,
// runs the functions it asks for and returns its final answer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/telegram-assistant-bot/internal/memory"
	"github.com/iamwavecut/telegram-assistant-bot/resources/consts"
)

var (
	ErrBusy       = errors.New("previous run is still active")
	ErrRunFailed  = errors.New("assistant run failed")
	ErrRunTimeout = errors.New("assistant run timed out")
	ErrNoAnswer   = errors.New("assistant returned no answer")
)

type Options struct {
	PollInterval  time.Duration
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Limiter throttles run creation; nil means unlimited.
	Limiter *rate.Limiter
}

type Relay struct {
	backend Backend
	tools   *Tools
	store   *memory.Store
	opts    Options
}

func NewRelay(backend Backend, tools *Tools, store *memory.Store, opts Options) *Relay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = consts.IntRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = consts.DurationRetryRequest
	}
	if tools == nil {
		tools = NewTools()
	}
	return &Relay{backend: backend, tools: tools, store: store, opts: opts}
}

// Ask posts text to the chat's thread and waits for the run to settle.
// Callers are expected to hold the chat lock of the memory store.
func (r *Relay) Ask(ctx context.Context, chatID int64, text string) (string, error) {
	logger := log.WithField("chat_id", chatID)

	threadID, err := r.thread(ctx, chatID)
	if err != nil {
		return "", err
	}
	logger = logger.WithField("thread_id", threadID)

	if err := r.settlePrevious(ctx, threadID); err != nil {
		return "", err
	}

	// Adding a message is not idempotent, so it is sent once.
	if err := r.backend.AddUserMessage(ctx, threadID, text); err != nil {
		return "", err
	}

	if r.opts.Limiter != nil {
		if err := r.opts.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	run, err := r.backend.CreateRun(ctx, threadID)
	if err != nil {
		return "", err
	}
	logger = logger.WithField("run_id", run.ID)
	logger.Debugln("run created")

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	run, err = r.await(runCtx, chatID, threadID, run)
	if err != nil {
		// A run left behind would keep the thread busy.
		if run.ID != "" {
			r.cancelRun(threadID, run.ID)
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			logger.Warnln("run timed out")
			return "", ErrRunTimeout
		}
		logger.WithError(err).Warnln("run abandoned")
		return "", err
	}

	switch run.Status {
	case openai.RunStatusCompleted:
	case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
		logger.WithField("status", run.Status).Warnln("run ended unsuccessfully")
		return "", fmt.Errorf("%w: %s", ErrRunFailed, run.Status)
	default:
		return "", fmt.Errorf("%w: unexpected status %s", ErrRunFailed, run.Status)
	}

	var answer string
	err = tool.RetryFunc(r.opts.RetryAttempts, r.opts.RetryDelay, func() (err error) {
		answer, err = r.backend.LatestAssistantText(ctx, threadID)
		return err
	})
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", ErrNoAnswer
	}
	return answer, nil
}

// Reset drops the chat's thread, the next Ask starts a fresh one.
func (r *Relay) Reset(ctx context.Context, chatID int64) error {
	return r.store.Clear(ctx, chatID)
}

func (r *Relay) thread(ctx context.Context, chatID int64) (string, error) {
	if id := r.store.Get(chatID).ThreadID; id != "" {
		return id, nil
	}
	var id string
	err := tool.RetryFunc(r.opts.RetryAttempts, r.opts.RetryDelay, func() (err error) {
		id, err = r.backend.CreateThread(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	if _, err := r.store.Update(ctx, chatID, func(p *memory.Profile) { p.ThreadID = id }); err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"chat_id": chatID, "thread_id": id}).Infoln("thread created")
	return id, nil
}

// settlePrevious refuses to start while the last run is working and cancels
// one left waiting for tool outputs.
func (r *Relay) settlePrevious(ctx context.Context, threadID string) error {
	var last *Run
	err := tool.RetryFunc(r.opts.RetryAttempts, r.opts.RetryDelay, func() (err error) {
		last, err = r.backend.LatestRun(ctx, threadID)
		return err
	})
	if err != nil {
		return err
	}
	if last == nil {
		return nil
	}
	switch last.Status {
	case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		return ErrBusy
	case openai.RunStatusRequiresAction:
		log.WithFields(log.Fields{"thread_id": threadID, "run_id": last.ID}).Warnln("cancelling abandoned run")
		if err := r.backend.CancelRun(ctx, threadID, last.ID); err != nil {
			log.WithError(err).Warnln("cant cancel abandoned run")
			return ErrBusy
		}
	}
	return nil
}

func (r *Relay) await(ctx context.Context, chatID int64, threadID string, run Run) (Run, error) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case openai.RunStatusCompleted, openai.RunStatusFailed,
			openai.RunStatusCancelled, openai.RunStatusExpired:
			return run, nil

		case openai.RunStatusRequiresAction:
			outputs := r.tools.Dispatch(ctx, chatID, run.ToolCalls)
			next, err := r.backend.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
			if err != nil {
				return run, err
			}
			run = next
			continue
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}

		var next Run
		err := tool.RetryFunc(r.opts.RetryAttempts, r.opts.RetryDelay, func() (err error) {
			next, err = r.backend.RetrieveRun(ctx, threadID, run.ID)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return run, ctx.Err()
			}
			return run, err
		}
		run = next
	}
}

func (r *Relay) cancelRun(threadID, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.backend.CancelRun(ctx, threadID, runID); err != nil {
		log.WithError(err).WithField("run_id", runID).Warnln("cant cancel run")
	}
}
