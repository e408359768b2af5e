package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/fsstore"
)

const (
	DefaultGrace = 30 * time.Second

	notifyTimeout = 30 * time.Second
)

var (
	ErrDuplicate = errors.New("reminder already scheduled")
	ErrInPast    = errors.New("reminder time is in the past")
	ErrNotFound  = errors.New("reminder not found")
	ErrStopped   = errors.New("scheduler stopped")
)

type Reminder struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Notifier func(ctx context.Context, r Reminder) error

type Options struct {
	// Path of the persisted job list; empty keeps reminders in memory only.
	Path   string
	Grace  time.Duration
	Now    func() time.Time
	Notify Notifier
}

type entry struct {
	Reminder
	timer *time.Timer
}

// Scheduler fires one-shot reminders. Every change is persisted before it
// takes effect, so pending reminders are replayed by Start after a restart.
// Delivery is at most once: a reminder is removed from disk before Notify runs.
type Scheduler struct {
	opts Options

	mu      sync.Mutex
	pending map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool

	persistMu sync.Mutex
	inflight  sync.WaitGroup
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		opts:    opts,
		pending: map[string]*entry{},
	}
}

// Start replays persisted reminders. Ones that missed their time by more than
// the grace period are dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	var stored []Reminder
	if s.opts.Path != "" {
		if _, err := fsstore.ReadJSON(s.opts.Path, &stored); err != nil {
			return fmt.Errorf("load reminders: %w", err)
		}
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.started = true

	now := s.opts.Now()
	var dropped int
	for _, r := range stored {
		if _, ok := s.pending[r.ID]; ok {
			continue
		}
		if now.After(r.FireAt.Add(s.opts.Grace)) {
			log.WithFields(log.Fields{
				"reminder_id": r.ID,
				"chat_id":     r.ChatID,
				"fire_at":     r.FireAt,
			}).Warnln("reminder missed its time, dropping")
			dropped++
			continue
		}
		s.pending[r.ID] = &entry{Reminder: r}
	}
	for _, e := range s.pending {
		if e.timer == nil {
			s.arm(e)
		}
	}
	restored := len(s.pending)
	s.mu.Unlock()

	log.WithFields(log.Fields{"restored": restored, "dropped": dropped}).Infoln("reminders loaded")
	if dropped > 0 {
		return s.persist(ctx)
	}
	return nil
}

func (s *Scheduler) ScheduleIn(ctx context.Context, chatID int64, d time.Duration, text string) (Reminder, error) {
	return s.Schedule(ctx, chatID, s.opts.Now().Add(d), text)
}

func (s *Scheduler) Schedule(ctx context.Context, chatID int64, fireAt time.Time, text string) (Reminder, error) {
	now := s.opts.Now()
	if fireAt.Before(now.Add(-s.opts.Grace)) {
		return Reminder{}, ErrInPast
	}
	r := Reminder{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Text:      text,
		FireAt:    fireAt.UTC().Truncate(time.Second),
		CreatedAt: now.UTC(),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return Reminder{}, ErrStopped
	}
	for _, e := range s.pending {
		if e.ChatID == r.ChatID && e.Text == r.Text && e.FireAt.Equal(r.FireAt) {
			s.mu.Unlock()
			return e.Reminder, ErrDuplicate
		}
	}
	e := &entry{Reminder: r}
	s.pending[r.ID] = e
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		s.mu.Lock()
		delete(s.pending, r.ID)
		s.mu.Unlock()
		return Reminder{}, err
	}

	s.mu.Lock()
	if s.started && !s.stopped && s.pending[r.ID] == e {
		s.arm(e)
	}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"reminder_id": r.ID,
		"chat_id":     r.ChatID,
		"fire_at":     r.FireAt,
	}).Infoln("reminder scheduled")
	return r, nil
}

func (s *Scheduler) List(chatID int64) []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.pending))
	for _, e := range s.pending {
		if e.ChatID == chatID {
			out = append(out, e.Reminder)
		}
	}
	s.mu.Unlock()
	sortReminders(out)
	return out
}

func (s *Scheduler) Cancel(ctx context.Context, chatID int64, id string) (Reminder, error) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if !ok || e.ChatID != chatID {
		s.mu.Unlock()
		return Reminder{}, ErrNotFound
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.pending, id)
	s.mu.Unlock()

	log.WithFields(log.Fields{"reminder_id": id, "chat_id": chatID}).Infoln("reminder canceled")
	return e.Reminder, s.persist(ctx)
}

// Stop disarms all timers and waits for deliveries in progress. Pending
// reminders stay on disk.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, e := range s.pending {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.inflight.Wait()
}

// arm must be called with s.mu held.
func (s *Scheduler) arm(e *entry) {
	delay := e.FireAt.Sub(s.opts.Now())
	if delay < 0 {
		delay = 0
	}
	id := e.ID
	e.timer = time.AfterFunc(delay, func() { s.fire(id) })
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	baseCtx := s.ctx
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	logger := log.WithFields(log.Fields{"reminder_id": id, "chat_id": e.ChatID})
	if err := s.persist(baseCtx); err != nil {
		logger.WithError(err).Errorln("cant persist fired reminder")
	}
	if s.opts.Notify == nil {
		return
	}

	ctx, cancel := context.WithTimeout(baseCtx, notifyTimeout)
	defer cancel()
	if err := s.opts.Notify(ctx, e.Reminder); err != nil {
		logger.WithError(err).Errorln("reminder delivery failed")
		return
	}
	logger.Infoln("reminder delivered")
}

func (s *Scheduler) persist(ctx context.Context) error {
	if s.opts.Path == "" {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	snapshot := make([]Reminder, 0, len(s.pending))
	for _, e := range s.pending {
		snapshot = append(snapshot, e.Reminder)
	}
	s.mu.Unlock()
	sortReminders(snapshot)

	if ctx == nil {
		ctx = context.Background()
	}
	err := fsstore.WithLock(ctx, s.opts.Path+".lck", func() error {
		return fsstore.WriteJSONAtomic(s.opts.Path, snapshot)
	})
	if err != nil {
		return fmt.Errorf("persist reminders: %w", err)
	}
	return nil
}

func sortReminders(rs []Reminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].FireAt.Equal(rs[j].FireAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].FireAt.Before(rs[j].FireAt)
	})
}
