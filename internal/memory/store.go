// Package memory keeps per-chat session state: the hosted thread id, the
// facts the user told the bot and the chat-mode history.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/telegram-assistant-bot/internal/fsstore"
	"github.com/iamwavecut/telegram-assistant-bot/internal/reg"
)

const MaxHistoryTurns = 20

type Turn struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type Profile struct {
	Name           string    `json:"name,omitempty"`
	TimezoneOffset *int      `json:"timezone_offset,omitempty"`
	ThreadID       string    `json:"thread_id,omitempty"`
	History        []Turn    `json:"history,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Offset returns the stored local−UTC offset in minutes, zero when unknown.
func (p Profile) Offset() int {
	if p.TimezoneOffset == nil {
		return 0
	}
	return *p.TimezoneOffset
}

func (p Profile) clone() Profile {
	out := p
	if p.TimezoneOffset != nil {
		v := *p.TimezoneOffset
		out.TimezoneOffset = &v
	}
	if p.History != nil {
		out.History = append([]Turn(nil), p.History...)
	}
	return out
}

type Store struct {
	path     string
	lockPath string
	now      func() time.Time

	mu       sync.RWMutex
	profiles map[int64]*Profile

	persistMu sync.Mutex
	chats     *reg.KeyedMutex[int64]
}

// Open loads the store from path. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	s := &Store{
		path:     path,
		now:      time.Now,
		profiles: map[int64]*Profile{},
		chats:    reg.NewKeyedMutex[int64](),
	}
	if path == "" {
		return s, nil
	}
	s.lockPath = path + ".lck"
	if _, err := fsstore.ReadJSON(path, &s.profiles); err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	if s.profiles == nil {
		s.profiles = map[int64]*Profile{}
	}
	log.WithField("profiles", len(s.profiles)).Debugln("memory loaded")
	return s, nil
}

// Lock serializes a whole conversation turn for chatID.
func (s *Store) Lock(chatID int64) (unlock func()) {
	return s.chats.Lock(chatID)
}

func (s *Store) Get(chatID int64) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[chatID]; ok {
		return p.clone()
	}
	return Profile{}
}

func (s *Store) Update(ctx context.Context, chatID int64, fn func(p *Profile)) (Profile, error) {
	s.mu.Lock()
	p, ok := s.profiles[chatID]
	if !ok {
		p = &Profile{}
		s.profiles[chatID] = p
	}
	fn(p)
	if len(p.History) > MaxHistoryTurns {
		p.History = append([]Turn(nil), p.History[len(p.History)-MaxHistoryTurns:]...)
	}
	p.UpdatedAt = s.now().UTC()
	out := p.clone()
	s.mu.Unlock()

	return out, s.persist(ctx)
}

// Clear forgets the conversation but keeps what the user told about themselves.
func (s *Store) Clear(ctx context.Context, chatID int64) error {
	_, err := s.Update(ctx, chatID, func(p *Profile) {
		p.ThreadID = ""
		p.History = nil
	})
	return err
}

func (s *Store) Forget(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	delete(s.profiles, chatID)
	s.mu.Unlock()
	return s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[int64]Profile, len(s.profiles))
	for id, p := range s.profiles {
		snapshot[id] = p.clone()
	}
	s.mu.RUnlock()

	return fsstore.WithLock(ctx, s.lockPath, func() error {
		return fsstore.WriteJSONAtomic(s.path, snapshot)
	})
}
