// Package session keeps per-conversation state in memory: the selected model,
// the turn history and the active document.
package session

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a chat turn arrives while another one is still
// being processed for the same session.
var ErrBusy = errors.New("session is busy with another request")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending"`
	Failed    bool      `json:"failed,omitempty"`
}

// Document is the résumé currently attached to a session.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	Text     string `json:"-"`
	Analysis string `json:"analysis,omitempty"`
}

type Session struct {
	id string

	mu       sync.Mutex
	model    string
	history  []ChatTurn
	document *Document
	epoch    uint64
	busy     bool
}

// Snapshot is a copy of the session state. Epoch changes whenever history
// is reset.
type Snapshot struct {
	ID       string
	Model    string
	History  []ChatTurn
	Document *Document
	Epoch    uint64
}

func newSession(id, model string) *Session {
	return &Session{id: id, model: model}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:      s.id,
		Model:   s.model,
		History: append([]ChatTurn(nil), s.history...),
		Epoch:   s.epoch,
	}
	if s.document != nil {
		doc := *s.document
		snap.Document = &doc
	}
	return snap
}

// Acquire marks the session busy for one pass and returns its state at that
// moment. It fails with ErrBusy while another pass holds the session.
func (s *Session) Acquire() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return Snapshot{}, ErrBusy
	}
	s.busy = true
	return s.snapshotLocked(), nil
}

func (s *Session) Release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Seed restores prior turns into an empty history. It reports whether the
// turns were taken.
func (s *Session) Seed(epoch uint64, turns []ChatTurn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || len(s.history) > 0 || len(turns) == 0 {
		return false
	}
	for _, t := range turns {
		t.Pending = false
		s.history = append(s.history, t)
	}
	return true
}

// Append adds turns to the history unless it was reset since epoch. It
// returns the index of the first appended turn.
func (s *Session) Append(epoch uint64, turns ...ChatTurn) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return 0, false
	}
	idx := len(s.history)
	s.history = append(s.history, turns...)
	return idx, true
}

// Complete resolves the pending user turn at idx and appends the reply in
// one step.
func (s *Session) Complete(epoch uint64, idx int, reply ChatTurn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || idx < 0 || idx >= len(s.history) || !s.history[idx].Pending {
		return false
	}
	s.history[idx].Pending = false
	reply.Pending = false
	s.history = append(s.history, reply)
	return true
}

// Attach replaces the active document unless the session was reset since
// epoch.
func (s *Session) Attach(epoch uint64, doc Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.document = &doc
	return true
}

func (s *Session) reset(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model != "" {
		s.model = model
	}
	s.history = nil
	s.document = nil
	s.epoch++
}
