package rps

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"community-game-bot/internal/model"
)

// Match limits: best of three decided rounds.
const (
	MaxRounds  = 3
	WinsNeeded = 2
)

const (
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength      = 6
	idMaxAttempts = 100
)

// Kind distinguishes human-vs-human matches from matches against the AI.
type Kind int

const (
	KindPvP Kind = iota
	KindAI
)

func (k Kind) String() string {
	if k == KindAI {
		return model.MatchTypeAI
	}
	return model.MatchTypePvP
}

// Phase is the sub-state of a live match.
type Phase int

const (
	// PhaseAwaitingMove accepts a move from the side holding the turn.
	PhaseAwaitingMove Phase = iota
	// PhaseResolving is the short pause after a round before the next prompt.
	PhaseResolving
)

// Side is one participant of a match.
type Side struct {
	UserID string
	Name   string
	Wins   int
	move   Move
	moved  bool
}

func (s *Side) setMove(m Move) {
	s.move = m
	s.moved = true
}

func (s *Side) clearMove() {
	s.move = 0
	s.moved = false
}

// Match is the live state of one game. Sides[0] always moves first each
// round; in AI games Sides[1] is the automated opponent.
// All fields are guarded by the controller's per-match lock.
type Match struct {
	ID        string
	RecordID  int64
	Kind      Kind
	GuildID   string
	ChannelID string
	Wager     int64
	Sides     [2]Side
	Round     int
	Turn      int
	Phase     Phase
	CreatedAt time.Time
	Deadline  time.Time

	// The single scheduled action: countdown, delayed prompt or animation
	// tick. timerSeq invalidates callbacks that fired before a replacement.
	timer     Timer
	timerSeq  uint64
	slot      slotKind
	animFrame int
}

type slotKind int

const (
	slotIdle slotKind = iota
	slotCountdown
	slotDelay
	slotAnimation
)

func (k slotKind) String() string {
	switch k {
	case slotCountdown:
		return "countdown"
	case slotDelay:
		return "delay"
	case slotAnimation:
		return "animation"
	default:
		return "idle"
	}
}

func (m *Match) sideOf(userID string) int {
	for i := range m.Sides {
		if m.Sides[i].UserID == userID && !(m.Kind == KindAI && i == 1) {
			return i
		}
	}
	return -1
}

func (m *Match) wins() [2]int {
	return [2]int{m.Sides[0].Wins, m.Sides[1].Wins}
}

func (m *Match) resetMoves() {
	m.Sides[0].clearMove()
	m.Sides[1].clearMove()
	m.Turn = 0
}

// cancelTimer stops the scheduled action, if any, and invalidates a callback
// that already fired but has not acquired the match lock yet.
func (m *Match) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
	m.slot = slotIdle
}

// activeTimers counts scheduled handles attributable to the match.
func (m *Match) activeTimers() int {
	if m.timer != nil {
		return 1
	}
	return 0
}

// MatchRegistry stores live matches by their short code.
type MatchRegistry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	intN    func(n int) int
}

// NewMatchRegistry creates an empty registry.
func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{
		matches: make(map[string]*Match),
		intN:    rand.IntN,
	}
}

// Add assigns m a code unique among live matches and stores it.
func (r *MatchRegistry) Add(m *Match) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.newIDLocked()
	r.matches[m.ID] = m
	return m.ID
}

// newIDLocked draws random codes; after idMaxAttempts collisions it appends
// random digits until the code is free.
func (r *MatchRegistry) newIDLocked() string {
	var id string
	for attempt := 0; attempt < idMaxAttempts; attempt++ {
		id = r.randomCode()
		if _, taken := r.matches[id]; !taken {
			return id
		}
	}
	for {
		id += strconv.Itoa(r.intN(10))
		if _, taken := r.matches[id]; !taken {
			return id
		}
	}
}

func (r *MatchRegistry) randomCode() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[r.intN(len(idAlphabet))]
	}
	return string(b)
}

// SetRecord links a live match to its persisted record. The caller must hold
// the match lock, so RecordID is safe to read under either lock.
func (r *MatchRegistry) SetRecord(m *Match, recordID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.RecordID = recordID
}

// Get returns the live match with the given code.
func (r *MatchRegistry) Get(id string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	return m, ok
}

// Remove cancels the match's timers and drops it. The caller must hold the
// match lock.
func (r *MatchRegistry) Remove(id string) {
	r.mu.Lock()
	m, ok := r.matches[id]
	delete(r.matches, id)
	r.mu.Unlock()
	if ok {
		m.cancelTimer()
	}
}

// Len returns the number of live matches.
func (r *MatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// RecordIDs returns the persisted record ids of every live match.
func (r *MatchRegistry) RecordIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.matches))
	for _, m := range r.matches {
		if m.RecordID != 0 {
			ids = append(ids, m.RecordID)
		}
	}
	return ids
}
