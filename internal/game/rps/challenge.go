package rps

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Challenge is an outstanding 1:1 wager offer that has not become a match yet.
type Challenge struct {
	ID             string
	GuildID        string
	ChannelID      string
	ChallengerID   string
	ChallengerName string
	OpponentID     string
	OpponentName   string
	Wager          int64
	CreatedAt      time.Time
}

type challengeEntry struct {
	challenge Challenge
	timer     Timer
}

// ChallengeRegistry holds pending challenges keyed by id, with an index by
// opponent for "challenges aimed at me" lookups. Entries expire after ttl.
type ChallengeRegistry struct {
	mu         sync.Mutex
	clock      Clock
	ttl        time.Duration
	byID       map[string]*challengeEntry
	byOpponent map[string]map[string]struct{}
	onExpire   func(Challenge)
}

// NewChallengeRegistry creates an empty registry.
func NewChallengeRegistry(clock Clock, ttl time.Duration) *ChallengeRegistry {
	return &ChallengeRegistry{
		clock:      clock,
		ttl:        ttl,
		byID:       make(map[string]*challengeEntry),
		byOpponent: make(map[string]map[string]struct{}),
	}
}

// OnExpire registers a hook invoked, outside the registry lock, for every
// challenge that expires unanswered.
func (r *ChallengeRegistry) OnExpire(fn func(Challenge)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

// Create stores c under a fresh id and schedules its expiry.
func (r *ChallengeRegistry) Create(c Challenge) Challenge {
	c.ID = uuid.NewString()
	c.CreatedAt = r.clock.Now()

	entry := &challengeEntry{challenge: c}

	r.mu.Lock()
	r.byID[c.ID] = entry
	set, ok := r.byOpponent[c.OpponentID]
	if !ok {
		set = make(map[string]struct{})
		r.byOpponent[c.OpponentID] = set
	}
	set[c.ID] = struct{}{}
	entry.timer = r.clock.AfterFunc(r.ttl, func() { r.expire(entry) })
	r.mu.Unlock()

	return c
}

func (r *ChallengeRegistry) expire(entry *challengeEntry) {
	r.mu.Lock()
	current, ok := r.byID[entry.challenge.ID]
	if !ok || current != entry {
		r.mu.Unlock()
		return
	}
	r.removeLocked(entry.challenge)
	hook := r.onExpire
	r.mu.Unlock()

	log.Debug().Str("challenge_id", entry.challenge.ID).Msg("Challenge expired")
	if hook != nil {
		hook(entry.challenge)
	}
}

// removeLocked deletes a challenge from both maps. Caller holds r.mu.
func (r *ChallengeRegistry) removeLocked(c Challenge) {
	delete(r.byID, c.ID)
	if set, ok := r.byOpponent[c.OpponentID]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(r.byOpponent, c.OpponentID)
		}
	}
}

// Get looks up a challenge without consuming it.
func (r *ChallengeRegistry) Get(id string) (Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byID[id]
	if !ok {
		return Challenge{}, false
	}
	return entry.challenge, true
}

// ListFor returns the challenges addressed to opponentID, oldest first.
func (r *ChallengeRegistry) ListFor(opponentID string) []Challenge {
	r.mu.Lock()
	set := r.byOpponent[opponentID]
	out := make([]Challenge, 0, len(set))
	for id := range set {
		out = append(out, r.byID[id].challenge)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Take removes and returns the challenge if userID is its opponent.
// A lookup by anyone else leaves the registry untouched.
func (r *ChallengeRegistry) Take(id, userID string) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[id]
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	if entry.challenge.OpponentID != userID {
		return Challenge{}, ErrNotChallengeTarget
	}
	entry.timer.Stop()
	r.removeLocked(entry.challenge)
	return entry.challenge, nil
}

// Len returns the number of pending challenges.
func (r *ChallengeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
