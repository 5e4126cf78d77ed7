// Package session owns per-user conversation state: a bounded turn history
// and an optional backend chat handle.
package session

import (
	"hash/fnv"
	"strings"
	"sync"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// NoHistorySentinel is returned by FormatHistory when a user has no turns.
// In history mode it is sent to the backend verbatim as the first prompt.
const NoHistorySentinel = "No conversation history."

const shardCount = 16

// Turn is one message in a session's history. Immutable once appended.
type Turn struct {
	Role Role
	Text string
}

type session struct {
	turns  []Turn
	handle any
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// Store is a sharded per-user session map. Sessions live for the process
// lifetime and are dropped only by Reset. Shard locks make individual
// operations safe; ordering of operations for one user is the caller's
// responsibility (the dispatcher serializes per user).
type Store struct {
	shards [shardCount]*shard
	// depth is the retained exchange-pair count; 0 keeps no history.
	depth int
}

// NewStore creates a Store retaining at most depth exchange pairs per user.
func NewStore(depth int) *Store {
	if depth < 0 {
		depth = 0
	}
	s := &Store{depth: depth}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*session)}
	}
	return s
}

// Depth returns the configured exchange-pair bound.
func (s *Store) Depth() int {
	return s.depth
}

func (s *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%shardCount]
}

func (sh *shard) getOrCreate(userID string) *session {
	sess, ok := sh.sessions[userID]
	if !ok {
		sess = &session{}
		sh.sessions[userID] = sess
	}
	return sess
}

// Session is a point-in-time view of one user's state.
type Session struct {
	Turns  []Turn
	Handle any
}

// GetOrCreate ensures a session exists for the user and returns a snapshot
// of it. Always succeeds.
func (s *Store) GetOrCreate(userID string) Session {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess := sh.getOrCreate(userID)
	turns := make([]Turn, len(sess.turns))
	copy(turns, sess.turns)
	return Session{Turns: turns, Handle: sess.handle}
}

// Reset removes the user's session entirely, history and backend handle
// both. No-op when the user has no session.
func (s *Store) Reset(userID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, userID)
}

// AppendTurn records a turn and trims the oldest exchange pairs once the
// bound is exceeded. Pairs are evicted together so a model turn never
// leads the history without its user turn.
func (s *Store) AppendTurn(userID string, role Role, text string) {
	if s.depth == 0 {
		return
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess := sh.getOrCreate(userID)
	sess.turns = append(sess.turns, Turn{Role: role, Text: text})

	maxTurns := s.depth * 2
	for len(sess.turns) > maxTurns {
		evict := 2
		if evict > len(sess.turns) {
			evict = len(sess.turns)
		}
		sess.turns = sess.turns[evict:]
	}
}

// Turns returns a copy of the user's history in insertion order.
func (s *Store) Turns(userID string) []Turn {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// FormatHistory renders the user's turns as a prompt: "<role>: <text>" per
// turn, blank line between turns. Returns NoHistorySentinel when empty.
func (s *Store) FormatHistory(userID string) string {
	turns := s.Turns(userID)
	if len(turns) == 0 {
		return NoHistorySentinel
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, string(turn.Role)+": "+turn.Text)
	}
	return strings.Join(lines, "\n\n")
}

// Handle returns the user's backend chat handle, or nil.
func (s *Store) Handle(userID string) any {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[userID]
	if !ok {
		return nil
	}
	return sess.handle
}

// SetHandle stores the user's backend chat handle, creating the session if
// needed.
func (s *Store) SetHandle(userID string, handle any) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.getOrCreate(userID).handle = handle
}

// Count returns the number of live sessions across all shards.
func (s *Store) Count() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}
