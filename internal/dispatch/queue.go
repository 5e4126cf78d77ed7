package dispatch

import "sync"

// userQueue holds pending work for one user. Work runs in arrival order on
// a single goroutine at a time.
type userQueue struct {
	pending []func()
}

// queueSet serializes work per key while keeping keys independent.
// Enqueue never blocks, so adapter event loops hand off and return. An
// entry lives only while its drain goroutine does, so the map is bounded
// by users with in-flight work rather than every user ever seen.
type queueSet struct {
	mu     sync.Mutex
	queues map[string]*userQueue
}

func newQueueSet() *queueSet {
	return &queueSet{queues: make(map[string]*userQueue)}
}

func (s *queueSet) enqueue(key string, fn func()) {
	s.mu.Lock()
	q, ok := s.queues[key]
	if !ok {
		q = &userQueue{}
		s.queues[key] = q
	}
	q.pending = append(q.pending, fn)
	s.mu.Unlock()

	if !ok {
		go s.drain(key, q)
	}
}

func (s *queueSet) drain(key string, q *userQueue) {
	for {
		s.mu.Lock()
		if len(q.pending) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		s.mu.Unlock()

		fn()
	}
}

func (s *queueSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
