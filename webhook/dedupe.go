package webhook

import "sync"

// recentSet remembers the last max keys, evicting the oldest first
type recentSet struct {
	mu    sync.Mutex
	max   int
	seen  map[string]struct{}
	order []string
	next  int
}

func newRecentSet(max int) *recentSet {
	return &recentSet{
		max:   max,
		seen:  make(map[string]struct{}, max),
		order: make([]string, 0, max),
	}
}

// add records key and reports whether it was new
func (s *recentSet) add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	if len(s.order) < s.max {
		s.order = append(s.order, key)
	} else {
		delete(s.seen, s.order[s.next])
		s.order[s.next] = key
		s.next = (s.next + 1) % s.max
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *recentSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
