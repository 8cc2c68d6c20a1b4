package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window is the log of allowed attempts for one key, oldest first.
type window struct {
	attempts []time.Time
}

// trim drops attempts older than the rule's window. An attempt exactly
// window old still counts, as in RedisStore.
func (w *window) trim(rule Rule, now time.Time) {
	threshold := now.Add(-rule.Window)
	drop := 0
	for drop < len(w.attempts) && w.attempts[drop].Before(threshold) {
		drop++
	}
	w.attempts = w.attempts[drop:]
}

// take records one attempt if fewer than rule.Limit fall inside the window.
func (w *window) take(rule Rule, now time.Time) Info {
	w.trim(rule, now)

	info := Info{Limit: rule.Limit, ResetTime: now.Add(rule.Window)}
	if len(w.attempts) > 0 {
		info.ResetTime = w.attempts[0].Add(rule.Window)
	}
	if len(w.attempts) >= rule.Limit {
		info.RetryAfter = max(info.ResetTime.Sub(now), 0)
		return info
	}

	w.attempts = append(w.attempts, now)
	info.Allowed = true
	info.Remaining = rule.Limit - len(w.attempts)
	return info
}

// MemoryStore keeps one sliding-window log per key in process memory. Idle
// keys are dropped by a background sweep until Stop is called.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	keepUntil map[string]time.Time

	idleTTL     time.Duration
	cleanupStop chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a store sweeping every cleanupInterval. A
// non-positive interval disables the sweep.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		windows:     make(map[string]*window),
		keepUntil:   make(map[string]time.Time),
		idleTTL:     time.Hour,
		cleanupStop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanup(cleanupInterval)
	}
	return s
}

// Take implements Store.
func (s *MemoryStore) Take(ctx context.Context, key string, rule Rule, now time.Time) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}
	s.keepUntil[key] = now.Add(max(rule.Window, s.idleTTL))
	return w.take(rule, now), nil
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.sweep(now)
		case <-s.cleanupStop:
			return
		}
	}
}

// sweep removes keys idle for idleTTL whose attempts have all aged out.
func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, until := range s.keepUntil {
		if until.Before(now) {
			delete(s.windows, key)
			delete(s.keepUntil, key)
		}
	}
}

// Stop ends the background sweep.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.cleanupStop) })
}
