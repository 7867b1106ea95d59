package publish

import (
	"fmt"
	"sync"
	"time"

	"igclient/pkg/errors"
)

// commentGuard blocks reposting the same comment to the same media within
// a cooldown window. The guard is local and best-effort: it exists because
// a replayed comment request creates a visible duplicate the API will not
// deduplicate.
type commentGuard struct {
	mu      sync.Mutex
	window  time.Duration
	maxSize int
	entries map[string]time.Time
	now     func() time.Time
}

func newCommentGuard(window time.Duration, maxSize int) *commentGuard {
	if maxSize < 1 {
		maxSize = 1
	}
	return &commentGuard{
		window:  window,
		maxSize: maxSize,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// key identifies a comment attempt. Only a prefix of the text participates
// so trivial suffix edits do not bypass the guard.
func guardKey(mediaID, text string) string {
	if len(text) > 50 {
		text = text[:50]
	}
	return fmt.Sprintf("%s:%s", mediaID, text)
}

// acquire records the attempt, or rejects it when an identical one is still
// inside the cooldown window.
func (g *commentGuard) acquire(mediaID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	key := guardKey(mediaID, text)

	if posted, found := g.entries[key]; found && now.Sub(posted) < g.window {
		remaining := g.window - now.Sub(posted)
		return errors.Newf(errors.ErrorTypeGuardRejected,
			"identical comment posted %s ago, wait %s", now.Sub(posted).Round(time.Second), remaining.Round(time.Second))
	}

	g.evictLocked(now)
	g.entries[key] = now
	return nil
}

// release removes the attempt so a failed post can be retried immediately.
func (g *commentGuard) release(mediaID, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, guardKey(mediaID, text))
}

// evictLocked drops expired entries and, if the guard is still over
// capacity, the oldest live ones. Caller must hold the lock.
func (g *commentGuard) evictLocked(now time.Time) {
	for key, posted := range g.entries {
		if now.Sub(posted) >= g.window {
			delete(g.entries, key)
		}
	}
	for len(g.entries) >= g.maxSize {
		oldestKey := ""
		var oldest time.Time
		for key, posted := range g.entries {
			if oldestKey == "" || posted.Before(oldest) {
				oldestKey = key
				oldest = posted
			}
		}
		delete(g.entries, oldestKey)
	}
}
