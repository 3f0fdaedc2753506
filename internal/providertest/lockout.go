package providertest

import (
	"sync"
	"time"
)

// DefaultMaxFailures is how many consecutive failed password proofs lock a user out.
const DefaultMaxFailures = 5

// DefaultLockoutDuration is how long a locked-out user is refused.
const DefaultLockoutDuration = time.Minute

// attemptTracker tracks failed password proofs for a single user.
type attemptTracker struct {
	count       int
	lockedUntil time.Time
}

// lockout refuses a user after too many consecutive failures, the way the
// provider answers "Password attempts exceeded".
type lockout struct {
	mu          sync.Mutex
	attempts    map[string]*attemptTracker // key: user sub
	maxFailures int
	duration    time.Duration
	now         func() time.Time
}

func newLockout(maxFailures int, duration time.Duration, now func() time.Time) *lockout {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return &lockout{
		attempts:    make(map[string]*attemptTracker),
		maxFailures: maxFailures,
		duration:    duration,
		now:         now,
	}
}

// locked reports whether the user is currently locked out.
func (l *lockout) locked(user string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	tracker, ok := l.attempts[user]
	return ok && l.now().Before(tracker.lockedUntil)
}

// recordFailure counts a failure and starts a lockout once the limit is reached.
func (l *lockout) recordFailure(user string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tracker, ok := l.attempts[user]
	if !ok {
		tracker = &attemptTracker{}
		l.attempts[user] = tracker
	}

	tracker.count++
	if tracker.count >= l.maxFailures {
		tracker.lockedUntil = l.now().Add(l.duration)
		tracker.count = 0
	}
}

// recordSuccess clears the user's failure count.
func (l *lockout) recordSuccess(user string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, user)
}
