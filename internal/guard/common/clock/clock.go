package clock

import (
	"sync"
	"time"
)

// Clock is the time source shared by every evaluation path. Decisions are
// always taken against an explicit instant, so tests can pin it.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a settable Clock. It is safe for concurrent use so it can be
// shared between a test and background workers such as the rebuild trigger.
type MockClock struct {
	mu          sync.RWMutex
	CurrentTime time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CurrentTime
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.CurrentTime = c.CurrentTime.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.CurrentTime = t
	c.mu.Unlock()
}
