package service

import (
	"sync"
	"time"
)

// Clock es la fuente de "ahora". Se inyecta para tests deterministas.
type Clock interface {
	Now() time.Time
}

// SystemClock devuelve la hora real en UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FakeClock es un reloj manual para tests y simulaciones.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance mueve el reloj hacia adelante.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func orSystemClock(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
