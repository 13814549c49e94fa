package alarm

import (
	"fmt"
	"math"
	"sync"
)

// Countdown is a seconds timer advanced by the fast tick.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	running   bool
}

// Start (re)starts the countdown from seconds, floored.
func (c *Countdown) Start(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return fmt.Errorf("秒数を正しく入力")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = int(math.Floor(seconds))
	c.running = true
	return nil
}

// Stop halts the countdown, keeping the remaining time.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// Running reports whether the countdown is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Tick removes one second and reports whether the countdown just finished.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.running = false
		return true
	}
	return false
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Status renders the remaining time as MM:SS.
func (c *Countdown) Status() string {
	rem := c.Remaining()
	return fmt.Sprintf("%02d:%02d", rem/60, rem%60)
}
