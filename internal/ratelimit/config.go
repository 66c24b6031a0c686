package ratelimit

import "time"

// Limit bounds how many transfers one caller may submit per window.
// Zero values mean no limit.
type Limit struct {
	MaxTransfers int           `yaml:"max_transfers"`
	Window       time.Duration `yaml:"window"`
}

// Active reports whether l actually limits anything.
func (l *Limit) Active() bool {
	return l != nil && l.MaxTransfers > 0 && l.Window > 0
}

// Config maps caller accounts to their limits. The "*" entry applies to
// callers without their own.
type Config map[string]*Limit

// HasLimits returns true if any entry is active.
func (c Config) HasLimits() bool {
	for _, l := range c {
		if l.Active() {
			return true
		}
	}
	return false
}
