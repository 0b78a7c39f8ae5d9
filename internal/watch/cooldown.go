package watch

import (
	"maps"

	"github.com/disgoorg/snowflake/v2"
)

// DefaultCooldownSeconds applies to users that never set a cooldown.
const DefaultCooldownSeconds int64 = 900

// Cooldowns holds the per-user minimum interval between live notifications.
type Cooldowns struct {
	seconds map[snowflake.ID]int64
}

// NewCooldowns creates an empty cooldown table.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{seconds: make(map[snowflake.ID]int64)}
}

// CooldownsFrom builds a table from user -> seconds pairs.
func CooldownsFrom(seconds map[snowflake.ID]int64) *Cooldowns {
	c := NewCooldowns()
	maps.Copy(c.seconds, seconds)
	return c
}

// Set stores the cooldown given in minutes and returns it in seconds.
func (c *Cooldowns) Set(userID snowflake.ID, minutes int64) int64 {
	c.seconds[userID] = minutes * 60
	return c.seconds[userID]
}

// Get returns the user's cooldown in seconds.
func (c *Cooldowns) Get(userID snowflake.ID) int64 {
	if s, ok := c.seconds[userID]; ok {
		return s
	}
	return DefaultCooldownSeconds
}

// Snapshot returns a copy of the table.
func (c *Cooldowns) Snapshot() map[snowflake.ID]int64 {
	return maps.Clone(c.seconds)
}
