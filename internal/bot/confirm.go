package bot

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/wordwatch/internal/bot/constants"
)

type waiter struct {
	author snowflake.ID
	answer chan bool
}

// confirmations tracks prompts waiting for a reaction from their author.
type confirmations struct {
	mu      sync.Mutex
	waiters map[snowflake.ID]waiter
}

func newConfirmations() *confirmations {
	return &confirmations{waiters: make(map[snowflake.ID]waiter)}
}

// register starts waiting for author to react to the prompt message.
func (c *confirmations) register(messageID, author snowflake.ID) <-chan bool {
	answer := make(chan bool, 1)
	c.mu.Lock()
	c.waiters[messageID] = waiter{author: author, answer: answer}
	c.mu.Unlock()
	return answer
}

// cancel stops waiting on a prompt.
func (c *confirmations) cancel(messageID snowflake.ID) {
	c.mu.Lock()
	delete(c.waiters, messageID)
	c.mu.Unlock()
}

// resolve answers a prompt when its author reacts with the confirm or cancel emoji.
// Other users and other emoji are ignored. It reports whether a prompt was answered.
func (c *confirmations) resolve(messageID, user snowflake.ID, emoji string) bool {
	var confirmed bool
	switch emoji {
	case constants.ConfirmEmoji:
		confirmed = true
	case constants.CancelEmoji:
	default:
		return false
	}

	c.mu.Lock()
	w, ok := c.waiters[messageID]
	if ok && w.author == user {
		delete(c.waiters, messageID)
	}
	c.mu.Unlock()

	if !ok || w.author != user {
		return false
	}
	w.answer <- confirmed
	return true
}
