package matcher

// CachedPatterns returns the number of compiled keyword patterns held.
func (m *Matcher) CachedPatterns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.patterns)
}
