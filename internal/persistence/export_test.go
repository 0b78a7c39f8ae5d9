package persistence

import "context"

// ScheduledSave runs the body of one Run tick.
func (m *Manager) ScheduledSave(ctx context.Context) { m.scheduledSave(ctx) }
