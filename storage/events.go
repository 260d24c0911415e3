package storage

// CapacityListener receives the Manager's capacity lifecycle events. A
// farmer.Negotiator subscribes to track has_free_space (see
// farmer.Negotiator's capacity tracking rule in SPEC_FULL.md §4.2).
type CapacityListener interface {
	// Locked is called when the manager determines it has no more room to
	// accept shards.
	Locked()
	// Unlocked is called when room becomes available again.
	Unlocked()
	// StorageError is called when a size/capacity check itself fails. It is
	// not a locked/unlocked transition: farmer.Negotiator only logs it and
	// leaves its has_free_space state unchanged.
	StorageError(error)
}

func (m *Manager) notifyLocked() {
	for _, l := range m.listeners {
		l.Locked()
	}
}

func (m *Manager) notifyUnlocked() {
	for _, l := range m.listeners {
		l.Unlocked()
	}
}

func (m *Manager) notifyError(err error) {
	for _, l := range m.listeners {
		l.StorageError(err)
	}
}

// Subscribe registers a CapacityListener for future lock/unlock/error
// events. It does not replay the current state; callers should call Size
// themselves if they need to know the starting capacity.
func (m *Manager) Subscribe(l CapacityListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}
