package redis

import (
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/wordwatch/internal/setup/config"
	"go.uber.org/zap"
)

const (
	// DocumentsDBIndex stores the persisted watch lists, cooldowns and log.
	DocumentsDBIndex = 0

	// LeaseDBIndex holds the instance lease so flushing documents never drops it.
	LeaseDBIndex = 1
)

// Manager hands out one client per database index, connecting on first use.
type Manager struct {
	clients map[int]rueidis.Client
	config  *config.Redis
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewManager creates a Manager for the configured server.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		config:  config,
		logger:  logger.Named("redis"),
	}
}

// GetClient returns the client for a database index. Client-side caching is
// off because documents are only read once, at startup.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[dbIndex]; ok {
		return client, nil
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Username:     m.config.Username,
		Password:     m.config.Password,
		SelectDB:     dbIndex,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis %s db %d: %w", addr, dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Info("Connected to redis",
		zap.String("addr", addr),
		zap.Int("db", dbIndex))
	return client, nil
}

// Close closes every client. Later calls are no-ops.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		delete(m.clients, dbIndex)
		m.logger.Debug("Closed redis client", zap.Int("db", dbIndex))
	}
}
