package db

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

// Manager owns at most one live adapter at a time and is the only
// component allowed to mutate it. Everything else goes through the
// delegation methods below, which presence-check the session and add
// no further logic.
type Manager struct {
	mu        sync.Mutex
	factories map[Engine]AdapterFactory
	adapter   Adapter
	server    string
	sessionID uuid.UUID
}

// NewManager creates a manager with no registered engines. Engine
// factories are registered at wiring time to keep adapter packages
// from importing this one.
func NewManager() *Manager {
	return &Manager{factories: make(map[Engine]AdapterFactory)}
}

// RegisterEngine registers an adapter factory for an engine tag.
func (m *Manager) RegisterEngine(engine Engine, factory AdapterFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[engine] = factory
}

// Connect establishes a new session. An existing session is
// disconnected first so the old pool is never leaked. On adapter
// failure the manager holds no partial session.
func (m *Manager) Connect(ctx context.Context, cfg ConnectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.adapter != nil {
		if err := m.adapter.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to close previous session before reconnect")
		}
		m.adapter = nil
		m.server = ""
	}

	factory, ok := m.factories[cfg.Engine]
	if !ok {
		return domain.UnsupportedEngine(string(cfg.Engine))
	}

	candidate := factory()
	if err := candidate.Connect(ctx, cfg); err != nil {
		return err
	}

	m.adapter = candidate
	// The hostname is recorded here because some engines lose it after
	// an internal reconnection.
	m.server = cfg.Host
	m.sessionID = uuid.New()

	log.Info().
		Str("session", m.sessionID.String()).
		Str("engine", string(cfg.Engine)).
		Str("server", cfg.Host).
		Str("database", candidate.CurrentDatabase()).
		Msg("database session established")
	return nil
}

// Disconnect tears down the active session. It is idempotent: with no
// live session it is a successful no-op. References are cleared even
// when the adapter's teardown fails, so the manager can never get
// stuck on a half-closed resource.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.adapter == nil {
		return nil
	}

	err := m.adapter.Disconnect(ctx)
	m.adapter = nil
	m.server = ""
	if err != nil {
		log.Warn().Err(err).Str("session", m.sessionID.String()).Msg("session teardown reported an error")
		return err
	}
	log.Info().Str("session", m.sessionID.String()).Msg("database session closed")
	return nil
}

// State returns the connection projection. It never fails.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.adapter == nil || !m.adapter.Connected() {
		return ConnectionState{}
	}
	return ConnectionState{
		Connected: true,
		Engine:    m.adapter.Engine(),
		Server:    m.server,
		Database:  m.adapter.CurrentDatabase(),
	}
}

// active returns the live adapter, covering engines that can silently
// drop a session by re-checking Connected.
func (m *Manager) active() (Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.adapter == nil || !m.adapter.Connected() {
		return nil, domain.NotConnected()
	}
	return m.adapter, nil
}

func (m *Manager) SwitchDatabase(ctx context.Context, name string) error {
	a, err := m.active()
	if err != nil {
		return err
	}
	return a.SwitchDatabase(ctx, name)
}

func (m *Manager) ListDatabases(ctx context.Context) ([]string, error) {
	a, err := m.active()
	if err != nil {
		return nil, err
	}
	return a.ListDatabases(ctx)
}

func (m *Manager) ListTables(ctx context.Context) ([]TableInfo, error) {
	a, err := m.active()
	if err != nil {
		return nil, err
	}
	return a.ListTables(ctx)
}

func (m *Manager) DescribeTable(ctx context.Context, table, schema string) ([]ColumnInfo, error) {
	a, err := m.active()
	if err != nil {
		return nil, err
	}
	return a.DescribeTable(ctx, table, schema)
}

func (m *Manager) ExecuteQuery(ctx context.Context, sql string, rowLimit int) (*QueryResult, error) {
	a, err := m.active()
	if err != nil {
		return nil, err
	}
	return a.ExecuteQuery(ctx, sql, rowLimit)
}
