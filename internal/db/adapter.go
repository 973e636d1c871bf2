package db

import (
	"context"
)

// Engine identifies a supported database engine. The set is closed:
// adding an engine means adding an adapter implementation and a factory
// registration, not a new string at a call site.
type Engine string

const (
	EngineMSSQL    Engine = "mssql"
	EnginePostgres Engine = "postgres"
)

// SSLConfig carries PostgreSQL transport-encryption options. A nil
// SSLConfig (or Enabled=false) disables TLS; Enabled without CA
// requires TLS against the server's certificate chain; a non-empty CA
// holds PEM material for a custom root.
type SSLConfig struct {
	Enabled bool   `json:"enabled"`
	CA      string `json:"ca,omitempty"`
}

// ConnectionConfig contains everything needed to establish a session.
// It is immutable once passed to Connect; adapters retain it so a
// database switch that requires full reconnection can be replayed with
// only the Database field overridden.
type ConnectionConfig struct {
	Engine   Engine `validate:"required,oneof=mssql postgres"`
	Host     string `validate:"required"`
	Port     int    `validate:"omitempty,min=1,max=65535"`
	Database string
	Username string
	Password string

	// SQL Server only: use integrated (Windows/domain) authentication
	// instead of username/password.
	WindowsAuth bool
	// SQL Server only: transport encryption and certificate trust.
	Encrypt                bool
	TrustServerCertificate bool

	// PostgreSQL only.
	SSL *SSLConfig
}

// WithDatabase returns a copy of the config pointed at another database.
func (c ConnectionConfig) WithDatabase(name string) ConnectionConfig {
	c.Database = name
	return c
}

// ConnectionState is a projection over the manager and its active
// adapter; it is never stored independently.
type ConnectionState struct {
	Connected bool   `json:"connected"`
	Engine    Engine `json:"engine,omitempty"`
	Server    string `json:"server,omitempty"`
	Database  string `json:"database,omitempty"`
}

// TableInfo describes one table or view from catalog metadata.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Kind   string `json:"kind"` // TABLE or VIEW
}

// ColumnInfo describes one column from catalog metadata. Snapshots are
// fetched on demand and never cached across calls.
type ColumnInfo struct {
	Name         string  `json:"name"`
	DataType     string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	MaxLength    *int64  `json:"maxLength,omitempty"`
	Precision    *int64  `json:"precision,omitempty"`
	Scale        *int64  `json:"scale,omitempty"`
	PrimaryKey   bool    `json:"isPrimaryKey"`
	DefaultValue *string `json:"defaultValue,omitempty"`
	Comment      string  `json:"comment,omitempty"`
}

// QueryResult represents both row-returning and non-row-returning
// statements uniformly: a write or DDL statement yields empty
// Columns/Rows with AffectedRows set when the engine reports it.
type QueryResult struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowCount     int      `json:"rowCount"`
	AffectedRows *int64   `json:"affectedRows,omitempty"`
}

// Adapter is the capability contract every engine variant implements.
// Every operation except Connect and Disconnect requires a live
// session and fails with domain.NotConnected otherwise.
type Adapter interface {
	// Engine returns the engine tag this adapter serves.
	Engine() Engine

	// Connected reports whether a session is live. Engines that can
	// silently drop a session report false here afterwards.
	Connected() bool

	// CurrentDatabase returns the active catalog, or "" when disconnected.
	CurrentDatabase() string

	// DefaultPort returns the engine's conventional port.
	DefaultPort() int

	// DefaultSchema returns the schema used when DescribeTable gets none.
	DefaultSchema() string

	// Connect establishes the session. On failure no half-open pool
	// remains and the error is a domain.ConnectionError.
	Connect(ctx context.Context, cfg ConnectionConfig) error

	// Disconnect releases all pooled resources and resets connection
	// state. Safe to call multiple times.
	Disconnect(ctx context.Context) error

	// SwitchDatabase changes the active catalog. SQL Server switches
	// within the live session; PostgreSQL tears the session down and
	// reconnects, invalidating server-side temporary state.
	SwitchDatabase(ctx context.Context, name string) error

	// ListDatabases returns the server's database names.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListTables returns tables and views of the current database.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// DescribeTable returns column metadata for a table, resolving an
	// empty schema to the engine default.
	DescribeTable(ctx context.Context, table, schema string) ([]ColumnInfo, error)

	// ExecuteQuery runs a statement, injecting a dialect row-limit
	// clause into unbounded SELECTs, and normalizes the result.
	ExecuteQuery(ctx context.Context, sql string, rowLimit int) (*QueryResult, error)
}

// AdapterFactory creates a fresh, disconnected adapter instance.
type AdapterFactory func() Adapter
