package postgres

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NakiriYuuzu/sql-mcp/internal/db"
	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

const (
	connectTimeout = 30 * time.Second
	queryTimeout   = 30 * time.Second
)

// Adapter implements db.Adapter for PostgreSQL. The wire protocol binds
// a session to one catalog for its lifetime, so SwitchDatabase performs
// a full reconnect using the retained config.
type Adapter struct {
	pool     *pgxpool.Pool
	cfg      db.ConnectionConfig
	database string
}

// New creates a disconnected PostgreSQL adapter.
func New() db.Adapter {
	return &Adapter{}
}

func (a *Adapter) Engine() db.Engine       { return db.EnginePostgres }
func (a *Adapter) Connected() bool         { return a.pool != nil }
func (a *Adapter) CurrentDatabase() string { return a.database }
func (a *Adapter) DefaultPort() int        { return 5432 }
func (a *Adapter) DefaultSchema() string   { return "public" }

func buildDSN(cfg db.ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	database := cfg.Database
	if database == "" {
		database = "postgres"
	}

	sslmode := "disable"
	if cfg.SSL != nil && cfg.SSL.Enabled {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": []string{sslmode}}.Encode(),
	}
	return u.String()
}

// Connect establishes the pool and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context, cfg db.ConnectionConfig) error {
	poolConfig, err := pgxpool.ParseConfig(buildDSN(cfg))
	if err != nil {
		return domain.ConnectionError("invalid PostgreSQL connection config", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	if cfg.SSL != nil && cfg.SSL.Enabled && cfg.SSL.CA != "" {
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM([]byte(cfg.SSL.CA)) {
			return domain.ConnectionError("invalid CA certificate material", nil)
		}
		poolConfig.ConnConfig.TLSConfig = &tls.Config{
			RootCAs:    roots,
			ServerName: cfg.Host,
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return domain.ConnectionError("failed to create PostgreSQL pool", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return domain.ConnectionError("failed to connect to PostgreSQL", err)
	}

	a.pool = pool
	a.cfg = cfg
	a.database = poolConfig.ConnConfig.Database
	return nil
}

// Disconnect closes the pool and resets connection state. Safe to call
// multiple times.
func (a *Adapter) Disconnect(context.Context) error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	a.database = ""
	a.cfg = db.ConnectionConfig{}
	return nil
}

func (a *Adapter) ensureConnected() error {
	if a.pool == nil {
		return domain.NotConnected()
	}
	return nil
}

// SwitchDatabase reconnects against the named catalog by replaying the
// retained config with only the database replaced. The previous session
// handle becomes invalid and any server-side temporary state is lost.
func (a *Adapter) SwitchDatabase(ctx context.Context, name string) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}
	clean, err := db.SanitizeIdentifier(name)
	if err != nil {
		return err
	}

	cfg := a.cfg.WithDatabase(clean)
	if err := a.Disconnect(ctx); err != nil {
		return err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return domain.ConnectionError(fmt.Sprintf("failed to reconnect to database %q", clean), err)
	}
	return nil
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := a.pool.Query(opCtx,
		`SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`)
	if err != nil {
		return nil, domain.QueryError("failed to list databases", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.QueryError("failed to scan database name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.QueryError("failed to list databases", err)
	}
	return names, nil
}

func (a *Adapter) ListTables(ctx context.Context) ([]db.TableInfo, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := a.pool.Query(opCtx, `
		SELECT table_schema, table_name,
		       CASE table_type WHEN 'VIEW' THEN 'VIEW' ELSE 'TABLE' END
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, domain.QueryError("failed to list tables", err)
	}
	defer rows.Close()

	var tables []db.TableInfo
	for rows.Next() {
		var t db.TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.Kind); err != nil {
			return nil, domain.QueryError("failed to scan table info", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.QueryError("failed to list tables", err)
	}
	return tables, nil
}

// DescribeTable reads column metadata from information_schema.
// Primary-key membership joins key_column_usage with table_constraints
// because no catalog view exposes it as a per-column flag.
func (a *Adapter) DescribeTable(ctx context.Context, table, schema string) ([]db.ColumnInfo, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}
	if schema == "" {
		schema = a.DefaultSchema()
	}
	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := a.pool.Query(opCtx, `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable = 'YES',
		       c.character_maximum_length,
		       c.numeric_precision,
		       c.numeric_scale,
		       c.column_default,
		       COALESCE(
		           (SELECT true
		            FROM information_schema.key_column_usage kcu
		            JOIN information_schema.table_constraints tc
		              ON kcu.constraint_name = tc.constraint_name
		             AND kcu.table_schema = tc.table_schema
		            WHERE tc.constraint_type = 'PRIMARY KEY'
		              AND kcu.table_schema = c.table_schema
		              AND kcu.table_name = c.table_name
		              AND kcu.column_name = c.column_name
		            LIMIT 1), false),
		       COALESCE(col_description(
		           format('%I.%I', c.table_schema, c.table_name)::regclass::oid,
		           c.ordinal_position), '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schema, table)
	if err != nil {
		return nil, domain.QueryError(fmt.Sprintf("failed to describe table %q", table), err)
	}
	defer rows.Close()

	var columns []db.ColumnInfo
	for rows.Next() {
		var col db.ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.MaxLength,
			&col.Precision, &col.Scale, &col.DefaultValue, &col.PrimaryKey, &col.Comment); err != nil {
			return nil, domain.QueryError("failed to scan column info", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.QueryError("failed to describe table", err)
	}
	if len(columns) == 0 {
		return nil, domain.QueryError(fmt.Sprintf("table not found: %s.%s", schema, table), nil)
	}
	return columns, nil
}

var (
	selectPrefix = regexp.MustCompile(`(?i)^\s*SELECT\b`)
	limitClause  = regexp.MustCompile(`(?i)\bLIMIT\b`)
)

// InjectRowLimit appends LIMIT n to an unbounded SELECT. A statement
// that already carries LIMIT is left untouched. This is a pure string
// rewrite.
func InjectRowLimit(query string, limit int) string {
	if !selectPrefix.MatchString(query) || limitClause.MatchString(query) {
		return query
	}
	trimmed := strings.TrimSuffix(strings.TrimSpace(query), ";")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// ExecuteQuery runs a statement and normalizes the result. Row-limit
// injection applies only to unbounded SELECTs. Every statement goes
// through Query so that row-producing forms the prefix grammar does not
// know about, INSERT ... RETURNING among them, keep their rows.
func (a *Adapter) ExecuteQuery(ctx context.Context, query string, rowLimit int) (*db.QueryResult, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}
	if rowLimit <= 0 {
		rowLimit = 100
	}
	stmt := InjectRowLimit(query, rowLimit)

	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := a.pool.Query(opCtx, stmt)
	if err != nil {
		return nil, domain.QueryError("query execution failed", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// collectRows normalizes a driver result. The driver's row description
// decides the shape: statements that produce a rowset report columns
// and rows, statements that do not report the affected-row count from
// the command tag.
func collectRows(rows pgx.Rows) (*db.QueryResult, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &db.QueryResult{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, domain.QueryError("failed to read result row", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.QueryError("result iteration failed", err)
	}
	// CommandTag is complete only after Close.
	rows.Close()
	if len(columns) == 0 {
		affected := rows.CommandTag().RowsAffected()
		result.AffectedRows = &affected
	}
	result.RowCount = len(result.Rows)
	return result, nil
}
