package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-sql/sqlexp"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/NakiriYuuzu/sql-mcp/internal/db"
	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

const (
	connectTimeout = 30 * time.Second
	queryTimeout   = 30 * time.Second
)

// Adapter implements db.Adapter for Microsoft SQL Server.
type Adapter struct {
	pool     *sql.DB
	database string
}

// New creates a disconnected SQL Server adapter.
func New() db.Adapter {
	return &Adapter{}
}

func (a *Adapter) Engine() db.Engine       { return db.EngineMSSQL }
func (a *Adapter) Connected() bool         { return a.pool != nil }
func (a *Adapter) CurrentDatabase() string { return a.database }
func (a *Adapter) DefaultPort() int        { return 1433 }
func (a *Adapter) DefaultSchema() string   { return "dbo" }

// buildDSN renders a sqlserver:// URL. With WindowsAuth the user info
// is omitted entirely, which selects integrated authentication in the
// driver.
func buildDSN(cfg db.ConnectionConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	query.Set("app name", "sql-mcp")
	query.Set("dial timeout", strconv.Itoa(int(connectTimeout.Seconds())))
	if cfg.Database != "" {
		query.Set("database", cfg.Database)
	}
	if cfg.Encrypt {
		query.Set("encrypt", "true")
	} else {
		query.Set("encrypt", "disable")
	}
	if cfg.TrustServerCertificate {
		query.Set("trustservercertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		RawQuery: query.Encode(),
	}
	if !cfg.WindowsAuth {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

// Connect opens the pool and verifies it with a ping. On failure no
// half-open pool remains.
func (a *Adapter) Connect(ctx context.Context, cfg db.ConnectionConfig) error {
	pool, err := sql.Open("sqlserver", buildDSN(cfg))
	if err != nil {
		return domain.ConnectionError("failed to open SQL Server connection", err)
	}
	pool.SetMaxOpenConns(5)
	pool.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return domain.ConnectionError("failed to connect to SQL Server", err)
	}

	a.pool = pool
	a.database = cfg.Database
	if a.database == "" {
		// DB_NAME() reports the login's default database.
		if err := pool.QueryRowContext(pingCtx, "SELECT DB_NAME()").Scan(&a.database); err != nil {
			a.database = "master"
		}
	}
	return nil
}

// Disconnect closes the pool and resets connection state. Safe to call
// multiple times.
func (a *Adapter) Disconnect(context.Context) error {
	if a.pool == nil {
		return nil
	}
	err := a.pool.Close()
	a.pool = nil
	a.database = ""
	if err != nil {
		return domain.ConnectionError("failed to close SQL Server connection", err)
	}
	return nil
}

func (a *Adapter) ensureConnected() error {
	if a.pool == nil {
		return domain.NotConnected()
	}
	return nil
}

// SwitchDatabase changes the active catalog within the live session.
func (a *Adapter) SwitchDatabase(ctx context.Context, name string) error {
	if err := a.ensureConnected(); err != nil {
		return err
	}
	escaped, err := db.EscapeIdentifier(name, db.EngineMSSQL)
	if err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := a.pool.ExecContext(opCtx, "USE "+escaped); err != nil {
		return domain.QueryError(fmt.Sprintf("failed to switch to database %q", name), err)
	}
	clean, _ := db.SanitizeIdentifier(name)
	a.database = clean
	return nil
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := a.pool.QueryContext(opCtx,
		`SELECT name FROM sys.databases WHERE state = 0 ORDER BY name`)
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

	rows, err := a.pool.QueryContext(opCtx, `
		SELECT s.name, o.name,
		       CASE o.type WHEN 'V' THEN 'VIEW' ELSE 'TABLE' END
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE o.type IN ('U', 'V')
		ORDER BY s.name, o.name`)
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

// DescribeTable reads column metadata from the sys catalog views.
// Primary-key membership comes from sys.index_columns because no single
// view exposes it as a column flag.
func (a *Adapter) DescribeTable(ctx context.Context, table, schema string) ([]db.ColumnInfo, error) {
	if err := a.ensureConnected(); err != nil {
		return nil, err
	}
	if schema == "" {
		schema = a.DefaultSchema()
	}
	opCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := a.pool.QueryContext(opCtx, `
		SELECT c.name,
		       t.name,
		       c.is_nullable,
		       c.max_length,
		       c.precision,
		       c.scale,
		       dc.definition,
		       CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END,
		       ISNULL(CAST(ep.value AS nvarchar(4000)), '')
		FROM sys.columns c
		JOIN sys.objects o ON o.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		JOIN sys.types t ON t.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		LEFT JOIN (
			SELECT ic.object_id, ic.column_id
			FROM sys.index_columns ic
			JOIN sys.indexes i
			  ON i.object_id = ic.object_id AND i.index_id = ic.index_id
			WHERE i.is_primary_key = 1
		) pk ON pk.object_id = c.object_id AND pk.column_id = c.column_id
		LEFT JOIN sys.extended_properties ep
		  ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = 'MS_Description'
		WHERE o.name = @p1 AND s.name = @p2
		ORDER BY c.column_id`, table, schema)
	if err != nil {
		return nil, domain.QueryError(fmt.Sprintf("failed to describe table %q", table), err)
	}
	defer rows.Close()

	var columns []db.ColumnInfo
	for rows.Next() {
		var (
			col        db.ColumnInfo
			maxLength  int64
			precision  int64
			scale      int64
			defaultVal sql.NullString
			isPK       int
		)
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &maxLength,
			&precision, &scale, &defaultVal, &isPK, &col.Comment); err != nil {
			return nil, domain.QueryError("failed to scan column info", err)
		}
		if maxLength > 0 {
			col.MaxLength = &maxLength
		}
		if precision > 0 {
			col.Precision = &precision
			col.Scale = &scale
		}
		if defaultVal.Valid {
			col.DefaultValue = &defaultVal.String
		}
		col.PrimaryKey = isPK == 1
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
	limitClause  = regexp.MustCompile(`(?i)\b(?:TOP|OFFSET)\b`)
)

// InjectRowLimit rewrites an unbounded SELECT into SELECT TOP n. A
// statement that already carries TOP or OFFSET is left untouched. This
// is a pure string rewrite.
func InjectRowLimit(query string, limit int) string {
	loc := selectPrefix.FindStringIndex(query)
	if loc == nil || limitClause.MatchString(query) {
		return query
	}
	return query[:loc[1]] + fmt.Sprintf(" TOP %d", limit) + query[loc[1]:]
}

// ExecuteQuery runs a statement and normalizes the result. Row-limit
// injection applies only to unbounded SELECTs. The driver's message
// stream decides the result shape, so row-producing forms the prefix
// grammar does not know about, EXEC and INSERT ... OUTPUT among them,
// keep their rows.
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

	retmsg := &sqlexp.ReturnMessage{}
	rows, err := a.pool.QueryContext(opCtx, stmt, retmsg)
	if err != nil {
		return nil, domain.QueryError("query execution failed", err)
	}
	defer rows.Close()

	return drainResult(opCtx, retmsg, rows)
}

// resultMessages is the message side of *sqlexp.ReturnMessage.
type resultMessages interface {
	Message(ctx context.Context) sqlexp.RawMessage
}

// resultRows is the subset of *sql.Rows the drain loop touches.
type resultRows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	NextResultSet() bool
	Err() error
}

// drainResult walks the driver's message stream until the final result
// set is consumed. The first rowset becomes the normalized result and
// later rowsets are drained. A statement that produced no rowset
// reports the accumulated affected-row count instead.
func drainResult(ctx context.Context, msgs resultMessages, rows resultRows) (*db.QueryResult, error) {
	result := &db.QueryResult{Columns: []string{}, Rows: [][]any{}}
	var affected int64
	sawCount := false

	for active := true; active; {
		switch m := msgs.Message(ctx).(type) {
		case sqlexp.MsgNext:
			if len(result.Columns) > 0 {
				for rows.Next() {
				}
				continue
			}
			columns, err := rows.Columns()
			if err != nil {
				return nil, domain.QueryError("failed to read result columns", err)
			}
			result.Columns = columns
			for rows.Next() {
				values := make([]any, len(columns))
				ptrs := make([]any, len(columns))
				for i := range values {
					ptrs[i] = &values[i]
				}
				if err := rows.Scan(ptrs...); err != nil {
					return nil, domain.QueryError("failed to scan result row", err)
				}
				for i, v := range values {
					if b, ok := v.([]byte); ok {
						values[i] = string(b)
					}
				}
				result.Rows = append(result.Rows, values)
			}
		case sqlexp.MsgRowsAffected:
			affected += m.Count
			sawCount = true
		case sqlexp.MsgError:
			return nil, domain.QueryError("query execution failed", m.Error)
		case sqlexp.MsgNextResultSet:
			active = rows.NextResultSet()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.QueryError("result iteration failed", err)
	}
	if len(result.Columns) == 0 && sawCount {
		result.AffectedRows = &affected
	}
	result.RowCount = len(result.Rows)
	return result, nil
}
