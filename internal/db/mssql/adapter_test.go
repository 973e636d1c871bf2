package mssql

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/golang-sql/sqlexp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NakiriYuuzu/sql-mcp/internal/db"
	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

func TestBuildDSN_CredentialAuth(t *testing.T) {
	dsn := buildDSN(db.ConnectionConfig{
		Engine:   db.EngineMSSQL,
		Host:     "db01",
		Port:     14330,
		Database: "sales",
		Username: "sa",
		Password: "p@ss/word",
		Encrypt:  true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "db01:14330", u.Host)
	assert.Equal(t, "sa", u.User.Username())
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", password)

	q := u.Query()
	assert.Equal(t, "sales", q.Get("database"))
	assert.Equal(t, "true", q.Get("encrypt"))
	assert.Equal(t, "30", q.Get("dial timeout"))
	assert.Empty(t, q.Get("trustservercertificate"))
}

func TestBuildDSN_WindowsAuthOmitsCredentials(t *testing.T) {
	dsn := buildDSN(db.ConnectionConfig{
		Engine:      db.EngineMSSQL,
		Host:        "db01",
		Username:    "ignored",
		Password:    "ignored",
		WindowsAuth: true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Nil(t, u.User)
	assert.Equal(t, "db01:1433", u.Host, "default port applies when omitted")
	assert.Equal(t, "disable", u.Query().Get("encrypt"))
}

func TestBuildDSN_TrustServerCertificate(t *testing.T) {
	dsn := buildDSN(db.ConnectionConfig{
		Engine:                 db.EngineMSSQL,
		Host:                   "db01",
		Encrypt:                true,
		TrustServerCertificate: true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "true", u.Query().Get("trustservercertificate"))
}

func TestInjectRowLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
		want  string
	}{
		{"unbounded select", "SELECT * FROM t", 50, "SELECT TOP 50 * FROM t"},
		{"lowercase", "select id from t", 100, "select TOP 100 id from t"},
		{"leading whitespace", "  SELECT id FROM t", 10, "  SELECT TOP 10 id FROM t"},
		{"existing top", "SELECT TOP 5 * FROM t", 50, "SELECT TOP 5 * FROM t"},
		{"existing offset", "SELECT * FROM t ORDER BY id OFFSET 10 ROWS", 50, "SELECT * FROM t ORDER BY id OFFSET 10 ROWS"},
		{"insert untouched", "INSERT INTO t VALUES (1)", 50, "INSERT INTO t VALUES (1)"},
		{"update untouched", "UPDATE t SET a = 1", 50, "UPDATE t SET a = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InjectRowLimit(tt.query, tt.limit))
		})
	}
}

func TestAdapterDefaults(t *testing.T) {
	a := New()
	assert.Equal(t, db.EngineMSSQL, a.Engine())
	assert.Equal(t, 1433, a.DefaultPort())
	assert.Equal(t, "dbo", a.DefaultSchema())
	assert.False(t, a.Connected())
	assert.Empty(t, a.CurrentDatabase())
}

func TestAdapterDisconnect_SafeWhenNeverConnected(t *testing.T) {
	a := New()
	assert.NoError(t, a.Disconnect(context.Background()))
	assert.NoError(t, a.Disconnect(context.Background()))
}

type scriptedMessages struct {
	msgs []sqlexp.RawMessage
}

func (s *scriptedMessages) Message(context.Context) sqlexp.RawMessage {
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m
}

type scriptedRows struct {
	columns []string
	data    [][]any
	idx     int
}

func (r *scriptedRows) Columns() ([]string, error) { return r.columns, nil }

func (r *scriptedRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *scriptedRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (r *scriptedRows) NextResultSet() bool { return false }
func (r *scriptedRows) Err() error          { return nil }

func TestDrainResult_InsertWithOutputKeepsRows(t *testing.T) {
	msgs := &scriptedMessages{msgs: []sqlexp.RawMessage{
		sqlexp.MsgRowsAffected{Count: 1},
		sqlexp.MsgNext{},
		sqlexp.MsgNextResultSet{},
	}}
	rows := &scriptedRows{
		columns: []string{"id"},
		data:    [][]any{{int64(7)}},
	}

	result, err := drainResult(context.Background(), msgs, rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, result.Columns)
	assert.Equal(t, [][]any{{int64(7)}}, result.Rows)
	assert.Equal(t, 1, result.RowCount)
	assert.Nil(t, result.AffectedRows)
}

func TestDrainResult_ProcedureRowset(t *testing.T) {
	msgs := &scriptedMessages{msgs: []sqlexp.RawMessage{
		sqlexp.MsgNext{},
		sqlexp.MsgNextResultSet{},
	}}
	rows := &scriptedRows{
		columns: []string{"spid", "status"},
		data:    [][]any{{int64(51), []byte("runnable")}, {int64(52), []byte("sleeping")}},
	}

	result, err := drainResult(context.Background(), msgs, rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"spid", "status"}, result.Columns)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, "runnable", result.Rows[0][1])
	assert.Nil(t, result.AffectedRows)
}

func TestDrainResult_PlainInsertReportsAffectedCount(t *testing.T) {
	msgs := &scriptedMessages{msgs: []sqlexp.RawMessage{
		sqlexp.MsgRowsAffected{Count: 3},
		sqlexp.MsgNextResultSet{},
	}}

	result, err := drainResult(context.Background(), msgs, &scriptedRows{})
	require.NoError(t, err)
	assert.Empty(t, result.Columns)
	assert.Equal(t, 0, result.RowCount)
	require.NotNil(t, result.AffectedRows)
	assert.Equal(t, int64(3), *result.AffectedRows)
}

func TestDrainResult_ErrorMessage(t *testing.T) {
	msgs := &scriptedMessages{msgs: []sqlexp.RawMessage{
		sqlexp.MsgError{Error: errors.New("deadlock victim")},
	}}

	_, err := drainResult(context.Background(), msgs, &scriptedRows{})
	require.Error(t, err)
	assert.Equal(t, domain.CodeQuery, domain.CodeOf(err))
}
