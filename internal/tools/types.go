package tools

import (
	"github.com/NakiriYuuzu/sql-mcp/internal/db"
)

// ===== INPUT TYPES =====

type SSLInput struct {
	Enabled bool   `json:"enabled" jsonschema_description:"Enable TLS for the connection"`
	CA      string `json:"ca,omitempty" jsonschema_description:"Custom CA certificate in PEM form"`
}

type ConnectInput struct {
	Engine                 string    `json:"engine" validate:"required,oneof=mssql postgres" jsonschema_description:"Database engine: mssql or postgres"`
	Server                 string    `json:"server" validate:"required" jsonschema_description:"Server hostname or IP address"`
	Port                   int       `json:"port,omitempty" validate:"omitempty,min=1,max=65535" jsonschema_description:"Server port (1433 for mssql, 5432 for postgres when omitted)"`
	Database               string    `json:"database,omitempty" jsonschema_description:"Initial database"`
	User                   string    `json:"user,omitempty" jsonschema_description:"Login user name"`
	Password               string    `json:"password,omitempty" jsonschema_description:"Login password"`
	WindowsAuth            bool      `json:"windowsAuth,omitempty" jsonschema_description:"Use integrated Windows authentication (mssql only)"`
	Encrypt                bool      `json:"encrypt,omitempty" jsonschema_description:"Encrypt the connection (mssql only)"`
	TrustServerCertificate bool      `json:"trustServerCertificate,omitempty" jsonschema_description:"Skip server certificate verification (mssql only)"`
	SSL                    *SSLInput `json:"ssl,omitempty" jsonschema_description:"TLS options (postgres only)"`
}

type SwitchDatabaseInput struct {
	Database string `json:"database" validate:"required" jsonschema_description:"Database to switch to"`
}

type DescribeTableInput struct {
	TableName string `json:"tableName" validate:"required" jsonschema_description:"Table name"`
	Schema    string `json:"schema,omitempty" jsonschema_description:"Schema name (defaults to dbo or public)"`
}

type ExecuteQueryInput struct {
	Query string `json:"query" validate:"required" jsonschema_description:"SQL statement to execute"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000" jsonschema_description:"Row limit for unbounded SELECTs (1-1000, default 100)"`
}

type EmptyInput struct{}

// ===== OUTPUT TYPES =====

type ConnectOutput struct {
	Message  string `json:"message"`
	Database string `json:"database"`
}

type DisconnectOutput struct {
	Message string `json:"message"`
}

type StatusOutput struct {
	Connected            bool   `json:"connected"`
	Engine               string `json:"engine,omitempty"`
	Server               string `json:"server,omitempty"`
	Database             string `json:"database,omitempty"`
	QueryMode            string `json:"queryMode"`
	QueryModeDescription string `json:"queryModeDescription"`
}

type ListDatabasesOutput struct {
	Databases []string `json:"databases"`
	Count     int      `json:"count"`
}

type SwitchDatabaseOutput struct {
	Message  string `json:"message"`
	Database string `json:"database"`
}

type TableSummary struct {
	Total  int `json:"total"`
	Tables int `json:"tables"`
	Views  int `json:"views"`
}

type ListTablesOutput struct {
	Tables  []db.TableInfo `json:"tables"`
	Summary TableSummary   `json:"summary"`
}

type DescribeTableOutput struct {
	TableName   string          `json:"tableName"`
	Schema      string          `json:"schema"`
	Columns     []db.ColumnInfo `json:"columns"`
	PrimaryKeys []string        `json:"primaryKeys"`
	ColumnCount int             `json:"columnCount"`
}

type ExecuteQueryOutput struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowCount     int      `json:"rowCount"`
	AffectedRows *int64   `json:"affectedRows,omitempty"`
	QueryMode    string   `json:"queryMode"`
}
