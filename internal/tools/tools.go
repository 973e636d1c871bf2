// Package tools exposes the database operations as MCP tools. Inputs
// are shape-validated here; the connection manager and adapters trust
// them once validation has run.
package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Register adds every tool to the MCP server.
func Register(server *mcp.Server, h *Handler) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "connect",
		Description: `Connect to a SQL Server or PostgreSQL database. An existing session is closed first.

**Example usage:**
` + "```json" + `
{
  "engine": "postgres",
  "server": "localhost",
  "database": "inventory",
  "user": "app",
  "password": "secret"
}
` + "```",
	}, h.Connect)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "disconnect",
		Description: "Close the current database session. Succeeds even when no session is open.",
	}, h.Disconnect)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Report the current connection state and the active query mode.",
	}, h.Status)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list-databases",
		Description: "List the databases available on the connected server.",
	}, h.ListDatabases)

	mcp.AddTool(server, &mcp.Tool{
		Name: "switch-database",
		Description: `Switch the active database. On SQL Server this happens inside the live session; on PostgreSQL it reconnects, which discards server-side temporary state.

**Example usage:**
` + "```json" + `
{"database": "reporting"}
` + "```",
	}, h.SwitchDatabase)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list-tables",
		Description: "List tables and views in the current database.",
	}, h.ListTables)

	mcp.AddTool(server, &mcp.Tool{
		Name: "describe-table",
		Description: `Describe a table's columns, types and primary keys.

**Example usage:**
` + "```json" + `
{"tableName": "users", "schema": "public"}
` + "```",
	}, h.DescribeTable)

	mcp.AddTool(server, &mcp.Tool{
		Name: "execute-query",
		Description: `Execute a SQL statement, subject to the configured query mode. Unbounded SELECTs are capped by the row limit (default 100, max 1000).

**Example usage:**
` + "```json" + `
{"query": "SELECT * FROM users WHERE active = true", "limit": 50}
` + "```",
	}, h.ExecuteQuery)
}
