package tools

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/NakiriYuuzu/sql-mcp/internal/db"
	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

// Handler binds the tool surface to the connection manager. The query
// mode is fixed for the process lifetime; no tool can change it.
type Handler struct {
	manager      *db.Manager
	mode         db.QueryMode
	defaultLimit int
	maxLimit     int
	validate     *validator.Validate
}

// NewHandler creates the tool handler set.
func NewHandler(manager *db.Manager, mode db.QueryMode, defaultLimit, maxLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	return &Handler{
		manager:      manager,
		mode:         mode,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		validate:     validator.New(),
	}
}

// failure turns an operation-level error into a structured failure
// result instead of crashing the request. The stable code prefixes the
// message so clients can branch on it.
func failure(err error) *mcp.CallToolResult {
	msg := err.Error()
	if code := domain.CodeOf(err); code != "" {
		msg = fmt.Sprintf("[%s] %s", code, msg)
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func success(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (h *Handler) checkInput(input any) error {
	if err := h.validate.Struct(input); err != nil {
		return domain.ValidationError("invalid arguments: %v", err)
	}
	return nil
}

func (h *Handler) Connect(ctx context.Context, req *mcp.CallToolRequest, input ConnectInput) (*mcp.CallToolResult, ConnectOutput, error) {
	if err := h.checkInput(input); err != nil {
		return failure(err), ConnectOutput{}, nil
	}

	cfg := db.ConnectionConfig{
		Engine:                 db.Engine(input.Engine),
		Host:                   input.Server,
		Port:                   input.Port,
		Database:               input.Database,
		Username:               input.User,
		Password:               input.Password,
		WindowsAuth:            input.WindowsAuth,
		Encrypt:                input.Encrypt,
		TrustServerCertificate: input.TrustServerCertificate,
	}
	if input.SSL != nil {
		cfg.SSL = &db.SSLConfig{Enabled: input.SSL.Enabled, CA: input.SSL.CA}
	}

	if err := h.manager.Connect(ctx, cfg); err != nil {
		return failure(err), ConnectOutput{}, nil
	}

	state := h.manager.State()
	out := ConnectOutput{
		Message:  fmt.Sprintf("Connected to %s server at %s", state.Engine, state.Server),
		Database: state.Database,
	}
	return success(out.Message), out, nil
}

func (h *Handler) Disconnect(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, DisconnectOutput, error) {
	if err := h.manager.Disconnect(ctx); err != nil {
		return failure(err), DisconnectOutput{}, nil
	}
	out := DisconnectOutput{Message: "Disconnected"}
	return success(out.Message), out, nil
}

func (h *Handler) Status(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatusOutput, error) {
	state := h.manager.State()
	out := StatusOutput{
		Connected:            state.Connected,
		Engine:               string(state.Engine),
		Server:               state.Server,
		Database:             state.Database,
		QueryMode:            string(h.mode),
		QueryModeDescription: h.mode.Description(),
	}
	text := "Not connected"
	if state.Connected {
		text = fmt.Sprintf("Connected to %s at %s, database %s", state.Engine, state.Server, state.Database)
	}
	return success(text), out, nil
}

func (h *Handler) ListDatabases(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, ListDatabasesOutput, error) {
	names, err := h.manager.ListDatabases(ctx)
	if err != nil {
		return failure(err), ListDatabasesOutput{}, nil
	}
	if names == nil {
		names = []string{}
	}
	out := ListDatabasesOutput{Databases: names, Count: len(names)}
	return success(fmt.Sprintf("Found %d database(s)", out.Count)), out, nil
}

func (h *Handler) SwitchDatabase(ctx context.Context, req *mcp.CallToolRequest, input SwitchDatabaseInput) (*mcp.CallToolResult, SwitchDatabaseOutput, error) {
	if err := h.checkInput(input); err != nil {
		return failure(err), SwitchDatabaseOutput{}, nil
	}
	if err := h.manager.SwitchDatabase(ctx, input.Database); err != nil {
		return failure(err), SwitchDatabaseOutput{}, nil
	}
	state := h.manager.State()
	out := SwitchDatabaseOutput{
		Message:  fmt.Sprintf("Switched to database %s", state.Database),
		Database: state.Database,
	}
	return success(out.Message), out, nil
}

func (h *Handler) ListTables(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, ListTablesOutput, error) {
	tables, err := h.manager.ListTables(ctx)
	if err != nil {
		return failure(err), ListTablesOutput{}, nil
	}
	if tables == nil {
		tables = []db.TableInfo{}
	}
	out := ListTablesOutput{Tables: tables}
	for _, t := range tables {
		out.Summary.Total++
		if t.Kind == "VIEW" {
			out.Summary.Views++
		} else {
			out.Summary.Tables++
		}
	}
	return success(fmt.Sprintf("Found %d table(s) and %d view(s)", out.Summary.Tables, out.Summary.Views)), out, nil
}

func (h *Handler) DescribeTable(ctx context.Context, req *mcp.CallToolRequest, input DescribeTableInput) (*mcp.CallToolResult, DescribeTableOutput, error) {
	if err := h.checkInput(input); err != nil {
		return failure(err), DescribeTableOutput{}, nil
	}

	table, err := db.SanitizeIdentifier(input.TableName)
	if err != nil {
		return failure(err), DescribeTableOutput{}, nil
	}
	schema := input.Schema
	if schema != "" {
		if schema, err = db.SanitizeIdentifier(schema); err != nil {
			return failure(err), DescribeTableOutput{}, nil
		}
	}

	columns, err := h.manager.DescribeTable(ctx, table, schema)
	if err != nil {
		return failure(err), DescribeTableOutput{}, nil
	}

	if schema == "" {
		schema = describedSchema(h.manager)
	}
	out := DescribeTableOutput{
		TableName:   table,
		Schema:      schema,
		Columns:     columns,
		PrimaryKeys: []string{},
		ColumnCount: len(columns),
	}
	for _, c := range columns {
		if c.PrimaryKey {
			out.PrimaryKeys = append(out.PrimaryKeys, c.Name)
		}
	}
	return success(fmt.Sprintf("Table %s.%s has %d column(s)", schema, table, out.ColumnCount)), out, nil
}

// describedSchema resolves the engine default schema for the payload
// when the caller omitted one.
func describedSchema(m *db.Manager) string {
	switch m.State().Engine {
	case db.EnginePostgres:
		return "public"
	case db.EngineMSSQL:
		return "dbo"
	default:
		return ""
	}
}

func (h *Handler) ExecuteQuery(ctx context.Context, req *mcp.CallToolRequest, input ExecuteQueryInput) (*mcp.CallToolResult, ExecuteQueryOutput, error) {
	if err := h.checkInput(input); err != nil {
		return failure(err), ExecuteQueryOutput{}, nil
	}

	if err := db.ValidateQuery(input.Query, h.mode); err != nil {
		log.Debug().Err(err).Str("mode", string(h.mode)).Msg("query rejected")
		return failure(err), ExecuteQueryOutput{}, nil
	}

	limit := input.Limit
	if limit == 0 {
		limit = h.defaultLimit
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	result, err := h.manager.ExecuteQuery(ctx, input.Query, limit)
	if err != nil {
		return failure(err), ExecuteQueryOutput{}, nil
	}

	out := ExecuteQueryOutput{
		Columns:      result.Columns,
		Rows:         result.Rows,
		RowCount:     result.RowCount,
		AffectedRows: result.AffectedRows,
		QueryMode:    string(h.mode),
	}
	text := fmt.Sprintf("Query returned %d row(s)", out.RowCount)
	if out.AffectedRows != nil {
		text = fmt.Sprintf("Statement affected %d row(s)", *out.AffectedRows)
	}
	return success(text), out, nil
}
