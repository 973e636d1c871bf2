package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NakiriYuuzu/sql-mcp/internal/db"
	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "users", "users", false},
		{"bracketed", "[users]", "users", false},
		{"double quoted", `"users"`, "users", false},
		{"single quoted", "'users'", "users", false},
		{"qualified", "dbo.users", "dbo.users", false},
		{"bracketed qualified", "[dbo.users]", "dbo.users", false},
		{"leading digit", "2fa_codes", "2fa_codes", false},
		{"surrounding space", "  users  ", "users", false},

		{"empty", "", "", true},
		{"only delimiters", "[]", "", true},
		{"injection", "users; DROP TABLE", "", true},
		{"embedded quote", `us"ers`, "", true},
		{"embedded space", "my table", "", true},
		{"dash", "my-table", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.SanitizeIdentifier(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEscapeIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		engine db.Engine
		want   string
	}{
		{"mssql qualified", "dbo.users", db.EngineMSSQL, "[dbo].[users]"},
		{"mssql plain", "users", db.EngineMSSQL, "[users]"},
		{"mssql pre-bracketed", "[users]", db.EngineMSSQL, "[users]"},
		{"postgres qualified", "public.users", db.EnginePostgres, `"public"."users"`},
		{"postgres plain", "users", db.EnginePostgres, `"users"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.EscapeIdentifier(tt.in, tt.engine)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := db.EscapeIdentifier("users; DROP TABLE", db.EngineMSSQL)
	assert.Error(t, err)
}
