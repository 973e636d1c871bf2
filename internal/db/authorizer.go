package db

import (
	"regexp"
	"strings"

	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

// QueryMode is the process-wide permission tier, set once at startup.
// Privilege ordering: safe < write < full.
type QueryMode string

const (
	ModeSafe  QueryMode = "safe"
	ModeWrite QueryMode = "write"
	ModeFull  QueryMode = "full"
)

// ParseQueryMode maps a configuration value to a mode,
// case-insensitively. Unrecognized or absent values fall back to safe.
func ParseQueryMode(s string) QueryMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "write":
		return ModeWrite
	case "full":
		return ModeFull
	default:
		return ModeSafe
	}
}

// Description returns the human summary reported by the status tool.
func (m QueryMode) Description() string {
	switch m {
	case ModeWrite:
		return "Read and write: adds INSERT, UPDATE, DELETE and MERGE; DDL stays blocked"
	case ModeFull:
		return "Unrestricted: every statement is allowed, including DDL"
	default:
		return "Read-only: SELECT, WITH, EXPLAIN, SHOW and DESCRIBE statements"
	}
}

// Lexical classification rules. This is an explicit best-effort filter
// over the raw statement text, not a SQL parser: it cannot see into
// dynamic SQL inside string literals or commented-out tokens.
var (
	readOnlyPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*SELECT\b`),
		regexp.MustCompile(`(?i)^\s*WITH\s+[\w\[\]"]+\s+AS\s*\(`),
		regexp.MustCompile(`(?i)^\s*EXPLAIN\b`),
		regexp.MustCompile(`(?i)^\s*SHOW\b`),
		regexp.MustCompile(`(?i)^\s*DESC(?:RIBE)?\b`),
	}

	writePrefix = regexp.MustCompile(`(?i)^\s*(?:INSERT|UPDATE|DELETE|MERGE)\b`)

	ddlPrefix = regexp.MustCompile(`(?i)^\s*(?:CREATE|ALTER|DROP|TRUNCATE|GRANT|REVOKE|EXEC(?:UTE)?)\b`)

	// A statement separator followed by another mutating or DDL keyword
	// is the multi-statement injection heuristic. It runs in safe and
	// write mode; full mode already permits everything it would flag.
	stackedStatement = regexp.MustCompile(`(?i);\s*(?:INSERT|UPDATE|DELETE|MERGE|CREATE|ALTER|DROP|TRUNCATE|GRANT|REVOKE|EXEC(?:UTE)?)\b`)

	dangerousProcedures = regexp.MustCompile(`(?i)\b(?:xp_cmdshell|sp_executesql|sp_configure|xp_regread|xp_regwrite|sp_oacreate|sp_oamethod)\b`)
)

// ValidateQuery classifies a raw SQL statement against the active mode
// and returns nil when it is allowed. It is a pure function: no state,
// no I/O.
func ValidateQuery(sql string, mode QueryMode) error {
	if strings.TrimSpace(sql) == "" {
		return domain.ValidationError("query is empty")
	}

	if mode == ModeFull {
		return nil
	}

	if stackedStatement.MatchString(sql) {
		return domain.ValidationError("multiple statements detected: a statement separator is followed by another mutating or DDL statement")
	}
	if m := dangerousProcedures.FindString(sql); m != "" {
		return domain.ValidationError("dangerous procedure call detected: %s", strings.ToLower(m))
	}

	if matchesReadOnly(sql) {
		return nil
	}

	if mode == ModeSafe {
		return domain.PermissionError("only read-only statements (SELECT, WITH, EXPLAIN, SHOW, DESCRIBE) are allowed in safe mode")
	}

	// write mode
	if writePrefix.MatchString(sql) {
		return nil
	}
	if ddlPrefix.MatchString(sql) {
		return domain.PermissionError("DDL statements are not allowed in write mode; full mode is required")
	}
	return domain.PermissionError("statement is not recognized as a read or write operation allowed in write mode")
}

func matchesReadOnly(sql string) bool {
	for _, re := range readOnlyPrefixes {
		if re.MatchString(sql) {
			return true
		}
	}
	return false
}
