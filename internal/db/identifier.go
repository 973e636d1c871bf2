package db

import (
	"regexp"
	"strings"

	"github.com/NakiriYuuzu/sql-mcp/internal/domain"
)

// identifierPattern accepts word characters and dots, covering
// schema.table forms. Anything else is rejected outright rather than
// escaped around.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.]*$`)

// SanitizeIdentifier strips one layer of wrapping bracket, double-quote
// or single-quote delimiters and validates the remainder.
func SanitizeIdentifier(identifier string) (string, error) {
	s := strings.TrimSpace(identifier)
	switch {
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && len(s) >= 2:
		s = s[1 : len(s)-1]
	case strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2:
		s = s[1 : len(s)-1]
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return "", domain.ValidationError("identifier is empty")
	}
	if !identifierPattern.MatchString(s) {
		return "", domain.ValidationError("invalid identifier: %q", identifier)
	}
	return s, nil
}

// EscapeIdentifier sanitizes and re-quotes an identifier per engine
// dialect, segment by segment, so dbo.users becomes [dbo].[users] for
// SQL Server and "public"."users" for PostgreSQL.
func EscapeIdentifier(identifier string, engine Engine) (string, error) {
	clean, err := SanitizeIdentifier(identifier)
	if err != nil {
		return "", err
	}
	segments := strings.Split(clean, ".")
	for i, seg := range segments {
		if engine == EngineMSSQL {
			segments[i] = "[" + seg + "]"
		} else {
			segments[i] = `"` + seg + `"`
		}
	}
	return strings.Join(segments, "."), nil
}
