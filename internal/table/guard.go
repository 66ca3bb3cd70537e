package table

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrStatementNotAllowed is returned for SQL that could reach outside data_table
var ErrStatementNotAllowed = errors.New("statement not allowed")

var forbiddenPattern = regexp.MustCompile(`(?i)\b(ATTACH|DETACH|VACUUM|LOAD_EXTENSION|QUERY_ONLY)\b`)

// checkStatement allows a single statement that does not attach, vacuum into
// or reconfigure the database. String literals are ignored.
func checkStatement(query string) error {
	code, err := stripQuoted(query)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	code = strings.TrimSpace(strings.TrimSuffix(code, ";"))
	if strings.Contains(code, ";") {
		return fmt.Errorf("%w: only one statement may be run", ErrStatementNotAllowed)
	}
	if m := forbiddenPattern.FindString(code); m != "" {
		return fmt.Errorf("%w: %s", ErrStatementNotAllowed, strings.ToUpper(m))
	}
	return nil
}

// stripQuoted drops the contents of string literals and checks that every quote is closed
func stripQuoted(query string) (string, error) {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				// A doubled quote is an escaped quote
				if i+1 < len(query) && query[i+1] == quote {
					i++
					if quote != '\'' {
						b.WriteByte(c)
						b.WriteByte(c)
					}
					continue
				}
				quote = 0
				b.WriteByte(c)
				continue
			}
			// Identifiers stay visible so a quoted keyword is still caught
			if quote != '\'' {
				b.WriteByte(c)
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	if quote != 0 {
		return "", fmt.Errorf("%w: unterminated quote", ErrStatementNotAllowed)
	}
	return b.String(), nil
}
