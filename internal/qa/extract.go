package qa

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoSQL = errors.New("no SQL found in model response")

var (
	// A language tag only counts when a newline follows it, so ```SELECT ...``` keeps its first word
	fencePattern   = regexp.MustCompile("(?s)```(?:[A-Za-z]+[ \\t]*\\n)?(.*?)```")
	startPattern   = regexp.MustCompile(`^(SELECT|WITH)\b`)
	clausePattern  = regexp.MustCompile(`\b(SELECT|FROM|WHERE|ORDER BY|GROUP BY|HAVING|LIMIT|JOIN|UNION)\b`)
	connectPattern = regexp.MustCompile(`\b(AND|OR|ON|WITH)\b`)
)

// ExtractSQL pulls a single SQL statement out of a model completion.
// A fenced code block wins. Otherwise lines are kept from the first one that starts a statement,
// or every clause line when no line does; connectives only count once a statement has started.
// The kept lines are joined with single spaces and terminated with a semicolon.
func ExtractSQL(raw string) (string, error) {
	var lines []string
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
	} else {
		lines = keywordLines(strings.Split(raw, "\n"))
	}

	query := strings.TrimSpace(strings.Join(lines, " "))
	if query == "" || query == ";" {
		return "", ErrNoSQL
	}
	if !strings.HasSuffix(query, ";") {
		query += ";"
	}
	return query, nil
}

func keywordLines(raw []string) []string {
	start := -1
	for i, line := range raw {
		if startPattern.MatchString(strings.ToUpper(strings.TrimSpace(line))) {
			start = i
			break
		}
	}

	var lines []string
	if start < 0 {
		for _, line := range raw {
			line = strings.TrimSpace(line)
			if clausePattern.MatchString(strings.ToUpper(line)) {
				lines = append(lines, line)
			}
		}
		return lines
	}

	for _, line := range raw[start:] {
		line = strings.TrimSpace(line)
		up := strings.ToUpper(line)
		if !clausePattern.MatchString(up) && !connectPattern.MatchString(up) {
			continue
		}
		lines = append(lines, line)
		if strings.HasSuffix(line, ";") {
			break
		}
	}
	return lines
}
