package qa

import (
	"strings"
	"text/template"
)

var (
	articleTemplate = template.Must(template.New("article").Parse(
		"Here's an article:\n{{.Article}}\n{{.Question}}"))

	textToSQLTemplate = template.Must(template.New("text_to_sql").Parse(`You are an expert SQL developer. Convert the following natural language query into a valid SQL query that can be executed against the provided {{.Dialect}} database schema.

Schema:
- Table name: {{.Table}}
- Columns: {{.Columns}}

Query: {{.Question}}

Return only the SQL query, without explanation.

SQL Query:`))

	correctSQLTemplate = template.Must(template.New("correct_sql").Parse(`You are an SQL expert. Analyze the following SQL query for correctness based on the provided {{.Dialect}} schema and make necessary corrections or optimizations.

Schema:
- Table name: {{.Table}}
- Columns: {{.Columns}}

SQL Query:
{{.SQL}}
{{if .Error}}
The query failed with this error:
{{.Error}}
{{end}}
Return only the corrected SQL query, without explanation.

Corrected/Optimized SQL Query:`))

	summaryTemplate = template.Must(template.New("summary").Parse(`You are an analytical assistant. Based on the following data, provide a concise answer to the question.

Data:
{{.Data}}

Question: {{.Question}}

Answer:`))
)

const sqlSystemPrompt = "You are a helpful assistant skilled at generating SQL queries."

type schemaPrompt struct {
	Dialect  string
	Table    string
	Columns  string
	Question string
	SQL      string
	Error    string
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
