// Package qa answers questions about uploaded documents: articles go straight to the model,
// tables go through generated SQL.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"fileqa/internal/llm"
	"fileqa/internal/metrics"
	"fileqa/internal/table"
)

const (
	answerMaxTokens  = 1024
	sqlMaxTokens     = 150
	summaryMaxTokens = 200

	summaryTemperature = 0.5
	summaryConcurrency = 4

	// Upper bound on the CSV text embedded in a summary prompt
	maxSummaryData = 100000
)

// Querier is the table a question is answered against
type Querier interface {
	Columns(ctx context.Context) ([]string, error)
	Query(ctx context.Context, sql string) (*table.ResultSet, error)
	Dialect() string
}

// Service runs the question-answering pipelines against one Completer
type Service struct {
	Completer  llm.Completer
	Logger     *slog.Logger
	MaxRetries int
	Dialect    string
}

// New creates a Service. maxRetries is the number of correction rounds after a failed query.
func New(c llm.Completer, logger *slog.Logger, maxRetries int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Service{Completer: c, Logger: logger, MaxRetries: maxRetries}
}

// TableAnswer is the outcome of a question asked against a table.
// ExecError is set when the final query could not be executed; that is a result, not a failure.
type TableAnswer struct {
	Question  string           `json:"question"`
	SQL       string           `json:"sql"`
	Prompt    string           `json:"prompt"`
	Raw       string           `json:"raw"`
	Result    *table.ResultSet `json:"-"`
	ExecError string           `json:"error,omitempty"`
	Attempts  int              `json:"attempts"`
}

// ArticlePrompt builds the prompt sent for a question about an article
func ArticlePrompt(article, question string) string {
	prompt, _ := render(articleTemplate, struct{ Article, Question string }{article, question})
	return prompt
}

// AnswerText asks the model a question about an article
func (s *Service) AnswerText(ctx context.Context, article, question string) (string, error) {
	metrics.Questions.WithLabelValues("text").Inc()

	answer, err := s.Completer.Complete(ctx, llm.Request{
		Prompt:    ArticlePrompt(article, question),
		MaxTokens: answerMaxTokens,
	})
	if err != nil {
		s.Logger.Error("Text question failed", "error", err, "question", question)
		return "", err
	}
	return answer, nil
}

// TextToSQL translates a question into SQL for data_table. It returns the query and the prompt sent.
func (s *Service) TextToSQL(ctx context.Context, question string, columns []string) (string, string, error) {
	query, prompt, _, err := s.textToSQL(ctx, question, columns, s.dialect())
	return query, prompt, err
}

// CorrectSQL asks the model to fix or tidy a query. execErr, when set, is the error the query produced.
func (s *Service) CorrectSQL(ctx context.Context, query string, columns []string, execErr string) (string, error) {
	return s.correctSQL(ctx, query, columns, s.dialect(), execErr)
}

// AnswerTable generates SQL for question, runs it, and on failure feeds the error back for
// up to MaxRetries corrections. The returned answer is non-nil even when err is set so callers
// can show the prompt that was sent.
func (s *Service) AnswerTable(ctx context.Context, tbl Querier, question string) (*TableAnswer, error) {
	metrics.Questions.WithLabelValues("table").Inc()
	ans := &TableAnswer{Question: question}

	columns, err := tbl.Columns(ctx)
	if err != nil {
		return ans, fmt.Errorf("failed to read columns: %w", err)
	}
	dialect := tbl.Dialect()

	s.Logger.Info("Generating SQL for question", "question", question, "columns", len(columns))
	query, prompt, raw, err := s.textToSQL(ctx, question, columns, dialect)
	ans.Prompt, ans.Raw = prompt, raw
	if err != nil {
		return ans, err
	}
	ans.SQL = query

	for attempt := 1; ; attempt++ {
		ans.Attempts = attempt
		s.Logger.Info("Executing generated SQL", "sql", query, "attempt", attempt)

		rs, err := tbl.Query(ctx, query)
		if err == nil {
			metrics.SQLAttempts.WithLabelValues("ok").Inc()
			ans.Result, ans.ExecError = rs, ""
			return ans, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ans, ctxErr
		}

		metrics.SQLAttempts.WithLabelValues("failed").Inc()
		ans.ExecError = err.Error()
		s.Logger.Warn("SQL execution failed, will retry if attempts remain",
			"error", err,
			"sql", query,
			"attempt", attempt,
			"max_retries", s.MaxRetries)

		if attempt > s.MaxRetries {
			return ans, nil
		}

		corrected, err := s.correctSQL(ctx, query, columns, dialect, ans.ExecError)
		if err != nil {
			// Keep the execution error as the answer
			s.Logger.Error("SQL correction failed", "error", err, "question", question, "attempt", attempt)
			return ans, nil
		}
		query = corrected
		ans.SQL = corrected
	}
}

// Summarize answers each question about data and concatenates the answers in input order
func (s *Service) Summarize(ctx context.Context, data *table.ResultSet, questions []string) (string, error) {
	if data == nil {
		return "", table.ErrNotLoaded
	}
	if len(questions) == 0 {
		return "", errors.New("no questions to summarize")
	}
	metrics.Questions.WithLabelValues("summary").Add(float64(len(questions)))

	csv := truncateRows(data.CSV(), maxSummaryData)

	answers := make([]string, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			prompt, err := render(summaryTemplate, struct{ Data, Question string }{csv, q})
			if err != nil {
				return err
			}
			answer, err := s.Completer.Complete(gctx, llm.Request{
				Prompt:      prompt,
				MaxTokens:   summaryMaxTokens,
				Temperature: summaryTemperature,
			})
			if err != nil {
				return fmt.Errorf("summary question %q: %w", q, err)
			}
			answers[i] = strings.TrimSpace(answer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Logger.Error("Summary generation failed", "error", err, "questions", len(questions))
		return "", err
	}

	var b strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&b, "**%s**\n%s\n\n", q, answers[i])
	}
	return b.String(), nil
}

func (s *Service) dialect() string {
	if s.Dialect == "" {
		return "SQL"
	}
	return s.Dialect
}

func (s *Service) textToSQL(ctx context.Context, question string, columns []string, dialect string) (query, prompt, raw string, err error) {
	prompt, err = render(textToSQLTemplate, schemaPrompt{
		Dialect:  dialect,
		Table:    table.Name,
		Columns:  strings.Join(columns, ", "),
		Question: question,
	})
	if err != nil {
		return "", "", "", err
	}

	raw, err = s.Completer.Complete(ctx, llm.Request{
		System:    sqlSystemPrompt,
		Prompt:    prompt,
		MaxTokens: sqlMaxTokens,
	})
	if err != nil {
		s.Logger.Error("SQL generation failed", "error", err, "question", question)
		return "", prompt, "", fmt.Errorf("SQL generation failed: %w", err)
	}

	query, err = ExtractSQL(raw)
	if err != nil {
		s.Logger.Warn("Model returned no SQL", "question", question, "response", raw)
		return "", prompt, raw, err
	}
	return query, prompt, raw, nil
}

func (s *Service) correctSQL(ctx context.Context, query string, columns []string, dialect, execErr string) (string, error) {
	prompt, err := render(correctSQLTemplate, schemaPrompt{
		Dialect: dialect,
		Table:   table.Name,
		Columns: strings.Join(columns, ", "),
		SQL:     query,
		Error:   execErr,
	})
	if err != nil {
		return "", err
	}

	raw, err := s.Completer.Complete(ctx, llm.Request{
		System:    sqlSystemPrompt,
		Prompt:    prompt,
		MaxTokens: sqlMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("SQL correction failed: %w", err)
	}
	return ExtractSQL(raw)
}

// truncateRows cuts csv to at most limit bytes, ending on a whole row where possible
func truncateRows(csv string, limit int) string {
	if len(csv) <= limit {
		return csv
	}
	if i := strings.LastIndexByte(csv[:limit], '\n'); i > 0 {
		return csv[:i+1]
	}
	// A single row longer than limit: stay on a rune boundary
	n := limit
	for n > 0 && !utf8.RuneStart(csv[n]) {
		n--
	}
	return csv[:n]
}
