package table

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "modernc.org/sqlite"
)

// Name is the table every uploaded CSV is loaded into
const Name = "data_table"

const (
	EngineDuckDB = "duckdb"
	EngineSQLite = "sqlite"
)

var ErrNotLoaded = errors.New("no CSV has been loaded")

// Column describes one column of data_table
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is an in-memory relational database holding a single table built from a CSV
type Table struct {
	conn   *sql.DB
	engine string
	logger *slog.Logger

	mu     sync.RWMutex
	loaded bool
}

// Open creates an empty in-memory database for the given engine
func Open(engine string, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch engine {
	case EngineDuckDB, "":
		engine = EngineDuckDB
	case EngineSQLite:
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}

	db, err := openDB(engine)
	if err != nil {
		logger.Error("Failed to open in-memory database", "error", err, "engine", engine)
		return nil, fmt.Errorf("failed to open %s: %w", engine, err)
	}
	return &Table{conn: db, engine: engine, logger: logger}, nil
}

func openDB(engine string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	if engine == EngineSQLite {
		db, err = sql.Open("sqlite", ":memory:")
	} else {
		db, err = sql.Open("duckdb", "")
	}
	if err != nil {
		return nil, err
	}

	// One connection: every statement must see the same in-memory database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Engine reports the database engine backing the table
func (t *Table) Engine() string {
	return t.engine
}

// Dialect is the SQL dialect name given to the model
func (t *Table) Dialect() string {
	if t.engine == EngineSQLite {
		return "SQLite"
	}
	return "DuckDB (PostgreSQL-compatible syntax)"
}

// Close releases the database; a closed table reports itself as not loaded
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = false
	return t.conn.Close()
}

// Loaded reports whether a CSV has been loaded
func (t *Table) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Load replaces data_table with the contents of a CSV document (header row required)
func (t *Table) Load(ctx context.Context, r io.Reader) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	if t.engine == EngineSQLite {
		err = t.loadSQLite(ctx, r)
	} else {
		err = t.loadDuckDB(ctx, r)
	}
	if err != nil {
		t.logger.Error("CSV load failed", "error", err, "engine", t.engine)
		return err
	}

	t.loaded = true
	t.logger.Info("CSV loaded", "engine", t.engine, "table", Name)
	return nil
}

// LoadFile replaces data_table with the contents of the CSV at path
func (t *Table) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return t.Load(ctx, f)
}

// loadDuckDB reads the CSV into a fresh database and then turns off file access on it.
// The previous database cannot read files any more, so a reload always starts over.
func (t *Table) loadDuckDB(ctx context.Context, r io.Reader) error {
	tmp, err := os.CreateTemp("", "fileqa-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to buffer CSV: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to buffer CSV: %w", err)
	}

	db, err := openDB(EngineDuckDB)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}

	path := strings.ReplaceAll(tmp.Name(), "'", "''")
	_, err = db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)`,
		Name, path,
	))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create %s: %w", Name, err)
	}

	for _, stmt := range []string{
		"SET enable_external_access = false",
		"SET lock_configuration = true",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to restrict database: %w", err)
		}
	}

	old := t.conn
	t.conn = db
	if err := old.Close(); err != nil {
		t.logger.Warn("Failed to close previous database", "error", err)
	}
	return nil
}

func (t *Table) loadSQLite(ctx context.Context, r io.Reader) error {
	parsed, err := parseCSV(r)
	if err != nil {
		return err
	}

	if _, err := t.conn.ExecContext(ctx, "PRAGMA query_only = OFF"); err != nil {
		return fmt.Errorf("failed to allow writes: %w", err)
	}
	// Queries only read, also after a failed reload
	defer func() {
		if _, err := t.conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = ON"); err != nil {
			t.logger.Error("Failed to make database read-only", "error", err)
		}
	}()

	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Ignore error - will fail if transaction was committed
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, Name)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", Name, err)
	}

	defs := make([]string, len(parsed.header))
	placeholders := make([]string, len(parsed.header))
	for i, col := range parsed.header {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdent(col), parsed.types[i])
		placeholders[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`, Name, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create %s: %w", Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, Name, strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range parsed.records {
		if _, err := stmt.ExecContext(ctx, parsed.values(rec)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Schema returns the columns of data_table in order
func (t *Table) Schema(ctx context.Context) ([]Column, error) {
	rs, err := t.Query(ctx, fmt.Sprintf("PRAGMA table_info('%s')", Name))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
	cols := make([]Column, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) < 3 {
			continue
		}
		cols = append(cols, Column{Name: FormatValue(row[1]), Type: FormatValue(row[2])})
	}
	return cols, nil
}

// Columns returns the column names of data_table
func (t *Table) Columns(ctx context.Context) ([]string, error) {
	schema, err := t.Schema(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(schema))
	for i, c := range schema {
		names[i] = c.Name
	}
	return names, nil
}

// Count returns the number of rows in data_table
func (t *Table) Count(ctx context.Context) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded {
		return 0, ErrNotLoaded
	}
	var n int64
	if err := t.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", Name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Rows returns the whole table
func (t *Table) Rows(ctx context.Context) (*ResultSet, error) {
	return t.Query(ctx, fmt.Sprintf("SELECT * FROM %s", Name))
}

// Query executes a statement and collects every row
func (t *Table) Query(ctx context.Context, query string) (*ResultSet, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded {
		return nil, ErrNotLoaded
	}
	if err := checkStatement(query); err != nil {
		t.logger.Warn("Query rejected", "error", err, "sql", query, "engine", t.engine)
		return nil, err
	}

	rows, err := t.conn.QueryContext(ctx, query)
	if err != nil {
		t.logger.Warn("Query failed", "error", err, "sql", query, "engine", t.engine)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	rs := &ResultSet{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// QuoteIdent quotes an identifier for both DuckDB and SQLite
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
