// Package graph answers symbol queries against the persisted code
// graph that the indexer writes alongside the repository.
package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// GraphFile is the on-disk location relative to the repository root.
const GraphFile = ".codegraph/graph.db"

// Symbol is one node of the code graph.
type Symbol struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Rank      float64 `json:"rank"`
}

// Store opens the graph file per query and closes it after; the
// indexer may replace the file between calls, so nothing is cached.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the repository directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) open() (*sql.DB, error) {
	path := filepath.Join(s.dir, GraphFile)
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open code graph %s: %w", path, err)
	}
	// Opening is lazy; ping so a missing file fails here rather than
	// on the first row.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open code graph %s: %w", path, err)
	}
	return db, nil
}

// SymbolAt returns the innermost symbol spanning the given line of
// path, or nil when none does.
func (s *Store) SymbolAt(ctx context.Context, path string, line int) (*Symbol, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	row := db.QueryRowContext(ctx, `
		SELECT id, name, kind, path, start_line, end_line, rank
		FROM symbols
		WHERE path = ? AND start_line <= ? AND end_line >= ?
		ORDER BY end_line - start_line ASC
		LIMIT 1`, path, line, line)

	sym, err := scanSymbol(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol at %s:%d: %w", path, line, err)
	}
	return sym, nil
}

// Callers returns symbols that call the given symbol.
func (s *Store) Callers(ctx context.Context, symbolID int64) ([]Symbol, error) {
	return s.edgeQuery(ctx, symbolID, `
		SELECT s.id, s.name, s.kind, s.path, s.start_line, s.end_line, s.rank
		FROM calls c JOIN symbols s ON s.id = c.caller_id
		WHERE c.callee_id = ?
		ORDER BY s.rank DESC`)
}

// Callees returns symbols the given symbol calls.
func (s *Store) Callees(ctx context.Context, symbolID int64) ([]Symbol, error) {
	return s.edgeQuery(ctx, symbolID, `
		SELECT s.id, s.name, s.kind, s.path, s.start_line, s.end_line, s.rank
		FROM calls c JOIN symbols s ON s.id = c.callee_id
		WHERE c.caller_id = ?
		ORDER BY s.rank DESC`)
}

// Dependents returns up to limit symbols transitively calling the
// given symbol, highest PageRank first.
func (s *Store) Dependents(ctx context.Context, symbolID int64, limit int) ([]Symbol, error) {
	if limit <= 0 {
		limit = 25
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		WITH RECURSIVE dependents(id) AS (
			SELECT caller_id FROM calls WHERE callee_id = ?
			UNION
			SELECT c.caller_id FROM calls c JOIN dependents d ON c.callee_id = d.id
		)
		SELECT s.id, s.name, s.kind, s.path, s.start_line, s.end_line, s.rank
		FROM dependents d JOIN symbols s ON s.id = d.id
		ORDER BY s.rank DESC
		LIMIT ?`, symbolID, limit)
	if err != nil {
		return nil, fmt.Errorf("dependents of %d: %w", symbolID, err)
	}
	defer rows.Close()
	return collectSymbols(rows)
}

func (s *Store) edgeQuery(ctx context.Context, symbolID int64, query string) ([]Symbol, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query, symbolID)
	if err != nil {
		return nil, fmt.Errorf("graph edge query: %w", err)
	}
	defer rows.Close()
	return collectSymbols(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbol(r rowScanner) (*Symbol, error) {
	var sym Symbol
	if err := r.Scan(&sym.ID, &sym.Name, &sym.Kind, &sym.Path, &sym.StartLine, &sym.EndLine, &sym.Rank); err != nil {
		return nil, err
	}
	return &sym, nil
}

func collectSymbols(rows *sql.Rows) ([]Symbol, error) {
	var out []Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sym)
	}
	return out, rows.Err()
}
