package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ziadkadry99/chartembed/internal/tabular"
)

// progressEvery is the number of rows between progress callbacks.
const progressEvery = 1000

// ErrTableExists is returned when the import database already holds a
// table of the same name. Such a table is never replaced or dropped.
var ErrTableExists = errors.New("importer: table already exists")

// writeTable creates table name with the rows of r in one transaction and
// returns the number of rows written. It fails with ErrTableExists rather
// than touch an existing table.
func writeTable(ctx context.Context, db *sql.DB, name string, cols []tabular.Column, r tabular.Reader, progress func(int)) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ? COLLATE NOCASE", name).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking for table %s: %w", name, err)
	}
	if exists > 0 {
		return 0, fmt.Errorf("%s: %w", name, ErrTableExists)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(name, cols)); err != nil {
		return 0, fmt.Errorf("creating table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoteIdent(name)+" VALUES ("+placeholders+")")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	args := make([]any, len(cols))
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading row %d: %w", n+1, err)
		}
		for i, col := range cols {
			if args[i], err = col.Type.Parse(row[i]); err != nil {
				return n, fmt.Errorf("row %d, column %s: %w", n+1, col.Name, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, fmt.Errorf("inserting row %d: %w", n+1, err)
		}
		n++
		if progress != nil && n%progressEvery == 0 {
			progress(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("committing table: %w", err)
	}
	if progress != nil {
		progress(n)
	}
	return n, nil
}

func dropTable(ctx context.Context, db *sql.DB, name string) error {
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name))
	return err
}

func createTableSQL(name string, cols []tabular.Column) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(name))
	b.WriteString(" (")
	for i, colName := range columnNames(cols) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(colName))
		b.WriteString(" ")
		b.WriteString(cols[i].Type.SQLType())
	}
	b.WriteString(")")
	return b.String()
}

// columnNames returns non-empty, case-insensitively unique column names.
func columnNames(cols []tabular.Column) []string {
	seen := make(map[string]bool, len(cols))
	names := make([]string, len(cols))
	for i, col := range cols {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		base := name
		for n := 2; seen[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		seen[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
