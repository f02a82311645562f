// Package export copies generated tables into a SQLite database.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/pkg/errors"
)

// RunsTable records one row per exported table.
const RunsTable = "implantgen_runs"

// Run identifies the generation run being exported.
type Run struct {
	ID   string
	Seed int64
	At   time.Time
}

// SQLite writes tables into the database at path, creating the file and
// its directory when needed. Existing tables of the same name are replaced.
// Everything happens in one transaction.
func SQLite(ctx context.Context, path string, run Run, tables ...*dataset.Table) error {
	if path == "" {
		return errors.NewConfigError("export", "sqlite_path", "required", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrap(err, "create dirs")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrap(err, "open sqlite")
	}
	defer func() { _ = db.Close() }()
	return WriteTables(ctx, db, run, tables...)
}

// WriteTables writes tables through an open database handle.
func WriteTables(ctx context.Context, db *sql.DB, run Run, tables ...*dataset.Table) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+RunsTable+` (
		run_id TEXT NOT NULL,
		seed INTEGER NOT NULL,
		table_name TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		exported_at TEXT NOT NULL
	)`); err != nil {
		return errors.Wrap(err, "create runs table")
	}

	at := run.At
	if at.IsZero() {
		at = time.Now()
	}
	for _, t := range tables {
		if err = writeTable(ctx, tx, t); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO `+RunsTable+` (run_id, seed, table_name, row_count, exported_at) VALUES (?, ?, ?, ?, ?)`,
			run.ID, run.Seed, t.Name(), t.Len(), at.UTC().Format(time.RFC3339)); err != nil {
			return errors.Wrap(err, "record run")
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func writeTable(ctx context.Context, tx *sql.Tx, t *dataset.Table) error {
	cols := t.Columns()
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for j, c := range cols {
		names[j] = quoteIdent(c.Name)
		defs[j] = names[j] + " " + sqlType(c.Kind)
		marks[j] = "?"
	}
	name := quoteIdent(t.Name())

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return errors.Wrapf(err, "drop %s", t.Name())
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return errors.Wrapf(err, "create %s", t.Name())
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return errors.Wrapf(err, "prepare insert into %s", t.Name())
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, c := range cols {
			args[j] = cellValue(c, i)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "insert row %d into %s", i, t.Name())
		}
	}
	return nil
}

func sqlType(k dataset.Kind) string {
	switch k {
	case dataset.KindString:
		return "TEXT"
	case dataset.KindFloat:
		return "REAL"
	default:
		return "INTEGER"
	}
}

// cellValue maps a cell to its driver value; missing cells become NULL.
func cellValue(c *dataset.Column, i int) any {
	if c.IsMissing(i) {
		return nil
	}
	switch c.Kind {
	case dataset.KindString:
		return c.String(i)
	case dataset.KindFloat:
		return c.Float(i)
	default:
		return int64(c.Float(i))
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
