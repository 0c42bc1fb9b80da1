// Package store persists workbooks to PostgreSQL through database/sql with
// the pgx driver. Sheet order and cell contents round-trip; values are
// recomputed on load.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sheets/workbook"
)

// One statement per entry: the pgx driver's extended protocol does not
// accept multi-statement Exec calls.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workbook_sheets (
		position INTEGER NOT NULL,
		name     TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS workbook_cells (
		sheet_name TEXT NOT NULL REFERENCES workbook_sheets(name) ON DELETE CASCADE,
		location   TEXT NOT NULL,
		contents   TEXT NOT NULL,
		PRIMARY KEY (sheet_name, location)
	)`,
}

// Open connects with the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Init creates the storage tables if they do not exist.
func Init(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the stored workbook with the given one, in a single
// transaction.
func Save(ctx context.Context, db *sql.DB, wb *workbook.Workbook) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workbook_sheets`); err != nil {
		return err
	}
	for position, name := range wb.ListSheets() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workbook_sheets (position, name) VALUES ($1, $2)`,
			position, name); err != nil {
			return err
		}
		cells, err := wb.SheetCells(name)
		if err != nil {
			return err
		}
		for location, contents := range cells {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO workbook_cells (sheet_name, location, contents) VALUES ($1, $2, $3)`,
				name, location, contents); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Load rebuilds a workbook from storage, re-evaluating every cell.
func Load(ctx context.Context, db *sql.DB) (*workbook.Workbook, error) {
	wb := workbook.New()

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM workbook_sheets ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, name := range names {
		if _, _, err := wb.NewSheet(name); err != nil {
			return nil, err
		}
		cellRows, err := db.QueryContext(ctx,
			`SELECT location, contents FROM workbook_cells WHERE sheet_name = $1`, name)
		if err != nil {
			return nil, err
		}
		for cellRows.Next() {
			var location, contents string
			if err := cellRows.Scan(&location, &contents); err != nil {
				cellRows.Close()
				return nil, err
			}
			if err := wb.SetCellContents(name, location, contents); err != nil {
				cellRows.Close()
				return nil, err
			}
		}
		if err := cellRows.Err(); err != nil {
			cellRows.Close()
			return nil, err
		}
		cellRows.Close()
	}
	return wb, nil
}
