package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/artpar/modelwire/core/schema"
)

// migrate creates the table for model if missing and adds any columns the
// table lacks. Columns are never dropped or retyped. Each applied definition
// is recorded in modelwire_models.
func (db *DB) migrate(ctx context.Context, model schema.Model) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS modelwire_models (
			identity TEXT PRIMARY KEY,
			definition TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create models table: %w", err)
	}

	table := quote(model.Identity)
	columns := model.Schema()

	existing, err := db.columns(ctx, model.Identity)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if len(existing) == 0 {
		defs := make([]string, 0, len(columns))
		for _, name := range columnOrder(model, columns) {
			defs = append(defs, columnDef(name, columns[name]))
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t"))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", model.Identity, err)
		}
	} else {
		for _, name := range columnOrder(model, columns) {
			if existing[name] {
				continue
			}
			attr := columns[name]
			// SQLite cannot add PRIMARY KEY or UNIQUE columns in place.
			attr.PrimaryKey, attr.AutoIncrement, attr.Unique = false, false, false
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDef(name, attr))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s.%s: %w", model.Identity, name, err)
			}
		}
	}

	definition, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO modelwire_models (identity, definition) VALUES (?, ?)
		ON CONFLICT(identity) DO UPDATE SET definition = excluded.definition, applied_at = CURRENT_TIMESTAMP
	`, model.Identity, string(definition)); err != nil {
		return fmt.Errorf("record definition %s: %w", model.Identity, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", model.Identity, err)
	}
	return nil
}

// columns returns the column names of table, or an empty set if it does not
// exist.
func (db *DB) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func columnOrder(model schema.Model, columns map[string]schema.Attribute) []string {
	names := model.AttributeNames()
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, extra := range []string{"createdAt", "updatedAt"} {
		if _, ok := columns[extra]; ok && !seen[extra] {
			names = append(names, extra)
		}
	}
	return names
}

func columnDef(name string, attr schema.Attribute) string {
	def := quote(name) + " " + attr.SQLType()
	switch {
	case attr.PrimaryKey && attr.AutoIncrement:
		def += " PRIMARY KEY AUTOINCREMENT"
	case attr.PrimaryKey:
		def += " PRIMARY KEY"
	case attr.Unique:
		def += " UNIQUE"
	}
	return def
}
