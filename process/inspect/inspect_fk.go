// Package inspect reports the foreign keys present in the database and which of the
// expected berita acara references are missing.
package inspect

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ForeignKey is one single-column foreign key constraint.
type ForeignKey struct {
	Name       string
	Table      string
	Column     string
	RefTable   string
	Definition string
}

// Reference is a foreign key the schema should carry.
type Reference struct {
	Table, Column, RefTable string
}

// Expected mirrors the references the server adds at startup.
var Expected = []Reference{
	{"users", "role_id", "roles"},
	{"sarpras", "alasan_id", "alasan"},
	{"berita_acara_barang", "berita_acara_id", "berita_acara"},
	{"berita_acara_barang", "sarpras_id", "sarpras"},
	{"berita_acara_ttd", "berita_acara_id", "berita_acara"},
	{"berita_acara_ttd", "ttd_id", "ttd"},
}

const fkQuery = `
	SELECT
	  con.conname AS constraint_name,
	  rel.relname AS table_name,
	  string_agg(att.attname, ',' ORDER BY u.ord) AS src_columns,
	  confrel.relname AS referenced_table,
	  pg_get_constraintdef(con.oid) AS definition
	FROM pg_constraint con
	JOIN pg_class rel ON rel.oid = con.conrelid
	JOIN pg_namespace ns ON ns.oid = rel.relnamespace
	JOIN pg_class confrel ON confrel.oid = con.confrelid
	JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON true
	JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
	WHERE con.contype = 'f' AND ns.nspname = current_schema()
	GROUP BY con.oid, con.conname, rel.relname, confrel.relname
	ORDER BY rel.relname, constraint_name;
`

// ListForeignKeys reads the foreign keys of the current schema.
func ListForeignKeys(db *sql.DB) ([]ForeignKey, error) {
	rows, err := db.Query(fkQuery)
	if err != nil {
		return nil, fmt.Errorf("query constraints: %w", err)
	}
	defer rows.Close()

	var out []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		var cols sql.NullString
		if err := rows.Scan(&fk.Name, &fk.Table, &cols, &fk.RefTable, &fk.Definition); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		fk.Column = nullStringToStr(cols)
		out = append(out, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Missing returns the expected references that no foreign key in found covers.
func Missing(found []ForeignKey, expected []Reference) []Reference {
	have := make(map[Reference]bool, len(found))
	for _, fk := range found {
		have[Reference{strings.ToLower(fk.Table), strings.ToLower(fk.Column), strings.ToLower(fk.RefTable)}] = true
	}
	var out []Reference
	for _, ref := range expected {
		if !have[ref] {
			out = append(out, ref)
		}
	}
	return out
}

// Report prints found and the missing expected references to w and returns how many are missing.
func Report(w io.Writer, found []ForeignKey, expected []Reference) int {
	fmt.Fprintln(w, "Foreign keys:")
	for _, fk := range found {
		fmt.Fprintf(w, "- %s: %s(%s) -> %s\n    def: %s\n", fk.Name, fk.Table, fk.Column, fk.RefTable, fk.Definition)
	}
	missing := Missing(found, expected)
	if len(missing) == 0 {
		fmt.Fprintln(w, "All expected references present.")
		return 0
	}
	fmt.Fprintln(w, "Missing references:")
	for _, ref := range missing {
		fmt.Fprintf(w, "- %s(%s) -> %s\n", ref.Table, ref.Column, ref.RefTable)
	}
	return len(missing)
}

// Run connects to Postgres using dsn and reports its foreign keys.
func Run(w io.Writer, dsn string) (int, error) {
	if dsn == "" {
		return 0, fmt.Errorf("dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	found, err := ListForeignKeys(db)
	if err != nil {
		return 0, err
	}
	return Report(w, found, Expected), nil
}

func nullStringToStr(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
