package database

import (
	"context"
	"fmt"
	"strings"
)

// Schema returns the CREATE statements of the applied schema, tables first,
// then indexes. SQLite internals and the migration bookkeeping table are
// left out.
func (s *SQLiteDatabase) Schema(ctx context.Context) (string, error) {
	var stmts []string
	err := s.db.SelectContext(ctx, &stmts, `
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY
		  CASE type
		    WHEN 'table' THEN 1
		    WHEN 'index' THEN 2
		  END,
		  name`)
	if err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return strings.Join(stmts, "\n\n") + "\n", nil
}
