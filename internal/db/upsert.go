package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Upserter merges row batches into one target table. Rows are staged into
// a session temp table with COPY, then folded into the target with
// INSERT ... ON CONFLICT, so re-importing a season refreshes corrected
// results instead of duplicating them.
type Upserter struct {
	// Table is the merge target, optionally schema-qualified.
	Table string
	// Columns names every staged column, in row-slice order.
	Columns []string
	// Conflict names the columns of the target's unique constraint.
	Conflict []string
}

// Merge stages rows and folds them into the target inside one transaction,
// returning the number of rows written.
func (u Upserter) Merge(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := u.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge into %s: begin", u.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := u.stageName()
	if _, err := tx.Exec(ctx, u.stageSQL(stage)); err != nil {
		return 0, eris.Wrapf(err, "db: merge into %s: create stage", u.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stage}, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge into %s: stage rows", u.Table)
	}

	tag, err := tx.Exec(ctx, u.mergeSQL(stage))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge into %s", u.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: merge into %s: commit", u.Table)
	}
	return tag.RowsAffected(), nil
}

func (u Upserter) validate() error {
	switch {
	case u.Table == "":
		return eris.New("db: merge: no target table")
	case len(u.Columns) == 0:
		return eris.New("db: merge: no columns")
	case len(u.Conflict) == 0:
		return eris.New("db: merge: no conflict key")
	}
	return nil
}

func (u Upserter) stageName() string {
	return "_stage_" + strings.ReplaceAll(u.Table, ".", "_")
}

func (u Upserter) stageSQL(stage string) string {
	var b strings.Builder
	b.WriteString("CREATE TEMP TABLE ")
	b.WriteString(pgx.Identifier{stage}.Sanitize())
	b.WriteString(" (LIKE ")
	b.WriteString(targetIdent(u.Table))
	b.WriteString(" INCLUDING DEFAULTS) ON COMMIT DROP")
	return b.String()
}

// mergeSQL builds the INSERT ... ON CONFLICT statement. Every non-key
// column is refreshed from the staged row; when the conflict key covers
// all columns there is nothing to refresh and duplicates are dropped.
func (u Upserter) mergeSQL(stage string) string {
	keys := make(map[string]bool, len(u.Conflict))
	for _, k := range u.Conflict {
		keys[k] = true
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(targetIdent(u.Table))
	b.WriteString(" (")
	writeColumns(&b, u.Columns)
	b.WriteString(") SELECT ")
	writeColumns(&b, u.Columns)
	b.WriteString(" FROM ")
	b.WriteString(pgx.Identifier{stage}.Sanitize())
	b.WriteString(" ON CONFLICT (")
	writeColumns(&b, u.Conflict)
	b.WriteString(")")

	wrote := false
	for _, col := range u.Columns {
		if keys[col] {
			continue
		}
		if wrote {
			b.WriteString(", ")
		} else {
			b.WriteString(" DO UPDATE SET ")
			wrote = true
		}
		ident := pgx.Identifier{col}.Sanitize()
		b.WriteString(ident)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(ident)
	}
	if !wrote {
		b.WriteString(" DO NOTHING")
	}
	return b.String()
}

// targetIdent quotes a possibly schema-qualified table name.
func targetIdent(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func writeColumns(b *strings.Builder, cols []string) {
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c}.Sanitize())
	}
}
