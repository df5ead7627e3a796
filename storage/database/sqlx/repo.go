// Package sqlxrepos implements the domain repositories on top of jmoiron/sqlx and Masterminds/squirrel.
// The same queries run on postgres and sqlite; placeholders follow the executor's driver.
package sqlxrepos

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/storage/database"
)

type baseRepository struct {
	db core.DB
}

func (repo baseRepository) getExec(exec ...core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func builder(exec core.DBExecutor) sq.StatementBuilderType {
	if exec.DriverName() == database.EnginePostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// orderBy converts orderings to ORDER BY clauses; fields missing from allowed are dropped.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback ...string) []string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(clauses) == 0 {
		return fallback
	}
	return clauses
}

// search matches term case-insensitively against any of cols.
func search(term string, cols ...string) sq.Or {
	pattern := "%" + strings.ToLower(term) + "%"
	cond := make(sq.Or, 0, len(cols))
	for _, col := range cols {
		cond = append(cond, sq.Expr("LOWER("+col+") LIKE ?", pattern))
	}
	return cond
}
