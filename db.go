package jobsculpt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBConfig selects the database backend
type DBConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// OpenDB opens a bun.DB for the configured driver
func OpenDB(cfg DBConfig) (*bun.DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// in-memory databases are per connection
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 1
		}
		sqldb.SetMaxOpenConns(maxOpen)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres, "pgx":
		sqldb, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", cfg.Driver), goerrors.CategoryInternal)
	}
}

var schemaModels = []any{
	(*User)(nil),
	(*Device)(nil),
	(*UserSkill)(nil),
	(*HiringSkill)(nil),
	(*Job)(nil),
	(*JobSkill)(nil),
	(*JobApplicant)(nil),
	(*CatalogSkill)(nil),
}

// CreateSchema creates every table and secondary index if missing
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table").
				WithMetadata(map[string]any{"model": fmt.Sprintf("%T", model)})
		}
	}

	indexes := []*bun.CreateIndexQuery{
		db.NewCreateIndex().Model((*JobSkill)(nil)).Index("job_skills_name_idx").Column("name"),
		db.NewCreateIndex().Model((*Job)(nil)).Index("jobs_user_id_idx").Column("user_id"),
	}
	for _, idx := range indexes {
		if _, err := idx.IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create index")
		}
	}

	return nil
}

const (
	pgUniqueViolation  = "23505"
	sqliteUniqueFailed = "UNIQUE constraint failed:"
)

// uniqueViolation reports whether err is a unique constraint violation and
// returns the first column of the violated key.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		if column := pgKeyColumn(pgErr.Detail); column != "" {
			return column, true
		}
		return constraintColumn(pgErr.TableName, pgErr.ConstraintName), true
	}

	msg := err.Error()
	i := strings.Index(msg, sqliteUniqueFailed)
	if i < 0 {
		return "", false
	}

	// UNIQUE constraint failed: users.email, users.username (2067)
	fields := strings.FieldsFunc(msg[i+len(sqliteUniqueFailed):], func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return "", true
	}
	column := fields[0]
	if dot := strings.LastIndexByte(column, '.'); dot >= 0 {
		column = column[dot+1:]
	}
	return column, true
}

// pgKeyColumn reads the first column out of a detail such as
// "Key (email)=(bob@example.com) already exists."
func pgKeyColumn(detail string) string {
	rest, ok := strings.CutPrefix(detail, "Key (")
	if !ok {
		return ""
	}
	columns, _, ok := strings.Cut(rest, ")=")
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(columns, ",")
	return strings.Trim(strings.TrimSpace(first), `"`)
}

// constraintColumn strips the table prefix and key suffix postgres uses to
// name inline unique constraints, as in users_username_key
func constraintColumn(table, constraint string) string {
	column := strings.TrimSuffix(constraint, "_key")
	if table != "" {
		column = strings.TrimPrefix(column, table+"_")
	}
	return column
}
