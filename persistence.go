package membership

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	pgErrCodeUniqueViolation     = "23505"
	pgErrCodeForeignKeyViolation = "23503"
)

// OpenDB opens a bun database for driver and checks the connection.
// SQLite connections are capped at one, sqlite being a single writer.
func OpenDB(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	var db *bun.DB

	switch driver {
	case DriverPostgres:
		config, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "DSN validation failed")
		}
		db = bun.NewDB(stdlib.OpenDB(*config), pgdialect.New())
	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable foreign keys")
		}
	default:
		return nil, goerrors.New("unsupported database driver", goerrors.CategoryValidation).
			WithTextCode("UNSUPPORTED_DRIVER").
			WithMetadata(map[string]any{
				"driver": driver,
			})
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "database connection failed")
	}

	return db, nil
}

// isUniqueViolation reports unique constraint failures for both drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports foreign key failures for both drivers
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrCodeForeignKeyViolation
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// lockMember takes the per member write lock. Postgres gets a row lock,
// sqlite already serializes writers on the database.
func lockMember(ctx context.Context, tx bun.IDB, memberID string) (*Member, error) {
	record := &Member{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", memberID).
		Limit(1)

	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withMetadata(ErrNotFound, map[string]any{
				"member_id": memberID,
			})
		}
		return nil, err
	}

	return record, nil
}
