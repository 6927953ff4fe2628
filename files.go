package membership

import (
	"context"
	"embed"
	"io/fs"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// DialectMigrationsFS returns the migrations for the bun dialect of db,
// rooted so goose can read them directly.
func DialectMigrationsFS(db *bun.DB) (fs.FS, goose.Dialect, error) {
	switch db.Dialect().Name() {
	case dialect.PG:
		sub, err := fs.Sub(migrationsFS, "data/sql/migrations/postgres")
		return sub, goose.DialectPostgres, err
	case dialect.SQLite:
		sub, err := fs.Sub(migrationsFS, "data/sql/migrations/sqlite")
		return sub, goose.DialectSQLite3, err
	default:
		return nil, "", goerrors.New("unsupported database dialect", goerrors.CategoryValidation).
			WithTextCode("UNSUPPORTED_DIALECT").
			WithMetadata(map[string]any{
				"dialect": db.Dialect().Name().String(),
			})
	}
}

// NewMigrationProvider builds a goose provider over the embedded migrations
func NewMigrationProvider(db *bun.DB, opts ...goose.ProviderOption) (*goose.Provider, error) {
	fsys, d, err := DialectMigrationsFS(db)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(d, db.DB, fsys, opts...)
}

// Migrate applies every pending migration
func Migrate(ctx context.Context, db *bun.DB, opts ...goose.ProviderOption) ([]*goose.MigrationResult, error) {
	provider, err := NewMigrationProvider(db, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create migration provider")
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return results, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	return results, nil
}
