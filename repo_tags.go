package membership

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrTagNameRequired is returned when creating a tag with a blank name
var ErrTagNameRequired = goerrors.New("tag name is required", goerrors.CategoryValidation).
	WithTextCode("TAG_NAME_REQUIRED").
	WithCode(goerrors.CodeBadRequest)

// Tags is the capability catalog
type Tags interface {
	repository.Repository[*Tag]

	GetByName(ctx context.Context, name string) (*Tag, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Tag, error)
	CreateTag(ctx context.Context, name string) (*Tag, error)
	CreateTagTx(ctx context.Context, tx bun.IDB, name string) (*Tag, error)
	EnsureTags(ctx context.Context, names ...string) ([]*Tag, error)
	ListTags(ctx context.Context) ([]*Tag, error)
	ListTagsTx(ctx context.Context, tx bun.IDB) ([]*Tag, error)
	DeleteTag(ctx context.Context, name string) error
	DeleteTagTx(ctx context.Context, tx bun.IDB, name string) error
}

type tags struct {
	repository.Repository[*Tag]
	db    *bun.DB
	clock Clock
}

var _ Tags = (*tags)(nil)

// TagsOption configures the tags repository
type TagsOption func(*tags)

// WithTagsClock sets the clock used for created_at
func WithTagsClock(clock Clock) TagsOption {
	return func(t *tags) {
		t.clock = clock
	}
}

func NewTagsRepository(db *bun.DB, opts ...TagsOption) Tags {
	repo := repository.NewRepository[*Tag](db, repository.ModelHandlers[*Tag]{
		NewRecord: func() *Tag { return &Tag{} },
		GetID: func(t *Tag) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Tag, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	t := &tags{
		Repository: repo,
		db:         db,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (a *tags) GetByName(ctx context.Context, name string) (*Tag, error) {
	return a.GetByNameTx(ctx, a.db, name)
}

func (a *tags) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Tag, error) {
	record := &Tag{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withMetadata(ErrNotFound, map[string]any{
				"tag": name,
			})
		}
		return nil, err
	}
	return record, nil
}

// CreateTag returns the tag named name, creating it when missing
func (a *tags) CreateTag(ctx context.Context, name string) (*Tag, error) {
	return a.CreateTagTx(ctx, a.db, name)
}

// CreateTagTx inserts with ON CONFLICT DO NOTHING and reads the row back,
// so a concurrent creator never aborts the surrounding postgres tx.
func (a *tags) CreateTagTx(ctx context.Context, tx bun.IDB, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTagNameRequired
	}

	now := a.clock.now()
	record := &Tag{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: &now,
	}

	if _, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, err
	}

	return a.GetByNameTx(ctx, tx, name)
}

// EnsureTags creates every missing name in a single transaction
func (a *tags) EnsureTags(ctx context.Context, names ...string) ([]*Tag, error) {
	out := make([]*Tag, 0, len(names))
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, name := range names {
			tag, err := a.CreateTagTx(ctx, tx, name)
			if err != nil {
				return err
			}
			out = append(out, tag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *tags) ListTags(ctx context.Context) ([]*Tag, error) {
	return a.ListTagsTx(ctx, a.db)
}

func (a *tags) ListTagsTx(ctx context.Context, tx bun.IDB) ([]*Tag, error) {
	var records []*Tag
	err := tx.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

// DeleteTag removes a tag no membership row references
func (a *tags) DeleteTag(ctx context.Context, name string) error {
	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return a.DeleteTagTx(ctx, tx, name)
	})
}

func (a *tags) DeleteTagTx(ctx context.Context, tx bun.IDB, name string) error {
	tag, err := a.GetByNameTx(ctx, tx, name)
	if err != nil {
		return err
	}

	refs, err := tx.NewSelect().
		Model((*MemberTag)(nil)).
		Where("?TableAlias.tag_id = ?", tag.ID).
		Count(ctx)
	if err != nil {
		return err
	}
	if refs > 0 {
		return withMetadata(ErrTagInUse, map[string]any{
			"tag":         name,
			"memberships": refs,
		})
	}

	_, err = tx.NewDelete().
		Model((*Tag)(nil)).
		Where("id = ?", tag.ID).
		Exec(ctx)
	if isForeignKeyViolation(err) {
		return withMetadata(ErrTagInUse, map[string]any{
			"tag": name,
		})
	}
	return err
}
