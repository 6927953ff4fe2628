package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-membership"
)

func TestTags_CreateIsGetOrCreate(t *testing.T) {
	env := newTestEnv(t)
	tags := env.repo.Tags()

	first, err := tags.CreateTag(env.ctx, " Aktiv ")
	require.NoError(t, err)
	assert.Equal(t, "Aktiv", first.Name)

	second, err := tags.CreateTag(env.ctx, "Aktiv")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = tags.CreateTag(env.ctx, "  ")
	assert.ErrorIs(t, err, membership.ErrTagNameRequired)
}

func TestTags_CreateExistingKeepsTxUsable(t *testing.T) {
	env := newTestEnv(t)
	env.tags(t, "Alt 1")
	tags := env.repo.Tags()

	err := env.db.RunInTx(env.ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := tags.CreateTagTx(ctx, tx, "Alt 1")
		if err != nil {
			return err
		}
		assert.Equal(t, "Alt 1", existing.Name)

		_, err = tags.CreateTagTx(ctx, tx, "Alt 2")
		return err
	})
	require.NoError(t, err)

	list, err := tags.ListTags(env.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alt 2", list[1].Name)
}

func TestTags_EnsureAndList(t *testing.T) {
	env := newTestEnv(t)
	tags := env.repo.Tags()

	created, err := tags.EnsureTags(env.ctx, membership.DefaultTags()...)
	require.NoError(t, err)
	assert.Len(t, created, len(membership.DefaultTags()))

	again, err := tags.EnsureTags(env.ctx, "Webmaster", "Aktiv")
	require.NoError(t, err)
	assert.Equal(t, created[0].ID, again[0].ID)

	list, err := tags.ListTags(env.ctx)
	require.NoError(t, err)
	require.Len(t, list, len(membership.DefaultTags()))
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Name, list[i].Name)
	}
}

func TestTags_EnsureIsAtomic(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.repo.Tags().EnsureTags(env.ctx, "Tenor 1", "")
	require.Error(t, err)

	list, err := env.repo.Tags().ListTags(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTags_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.tags(t, "Aktiv", "Notfisqual")
	m := env.member(t, "tags@example.com")

	_, err := env.repo.Memberships().Grant(env.ctx, m.ID, "Aktiv", time.Time{})
	require.NoError(t, err)

	err = env.repo.Tags().DeleteTag(env.ctx, "Aktiv")
	assert.Equal(t, membership.TextCodeTagInUse, membership.TextCode(err))

	require.NoError(t, env.repo.Tags().DeleteTag(env.ctx, "Notfisqual"))
	_, err = env.repo.Tags().GetByName(env.ctx, "Notfisqual")
	assert.True(t, membership.IsNotFound(err))

	err = env.repo.Tags().DeleteTag(env.ctx, "Notfisqual")
	assert.True(t, membership.IsNotFound(err))
}
