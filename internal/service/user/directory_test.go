package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/datashare/internal/database"
	apperrors "github.com/weiwangfds/datashare/internal/errors"
	"github.com/weiwangfds/datashare/internal/testutil"
)

func TestDirectoryGet(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice", database.RoleAdmin)
	dir := NewDirectory(db, 16, time.Minute)

	u, err := dir.Get(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)
	assert.True(t, u.IsAdmin())
	assert.Empty(t, u.Password)

	_, err = dir.Get(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = dir.Get(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestDirectoryCachesUntilForgotten(t *testing.T) {
	db := testutil.NewDB(t)
	bob := testutil.CreateUser(t, db, "bob", database.RoleUser)
	dir := NewDirectory(db, 16, time.Minute)

	_, err := dir.Get(context.Background(), bob.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&database.User{}).Where("id = ?", bob.ID).Update("role", database.RoleAdmin).Error)

	cached, err := dir.Get(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RoleUser, cached.Role)

	dir.Forget(bob.ID)
	fresh, err := dir.Get(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, database.RoleAdmin, fresh.Role)
}
