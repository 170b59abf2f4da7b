package session

import (
	"testing"
	"time"

	"github.com/mx-space/wiki/internal/models"
	jwtpkg "github.com/mx-space/wiki/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserSession{}))
	return NewStore(db, jwtpkg.NewSigner("test")), db
}

func TestIssueValidateRevoke(t *testing.T) {
	store, _ := newStore(t)

	token, sess, err := store.Issue("u1", " 127.0.0.1 ", "go-test", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", sess.IP)

	claims, err := store.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, sess.ID, claims.SessionID)

	require.NoError(t, store.Revoke("u1", sess.ID))
	_, err = store.Validate(token)
	assert.ErrorIs(t, err, ErrInactive)

	assert.ErrorIs(t, store.Revoke("u1", sess.ID), gorm.ErrRecordNotFound)
}

func TestRevokeAllExceptAndPurge(t *testing.T) {
	store, db := newStore(t)

	_, keep, err := store.Issue("u1", "", "", time.Hour)
	require.NoError(t, err)
	_, other, err := store.Issue("u1", "", "", time.Hour)
	require.NoError(t, err)
	_, _, err = store.Issue("u2", "", "", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.RevokeAllExcept("u1", keep.ID))

	active, err := store.IsActive("u1", other.ID)
	require.NoError(t, err)
	assert.False(t, active)
	active, err = store.IsActive("u1", keep.ID)
	require.NoError(t, err)
	assert.True(t, active)

	n, err := store.Purge(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int64
	require.NoError(t, db.Model(&models.UserSession{}).Count(&left).Error)
	assert.Equal(t, int64(2), left)

	n, err = store.Purge(time.Now().Add(2 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestListActive(t *testing.T) {
	store, _ := newStore(t)

	_, a, err := store.Issue("u1", "", "", time.Hour)
	require.NoError(t, err)
	_, b, err := store.Issue("u1", "", "", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Revoke("u1", b.ID))

	list, err := store.ListActive("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}
