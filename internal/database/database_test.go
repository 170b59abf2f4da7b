package database

import (
	"testing"

	"github.com/mx-space/wiki/internal/config"
	"github.com/mx-space/wiki/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{config.DriverMySQL, config.DriverPostgres, config.DriverSQLite} {
		d, err := Dialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)
}

func TestConnectSQLiteMigrates(t *testing.T) {
	cfg, err := config.Parse([]byte("database:\n  driver: sqlite\n  path: \"file:dbtest?mode=memory&cache=shared\"\nenv: production\n"), "test.yml", nil)
	require.NoError(t, err)

	db, err := Connect(cfg, true)
	require.NoError(t, err)
	defer Close(db)

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	post := models.PostModel{Title: "Intro", Slug: "intro", Tags: models.StringArray{"meta"}}
	require.NoError(t, db.Create(&post).Error)
	assert.Len(t, post.ID, 36)

	var got models.PostModel
	require.NoError(t, db.First(&got, "slug = ?", "intro").Error)
	assert.Equal(t, models.StringArray{"meta"}, got.Tags)
	assert.False(t, got.IsPublic)
}
