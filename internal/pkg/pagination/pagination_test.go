package pagination

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type row struct {
	ID   int
	Name string
}

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query string
		want  Query
	}{
		{"", Query{Page: 1, Size: DefaultSize}},
		{"?page=3&size=5", Query{Page: 3, Size: 5}},
		{"?page=0&size=-1", Query{Page: 1, Size: DefaultSize}},
		{"?page=abc&size=1000", Query{Page: 1, Size: MaxSize}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/x"+tc.query, nil)
			assert.Equal(t, tc.want, FromContext(c))
		})
	}
}

func TestPaginate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:pagination?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&row{}))
	for i := 1; i <= 7; i++ {
		require.NoError(t, db.Create(&row{ID: i, Name: fmt.Sprintf("r%d", i)}).Error)
	}

	var page []row
	pag, err := Paginate(db.Model(&row{}).Order("id"), Query{Page: 2, Size: 3}, &page)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pag.Total)
	assert.Equal(t, 3, pag.TotalPage)
	assert.True(t, pag.HasNextPage)
	require.Len(t, page, 3)
	assert.Equal(t, 4, page[0].ID)

	page = nil
	pag, err = Paginate(db.Model(&row{}).Order("id"), Query{Page: 3, Size: 3}, &page)
	require.NoError(t, err)
	assert.False(t, pag.HasNextPage)
	assert.Len(t, page, 1)
}
