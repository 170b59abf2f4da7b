// Package testutil holds fixtures shared by the module tests: an in-memory
// database, a fake caller and a request helper.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mx-space/wiki/internal/database"
	"github.com/mx-space/wiki/internal/middleware"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/validation"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Register()
}

// DB opens a migrated private in-memory SQLite database.
func DB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// Profile inserts a profile with the given role and returns it.
func Profile(t testing.TB, db *gorm.DB, username, role string) *models.ProfileModel {
	t.Helper()
	p := &models.ProfileModel{Username: username, Password: "x", Role: role}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Post inserts a post.
func Post(t testing.TB, db *gorm.DB, p models.PostModel) *models.PostModel {
	t.Helper()
	require.NoError(t, db.Create(&p).Error)
	return &p
}

// As authenticates every request as the given profile. A nil profile
// leaves the request anonymous.
func As(p *models.ProfileModel) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			c.Set(middleware.ContextKeyUserID, p.ID)
			c.Set(middleware.ContextKeySID, "test-session")
			c.Set(middleware.ContextKeyRole, p.Role)
		}
		c.Next()
	}
}

// Do sends a request to r. A non-nil body is encoded as JSON.
func Do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// Decode unmarshals the recorded body into v.
func Decode(t testing.TB, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// Upload posts data as the multipart file field "file".
func Upload(r *gin.Engine, path, filename string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", filename)
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
